/*
Package adminsdk is a client for the siteadmin admin API.

Client covers the unauthenticated endpoints and creates a Session via Login:

	client := adminsdk.NewClient("https://admin.example.com")
	session, err := client.Login(ctx, "root", password, totpCode)

Session covers everything gated by a permission:

	inv, err := session.InviteCoOwner(ctx, "a@x.com")
	err = session.ChangeRole(ctx, "alice", "admin")
	page, err := session.Audit(ctx, adminsdk.AuditQuery{Action: "ROLE_CHANGED"})

Sessions do not refresh. When the token expires the server answers 401 and
the caller logs in again.

Errors returned by the server are *APIError values; compare codes with
errors.Is against the predefined errors:

	if errors.Is(err, adminsdk.ErrInvalidToken) { ... }
*/
package adminsdk
