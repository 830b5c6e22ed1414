package adminsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Session performs authenticated calls with a fixed access token.
type Session struct {
	client      *Client
	accessToken string
	expiresAt   time.Time

	IdentityID string
	Role       string
}

func newSession(c *Client, lr LoginResponse) *Session {
	return &Session{
		client:      c,
		accessToken: lr.AccessToken,
		expiresAt:   time.Now().Add(time.Duration(lr.ExpiresIn) * time.Second),
		IdentityID:  lr.IdentityID,
		Role:        lr.Role,
	}
}

// NewSessionFromToken wraps an access token obtained elsewhere.
func (c *Client) NewSessionFromToken(accessToken string) *Session {
	return &Session{client: c, accessToken: accessToken}
}

// AccessToken returns the bearer token.
func (s *Session) AccessToken() string { return s.accessToken }

// Expired reports whether the token is past its advertised lifetime.
func (s *Session) Expired() bool {
	return !s.expiresAt.IsZero() && time.Now().After(s.expiresAt)
}

// InviteCoOwner requires users.invite.
func (s *Session) InviteCoOwner(ctx context.Context, email string) (*InviteResponse, error) {
	form := url.Values{}
	form.Set("email", email)

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/invites", strings.NewReader(form.Encode()), formHeaders)
	if err != nil {
		return nil, err
	}
	var ir InviteResponse
	if err := decodeJSON(resp, &ir, http.StatusCreated); err != nil {
		return nil, err
	}
	return &ir, nil
}

// ChangeRole requires users.manage and the matching roles.assign permissions.
func (s *Session) ChangeRole(ctx context.Context, username, role string) (*IdentityResponse, error) {
	form := url.Values{}
	form.Set("role", role)

	resp, err := s.doAuthRequest(ctx, http.MethodPut, userPath(username)+"/role", strings.NewReader(form.Encode()), formHeaders)
	if err != nil {
		return nil, err
	}
	var ir IdentityResponse
	if err := decodeJSON(resp, &ir, http.StatusOK); err != nil {
		return nil, err
	}
	return &ir, nil
}

// Deactivate requires users.manage.
func (s *Session) Deactivate(ctx context.Context, username string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, userPath(username)+"/deactivate", nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Delete requires users.manage.
func (s *Session) Delete(ctx context.Context, username string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, userPath(username), nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Roles requires roles.read.
func (s *Session) Roles(ctx context.Context) (*RolesResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/roles", nil, nil)
	if err != nil {
		return nil, err
	}
	var rr RolesResponse
	if err := decodeJSON(resp, &rr, http.StatusOK); err != nil {
		return nil, err
	}
	return &rr, nil
}

// Audit requires audit.read.
func (s *Session) Audit(ctx context.Context, q AuditQuery) (*AuditResponse, error) {
	v := url.Values{}
	if q.Action != "" {
		v.Set("action", q.Action)
	}
	if q.ActorID != "" {
		v.Set("actor", q.ActorID)
	}
	if !q.Since.IsZero() {
		v.Set("since", q.Since.UTC().Format(time.RFC3339Nano))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	path := "/v1/audit"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var ar AuditResponse
	if err := decodeJSON(resp, &ar, http.StatusOK); err != nil {
		return nil, err
	}
	return &ar, nil
}

func userPath(username string) string {
	return "/v1/users/" + url.PathEscape(username)
}
