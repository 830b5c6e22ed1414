package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/service"
	"github.com/aussiebroadwan/siteadmin/pkg/adminsdk"
	"github.com/aussiebroadwan/siteadmin/pkg/httpx"
)

type LoginHandler struct {
	Sessions *service.SessionService
}

// ServeHTTP exchanges username, password and a TOTP or recovery code for a
// bearer session token. Every failure answers invalid_credentials.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username, ok := formValue(w, r, "username")
	if !ok {
		return
	}
	password, ok := formValue(w, r, "password")
	if !ok {
		return
	}

	sess, err := h.Sessions.Login(r.Context(), username, password, r.PostFormValue("code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, adminsdk.LoginResponse{
		AccessToken: sess.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(sess.ExpiresAt).Seconds()),
		IdentityID:  sess.Identity.ID,
		Role:        sess.Identity.Role,
	})
}
