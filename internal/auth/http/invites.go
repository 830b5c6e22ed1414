package http

import (
	"net/http"

	"github.com/aussiebroadwan/siteadmin/internal/auth/service"
	"github.com/aussiebroadwan/siteadmin/pkg/adminsdk"
	"github.com/aussiebroadwan/siteadmin/pkg/httpx"
)

type InviteHandler struct {
	Core *service.Core
}

// ServeHTTP issues a co-owner invitation. The raw token appears only in this
// response.
func (h *InviteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	email, ok := formValue(w, r, "email")
	if !ok {
		return
	}

	inv, err := h.Core.InviteCoOwner(r.Context(), httpx.SubjectFromContext(r.Context()), email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, adminsdk.InviteResponse{
		ID:           inv.ID,
		InviteeEmail: inv.InviteeEmail,
		Role:         inv.Role,
		Token:        inv.Token,
		ExpiresAt:    inv.ExpiresAt,
	})
}

type InviteRedeemHandler struct {
	Core *service.Core
}

// ServeHTTP redeems an invitation token into a new identity and returns its
// second factor, which is never shown again.
func (h *InviteRedeemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := formValue(w, r, "token")
	if !ok {
		return
	}
	username, ok := formValue(w, r, "username")
	if !ok {
		return
	}
	password := r.PostFormValue("password")

	id, err := h.Core.RedeemInvitation(r.Context(), token, username, password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, adminsdk.RedeemResponse{
		IdentityResponse: identityResponse(id),
		MFASecret:        id.MFASecret,
		OTPAuthURL:       id.OTPAuthURL,
		RecoveryCodes:    id.RecoveryCodes,
	})
}
