package http

import (
	"net/http"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/service"
	"github.com/aussiebroadwan/siteadmin/pkg/adminsdk"
	"github.com/aussiebroadwan/siteadmin/pkg/httpx"
)

type UsersHandler struct {
	Core *service.Core
}

// HandleChangeRole handles PUT /v1/users/{username}/role.
func (h *UsersHandler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	role, ok := formValue(w, r, "role")
	if !ok {
		return
	}

	ctx := r.Context()
	id, err := h.Core.ChangeRole(ctx, httpx.SubjectFromContext(ctx), r.PathValue("username"), role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, identityResponse(id))
}

// HandleDeactivate handles POST /v1/users/{username}/deactivate.
func (h *UsersHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Core.Deactivate(ctx, httpx.SubjectFromContext(ctx), r.PathValue("username")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete handles DELETE /v1/users/{username}.
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Core.Delete(ctx, httpx.SubjectFromContext(ctx), r.PathValue("username")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func identityResponse(id domain.Identity) adminsdk.IdentityResponse {
	return adminsdk.IdentityResponse{
		ID:        id.ID,
		Username:  id.Username,
		Role:      id.Role,
		Active:    id.Active,
		CreatedAt: id.CreatedAt,
	}
}
