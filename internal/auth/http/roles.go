package http

import (
	"net/http"

	"github.com/aussiebroadwan/siteadmin/internal/auth/service"
	"github.com/aussiebroadwan/siteadmin/pkg/adminsdk"
	"github.com/aussiebroadwan/siteadmin/pkg/httpx"
)

type RolesHandler struct {
	Core *service.Core
}

// ServeHTTP lists the configured roles by descending level.
func (h *RolesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defs := h.Core.Roles()

	response := adminsdk.RolesResponse{
		Roles: make([]adminsdk.RoleInfo, len(defs)),
	}
	for i, def := range defs {
		response.Roles[i] = adminsdk.RoleInfo{
			Name:        def.Name,
			Level:       def.Level,
			Permissions: def.Permissions,
			Inherits:    def.Inherits,
		}
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}
