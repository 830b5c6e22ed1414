package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"github.com/aussiebroadwan/siteadmin/internal/auth/service"
	"github.com/aussiebroadwan/siteadmin/pkg/adminsdk"
	"github.com/aussiebroadwan/siteadmin/pkg/httpx"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type AuditHandler struct {
	Core *service.Core
}

// ServeHTTP lists audit entries newest first. Query parameters: action,
// actor, since (RFC 3339) and limit.
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	f := domain.AuditFilter{
		Action:  q.Get("action"),
		ActorID: q.Get("actor"),
		Limit:   defaultAuditLimit,
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			adminsdk.ErrInvalidRequest.WithDescription("since must be RFC 3339").WriteError(w)
			return
		}
		f.Since = since
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			adminsdk.ErrInvalidRequest.WithDescription("limit must be a positive integer").WriteError(w)
			return
		}
		f.Limit = min(n, maxAuditLimit)
	}

	seq, err := h.Core.QueryAudit(ctx, httpx.SubjectFromContext(ctx), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response := adminsdk.AuditResponse{Entries: []adminsdk.AuditEntry{}}
	for e, err := range seq {
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.Entries = append(response.Entries, adminsdk.AuditEntry{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Action:    e.Action,
			ActorID:   e.ActorID,
			Details:   e.Details,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}
