package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/service"
	"github.com/aussiebroadwan/siteadmin/internal/auth/store"
	"github.com/aussiebroadwan/siteadmin/pkg/httpx"
	"github.com/aussiebroadwan/siteadmin/pkg/jwtx"
	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	Core     *service.Core
	Sessions *service.SessionService
	Limits   httpx.RateLimits
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	core *service.Core,
	sessions *service.SessionService,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		Core:         core,
		Sessions:     sessions,
		Limits:       httpx.DefaultRateLimits(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerInvites()
	r.registerUsers()
	r.registerRoles()
	r.registerAudit()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured verifies the session, rejects revoked identities and requires
// permission before h runs.
func (r *Router) secured(h http.Handler, permission string, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier, r.Sessions.Check),
		httpx.RequirePermission(r.Core, permission),
		httpx.RateLimitBySubject(limit),
	)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{Sessions: r.Sessions}

	// POST /login - strict rate limit by IP + username to slow brute force
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(h,
			httpx.RateLimitByIPAndFormField(r.Limits.Strict, "username"),
		),
	)
}

func (r *Router) registerInvites() {
	mintHandler := &InviteHandler{Core: r.Core}
	redeemHandler := &InviteRedeemHandler{Core: r.Core}

	r.Mux.Handle("POST /v1/invites", r.secured(mintHandler, "users.invite", r.Limits.Moderate))

	// POST /invites/redeem - public, strict rate limit by IP
	r.Mux.Handle("POST /v1/invites/redeem",
		httpx.Chain(redeemHandler,
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Core: r.Core}

	r.Mux.Handle("PUT /v1/users/{username}/role",
		r.secured(http.HandlerFunc(h.HandleChangeRole), "users.manage", r.Limits.Moderate))
	r.Mux.Handle("POST /v1/users/{username}/deactivate",
		r.secured(http.HandlerFunc(h.HandleDeactivate), "users.manage", r.Limits.Moderate))
	r.Mux.Handle("DELETE /v1/users/{username}",
		r.secured(http.HandlerFunc(h.HandleDelete), "users.manage", r.Limits.Moderate))
}

func (r *Router) registerRoles() {
	h := &RolesHandler{Core: r.Core}
	r.Mux.Handle("GET /v1/roles", r.secured(h, "roles.read", r.Limits.Lenient))
}

func (r *Router) registerAudit() {
	h := &AuditHandler{Core: r.Core}
	r.Mux.Handle("GET /v1/audit", r.secured(h, "audit.read", r.Limits.Lenient))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.Core.Audit),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
}
