package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/siteadmin/pkg/adminsdk"
	"github.com/aussiebroadwan/siteadmin/pkg/httpx"
	"github.com/aussiebroadwan/siteadmin/pkg/jwtx"
)

// LivezHandler always answers 200 while the process is serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := adminsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		}
		httpx.WriteJSON(w, http.StatusOK, response)
	}
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FailureCounter reports how many audit appends have failed.
type FailureCounter interface {
	Failures() uint64
}

// ReadyzHandler checks the database and signing keys. Audit failures are
// reported but do not fail readiness.
func ReadyzHandler(
	startTime time.Time,
	version string,
	db Pinger,
	keys *jwtx.KeySet,
	audit FailureCounter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &adminsdk.HealthChecks{
			Database:      "ok",
			Signer:        "ok",
			AuditFailures: audit.Failures(),
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		// Check database connectivity
		if err := db.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		// Check if JWT signer/verifier has keys loaded
		if !keys.IsReady() {
			checks.Signer = "error: no keys loaded"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := adminsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
