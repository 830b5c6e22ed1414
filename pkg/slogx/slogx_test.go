package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "siteadmin", Version: "test", Env: "ci", Level: "debug", Output: &buf})

	logger.Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "siteadmin", line["service"])
	require.Equal(t, "ci", line["env"])
}

func TestNewFallback_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.NewFallback(slogx.Config{Format: "json", Output: &buf})

	logger.Warn("audit write failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "audit_fallback", line["component"])
}

func TestFromContext_Default(t *testing.T) {
	require.NotNil(t, slogx.FromContext(context.Background()))
}

func TestHTTPMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slogx.New(slogx.Config{Output: &buf})

	var seen bool
	h := slogx.HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = slogx.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		require.True(t, seen)
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("propagated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Request-ID", "abc")
		h.ServeHTTP(rec, req)
		require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
		require.Contains(t, buf.String(), `"req_id":"abc"`)
	})
}

func TestHTTPMiddleware_LogsActor(t *testing.T) {
	var buf bytes.Buffer
	base := slogx.New(slogx.Config{Output: &buf})

	h := slogx.HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := slogx.WithActor(r.Context(), "id-1", "root")
		slogx.FromContext(ctx).Info("inside")
		w.WriteHeader(http.StatusNoContent)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/roles", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"actor_id":"id-1"`)
	require.Contains(t, lines[1], `"msg":"http_request"`)
	require.Contains(t, lines[1], `"actor":"root"`)
}
