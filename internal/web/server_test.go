package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/texpad/internal/store/sqlstore"
	"github.com/Laisky/texpad/library/db/sqlite"
	"github.com/Laisky/texpad/library/jwt"
	"github.com/Laisky/texpad/library/throttle"
)

var (
	ginModeOnce sync.Once
	dbSeq       atomic.Int64
)

func setupGinTestMode() {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})
}

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:web-%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := sqlite.NewDB(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	store, err := sqlstore.New(context.Background(), db, nil, nil)
	require.NoError(t, err)
	return store
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	setupGinTestMode()
	srv, err := NewServer(newTestStore(t), opts...)
	require.NoError(t, err)
	return srv
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestAllowCORS(t *testing.T) {
	srv := newTestServer(t, WithAllowedOrigins(".example.com", "editor.local"))
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		origin         string
		expectedStatus int
		expectedOrigin string
	}{
		{
			name:           "No origin header - should pass through",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Valid subdomain origin",
			method:         http.MethodGet,
			origin:         "https://app.example.com",
			expectedStatus: http.StatusOK,
			expectedOrigin: "https://app.example.com",
		},
		{
			name:           "Valid main domain origin",
			method:         http.MethodGet,
			origin:         "https://example.com",
			expectedStatus: http.StatusOK,
			expectedOrigin: "https://example.com",
		},
		{
			name:           "Exact host origin",
			method:         http.MethodGet,
			origin:         "http://editor.local:8080",
			expectedStatus: http.StatusOK,
			expectedOrigin: "http://editor.local:8080",
		},
		{
			name:           "Valid origin - OPTIONS preflight",
			method:         http.MethodOptions,
			origin:         "https://app.example.com",
			expectedStatus: http.StatusNoContent,
			expectedOrigin: "https://app.example.com",
		},
		{
			name:           "Invalid origin - OPTIONS preflight",
			method:         http.MethodOptions,
			origin:         "https://evil.com",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Suffix lookalike is rejected",
			method:         http.MethodGet,
			origin:         "https://notexample.com",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.origin != "" {
				headers["Origin"] = tt.origin
			}
			w := doRequest(t, srv.Handler(), tt.method, "/health", "", headers)

			require.Equal(t, tt.expectedStatus, w.Code)
			require.Equal(t, tt.expectedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.expectedOrigin != "" {
				require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				require.Equal(t, "Origin", w.Header().Get("Vary"))
			}
		})
	}
}

func TestOriginAllowedWildcard(t *testing.T) {
	t.Parallel()
	require.True(t, originAllowed([]string{"*"}, "https://anything.dev"))
	require.False(t, originAllowed(nil, "https://anything.dev"))
	require.False(t, originAllowed([]string{"*"}, "::not a url"))
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv.Handler(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "hello, world", w.Body.String())

	w = doRequest(t, srv.Handler(), http.MethodGet, "/api/projects", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv.Handler(), http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "texpad_http_requests_total")
}

func TestAuthenticate(t *testing.T) {
	signer, err := jwt.NewSigner([]byte("0123456789abcdef0123"), time.Hour)
	require.NoError(t, err)
	srv := newTestServer(t, WithSigner(signer))

	w := doRequest(t, srv.Handler(), http.MethodGet, "/api/projects", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, codeUnauthorized, decodeError(t, w).Code)

	w = doRequest(t, srv.Handler(), http.MethodGet, "/api/projects", "", map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := signer.Sign("alice")
	require.NoError(t, err)
	w = doRequest(t, srv.Handler(), http.MethodGet, "/api/projects", "", map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// health stays public
	w = doRequest(t, srv.Handler(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestNewServerRequiresStore(t *testing.T) {
	_, err := NewServer(nil)
	require.Error(t, err)
}

// TestRateLimit verifies throttled clients get 429 while health stays open.
func TestRateLimit(t *testing.T) {
	th, err := throttle.New(context.Background(), throttle.Config{
		TotalNPerSec: 1, TotalBurst: 1,
		EachNPerSec: 1, EachBurst: 1,
	})
	require.NoError(t, err)
	defer th.Close()
	srv := newTestServer(t, WithThrottle(th))

	limited := false
	for i := 0; i < 50; i++ {
		w := doRequest(t, srv.Handler(), http.MethodGet, "/api/projects", "", nil)
		if w.Code == http.StatusTooManyRequests {
			require.Equal(t, codeRateLimited, decodeError(t, w).Code)
			limited = true
			break
		}
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.True(t, limited)

	w := doRequest(t, srv.Handler(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

// TestMCPMount verifies /mcp is served behind authentication.
func TestMCPMount(t *testing.T) {
	signer, err := jwt.NewSigner([]byte("0123456789abcdef0123"), time.Hour)
	require.NoError(t, err)

	var hits atomic.Int64
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusAccepted)
	})
	srv := newTestServer(t, WithSigner(signer), WithMCP(mcpHandler))

	w := doRequest(t, srv.Handler(), http.MethodPost, "/mcp", `{}`, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Zero(t, hits.Load())

	token, err := signer.Sign("alice")
	require.NoError(t, err)
	w = doRequest(t, srv.Handler(), http.MethodPost, "/mcp", `{}`, map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.EqualValues(t, 1, hits.Load())

	// not mounted without a handler
	plain := newTestServer(t)
	w = doRequest(t, plain.Handler(), http.MethodPost, "/mcp", `{}`, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
