package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanline/dsnscan/internal/analysis/processor"
	"github.com/scanline/dsnscan/internal/buildinfo"
	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/observability"
	"github.com/scanline/dsnscan/internal/testutil"
)

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()

	settings := conf.Default()
	proc := processor.New(conf.NewStore(settings), processor.WithLogger(logger.NewDiscardLogger()))
	opts = append([]ServerOption{WithLogger(logger.NewDiscardLogger())}, opts...)
	s, err := New(settings, proc, opts...)
	require.NoError(t, err)
	return s
}

func TestServer_RoutesAndMetrics(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, WithMetrics(m), WithBuildInfo(buildinfo.NewContext("0.4.0", "", "")))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"0.4.0"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_NoMetricsRoute(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ServeUntilCancelled(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/v1/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:gosec,noctx // test-local address
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	err = testutil.Receive(t, errCh, testutil.DefaultTestTimeout, "server did not stop after cancellation")
	require.NoError(t, err)
}

func TestNew_RequiresProcessor(t *testing.T) {
	t.Parallel()

	_, err := New(conf.Default(), nil)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing port", func(c *Config) { c.Listen = "localhost" }, true},
		{"empty body limit", func(c *Config) { c.BodyLimit = "" }, true},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	s := conf.Default()
	s.Diagnostics.Listen = "127.0.0.1:9911"
	s.Debug = true

	cfg := ConfigFromSettings(s)
	assert.Equal(t, "127.0.0.1:9911", cfg.Listen)
	assert.True(t, cfg.Debug)
	assert.Equal(t, DefaultBodyLimit, cfg.BodyLimit)
}
