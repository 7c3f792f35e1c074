package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/corebridge/corebridge/pkg/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAllowedHostsEmptyWhitelistAcceptsAll(t *testing.T) {
	handler := AllowedHosts(&config.Config{})(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Host = "anything.example.com"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAllowedHostsRejectsUnknownHost(t *testing.T) {
	cfg := &config.Config{AllowedHosts: []string{"gateway.example.com"}}
	handler := AllowedHosts(cfg)(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Host = "evil.example.com"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAllowedHostsIgnoresPort(t *testing.T) {
	cfg := &config.Config{AllowedHosts: []string{"gateway.example.com"}}
	handler := AllowedHosts(cfg)(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Host = "gateway.example.com:8080"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInspectRequestsRejectsInjection(t *testing.T) {
	handler := InspectRequests(true, zap.NewNop())(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/products/products/?name=1%27%20OR%20%271%27=%271", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "query inspection")
}

func TestInspectRequestsPassesCleanQuery(t *testing.T) {
	handler := InspectRequests(true, zap.NewNop())(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/products/products/?join&aggregate=true&page=2", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInspectRequestsDisabled(t *testing.T) {
	handler := InspectRequests(false, zap.NewNop())(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/products/products/?name=1%27%20OR%20%271%27=%271", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSWhitelistedOrigin(t *testing.T) {
	cfg := &config.CORSConfig{Whitelist: []string{"https://app.example.com"}}
	handler := CORS(cfg)(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/products/products/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSUnlistedOriginGetsNoHeader(t *testing.T) {
	cfg := &config.CORSConfig{Whitelist: []string{"https://app.example.com"}}
	handler := CORS(cfg)(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/products/products/", nil)
	r.Header.Set("Origin", "https://other.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerCapturesStatus(t *testing.T) {
	handler := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
}
