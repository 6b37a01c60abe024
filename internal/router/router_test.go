package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"launchpad-backend/internal/config"
	"launchpad-backend/internal/handlers"
)

func testEngine(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.CORS.AllowedOrigins = origins
	cfg.CORS.AllowCredentials = true

	return SetupRouter(cfg, logger, Handlers{
		Health:    &handlers.HealthHandler{},
		Tokens:    &handlers.TokenHandler{},
		Trade:     &handlers.TradeHandler{},
		Staking:   &handlers.StakingHandler{},
		Price:     &handlers.PriceHandler{},
		Admin:     &handlers.AdminAuthHandler{},
		WebSocket: &handlers.WebSocketHandler{},
		Auth:      handlers.NewTokenIssuer("router-test", time.Hour),
	})
}

func serve(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWritesRequireOperatorToken(t *testing.T) {
	r := testEngine(nil)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/tokens"},
		{http.MethodPost, "/api/trade/sessions"},
		{http.MethodPut, "/api/trade/sessions/s-1/input"},
		{http.MethodPost, "/api/trade/sessions/s-1/submit"},
		{http.MethodDelete, "/api/trade/sessions/s-1"},
		{http.MethodPost, "/api/staking/deposit"},
		{http.MethodPost, "/api/staking/withdraw"},
	} {
		w := serve(r, route.method, route.path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
		assert.Contains(t, w.Body.String(), "MISSING_AUTH_HEADER", route.path)
	}
}

func TestPingAndUnknownRoute(t *testing.T) {
	r := testEngine(nil)

	w := serve(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())

	w = serve(r, http.MethodGet, "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)
}

func TestCORS(t *testing.T) {
	r := testEngine(nil)
	w := serve(r, http.MethodOptions, "/api/tokens", http.Header{"Origin": {"https://anywhere.example"}})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	r = testEngine([]string{"https://app.example"})
	w = serve(r, http.MethodGet, "/ping", http.Header{"Origin": {"https://app.example"}})
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = serve(r, http.MethodGet, "/ping", http.Header{"Origin": {"https://evil.example"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsIsLocalOnly(t *testing.T) {
	r := testEngine(nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
