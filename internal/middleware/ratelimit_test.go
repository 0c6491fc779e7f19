package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(rl.RateLimit())
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func doPing(engine *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitExhaustsBurst(t *testing.T) {
	engine := newLimitedRouter(NewRateLimiter(0.001, 2))

	assert.Equal(t, http.StatusOK, doPing(engine, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, doPing(engine, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, doPing(engine, "10.0.0.1:1234"))
}

func TestRateLimitIsPerClient(t *testing.T) {
	engine := newLimitedRouter(NewRateLimiter(0.001, 1))

	assert.Equal(t, http.StatusOK, doPing(engine, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, doPing(engine, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, doPing(engine, "10.0.0.2:1234"), "another client keeps its own bucket")
}
