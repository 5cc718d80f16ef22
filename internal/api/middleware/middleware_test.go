package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.POST("/echo", func(c *gin.Context) {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecovery(t *testing.T) {
	r := newEngine(Recovery(), Logger())
	w := do(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestBodySizeLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(16))

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", `{"a":1}`).Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(r, http.MethodPost, "/echo", `{"a":"`+strings.Repeat("x", 32)+`"}`).Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(2, time.Hour))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "").Code)
	w := do(r, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestDeduplication(t *testing.T) {
	d := NewDeduplicator(time.Hour)
	r := newEngine(d.Middleware())

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", `{"a":1}`).Code)
	w := do(r, http.MethodPost, "/echo", `{"a":1}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/echo", `{"a":2}`).Code, "different body")
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ping", "").Code, "GET is never deduplicated")

	echoed := do(newEngine(NewDeduplicator(time.Hour).Middleware()), http.MethodPost, "/echo", `{"a":3}`)
	assert.JSONEq(t, `{"a":3}`, echoed.Body.String(), "body is restored for the handler")
}

func TestDeduplicatorWindow(t *testing.T) {
	d := NewDeduplicator(time.Second)
	now := time.Now()
	assert.False(t, d.seen("k", now))
	assert.True(t, d.seen("k", now.Add(500*time.Millisecond)))
	assert.False(t, d.seen("k", now.Add(3*time.Second)))
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
		c.String(http.StatusGatewayTimeout, c.Request.Context().Err().Error())
	})
	w := do(r, http.MethodGet, "/slow", "")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "context deadline exceeded", w.Body.String())
}

func TestTimeoutWritesGatewayTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(time.Millisecond))
	r.GET("/silent", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	w := do(r, http.MethodGet, "/silent", "")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "GATEWAY_TIMEOUT")
}
