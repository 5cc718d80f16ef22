package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	allergenService "allergen-engine/internal/core/allergen"
	"allergen-engine/internal/core/mapping"
	recipeService "allergen-engine/internal/core/recipe"
	"allergen-engine/internal/infrastructure/config"
	"allergen-engine/internal/infrastructure/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Version = "test"
	cfg.Server.MaxBodyBytes = 1 << 20
	cfg.Server.AllowedOrigins = []string{"https://menu.example.com"}
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 1000, Window: time.Minute}
	cfg.DedupWindow = time.Second
	cfg.Matching.MapThreshold = mapping.DefaultThreshold
	return cfg
}

func testDeps(t *testing.T) Dependencies {
	t.Helper()
	ref, err := allergenService.LoadPatternDB("")
	require.NoError(t, err)
	st, err := store.Open(store.DriverSQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	analyzer := allergenService.NewAnalyzer(ref, allergenService.NewAIDetector(nil, ref, 0), st, 0)
	return Dependencies{
		Analyzer: analyzer,
		Batch:    allergenService.NewBatchAnalyzer(analyzer, 2),
		Mapper:   mapping.NewMapper(5),
		Catalog:  st,
		Recipes:  recipeService.NewService(nil, st),
		Library:  st,
		Storage:  st,
	}
}

func request(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRouterRoutes(t *testing.T) {
	r := SetupRouter(testConfig(), testDeps(t))

	tests := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/live", "", http.StatusOK},
		{http.MethodPost, "/api/v1/allergens/analyze", `{"ingredients": [{"raw_name": "tahini"}]}`, http.StatusOK},
		{http.MethodGet, "/api/v1/allergens/recipe/Unknown", "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/ingredients/map", `{"ingredients": [{"raw_name": "salt"}]}`, http.StatusOK},
		{http.MethodPost, "/api/v1/recipes/generate", `{"prompt": "soup"}`, http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/recipes", "", http.StatusOK},
		{http.MethodGet, "/api/v1/recipes/not-a-uuid", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/nowhere", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := request(r, tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}

	w := request(r, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Contains(t, w.Body.String(), `"NOT_FOUND"`)
}

func TestSetupRouterMetrics(t *testing.T) {
	r := SetupRouter(testConfig(), testDeps(t))
	request(r, http.MethodGet, "/live", "", nil)

	w := request(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/live",status_code="200"}`)
}

func TestSetupRouterCORS(t *testing.T) {
	r := SetupRouter(testConfig(), testDeps(t))

	w := request(r, http.MethodOptions, "/api/v1/allergens/analyze", "", map[string]string{
		"Origin":                        "https://menu.example.com",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://menu.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = request(r, http.MethodGet, "/live", "", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSetupRouterRejectsDuplicatePosts(t *testing.T) {
	r := SetupRouter(testConfig(), testDeps(t))
	body := `{"ingredients": [{"raw_name": "milk"}]}`

	assert.Equal(t, http.StatusOK, request(r, http.MethodPost, "/api/v1/allergens/analyze", body, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, http.MethodPost, "/api/v1/allergens/analyze", body, nil).Code)
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)
	c := corsConfig([]string{"https://a.example"})
	assert.False(t, c.AllowAllOrigins)
	assert.True(t, c.AllowCredentials)
	assert.NoError(t, c.Validate())
}
