package allergen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	allergenService "allergen-engine/internal/core/allergen"
	"allergen-engine/internal/infrastructure/store"
	"allergen-engine/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ref, err := allergenService.LoadPatternDB("")
	require.NoError(t, err)
	st, err := store.Open(store.DriverSQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.CreateRecipe(context.Background(), &common.Recipe{
		Name: "Pancakes",
		Ingredients: []common.Ingredient{
			{ProductName: "Whole Milk", Quantity: 1, Unit: "quart"},
			{ProductName: "Eggs", Quantity: 1, Unit: "dozen"},
		},
	}))

	analyzer := allergenService.NewAnalyzer(ref, allergenService.NewAIDetector(nil, ref, 0), st, 0)
	h := NewHandler(analyzer, allergenService.NewBatchAnalyzer(analyzer, 2), false)

	r := gin.New()
	h.Register(r.Group("/allergens"))
	return r
}

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func TestHandleAnalyze(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodPost, "/allergens/analyze",
		`{"ingredients": [{"product_name": "Whole Milk", "quantity": 1, "unit": "quart"}], "manual_allergens": ["sesame"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		AIAnalysis      *json.RawMessage `json:"ai_analysis"`
		AIUnavailable   string           `json:"ai_unavailable_reason"`
		CombinedSummary struct {
			Allergens        []string `json:"allergens"`
			DetectionMethods []string `json:"detection_methods"`
		} `json:"combined_summary"`
	}
	decode(t, w, &res)
	assert.Nil(t, res.AIAnalysis)
	assert.NotEmpty(t, res.AIUnavailable)
	assert.Equal(t, []string{"milk", "sesame"}, res.CombinedSummary.Allergens)
	assert.Equal(t, []string{"database", "manual"}, res.CombinedSummary.DetectionMethods)
}

func TestHandleAnalyzeRejectsBadInput(t *testing.T) {
	r := setupRouter(t)

	for name, body := range map[string]string{
		"malformed":         `{"ingredients": [`,
		"empty ingredients": `{"ingredients": []}`,
		"confidence range":  `{"ingredients": [{"raw_name": "milk"}], "db_confidence": 101}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := perform(r, http.MethodPost, "/allergens/analyze", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var e common.ErrorResponse
			decode(t, w, &e)
			assert.Equal(t, common.ErrCodeInvalidRequest, e.Code)
			assert.Empty(t, e.Details, "details are only sent in debug mode")
		})
	}
}

func TestHandleAnalyzeRecipeAndReadBack(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodGet, "/allergens/recipe/Pancakes", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "nothing saved yet")

	w = perform(r, http.MethodPost, "/allergens/analyze-recipe", `{"recipe_name": "Pancakes", "save": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Saved  bool `json:"saved"`
		Report struct {
			RecipeName     string   `json:"recipe_name"`
			FDATop9Present int      `json:"fda_top_9_present"`
			AllIngredients []string `json:"all_ingredients"`
		} `json:"report"`
		CombinedSummary struct {
			Allergens []string `json:"allergens"`
		} `json:"combined_summary"`
	}
	decode(t, w, &res)
	assert.True(t, res.Saved)
	assert.Equal(t, "Pancakes", res.Report.RecipeName)
	assert.Equal(t, []string{"Whole Milk", "Eggs"}, res.Report.AllIngredients)
	assert.ElementsMatch(t, []string{"milk", "eggs"}, res.CombinedSummary.Allergens)

	w = perform(r, http.MethodGet, "/allergens/recipe/Pancakes", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var saved allergenService.SavedAllergens
	decode(t, w, &saved)
	assert.Equal(t, "Pancakes", saved.RecipeName)
	assert.ElementsMatch(t, []string{"milk", "eggs"}, saved.Allergens)
	assert.Equal(t, 2, saved.AllergenMetadata.FDATop9Count)
}

func TestHandleAnalyzeRecipeNotFound(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodPost, "/allergens/analyze-recipe", `{"recipe_name": "Waffles"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var e common.ErrorResponse
	decode(t, w, &e)
	assert.Equal(t, common.ErrCodeRecipeNotFound, e.Code)
}

func TestHandleBatchAnalyze(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodPost, "/allergens/batch-analyze",
		`{"recipe_names": ["Pancakes", "Ghost"], "detection_method": "Database Only", "auto_save": false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res allergenService.BatchResult
	decode(t, w, &res)
	assert.False(t, res.Saved)
	assert.Equal(t, []allergenService.BatchRow{
		{Recipe: "Pancakes", Allergens: 2, FDATop9: 2, Methods: "database"},
		{Recipe: "Ghost", Methods: "missing"},
	}, res.Results)

	w = perform(r, http.MethodPost, "/allergens/batch-analyze", `{"recipe_names": ["Pancakes"], "detection_method": "Psychic"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
