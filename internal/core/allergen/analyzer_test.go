package allergen

import (
	"context"
	"sync"
	"testing"
	"time"

	"allergen-engine/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	recipes map[string]*common.Recipe
	saved   map[string]*Report
	saveErr error
}

func newMemStore(recipes ...common.Recipe) *memStore {
	s := &memStore{recipes: map[string]*common.Recipe{}, saved: map[string]*Report{}}
	for i := range recipes {
		s.recipes[recipes[i].Name] = &recipes[i]
	}
	return s
}

func (s *memStore) LoadRecipe(_ context.Context, name string) (*common.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipes[name]
	if !ok {
		return nil, common.ErrRecipeNotFound
	}
	return r, nil
}

func (s *memStore) Save(_ context.Context, name string, report *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.recipes[name]; !ok {
		return common.ErrRecipeNotFound
	}
	s.saved[name] = report
	return nil
}

func (s *memStore) Get(_ context.Context, name string) (*SavedAllergens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.saved[name]
	if !ok {
		return nil, common.ErrRecipeNotFound
	}
	return &SavedAllergens{
		Allergens:       r.Allergens,
		AllergenDetails: r.AllergenDetails,
		AllergenMetadata: SavedMetadata{
			DetectionMethods: r.DetectionMethods,
			LastUpdated:      time.Now(),
			TotalDetected:    r.TotalDetected,
			FDATop9Count:     r.FDATop9Count,
		},
		RecipeName: name,
	}, nil
}

func (s *memStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func pancakes() common.Recipe {
	return common.Recipe{
		Name: "Pancakes",
		Ingredients: []common.Ingredient{
			{ProductName: "Whole Milk", Quantity: 1, Unit: "quart"},
			{ProductName: "Eggs", Quantity: 1, Unit: "dozen"},
			{ProductName: "Flour", Quantity: 2, Unit: "lb"},
		},
	}
}

const milkAIResponse = `{"allergens": [{"allergen": "milk", "confidence": 95, "reason": "milk", "ingredients": ["Whole Milk"]}]}`

func TestAnalyze(t *testing.T) {
	ref := testRef(t)

	t.Run("rejects empty ingredients", func(t *testing.T) {
		a := NewAnalyzer(ref, nil, nil, 0)
		_, err := a.Analyze(context.Background(), AnalyzeRequest{})
		require.Error(t, err)
		assert.True(t, common.IsValidationError(err))
	})

	t.Run("AI unavailable still reports database findings", func(t *testing.T) {
		a := NewAnalyzer(ref, NewAIDetector(nil, ref, 0), nil, 0)
		res, err := a.Analyze(context.Background(), AnalyzeRequest{Ingredients: pancakes().Ingredients})
		require.NoError(t, err)

		assert.Nil(t, res.AIAnalysis)
		assert.NotEmpty(t, res.AIUnavailable)
		assert.Equal(t, []string{"milk", "eggs"}, res.DatabaseAnalysis.DetectedAllergens)
		assert.ElementsMatch(t, []string{"eggs", "milk"}, res.CombinedSummary.Allergens)
		assert.Equal(t, []Source{SourceDatabase}, res.CombinedSummary.DetectionMethods)
	})

	t.Run("both sources and manual tags", func(t *testing.T) {
		ai := NewAIDetector(&fakeCompleter{response: milkAIResponse}, ref, 0)
		a := NewAnalyzer(ref, ai, nil, 0)
		conf := 80
		res, err := a.Analyze(context.Background(), AnalyzeRequest{
			Ingredients:     pancakes().Ingredients,
			DBConfidence:    &conf,
			ManualAllergens: []string{"corn"},
		})
		require.NoError(t, err)

		require.NotNil(t, res.AIAnalysis)
		milk := res.CombinedSummary.AllergenDetails["milk"]
		assert.Equal(t, []Source{SourceDatabase, SourceAI}, milk.Sources)
		assert.Equal(t, 100, milk.Confidence)
		assert.Equal(t, "corn", res.CombinedSummary.Allergens[len(res.CombinedSummary.Allergens)-1])
	})
}

func TestAnalyzeRecipe(t *testing.T) {
	ref := testRef(t)
	store := newMemStore(pancakes())
	a := NewAnalyzer(ref, nil, store, 0)

	_, err := a.AnalyzeRecipe(context.Background(), AnalyzeRecipeRequest{RecipeName: "Waffles"})
	assert.ErrorIs(t, err, common.ErrRecipeNotFound)

	_, err = a.AnalyzeRecipe(context.Background(), AnalyzeRecipeRequest{RecipeName: "  "})
	assert.True(t, common.IsValidationError(err))

	res, err := a.AnalyzeRecipe(context.Background(), AnalyzeRecipeRequest{RecipeName: "Pancakes", Save: true})
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.Equal(t, "Pancakes", res.Report.RecipeName)
	assert.Equal(t, 2, res.Report.FDATop9Present)
	assert.Equal(t, []string{"Whole Milk", "Eggs", "Flour"}, res.Report.AllIngredients)

	saved, err := a.GetRecipeAllergens(context.Background(), "Pancakes")
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", saved.RecipeName)
	assert.Equal(t, 2, saved.AllergenMetadata.FDATop9Count)

	store.saveErr = common.ErrStorage
	res, err = a.AnalyzeRecipe(context.Background(), AnalyzeRecipeRequest{RecipeName: "Pancakes", Save: true})
	require.NoError(t, err, "a failed save does not fail the analysis")
	assert.False(t, res.Saved)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		mode    string
		db, ai  bool
		invalid bool
	}{
		{"", true, true, false},
		{"Both", true, true, false},
		{"Database Only", true, false, false},
		{"database only", true, false, false},
		{"AI Only", false, true, false},
		{"AI Only (requires API key)", false, true, false},
		{"Everything", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			db, ai, err := ParseMode(tt.mode)
			if tt.invalid {
				assert.True(t, common.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.db, db)
			assert.Equal(t, tt.ai, ai)
		})
	}
}

func TestBatchRun(t *testing.T) {
	ref := testRef(t)
	ai := NewAIDetector(&fakeCompleter{response: milkAIResponse}, ref, 0)

	t.Run("database only keeps request order", func(t *testing.T) {
		store := newMemStore(pancakes())
		b := NewBatchAnalyzer(NewAnalyzer(ref, ai, store, 0), 2)

		res, err := b.Run(context.Background(), BatchRequest{
			RecipeNames: []string{"Pancakes", "Ghost", "Pancakes"},
			Method:      ModeDatabaseOnly,
		})
		require.NoError(t, err)

		assert.True(t, res.Saved, "auto save defaults to on")
		assert.Equal(t, []BatchRow{
			{Recipe: "Pancakes", Allergens: 2, FDATop9: 2, Methods: "database"},
			{Recipe: "Ghost", Allergens: 0, FDATop9: 0, Methods: "missing"},
			{Recipe: "Pancakes", Allergens: 2, FDATop9: 2, Methods: "database"},
		}, res.Results)
		assert.Equal(t, 1, store.savedCount())
	})

	t.Run("AI only without saving", func(t *testing.T) {
		store := newMemStore(pancakes())
		b := NewBatchAnalyzer(NewAnalyzer(ref, ai, store, 0), 4)
		off := false

		res, err := b.Run(context.Background(), BatchRequest{
			RecipeNames: []string{"Pancakes"},
			Method:      "AI Only (requires API key)",
			AutoSave:    &off,
		})
		require.NoError(t, err)
		assert.False(t, res.Saved)
		assert.Equal(t, []BatchRow{{Recipe: "Pancakes", Allergens: 1, FDATop9: 1, Methods: "ai"}}, res.Results)
		assert.Equal(t, 0, store.savedCount())
	})

	t.Run("invalid requests", func(t *testing.T) {
		b := NewBatchAnalyzer(NewAnalyzer(ref, ai, newMemStore(), 0), 1)

		_, err := b.Run(context.Background(), BatchRequest{})
		assert.True(t, common.IsValidationError(err))

		_, err = b.Run(context.Background(), BatchRequest{RecipeNames: []string{"x"}, Method: "Sometimes"})
		assert.True(t, common.IsValidationError(err))
	})
}
