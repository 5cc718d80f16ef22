package allergen

import (
	"context"
	"strings"
	"time"

	"allergen-engine/internal/pkg/common"

	"go.uber.org/zap"
)

// SavedMetadata is stored next to a recipe's allergens.
type SavedMetadata struct {
	DetectionMethods []Source  `json:"detection_methods"`
	LastUpdated      time.Time `json:"last_updated"`
	TotalDetected    int       `json:"total_detected"`
	FDATop9Count     int       `json:"fda_top_9_count"`
}

// SavedAllergens is what the persistence sink returns for a recipe.
type SavedAllergens struct {
	Allergens        []string                   `json:"allergens"`
	AllergenDetails  map[string]*CombinedRecord `json:"allergen_details"`
	AllergenMetadata SavedMetadata              `json:"allergen_metadata"`
	RecipeName       string                     `json:"recipe_name"`
}

// RecipeStore loads recipes and persists reconciled reports.
// LoadRecipe and Save return common.ErrRecipeNotFound for unknown names.
type RecipeStore interface {
	LoadRecipe(ctx context.Context, name string) (*common.Recipe, error)
	Save(ctx context.Context, recipeName string, report *Report) error
	Get(ctx context.Context, recipeName string) (*SavedAllergens, error)
}

// AnalyzeRequest asks for an analysis of an ad-hoc ingredient list.
type AnalyzeRequest struct {
	Ingredients     []common.Ingredient `json:"ingredients" validate:"required,min=1"`
	DBConfidence    *int                `json:"db_confidence" validate:"omitempty,min=0,max=100"`
	ManualAllergens []string            `json:"manual_allergens"`
	RecipeName      string              `json:"recipe_name"`
}

// AnalyzeRecipeRequest asks for an analysis of a stored recipe.
type AnalyzeRecipeRequest struct {
	RecipeName      string   `json:"recipe_name" validate:"required"`
	DBConfidence    *int     `json:"db_confidence" validate:"omitempty,min=0,max=100"`
	ManualAllergens []string `json:"manual_allergens"`
	Save            bool     `json:"save"`
}

// Analysis holds each source's view and the reconciled summary.
// AIAnalysis is null when the AI path was unavailable.
type Analysis struct {
	DatabaseAnalysis *Detection `json:"database_analysis"`
	AIAnalysis       *Detection `json:"ai_analysis"`
	AIUnavailable    string     `json:"ai_unavailable_reason,omitempty"`
	CombinedSummary  *Report    `json:"combined_summary"`
}

// RecipeAnalysis adds the guest report and save status for a stored recipe.
type RecipeAnalysis struct {
	Analysis
	Report *GuestReport `json:"report"`
	Saved  bool         `json:"saved"`
}

// Analyzer runs the database and AI detectors and reconciles them.
type Analyzer struct {
	ref               *PatternDB
	ai                *AIDetector
	store             RecipeStore
	defaultConfidence int
}

// NewAnalyzer creates an Analyzer. ai and store may be nil.
func NewAnalyzer(ref *PatternDB, ai *AIDetector, store RecipeStore, defaultConfidence int) *Analyzer {
	if defaultConfidence <= 0 {
		defaultConfidence = DefaultMinConfidence
	}
	return &Analyzer{ref: ref, ai: ai, store: store, defaultConfidence: defaultConfidence}
}

func (a *Analyzer) confidence(v *int) int {
	if v == nil {
		return a.defaultConfidence
	}
	return *v
}

// run is the per-recipe pipeline: database, then AI, then reconcile.
func (a *Analyzer) run(ctx context.Context, ingredients []common.Ingredient, recipeName string, minConfidence int, useDB, useAI bool, manual []string) Analysis {
	db := Unavailable("not requested")
	if useDB {
		db = Ok(DetectDatabase(ingredients, a.ref, minConfidence))
	}
	ai := Unavailable("not requested")
	if useAI {
		ai = a.ai.Detect(ctx, ingredients, recipeName)
	}

	return Analysis{
		DatabaseAnalysis: db.Detection,
		AIAnalysis:       ai.Detection,
		AIUnavailable:    ai.Reason,
		CombinedSummary:  Combine(a.ref, db, ai, manual),
	}
}

// Analyze checks an ingredient list with both detectors.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	if err := common.ValidateStruct(req); err != nil {
		return nil, err
	}
	res := a.run(ctx, req.Ingredients, req.RecipeName, a.confidence(req.DBConfidence), true, true, req.ManualAllergens)
	return &res, nil
}

// AnalyzeRecipe analyzes a stored recipe, builds its guest report and optionally saves the result.
// A failed save is logged and reported through Saved rather than failing the analysis.
func (a *Analyzer) AnalyzeRecipe(ctx context.Context, req AnalyzeRecipeRequest) (*RecipeAnalysis, error) {
	req.RecipeName = strings.TrimSpace(req.RecipeName)
	if err := common.ValidateStruct(req); err != nil {
		return nil, err
	}
	if a.store == nil {
		return nil, common.ErrServiceUnavailable
	}

	recipe, err := a.store.LoadRecipe(ctx, req.RecipeName)
	if err != nil {
		return nil, err
	}

	res := a.run(ctx, recipe.Ingredients, req.RecipeName, a.confidence(req.DBConfidence), true, true, req.ManualAllergens)
	out := &RecipeAnalysis{
		Analysis: res,
		Report:   GenerateReport(req.RecipeName, res.CombinedSummary, recipe.Ingredients),
	}

	if req.Save {
		if err := a.store.Save(ctx, req.RecipeName, res.CombinedSummary); err != nil {
			common.LogWarn("failed to save allergen data", zap.String("recipe", req.RecipeName), zap.Error(err))
		} else {
			out.Saved = true
		}
	}
	return out, nil
}

// GetRecipeAllergens reads saved allergen data back from the store.
func (a *Analyzer) GetRecipeAllergens(ctx context.Context, recipeName string) (*SavedAllergens, error) {
	if a.store == nil {
		return nil, common.ErrServiceUnavailable
	}
	return a.store.Get(ctx, recipeName)
}
