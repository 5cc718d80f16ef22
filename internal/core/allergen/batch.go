package allergen

import (
	"context"
	"errors"
	"strings"

	"allergen-engine/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch detection modes.
const (
	ModeDatabaseOnly = "Database Only"
	ModeAIOnly       = "AI Only"
	ModeBoth         = "Both"
)

// ParseMode returns which detectors a batch mode runs. Empty means both.
func ParseMode(mode string) (useDB, useAI bool, err error) {
	m := strings.TrimSpace(mode)
	switch {
	case m == "" || strings.EqualFold(m, ModeBoth):
		return true, true, nil
	case strings.EqualFold(m, ModeDatabaseOnly):
		return true, false, nil
	case strings.HasPrefix(strings.ToLower(m), strings.ToLower(ModeAIOnly)):
		// also accepts "AI Only (requires API key)"
		return false, true, nil
	default:
		return false, false, common.NewValidationError("detection_method must be one of Database Only, AI Only, Both")
	}
}

// BatchRequest analyzes several stored recipes.
type BatchRequest struct {
	RecipeNames  []string `json:"recipe_names" validate:"required,min=1,dive,required"`
	Method       string   `json:"detection_method"`
	DBConfidence *int     `json:"db_confidence" validate:"omitempty,min=0,max=100"`
	AutoSave     *bool    `json:"auto_save"`
}

// BatchRow summarizes one recipe of a batch. Methods is "missing" for unknown recipes.
type BatchRow struct {
	Recipe    string `json:"recipe"`
	Allergens int    `json:"allergens"`
	FDATop9   int    `json:"fda_top_9"`
	Methods   string `json:"methods"`
}

// BatchResult holds rows in request order.
type BatchResult struct {
	Results []BatchRow `json:"results"`
	Saved   bool       `json:"saved"`
}

// BatchAnalyzer runs recipe pipelines in parallel.
type BatchAnalyzer struct {
	analyzer    *Analyzer
	concurrency int
}

// NewBatchAnalyzer creates a BatchAnalyzer running at most concurrency recipes at once.
func NewBatchAnalyzer(analyzer *Analyzer, concurrency int) *BatchAnalyzer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchAnalyzer{analyzer: analyzer, concurrency: concurrency}
}

// Run analyzes every named recipe. Each recipe's detect, reconcile and save steps
// run in order; recipes run concurrently. Saving defaults to on.
func (b *BatchAnalyzer) Run(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if err := common.ValidateStruct(req); err != nil {
		return nil, err
	}
	useDB, useAI, err := ParseMode(req.Method)
	if err != nil {
		return nil, err
	}
	if b.analyzer.store == nil {
		return nil, common.ErrServiceUnavailable
	}

	autoSave := req.AutoSave == nil || *req.AutoSave
	minConfidence := b.analyzer.confidence(req.DBConfidence)
	rows := make([]BatchRow, len(req.RecipeNames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, name := range req.RecipeNames {
		i, name := i, name
		g.Go(func() error {
			row, err := b.analyzeOne(gctx, name, minConfidence, useDB, useAI, autoSave)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	common.LogInfo("batch allergen analysis finished",
		zap.Int("recipes", len(rows)),
		zap.Bool("auto_save", autoSave),
	)
	return &BatchResult{Results: rows, Saved: autoSave}, nil
}

func (b *BatchAnalyzer) analyzeOne(ctx context.Context, name string, minConfidence int, useDB, useAI, autoSave bool) (BatchRow, error) {
	store := b.analyzer.store
	recipe, err := store.LoadRecipe(ctx, name)
	if errors.Is(err, common.ErrRecipeNotFound) {
		return BatchRow{Recipe: name, Methods: "missing"}, nil
	}
	if err != nil {
		return BatchRow{}, err
	}

	res := b.analyzer.run(ctx, recipe.Ingredients, name, minConfidence, useDB, useAI, nil)
	report := res.CombinedSummary

	if autoSave {
		if err := store.Save(ctx, name, report); err != nil {
			common.LogWarn("failed to save batch allergen data", zap.String("recipe", name), zap.Error(err))
		}
	}

	methods := make([]string, 0, len(report.DetectionMethods))
	for _, m := range report.DetectionMethods {
		methods = append(methods, string(m))
	}
	return BatchRow{
		Recipe:    name,
		Allergens: len(report.Allergens),
		FDATop9:   report.FDATop9Count,
		Methods:   strings.Join(methods, ", "),
	}, nil
}
