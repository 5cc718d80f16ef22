// Package recipe generates restaurant recipes with the AI and maps their
// ingredients onto the product catalog.
package recipe

import (
	"context"

	"allergen-engine/internal/core/mapping"
	"allergen-engine/internal/pkg/common"
)

// Completer returns a completion for a system+user prompt pair.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Repository supplies the catalog and stores generated recipes.
type Repository interface {
	ListProducts(ctx context.Context) ([]mapping.Product, error)
	CreateRecipe(ctx context.Context, recipe *common.Recipe) error
}

// Service generates recipes.
type Service struct {
	completer Completer
	repo      Repository
}

// NewService creates a Service. completer may be nil when no AI key is configured.
func NewService(completer Completer, repo Repository) *Service {
	return &Service{completer: completer, repo: repo}
}

// Enabled reports whether generation can run.
func (s *Service) Enabled() bool {
	return s.completer != nil && s.repo != nil
}
