package recipe

import (
	"context"
	"fmt"
	"strings"

	"allergen-engine/internal/core/mapping"
	"allergen-engine/internal/pkg/common"

	"go.uber.org/zap"
)

const systemPrompt = "You are a professional culinary R&D assistant for a quick service restaurant. " +
	"Return ONLY valid JSON (no prose, no markdown, no code blocks). " +
	"Use ounces (oz) for ALL ingredient quantities. " +
	"Provide realistic yields and portions. " +
	"Keep ingredient names simple and generic. " +
	"Number all preparation steps clearly."

const userPromptTemplate = `Create a professional, scalable restaurant recipe for:

%s

Return ONLY valid JSON in this exact schema:
{
  "recipe_name": "string",
  "description": "string",
  "servings": number,
  "category": "string",
  "prep_time": number,
  "cook_time": number,
  "ingredients": [
    {"ingredient_name": "string", "oz": number}
  ],
  "instructions": "string"
}

Return ONLY the JSON object.`

// GenerateRequest asks for one recipe.
type GenerateRequest struct {
	Prompt         string   `json:"prompt" validate:"required"`
	Ingredients    []string `json:"ingredients"`
	MatchThreshold *int     `json:"match_threshold" validate:"omitempty,min=0,max=100"`
	Save           bool     `json:"save"`
}

// Validation lists problems with a generated recipe.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// GenerateResult is a generated recipe with its catalog mapping.
type GenerateResult struct {
	Recipe         common.Recipe          `json:"generated_recipe"`
	MappingNotes   []mapping.MappingNote  `json:"mapping_notes"`
	MappingSummary mapping.MappingSummary `json:"mapping_summary"`
	AIRawRecipe    mapping.AIRecipe       `json:"ai_raw_recipe"`
	Validation     Validation             `json:"validation"`
	Saved          bool                   `json:"saved"`
}

// Generate asks the AI for a recipe, maps it onto the catalog and optionally
// stores it. A recipe is only stored when it validates.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := common.ValidateStruct(req); err != nil {
		return nil, err
	}
	if !s.Enabled() {
		return nil, common.ErrAIUnavailable
	}

	catalog, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.completer.Complete(ctx, systemPrompt, buildUserPrompt(req.Prompt, req.Ingredients))
	if err != nil {
		return nil, err
	}
	ai, err := parseAIRecipe(raw)
	if err != nil {
		common.LogWarn("unusable AI recipe", zap.Error(err), zap.Int("response_length", len(raw)))
		return nil, err
	}

	threshold := mapping.DefaultAIThreshold
	if req.MatchThreshold != nil {
		threshold = *req.MatchThreshold
	}
	recipe, notes := mapping.ConvertAIRecipe(*ai, catalog, threshold)
	result := &GenerateResult{
		Recipe:         recipe,
		MappingNotes:   notes,
		MappingSummary: mapping.SummarizeNotes(notes),
		AIRawRecipe:    *ai,
		Validation:     ValidateRecipe(recipe),
	}

	common.LogInfo("recipe generated",
		zap.String("recipe", recipe.Name),
		zap.Int("mapped", result.MappingSummary.Mapped),
		zap.Int("unmapped", result.MappingSummary.Unmapped),
	)

	if req.Save && result.Validation.Valid {
		if err := s.repo.CreateRecipe(ctx, &result.Recipe); err != nil {
			return nil, err
		}
		result.Saved = true
	}
	return result, nil
}

func buildUserPrompt(prompt string, ingredients []string) string {
	var names []string
	for _, ing := range ingredients {
		if ing = strings.TrimSpace(ing); ing != "" {
			names = append(names, ing)
		}
	}
	if len(names) > 0 {
		prompt += fmt.Sprintf("\n\nInclude ingredients: %s.", strings.Join(names, ", "))
	}
	return fmt.Sprintf(userPromptTemplate, prompt)
}

// parseAIRecipe accepts fenced or prose-wrapped JSON.
func parseAIRecipe(raw string) (*mapping.AIRecipe, error) {
	cleaned := common.StripCodeFence(raw)
	var ai mapping.AIRecipe
	if err := common.ParseJSON(cleaned, &ai); err != nil {
		obj := common.ExtractJSONObject(cleaned)
		if obj == cleaned {
			return nil, common.Wrap(common.ErrInvalidAIResponse, err)
		}
		ai = mapping.AIRecipe{}
		if err := common.ParseJSON(obj, &ai); err != nil {
			return nil, common.Wrap(common.ErrInvalidAIResponse, err)
		}
	}
	if err := common.ValidateStruct(ai); err != nil {
		return nil, common.Wrap(common.ErrInvalidAIResponse, err)
	}
	return &ai, nil
}

// ValidateRecipe checks a converted recipe before it is stored.
func ValidateRecipe(r common.Recipe) Validation {
	errs := []string{}
	if err := common.ValidateStruct(r); err != nil {
		errs = append(errs, err.Error())
	}
	if len(r.Ingredients) == 0 {
		errs = append(errs, "no ingredients matched the product catalog")
	}
	if strings.TrimSpace(r.Instructions) == "" {
		errs = append(errs, "instructions are empty")
	}
	if r.Servings <= 0 {
		errs = append(errs, "servings must be positive")
	}
	return Validation{Valid: len(errs) == 0, Errors: errs}
}
