package allergen

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"allergen-engine/internal/pkg/common"
	"allergen-engine/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Completer is the text-completion capability the AI path depends on.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// defaultAIConfidence applies when the AI omits a confidence or sends one
// that is not a number.
const defaultAIConfidence = 80

const aiSystemPrompt = `You are a food safety and allergen detection expert. Analyze recipe ingredients and identify potential allergens.

Focus on FDA's Major Food Allergens (Top 9):
1. Milk (dairy products)
2. Eggs
3. Fish (finned fish)
4. Shellfish (crustacean shellfish)
5. Tree nuts (almonds, walnuts, cashews, etc.)
6. Peanuts
7. Wheat
8. Soybeans (soy)
9. Sesame

Also consider these common allergens:
- Gluten (wheat, barley, rye)
- Corn
- Sulfites
- Nightshades (tomatoes, peppers, eggplant, potatoes)
- Mustard
- Celery
- Lupin

Return ONLY valid JSON (no markdown, no code blocks) in this exact format:
{
  "allergens": [
    {
      "allergen": "milk",
      "confidence": 95,
      "reason": "Contains butter and cheese",
      "ingredients": ["Butter", "Parmesan Cheese"]
    }
  ],
  "notes": "Brief summary of allergen concerns"
}`

type aiAllergen struct {
	Allergen    string               `json:"allergen"`
	Confidence  common.OptionalFloat `json:"confidence"`
	Reason      string               `json:"reason"`
	Ingredients []string             `json:"ingredients"`
}

type aiResponse struct {
	Allergens *[]aiAllergen `json:"allergens"`
	Notes     string        `json:"notes"`
}

// AIDetector asks a Completer to list allergens and shapes the answer like a database detection.
type AIDetector struct {
	completer Completer
	ref       *PatternDB
	timeout   time.Duration
}

// NewAIDetector creates an AIDetector. A nil completer makes every call unavailable.
// timeout bounds each call when positive.
func NewAIDetector(completer Completer, ref *PatternDB, timeout time.Duration) *AIDetector {
	return &AIDetector{completer: completer, ref: ref, timeout: timeout}
}

// Enabled reports whether a completer is configured.
func (d *AIDetector) Enabled() bool {
	return d != nil && d.completer != nil
}

// Detect never fails: any transport, parse or shape problem becomes Unavailable.
func (d *AIDetector) Detect(ctx context.Context, ingredients []common.Ingredient, recipeName string) Outcome {
	out := d.detect(ctx, ingredients, recipeName)
	if out.Available() {
		metrics.AIDetectionOutcome("ok")
		metrics.AllergenDetected(string(SourceAI), len(out.Detection.DetectedAllergens))
	} else {
		metrics.AIDetectionOutcome("unavailable")
		common.LogWarn("AI allergen detection unavailable",
			zap.String("recipe", recipeName),
			zap.String("reason", out.Reason),
		)
	}
	return out
}

func (d *AIDetector) detect(ctx context.Context, ingredients []common.Ingredient, recipeName string) Outcome {
	if !d.Enabled() {
		return Unavailable("AI service not configured")
	}

	lines := common.FormatIngredients(ingredients)
	if len(lines) == 0 {
		return Unavailable("no named ingredients")
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	content, err := d.completer.Complete(ctx, aiSystemPrompt, buildUserPrompt(recipeName, lines))
	if err != nil {
		return Unavailable(fmt.Sprintf("completion failed: %v", err))
	}

	resp, err := parseAIResponse(content)
	if err != nil {
		return Unavailable(err.Error())
	}

	det := newDetection(SourceAI)
	det.Notes = resp.Notes
	for _, item := range *resp.Allergens {
		key := NormalizeKey(item.Allergen)
		if key == "" {
			continue
		}
		confidence := defaultAIConfidence
		if item.Confidence.Valid {
			confidence = clampConfidence(item.Confidence.Value)
		}
		evidence := make([]Evidence, 0, len(item.Ingredients))
		for _, name := range item.Ingredients {
			evidence = append(evidence, Evidence{Ingredient: name})
		}
		det.add(&Record{
			Allergen:           key,
			DisplayName:        d.ref.DisplayName(key, key),
			Confidence:         confidence,
			Method:             MethodAI,
			Reason:             item.Reason,
			MatchedIngredients: evidence,
			Metadata:           d.ref.MetadataFor(key),
		})
	}
	return Ok(det)
}

func buildUserPrompt(recipeName string, lines []string) string {
	if strings.TrimSpace(recipeName) == "" {
		recipeName = "Untitled"
	}
	return fmt.Sprintf(`Analyze these recipe ingredients for allergens:

Recipe: %s

Ingredients:
%s

Identify all potential allergens present in these ingredients. Be thorough but accurate.`, recipeName, strings.Join(lines, "\n"))
}

func parseAIResponse(content string) (*aiResponse, error) {
	cleaned := common.StripCodeFence(content)

	var resp aiResponse
	if err := common.ParseJSON(cleaned, &resp); err != nil {
		// models sometimes wrap the object in prose
		obj := common.ExtractJSONObject(cleaned)
		if obj == cleaned {
			return nil, fmt.Errorf("invalid AI response: %w", err)
		}
		resp = aiResponse{}
		if err := common.ParseJSON(obj, &resp); err != nil {
			return nil, fmt.Errorf("invalid AI response: %w", err)
		}
	}
	if resp.Allergens == nil {
		return nil, fmt.Errorf("AI response missing allergens")
	}
	return &resp, nil
}

func clampConfidence(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
