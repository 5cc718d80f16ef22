package recipe

import (
	"context"
	"errors"
	"testing"

	"allergen-engine/internal/core/mapping"
	"allergen-engine/internal/core/units"
	"allergen-engine/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response string
	err      error
	system   string
	user     string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.response, f.err
}

type fakeRepo struct {
	products []mapping.Product
	created  []common.Recipe
}

func (r *fakeRepo) ListProducts(context.Context) ([]mapping.Product, error) {
	return r.products, nil
}

func (r *fakeRepo) CreateRecipe(_ context.Context, recipe *common.Recipe) error {
	recipe.RecipeID = "generated-id"
	r.created = append(r.created, *recipe)
	return nil
}

func newRepo() *fakeRepo {
	return &fakeRepo{products: []mapping.Product{{Name: "Butter", Unit: units.Lb, PricePerUnit: 4}}}
}

const noodlesJSON = `{
  "recipe_name": "Garlic Butter Noodles",
  "description": "Quick noodles",
  "servings": "6",
  "category": "Entree",
  "prep_time": 10,
  "cook_time": 15,
  "ingredients": [
    {"ingredient_name": "butter", "oz": 8},
    {"ingredient_name": "unicorn dust", "oz": 2}
  ],
  "instructions": ["1. Boil noodles", "2. Toss with butter"]
}`

func TestGenerate(t *testing.T) {
	fc := &fakeCompleter{response: "```json\n" + noodlesJSON + "\n```"}
	repo := newRepo()
	svc := NewService(fc, repo)

	res, err := svc.Generate(context.Background(), GenerateRequest{
		Prompt:      "  garlic noodles ",
		Ingredients: []string{"butter", " ", "garlic"},
		Save:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, systemPrompt, fc.system)
	assert.Contains(t, fc.user, "garlic noodles\n\nInclude ingredients: butter, garlic.")
	assert.Contains(t, fc.user, "Return ONLY the JSON object.")

	assert.Equal(t, "Garlic Butter Noodles", res.Recipe.Name)
	assert.Equal(t, 6, res.Recipe.Servings)
	assert.Equal(t, "Entree", res.Recipe.Category)
	assert.Equal(t, "1. Boil noodles\n2. Toss with butter", res.Recipe.Instructions)
	assert.Equal(t, []common.Ingredient{{ProductName: "Butter", Quantity: 0.5, Unit: units.Lb}}, res.Recipe.Ingredients)

	require.Len(t, res.MappingNotes, 2)
	assert.Equal(t, mapping.NoMatch, res.MappingNotes[1].MatchedProduct)
	assert.Equal(t, mapping.MappingSummary{Mapped: 1, Unmapped: 1, MatchRate: 50}, res.MappingSummary)
	assert.Equal(t, "Garlic Butter Noodles", res.AIRawRecipe.RecipeName)

	assert.True(t, res.Validation.Valid)
	assert.Empty(t, res.Validation.Errors)
	assert.True(t, res.Saved)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "generated-id", res.Recipe.RecipeID)
}

func TestGenerateDoesNotSaveInvalidRecipe(t *testing.T) {
	fc := &fakeCompleter{response: `Sure! {"recipe_name": "Mystery", "ingredients": [{"ingredient_name": "unicorn dust", "oz": 2}], "instructions": "Mix"} Enjoy.`}
	repo := newRepo()

	res, err := NewService(fc, repo).Generate(context.Background(), GenerateRequest{Prompt: "mystery", Save: true})
	require.NoError(t, err)

	assert.False(t, res.Validation.Valid)
	assert.Contains(t, res.Validation.Errors, "no ingredients matched the product catalog")
	assert.False(t, res.Saved)
	assert.Empty(t, repo.created)
}

func TestGenerateErrors(t *testing.T) {
	_, err := NewService(&fakeCompleter{}, newRepo()).Generate(context.Background(), GenerateRequest{Prompt: "  "})
	assert.True(t, common.IsValidationError(err))

	_, err = NewService(nil, newRepo()).Generate(context.Background(), GenerateRequest{Prompt: "soup"})
	assert.ErrorIs(t, err, common.ErrAIUnavailable)

	upstream := errors.New("upstream down")
	_, err = NewService(&fakeCompleter{err: upstream}, newRepo()).Generate(context.Background(), GenerateRequest{Prompt: "soup"})
	assert.ErrorIs(t, err, upstream)

	bad := map[string]string{
		"prose":             "I cannot help with that.",
		"missing name":      `{"ingredients": [], "instructions": "x"}`,
		"missing structure": `{"recipe_name": "Soup"}`,
	}
	for name, resp := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := NewService(&fakeCompleter{response: resp}, newRepo()).Generate(context.Background(), GenerateRequest{Prompt: "soup"})
			assert.ErrorIs(t, err, common.ErrInvalidAIResponse)
		})
	}
}

func TestValidateRecipe(t *testing.T) {
	v := ValidateRecipe(common.Recipe{})
	assert.False(t, v.Valid)
	assert.Len(t, v.Errors, 4)

	v = ValidateRecipe(common.Recipe{
		Name:         "Toast",
		Servings:     1,
		Instructions: "Toast it",
		Ingredients:  []common.Ingredient{{ProductName: "Bread", Quantity: 1, Unit: "each"}},
	})
	assert.True(t, v.Valid)
}
