// Package recipe serves AI recipe generation and the stored recipe library.
package recipe

import (
	"context"
	"net/http"

	recipeService "allergen-engine/internal/core/recipe"
	"allergen-engine/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Library reads stored recipes.
type Library interface {
	ListRecipeNames(ctx context.Context) ([]string, error)
	GetRecipeByID(ctx context.Context, id string) (*common.Recipe, error)
}

type Handler struct {
	recipes *recipeService.Service
	library Library
	debug   bool
}

func NewHandler(recipes *recipeService.Service, library Library, debug bool) *Handler {
	return &Handler{recipes: recipes, library: library, debug: debug}
}

// HandleList returns the names of all stored recipes.
func (h *Handler) HandleList(c *gin.Context) {
	names, err := h.library.ListRecipeNames(c.Request.Context())
	if err != nil {
		common.LogError("failed to list recipes", zap.Error(err))
		common.WriteError(c, err, h.debug)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"recipes": names,
		"total":   len(names),
	})
}

// HandleGet returns one stored recipe by its recipe_id.
func (h *Handler) HandleGet(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		common.WriteError(c, common.NewValidationError("recipe_id must be a UUID"), h.debug)
		return
	}

	r, err := h.library.GetRecipeByID(c.Request.Context(), id)
	if err != nil {
		if common.StatusOf(err) >= http.StatusInternalServerError {
			common.LogError("failed to load recipe", zap.String("recipe_id", id), zap.Error(err))
		}
		common.WriteError(c, err, h.debug)
		return
	}
	c.JSON(http.StatusOK, r)
}

// HandleGenerate asks the AI for a recipe and converts it to the app format,
// mapping its ingredients onto the product catalog.
func (h *Handler) HandleGenerate(c *gin.Context) {
	var req recipeService.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err), h.debug)
		return
	}

	res, err := h.recipes.Generate(c.Request.Context(), req)
	if err != nil {
		fields := []zap.Field{zap.Error(err), zap.Int("prompt_length", len(req.Prompt))}
		if common.StatusOf(err) >= http.StatusInternalServerError {
			common.LogError("recipe generation failed", fields...)
		} else {
			common.LogWarn("recipe generation failed", fields...)
		}
		common.WriteError(c, err, h.debug)
		return
	}

	status := http.StatusOK
	if res.Saved {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}
