// Package allergen serves the allergen analysis endpoints.
package allergen

import (
	"net/http"
	"strings"

	allergenService "allergen-engine/internal/core/allergen"
	"allergen-engine/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	analyzer *allergenService.Analyzer
	batch    *allergenService.BatchAnalyzer
	debug    bool
}

func NewHandler(analyzer *allergenService.Analyzer, batch *allergenService.BatchAnalyzer, debug bool) *Handler {
	return &Handler{analyzer: analyzer, batch: batch, debug: debug}
}

// Register mounts the routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.HandleAnalyze)
	rg.POST("/analyze-recipe", h.HandleAnalyzeRecipe)
	rg.GET("/recipe/:name", h.HandleGetRecipe)
	rg.POST("/batch-analyze", h.HandleBatchAnalyze)
}

// HandleAnalyze checks a free-form ingredient list.
func (h *Handler) HandleAnalyze(c *gin.Context) {
	var req allergenService.AnalyzeRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.analyzer.Analyze(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "allergen analysis failed", err)
		return
	}

	common.LogInfo("allergen analysis completed",
		zap.Int("ingredients", len(req.Ingredients)),
		zap.Int("detected", res.CombinedSummary.TotalDetected),
		zap.Bool("ai", res.AIAnalysis != nil),
	)
	c.JSON(http.StatusOK, res)
}

// HandleAnalyzeRecipe analyzes a stored recipe and returns its guest report.
func (h *Handler) HandleAnalyzeRecipe(c *gin.Context) {
	var req allergenService.AnalyzeRecipeRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.analyzer.AnalyzeRecipe(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "recipe allergen analysis failed", err, zap.String("recipe", req.RecipeName))
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleGetRecipe returns the saved allergen data of a recipe.
func (h *Handler) HandleGetRecipe(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		common.WriteError(c, common.NewValidationError("recipe name is required"), h.debug)
		return
	}

	saved, err := h.analyzer.GetRecipeAllergens(c.Request.Context(), name)
	if err != nil {
		h.fail(c, "failed to read saved allergens", err, zap.String("recipe", name))
		return
	}
	c.JSON(http.StatusOK, saved)
}

// HandleBatchAnalyze runs the batch analyzer over several stored recipes.
func (h *Handler) HandleBatchAnalyze(c *gin.Context) {
	var req allergenService.BatchRequest
	if !h.bind(c, &req) {
		return
	}

	res, err := h.batch.Run(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "batch analysis failed", err, zap.Int("recipes", len(req.RecipeNames)))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		common.LogWarn("invalid request body",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err), h.debug)
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err), zap.String("path", c.Request.URL.Path))
	if common.StatusOf(err) >= http.StatusInternalServerError {
		common.LogError(msg, fields...)
	} else {
		common.LogWarn(msg, fields...)
	}
	common.WriteError(c, err, h.debug)
}
