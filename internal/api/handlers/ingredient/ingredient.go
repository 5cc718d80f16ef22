// Package ingredient serves ingredient mapping against the product catalog.
package ingredient

import (
	"context"
	"net/http"

	"allergen-engine/internal/core/mapping"
	"allergen-engine/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Catalog lists the products ingredients are mapped onto.
type Catalog interface {
	ListProducts(ctx context.Context) ([]mapping.Product, error)
}

// MapRequest is the body of POST /ingredients/map.
type MapRequest struct {
	Ingredients []common.Ingredient `json:"ingredients" validate:"required,min=1"`
	Threshold   *int                `json:"threshold" validate:"omitempty,min=0,max=100"`
}

type Handler struct {
	catalog          Catalog
	mapper           *mapping.Mapper
	defaultThreshold int
	debug            bool
}

func NewHandler(catalog Catalog, mapper *mapping.Mapper, defaultThreshold int, debug bool) *Handler {
	if defaultThreshold <= 0 {
		defaultThreshold = mapping.DefaultThreshold
	}
	return &Handler{catalog: catalog, mapper: mapper, defaultThreshold: defaultThreshold, debug: debug}
}

// HandleMap normalizes, maps and prices an ingredient list.
func (h *Handler) HandleMap(c *gin.Context) {
	var req MapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err), h.debug)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(c, err, h.debug)
		return
	}

	threshold := h.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	catalog, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		common.LogError("failed to list products", zap.Error(err))
		common.WriteError(c, err, h.debug)
		return
	}

	res := h.mapper.MapRecipe(req.Ingredients, catalog, threshold)
	common.LogInfo("ingredients mapped",
		zap.Int("ingredients", res.Stats.Total),
		zap.Int("auto_mapped", res.Stats.AutoMapped),
		zap.Float64("total_cost", res.TotalCost),
	)
	c.JSON(http.StatusOK, res)
}
