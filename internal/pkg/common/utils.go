package common

import (
	"math"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateUUID returns a new random UUID string.
func GenerateUUID() string {
	return uuid.New().String()
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// WriteError writes err as an ErrorResponse with the matching status.
func WriteError(c *gin.Context, err error, debug bool) {
	resp := ErrorResponse{
		Code:    CodeOf(err),
		Message: err.Error(),
	}
	if debug {
		resp.Details = err.Error()
	}
	c.AbortWithStatusJSON(StatusOf(err), resp)
}
