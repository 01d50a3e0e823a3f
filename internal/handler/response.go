package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "focusify/internal/errors"
)

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	if apiErr == nil {
		apiErr = apperrors.Internal("")
	}
	if apiErr.Status >= 500 {
		_ = c.Error(apiErr)
	}
	c.JSON(apiErr.Status, apiErr.Body())
}
