package handlers

import (
	"context"
	"errors"
	"net/http"

	"ar-asset-backend/internal/assets"
	"ar-asset-backend/internal/imagebuf"
	"ar-asset-backend/internal/index"
	"ar-asset-backend/internal/marker"
	"ar-asset-backend/internal/models"
	"ar-asset-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// writeError maps a service error onto a status code and the error envelope.
func writeError(c *gin.Context, err error) {
	status, label := http.StatusInternalServerError, "internal error"

	switch {
	case errors.Is(err, assets.ErrTooLarge):
		status, label = http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, assets.ErrValidation):
		status, label = http.StatusBadRequest, "validation failed"
	case errors.Is(err, imagebuf.ErrDecode):
		status, label = http.StatusBadRequest, "unsupported or corrupt image"
	case errors.Is(err, assets.ErrUnauthenticated):
		status, label = http.StatusUnauthorized, "user id not found"
	case errors.Is(err, assets.ErrNotFound):
		status, label = http.StatusNotFound, "asset not found"
	case storage.IsStoreError(err):
		status, label = http.StatusBadGateway, "storage unavailable"
	case errors.Is(err, index.ErrIndex):
		status, label = http.StatusInternalServerError, "asset index unavailable"
	case errors.Is(err, marker.ErrCanvasUnavailable):
		status, label = http.StatusInternalServerError, "marker synthesis failed"
	case errors.Is(err, context.DeadlineExceeded):
		status, label = http.StatusGatewayTimeout, "request timed out"
	}

	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error:   label,
		Message: err.Error(),
	})
}
