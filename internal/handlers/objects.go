package handlers

import (
	"net/http"
	"strings"

	"ar-asset-backend/internal/models"
	"ar-asset-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// ObjectReader reads back stored blobs.
type ObjectReader interface {
	Get(path string) (storage.Object, bool)
}

// ObjectsHandler serves blobs from an in-process store at /objects/*path so
// the public URLs of the memory backend resolve during development.
func ObjectsHandler(r ObjectReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Param("path"), "/")
		obj, ok := r.Get(path)
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "object not found"})
			return
		}
		c.Data(http.StatusOK, obj.ContentType, obj.Data)
	}
}
