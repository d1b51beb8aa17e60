package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"ar-asset-backend/internal/assets"
	"ar-asset-backend/internal/middleware"
	"ar-asset-backend/internal/models"

	"github.com/gin-gonic/gin"
)

// AssetService is the part of assets.Service the HTTP layer drives.
type AssetService interface {
	Upload(ctx context.Context, sess assets.Session, in assets.UploadInput) (models.Asset, error)
	List(ctx context.Context, sess assets.Session) ([]models.Asset, error)
	Delete(ctx context.Context, sess assets.Session, in assets.DeleteInput) (assets.DeleteReport, error)
	Clear(ctx context.Context, sess assets.Session) error
	Viewer(ctx context.Context, sess assets.Session, id string) (models.ViewerResponse, error)
	Preview(ctx context.Context, in assets.UploadInput) ([]byte, error)
}

type AssetsHandler struct {
	service AssetService
}

func NewAssetsHandler(service AssetService) *AssetsHandler {
	return &AssetsHandler{service: service}
}

func session(c *gin.Context) assets.Session {
	return assets.Session{OwnerID: middleware.OwnerID(c)}
}

// Upload godoc
// @Summary     Upload an image as a new asset
// @Description Stores the original image, synthesizes a tracking marker from it and
// @Description indexes the pair. If the marker cannot be produced the asset falls
// @Description back to the default preset marker and the upload still succeeds.
// @Tags        assets
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       file formData file true "PNG or JPEG image, at most 5 MiB"
// @Success     201 {object} models.AssetResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /assets [post]
func (h *AssetsHandler) Upload(c *gin.Context) {
	in, err := readUpload(c)
	if err != nil {
		writeError(c, err)
		return
	}

	asset, err := h.service.Upload(c.Request.Context(), session(c), in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.AssetResponse{
		Success: true,
		Asset:   &asset,
	})
}

// List godoc
// @Summary     List assets
// @Description Returns the caller's assets, newest first, at most 50
// @Tags        assets
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.AssetListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /assets [get]
func (h *AssetsHandler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), session(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AssetListResponse{
		Success: true,
		Assets:  list,
	})
}

// Delete godoc
// @Summary     Delete an asset
// @Description Removes the original and marker blobs, best effort, then the index entry.
// @Description Deleting an unknown asset succeeds. Blob failures come back as warnings.
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Asset ID"
// @Param       request body models.DeleteAssetRequest false "Blob paths; looked up when omitted"
// @Success     200 {object} models.DeleteResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /assets/{id} [delete]
func (h *AssetsHandler) Delete(c *gin.Context) {
	var req models.DeleteAssetRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid request",
				Message: err.Error(),
			})
			return
		}
	}

	report, err := h.service.Delete(c.Request.Context(), session(c), assets.DeleteInput{
		ID:           c.Param("id"),
		OriginalPath: req.FilePath,
		MarkerPath:   req.MarkerPath,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.DeleteResponse{
		Success:  true,
		Warnings: report.Warnings,
	})
}

// Clear godoc
// @Summary     Clear the asset index
// @Description Development only. Drops every index entry for the caller; blobs stay.
// @Tags        assets
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.DeleteResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /assets [delete]
func (h *AssetsHandler) Clear(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context(), session(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Success: true})
}

// Viewer godoc
// @Summary     AR viewer parameters
// @Description Returns the asset URL and the marker the AR viewer should track
// @Tags        assets
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Asset ID"
// @Success     200 {object} models.ViewerResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /assets/{id}/viewer [get]
func (h *AssetsHandler) Viewer(c *gin.Context) {
	v, err := h.service.Viewer(c.Request.Context(), session(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Preview godoc
// @Summary     Preview a marker
// @Description Synthesizes a marker from the uploaded image and returns the PNG. Nothing is stored.
// @Tags        markers
// @Accept      multipart/form-data
// @Produce     png
// @Security    Bearer
// @Param       file formData file true "PNG or JPEG image, at most 5 MiB"
// @Success     200 {file} binary
// @Failure     400 {object} models.ErrorResponse
// @Router      /markers/preview [post]
func (h *AssetsHandler) Preview(c *gin.Context) {
	in, err := readUpload(c)
	if err != nil {
		writeError(c, err)
		return
	}

	png, err := h.service.Preview(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// Register mounts the asset routes on an authenticated group. The clear
// route is only mounted when allowClear is set.
func (h *AssetsHandler) Register(rg *gin.RouterGroup, allowClear bool) {
	rg.POST("/assets", h.Upload)
	rg.GET("/assets", h.List)
	rg.GET("/assets/:id/viewer", h.Viewer)
	rg.DELETE("/assets/:id", h.Delete)
	if allowClear {
		rg.DELETE("/assets", h.Clear)
	}
	rg.POST("/markers/preview", h.Preview)
}
