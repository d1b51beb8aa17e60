package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"ar-asset-backend/internal/assets"

	"github.com/gin-gonic/gin"
)

// UploadField is the multipart field carrying the image.
const UploadField = "file"

// multipart framing allowance on top of the file itself
const formOverhead = 1 << 20

// readUpload pulls the image out of a multipart request. Size limits beyond
// the request body cap are left to the service.
func readUpload(c *gin.Context) (assets.UploadInput, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, assets.MaxUploadSize+formOverhead)

	header, err := c.FormFile(UploadField)
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return assets.UploadInput{}, fmt.Errorf("%w: request body over %d bytes", assets.ErrTooLarge, tooBig.Limit)
	}
	if errors.Is(err, http.ErrMissingFile) {
		return assets.UploadInput{}, fmt.Errorf("%w: no file in the %q field", assets.ErrValidation, UploadField)
	}
	if err != nil {
		return assets.UploadInput{}, fmt.Errorf("%w: failed to parse multipart form: %v", assets.ErrValidation, err)
	}

	f, err := header.Open()
	if err != nil {
		return assets.UploadInput{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, assets.MaxUploadSize+1))
	if err != nil {
		return assets.UploadInput{}, fmt.Errorf("failed to read upload: %w", err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return assets.UploadInput{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Data:        data,
	}, nil
}
