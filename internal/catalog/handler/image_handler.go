package handler

import (
	"context"
	"errors"

	"github.com/develoddy/api-sequelize-sub002/internal/shared/imagestore"
	"github.com/gin-gonic/gin"
)

// ImageResolver finds the file to serve for an image name.
type ImageResolver interface {
	Resolve(ctx context.Context, kind imagestore.Kind, name string) (string, error)
}

// ImageHandler serves synced product and category images.
type ImageHandler struct {
	images ImageResolver
}

func NewImageHandler(images ImageResolver) *ImageHandler {
	return &ImageHandler{images: images}
}

// Product GET /api/products/uploads/product/:img
func (h *ImageHandler) Product(c *gin.Context) {
	h.serve(c, imagestore.KindProduct)
}

// Category GET /api/categories/uploads/categorie/:img
func (h *ImageHandler) Category(c *gin.Context) {
	h.serve(c, imagestore.KindCategory)
}

func (h *ImageHandler) serve(c *gin.Context, kind imagestore.Kind) {
	path, err := h.images.Resolve(c.Request.Context(), kind, c.Param("img"))
	if errors.Is(err, imagestore.ErrNotFound) {
		NotFound(c, "image not found")
		return
	}
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}
