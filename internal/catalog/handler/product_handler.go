package handler

import (
	"errors"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/service"
	"github.com/gin-gonic/gin"
)

// ProductHandler 商品处理器
type ProductHandler struct {
	svc        *service.ProductService
	sizeGuides *service.SizeGuideService
}

func NewProductHandler(svc *service.ProductService, sizeGuides *service.SizeGuideService) *ProductHandler {
	return &ProductHandler{svc: svc, sizeGuides: sizeGuides}
}

// List GET /api/products
func (h *ProductHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	products, total, err := h.svc.ListActive(c.Request.Context(), page, pageSize)
	if err != nil {
		InternalError(c, "获取商品列表失败: "+err.Error())
		return
	}
	Success(c, ListResponse{
		Items:      products,
		Pagination: newPagination(page, pageSize, total),
	})
}

// Show GET /api/products/show/:slug
func (h *ProductHandler) Show(c *gin.Context) {
	product, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, service.ErrProductNotFound) {
		NotFound(c, "product not found")
		return
	}
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, product)
}

// Delete DELETE /api/products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.svc.Delete(c.Request.Context(), id)
	if errors.Is(err, service.ErrProductNotFound) {
		NotFound(c, "product not found")
		return
	}
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, result)
}

// SizeGuide GET /api/products/:id/size-guide
func (h *ProductHandler) SizeGuide(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	guide, err := h.sizeGuides.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		NotFound(c, "product not found")
	case errors.Is(err, service.ErrNoSizeGuide):
		NotFound(c, "no size guide for this product")
	case err != nil:
		BadGateway(c, err.Error())
	default:
		Success(c, guide)
	}
}
