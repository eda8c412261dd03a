package handler

import (
	"strconv"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/service"
	"github.com/develoddy/api-sequelize-sub002/internal/config"
	"github.com/develoddy/api-sequelize-sub002/internal/shared/imagestore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Sync    *SyncHandler
	Product *ProductHandler
	Image   *ImageHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, images *imagestore.Store, cfg *config.Config, log *zap.Logger) *Handlers {
	return &Handlers{
		Sync:    NewSyncHandler(svc.Sync, svc.Stock, cfg.Sync.Timeout, log),
		Product: NewProductHandler(svc.Product, svc.SizeGuide),
		Image:   NewImageHandler(images),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func newPagination(page, pageSize int, total int64) *Pagination {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// BadGateway is used when the provider failed.
func BadGateway(c *gin.Context, message string) {
	Error(c, 50200, message)
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}
