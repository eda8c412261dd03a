package handler

import (
	"github.com/develoddy/api-sequelize-sub002/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册商品目录路由
func RegisterRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	admin := []gin.HandlerFunc{middleware.JWTAuth(jwtSecret), middleware.RequireRole(middleware.RoleAdmin)}

	products := r.Group("/api/products")
	{
		products.GET("", h.Product.List)
		products.GET("/show/:slug", h.Product.Show)
		products.GET("/:id/size-guide", h.Product.SizeGuide)
		products.GET("/uploads/product/:img", h.Image.Product)

		products.GET("/synPrintfulProducts", append(admin, h.Sync.SyncProducts)...)
		products.POST("/sync-stock", append(admin, h.Sync.SyncStock)...)
		products.DELETE("/:id", append(admin, h.Product.Delete)...)
	}

	categories := r.Group("/api/categories")
	{
		categories.GET("/uploads/categorie/:img", h.Image.Category)
	}
}
