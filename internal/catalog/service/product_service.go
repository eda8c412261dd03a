package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"github.com/develoddy/api-sequelize-sub002/internal/catalog/repository"
	"go.uber.org/zap"
)

// ProductService 商品服务
type ProductService struct {
	store repository.CatalogStore
	log   *zap.Logger
}

func NewProductService(store repository.CatalogStore, log *zap.Logger) *ProductService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductService{store: store, log: log.Named("product")}
}

// ListActive 获取上架商品列表
func (s *ProductService) ListActive(ctx context.Context, page, pageSize int) ([]entity.Product, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.store.ListActiveProducts(ctx, page, pageSize)
}

// GetBySlug returns an active product with its variants and gallery.
// Discontinued products are reported as not found.
func (s *ProductService) GetBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	product, err := s.store.FindProductBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if !product.IsActive() {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// Delete removes the product and everything it owns, and its category when no
// other product uses it. Image files stay on disk; other products may share them.
func (s *ProductService) Delete(ctx context.Context, id uint) (*repository.CascadeResult, error) {
	result, err := s.store.DeleteProductCascade(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("删除商品失败: %w", err)
	}
	s.log.Info("product deleted",
		zap.Uint("id", id),
		zap.Int("variants", result.VariantsDeleted),
		zap.Int("galleries", result.GalleriesDeleted),
		zap.Bool("category_deleted", result.CategoryDeleted),
	)
	return result, nil
}
