package repository

import (
	"context"
	"errors"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

const pgUniqueViolation = "23505"

// CascadeResult 级联删除结果
type CascadeResult struct {
	ProductID        uint  `json:"product_id"`
	VariantsDeleted  int   `json:"variants_deleted"`
	GalleriesDeleted int   `json:"galleries_deleted"`
	CategoryID       *uint `json:"category_id,omitempty"`
	CategoryDeleted  bool  `json:"category_deleted"`
}

// CatalogStore is the persistence contract of the catalog. It carries no business
// rules; the sync services sequence these calls. Transaction nests as savepoints.
type CatalogStore interface {
	Transaction(ctx context.Context, fn func(tx CatalogStore) error) error

	ListSyncedProducts(ctx context.Context) ([]entity.Product, error)
	FindProductByID(ctx context.Context, id uint) (*entity.Product, error)
	FindProductBySlug(ctx context.Context, slug string) (*entity.Product, error)
	CreateProduct(ctx context.Context, product *entity.Product) error
	UpdateProductFields(ctx context.Context, id uint, fields map[string]interface{}) error
	ListActiveProducts(ctx context.Context, page, pageSize int) ([]entity.Product, int64, error)
	DeleteProductCascade(ctx context.Context, id uint) (*CascadeResult, error)

	FindCategoryByID(ctx context.Context, id uint) (*entity.Category, error)
	FindCategoryByTitle(ctx context.Context, title string) (*entity.Category, error)
	CreateCategory(ctx context.Context, category *entity.Category) (bool, error)

	ListVariantsByProduct(ctx context.Context, productID uint) ([]entity.Variedad, error)
	CreateVariant(ctx context.Context, variant *entity.Variedad) error
	UpdateVariantFields(ctx context.Context, id uint, fields map[string]interface{}) error
	DeleteVariantCascade(ctx context.Context, id uint) error
	CreateVariantLink(ctx context.Context, link *entity.ProductVariantLink) error
	CreateFile(ctx context.Context, file *entity.File) error
	ListFilesByProduct(ctx context.Context, productID uint) ([]entity.File, error)
	ReplaceOptions(ctx context.Context, variantID uint, options []entity.Option) error

	ListGalleries(ctx context.Context, productID uint) ([]entity.Gallery, error)
	CreateGallery(ctx context.Context, gallery *entity.Gallery) error
	DeleteGallery(ctx context.Context, id uint) error
}

// Migrate creates or updates the catalog tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(entity.All()...)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
