package repository

import (
	"context"

	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository is the gorm implementation of CatalogStore.
type CatalogRepository struct {
	db *gorm.DB
}

var _ CatalogStore = (*CatalogRepository)(nil)

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) DB() *gorm.DB {
	return r.db
}

func (r *CatalogRepository) Transaction(ctx context.Context, fn func(tx CatalogStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&CatalogRepository{db: tx})
	})
}

// ========== Product ==========

func (r *CatalogRepository) ListSyncedProducts(ctx context.Context) ([]entity.Product, error) {
	var products []entity.Product
	err := r.db.WithContext(ctx).
		Where("printful_id IS NOT NULL").
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *CatalogRepository) FindProductByID(ctx context.Context, id uint) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

// FindProductBySlug 按slug查询商品. Slugs are not unique: a product the provider
// re-created under a new id shares its slug with the discontinued row, so the
// active row wins, then the newest.
func (r *CatalogRepository) FindProductBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Variedades", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Galleries", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("slug = ?", slug).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:  "CASE WHEN state = ? AND discontinued = ? THEN 0 ELSE 1 END",
			Vars: []interface{}{entity.ProductStateActive, false},
		}}).
		Order("id DESC").
		Take(&product).Error
	if err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, product *entity.Product) error {
	return translate(r.db.WithContext(ctx).Create(product).Error)
}

func (r *CatalogRepository) UpdateProductFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).
		Model(&entity.Product{}).
		Where("id = ?", id).
		Updates(fields).Error)
}

// ListActiveProducts 获取上架商品, discontinued rows are excluded.
func (r *CatalogRepository) ListActiveProducts(ctx context.Context, page, pageSize int) ([]entity.Product, int64, error) {
	var products []entity.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Product{}).
		Where("state = ? AND discontinued = ?", entity.ProductStateActive, false)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Category").
		Order("id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&products).Error
	return products, total, err
}

// DeleteProductCascade removes a product with everything it owns, then the
// category when no other product references it.
func (r *CatalogRepository) DeleteProductCascade(ctx context.Context, id uint) (*CascadeResult, error) {
	result := &CascadeResult{ProductID: id}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product entity.Product
		if err := tx.First(&product, "id = ?", id).Error; err != nil {
			return translate(err)
		}

		var variantIDs []uint
		if err := tx.Model(&entity.Variedad{}).Where("product_id = ?", id).Pluck("id", &variantIDs).Error; err != nil {
			return err
		}
		if len(variantIDs) > 0 {
			if err := tx.Where("variedad_id IN ?", variantIDs).Delete(&entity.File{}).Error; err != nil {
				return err
			}
			if err := tx.Where("variedad_id IN ?", variantIDs).Delete(&entity.Option{}).Error; err != nil {
				return err
			}
			if err := tx.Where("variedad_id IN ?", variantIDs).Delete(&entity.ProductVariantLink{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", variantIDs).Delete(&entity.Variedad{}).Error; err != nil {
				return err
			}
		}
		result.VariantsDeleted = len(variantIDs)

		res := tx.Where("product_id = ?", id).Delete(&entity.Gallery{})
		if res.Error != nil {
			return res.Error
		}
		result.GalleriesDeleted = int(res.RowsAffected)

		if err := tx.Delete(&entity.Product{}, "id = ?", id).Error; err != nil {
			return err
		}

		if product.CategoryID == nil {
			return nil
		}
		result.CategoryID = product.CategoryID
		var refs int64
		if err := tx.Model(&entity.Product{}).Where("category_id = ?", *product.CategoryID).Count(&refs).Error; err != nil {
			return err
		}
		if refs == 0 {
			if err := tx.Delete(&entity.Category{}, "id = ?", *product.CategoryID).Error; err != nil {
				return err
			}
			result.CategoryDeleted = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ========== Category ==========

func (r *CatalogRepository) FindCategoryByID(ctx context.Context, id uint) (*entity.Category, error) {
	var category entity.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (r *CatalogRepository) FindCategoryByTitle(ctx context.Context, title string) (*entity.Category, error) {
	var category entity.Category
	if err := r.db.WithContext(ctx).Where("title = ?", title).First(&category).Error; err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

// CreateCategory inserts the category unless one with the same title exists, in
// which case the existing row is loaded into category and false is returned.
func (r *CatalogRepository) CreateCategory(ctx context.Context, category *entity.Category) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "title"}}, DoNothing: true}).
		Create(category)
	if res.Error != nil && !isUniqueViolation(res.Error) {
		return false, res.Error
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return true, nil
	}
	existing, err := r.FindCategoryByTitle(ctx, category.Title)
	if err != nil {
		return false, err
	}
	*category = *existing
	return false, nil
}

// ========== Variedad ==========

func (r *CatalogRepository) ListVariantsByProduct(ctx context.Context, productID uint) ([]entity.Variedad, error) {
	var variants []entity.Variedad
	err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Link").
		Where("product_id = ?", productID).
		Order("id ASC").
		Find(&variants).Error
	return variants, err
}

func (r *CatalogRepository) CreateVariant(ctx context.Context, variant *entity.Variedad) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(variant).Error)
}

func (r *CatalogRepository) UpdateVariantFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).
		Model(&entity.Variedad{}).
		Where("id = ?", id).
		Updates(fields).Error)
}

func (r *CatalogRepository) DeleteVariantCascade(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("variedad_id = ?", id).Delete(&entity.File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("variedad_id = ?", id).Delete(&entity.Option{}).Error; err != nil {
			return err
		}
		if err := tx.Where("variedad_id = ?", id).Delete(&entity.ProductVariantLink{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.Variedad{}, "id = ?", id).Error
	})
}

func (r *CatalogRepository) CreateVariantLink(ctx context.Context, link *entity.ProductVariantLink) error {
	return translate(r.db.WithContext(ctx).Create(link).Error)
}

func (r *CatalogRepository) CreateFile(ctx context.Context, file *entity.File) error {
	return translate(r.db.WithContext(ctx).Create(file).Error)
}

func (r *CatalogRepository) ListFilesByProduct(ctx context.Context, productID uint) ([]entity.File, error) {
	var files []entity.File
	err := r.db.WithContext(ctx).
		Joins("JOIN variedades ON variedades.id = files.variedad_id").
		Where("variedades.product_id = ?", productID).
		Order("variedades.id ASC, files.id ASC").
		Find(&files).Error
	return files, err
}

func (r *CatalogRepository) ReplaceOptions(ctx context.Context, variantID uint, options []entity.Option) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("variedad_id = ?", variantID).Delete(&entity.Option{}).Error; err != nil {
			return err
		}
		if len(options) == 0 {
			return nil
		}
		for i := range options {
			options[i].ID = 0
			options[i].VariedadID = variantID
		}
		return tx.Create(&options).Error
	})
}

// ========== Gallery ==========

func (r *CatalogRepository) ListGalleries(ctx context.Context, productID uint) ([]entity.Gallery, error) {
	var galleries []entity.Gallery
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id ASC").
		Find(&galleries).Error
	return galleries, err
}

func (r *CatalogRepository) CreateGallery(ctx context.Context, gallery *entity.Gallery) error {
	return translate(r.db.WithContext(ctx).Create(gallery).Error)
}

func (r *CatalogRepository) DeleteGallery(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&entity.Gallery{}, "id = ?", id).Error
}
