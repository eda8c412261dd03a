package entity

import "time"

// Gallery 商品图库, one row per distinct preview image of the product's variants.
type Gallery struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProductID uint      `json:"product_id" gorm:"not null;uniqueIndex:idx_gallery_product_image"`
	Imagen    string    `json:"imagen" gorm:"size:250;not null;uniqueIndex:idx_gallery_product_image"`
	Color     string    `json:"color" gorm:"size:64"`
	CreatedAt time.Time `json:"created_at"`
}

func (Gallery) TableName() string {
	return "galeries"
}

// All returns every catalog entity in migration order.
func All() []interface{} {
	return []interface{}{
		&Category{},
		&Product{},
		&Variedad{},
		&ProductVariantLink{},
		&File{},
		&Option{},
		&Gallery{},
	}
}
