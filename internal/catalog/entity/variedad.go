package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// File types reported by the provider
const (
	FileTypePreview = "preview"
	FileTypeDefault = "default"
)

// Variedad 商品变体. (ProductID, SKU) is unique.
type Variedad struct {
	ID                 uint            `json:"id" gorm:"primaryKey"`
	ProductID          uint            `json:"product_id" gorm:"not null;uniqueIndex:idx_variedad_product_sku"`
	PrintfulVariantID  int64           `json:"printful_variant_id" gorm:"index"`
	VariantID          int64           `json:"variant_id"`
	ExternalID         string          `json:"external_id" gorm:"size:64"`
	Valor              string          `json:"valor" gorm:"size:64"`
	Color              string          `json:"color" gorm:"size:64"`
	Stock              int             `json:"stock" gorm:"not null;default:0"`
	RetailPrice        decimal.Decimal `json:"retail_price" gorm:"type:numeric(10,2);not null;default:0"`
	Currency           string          `json:"currency" gorm:"size:8"`
	SKU                string          `json:"sku" gorm:"size:128;not null;uniqueIndex:idx_variedad_product_sku"`
	Name               string          `json:"name" gorm:"size:250"`
	AvailabilityStatus string          `json:"availability_status" gorm:"size:32"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Link    *ProductVariantLink `json:"product_variant,omitempty" gorm:"foreignKey:VariedadID"`
	Files   []File              `json:"files,omitempty" gorm:"foreignKey:VariedadID"`
	Options []Option            `json:"options,omitempty" gorm:"foreignKey:VariedadID"`
}

func (Variedad) TableName() string {
	return "variedades"
}

// ProductVariantLink keeps the provider catalog variant a Variedad was built from.
type ProductVariantLink struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	VariedadID uint      `json:"variedad_id" gorm:"not null;uniqueIndex"`
	VariantID  int64     `json:"variant_id"`
	ProductID  int64     `json:"product_id"`
	Image      string    `json:"image" gorm:"size:512"`
	Name       string    `json:"name" gorm:"size:250"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ProductVariantLink) TableName() string {
	return "product_variants"
}

// File 变体的印刷文件或预览图
type File struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	VariedadID     uint      `json:"variedad_id" gorm:"not null;index"`
	PrintfulFileID int64     `json:"printful_file_id"`
	Type           string    `json:"type" gorm:"size:32"`
	URL            string    `json:"url" gorm:"size:1024"`
	PreviewURL     string    `json:"preview_url" gorm:"size:1024"`
	ThumbnailURL   string    `json:"thumbnail_url" gorm:"size:1024"`
	Filename       string    `json:"filename" gorm:"size:250"`
	MimeType       string    `json:"mime_type" gorm:"size:64"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	DPI            int       `json:"dpi"`
	Status         string    `json:"status" gorm:"size:32"`
	Visible        bool      `json:"visible"`
	ImageName      string    `json:"image_name" gorm:"size:250"`
	CreatedAt      time.Time `json:"created_at"`
}

func (File) TableName() string {
	return "files"
}

// IsPreview reports whether the file feeds the product gallery.
func (f *File) IsPreview() bool {
	return f.Type == FileTypePreview && f.ImageName != ""
}

// Option 变体配置项
type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	VariedadID uint   `json:"variedad_id" gorm:"not null;index"`
	Key        string `json:"key" gorm:"size:128"`
	Value      string `json:"value" gorm:"type:text"`
}

func (Option) TableName() string {
	return "options"
}
