package printful

import "encoding/json"

// envelope 通用响应结构
type envelope struct {
	Code   int             `json:"code"`
	Result json.RawMessage `json:"result"`
	Paging *Paging         `json:"paging,omitempty"`
	Error  *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Paging 分页信息
type Paging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ProductSummary is one row of the store product listing.
type ProductSummary struct {
	ID           int64  `json:"id"`
	ExternalID   string `json:"external_id"`
	Name         string `json:"name"`
	Variants     int    `json:"variants"`
	Synced       int    `json:"synced"`
	ThumbnailURL string `json:"thumbnail_url"`
	IsIgnored    bool   `json:"is_ignored"`
}

// ProductDetail is the full store product with its sync variants.
type ProductDetail struct {
	SyncProduct  ProductSummary `json:"sync_product"`
	SyncVariants []SyncVariant  `json:"sync_variants"`
}

// Primary returns the first sync variant, the one whose price and category speak for the product.
func (d *ProductDetail) Primary() *SyncVariant {
	if d == nil || len(d.SyncVariants) == 0 {
		return nil
	}
	return &d.SyncVariants[0]
}

// SyncVariant 店铺变体
type SyncVariant struct {
	ID                 int64          `json:"id"`
	ExternalID         string         `json:"external_id"`
	SyncProductID      int64          `json:"sync_product_id"`
	Name               string         `json:"name"`
	Synced             bool           `json:"synced"`
	VariantID          int64          `json:"variant_id"`
	MainCategoryID     int64          `json:"main_category_id"`
	RetailPrice        string         `json:"retail_price"`
	Currency           string         `json:"currency"`
	IsIgnored          bool           `json:"is_ignored"`
	SKU                string         `json:"sku"`
	Size               string         `json:"size"`
	Color              string         `json:"color"`
	AvailabilityStatus string         `json:"availability_status"`
	Product            CatalogVariant `json:"product"`
	Files              []File         `json:"files"`
	Options            []Option       `json:"options"`
}

// CatalogVariant is the provider catalog item a sync variant was made from.
type CatalogVariant struct {
	VariantID int64  `json:"variant_id"`
	ProductID int64  `json:"product_id"`
	Image     string `json:"image"`
	Name      string `json:"name"`
}

// File 设计文件/预览图
type File struct {
	ID           int64  `json:"id"`
	Type         string `json:"type"`
	Hash         string `json:"hash"`
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	DPI          int    `json:"dpi"`
	Status       string `json:"status"`
	ThumbnailURL string `json:"thumbnail_url"`
	PreviewURL   string `json:"preview_url"`
	Visible      bool   `json:"visible"`
}

// Option is a key/value configuration. Value may be a string, a number or an array.
type Option struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// Category 目录分类
type Category struct {
	ID              int64  `json:"id"`
	ParentID        int64  `json:"parent_id"`
	ImageURL        string `json:"image_url"`
	CatalogPosition int    `json:"catalog_position"`
	Size            string `json:"size"`
	Title           string `json:"title"`
}

type categoryResult struct {
	Category Category `json:"category"`
}

// SizeGuide 尺码表
type SizeGuide struct {
	ProductID      int64       `json:"product_id"`
	AvailableSizes []string    `json:"available_sizes"`
	SizeTables     []SizeTable `json:"size_tables"`
}

// SizeTable is one measurement table of a size guide.
type SizeTable struct {
	Type             string            `json:"type"`
	Unit             string            `json:"unit"`
	Description      string            `json:"description"`
	ImageURL         string            `json:"image_url"`
	ImageDescription string            `json:"image_description"`
	Measurements     []SizeMeasurement `json:"measurements"`
}

// SizeMeasurement 尺码测量值
type SizeMeasurement struct {
	TypeLabel string            `json:"type_label"`
	Unit      string            `json:"unit,omitempty"`
	Values    []json.RawMessage `json:"values"`
}
