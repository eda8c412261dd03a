package entity

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product states
const (
	ProductStateInactive = 1
	ProductStateActive   = 2
)

// Inventory types
const (
	InventoryUnit    = 1
	InventoryVariant = 2
)

// Product 商品. Rows with a PrintfulID are owned by the catalog sync.
type Product struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	PrintfulID     *int64          `json:"printful_id,omitempty" gorm:"uniqueIndex"`
	Title          string          `json:"title" gorm:"size:250;not null"`
	Slug           string          `json:"slug" gorm:"size:250;index"`
	SKU            string          `json:"sku" gorm:"size:64"`
	CategoryID     *uint           `json:"category_id,omitempty" gorm:"index"`
	Price          decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null;default:0"`
	Currency       string          `json:"currency" gorm:"size:8"`
	Portada        string          `json:"portada" gorm:"size:250"`
	Description    string          `json:"description,omitempty" gorm:"type:text"`
	TypeInventario int             `json:"type_inventario" gorm:"not null;default:1"`
	State          int             `json:"state" gorm:"not null;default:1;index"`
	IsIgnored      bool            `json:"is_ignored" gorm:"not null;default:false"`
	Discontinued   bool            `json:"discontinued" gorm:"not null;default:false;index"`
	DiscontinuedAt *time.Time      `json:"discontinued_at,omitempty"`
	Stock          int             `json:"stock" gorm:"not null;default:0"`
	Tags           pq.StringArray  `json:"tags" gorm:"type:text[]"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Category   *Category  `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Variedades []Variedad `json:"variedades,omitempty" gorm:"foreignKey:ProductID"`
	Galleries  []Gallery  `json:"galeries,omitempty" gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string {
	return "products"
}

// IsActive reports whether the product shows up in storefront listings.
func (p *Product) IsActive() bool {
	return p.State == ProductStateActive && !p.Discontinued
}
