package entity

import "time"

// Category 分类. Title is the matching key used by the sync.
type Category struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"size:250;not null;uniqueIndex"`
	Imagen      string    `json:"imagen" gorm:"size:250"`
	CustomImage *string   `json:"custom_image,omitempty" gorm:"size:250"`
	State       int       `json:"state" gorm:"not null;default:1"`
	PrintfulID  *int64    `json:"printful_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

// ImageName returns the custom image when one was uploaded, the synced default otherwise.
func (c *Category) ImageName() string {
	if c.CustomImage != nil && *c.CustomImage != "" {
		return *c.CustomImage
	}
	return c.Imagen
}
