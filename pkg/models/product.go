package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Category    string          `gorm:"type:varchar(36);index" json:"category"`
	Brand       string          `gorm:"type:varchar(100)" json:"brand"`
	Description string          `gorm:"type:text" json:"description"`
	Images      []string        `gorm:"serializer:json;type:text" json:"images"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Rating      decimal.Decimal `gorm:"type:decimal(3,2);not null;default:0" json:"rating"`
	NumReviews  int             `gorm:"not null;default:0" json:"num_reviews"`
	IsFeatured  bool            `gorm:"not null;default:false" json:"is_featured"`
	Banner      *string         `gorm:"type:varchar(512)" json:"banner"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
