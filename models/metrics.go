package models

import (
	"time"

	"github.com/google/uuid"
)

// Metrics holds the computed summary for one upload (one-to-one with Upload).
// Every field is rewritten together on reprocessing; there is no partial update.
type Metrics struct {
	ID                    uint      `gorm:"primaryKey" json:"-"`
	UploadID              uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"-"`
	Upload                Upload    `gorm:"foreignKey:UploadID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	TotalRevenue          float64   `json:"total_revenue"`
	AvgDiscount           float64   `json:"avg_discount"`
	BestSellingProduct    string    `gorm:"size:255" json:"best_selling_product"`
	MostProfitableProduct string    `gorm:"size:255" json:"most_profitable_product"`
	MaxDiscountProduct    string    `gorm:"size:255" json:"max_discount_product"`
	CalculatedAt          time.Time `gorm:"autoUpdateTime" json:"-"`
}
