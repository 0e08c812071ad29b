package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Upload tracks one uploaded CSV file and its processing status.
type Upload struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"uploaded_at"`
	UpdatedAt time.Time `json:"-"`
	FileName  string    `gorm:"size:255;not null" json:"filename"`
	StorePath string    `gorm:"column:store_path;size:512;not null" json:"-"` // blob store key (e.g. csv_uploads/xxx.csv)
	Processed bool      `gorm:"default:false;index" json:"processed"`
	// Mark upload as failed for metrics processing (do not delete record so front-end/admin can review)
	Failed       bool   `gorm:"default:false;index" json:"failed"`
	FailedReason string `gorm:"size:255" json:"failed_reason,omitempty"`
}

// BeforeCreate assigns the UUID primary key when the caller did not.
func (u *Upload) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
