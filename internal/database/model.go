package database

import (
	"time"
)

type School struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"size:255;not null"`
	Address   string    `gorm:"type:text;not null"`
	City      string    `gorm:"size:100;not null"`
	State     string    `gorm:"size:100;not null"`
	Contact   string    `gorm:"size:20;not null"` // +<country code><10 digits>
	EmailID   string    `gorm:"column:email_id;size:255;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null"`

	Images []SchoolImage `gorm:"foreignKey:SchoolID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (School) TableName() string {
	return "schools"
}

type SchoolImage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	SchoolID  uint      `gorm:"not null;index"`
	ImageName string    `gorm:"size:255;not null"`
	ImageData []byte    `gorm:"not null"` // blob / bytea / longblob
	MimeType  string    `gorm:"size:100;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
}

func (SchoolImage) TableName() string {
	return "school_images"
}
