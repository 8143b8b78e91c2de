package model

import (
	"time"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Course is a unit of study owned by the user who created it
type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`
	Title       string    `gorm:"type:varchar(150);not null" json:"title"`
	Slug        string    `gorm:"type:varchar(200);index" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`

	// Relationships
	Owner         User           `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Lessons       []Lesson       `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Subscriptions []Subscription `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeSave keeps Slug in step with Title
func (c *Course) BeforeSave(tx *gorm.DB) error {
	if c.Title != "" {
		c.Slug = slug.Make(c.Title)
	}
	return nil
}

// Lesson belongs to exactly one course and has its own owner
type Lesson struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Title       string    `gorm:"type:varchar(150);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	VideoLink   string    `gorm:"type:varchar(500);not null" json:"video_link"`
	CourseID    uint      `gorm:"not null;index" json:"course"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Owner  User   `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}
