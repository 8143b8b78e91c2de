package model

import "time"

// Subscription links a user to a course. The row existing means subscribed.
type Subscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_subscription_user_course" json:"user_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_subscription_user_course;index" json:"course_id"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}
