package model

import (
	"time"
)

// Payment methods
const (
	PaymentMethodCash     = "cash"
	PaymentMethodTransfer = "transfer"
)

// Payment records money paid for either a course or a lesson. Exactly one of
// CourseID and LessonID is set; the database enforces it with a check constraint.
type Payment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	CourseID      *uint     `gorm:"index;check:chk_payments_single_target,(course_id IS NULL) <> (lesson_id IS NULL)" json:"course_id"`
	LessonID      *uint     `gorm:"index" json:"lesson_id"`
	Amount        float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaymentMethod string    `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentDate   time.Time `gorm:"autoCreateTime;index" json:"payment_date"`

	// Relationships
	User   User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course *Course `gorm:"foreignKey:CourseID;constraint:OnDelete:RESTRICT" json:"-"`
	Lesson *Lesson `gorm:"foreignKey:LessonID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}
