package model

import (
	"time"

	"gorm.io/datatypes"
)

// CourseUpdateEventStatus is the processing state of a course update event
type CourseUpdateEventStatus string

const (
	EventStatusPending    CourseUpdateEventStatus = "pending"
	EventStatusProcessing CourseUpdateEventStatus = "processing"
	EventStatusCompleted  CourseUpdateEventStatus = "completed"
	EventStatusFailed     CourseUpdateEventStatus = "failed"
)

// Outcomes recorded on a processed event
const (
	OutcomeSent           = "sent"
	OutcomeNoSubscribers  = "no subscribers"
	OutcomeCourseNotFound = "course not found"
	OutcomeFailed         = "failed"
)

// CourseUpdateEvent is an outbox row asking for subscribers of a course to be
// emailed. IdempotencyKey is "course:<id>:<unix nanos of the update>".
type CourseUpdateEvent struct {
	ID             uint                    `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time               `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	CourseID       uint                    `gorm:"not null;index" json:"course_id"`
	IdempotencyKey string                  `gorm:"type:varchar(100);uniqueIndex;not null" json:"idempotency_key"`
	Message        string                  `gorm:"type:text" json:"message"`
	Status         CourseUpdateEventStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Outcome        string                  `gorm:"type:varchar(30)" json:"outcome"`
	Recipients     int                     `gorm:"default:0" json:"recipients"`
	SentCount      int                     `gorm:"default:0" json:"sent_count"`
	FailedCount    int                     `gorm:"default:0" json:"failed_count"`
	Payload        datatypes.JSON          `json:"payload,omitempty"` // failed recipients and errors
	ProcessedAt    *time.Time              `json:"processed_at"`
}

// TableName specifies the table name for CourseUpdateEvent
func (CourseUpdateEvent) TableName() string {
	return "course_update_events"
}
