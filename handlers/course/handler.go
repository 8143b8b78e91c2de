package course

import (
	"context"
	"time"

	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/sahilchouksey/edu-materials-api/services"
	"github.com/sahilchouksey/edu-materials-api/services/policy"
	"github.com/sahilchouksey/edu-materials-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultPageSize is the course list page size when page_size is absent
const DefaultPageSize = 8

// Notifier schedules subscriber notifications after a course update
type Notifier interface {
	Trigger(ctx context.Context, course *model.Course, previous time.Time, message string) (*model.CourseUpdateEvent, error)
}

// CourseHandler handles course-related requests
type CourseHandler struct {
	db            *gorm.DB
	validator     *validation.Validator
	notifier      Notifier
	subscriptions *services.SubscriptionService
	payments      *services.PaymentService
	log           *zap.Logger
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB, notifier Notifier, log *zap.Logger) *CourseHandler {
	return &CourseHandler{
		db:            db,
		validator:     validation.NewValidator(),
		notifier:      notifier,
		subscriptions: services.NewSubscriptionService(db),
		payments:      services.NewPaymentService(db),
		log:           log,
	}
}

// CourseRequest is the body of POST and PUT
type CourseRequest struct {
	Title       string `json:"title" validate:"required,max=150"`
	Description string `json:"description" validate:"max=5000"`
}

// CoursePatchRequest is the body of PATCH. Absent fields are left unchanged.
type CoursePatchRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=150"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

// LessonSummary is a lesson embedded in a course detail
type LessonSummary struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	VideoLink   string `json:"video_link"`
	OwnerID     uint   `json:"owner_id"`
}

// CourseResponse represents a course in responses
type CourseResponse struct {
	ID           uint            `json:"id"`
	Title        string          `json:"title"`
	Slug         string          `json:"slug"`
	Description  string          `json:"description"`
	OwnerID      uint            `json:"owner_id"`
	LessonsCount int64           `json:"lessons_count"`
	Lessons      []LessonSummary `json:"lessons,omitempty"`
	IsSubscribed bool            `json:"is_subscribed"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func newCourseResponse(c *model.Course) CourseResponse {
	return CourseResponse{
		ID:          c.ID,
		Title:       c.Title,
		Slug:        c.Slug,
		Description: c.Description,
		OwnerID:     c.OwnerID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// scoped restricts a course query to the rows the principal may see
func scoped(db *gorm.DB, p policy.Principal) *gorm.DB {
	if policy.SeesAll(p) {
		return db
	}
	return db.Where("courses.owner_id = ?", p.UserID)
}
