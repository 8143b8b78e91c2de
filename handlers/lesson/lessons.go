package lesson

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/sahilchouksey/edu-materials-api/services"
	"github.com/sahilchouksey/edu-materials-api/services/policy"
	"github.com/sahilchouksey/edu-materials-api/utils/middleware"
	"github.com/sahilchouksey/edu-materials-api/utils/query"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
	"github.com/sahilchouksey/edu-materials-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultPageSize is the lesson list page size when page_size is absent
const DefaultPageSize = 5

// Notifier schedules subscriber notifications when a lesson changes its course
type Notifier interface {
	TouchAndTrigger(ctx context.Context, courseID uint, message string) (*model.CourseUpdateEvent, error)
}

// LessonHandler handles lesson-related requests
type LessonHandler struct {
	db        *gorm.DB
	validator *validation.Validator
	notifier  Notifier
	payments  *services.PaymentService
	log       *zap.Logger
}

// NewLessonHandler creates a new lesson handler
func NewLessonHandler(db *gorm.DB, notifier Notifier, log *zap.Logger) *LessonHandler {
	return &LessonHandler{
		db:        db,
		validator: validation.NewValidator(),
		notifier:  notifier,
		payments:  services.NewPaymentService(db),
		log:       log,
	}
}

// LessonRequest is the body of POST and PUT
type LessonRequest struct {
	Title       string `json:"title" validate:"required,max=150"`
	Description string `json:"description" validate:"max=5000"`
	VideoLink   string `json:"video_link" validate:"required,max=500,video_link"`
	Course      uint   `json:"course" validate:"required"`
}

// LessonPatchRequest is the body of PATCH
type LessonPatchRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=150"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	VideoLink   *string `json:"video_link" validate:"omitempty,max=500,video_link"`
	Course      *uint   `json:"course"`
}

// LessonResponse represents a lesson in responses
type LessonResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoLink   string    `json:"video_link"`
	Course      uint      `json:"course"`
	CourseTitle string    `json:"course_title,omitempty"`
	OwnerID     uint      `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newLessonResponse(l *model.Lesson) LessonResponse {
	return LessonResponse{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		VideoLink:   l.VideoLink,
		Course:      l.CourseID,
		CourseTitle: l.Course.Title,
		OwnerID:     l.OwnerID,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

var lessonOrdering = map[string]string{
	"title":      "lessons.title",
	"created_at": "lessons.created_at",
	"updated_at": "lessons.updated_at",
}

func scoped(db *gorm.DB, p policy.Principal) *gorm.DB {
	if policy.SeesAll(p) {
		return db
	}
	return db.Where("lessons.owner_id = ?", p.UserID)
}

// ListLessons handles GET /materials/lessons/
func (h *LessonHandler) ListLessons(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	if !policy.Allow(p, policy.ActionList, 0) {
		return response.Forbidden(c, "")
	}

	page := query.ParsePage(c, DefaultPageSize)
	q := scoped(h.db.WithContext(c.UserContext()).Model(&model.Lesson{}), p)

	if courseID, ok := query.UintParam(c, "course"); ok {
		q = q.Where("lessons.course_id = ?", courseID)
	}
	if term := query.Search(c); term != "" {
		pattern := query.LikePattern(term)
		q = q.Where("LOWER(lessons.title) LIKE ? OR LOWER(lessons.description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		h.log.Error("failed to count lessons", zap.Error(err))
		return response.InternalServerError(c, "Failed to count lessons")
	}

	var lessons []model.Lesson
	if err := q.Preload("Course").
		Order(query.Ordering(c, lessonOrdering, "lessons.created_at DESC")).
		Order("lessons.id DESC").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&lessons).Error; err != nil {
		h.log.Error("failed to fetch lessons", zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch lessons")
	}

	items := make([]LessonResponse, 0, len(lessons))
	for i := range lessons {
		items = append(items, newLessonResponse(&lessons[i]))
	}

	return response.Paginated(c, items, response.CalculatePagination(page.Number, page.Size, total))
}

func (h *LessonHandler) loadVisible(c *fiber.Ctx, p policy.Principal) (*model.Lesson, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}

	var lesson model.Lesson
	if err := h.db.WithContext(c.UserContext()).Preload("Course").First(&lesson, uint(id)).Error; err != nil {
		return nil, err
	}
	if !policy.Visible(p, lesson.OwnerID) {
		return nil, gorm.ErrRecordNotFound
	}
	return &lesson, nil
}

func (h *LessonHandler) loadError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NotFound(c, "Lesson not found")
	}
	h.log.Error("failed to fetch lesson", zap.Error(err))
	return response.InternalServerError(c, "Failed to fetch lesson")
}

// findCourse loads the course a lesson is attached to
func (h *LessonHandler) findCourse(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := h.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (h *LessonHandler) courseError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NotFound(c, "Course not found")
	}
	h.log.Error("failed to fetch course", zap.Error(err))
	return response.InternalServerError(c, "Failed to fetch course")
}

// GetLesson handles GET /materials/lessons/:id/
func (h *LessonHandler) GetLesson(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	if !policy.Allow(p, policy.ActionRetrieve, 0) {
		return response.Forbidden(c, "")
	}

	lesson, err := h.loadVisible(c, p)
	if err != nil {
		return h.loadError(c, err)
	}

	return response.Success(c, newLessonResponse(lesson))
}

// CreateLesson handles POST /materials/lessons/
func (h *LessonHandler) CreateLesson(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	if !policy.Allow(p, policy.ActionCreate, 0) {
		return response.Forbidden(c, "")
	}

	var req LessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.InvalidBody(c, err)
	}
	req.Title = validation.SanitizeString(req.Title)
	req.Description = validation.SanitizeString(req.Description)
	req.VideoLink = validation.SanitizeString(req.VideoLink)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	ctx := c.UserContext()
	course, err := h.findCourse(ctx, req.Course)
	if err != nil {
		return h.courseError(c, err)
	}

	lesson := model.Lesson{
		Title:       req.Title,
		Description: req.Description,
		VideoLink:   req.VideoLink,
		CourseID:    course.ID,
		OwnerID:     p.UserID,
	}
	if err := h.db.WithContext(ctx).Create(&lesson).Error; err != nil {
		h.log.Error("failed to create lesson", zap.Error(err))
		return response.InternalServerError(c, "Failed to create lesson")
	}
	lesson.Course = *course

	return response.Created(c, newLessonResponse(&lesson))
}

// UpdateLesson handles PUT /materials/lessons/:id/
func (h *LessonHandler) UpdateLesson(c *fiber.Ctx) error {
	return h.update(c, policy.ActionUpdate)
}

// PatchLesson handles PATCH /materials/lessons/:id/
func (h *LessonHandler) PatchLesson(c *fiber.Ctx) error {
	return h.update(c, policy.ActionPartialUpdate)
}

func (h *LessonHandler) update(c *fiber.Ctx, action policy.Action) error {
	p := middleware.GetPrincipal(c)
	if !p.Authenticated() {
		return response.Unauthorized(c, "")
	}

	lesson, err := h.loadVisible(c, p)
	if err != nil {
		return h.loadError(c, err)
	}

	if !policy.Allow(p, action, lesson.OwnerID) {
		return response.Forbidden(c, "")
	}

	courseID := lesson.CourseID
	if action == policy.ActionUpdate {
		var req LessonRequest
		if err := c.BodyParser(&req); err != nil {
			return response.InvalidBody(c, err)
		}
		req.Title = validation.SanitizeString(req.Title)
		req.Description = validation.SanitizeString(req.Description)
		req.VideoLink = validation.SanitizeString(req.VideoLink)
		if err := h.validator.ValidateStruct(req); err != nil {
			return response.ValidationError(c, validation.FormatValidationErrors(err))
		}
		lesson.Title = req.Title
		lesson.Description = req.Description
		lesson.VideoLink = req.VideoLink
		courseID = req.Course
	} else {
		var req LessonPatchRequest
		if err := c.BodyParser(&req); err != nil {
			return response.InvalidBody(c, err)
		}
		if req.VideoLink != nil {
			trimmed := validation.SanitizeString(*req.VideoLink)
			if trimmed == "" {
				return response.FieldError(c, "video_link", "This field may not be blank.")
			}
			req.VideoLink = &trimmed
		}
		if err := h.validator.ValidateStruct(req); err != nil {
			return response.ValidationError(c, validation.FormatValidationErrors(err))
		}
		if req.Title != nil {
			title := validation.SanitizeString(*req.Title)
			if title == "" {
				return response.FieldError(c, "title", "This field may not be blank.")
			}
			lesson.Title = title
		}
		if req.Description != nil {
			lesson.Description = validation.SanitizeString(*req.Description)
		}
		if req.VideoLink != nil {
			lesson.VideoLink = *req.VideoLink
		}
		if req.Course != nil {
			courseID = *req.Course
		}
	}

	ctx := c.UserContext()
	if courseID != lesson.CourseID {
		course, err := h.findCourse(ctx, courseID)
		if err != nil {
			return h.courseError(c, err)
		}
		lesson.CourseID = course.ID
		lesson.Course = *course
	}

	if err := h.db.WithContext(ctx).Omit("Course", "Owner").Save(lesson).Error; err != nil {
		h.log.Error("failed to update lesson", zap.Uint("lesson_id", lesson.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to update lesson")
	}

	if h.notifier != nil {
		message := fmt.Sprintf("The lesson %q was updated.", lesson.Title)
		if _, err := h.notifier.TouchAndTrigger(ctx, lesson.CourseID, message); err != nil {
			h.log.Error("failed to schedule course notification",
				zap.Uint("course_id", lesson.CourseID),
				zap.Uint("lesson_id", lesson.ID),
				zap.Error(err))
		}
	}

	return response.Success(c, newLessonResponse(lesson))
}

// DeleteLesson handles DELETE /materials/lessons/:id/
func (h *LessonHandler) DeleteLesson(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	if !p.Authenticated() {
		return response.Unauthorized(c, "")
	}

	lesson, err := h.loadVisible(c, p)
	if err != nil {
		return h.loadError(c, err)
	}

	if !policy.Allow(p, policy.ActionDestroy, lesson.OwnerID) {
		return response.Forbidden(c, "")
	}

	ctx := c.UserContext()
	referenced, err := h.payments.LessonHasPayments(ctx, lesson.ID)
	if err != nil {
		h.log.Error("failed to check lesson payments", zap.Uint("lesson_id", lesson.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to delete lesson")
	}
	if referenced {
		return response.Conflict(c, "Lesson has payments and cannot be deleted")
	}

	if err := h.db.WithContext(ctx).Delete(&model.Lesson{}, lesson.ID).Error; err != nil {
		h.log.Error("failed to delete lesson", zap.Uint("lesson_id", lesson.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to delete lesson")
	}

	return response.NoContent(c)
}
