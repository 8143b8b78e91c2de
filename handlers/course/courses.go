package course

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/sahilchouksey/edu-materials-api/services/policy"
	"github.com/sahilchouksey/edu-materials-api/utils/middleware"
	"github.com/sahilchouksey/edu-materials-api/utils/query"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
	"github.com/sahilchouksey/edu-materials-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var courseOrdering = map[string]string{
	"title":      "courses.title",
	"created_at": "courses.created_at",
	"updated_at": "courses.updated_at",
}

// ListCourses handles GET /materials/courses/
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	if !policy.Allow(p, policy.ActionList, 0) {
		return response.Forbidden(c, "")
	}

	page := query.ParsePage(c, DefaultPageSize)
	q := scoped(h.db.WithContext(c.UserContext()).Model(&model.Course{}), p)

	if term := query.Search(c); term != "" {
		pattern := query.LikePattern(term)
		q = q.Where("LOWER(courses.title) LIKE ? OR LOWER(courses.description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		h.log.Error("failed to count courses", zap.Error(err))
		return response.InternalServerError(c, "Failed to count courses")
	}

	var courses []model.Course
	if err := q.Order(query.Ordering(c, courseOrdering, "courses.created_at DESC")).
		Order("courses.id DESC").
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&courses).Error; err != nil {
		h.log.Error("failed to fetch courses", zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	items, err := h.decorate(c, p, courses)
	if err != nil {
		h.log.Error("failed to load course details", zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	return response.Paginated(c, items, response.CalculatePagination(page.Number, page.Size, total))
}

// decorate adds lesson counts and the caller's subscription flag
func (h *CourseHandler) decorate(c *fiber.Ctx, p policy.Principal, courses []model.Course) ([]CourseResponse, error) {
	items := make([]CourseResponse, 0, len(courses))
	if len(courses) == 0 {
		return items, nil
	}

	ids := make([]uint, 0, len(courses))
	for _, course := range courses {
		ids = append(ids, course.ID)
	}

	db := h.db.WithContext(c.UserContext())

	var counts []struct {
		CourseID uint
		Total    int64
	}
	if err := db.Model(&model.Lesson{}).
		Select("course_id, COUNT(*) AS total").
		Where("course_id IN ?", ids).
		Group("course_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	lessonCounts := make(map[uint]int64, len(counts))
	for _, row := range counts {
		lessonCounts[row.CourseID] = row.Total
	}

	var subscribed []uint
	if err := db.Model(&model.Subscription{}).
		Where("user_id = ? AND course_id IN ?", p.UserID, ids).
		Pluck("course_id", &subscribed).Error; err != nil {
		return nil, err
	}
	isSubscribed := make(map[uint]bool, len(subscribed))
	for _, id := range subscribed {
		isSubscribed[id] = true
	}

	for i := range courses {
		item := newCourseResponse(&courses[i])
		item.LessonsCount = lessonCounts[courses[i].ID]
		item.IsSubscribed = isSubscribed[courses[i].ID]
		items = append(items, item)
	}
	return items, nil
}

// loadVisible loads the course from :id. Rows the caller cannot see are
// reported as not found.
func (h *CourseHandler) loadVisible(c *fiber.Ctx, p policy.Principal) (*model.Course, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}

	var course model.Course
	if err := h.db.WithContext(c.UserContext()).First(&course, uint(id)).Error; err != nil {
		return nil, err
	}
	if !policy.Visible(p, course.OwnerID) {
		return nil, gorm.ErrRecordNotFound
	}
	return &course, nil
}

func (h *CourseHandler) loadError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NotFound(c, "Course not found")
	}
	h.log.Error("failed to fetch course", zap.Error(err))
	return response.InternalServerError(c, "Failed to fetch course")
}

// GetCourse handles GET /materials/courses/:id/
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	if !policy.Allow(p, policy.ActionRetrieve, 0) {
		return response.Forbidden(c, "")
	}

	course, err := h.loadVisible(c, p)
	if err != nil {
		return h.loadError(c, err)
	}

	return h.detail(c, p, course, fiber.StatusOK)
}

func (h *CourseHandler) detail(c *fiber.Ctx, p policy.Principal, course *model.Course, status int) error {
	ctx := c.UserContext()

	var lessons []model.Lesson
	if err := h.db.WithContext(ctx).Where("course_id = ?", course.ID).Order("id ASC").Find(&lessons).Error; err != nil {
		h.log.Error("failed to fetch lessons", zap.Uint("course_id", course.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch course")
	}

	subscribed, err := h.subscriptions.IsSubscribed(ctx, p.UserID, course.ID)
	if err != nil {
		h.log.Error("failed to check subscription", zap.Uint("course_id", course.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch course")
	}

	item := newCourseResponse(course)
	item.LessonsCount = int64(len(lessons))
	item.IsSubscribed = subscribed
	item.Lessons = make([]LessonSummary, 0, len(lessons))
	for _, l := range lessons {
		item.Lessons = append(item.Lessons, LessonSummary{
			ID:          l.ID,
			Title:       l.Title,
			Description: l.Description,
			VideoLink:   l.VideoLink,
			OwnerID:     l.OwnerID,
		})
	}

	if status == fiber.StatusCreated {
		return response.Created(c, item)
	}
	return response.Success(c, item)
}

// CreateCourse handles POST /materials/courses/
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	if !policy.Allow(p, policy.ActionCreate, 0) {
		return response.Forbidden(c, "")
	}

	var req CourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.InvalidBody(c, err)
	}
	req.Title = validation.SanitizeString(req.Title)
	req.Description = validation.SanitizeString(req.Description)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	course := model.Course{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     p.UserID,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&course).Error; err != nil {
		h.log.Error("failed to create course", zap.Error(err))
		return response.InternalServerError(c, "Failed to create course")
	}

	return h.detail(c, p, &course, fiber.StatusCreated)
}

// UpdateCourse handles PUT /materials/courses/:id/
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	return h.update(c, policy.ActionUpdate)
}

// PatchCourse handles PATCH /materials/courses/:id/
func (h *CourseHandler) PatchCourse(c *fiber.Ctx) error {
	return h.update(c, policy.ActionPartialUpdate)
}

func (h *CourseHandler) update(c *fiber.Ctx, action policy.Action) error {
	p := middleware.GetPrincipal(c)
	if !p.Authenticated() {
		return response.Unauthorized(c, "")
	}

	course, err := h.loadVisible(c, p)
	if err != nil {
		return h.loadError(c, err)
	}

	if !policy.Allow(p, action, course.OwnerID) {
		return response.Forbidden(c, "")
	}

	if action == policy.ActionUpdate {
		var req CourseRequest
		if err := c.BodyParser(&req); err != nil {
			return response.InvalidBody(c, err)
		}
		req.Title = validation.SanitizeString(req.Title)
		req.Description = validation.SanitizeString(req.Description)
		if err := h.validator.ValidateStruct(req); err != nil {
			return response.ValidationError(c, validation.FormatValidationErrors(err))
		}
		course.Title = req.Title
		course.Description = req.Description
	} else {
		var req CoursePatchRequest
		if err := c.BodyParser(&req); err != nil {
			return response.InvalidBody(c, err)
		}
		if err := h.validator.ValidateStruct(req); err != nil {
			return response.ValidationError(c, validation.FormatValidationErrors(err))
		}
		if req.Title != nil {
			title := validation.SanitizeString(*req.Title)
			if title == "" {
				return response.FieldError(c, "title", "This field may not be blank.")
			}
			course.Title = title
		}
		if req.Description != nil {
			course.Description = validation.SanitizeString(*req.Description)
		}
	}

	previous := course.UpdatedAt
	ctx := c.UserContext()
	if err := h.db.WithContext(ctx).Omit(clause.Associations).Save(course).Error; err != nil {
		h.log.Error("failed to update course", zap.Uint("course_id", course.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to update course")
	}

	if h.notifier != nil {
		if _, err := h.notifier.Trigger(ctx, course, previous, "The course details were updated."); err != nil {
			h.log.Error("failed to schedule course notification", zap.Uint("course_id", course.ID), zap.Error(err))
		}
	}

	return h.detail(c, p, course, fiber.StatusOK)
}

// DeleteCourse handles DELETE /materials/courses/:id/
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	if !p.Authenticated() {
		return response.Unauthorized(c, "")
	}

	course, err := h.loadVisible(c, p)
	if err != nil {
		return h.loadError(c, err)
	}

	if !policy.Allow(p, policy.ActionDestroy, course.OwnerID) {
		return response.Forbidden(c, "")
	}

	ctx := c.UserContext()
	referenced, err := h.payments.CourseHasPayments(ctx, course.ID)
	if err != nil {
		h.log.Error("failed to check course payments", zap.Uint("course_id", course.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to delete course")
	}
	if referenced {
		return response.Conflict(c, "Course or its lessons have payments and cannot be deleted")
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", course.ID).Delete(&model.Subscription{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", course.ID).Delete(&model.Lesson{}).Error; err != nil {
			return err
		}
		return tx.Delete(course).Error
	})
	if err != nil {
		h.log.Error("failed to delete course", zap.Uint("course_id", course.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to delete course")
	}

	return response.NoContent(c)
}
