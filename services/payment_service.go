package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sahilchouksey/edu-materials-api/model"
	"gorm.io/gorm"
)

// PaymentService records and lists payments for courses and lessons
type PaymentService struct {
	db *gorm.DB
}

// NewPaymentService creates a new payment service
func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{db: db}
}

// CreatePaymentInput is a validated payment creation request
type CreatePaymentInput struct {
	CourseID      *uint
	LessonID      *uint
	Amount        float64
	PaymentMethod string
}

// PaymentFilter narrows ListForUser
type PaymentFilter struct {
	CourseID      uint
	LessonID      uint
	PaymentMethod string
	Order         string
	Offset        int
	Limit         int
}

// PaymentView is a payment with the titles of what it paid for
type PaymentView struct {
	ID            uint      `json:"id"`
	UserID        uint      `json:"user_id"`
	UserEmail     string    `json:"user_email"`
	CourseID      *uint     `json:"course_id"`
	CourseTitle   string    `json:"course_title,omitempty"`
	LessonID      *uint     `json:"lesson_id"`
	LessonTitle   string    `json:"lesson_title,omitempty"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	PaymentDate   time.Time `json:"payment_date"`
}

func toPaymentView(p *model.Payment) PaymentView {
	v := PaymentView{
		ID:            p.ID,
		UserID:        p.UserID,
		UserEmail:     p.User.Email,
		CourseID:      p.CourseID,
		LessonID:      p.LessonID,
		Amount:        p.Amount,
		PaymentMethod: p.PaymentMethod,
		PaymentDate:   p.PaymentDate,
	}
	if p.Course != nil {
		v.CourseTitle = p.Course.Title
	}
	if p.Lesson != nil {
		v.LessonTitle = p.Lesson.Title
	}
	return v
}

func (s *PaymentService) withRefs(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("User").Preload("Course").Preload("Lesson")
}

// Create records a payment for exactly one course or lesson. The referenced
// row must exist.
func (s *PaymentService) Create(ctx context.Context, userID uint, in CreatePaymentInput) (*PaymentView, error) {
	if (in.CourseID == nil) == (in.LessonID == nil) {
		return nil, ErrPaymentTarget
	}

	db := s.db.WithContext(ctx)

	if in.CourseID != nil {
		if err := db.Select("id").First(&model.Course{}, *in.CourseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCourseNotFound
			}
			return nil, fmt.Errorf("failed to load course: %w", err)
		}
	} else {
		if err := db.Select("id").First(&model.Lesson{}, *in.LessonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrLessonNotFound
			}
			return nil, fmt.Errorf("failed to load lesson: %w", err)
		}
	}

	payment := model.Payment{
		UserID:        userID,
		CourseID:      in.CourseID,
		LessonID:      in.LessonID,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
	}
	if err := db.Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return s.Get(ctx, userID, payment.ID)
}

// Get returns one of the user's own payments
func (s *PaymentService) Get(ctx context.Context, userID, id uint) (*PaymentView, error) {
	var payment model.Payment
	if err := s.withRefs(ctx).Where("user_id = ?", userID).First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	v := toPaymentView(&payment)
	return &v, nil
}

// ListForUser returns a page of the user's payments and the total match count
func (s *PaymentService) ListForUser(ctx context.Context, userID uint, f PaymentFilter) ([]PaymentView, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Payment{}).Where("user_id = ?", userID)

	if f.CourseID != 0 {
		query = query.Where("course_id = ?", f.CourseID)
	}
	if f.LessonID != 0 {
		query = query.Where("lesson_id = ?", f.LessonID)
	}
	if f.PaymentMethod != "" {
		query = query.Where("payment_method = ?", f.PaymentMethod)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	order := f.Order
	if order == "" {
		order = "payment_date DESC"
	}

	var payments []model.Payment
	if err := query.Preload("User").Preload("Course").Preload("Lesson").
		Order(order).
		Order("id DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}

	views := make([]PaymentView, 0, len(payments))
	for i := range payments {
		views = append(views, toPaymentView(&payments[i]))
	}
	return views, total, nil
}

// CourseHasPayments reports whether the course, or any of its lessons, is
// referenced by a payment
func (s *PaymentService) CourseHasPayments(ctx context.Context, courseID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("course_id = ? OR lesson_id IN (?)", courseID,
			s.db.Model(&model.Lesson{}).Select("id").Where("course_id = ?", courseID)).
		Count(&count).Error
	return count > 0, err
}

// LessonHasPayments reports whether the lesson is referenced by a payment
func (s *PaymentService) LessonHasPayments(ctx context.Context, lessonID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("lesson_id = ?", lessonID).
		Count(&count).Error
	return count > 0, err
}
