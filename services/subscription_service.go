package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sahilchouksey/edu-materials-api/model"
	"gorm.io/gorm"
)

// Toggle outcomes, returned to clients verbatim
const (
	MessageSubscriptionAdded   = "subscription added"
	MessageSubscriptionRemoved = "subscription removed"
)

// SubscriptionService flips and lists course subscriptions
type SubscriptionService struct {
	db *gorm.DB
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// ToggleResult is the outcome of a toggle
type ToggleResult struct {
	Subscribed bool
	Message    string
}

// Toggle removes the (user, course) subscription when it exists and creates
// it otherwise. Concurrent toggles of the same pair are not serialised; the
// unique index only prevents a duplicate row.
func (s *SubscriptionService) Toggle(ctx context.Context, userID, courseID uint) (*ToggleResult, error) {
	db := s.db.WithContext(ctx)

	var course model.Course
	if err := db.Select("id").First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}

	result := db.Where("user_id = ? AND course_id = ?", userID, courseID).Delete(&model.Subscription{})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to delete subscription: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return &ToggleResult{Subscribed: false, Message: MessageSubscriptionRemoved}, nil
	}

	sub := model.Subscription{UserID: userID, CourseID: courseID}
	if err := db.Create(&sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	return &ToggleResult{Subscribed: true, Message: MessageSubscriptionAdded}, nil
}

// ListForUser returns the user's own subscriptions, newest first
func (s *SubscriptionService) ListForUser(ctx context.Context, userID uint) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&subs).Error
	return subs, err
}

// IsSubscribed reports whether userID is subscribed to courseID
func (s *SubscriptionService) IsSubscribed(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

// SubscriberEmails returns the email of every active user subscribed to courseID
func (s *SubscriptionService) SubscriberEmails(ctx context.Context, courseID uint) ([]string, error) {
	var emails []string
	err := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Joins("JOIN users ON users.id = subscriptions.user_id").
		Where("subscriptions.course_id = ? AND users.is_active = ? AND users.deleted_at IS NULL", courseID, true).
		Order("subscriptions.id ASC").
		Pluck("users.email", &emails).Error
	return emails, err
}
