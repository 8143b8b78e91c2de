package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/sahilchouksey/edu-materials-api/services"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// dedupeTTL bounds how long a delivery key is remembered
const dedupeTTL = 7 * 24 * time.Hour

// Result summarises one processed event
type Result struct {
	EventID    uint
	CourseID   uint
	Outcome    string
	Recipients int
	Sent       int
	Failed     int
}

type deliveryFailure struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// claim moves an event from pending to processing. Only one caller wins.
func (d *Dispatcher) claim(ctx context.Context, id uint) (bool, error) {
	result := d.db.WithContext(ctx).
		Model(&model.CourseUpdateEvent{}).
		Where("id = ? AND status = ?", id, model.EventStatusPending).
		Updates(map[string]interface{}{
			"status":     model.EventStatusProcessing,
			"updated_at": d.now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Process sends the notification for one event. An event that is not
// pending is skipped and a nil Result is returned.
func (d *Dispatcher) Process(ctx context.Context, eventID uint) (*Result, error) {
	claimed, err := d.claim(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim event %d: %w", eventID, err)
	}
	if !claimed {
		return nil, nil
	}

	var event model.CourseUpdateEvent
	if err := d.db.WithContext(ctx).First(&event, eventID).Error; err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}

	res := &Result{EventID: event.ID, CourseID: event.CourseID}

	var course model.Course
	if err := d.db.WithContext(ctx).First(&course, event.CourseID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, d.fail(ctx, &event, fmt.Errorf("failed to load course: %w", err))
		}
		res.Outcome = model.OutcomeCourseNotFound
		return res, d.finish(ctx, &event, res, nil)
	}

	emails, err := d.subscribers.SubscriberEmails(ctx, course.ID)
	if err != nil {
		return nil, d.fail(ctx, &event, fmt.Errorf("failed to load subscribers: %w", err))
	}
	res.Recipients = len(emails)
	if len(emails) == 0 {
		res.Outcome = model.OutcomeNoSubscribers
		return res, d.finish(ctx, &event, res, nil)
	}

	subject := "Course update: " + course.Title
	body := services.CourseUpdateBody(course.Title, event.Message, d.CourseLink(&course))

	var failures []deliveryFailure
	for _, to := range emails {
		if d.alreadyDelivered(ctx, event.IdempotencyKey, to) {
			d.log.Debug("notification already delivered",
				zap.Uint("course_id", course.ID),
				zap.String("recipient", to))
			continue
		}

		if err := d.mailer.Send(ctx, to, subject, body); err != nil {
			d.forgetDelivery(ctx, event.IdempotencyKey, to)
			res.Failed++
			failures = append(failures, deliveryFailure{Recipient: to, Error: err.Error()})
			d.log.Error("failed to send course update notification",
				zap.Uint("course_id", course.ID),
				zap.Uint("event_id", event.ID),
				zap.String("recipient", to),
				zap.Error(err))
			continue
		}
		res.Sent++
	}

	if res.Sent == 0 && res.Failed > 0 {
		res.Outcome = model.OutcomeFailed
	} else {
		res.Outcome = model.OutcomeSent
	}

	d.log.Info("course update notifications processed",
		zap.Uint("course_id", course.ID),
		zap.Uint("event_id", event.ID),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed))

	return res, d.finish(ctx, &event, res, failures)
}

// alreadyDelivered marks (event, recipient) as delivered and reports whether
// it had been marked before. Without a deduper nothing is ever skipped.
func (d *Dispatcher) alreadyDelivered(ctx context.Context, key, recipient string) bool {
	if d.dedupe == nil {
		return false
	}
	fresh, err := d.dedupe.SetNX(ctx, deliveryKey(key, recipient), 1, dedupeTTL)
	if err != nil {
		d.log.Warn("notification dedupe unavailable", zap.Error(err))
		return false
	}
	return !fresh
}

// forgetDelivery releases the key taken by alreadyDelivered after a failed send
func (d *Dispatcher) forgetDelivery(ctx context.Context, key, recipient string) {
	if d.dedupe == nil {
		return
	}
	if err := d.dedupe.Delete(ctx, deliveryKey(key, recipient)); err != nil {
		d.log.Warn("failed to release notification dedupe key", zap.String("recipient", recipient), zap.Error(err))
	}
}

func deliveryKey(key, recipient string) string {
	return "notify:" + key + ":" + recipient
}

func (d *Dispatcher) finish(ctx context.Context, event *model.CourseUpdateEvent, res *Result, failures []deliveryFailure) error {
	status := model.EventStatusCompleted
	if res.Outcome == model.OutcomeFailed {
		status = model.EventStatusFailed
	}

	updates := map[string]interface{}{
		"status":       status,
		"outcome":      res.Outcome,
		"recipients":   res.Recipients,
		"sent_count":   res.Sent,
		"failed_count": res.Failed,
		"processed_at": d.now(),
	}
	if len(failures) > 0 {
		payload, err := json.Marshal(map[string]interface{}{"failures": failures})
		if err == nil {
			updates["payload"] = datatypes.JSON(payload)
		}
	}

	if err := d.db.WithContext(ctx).Model(event).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record event outcome: %w", err)
	}
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, event *model.CourseUpdateEvent, cause error) error {
	d.log.Error("course update event failed",
		zap.Uint("course_id", event.CourseID),
		zap.Uint("event_id", event.ID),
		zap.Error(cause))

	err := d.db.WithContext(ctx).Model(event).Updates(map[string]interface{}{
		"status":       model.EventStatusFailed,
		"outcome":      model.OutcomeFailed,
		"processed_at": d.now(),
	}).Error
	if err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// ProcessPending processes, in creation order, every pending event created
// at least olderThan ago. It returns how many events were processed.
func (d *Dispatcher) ProcessPending(ctx context.Context, olderThan time.Duration) (int, error) {
	var ids []uint
	if err := d.db.WithContext(ctx).
		Model(&model.CourseUpdateEvent{}).
		Where("status = ? AND created_at <= ?", model.EventStatusPending, d.now().Add(-olderThan)).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to list pending events: %w", err)
	}

	processed := 0
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		res, err := d.Process(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res != nil {
			processed++
		}
	}
	return processed, errors.Join(errs...)
}

// PurgeCompleted deletes completed events processed before cutoff
func (d *Dispatcher) PurgeCompleted(ctx context.Context, before time.Time) (int64, error) {
	result := d.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", model.EventStatusCompleted, before).
		Delete(&model.CourseUpdateEvent{})
	return result.RowsAffected, result.Error
}

// CourseLink is the public URL of a course used in emails
func (d *Dispatcher) CourseLink(course *model.Course) string {
	return fmt.Sprintf("%s/courses/%d-%s", d.cfg.AppURL, course.ID, course.Slug)
}
