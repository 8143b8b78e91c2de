// Package notify emails course subscribers after a course changes. Updates
// are written to an outbox table and sent by a small worker pool.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sahilchouksey/edu-materials-api/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultCooldown is the minimum age of a course's previous update before
// subscribers are emailed again
const DefaultCooldown = 4 * time.Hour

// Mailer delivers a single message
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Deduper records per-recipient delivery keys shared across instances
type Deduper interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// SubscriberSource lists the recipients for a course
type SubscriberSource interface {
	SubscriberEmails(ctx context.Context, courseID uint) ([]string, error)
}

// Config tunes the dispatcher
type Config struct {
	Workers   int
	QueueSize int
	Cooldown  time.Duration
	AppURL    string
}

// Option customises a Dispatcher
type Option func(*Dispatcher)

// WithDeduper enables cross-instance de-duplication of deliveries
func WithDeduper(d Deduper) Option {
	return func(disp *Dispatcher) { disp.dedupe = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(disp *Dispatcher) { disp.now = now }
}

// Dispatcher turns course updates into outbox events and processes them
type Dispatcher struct {
	db          *gorm.DB
	mailer      Mailer
	subscribers SubscriberSource
	dedupe      Deduper
	log         *zap.Logger
	cfg         Config
	now         func() time.Time

	queue   chan uint
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewDispatcher creates a dispatcher. Call Start to run the worker pool.
func NewDispatcher(db *gorm.DB, mailer Mailer, subscribers SubscriberSource, log *zap.Logger, cfg Config, opts ...Option) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 100
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")

	d := &Dispatcher{
		db:          db,
		mailer:      mailer,
		subscribers: subscribers,
		log:         log,
		cfg:         cfg,
		now:         time.Now,
		queue:       make(chan uint, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker pool. Workers stop when ctx is cancelled or
// Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.log.Info("notification workers started", zap.Int("workers", d.cfg.Workers))
}

// Stop closes the queue and waits for in-flight events to finish
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("notification workers stopped")
}

func (d *Dispatcher) worker(ctx context.Context, n int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-d.queue:
			if !ok {
				return
			}
			if _, err := d.Process(ctx, id); err != nil {
				d.log.Error("notification event failed",
					zap.Int("worker", n),
					zap.Uint("event_id", id),
					zap.Error(err))
			}
		}
	}
}

// enqueue hands an event to the pool without blocking. Events left behind
// stay pending and are picked up by ProcessPending.
func (d *Dispatcher) enqueue(id uint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return false
	}
	select {
	case d.queue <- id:
		return true
	default:
		d.log.Warn("notification queue full, leaving event pending", zap.Uint("event_id", id))
		return false
	}
}

// ShouldNotify reports whether a course last updated at previous is past the cooldown
func (d *Dispatcher) ShouldNotify(previous time.Time) bool {
	return d.now().Sub(previous) > d.cfg.Cooldown
}

// IdempotencyKey identifies the notification for one course update
func IdempotencyKey(courseID uint, updatedAt time.Time) string {
	return fmt.Sprintf("course:%d:%d", courseID, updatedAt.UnixNano())
}

// Trigger records a notification for course, whose updated_at before this
// update was previous. It returns nil when the cooldown suppresses it. The
// event is sent asynchronously.
func (d *Dispatcher) Trigger(ctx context.Context, course *model.Course, previous time.Time, message string) (*model.CourseUpdateEvent, error) {
	if !d.ShouldNotify(previous) {
		d.log.Debug("course update within cooldown, not notifying",
			zap.Uint("course_id", course.ID),
			zap.Time("previous_update", previous))
		return nil, nil
	}

	event := model.CourseUpdateEvent{
		CourseID:       course.ID,
		IdempotencyKey: IdempotencyKey(course.ID, course.UpdatedAt),
		Message:        message,
		Status:         model.EventStatusPending,
	}

	result := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "idempotency_key"}}, DoNothing: true}).
		Create(&event)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to record course update event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// same update already recorded
		var existing model.CourseUpdateEvent
		if err := d.db.WithContext(ctx).Where("idempotency_key = ?", event.IdempotencyKey).First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}

	d.enqueue(event.ID)
	return &event, nil
}

// TouchAndTrigger is used after a lesson update. When the parent course is
// past the cooldown its updated_at is refreshed and an event is recorded.
func (d *Dispatcher) TouchAndTrigger(ctx context.Context, courseID uint, message string) (*model.CourseUpdateEvent, error) {
	var course model.Course
	if err := d.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	previous := course.UpdatedAt
	if !d.ShouldNotify(previous) {
		return nil, nil
	}

	now := d.now()
	if err := d.db.WithContext(ctx).Model(&model.Course{}).
		Where("id = ?", course.ID).
		UpdateColumn("updated_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to touch course: %w", err)
	}
	course.UpdatedAt = now

	return d.Trigger(ctx, &course, previous, message)
}
