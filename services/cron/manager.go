package cron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/sahilchouksey/edu-materials-api/services/notify"
	"github.com/sahilchouksey/edu-materials-api/utils/auth"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// jobTimeout bounds a single job run
const jobTimeout = 10 * time.Minute

// SummaryMailer sends the inactive-user report
type SummaryMailer interface {
	SendInactiveUsersSummary(ctx context.Context, emails []string, days int) error
}

// Config holds job settings
type Config struct {
	InactiveUserDays int
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron       *cron.Cron
	db         *gorm.DB
	log        *zap.Logger
	dispatcher *notify.Dispatcher
	blacklist  *auth.BlacklistService
	mailer     SummaryMailer
	cfg        Config
}

// NewCronManager creates a new cron manager with seconds precision
func NewCronManager(db *gorm.DB, log *zap.Logger, dispatcher *notify.Dispatcher, mailer SummaryMailer, cfg Config) *CronManager {
	if cfg.InactiveUserDays < 1 {
		cfg.InactiveUserDays = 30
	}

	return &CronManager{
		cron:       cron.New(cron.WithSeconds()),
		db:         db,
		log:        log,
		dispatcher: dispatcher,
		blacklist:  auth.NewBlacklistService(db),
		mailer:     mailer,
		cfg:        cfg,
	}
}

// Start registers and starts all cron jobs
func (m *CronManager) Start() error {
	m.log.Info("starting cron jobs")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	m.log.Info("cron jobs started", zap.Int("jobs", len(m.cron.Entries())))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (m *CronManager) Stop() {
	m.log.Info("stopping cron jobs")
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info("cron jobs stopped")
}

// jobFunc returns a completion message and optional metadata
type jobFunc func(ctx context.Context) (string, map[string]interface{}, error)

func (m *CronManager) registerJobs() error {
	jobs := []struct {
		spec string
		name string
		fn   jobFunc
	}{
		// Every minute: resubmit notification events left pending
		{"0 * * * * *", "redrive_course_notifications", m.RedrivePendingNotifications},
		// Daily at 3 AM: deactivate users who stopped logging in
		{"0 0 3 * * *", "deactivate_inactive_users", m.DeactivateInactiveUsers},
		// Daily at 4 AM: purge expired blacklist rows
		{"0 0 4 * * *", "purge_expired_tokens", m.PurgeExpiredTokens},
		// Daily at 4:30 AM: purge old completed notification events
		{"0 30 4 * * *", "purge_notification_events", m.PurgeNotificationEvents},
	}

	for _, job := range jobs {
		job := job
		if _, err := m.cron.AddFunc(job.spec, func() { m.run(job.name, job.fn) }); err != nil {
			return err
		}
	}

	return nil
}

// run executes fn and records the run in cron_job_logs
func (m *CronManager) run(jobName string, fn jobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	started := time.Now()
	entry := model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: started,
		Metadata:  datatypes.JSON("{}"),
	}
	if err := m.db.WithContext(ctx).Create(&entry).Error; err != nil {
		m.log.Warn("failed to record cron job start", zap.String("job", jobName), zap.Error(err))
	}

	message, metadata, err := fn(ctx)

	completed := time.Now()
	updates := map[string]interface{}{
		"completed_at": completed,
		"duration":     completed.Sub(started).Milliseconds(),
	}
	if metadata != nil {
		if raw, mErr := json.Marshal(metadata); mErr == nil {
			updates["metadata"] = datatypes.JSON(raw)
		}
	}

	if err != nil {
		m.log.Error("cron job failed", zap.String("job", jobName), zap.Error(err))
		updates["status"] = "failed"
		updates["error_msg"] = err.Error()
	} else {
		m.log.Info("cron job completed", zap.String("job", jobName), zap.String("message", message))
		updates["status"] = "completed"
		updates["message"] = message
	}

	if entry.ID != 0 {
		m.db.Model(&model.CronJobLog{}).Where("id = ?", entry.ID).Updates(updates)
	}
}
