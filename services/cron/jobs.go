package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/edu-materials-api/model"
	"go.uber.org/zap"
)

// redriveAge leaves freshly written events to the worker pool
const redriveAge = time.Minute

// eventRetention is how long completed notification events are kept
const eventRetention = 30 * 24 * time.Hour

// RedrivePendingNotifications processes notification events still pending
// after redriveAge, such as those dropped by a full queue or a restart
func (m *CronManager) RedrivePendingNotifications(ctx context.Context) (string, map[string]interface{}, error) {
	if m.dispatcher == nil {
		return "Notifications disabled", nil, nil
	}

	processed, err := m.dispatcher.ProcessPending(ctx, redriveAge)
	if err != nil {
		return "", nil, err
	}

	return fmt.Sprintf("Processed %d pending events", processed),
		map[string]interface{}{"processed": processed}, nil
}

// DeactivateInactiveUsers deactivates non-superusers whose last login is
// older than InactiveUserDays, revokes their tokens and emails a summary
func (m *CronManager) DeactivateInactiveUsers(ctx context.Context) (string, map[string]interface{}, error) {
	cutoff := time.Now().AddDate(0, 0, -m.cfg.InactiveUserDays)

	var users []model.User
	if err := m.db.WithContext(ctx).
		Where("is_active = ? AND is_superuser = ? AND last_login < ?", true, false, cutoff).
		Find(&users).Error; err != nil {
		return "", nil, fmt.Errorf("failed to query inactive users: %w", err)
	}

	if len(users) == 0 {
		return "No inactive users", nil, nil
	}

	ids := make([]uint, 0, len(users))
	emails := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
		emails = append(emails, u.Email)
	}

	if err := m.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id IN ?", ids).
		Update("is_active", false).Error; err != nil {
		return "", nil, fmt.Errorf("failed to deactivate users: %w", err)
	}

	for _, id := range ids {
		if err := m.blacklist.RevokeAllUserTokens(ctx, id); err != nil {
			m.log.Warn("failed to revoke tokens of deactivated user", zap.Uint("user_id", id), zap.Error(err))
		}
	}

	if m.mailer != nil {
		if err := m.mailer.SendInactiveUsersSummary(ctx, emails, m.cfg.InactiveUserDays); err != nil {
			m.log.Warn("failed to send inactive users summary", zap.Error(err))
		}
	}

	return fmt.Sprintf("Deactivated %d users", len(users)),
		map[string]interface{}{"deactivated": len(users), "emails": emails}, nil
}

// PurgeExpiredTokens removes blacklist rows whose tokens have expired
func (m *CronManager) PurgeExpiredTokens(ctx context.Context) (string, map[string]interface{}, error) {
	removed, err := m.blacklist.CleanupExpiredTokens(ctx)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Removed %d expired tokens", removed),
		map[string]interface{}{"removed": removed}, nil
}

// PurgeNotificationEvents removes completed events older than eventRetention
func (m *CronManager) PurgeNotificationEvents(ctx context.Context) (string, map[string]interface{}, error) {
	if m.dispatcher == nil {
		return "Notifications disabled", nil, nil
	}

	removed, err := m.dispatcher.PurgeCompleted(ctx, time.Now().Add(-eventRetention))
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Removed %d notification events", removed),
		map[string]interface{}{"removed": removed}, nil
}
