// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for system
// notifications.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
)

// CreateNotification inserts n, assigning ID and timestamps when unset.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.SystemNotification) (*domain.SystemNotification, error) {
	now := time.Now().UTC()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Type == "" {
		n.Type = domain.NotificationInfo
	}
	n.CreatedAt, n.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotifications returns the user's latest notifications, newest first.
// A non-positive limit returns every row.
func ListNotifications(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.SystemNotification, error) {
	var out []domain.SystemNotification
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MarkNotificationRead flips the read flag on a notification owned by userID.
// Marking an already-read row succeeds; a missing row yields ErrNotFound.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id, userID string) error {
	var n domain.SystemNotification
	if err := db.WithContext(ctx).Select("id").Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.SystemNotification{}).
		Where("id = ?", id).
		Updates(map[string]any{"read": true, "updated_at": time.Now().UTC()}).Error
}

// CountUnreadNotifications counts the user's notifications with read=false.
func CountUnreadNotifications(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.SystemNotification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// NotificationsStats returns how many notifications userID has and when the
// most recent one changed (nil when there are none). Together they version
// the inbox for conditional GETs.
func NotificationsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	q := db.WithContext(ctx).Model(&domain.SystemNotification{}).Where("user_id = ?", userID)

	var n int64
	if err := q.Session(&gorm.Session{}).Count(&n).Error; err != nil {
		return 0, nil, err
	}
	if n == 0 {
		return 0, nil, nil
	}
	// ORDER BY instead of MAX(): SQLite returns MAX over a datetime as TEXT.
	var latest domain.SystemNotification
	if err := q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Take(&latest).Error; err != nil {
		return 0, nil, err
	}
	return n, &latest.UpdatedAt, nil
}
