// Package services – NotificationSink
//
// This file implements the NotificationSink. Notifications are a best-effort
// side channel: Notify never returns an error, it reports a NotifyOutcome that
// callers may log or count but must not turn into a failure of the primary
// operation.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/observability"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
)

// DefaultNotificationLimit is used by List when limit <= 0.
const DefaultNotificationLimit = 20

// NotifyOutcome is the delivery result of a best-effort notification.
type NotifyOutcome int

const (
	// Notified means the row was written.
	Notified NotifyOutcome = iota
	// NotificationFailed means the write failed and was only logged.
	NotificationFailed
)

func (o NotifyOutcome) String() string {
	if o == Notified {
		return "notified"
	}
	return "failed"
}

// Notification is the content of a system notification.
type Notification struct {
	Title     string
	Message   string
	Type      domain.NotificationType
	Priority  string
	ActionURL string
	Metadata  map[string]any
}

// NotificationSink writes and reads system notifications.
type NotificationSink struct {
	DB *gorm.DB
}

// Notify writes n for userID.
func (s *NotificationSink) Notify(ctx context.Context, userID string, n Notification) NotifyOutcome {
	return s.write(ctx, userID, nil, n)
}

// NotifyBeneficiary writes n for the user linked to beneficiaryUUID. When no
// local beneficiary exists the row is kept with only the beneficiary UUID.
func (s *NotificationSink) NotifyBeneficiary(ctx context.Context, beneficiaryUUID string, n Notification) NotifyOutcome {
	var userID string
	b, err := repo.GetBeneficiaryByUUID(ctx, s.DB, beneficiaryUUID)
	switch {
	case err == nil:
		userID = b.UserID
	case !errors.Is(err, repo.ErrNotFound):
		log.Warn().Err(err).Str("beneficiary_uuid", beneficiaryUUID).Msg("notification: beneficiary lookup failed")
	}
	return s.write(ctx, userID, &beneficiaryUUID, n)
}

func (s *NotificationSink) write(ctx context.Context, userID string, beneficiaryUUID *string, n Notification) NotifyOutcome {
	row := &domain.SystemNotification{
		UserID:          userID,
		BeneficiaryUUID: beneficiaryUUID,
		Title:           n.Title,
		Message:         n.Message,
		Type:            n.Type,
		Priority:        n.Priority,
	}
	if n.ActionURL != "" {
		u := n.ActionURL
		row.ActionURL = &u
	}
	if n.Metadata != nil {
		if raw, err := json.Marshal(n.Metadata); err == nil {
			row.Metadata = datatypes.JSON(raw)
		}
	}

	outcome := Notified
	if _, err := repo.CreateNotification(ctx, s.DB, row); err != nil {
		outcome = NotificationFailed
		log.Warn().Err(err).Str("user_id", userID).Str("title", n.Title).Msg("notification dropped")
	}
	observability.ObserveNotification(outcome.String())
	return outcome
}

// List returns the user's latest notifications, newest first.
func (s *NotificationSink) List(ctx context.Context, userID string, limit int) ([]domain.SystemNotification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	return repo.ListNotifications(ctx, s.DB, userID, limit)
}

// MarkRead flags a notification owned by userID as read.
func (s *NotificationSink) MarkRead(ctx context.Context, userID, id string) error {
	if err := repo.MarkNotificationRead(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

// Stats returns the row count and latest update time of the user's
// notifications, for conditional responses.
func (s *NotificationSink) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.NotificationsStats(ctx, s.DB, userID)
}

// UnreadCount counts the user's unread notifications.
func (s *NotificationSink) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return repo.CountUnreadNotifications(ctx, s.DB, userID)
}
