// Package services – SessionRegistry
//
// This file implements the SessionRegistry, which tracks the single live
// consultation a user may hold. Expiry is lazy: rows past expires_at stay
// active until CleanExpiredSessions runs, so reads always filter on
// expires_at as well. Uniqueness of the active row is enforced by the
// storage layer (see repo.AutoMigrate), not by this type.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
)

// SessionRegistry reads and retires active sessions.
type SessionRegistry struct {
	DB *gorm.DB
	// Notifications receives the cancellation notice; nil disables it.
	Notifications *NotificationSink
	// Now overrides the clock in tests.
	Now func() time.Time
}

func (r *SessionRegistry) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// CleanExpiredSessions ages out sessions past their deadline. Safe to call
// repeatedly.
func (r *SessionRegistry) CleanExpiredSessions(ctx context.Context) (int64, error) {
	return repo.CleanExpiredSessions(ctx, r.DB, r.now())
}

// GetActiveSessions returns the user's live sessions with their log summary.
func (r *SessionRegistry) GetActiveSessions(ctx context.Context, userID string) ([]domain.ActiveSession, error) {
	out, err := repo.ListActiveSessions(ctx, r.DB, userID, r.now())
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.ActiveSession{}
	}
	return out, nil
}

// CancelSession marks the consultation log cancelled and expires every
// session pointing at it, then notifies the user. The log must belong to
// userID; otherwise ErrConsultationNotFound.
func (r *SessionRegistry) CancelSession(ctx context.Context, userID, consultationLogID string) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.SetConsultationLogStatus(ctx, tx, consultationLogID, userID, domain.LogCancelled); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrConsultationNotFound
			}
			return err
		}
		n, err := repo.ExpireSessionsForLog(ctx, tx, consultationLogID, userID)
		if err != nil {
			return err
		}
		log.Debug().Str("consultation_log_id", consultationLogID).Int64("sessions", n).Msg("sessions expired")
		return nil
	})
	if err != nil {
		return err
	}

	if r.Notifications != nil {
		r.Notifications.Notify(ctx, userID, Notification{
			Title:   "Consulta Cancelada",
			Message: "Sua consulta foi cancelada com sucesso.",
			Type:    domain.NotificationInfo,
		})
	}
	return nil
}
