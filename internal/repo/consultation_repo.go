// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for consultation
// logs and active sessions.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
)

// ErrActiveSessionConflict is returned by CreateActiveSession when the user
// already holds a row with status active (partial unique index violation).
var ErrActiveSessionConflict = errors.New("active session already exists")

// CreateConsultationLog inserts l, assigning ID and timestamps when unset.
func CreateConsultationLog(ctx context.Context, db *gorm.DB, l *domain.ConsultationLog) (*domain.ConsultationLog, error) {
	now := time.Now().UTC()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt, l.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// GetConsultationLog fetches a log by id owned by userID.
func GetConsultationLog(ctx context.Context, db *gorm.DB, id, userID string) (*domain.ConsultationLog, error) {
	var l domain.ConsultationLog
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SetConsultationLogStatus updates the status of a log owned by userID.
// It returns ErrNotFound when no row matched.
func SetConsultationLogStatus(ctx context.Context, db *gorm.DB, id, userID string, status domain.LogStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.ConsultationLog{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateActiveSession inserts s. A second active row for the same user is
// rejected by the storage layer and reported as ErrActiveSessionConflict.
func CreateActiveSession(ctx context.Context, db *gorm.DB, s *domain.ActiveSession) (*domain.ActiveSession, error) {
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = domain.SessionActive
	}
	s.CreatedAt, s.UpdatedAt = now, now
	if err := db.WithContext(ctx).Omit("ConsultationLog").Create(s).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrActiveSessionConflict
		}
		return nil, err
	}
	return s, nil
}

// ListActiveSessions returns the user's sessions with status active and
// expires_at after now, each with a summary of its consultation log.
func ListActiveSessions(ctx context.Context, db *gorm.DB, userID string, now time.Time) ([]domain.ActiveSession, error) {
	var out []domain.ActiveSession
	err := db.WithContext(ctx).
		Preload("ConsultationLog", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "professional_name", "specialty", "status", "estimated_wait_time")
		}).
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, domain.SessionActive, now).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ExpireSessionsForLog marks every session pointing at logID as expired and
// returns how many rows changed.
func ExpireSessionsForLog(ctx context.Context, db *gorm.DB, logID, userID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.ActiveSession{}).
		Where("consultation_log_id = ? AND user_id = ?", logID, userID).
		Updates(map[string]any{"status": domain.SessionExpired, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// CleanExpiredSessions ages out active rows whose expires_at has passed.
// On Postgres it delegates to the clean_expired_sessions() procedure
// installed by AutoMigrate. It is idempotent.
func CleanExpiredSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if isPostgres(db) {
		var n int64
		err := db.WithContext(ctx).Raw("SELECT clean_expired_sessions()").Scan(&n).Error
		return n, err
	}
	res := db.WithContext(ctx).
		Model(&domain.ActiveSession{}).
		Where("status = ? AND expires_at <= ?", domain.SessionActive, now).
		Updates(map[string]any{"status": domain.SessionExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}
