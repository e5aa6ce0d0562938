// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// consultation queue ledger.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a queue row is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateQueueEntry(ctx, db, entry) -> *domain.ConsultationRequest, error
//     Inserts a new ledger row with UUID primary key and UTC timestamps.
//
//   - UpdateQueueStatus(ctx, db, id, status) -> error
//     Moves a row to a new status. Rows are never deleted.
//
//   - ListUserQueue(ctx, db, userID, statuses, limit) -> []domain.ConsultationRequest, error
//     Latest rows for a user in any of the given statuses.
//
//   - CountWaitingByServiceType(ctx, db) -> []ServiceTypeCount, error
//     Global waiting counts grouped by service type.
//
// Usage:
//
//	entry, err := repo.CreateQueueEntry(ctx, db, &domain.ConsultationRequest{...})
//	if err != nil {
//	    // handle DB failure
//	}
//	_ = repo.UpdateQueueStatus(ctx, db, entry.ID, domain.QueueAssigned)
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ServiceTypeCount is one row of the waiting-queue breakdown.
type ServiceTypeCount struct {
	ServiceType domain.ServiceType `json:"service_type"`
	Count       int64              `json:"count"`
}

// CreateQueueEntry inserts e, assigning ID and timestamps when unset.
func CreateQueueEntry(ctx context.Context, db *gorm.DB, e *domain.ConsultationRequest) (*domain.ConsultationRequest, error) {
	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = domain.QueueWaiting
	}
	e.CreatedAt, e.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateQueueStatus sets the status of the ledger row identified by id.
// It returns ErrNotFound if no row matched.
func UpdateQueueStatus(ctx context.Context, db *gorm.DB, id string, status domain.QueueStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.ConsultationRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetQueueEntry fetches a single ledger row by id.
func GetQueueEntry(ctx context.Context, db *gorm.DB, id string) (*domain.ConsultationRequest, error) {
	var e domain.ConsultationRequest
	if err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListUserQueue returns up to limit rows for userID whose status is in
// statuses, newest first.
func ListUserQueue(ctx context.Context, db *gorm.DB, userID string, statuses []domain.QueueStatus, limit int) ([]domain.ConsultationRequest, error) {
	var out []domain.ConsultationRequest
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountWaitingByServiceType groups every waiting row by service type.
func CountWaitingByServiceType(ctx context.Context, db *gorm.DB) ([]ServiceTypeCount, error) {
	var out []ServiceTypeCount
	err := db.WithContext(ctx).
		Model(&domain.ConsultationRequest{}).
		Select("service_type, count(*) AS count").
		Where("status = ?", domain.QueueWaiting).
		Group("service_type").
		Order("service_type").
		Scan(&out).Error
	return out, err
}
