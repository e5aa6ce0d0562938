// Package services – QueueLedger
//
// This file implements the QueueLedger, the append-only record of every
// consultation attempt. A row is written in status waiting before the
// provider is called and then moved to assigned or cancelled; rows are never
// deleted. Priority is derived from the service type and stored for a future
// scheduler; nothing reads it back today.
package services

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
)

// QueueClient labels the client that enqueued a request in row metadata.
const QueueClient = "Ailun Mobile App"

// userQueueLimit caps the rows returned by UserQueue.
const userQueueLimit = 5

// QueueLedger records consultation attempts.
type QueueLedger struct {
	// DB is the database handle used for all ledger operations.
	DB *gorm.DB
}

// QueueSnapshot is the check_queue view: the caller's open rows and the
// global waiting counts.
type QueueSnapshot struct {
	UserQueue   []domain.ConsultationRequest `json:"userQueue"`
	GlobalStats []repo.ServiceTypeCount      `json:"globalStats"`
}

// Enqueue writes a waiting row for userID.
func (q *QueueLedger) Enqueue(ctx context.Context, userID string, st domain.ServiceType, specialty string) (*domain.ConsultationRequest, error) {
	return enqueue(ctx, q.DB, userID, st, specialty, time.Now().UTC())
}

func enqueue(ctx context.Context, db *gorm.DB, userID string, st domain.ServiceType, specialty string, now time.Time) (*domain.ConsultationRequest, error) {
	meta, err := json.Marshal(map[string]string{
		"requested_at": now.Format(time.RFC3339Nano),
		"client":       QueueClient,
	})
	if err != nil {
		return nil, err
	}
	e := &domain.ConsultationRequest{
		UserID:      userID,
		ServiceType: st,
		Priority:    domain.Priority(st),
		Status:      domain.QueueWaiting,
		Metadata:    datatypes.JSON(meta),
	}
	if specialty != "" {
		e.Specialty = &specialty
	}
	return repo.CreateQueueEntry(ctx, db, e)
}

// MarkAssigned moves the row to assigned.
func (q *QueueLedger) MarkAssigned(ctx context.Context, id string) error {
	return repo.UpdateQueueStatus(ctx, q.DB, id, domain.QueueAssigned)
}

// MarkCancelled moves the row to cancelled.
func (q *QueueLedger) MarkCancelled(ctx context.Context, id string) error {
	return repo.UpdateQueueStatus(ctx, q.DB, id, domain.QueueCancelled)
}

// UserQueue returns the user's latest waiting or processing rows.
func (q *QueueLedger) UserQueue(ctx context.Context, userID string) ([]domain.ConsultationRequest, error) {
	return repo.ListUserQueue(ctx, q.DB, userID,
		[]domain.QueueStatus{domain.QueueWaiting, domain.QueueProcessing}, userQueueLimit)
}

// WaitingStats counts waiting rows per service type across all users.
func (q *QueueLedger) WaitingStats(ctx context.Context) ([]repo.ServiceTypeCount, error) {
	return repo.CountWaitingByServiceType(ctx, q.DB)
}

// Snapshot combines UserQueue and WaitingStats.
func (q *QueueLedger) Snapshot(ctx context.Context, userID string) (*QueueSnapshot, error) {
	mine, err := q.UserQueue(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := q.WaitingStats(ctx)
	if err != nil {
		return nil, err
	}
	if mine == nil {
		mine = []domain.ConsultationRequest{}
	}
	if stats == nil {
		stats = []repo.ServiceTypeCount{}
	}
	return &QueueSnapshot{UserQueue: mine, GlobalStats: stats}, nil
}
