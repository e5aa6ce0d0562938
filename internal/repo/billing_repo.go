// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for payment logs
// and the payment-provider webhook audit trail.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
)

// CreatePaymentLog inserts l, assigning ID and timestamp when unset.
func CreatePaymentLog(ctx context.Context, db *gorm.DB, l *domain.PaymentLog) (*domain.PaymentLog, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// ListPaymentLogs returns the beneficiary's payment history, newest first.
func ListPaymentLogs(ctx context.Context, db *gorm.DB, beneficiaryUUID string) ([]domain.PaymentLog, error) {
	var out []domain.PaymentLog
	err := db.WithContext(ctx).
		Where("beneficiary_uuid = ?", beneficiaryUUID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CreateWebhookAudit stores the raw webhook before any processing happens.
func CreateWebhookAudit(ctx context.Context, db *gorm.DB, w *domain.AsaasWebhook) (*domain.AsaasWebhook, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(w).Error; err != nil {
		return nil, err
	}
	return w, nil
}

// MarkWebhookProcessed flags every audit row for (paymentID, event).
func MarkWebhookProcessed(ctx context.Context, db *gorm.DB, paymentID, event string, at time.Time) error {
	at = at.UTC()
	return db.WithContext(ctx).
		Model(&domain.AsaasWebhook{}).
		Where("payment_id = ? AND event = ?", paymentID, event).
		Updates(map[string]any{"processed": true, "processed_at": at}).Error
}
