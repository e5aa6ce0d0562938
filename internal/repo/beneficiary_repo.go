// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for beneficiaries
// and their subscription plans.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
)

// FindActiveBeneficiaryByCPF returns the active beneficiary with the given
// normalized (digits only) CPF, or ErrNotFound.
func FindActiveBeneficiaryByCPF(ctx context.Context, db *gorm.DB, cpf string) (*domain.Beneficiary, error) {
	var b domain.Beneficiary
	err := db.WithContext(ctx).
		Where("cpf = ? AND status = ?", cpf, "active").
		Order("created_at desc").
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBeneficiaryByUUID looks up a beneficiary by its provider-issued UUID.
func GetBeneficiaryByUUID(ctx context.Context, db *gorm.DB, beneficiaryUUID string) (*domain.Beneficiary, error) {
	var b domain.Beneficiary
	if err := db.WithContext(ctx).Where("beneficiary_uuid = ?", beneficiaryUUID).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetPrimaryBeneficiaryByUser returns the user's primary beneficiary, falling
// back to the most recent one.
func GetPrimaryBeneficiaryByUser(ctx context.Context, db *gorm.DB, userID string) (*domain.Beneficiary, error) {
	var b domain.Beneficiary
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_primary desc").
		Order("created_at desc").
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBeneficiary inserts b, assigning ID and timestamps when unset.
func CreateBeneficiary(ctx context.Context, db *gorm.DB, b *domain.Beneficiary) (*domain.Beneficiary, error) {
	now := time.Now().UTC()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = "active"
	}
	b.CreatedAt, b.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBeneficiarySubscription records the payment provider's view of the
// subscription. lastPayment is only written when non-nil.
func UpdateBeneficiarySubscription(ctx context.Context, db *gorm.DB, beneficiaryUUID, status string, lastPayment *time.Time) error {
	fields := map[string]any{
		"subscription_status": status,
		"has_active_plan":     status == domain.SubscriptionActive,
		"updated_at":          time.Now().UTC(),
	}
	if lastPayment != nil {
		fields["last_payment_date"] = lastPayment.UTC()
	}
	res := db.WithContext(ctx).
		Model(&domain.Beneficiary{}).
		Where("beneficiary_uuid = ?", beneficiaryUUID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetActivePlanByBeneficiary returns the newest plan with status active for
// the provider-issued beneficiary UUID.
func GetActivePlanByBeneficiary(ctx context.Context, db *gorm.DB, beneficiaryID string) (*domain.SubscriptionPlan, error) {
	var p domain.SubscriptionPlan
	err := db.WithContext(ctx).
		Where("beneficiary_id = ? AND status = ?", beneficiaryID, "active").
		Order("created_at desc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetLatestPlanByUser returns the user's newest plan regardless of status.
func GetLatestPlanByUser(ctx context.Context, db *gorm.DB, userID string) (*domain.SubscriptionPlan, error) {
	var p domain.SubscriptionPlan
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateSubscriptionPlan inserts p, assigning ID and timestamps when unset.
func CreateSubscriptionPlan(ctx context.Context, db *gorm.DB, p *domain.SubscriptionPlan) (*domain.SubscriptionPlan, error) {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePlanStatusByBeneficiary moves every plan of the beneficiary that is
// not cancelled to status and returns how many rows changed.
func UpdatePlanStatusByBeneficiary(ctx context.Context, db *gorm.DB, beneficiaryID, status string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.SubscriptionPlan{}).
		Where("beneficiary_id = ? AND status <> ?", beneficiaryID, "cancelled").
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
