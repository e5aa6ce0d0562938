// Package services – BeneficiaryService
//
// This file implements beneficiary lookups keyed by CPF. Input is reduced to
// digits and rejected with a *validation.Error before any database access
// when it is not 11 digits long. A well-formed CPF with no matching active
// beneficiary is not an error: the lookup returns (nil, nil).
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// BeneficiaryService resolves local beneficiaries.
type BeneficiaryService struct {
	DB *gorm.DB
}

// BeneficiaryStatus is the CheckActive view of a beneficiary.
type BeneficiaryStatus struct {
	Beneficiary   *domain.Beneficiary      `json:"beneficiary"`
	Plan          *domain.SubscriptionPlan `json:"plan,omitempty"`
	HasActivePlan bool                     `json:"hasActivePlan"`
}

// GetByCPF returns the active beneficiary for cpf, or nil when none exists.
func (s *BeneficiaryService) GetByCPF(ctx context.Context, cpf string) (*domain.Beneficiary, error) {
	digits, err := validation.CPF(cpf)
	if err != nil {
		return nil, err
	}
	b, err := repo.FindActiveBeneficiaryByCPF(ctx, s.DB, digits)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// CheckActive resolves the beneficiary for cpf and its active plan. A nil
// result means no beneficiary is registered for cpf.
func (s *BeneficiaryService) CheckActive(ctx context.Context, cpf string) (*BeneficiaryStatus, error) {
	b, err := s.GetByCPF(ctx, cpf)
	if err != nil || b == nil {
		return nil, err
	}
	out := &BeneficiaryStatus{Beneficiary: b}
	plan, err := repo.GetActivePlanByBeneficiary(ctx, s.DB, b.BeneficiaryUUID)
	switch {
	case err == nil:
		out.Plan = plan
		out.HasActivePlan = true
	case errors.Is(err, repo.ErrNotFound):
		out.HasActivePlan = b.HasActivePlan && b.SubscriptionStatus == domain.SubscriptionActive
	default:
		return nil, err
	}
	return out, nil
}

// OwnedBy reports whether the beneficiary with beneficiaryUUID is registered
// to userID. A malformed uuid is a *validation.Error; an unknown one is
// simply not owned.
func (s *BeneficiaryService) OwnedBy(ctx context.Context, userID, beneficiaryUUID string) (bool, error) {
	if err := validation.UUID("beneficiaryUuid", beneficiaryUUID, "UUID do beneficiário inválido"); err != nil {
		return false, err
	}
	if userID == "" {
		return false, nil
	}
	b, err := repo.GetBeneficiaryByUUID(ctx, s.DB, beneficiaryUUID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return b.UserID == userID, nil
}

// Primary returns the user's primary beneficiary, or nil when the user has
// none.
func (s *BeneficiaryService) Primary(ctx context.Context, userID string) (*domain.Beneficiary, error) {
	b, err := repo.GetPrimaryBeneficiaryByUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}
