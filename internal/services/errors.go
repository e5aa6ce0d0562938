// Package services defines the business logic for consultation orchestration,
// sessions, the queue ledger, notifications, beneficiaries and subscriptions.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
)

// Orchestration errors.
var (
	// ErrActiveSessionExists is returned when the user already holds a live
	// session. It is always wrapped in an *ActiveSessionError.
	ErrActiveSessionExists = errors.New("active session already exists")

	// ErrStartFailed wraps persistence failures during StartConsultation.
	ErrStartFailed = errors.New("start consultation failed")

	// ErrConsultationNotFound indicates that the consultation log does not
	// exist or is not owned by the current user.
	ErrConsultationNotFound = errors.New("consultation not found")
)

// Notification errors.
var (
	// ErrNotificationNotFound indicates that the notification does not exist
	// or is not owned by the current user.
	ErrNotificationNotFound = errors.New("notification not found")
)

// Billing errors.
var (
	// ErrPaymentsNotConfigured is returned by subscription flows when no
	// payment provider credentials are configured.
	ErrPaymentsNotConfigured = errors.New("payment provider not configured")

	// ErrInvalidPaymentMethod is returned for a payment method outside
	// credit_card, pix and boleto, or credit_card without card data.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrNoSubscription is returned when the user has no recurring
	// subscription to cancel.
	ErrNoSubscription = errors.New("no recurring subscription")
)

// ActiveSessionError carries the session that blocked a new consultation so
// the caller can resume it.
type ActiveSessionError struct {
	Session *domain.ActiveSession
}

// Error returns the user-facing message.
func (e *ActiveSessionError) Error() string {
	return "Você já tem uma consulta ativa. Finalize antes de iniciar outra."
}

// Unwrap exposes ErrActiveSessionExists to errors.Is.
func (e *ActiveSessionError) Unwrap() error { return ErrActiveSessionExists }

// UpstreamError is a provider failure already reduced to a user-safe message.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string { return e.Message }
