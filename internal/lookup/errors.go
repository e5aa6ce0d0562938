// Package lookup serves the provider's reference data: specialties and
// referrals through TTL read-through caches, availability always live, and
// the appointment operations built on top of them.
//
// Every operation validates its input before any upstream call. Validation
// failures are *validation.Error; upstream failures are *Error carrying a
// generic localized message, with the cause kept for logs.
package lookup

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/telemed-orchestrator/internal/provider"
)

// ErrNotFound marks a lookup that found nothing.
var ErrNotFound = errors.New("not found")

// Error is a failed lookup. Message is safe to show to end users.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

func notFound(msg string) error { return &Error{Message: msg, Err: ErrNotFound} }

// upstream logs err and hides it behind msg. A provider 404 keeps ErrNotFound
// in the chain.
func upstream(op, msg string, err error) error {
	log.Error().Err(err).Str("op", op).Msg("lookup upstream call failed")
	if errors.Is(err, provider.ErrNotFound) {
		return &Error{Message: msg, Err: ErrNotFound}
	}
	return &Error{Message: msg, Err: err}
}
