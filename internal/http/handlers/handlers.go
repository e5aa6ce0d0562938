// Package handlers exposes the HTTP endpoints of the orchestration API.
//
// Two surfaces live here:
//   - POST /functions/{name} and POST /webhooks/asaas, thin adapters over the
//     transport-agnostic functions.Dispatcher that answer with the
//     {success, data, error} envelope;
//   - REST endpoints for reference data, appointments, beneficiaries and the
//     notification inbox, answering with plain JSON or ErrorResponse.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/functions"
	"github.com/tbourn/telemed-orchestrator/internal/http/middleware"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/services"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

//
// Service contracts (context-aware)
//

// FunctionInvoker runs one serverless-style function call.
type FunctionInvoker interface {
	Invoke(ctx context.Context, inv functions.Invocation) (int, functions.Response)
}

// IdempotencyStore records function responses so a retried call with the same
// Idempotency-Key replays the first answer instead of re-running it.
type IdempotencyStore interface {
	// Get returns a still-valid record, or nil when there is none.
	Get(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error)
	// Save stores the response and the request body hash; a concurrent
	// duplicate is not an error.
	Save(ctx context.Context, userID, scope, key, requestHash string, status int, body []byte) error
}

// SpecialtyCatalog is the cached specialty lookup.
type SpecialtyCatalog interface {
	List(ctx context.Context, force bool) ([]provider.Specialty, error)
	ByUUID(ctx context.Context, uuid string) (*provider.Specialty, error)
	Search(ctx context.Context, term string) ([]provider.Specialty, error)
}

// ReferralCatalog is the cached referral lookup.
type ReferralCatalog interface {
	List(ctx context.Context, force bool) ([]provider.Referral, error)
	ByBeneficiary(ctx context.Context, beneficiaryUUID string) ([]provider.Referral, error)
	ByUUID(ctx context.Context, uuid string) (*provider.Referral, error)
}

// AvailabilityFinder queries bookable slots; it is never cached.
type AvailabilityFinder interface {
	Get(ctx context.Context, q provider.AvailabilityQuery) ([]provider.AvailabilitySlot, error)
	NextAvailable(ctx context.Context, specialtyUUID, beneficiaryUUID string, limit int) ([]provider.AvailabilitySlot, error)
}

// AppointmentBook creates and manages scheduled consultations.
type AppointmentBook interface {
	Create(ctx context.Context, in provider.AppointmentRequest) (provider.AppointmentCreated, error)
	ListByBeneficiary(ctx context.Context, beneficiaryUUID string) ([]provider.Appointment, error)
	Get(ctx context.Context, id string) (*provider.Appointment, error)
	Cancel(ctx context.Context, id string) error
	ScheduleSpecialist(ctx context.Context, beneficiaryUUID, specialtyUUID, availabilityUUID, referralUUID string) (provider.AppointmentCreated, error)
}

// BeneficiaryLookup resolves beneficiaries by CPF and by owning user.
type BeneficiaryLookup interface {
	CheckActive(ctx context.Context, cpf string) (*services.BeneficiaryStatus, error)
	OwnedBy(ctx context.Context, userID, beneficiaryUUID string) (bool, error)
	Primary(ctx context.Context, userID string) (*domain.Beneficiary, error)
}

// NotificationInbox reads and acknowledges a user's notifications.
type NotificationInbox interface {
	List(ctx context.Context, userID string, limit int) ([]domain.SystemNotification, error)
	MarkRead(ctx context.Context, userID, id string) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

//
// Handler wiring
//

// Deps lists the services the handlers depend on. Nil members leave their
// routes answering 503. Beneficiaries also guards every beneficiary-scoped
// route, so appointments, referrals and availability need it too.
type Deps struct {
	Functions     FunctionInvoker
	Idempotency   IdempotencyStore
	Specialties   SpecialtyCatalog
	Referrals     ReferralCatalog
	Availability  AvailabilityFinder
	Appointments  AppointmentBook
	Beneficiaries BeneficiaryLookup
	Notifications NotificationInbox
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	fn    FunctionInvoker
	idem  IdempotencyStore
	spec  SpecialtyCatalog
	ref   ReferralCatalog
	avail AvailabilityFinder
	appt  AppointmentBook
	benef BeneficiaryLookup
	inbox NotificationInbox
}

// New constructs a Handlers instance bound to d.
func New(d Deps) *Handlers {
	return &Handlers{
		fn:    d.Functions,
		idem:  d.Idempotency,
		spec:  d.Specialties,
		ref:   d.Referrals,
		avail: d.Availability,
		appt:  d.Appointments,
		benef: d.Beneficiaries,
		inbox: d.Notifications,
	}
}

// userID returns the verified caller id, or "" when the request is anonymous.
func userID(c *gin.Context) string {
	if caller, err := middleware.CallerFrom(c); err == nil {
		return caller.UserID
	}
	return ""
}

// requireUser returns the verified caller id. Anonymous requests are answered
// with 401 and get "".
func requireUser(c *gin.Context) string {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Não autorizado")
	}
	return uid
}

// ownBeneficiary resolves the beneficiary a request acts for. An empty uuid
// selects the caller's primary beneficiary; any other must be registered to
// the caller. Unknown and foreign beneficiaries both answer 404. Returns ""
// once a response has been written.
func (h *Handlers) ownBeneficiary(c *gin.Context, uid, beneficiaryUUID string) string {
	if h.benef == nil {
		unavailable(c)
		return ""
	}
	ctx := c.Request.Context()
	if beneficiaryUUID == "" {
		b, err := h.benef.Primary(ctx, uid)
		switch {
		case err != nil:
			failErr(c, err, ErrCodeInternal, "Erro ao buscar beneficiário")
			return ""
		case b == nil:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "Beneficiário não encontrado")
			return ""
		}
		return b.BeneficiaryUUID
	}
	owned, err := h.benef.OwnedBy(ctx, uid, beneficiaryUUID)
	switch {
	case err != nil:
		failErr(c, err, ErrCodeInternal, "Erro ao buscar beneficiário")
		return ""
	case !owned:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Beneficiário não encontrado")
		return ""
	}
	return beneficiaryUUID
}

// ownsRecord answers 404 with notFound unless a fetched record belongs to one
// of the caller's beneficiaries.
func (h *Handlers) ownsRecord(c *gin.Context, uid, beneficiaryUUID, notFound string) bool {
	if h.benef == nil {
		unavailable(c)
		return false
	}
	owned, err := h.benef.OwnedBy(c.Request.Context(), uid, beneficiaryUUID)
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		owned = false
	case err != nil:
		failErr(c, err, ErrCodeInternal, "Erro ao buscar beneficiário")
		return false
	}
	if !owned {
		fail(c, http.StatusNotFound, ErrCodeNotFound, notFound)
	}
	return owned
}
