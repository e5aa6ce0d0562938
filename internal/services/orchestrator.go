// Package services – Orchestrator
//
// This file implements the consultation Orchestrator. StartConsultation runs
// the full flow for one request:
//
//  1. sweep expired sessions (outcome ignored)
//  2. refuse if the user already has a live session
//  3. optionally require an active subscription (before any ledger row)
//  4. enqueue a waiting ledger row
//  5. ask the provider gateway for a session; on failure cancel the ledger
//     row and return the gateway's message
//  6. in one transaction: write the consultation log, the active session
//     and move the ledger row to assigned
//  7. send a best-effort notification
//
// The active session insert is guarded by a partial unique index, so two
// concurrent starts for the same user cannot both succeed: the loser gets
// the same *ActiveSessionError as the up-front check, or ErrStartFailed when
// the conflicting row is already past expires_at.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/observability"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// DefaultSessionTTL is the lifetime of a new active session.
const DefaultSessionTTL = time.Hour

// DefaultProfileName is sent upstream when the caller has no display name.
const DefaultProfileName = "Usuário"

// metadataPlatform tags consultation logs written by RequestConsultation.
const metadataPlatform = "production"

// SubscriptionGate decides whether a user may start a consultation.
type SubscriptionGate interface {
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
}

// StartRequest is the input of StartConsultation.
type StartRequest struct {
	UserID      string
	ServiceType domain.ServiceType
	Specialty   string
	Urgency     string
	Profile     provider.Profile
}

// StartResult is the outcome of StartConsultation. When RequiresSubscription
// is set nothing was written and the other fields are empty.
type StartResult struct {
	RequiresSubscription bool                    `json:"requires_subscription,omitempty"`
	ConsultationLog      *domain.ConsultationLog `json:"consultationLog,omitempty"`
	Session              *provider.Result        `json:"session,omitempty"`
	Message              string                  `json:"message,omitempty"`

	// Notification is the delivery outcome of the start notice.
	Notification NotifyOutcome `json:"-"`
}

// Orchestrator coordinates the session registry, the queue ledger, the
// provider gateway and the notification sink.
type Orchestrator struct {
	DB            *gorm.DB
	Gateway       provider.ConsultationRequester
	Sessions      *SessionRegistry
	Queue         *QueueLedger
	Notifications *NotificationSink

	// Gate, when set, must approve the user before a ledger row is written.
	Gate SubscriptionGate

	// SessionTTL defaults to DefaultSessionTTL.
	SessionTTL time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewOrchestrator wires an Orchestrator over db and gw with fresh registry,
// ledger and sink instances sharing db.
func NewOrchestrator(db *gorm.DB, gw provider.ConsultationRequester) *Orchestrator {
	sink := &NotificationSink{DB: db}
	return &Orchestrator{
		DB:            db,
		Gateway:       gw,
		Sessions:      &SessionRegistry{DB: db, Notifications: sink},
		Queue:         &QueueLedger{DB: db},
		Notifications: sink,
		SessionTTL:    DefaultSessionTTL,
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) ttl() time.Duration {
	if o.SessionTTL > 0 {
		return o.SessionTTL
	}
	return DefaultSessionTTL
}

// StartConsultation runs the orchestration flow described in the file header.
//
// Errors:
//   - *validation.Error for an unknown service type (nothing written).
//   - *ActiveSessionError when the user already holds a live session.
//   - *UpstreamError when the provider refused; the ledger row is cancelled.
//   - ErrStartFailed (wrapped) for persistence or gate failures.
func (o *Orchestrator) StartConsultation(ctx context.Context, req StartRequest) (res *StartResult, err error) {
	ctx, span := observability.Tracer("services.orchestrator").Start(ctx, "StartConsultation")
	span.SetAttributes(observability.UserAttr(req.UserID), observability.ServiceTypeAttr(string(req.ServiceType)))
	outcome := "success"
	defer func() {
		observability.Fail(span, err)
		span.SetAttributes(attribute.String("consultation.outcome", outcome))
		span.End()
		observability.ObserveOrchestration(string(req.ServiceType), outcome)
	}()

	if !req.ServiceType.Valid() {
		outcome = "invalid"
		return nil, &validation.Error{Field: "serviceType", Message: "Tipo de serviço não reconhecido"}
	}

	if n, err := o.Sessions.CleanExpiredSessions(ctx); err != nil {
		log.Warn().Err(err).Msg("expiry sweep failed")
	} else if n > 0 {
		log.Debug().Int64("expired", n).Msg("expiry sweep")
	}

	active, err := o.Sessions.GetActiveSessions(ctx, req.UserID)
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	if len(active) > 0 {
		outcome = "active_session"
		return nil, &ActiveSessionError{Session: &active[0]}
	}

	if o.Gate != nil {
		ok, err := o.Gate.HasActiveSubscription(ctx, req.UserID)
		if err != nil {
			outcome = "error"
			return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
		}
		if !ok {
			outcome = "requires_subscription"
			return &StartResult{
				RequiresSubscription: true,
				Message:              "Assinatura ativa necessária para iniciar consulta",
			}, nil
		}
	}

	entry, err := o.Queue.Enqueue(ctx, req.UserID, req.ServiceType, req.Specialty)
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	profile := req.Profile
	if profile.Name == "" {
		profile.Name = DefaultProfileName
	}
	gw, gwErr := o.Gateway.RequestConsultation(ctx, req.ServiceType, profile, provider.Options{
		Urgency:   req.Urgency,
		Specialty: req.Specialty,
	})
	if gwErr != nil || !gw.Success {
		o.cancelEntry(ctx, entry.ID)
		outcome = "upstream_failed"
		var ve *validation.Error
		if errors.As(gwErr, &ve) {
			return nil, ve
		}
		msg := gw.Error
		if msg == "" {
			msg = "Erro ao iniciar consulta"
		}
		if gwErr != nil {
			log.Error().Err(gwErr).Str("queue_id", entry.ID).Msg("gateway call failed")
		}
		return nil, &UpstreamError{Message: msg}
	}

	var logRow *domain.ConsultationLog
	err = o.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := repo.CreateConsultationLog(ctx, tx, consultationLogFor(req, gw))
		if err != nil {
			return err
		}
		sess, err := activeSessionFor(l, gw, o.now().Add(o.ttl()))
		if err != nil {
			return err
		}
		if _, err := repo.CreateActiveSession(ctx, tx, sess); err != nil {
			return err
		}
		if err := repo.UpdateQueueStatus(ctx, tx, entry.ID, domain.QueueAssigned); err != nil {
			return err
		}
		logRow = l
		return nil
	})
	if err != nil {
		o.cancelEntry(ctx, entry.ID)
		if errors.Is(err, repo.ErrActiveSessionConflict) {
			err = o.conflict(ctx, req.UserID, err)
			outcome = "error"
			var ae *ActiveSessionError
			if errors.As(err, &ae) {
				outcome = "active_session"
			}
			return nil, err
		}
		outcome = "error"
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	professional := "profissional"
	if gw.ProfessionalInfo != nil && gw.ProfessionalInfo.Name != "" {
		professional = gw.ProfessionalInfo.Name
	}
	notified := o.Notifications.Notify(ctx, req.UserID, Notification{
		Title:     "Consulta Iniciada",
		Message:   fmt.Sprintf("Sua consulta com %s foi iniciada com sucesso.", professional),
		Type:      domain.NotificationSuccess,
		ActionURL: gw.ConsultationURL,
	})

	return &StartResult{
		ConsultationLog: logRow,
		Session:         &gw,
		Message:         "Consulta iniciada com sucesso",
		Notification:    notified,
	}, nil
}

// conflict maps a lost insert race to the winner's *ActiveSessionError. A
// conflicting row that is active but expired is not a live session, so
// that case fails with ErrStartFailed.
func (o *Orchestrator) conflict(ctx context.Context, userID string, cause error) error {
	active, err := o.Sessions.GetActiveSessions(ctx, userID)
	if err != nil || len(active) == 0 {
		return fmt.Errorf("%w: %w", ErrStartFailed, cause)
	}
	return &ActiveSessionError{Session: &active[0]}
}

func (o *Orchestrator) cancelEntry(ctx context.Context, id string) {
	if err := o.Queue.MarkCancelled(ctx, id); err != nil {
		log.Error().Err(err).Str("queue_id", id).Msg("queue rollback failed")
	}
}

func consultationLogFor(req StartRequest, gw provider.Result) *domain.ConsultationLog {
	l := &domain.ConsultationLog{
		UserID:          req.UserID,
		ServiceType:     req.ServiceType,
		SessionID:       gw.SessionID,
		Specialty:       req.Specialty,
		Status:          domain.LogActive,
		Success:         true,
		ConsultationURL: gw.ConsultationURL,
	}
	if gw.EstimatedWaitTime > 0 {
		w := gw.EstimatedWaitTime
		l.EstimatedWaitTime = &w
	}
	if p := gw.ProfessionalInfo; p != nil {
		l.ProfessionalName = p.Name
		if p.Specialty != "" {
			l.Specialty = p.Specialty
		}
		r := p.Rating
		l.ProfessionalRating = &r
	}
	if raw, err := json.Marshal(gw); err == nil {
		l.Metadata = datatypes.JSON(raw)
	}
	return l
}

func activeSessionFor(l *domain.ConsultationLog, gw provider.Result, expires time.Time) (*domain.ActiveSession, error) {
	info, err := json.Marshal(gw.ProfessionalInfo)
	if err != nil {
		return nil, err
	}
	return &domain.ActiveSession{
		UserID:            l.UserID,
		ConsultationLogID: l.ID,
		SessionID:         gw.SessionID,
		ServiceType:       l.ServiceType,
		ProfessionalInfo:  datatypes.JSON(info),
		SessionURL:        gw.ConsultationURL,
		Status:            domain.SessionActive,
		ExpiresAt:         expires,
	}, nil
}

// DirectRequest is the input of RequestConsultation.
type DirectRequest struct {
	UserID        string
	ServiceType   domain.ServiceType
	Profile       provider.Profile
	Urgency       string
	SpecialtyArea string
}

// RequestConsultation calls the gateway without the queue or session flow
// and records the attempt as a consultation log, successful or not. The log
// write is best-effort.
func (o *Orchestrator) RequestConsultation(ctx context.Context, req DirectRequest) (provider.Result, error) {
	ctx, span := observability.Tracer("services.orchestrator").Start(ctx, "RequestConsultation")
	defer span.End()
	span.SetAttributes(observability.UserAttr(req.UserID), observability.ServiceTypeAttr(string(req.ServiceType)))

	res, err := o.Gateway.RequestConsultation(ctx, req.ServiceType, req.Profile, provider.Options{
		Urgency:   req.Urgency,
		Specialty: req.SpecialtyArea,
	})
	if err != nil {
		observability.Fail(span, err)
		return provider.Result{}, err
	}

	l := &domain.ConsultationLog{
		UserID:          req.UserID,
		ServiceType:     req.ServiceType,
		SessionID:       res.SessionID,
		Specialty:       req.SpecialtyArea,
		Status:          domain.LogActive,
		Success:         res.Success,
		ConsultationURL: res.ConsultationURL,
	}
	if !res.Success {
		l.Status = domain.LogFailed
		msg := res.Error
		l.ErrorMessage = &msg
	}
	if p := res.ProfessionalInfo; p != nil {
		l.ProfessionalName = p.Name
		if p.Specialty != "" {
			l.Specialty = p.Specialty
		}
	}
	if raw, err := json.Marshal(map[string]any{
		"api_response": res,
		"timestamp":    o.now().Format(time.RFC3339Nano),
		"platform":     metadataPlatform,
	}); err == nil {
		l.Metadata = datatypes.JSON(raw)
	}
	if _, err := repo.CreateConsultationLog(ctx, o.DB, l); err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("consultation log not recorded")
	}

	outcome := "success"
	if !res.Success {
		outcome = "upstream_failed"
	}
	observability.ObserveOrchestration(string(req.ServiceType), outcome)
	return res, nil
}
