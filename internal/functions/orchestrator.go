package functions

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/telemed-orchestrator/internal/auth"
	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/services"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// Orchestrator actions.
const (
	ActionStartConsultation  = "start_consultation"
	ActionCheckQueue         = "check_queue"
	ActionActiveSessions     = "get_active_sessions"
	ActionCancelConsultation = "cancel_consultation"
	ActionNotifications      = "get_notifications"
	ActionMarkRead           = "mark_notification_read"
)

func (d *Dispatcher) orchestrator(ctx context.Context, inv Invocation) (int, Response) {
	caller, st, resp, authorized := authorize(inv, msgUnauthorized)
	if !authorized {
		return st, resp
	}
	req, valid := decode(inv.Body)
	if !valid {
		return fail(http.StatusBadRequest, msgInvalidRequest)
	}
	l := log.With().Str("function", Orchestrator).Str("action", req.Action).Str("user_id", caller.UserID).Logger()

	switch req.Action {
	case ActionStartConsultation:
		return d.start(ctx, d.Orchestrator, caller, req)

	case ActionCheckQueue:
		snap, err := d.Orchestrator.Queue.Snapshot(ctx, caller.UserID)
		if err != nil {
			l.Error().Err(err).Msg("check queue")
			return fail(http.StatusInternalServerError, "Erro ao verificar fila")
		}
		return ok(snap)

	case ActionActiveSessions:
		sessions, err := d.Orchestrator.Sessions.GetActiveSessions(ctx, caller.UserID)
		if err != nil {
			l.Error().Err(err).Msg("active sessions")
			return fail(http.StatusInternalServerError, "Erro ao buscar sessões ativas")
		}
		return ok(sessions)

	case ActionCancelConsultation:
		id := strings.TrimSpace(req.ConsultationID)
		if id == "" {
			return fail(http.StatusBadRequest, "ID da consulta é obrigatório")
		}
		if err := d.Orchestrator.Sessions.CancelSession(ctx, caller.UserID, id); err != nil {
			if errors.Is(err, services.ErrConsultationNotFound) {
				return fail(http.StatusNotFound, "Consulta não encontrada")
			}
			l.Error().Err(err).Str("consultation_id", id).Msg("cancel consultation")
			return fail(http.StatusInternalServerError, "Erro ao cancelar consulta")
		}
		return ok(map[string]string{"message": "Consulta cancelada com sucesso"})

	case ActionNotifications:
		list, err := d.Orchestrator.Notifications.List(ctx, caller.UserID, req.Limit)
		if err != nil {
			l.Error().Err(err).Msg("notifications")
			return fail(http.StatusInternalServerError, "Erro ao buscar notificações")
		}
		return ok(list)

	case ActionMarkRead:
		id := strings.TrimSpace(req.NotificationID)
		if id == "" {
			return fail(http.StatusBadRequest, "ID da notificação é obrigatório")
		}
		if err := d.Orchestrator.Notifications.MarkRead(ctx, caller.UserID, id); err != nil {
			if errors.Is(err, services.ErrNotificationNotFound) {
				return fail(http.StatusNotFound, "Notificação não encontrada")
			}
			l.Error().Err(err).Msg("mark notification read")
			return fail(http.StatusInternalServerError, "Erro ao atualizar notificação")
		}
		return ok(map[string]string{"message": "Notificação marcada como lida"})

	default:
		return fail(http.StatusBadRequest, msgUnknownAction)
	}
}

// start runs StartConsultation on o and shapes the result.
func (d *Dispatcher) start(ctx context.Context, o *services.Orchestrator, caller *auth.Caller, req Request) (int, Response) {
	st, known := domain.ParseServiceType(req.ServiceType)
	if !known {
		return fail(http.StatusBadRequest, msgUnknownService)
	}
	res, err := o.StartConsultation(ctx, services.StartRequest{
		UserID:      caller.UserID,
		ServiceType: st,
		Specialty:   strings.TrimSpace(req.Specialty),
		Urgency:     req.Urgency,
		Profile:     profileOf(caller),
	})
	if err != nil {
		return startError(caller.UserID, err)
	}
	if res.RequiresSubscription {
		return http.StatusPaymentRequired, Response{
			Success: false,
			Error:   res.Message,
			Data:    map[string]bool{"requires_subscription": true},
		}
	}
	if res.Notification == services.NotificationFailed {
		log.Warn().Str("user_id", caller.UserID).Msg("consultation started without notification")
	}
	return ok(res)
}

func startError(userID string, err error) (int, Response) {
	var (
		ve *validation.Error
		ae *services.ActiveSessionError
		ue *services.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		return fail(http.StatusBadRequest, ve.Message)
	case errors.As(err, &ae):
		return http.StatusConflict, Response{
			Success: false,
			Error:   ae.Error(),
			Data:    map[string]any{"activeSession": ae.Session},
		}
	case errors.As(err, &ue):
		return fail(http.StatusBadGateway, ue.Message)
	default:
		log.Error().Err(err).Str("user_id", userID).Msg("start consultation")
		return fail(http.StatusInternalServerError, "Erro ao iniciar consulta")
	}
}
