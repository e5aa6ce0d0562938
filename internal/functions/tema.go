package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/telemed-orchestrator/internal/services"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// tema-orchestrator actions.
const (
	ActionCreateSubscription = "create_subscription"
	ActionCheckPaymentStatus = "check_payment_status"
	ActionCancelSubscription = "cancel_subscription"
)

func (d *Dispatcher) tema(ctx context.Context, inv Invocation) (int, Response) {
	req, valid := decode(inv.Body)
	if !valid {
		return fail(http.StatusBadRequest, msgInvalidRequest)
	}

	switch req.Action {
	case ActionCreateSubscription:
		return d.createSubscription(ctx, inv, req)

	case ActionStartConsultation:
		caller, st, resp, authorized := authorize(inv, msgUnauthorized)
		if !authorized {
			return st, resp
		}
		gated := *d.Orchestrator
		if d.Subscriptions != nil {
			gated.Gate = d.Subscriptions
		}
		return d.start(ctx, &gated, caller, req)

	case ActionCheckPaymentStatus:
		status, err := d.Subscriptions.CheckPaymentStatus(ctx, strings.TrimSpace(req.PaymentID))
		if err != nil {
			code, msg := http.StatusInternalServerError, "Erro ao verificar pagamento"
			var (
				ve *validation.Error
				ue *services.UpstreamError
			)
			switch {
			case errors.As(err, &ve):
				code, msg = http.StatusBadRequest, ve.Message
			case errors.As(err, &ue):
				code, msg = http.StatusBadGateway, ue.Message
			case errors.Is(err, services.ErrPaymentsNotConfigured):
				msg = msgNoConfig
			default:
				log.Error().Err(err).Str("payment_id", req.PaymentID).Msg("check payment status")
			}
			return code, Response{
				Success: false,
				Error:   msg,
				Data:    services.PaymentStatus{Status: "ERROR", Paid: false},
			}
		}
		return ok(status)

	case ActionCancelSubscription:
		caller, st, resp, authorized := authorize(inv, msgUnauthorized)
		if !authorized {
			return st, resp
		}
		return d.cancelSubscription(ctx, caller.UserID)

	default:
		return fail(http.StatusBadRequest, msgUnknownAction)
	}
}

func (d *Dispatcher) cancelSubscription(ctx context.Context, userID string) (int, Response) {
	out, err := d.Subscriptions.CancelSubscription(ctx, userID)
	if err != nil {
		var ue *services.UpstreamError
		switch {
		case errors.Is(err, services.ErrNoSubscription):
			return fail(http.StatusNotFound, "Nenhuma assinatura recorrente encontrada")
		case errors.Is(err, services.ErrPaymentsNotConfigured):
			return fail(http.StatusInternalServerError, msgNoConfig)
		case errors.As(err, &ue):
			return fail(http.StatusBadGateway, ue.Message)
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("cancel subscription")
			return fail(http.StatusInternalServerError, "Erro ao cancelar assinatura")
		}
	}
	return ok(out)
}

func (d *Dispatcher) createSubscription(ctx context.Context, inv Invocation, req Request) (int, Response) {
	var in services.SubscriptionRequest
	if len(req.Data) == 0 || json.Unmarshal(req.Data, &in) != nil {
		return fail(http.StatusBadRequest, msgInvalidRequest)
	}
	if inv.Caller != nil {
		in.UserID = inv.Caller.UserID
	}

	out, err := d.Subscriptions.CreateSubscription(ctx, in)
	if err != nil {
		var (
			ve *validation.Error
			ue *services.UpstreamError
		)
		switch {
		case errors.As(err, &ve):
			return fail(http.StatusBadRequest, ve.Message)
		case errors.Is(err, services.ErrInvalidPaymentMethod):
			return fail(http.StatusBadRequest, "Método de pagamento inválido")
		case errors.Is(err, services.ErrPaymentsNotConfigured):
			return fail(http.StatusInternalServerError, msgNoConfig)
		case errors.As(err, &ue):
			return fail(http.StatusBadGateway, ue.Message)
		default:
			log.Error().Err(err).Msg("create subscription")
			return fail(http.StatusInternalServerError, "Erro ao criar assinatura")
		}
	}
	return ok(out)
}
