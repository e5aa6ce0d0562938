package functions

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/telemed-orchestrator/internal/payments"
)

func (d *Dispatcher) webhook(ctx context.Context, inv Invocation) (int, Response) {
	if !payments.VerifyWebhookToken(d.WebhookSecret, inv.WebhookToken) {
		return fail(http.StatusUnauthorized, msgUnauthorized)
	}
	ev, err := payments.ParseWebhook(inv.Body)
	if err != nil || ev.Event == "" {
		return fail(http.StatusBadRequest, "Payload inválido")
	}
	res, err := d.Webhooks.Process(ctx, ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.Event).Msg("webhook processing failed")
		return fail(http.StatusInternalServerError, "Erro ao processar webhook")
	}
	return ok(res)
}
