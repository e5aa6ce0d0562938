// Package services – WebhookProcessor
//
// This file implements processing of payment-provider webhooks. Every event
// is audited first; events whose payment carries no externalReference (the
// beneficiary UUID) stop there. Known payment events then update the
// beneficiary's subscription status, append a payment log, adjust the local
// plan and notify the user. Unknown events are audited and acknowledged.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/observability"
	"github.com/tbourn/telemed-orchestrator/internal/payments"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
)

// WebhookResult acknowledges a processed webhook.
type WebhookResult struct {
	Message         string `json:"message"`
	Event           string `json:"event"`
	BeneficiaryUUID string `json:"beneficiaryUuid,omitempty"`
}

// WebhookProcessor applies payment events to local state.
type WebhookProcessor struct {
	DB            *gorm.DB
	Notifications *NotificationSink
	Now           func() time.Time
}

func (p *WebhookProcessor) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Process audits ev and applies it. Only the audit insert is fatal; the
// remaining writes are logged and skipped on failure so the provider is not
// asked to redeliver an event that was partly applied.
func (p *WebhookProcessor) Process(ctx context.Context, ev payments.WebhookEvent) (*WebhookResult, error) {
	ctx, span := observability.Tracer("services.webhooks").Start(ctx, "Process")
	defer span.End()

	pay := ev.Payment
	if pay == nil {
		pay = &payments.Payment{}
	}
	audit := &domain.AsaasWebhook{
		Event:          ev.Event,
		PaymentID:      pay.ID,
		SubscriptionID: pay.Subscription,
		CustomerID:     pay.Customer,
		Payload:        datatypes.JSON(ev.Raw),
	}
	if len(ev.Raw) == 0 {
		audit.Payload = nil
	}
	if _, err := repo.CreateWebhookAudit(ctx, p.DB, audit); err != nil {
		observability.Fail(span, err)
		return nil, err
	}

	beneficiary := pay.ExternalReference
	if beneficiary == "" {
		log.Info().Str("event", ev.Event).Str("payment_id", pay.ID).Msg("webhook without externalReference")
		return &WebhookResult{Message: "Webhook sem externalReference", Event: ev.Event}, nil
	}

	now := p.now()
	switch ev.Event {
	case payments.EventPaymentReceived, payments.EventPaymentConfirmed:
		p.setSubscription(ctx, beneficiary, domain.SubscriptionActive, &now)
		paidAt := pay.ClientPaymentDate
		if paidAt == "" {
			paidAt = now.Format(time.RFC3339)
		}
		p.logPayment(ctx, beneficiary, pay, "RECEIVED", &paidAt)
		p.setPlan(ctx, beneficiary, PlanActive)
		p.notify(ctx, beneficiary, Notification{
			Title:    "Pagamento Confirmado",
			Message:  fmt.Sprintf("Seu pagamento de R$ %.2f foi confirmado! Sua assinatura está ativa.", pay.Value),
			Type:     domain.NotificationPaymentConfirmed,
			Priority: "high",
		})
	case payments.EventPaymentOverdue:
		p.setSubscription(ctx, beneficiary, domain.SubscriptionOverdue, nil)
		p.setPlan(ctx, beneficiary, PlanOverdue)
		p.notify(ctx, beneficiary, Notification{
			Title:    "Pagamento Vencido",
			Message:  "Seu pagamento está vencido. Por favor, regularize sua situação para continuar usando os serviços.",
			Type:     domain.NotificationPaymentOverdue,
			Priority: "high",
		})
	case payments.EventPaymentRefunded:
		p.setSubscription(ctx, beneficiary, domain.SubscriptionRefunded, nil)
		p.setPlan(ctx, beneficiary, PlanRefunded)
		p.notify(ctx, beneficiary, Notification{
			Title:    "Pagamento Reembolsado",
			Message:  "Seu pagamento foi reembolsado. Entre em contato se tiver dúvidas.",
			Type:     domain.NotificationPaymentRefunded,
			Priority: "medium",
		})
	case payments.EventPaymentCreated:
		p.logPayment(ctx, beneficiary, pay, "PENDING", nil)
	default:
		log.Info().Str("event", ev.Event).Msg("webhook event ignored")
	}

	if pay.ID != "" {
		if err := repo.MarkWebhookProcessed(ctx, p.DB, pay.ID, ev.Event, now); err != nil {
			log.Warn().Err(err).Str("payment_id", pay.ID).Msg("webhook audit not marked processed")
		}
	}
	return &WebhookResult{
		Message:         "Webhook processado com sucesso",
		Event:           ev.Event,
		BeneficiaryUUID: beneficiary,
	}, nil
}

func (p *WebhookProcessor) setSubscription(ctx context.Context, beneficiaryUUID, status string, paidAt *time.Time) {
	err := repo.UpdateBeneficiarySubscription(ctx, p.DB, beneficiaryUUID, status, paidAt)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		log.Warn().Str("beneficiary_uuid", beneficiaryUUID).Msg("webhook for unknown beneficiary")
	case err != nil:
		log.Error().Err(err).Str("beneficiary_uuid", beneficiaryUUID).Msg("subscription status not updated")
	}
}

func (p *WebhookProcessor) setPlan(ctx context.Context, beneficiaryUUID, status string) {
	if _, err := repo.UpdatePlanStatusByBeneficiary(ctx, p.DB, beneficiaryUUID, status); err != nil {
		log.Error().Err(err).Str("beneficiary_uuid", beneficiaryUUID).Msg("plan status not updated")
	}
}

func (p *WebhookProcessor) logPayment(ctx context.Context, beneficiaryUUID string, pay *payments.Payment, status string, paidAt *string) {
	row := &domain.PaymentLog{
		BeneficiaryUUID: beneficiaryUUID,
		PaymentID:       pay.ID,
		SubscriptionID:  pay.Subscription,
		Value:           pay.Value,
		Status:          status,
		BillingType:     pay.BillingType,
		DueDate:         pay.DueDate,
		PaymentDate:     paidAt,
		InvoiceURL:      pay.InvoiceURL,
		BankSlipURL:     pay.BankSlipURL,
	}
	if raw, err := json.Marshal(pay); err == nil {
		row.Metadata = datatypes.JSON(raw)
	}
	if _, err := repo.CreatePaymentLog(ctx, p.DB, row); err != nil {
		log.Error().Err(err).Str("payment_id", pay.ID).Msg("payment log not recorded")
	}
}

func (p *WebhookProcessor) notify(ctx context.Context, beneficiaryUUID string, n Notification) {
	if p.Notifications == nil {
		return
	}
	p.Notifications.NotifyBeneficiary(ctx, beneficiaryUUID, n)
}
