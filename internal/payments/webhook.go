package payments

import (
	"crypto/subtle"
	"encoding/json"
)

// Webhook events handled by the processor. Anything else is audited only.
const (
	EventPaymentCreated   = "PAYMENT_CREATED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentOverdue   = "PAYMENT_OVERDUE"
	EventPaymentRefunded  = "PAYMENT_REFUNDED"
)

// WebhookEvent is the body the provider POSTs on payment changes. Raw keeps
// the original bytes for the audit row.
type WebhookEvent struct {
	Event   string   `json:"event"`
	Payment *Payment `json:"payment"`

	Raw json.RawMessage `json:"-"`
}

// ParseWebhook decodes a webhook body, keeping the raw payload.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookEvent{}, err
	}
	ev.Raw = append(json.RawMessage(nil), body...)
	return ev, nil
}

// VerifyWebhookToken compares the asaas-access-token header against the
// configured secret. An empty secret accepts everything.
func VerifyWebhookToken(expected, got string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
