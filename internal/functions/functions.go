// Package functions implements the action-discriminated entry points shared
// by the HTTP API and the Lambda runtime. Each function takes a JSON body
// with an "action" field and answers with the {success, data, error}
// envelope and an HTTP status code. Messages are user-facing and localized;
// causes are logged, never returned.
package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/telemed-orchestrator/internal/auth"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/services"
)

// Function names.
const (
	Orchestrator     = "orchestrator"
	Rapidoc          = "rapidoc"
	TemaOrchestrator = "tema-orchestrator"
	AsaasWebhook     = "asaas-webhook"
)

// Shared messages.
const (
	msgUnknownAction  = "Ação não reconhecida"
	msgUnauthorized   = "Não autorizado"
	msgInvalidUser    = "Usuário inválido"
	msgInternal       = "Erro interno do servidor"
	msgInvalidRequest = "Dados da solicitação inválidos"
	msgUnknownService = "Tipo de serviço não reconhecido"
	msgNoConfig       = "Configuração da API não encontrada"
)

// Response is the envelope every function returns. Callers must check
// Success before reading Data.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Request is the union of the fields read by any action.
type Request struct {
	Action string `json:"action"`

	ServiceType    string `json:"serviceType"`
	Specialty      string `json:"specialty"`
	Urgency        string `json:"urgency"`
	ConsultationID string `json:"consultationId"`
	NotificationID string `json:"notificationId"`
	Limit          int    `json:"limit"`

	UserProfile   *provider.Profile `json:"userProfile"`
	SpecialtyArea string            `json:"specialtyArea"`

	PaymentID string          `json:"paymentId"`
	Data      json.RawMessage `json:"data"`
}

// Invocation is one call to a function.
type Invocation struct {
	Function string
	// Caller is nil when no valid bearer token was presented.
	Caller *auth.Caller
	// AuthErr explains why Caller is nil, if a token was presented.
	AuthErr error
	Body    []byte
	// WebhookToken is the asaas-access-token header.
	WebhookToken string
}

// Dispatcher routes invocations to the services.
type Dispatcher struct {
	Orchestrator  *services.Orchestrator
	Subscriptions *services.SubscriptionService
	Webhooks      *services.WebhookProcessor

	// ProviderConfigured reports whether consultation provider credentials
	// are set; rapidoc refuses to run without them.
	ProviderConfigured bool
	// WebhookSecret is the expected asaas-access-token; empty accepts any.
	WebhookSecret string
}

// Invoke runs inv and returns the HTTP status and envelope.
func (d *Dispatcher) Invoke(ctx context.Context, inv Invocation) (status int, resp Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("function", inv.Function).Msg("function panicked")
			status, resp = fail(http.StatusInternalServerError, msgInternal)
		}
	}()
	switch inv.Function {
	case Orchestrator:
		return d.orchestrator(ctx, inv)
	case Rapidoc:
		return d.rapidoc(ctx, inv)
	case TemaOrchestrator:
		return d.tema(ctx, inv)
	case AsaasWebhook:
		return d.webhook(ctx, inv)
	default:
		return fail(http.StatusNotFound, "Função não encontrada")
	}
}

func ok(data any) (int, Response) {
	return http.StatusOK, Response{Success: true, Data: data}
}

func fail(status int, msg string) (int, Response) {
	return status, Response{Success: false, Error: msg}
}

func decode(body []byte) (Request, bool) {
	var req Request
	if len(body) == 0 {
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, false
	}
	return req, true
}

// authorize enforces a caller, distinguishing a missing token from a token
// that names no user.
func authorize(inv Invocation, missing string) (*auth.Caller, int, Response, bool) {
	if inv.Caller != nil {
		return inv.Caller, 0, Response{}, true
	}
	if errors.Is(inv.AuthErr, auth.ErrNoSubject) {
		st, r := fail(http.StatusUnauthorized, msgInvalidUser)
		return nil, st, r, false
	}
	st, r := fail(http.StatusUnauthorized, missing)
	return nil, st, r, false
}

func profileOf(c *auth.Caller) provider.Profile {
	return provider.Profile{Name: c.Name, Email: c.Email, Phone: c.Phone}
}
