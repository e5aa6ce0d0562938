// Package payments is the client for the payment provider (Asaas v3):
// customers, monthly subscriptions, one-off PIX and boleto charges, payment
// lookups, and the webhook payload shape.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/telemed-orchestrator/internal/config"
	"github.com/tbourn/telemed-orchestrator/internal/observability"
)

const (
	// SubscriptionValue is the default monthly price in BRL.
	SubscriptionValue = 89.90

	userAgent               = "AiLun-Saude/1.0"
	subscriptionDescription = "Assinatura AiLun Saúde - Acesso completo aos serviços de telemedicina"
	dateLayout              = "2006-01-02"
	maxErrBody              = 4 << 10
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("ASAAS_API_KEY não configurada")

// APIError is a non-2xx answer. Description comes from the provider's
// errors[0].description, then message, then a generic fallback.
type APIError struct {
	Status      int
	Description string
}

func (e *APIError) Error() string {
	return "Falha na requisição Asaas: " + e.Description
}

// Client talks to the payment provider. Construct with NewClient.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	now     func() time.Time
}

// NewClient builds a client from cfg.
func NewClient(cfg config.PaymentsConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.asaas.com/v3"
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c != nil && c.apiKey != "" }

type providerErrors struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, q url.Values, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	ctx, span := observability.Tracer("payments").Start(ctx, endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", method)))
	defer span.End()

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		observability.Fail(span, err)
		return err
	}
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ObserveProvider(endpoint, "error", time.Since(start).Seconds())
		observability.Fail(span, err)
		log.Error().Err(err).Str("endpoint", endpoint).Msg("payment provider request failed")
		return fmt.Errorf("Falha na requisição Asaas: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveProvider(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		apiErr := &APIError{Status: resp.StatusCode, Description: "Erro na requisição ao Asaas"}
		var pe providerErrors
		if json.Unmarshal(raw, &pe) == nil {
			switch {
			case len(pe.Errors) > 0 && pe.Errors[0].Description != "":
				apiErr.Description = pe.Errors[0].Description
			case pe.Message != "":
				apiErr.Description = pe.Message
			}
		}
		observability.Fail(span, apiErr)
		log.Error().Str("endpoint", endpoint).Int("status", resp.StatusCode).Str("body", string(raw)).Msg("payment provider returned error status")
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		observability.Fail(span, err)
		return fmt.Errorf("Falha na requisição Asaas: %w", err)
	}
	return nil
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
