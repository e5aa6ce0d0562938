// Package provider talks to the upstream medical-consultation provider: the
// four consultation endpoints behind Gateway, and the beneficiary, specialty,
// availability, referral and appointment resources used by the lookups.
//
// Every call goes through Client.do, which paces requests with a token
// bucket, applies the fixed client-wide timeout, opens a span and records
// latency. There is no retry: a 429 or 5xx is reported after one attempt.
package provider

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
	"golang.org/x/time/rate"

	"github.com/tbourn/telemed-orchestrator/internal/config"
	"github.com/tbourn/telemed-orchestrator/internal/observability"
)

// maxErrBody bounds how much of an error body is kept for logs.
const maxErrBody = 2 << 10

// StatusError is a non-2xx upstream response. Body is for logs only and is
// never shown to end users.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
	Message  string // upstream "message" field, when present
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s: status %d", e.Endpoint, e.Status)
}

// ErrUnsuccessful is returned when a 2xx envelope carries success=false.
var ErrUnsuccessful = errors.New("provider reported failure")

// Client is the low-level upstream client. Construct with NewClient.
type Client struct {
	baseURL  string
	token    string
	clientID string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient builds a client from cfg. A zero MinInterval disables pacing.
func NewClient(cfg config.ProviderConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		clientID: cfg.ClientID,
		http:     &http.Client{Timeout: timeout},
		limiter:  lim,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.token != "" && c.clientID != ""
}

// request describes one upstream call.
type request struct {
	endpoint string // metric/span label, e.g. "consultation.doctor"
	method   string
	path     string
	query    url.Values
	body     any
	headers  map[string]string
}

// do executes r and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	ctx, span := observability.Tracer("provider").Start(ctx, r.endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.method),
			attribute.String("provider.path", r.path),
		))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		observability.Fail(span, err)
		return err
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		observability.Fail(span, err)
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Client-ID", c.clientID)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ObserveProvider(r.endpoint, "error", time.Since(start).Seconds())
		observability.Fail(span, err)
		log.Error().Err(err).Str("endpoint", r.endpoint).Str("method", r.method).Str("path", r.path).Msg("provider request failed")
		return err
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	observability.ObserveProvider(r.endpoint, status, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		se := &StatusError{Endpoint: r.endpoint, Status: resp.StatusCode, Body: string(raw)}
		var env struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &env) == nil {
			se.Message = env.Message
		}
		observability.Fail(span, se)
		log.Error().
			Str("endpoint", r.endpoint).
			Str("method", r.method).
			Str("path", r.path).
			Int("status", resp.StatusCode).
			Str("body", se.Body).
			Msg("provider returned error status")
		return se
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		observability.Fail(span, err)
		log.Error().Err(err).Str("endpoint", r.endpoint).Msg("provider response decode failed")
		return fmt.Errorf("decode %s: %w", r.endpoint, err)
	}
	return nil
}
