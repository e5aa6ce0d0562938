// Function HTTP handlers.
//
// This file exposes the action-discriminated function endpoints:
//   - POST /functions/{name}  (orchestrator, rapidoc, tema-orchestrator)
//   - POST /webhooks/asaas    (payment provider callbacks)
//
// Bodies are passed through untouched to the dispatcher; the response is the
// {success, data, error} envelope with the status the dispatcher chose.
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/telemed-orchestrator/internal/functions"
	"github.com/tbourn/telemed-orchestrator/internal/http/middleware"
)

// HeaderIdempotentReplay marks a response served from the idempotency store.
const HeaderIdempotentReplay = "Idempotent-Replay"

// headerWebhookToken carries the shared secret on payment-provider callbacks.
const headerWebhookToken = "asaas-access-token"

// InvokeFunction godoc
// @ID          invokeFunction
// @Summary     Invoke a function
// @Description Runs one action of a function. The body is {"action": "...", ...}; the action set depends on the function.
// @Description Responses always use the {success, data, error} envelope. Authenticated callers may send Idempotency-Key to make retries replay the first answer.
// @Tags        Functions
// @Accept      json
// @Produce     json
//
// @Param       Authorization    header  string  false "Bearer token"                  example(Bearer eyJhbGciOi...)
// @Param       Idempotency-Key  header  string  false "Replay key for retried calls"  example(start-7f3c)
// @Param       name             path    string  true  "Function name"                 Enums(orchestrator, rapidoc, tema-orchestrator)
// @Param       body             body    functions.Request  true  "Action payload"
//
// @Success     200  {object}  functions.Response
// @Failure     400  {object}  functions.Response  "Invalid action or payload"
// @Failure     401  {object}  functions.Response  "Missing or invalid token"
// @Failure     402  {object}  functions.Response  "Active subscription required"
// @Failure     404  {object}  functions.Response  "Unknown function or resource"
// @Failure     409  {object}  functions.Response  "Active session exists"
// @Failure     422  {object}  functions.Response  "Idempotency-Key reused with a different body"
// @Failure     502  {object}  functions.Response  "Upstream provider error"
// @Failure     500  {object}  functions.Response  "Internal error"
// @Router      /functions/{name} [post]
func (h *Handlers) InvokeFunction(c *gin.Context) {
	h.invoke(c, c.Param("name"))
}

// AsaasWebhook godoc
// @ID          asaasWebhook
// @Summary     Payment provider webhook
// @Description Records and applies a payment event (PAYMENT_RECEIVED, PAYMENT_CONFIRMED, PAYMENT_OVERDUE, PAYMENT_REFUNDED, PAYMENT_CREATED).
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       asaas-access-token  header  string  false "Shared webhook secret"
// @Param       body                body    object  true  "Provider event"
//
// @Success     200  {object}  functions.Response
// @Failure     400  {object}  functions.Response  "Invalid payload"
// @Failure     401  {object}  functions.Response  "Bad webhook token"
// @Failure     500  {object}  functions.Response  "Processing failed"
// @Router      /webhooks/asaas [post]
func (h *Handlers) AsaasWebhook(c *gin.Context) {
	h.invoke(c, functions.AsaasWebhook)
}

func (h *Handlers) invoke(c *gin.Context, name string) {
	if h.fn == nil {
		writeEnvelope(c, http.StatusServiceUnavailable, functions.Response{Error: "Serviço indisponível"})
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeEnvelope(c, http.StatusBadRequest, functions.Response{Error: "Dados da solicitação inválidos"})
		return
	}
	uid, hash := userID(c), requestHash(body)
	if h.replay(c, uid, hash) {
		return
	}

	inv := functions.Invocation{
		Function:     name,
		Body:         body,
		WebhookToken: c.GetHeader(headerWebhookToken),
	}
	if caller, err := middleware.CallerFrom(c); err == nil {
		inv.Caller = caller
	} else {
		inv.AuthErr = err
	}

	status, resp := h.fn.Invoke(c.Request.Context(), inv)
	raw, err := json.Marshal(resp)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Str("function", name).Msg("encode function response")
		writeEnvelope(c, http.StatusInternalServerError, functions.Response{Error: "Erro interno do servidor"})
		return
	}
	h.remember(c, uid, hash, status, raw)
	c.Data(status, "application/json; charset=utf-8", raw)
}

// replay serves a stored response for a repeated Idempotency-Key. Only
// verified callers have records; a key reused with another body is refused
// with 422 instead of leaking the first answer.
func (h *Handlers) replay(c *gin.Context, uid, hash string) bool {
	if h.idem == nil || uid == "" || !middleware.IsReplay(c) {
		return false
	}
	key, _ := middleware.GetIdempotencyKey(c)
	rec, err := h.idem.Get(c.Request.Context(), uid, middleware.IdempotencyScope(c), key, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	if rec.RequestHash != "" && rec.RequestHash != hash {
		writeEnvelope(c, http.StatusUnprocessableEntity, functions.Response{
			Error: "Idempotency-Key já utilizada com outra requisição",
		})
		return true
	}
	c.Header(HeaderIdempotentReplay, "true")
	c.Data(rec.Status, "application/json; charset=utf-8", rec.Response)
	return true
}

// remember stores non-5xx responses of verified callers under the request's
// Idempotency-Key. Server errors stay retryable.
func (h *Handlers) remember(c *gin.Context, uid, hash string, status int, raw []byte) {
	key, present := middleware.GetIdempotencyKey(c)
	if h.idem == nil || uid == "" || !present || status >= http.StatusInternalServerError {
		return
	}
	if err := h.idem.Save(c.Request.Context(), uid, middleware.IdempotencyScope(c), key, hash, status, raw); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency record")
	}
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func writeEnvelope(c *gin.Context, status int, resp functions.Response) {
	c.AbortWithStatusJSON(status, resp)
}
