// Command functions-lambda serves the function endpoints behind an API
// Gateway HTTP API, one invocation per event:
//
//	POST /functions/{orchestrator|rapidoc|tema-orchestrator}
//	POST /webhooks/asaas
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/telemed-orchestrator/internal/app"
	"github.com/tbourn/telemed-orchestrator/internal/auth"
	"github.com/tbourn/telemed-orchestrator/internal/config"
	"github.com/tbourn/telemed-orchestrator/internal/functions"
	"github.com/tbourn/telemed-orchestrator/internal/sysutil"
)

var corsHeaders = map[string]string{
	"access-control-allow-origin":  "*",
	"access-control-allow-headers": "authorization, x-client-info, apikey, content-type, idempotency-key",
	"access-control-allow-methods": "POST, OPTIONS",
}

type invoker interface {
	Invoke(ctx context.Context, inv functions.Invocation) (int, functions.Response)
}

type handler struct {
	fn       invoker
	verifier *auth.Verifier
}

func main() {
	cfg := config.MustLoad()
	sysutil.ConfigureLogger(os.Stdout, cfg.LogLevel, false)

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wire app")
	}
	h := handler{fn: a.Dispatcher, verifier: auth.NewVerifier(cfg.Auth.JWTSecret)}
	lambda.Start(h.handle)
}

func (h handler) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	p := strings.TrimRight(sysutil.FirstNonEmpty(evt.RawPath, evt.RequestContext.HTTP.Path), "/")

	if method == http.MethodOptions {
		return respond(http.StatusOK, nil), nil
	}
	if method != http.MethodPost {
		return envelope(http.StatusMethodNotAllowed, functions.Response{Error: "Método não permitido"}), nil
	}

	name := functionName(p)
	if name == "" {
		return envelope(http.StatusNotFound, functions.Response{Error: "Função não encontrada"}), nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return envelope(http.StatusBadRequest, functions.Response{Error: "Corpo da requisição inválido"}), nil
	}

	inv := functions.Invocation{
		Function:     name,
		Body:         body,
		WebhookToken: headerValue(evt.Headers, "asaas-access-token"),
	}
	if authz := headerValue(evt.Headers, "authorization"); authz != "" {
		inv.Caller, inv.AuthErr = h.verifier.VerifyHeader(authz)
	} else {
		inv.AuthErr = auth.ErrMissingToken
	}

	status, resp := h.fn.Invoke(ctx, inv)
	return envelope(status, resp), nil
}

// functionName maps a request path to a function name; "" when unknown.
func functionName(p string) string {
	if strings.HasSuffix(p, "/webhooks/asaas") {
		return functions.AsaasWebhook
	}
	switch name := path.Base(p); name {
	case functions.Orchestrator, functions.Rapidoc, functions.TemaOrchestrator:
		return name
	}
	return ""
}

func envelope(status int, resp functions.Response) events.APIGatewayV2HTTPResponse {
	b, err := json.Marshal(resp)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"success":false,"error":"Erro interno"}`)
	}
	return respond(status, b)
}

func respond(status int, body []byte) events.APIGatewayV2HTTPResponse {
	headers := make(map[string]string, len(corsHeaders)+1)
	for k, v := range corsHeaders {
		headers[k] = v
	}
	if body != nil {
		headers["content-type"] = "application/json"
	}
	return events.APIGatewayV2HTTPResponse{StatusCode: status, Headers: headers, Body: string(body)}
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
