package functions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/telemed-orchestrator/internal/auth"
	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/payments"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
	"github.com/tbourn/telemed-orchestrator/internal/services"
)

type stubGateway struct {
	result provider.Result
	calls  int
}

func (g *stubGateway) RequestConsultation(context.Context, domain.ServiceType, provider.Profile, provider.Options) (provider.Result, error) {
	g.calls++
	return g.result, nil
}

type stubPayments struct {
	payment   *payments.Payment
	err       error
	cancelled string
}

func (p *stubPayments) Configured() bool { return true }
func (p *stubPayments) FindCustomerByCPF(context.Context, string) (*payments.Customer, error) {
	return &payments.Customer{ID: "cus_1"}, nil
}
func (p *stubPayments) FindCustomerByEmail(context.Context, string) (*payments.Customer, error) {
	return nil, nil
}
func (p *stubPayments) CancelSubscription(_ context.Context, id string) error {
	p.cancelled = id
	return nil
}
func (p *stubPayments) CreateCustomer(context.Context, payments.CustomerInput) (*payments.Customer, error) {
	return &payments.Customer{ID: "cus_1"}, nil
}
func (p *stubPayments) CreateSubscription(context.Context, payments.SubscriptionInput) (*payments.Subscription, error) {
	return &payments.Subscription{ID: "sub_1"}, nil
}
func (p *stubPayments) CreatePixPayment(context.Context, payments.ChargeInput) (*payments.PixCharge, error) {
	return &payments.PixCharge{Payment: payments.Payment{ID: "pay_1"}, EncodedImage: "img", Payload: "code"}, nil
}
func (p *stubPayments) CreateBoletoPayment(context.Context, payments.ChargeInput) (*payments.Payment, error) {
	return &payments.Payment{ID: "pay_2"}, nil
}
func (p *stubPayments) GetPayment(context.Context, string) (*payments.Payment, error) {
	return p.payment, p.err
}
func (p *stubPayments) HasActiveSubscription(context.Context, string) (bool, error) { return false, nil }

type stubRegistrar struct{}

func (stubRegistrar) CreateBeneficiary(_ context.Context, in provider.BeneficiaryInput) (provider.BeneficiaryRecord, error) {
	return provider.BeneficiaryRecord{UUID: "55555555-5555-4555-8555-555555555555", Name: in.Name}, nil
}

type fixture struct {
	d   *Dispatcher
	db  *gorm.DB
	gw  *stubGateway
	pay *stubPayments
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:fn_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	gw := &stubGateway{result: provider.Result{
		Success: true, SessionID: "DOC_1", ConsultationURL: "https://x", EstimatedWaitTime: 3,
		ProfessionalInfo: &provider.ProfessionalInfo{Name: "Dr. B", Specialty: "Clínica Geral", Rating: 4.8},
	}}
	pay := &stubPayments{}
	o := services.NewOrchestrator(db, gw)
	return &fixture{
		d: &Dispatcher{
			Orchestrator:       o,
			Subscriptions:      &services.SubscriptionService{DB: db, Payments: pay, Beneficiaries: stubRegistrar{}},
			Webhooks:           &services.WebhookProcessor{DB: db, Notifications: o.Notifications},
			ProviderConfigured: true,
			WebhookSecret:      "whsec",
		},
		db: db, gw: gw, pay: pay,
	}
}

var alice = &auth.Caller{UserID: "u1", Email: "alice@example.com", Name: "Alice"}

func (f *fixture) call(t *testing.T, fn string, caller *auth.Caller, body string) (int, Response) {
	t.Helper()
	return f.d.Invoke(context.Background(), Invocation{Function: fn, Caller: caller, Body: []byte(body)})
}

// dataAs re-decodes resp.Data into out.
func dataAs(t *testing.T, resp Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func TestOrchestrator_AuthAndEnvelope(t *testing.T) {
	f := newFixture(t)

	if st, r := f.call(t, Orchestrator, nil, `{"action":"check_queue"}`); st != http.StatusUnauthorized || r.Error != "Não autorizado" {
		t.Fatalf("no caller: %d %+v", st, r)
	}
	st, r := f.d.Invoke(context.Background(), Invocation{Function: Orchestrator, AuthErr: auth.ErrNoSubject, Body: []byte(`{}`)})
	if st != http.StatusUnauthorized || r.Error != "Usuário inválido" {
		t.Fatalf("no subject: %d %+v", st, r)
	}
	if st, r := f.call(t, Orchestrator, alice, `{not json`); st != http.StatusBadRequest || r.Success {
		t.Fatalf("bad json: %d %+v", st, r)
	}
	if st, r := f.call(t, Orchestrator, alice, `{"action":"fly"}`); st != http.StatusBadRequest || r.Error != "Ação não reconhecida" {
		t.Fatalf("unknown action: %d %+v", st, r)
	}
	if st, _ := f.call(t, "nope", alice, `{}`); st != http.StatusNotFound {
		t.Fatalf("unknown function: %d", st)
	}
}

func TestOrchestrator_StartConflictCancel(t *testing.T) {
	f := newFixture(t)

	st, r := f.call(t, Orchestrator, alice, `{"action":"start_consultation","serviceType":"doctor"}`)
	if st != http.StatusOK || !r.Success {
		t.Fatalf("start: %d %+v", st, r)
	}
	var started struct {
		ConsultationLog domain.ConsultationLog `json:"consultationLog"`
		Session         provider.Result        `json:"session"`
		Message         string                 `json:"message"`
	}
	dataAs(t, r, &started)
	if started.Message != "Consulta iniciada com sucesso" || started.Session.SessionID != "DOC_1" || started.ConsultationLog.ID == "" {
		t.Fatalf("start data = %+v", started)
	}

	st, r = f.call(t, Orchestrator, alice, `{"action":"start_consultation","serviceType":"psychology"}`)
	if st != http.StatusConflict || r.Error != "Você já tem uma consulta ativa. Finalize antes de iniciar outra." {
		t.Fatalf("conflict: %d %+v", st, r)
	}
	var conflict struct {
		ActiveSession domain.ActiveSession `json:"activeSession"`
	}
	dataAs(t, r, &conflict)
	if conflict.ActiveSession.ConsultationLogID != started.ConsultationLog.ID {
		t.Fatalf("conflict data = %+v", conflict)
	}

	if st, r := f.call(t, Orchestrator, alice, `{"action":"cancel_consultation"}`); st != http.StatusBadRequest || r.Error != "ID da consulta é obrigatório" {
		t.Fatalf("cancel without id: %d %+v", st, r)
	}
	if st, r := f.call(t, Orchestrator, alice, `{"action":"cancel_consultation","consultationId":"nope"}`); st != http.StatusNotFound {
		t.Fatalf("cancel unknown: %d %+v", st, r)
	}
	st, r = f.call(t, Orchestrator, alice, `{"action":"cancel_consultation","consultationId":"`+started.ConsultationLog.ID+`"}`)
	if st != http.StatusOK || !r.Success {
		t.Fatalf("cancel: %d %+v", st, r)
	}

	st, r = f.call(t, Orchestrator, alice, `{"action":"get_active_sessions"}`)
	var sessions []domain.ActiveSession
	dataAs(t, r, &sessions)
	if st != http.StatusOK || len(sessions) != 0 {
		t.Fatalf("sessions after cancel: %d %+v", st, sessions)
	}

	st, r = f.call(t, Orchestrator, alice, `{"action":"get_notifications"}`)
	var notes []domain.SystemNotification
	dataAs(t, r, &notes)
	if st != http.StatusOK || len(notes) != 2 {
		t.Fatalf("notifications: %d %d", st, len(notes))
	}
	st, r = f.call(t, Orchestrator, alice, `{"action":"mark_notification_read","notificationId":"`+notes[0].ID+`"}`)
	if st != http.StatusOK || !r.Success {
		t.Fatalf("mark read: %d %+v", st, r)
	}
}

func TestOrchestrator_StartValidationAndUpstream(t *testing.T) {
	f := newFixture(t)

	if st, r := f.call(t, Orchestrator, alice, `{"action":"start_consultation","serviceType":"dentist"}`); st != http.StatusBadRequest || r.Error != "Tipo de serviço não reconhecido" {
		t.Fatalf("unknown type: %d %+v", st, r)
	}

	f.gw.result = provider.Result{Success: false, Error: "Nenhum médico disponível no momento"}
	st, r := f.call(t, Orchestrator, alice, `{"action":"start_consultation","serviceType":"doctor"}`)
	if st != http.StatusBadGateway || r.Error != "Nenhum médico disponível no momento" || r.Data != nil {
		t.Fatalf("upstream: %d %+v", st, r)
	}

	st, r = f.call(t, Orchestrator, alice, `{"action":"check_queue"}`)
	var snap services.QueueSnapshot
	dataAs(t, r, &snap)
	if st != http.StatusOK || len(snap.UserQueue) != 0 {
		t.Fatalf("cancelled rows must not be listed: %+v", snap)
	}
}

func TestRapidoc(t *testing.T) {
	f := newFixture(t)

	f.d.ProviderConfigured = false
	if st, r := f.call(t, Rapidoc, alice, `{"action":"request-consultation","serviceType":"doctor"}`); st != http.StatusInternalServerError || r.Error != "Configuração da API não encontrada" {
		t.Fatalf("unconfigured: %d %+v", st, r)
	}
	f.d.ProviderConfigured = true

	if _, r := f.call(t, Rapidoc, nil, `{"action":"request-consultation","serviceType":"doctor"}`); r.Error != "Usuário não autenticado" {
		t.Fatalf("unauthenticated: %+v", r)
	}
	if st, r := f.call(t, Rapidoc, alice, `{"action":"request-consultation"}`); st != http.StatusBadRequest || r.Error != "Dados da solicitação inválidos" {
		t.Fatalf("missing type: %d %+v", st, r)
	}
	if _, r := f.call(t, Rapidoc, alice, `{"action":"request-consultation","serviceType":"dentist"}`); r.Error != "Tipo de serviço não reconhecido" {
		t.Fatalf("unknown type: %+v", r)
	}

	st, r := f.call(t, Rapidoc, alice, `{"action":"request-consultation","serviceType":"nutrition","userProfile":{"name":"Bob","email":"b@x"}}`)
	if st != http.StatusOK || !r.Success {
		t.Fatalf("ok: %d %+v", st, r)
	}
	var n int64
	f.db.Model(&domain.ConsultationLog{}).Where("user_id = ? AND success = ?", "u1", true).Count(&n)
	if n != 1 {
		t.Fatalf("logs = %d; want 1", n)
	}
}

func TestTema(t *testing.T) {
	f := newFixture(t)

	st, r := f.call(t, TemaOrchestrator, alice, `{"action":"start_consultation","serviceType":"doctor"}`)
	var gate map[string]bool
	dataAs(t, r, &gate)
	if st != http.StatusPaymentRequired || r.Success || !gate["requires_subscription"] {
		t.Fatalf("gate: %d %+v", st, r)
	}
	if f.gw.calls != 0 {
		t.Fatalf("gateway called behind closed gate")
	}

	st, r = f.call(t, TemaOrchestrator, nil, `{"action":"create_subscription","data":{"fullName":"Ana","cpf":"12345678901","email":"ana@x.com","phone":"11988887777","serviceType":"basic","totalPrice":89.9,"paymentMethod":"pix"}}`)
	var created services.SubscriptionResult
	dataAs(t, r, &created)
	if st != http.StatusOK || created.PaymentID != "pay_1" || created.PixCopyPaste != "code" || created.AsaasCustomerID != "cus_1" {
		t.Fatalf("create: %d %+v", st, created)
	}
	if _, r := f.call(t, TemaOrchestrator, nil, `{"action":"create_subscription","data":{"cpf":"12345678901","paymentMethod":"cash"}}`); r.Error != "Método de pagamento inválido" {
		t.Fatalf("bad method: %+v", r)
	}

	f.pay.payment = &payments.Payment{ID: "pay_1", Status: "RECEIVED"}
	st, r = f.call(t, TemaOrchestrator, nil, `{"action":"check_payment_status","paymentId":"pay_1"}`)
	var ps services.PaymentStatus
	dataAs(t, r, &ps)
	if st != http.StatusOK || !ps.Paid || ps.Status != "RECEIVED" {
		t.Fatalf("status: %d %+v", st, ps)
	}

	f.pay.err = errors.New("timeout")
	st, r = f.call(t, TemaOrchestrator, nil, `{"action":"check_payment_status","paymentId":"pay_1"}`)
	dataAs(t, r, &ps)
	if st == http.StatusOK || r.Success || ps.Status != "ERROR" || ps.Paid {
		t.Fatalf("status error: %d %+v", st, r)
	}

	if _, r := f.call(t, TemaOrchestrator, nil, `{"action":"noop"}`); r.Error != "Ação não reconhecida" {
		t.Fatalf("unknown action: %+v", r)
	}
}

func TestTema_CancelSubscription(t *testing.T) {
	f := newFixture(t)

	if st, _ := f.call(t, TemaOrchestrator, nil, `{"action":"cancel_subscription"}`); st != http.StatusUnauthorized {
		t.Fatalf("anonymous cancel: %d", st)
	}
	if st, r := f.call(t, TemaOrchestrator, alice, `{"action":"cancel_subscription"}`); st != http.StatusNotFound || r.Success {
		t.Fatalf("no subscription: %d %+v", st, r)
	}

	st, _ := f.call(t, TemaOrchestrator, alice, `{"action":"create_subscription","data":{"fullName":"Alice","cpf":"12345678901","email":"alice@example.com","phone":"11988887777","serviceType":"basic","totalPrice":89.9,"paymentMethod":"credit_card","creditCard":{"holderName":"ALICE","number":"4111111111111111","expiryMonth":"12","expiryYear":"2030","ccv":"123"}}}`)
	if st != http.StatusOK {
		t.Fatalf("card signup: %d", st)
	}

	st, r := f.call(t, TemaOrchestrator, alice, `{"action":"cancel_subscription"}`)
	var out services.CancelledSubscription
	dataAs(t, r, &out)
	if st != http.StatusOK || out.SubscriptionID != "sub_1" || out.Status != services.PlanCancelled || f.pay.cancelled != "sub_1" {
		t.Fatalf("cancel: %d %+v cancelled=%q", st, out, f.pay.cancelled)
	}
}

func TestAsaasWebhook(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"event":"PAYMENT_CREATED","payment":{"id":"pay_9"}}`)

	st, r := f.d.Invoke(context.Background(), Invocation{Function: AsaasWebhook, Body: body, WebhookToken: "wrong"})
	if st != http.StatusUnauthorized || r.Success {
		t.Fatalf("bad token: %d %+v", st, r)
	}
	st, _ = f.d.Invoke(context.Background(), Invocation{Function: AsaasWebhook, Body: []byte(`[]`), WebhookToken: "whsec"})
	if st != http.StatusBadRequest {
		t.Fatalf("bad payload: %d", st)
	}
	st, r = f.d.Invoke(context.Background(), Invocation{Function: AsaasWebhook, Body: body, WebhookToken: "whsec"})
	var res services.WebhookResult
	dataAs(t, r, &res)
	if st != http.StatusOK || res.Message != "Webhook sem externalReference" {
		t.Fatalf("ok: %d %+v", st, res)
	}
}
