package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/payments"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
)

// ----- Fakes -----

type fakePayments struct {
	configured bool

	existing       *payments.Customer
	byEmail        *payments.Customer
	emailLookup    string
	cancelled      string
	createdCust    *payments.CustomerInput
	subscription   *payments.SubscriptionInput
	charge         *payments.ChargeInput
	payment        *payments.Payment
	active         bool
	activeCustomer string
	err            error
}

func (f *fakePayments) Configured() bool { return f.configured }

func (f *fakePayments) FindCustomerByCPF(context.Context, string) (*payments.Customer, error) {
	return f.existing, nil
}

func (f *fakePayments) FindCustomerByEmail(_ context.Context, email string) (*payments.Customer, error) {
	f.emailLookup = email
	return f.byEmail, nil
}

func (f *fakePayments) CancelSubscription(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = id
	return nil
}

func (f *fakePayments) CreateCustomer(_ context.Context, in payments.CustomerInput) (*payments.Customer, error) {
	f.createdCust = &in
	if f.err != nil {
		return nil, f.err
	}
	return &payments.Customer{ID: "cus_new", Name: in.Name}, nil
}

func (f *fakePayments) CreateSubscription(_ context.Context, in payments.SubscriptionInput) (*payments.Subscription, error) {
	f.subscription = &in
	return &payments.Subscription{ID: "sub_1", Customer: in.CustomerID}, nil
}

func (f *fakePayments) CreatePixPayment(_ context.Context, in payments.ChargeInput) (*payments.PixCharge, error) {
	f.charge = &in
	return &payments.PixCharge{Payment: payments.Payment{ID: "pay_pix"}, EncodedImage: "img", Payload: "000201"}, nil
}

func (f *fakePayments) CreateBoletoPayment(_ context.Context, in payments.ChargeInput) (*payments.Payment, error) {
	f.charge = &in
	return &payments.Payment{ID: "pay_bol", BankSlipURL: "https://boleto"}, nil
}

func (f *fakePayments) GetPayment(context.Context, string) (*payments.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payment, nil
}

func (f *fakePayments) HasActiveSubscription(_ context.Context, customerID string) (bool, error) {
	f.activeCustomer = customerID
	return f.active, nil
}

type fakeRegistrar struct {
	got provider.BeneficiaryInput
	err error
}

func (r *fakeRegistrar) CreateBeneficiary(_ context.Context, in provider.BeneficiaryInput) (provider.BeneficiaryRecord, error) {
	r.got = in
	if r.err != nil {
		return provider.BeneficiaryRecord{}, r.err
	}
	return provider.BeneficiaryRecord{UUID: "33333333-3333-4333-8333-333333333333", Name: in.Name, CPF: in.CPF}, nil
}

func signup(method string) SubscriptionRequest {
	return SubscriptionRequest{
		FullName: "Ana Souza", CPF: "123.456.789-01", BirthDate: "1990-05-01", Email: "ana@example.com",
		Phone: "(11) 98888-7777", CEP: "01001-000", Street: "Praça da Sé", Number: "1", Neighborhood: "Sé",
		ServiceType: "basic", TotalPrice: 89.90, MemberCount: 1, IncludeSpecialists: true,
		PaymentMethod: method,
	}
}

func newSubscriptionService(t *testing.T, pay *fakePayments, reg *fakeRegistrar) *SubscriptionService {
	t.Helper()
	return &SubscriptionService{
		DB: newTestDB(t), Payments: pay, Beneficiaries: reg,
		Now: func() time.Time { return fixedNow },
	}
}

func TestCreateSubscription_Pix(t *testing.T) {
	pay := &fakePayments{configured: true}
	reg := &fakeRegistrar{}
	s := newSubscriptionService(t, pay, reg)
	ctx := context.Background()

	out, err := s.CreateSubscription(ctx, signup("pix"))
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if out.PaymentID != "pay_pix" || out.PixQRCode != "img" || out.PixCopyPaste != "000201" || out.AsaasCustomerID != "cus_new" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if out.UserID == "" || out.BeneficiaryUUID == "" || out.PaymentMethod != MethodPix {
		t.Fatalf("missing ids: %+v", out)
	}
	if reg.got.CPF != "12345678901" {
		t.Fatalf("registrar got cpf %q", reg.got.CPF)
	}
	if pay.createdCust == nil || pay.createdCust.BeneficiaryUUID != out.BeneficiaryUUID {
		t.Fatalf("customer input = %+v", pay.createdCust)
	}
	if pay.charge == nil || pay.charge.Description != "Assinatura AiLun Saúde - Ana Souza" {
		t.Fatalf("charge = %+v", pay.charge)
	}

	b, err := repo.GetBeneficiaryByUUID(ctx, s.DB, out.BeneficiaryUUID)
	if err != nil || b.UserID != out.UserID || !b.IsPrimary || !b.HasActivePlan {
		t.Fatalf("beneficiary row = %+v err=%v", b, err)
	}
	plan, err := repo.GetLatestPlanByUser(ctx, s.DB, out.UserID)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Status != PlanPending || plan.PlanName != "Plano basic" || !plan.IncludeClinical ||
		plan.NextBillingDate != "2025-02-09" || plan.AsaasSubscriptionID != nil {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestCreateSubscription_CreditCardReusesCustomer(t *testing.T) {
	pay := &fakePayments{configured: true, existing: &payments.Customer{ID: "cus_old"}}
	s := newSubscriptionService(t, pay, &fakeRegistrar{})
	in := signup("credit_card")
	in.CreditCard = &payments.CreditCard{HolderName: "ANA", Number: "4111111111111111", ExpiryMonth: "12", ExpiryYear: "2030", CCV: "123"}

	out, err := s.CreateSubscription(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if pay.createdCust != nil {
		t.Fatalf("existing customer should be reused")
	}
	if out.AsaasCustomerID != "cus_old" || out.AsaasSubscriptionID != "sub_1" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if pay.subscription.BillingType != payments.BillingCreditCard || pay.subscription.HolderInfo.Name != "Ana Souza" {
		t.Fatalf("subscription input = %+v", pay.subscription)
	}
	if got := pay.subscription.HolderInfo.CPFCNPJ; got != "12345678901" {
		t.Fatalf("holder cpf = %q, want normalized digits", got)
	}
	if pay.emailLookup != "" {
		t.Fatalf("email lookup ran although the cpf matched")
	}
	plan, err := repo.GetLatestPlanByUser(context.Background(), s.DB, out.UserID)
	if err != nil || plan.Status != PlanActive || plan.AsaasSubscriptionID == nil || *plan.AsaasSubscriptionID != "sub_1" {
		t.Fatalf("plan = %+v err=%v", plan, err)
	}
}

func TestCreateSubscription_FindsCustomerByEmail(t *testing.T) {
	pay := &fakePayments{configured: true, byEmail: &payments.Customer{ID: "cus_mail"}}
	s := newSubscriptionService(t, pay, &fakeRegistrar{})

	out, err := s.CreateSubscription(context.Background(), signup("pix"))
	if err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if pay.emailLookup != "ana@example.com" || pay.createdCust != nil || out.AsaasCustomerID != "cus_mail" {
		t.Fatalf("lookup=%q created=%+v out=%+v", pay.emailLookup, pay.createdCust, out)
	}
}

func TestCancelSubscription(t *testing.T) {
	ctx := context.Background()
	pay := &fakePayments{configured: true}
	s := newSubscriptionService(t, pay, &fakeRegistrar{})

	if _, err := s.CancelSubscription(ctx, "nobody"); !errors.Is(err, ErrNoSubscription) {
		t.Fatalf("no plan: %v", err)
	}

	pix, err := s.CreateSubscription(ctx, signup("pix"))
	if err != nil {
		t.Fatalf("pix signup: %v", err)
	}
	if _, err := s.CancelSubscription(ctx, pix.UserID); !errors.Is(err, ErrNoSubscription) {
		t.Fatalf("pix plan: %v", err)
	}

	in := signup("credit_card")
	in.UserID = "u-card"
	in.CreditCard = &payments.CreditCard{HolderName: "ANA", Number: "4111111111111111", ExpiryMonth: "12", ExpiryYear: "2030", CCV: "123"}
	if _, err := s.CreateSubscription(ctx, in); err != nil {
		t.Fatalf("card signup: %v", err)
	}

	out, err := s.CancelSubscription(ctx, "u-card")
	if err != nil || out.SubscriptionID != "sub_1" || out.Status != PlanCancelled || pay.cancelled != "sub_1" {
		t.Fatalf("cancel: out=%+v err=%v cancelled=%q", out, err, pay.cancelled)
	}
	plan, err := repo.GetLatestPlanByUser(ctx, s.DB, "u-card")
	if err != nil || plan.Status != PlanCancelled {
		t.Fatalf("plan = %+v err=%v", plan, err)
	}

	// A second cancel does not call the provider again.
	pay.cancelled = ""
	if out, err := s.CancelSubscription(ctx, "u-card"); err != nil || out.Status != PlanCancelled || pay.cancelled != "" {
		t.Fatalf("repeat cancel: out=%+v err=%v cancelled=%q", out, err, pay.cancelled)
	}
}

func TestCancelSubscription_ProviderError(t *testing.T) {
	ctx := context.Background()
	pay := &fakePayments{configured: true}
	s := newSubscriptionService(t, pay, &fakeRegistrar{})
	sub := "sub_9"
	if _, err := repo.CreateSubscriptionPlan(ctx, s.DB, &domain.SubscriptionPlan{
		UserID: "u-9", BeneficiaryID: "33333333-3333-4333-8333-333333333333", PlanName: "Plano basic",
		Status: PlanActive, AsaasSubscriptionID: &sub,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	pay.err = &payments.APIError{Status: 404, Description: "Assinatura não encontrada"}

	var ue *UpstreamError
	if _, err := s.CancelSubscription(ctx, "u-9"); !errors.As(err, &ue) {
		t.Fatalf("want upstream error, got %v", err)
	}
	plan, _ := repo.GetLatestPlanByUser(ctx, s.DB, "u-9")
	if plan.Status != PlanActive {
		t.Fatalf("plan changed after provider failure: %q", plan.Status)
	}

	s = newSubscriptionService(t, &fakePayments{}, &fakeRegistrar{})
	if _, err := s.CancelSubscription(ctx, "u-9"); !errors.Is(err, ErrPaymentsNotConfigured) {
		t.Fatalf("unconfigured: %v", err)
	}
}

func TestCreateSubscription_Boleto(t *testing.T) {
	pay := &fakePayments{configured: true}
	s := newSubscriptionService(t, pay, &fakeRegistrar{})
	out, err := s.CreateSubscription(context.Background(), signup("boleto"))
	if err != nil || out.BoletoURL != "https://boleto" || out.PaymentID != "pay_bol" {
		t.Fatalf("out=%+v err=%v", out, err)
	}
}

func TestCreateSubscription_Rejections(t *testing.T) {
	ctx := context.Background()

	s := newSubscriptionService(t, &fakePayments{}, &fakeRegistrar{})
	if _, err := s.CreateSubscription(ctx, signup("pix")); !errors.Is(err, ErrPaymentsNotConfigured) {
		t.Fatalf("expected ErrPaymentsNotConfigured, got %v", err)
	}

	reg := &fakeRegistrar{}
	s = newSubscriptionService(t, &fakePayments{configured: true}, reg)
	if _, err := s.CreateSubscription(ctx, signup("cash")); !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}
	if _, err := s.CreateSubscription(ctx, signup("credit_card")); !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("card flow without card: %v", err)
	}
	if reg.got.Name != "" {
		t.Fatalf("provider must not be called for rejected input")
	}

	s = newSubscriptionService(t, &fakePayments{configured: true}, &fakeRegistrar{err: errors.New("rapidoc 500")})
	_, err := s.CreateSubscription(ctx, signup("pix"))
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Message != "Erro ao criar beneficiário" {
		t.Fatalf("expected beneficiary UpstreamError, got %v", err)
	}

	s = newSubscriptionService(t, &fakePayments{configured: true, err: &payments.APIError{Status: 400, Description: "CPF inválido"}}, &fakeRegistrar{})
	_, err = s.CreateSubscription(ctx, signup("pix"))
	if !errors.As(err, &ue) || ue.Message != "Falha na requisição Asaas: CPF inválido" {
		t.Fatalf("expected payments UpstreamError, got %v", err)
	}
	if n := count(t, s.DB, &domain.SubscriptionPlan{}, ""); n != 0 {
		t.Fatalf("plans = %d; nothing is recorded when payment fails", n)
	}
}

func TestCheckPaymentStatus(t *testing.T) {
	pay := &fakePayments{configured: true, payment: &payments.Payment{ID: "pay_1", Status: "CONFIRMED", Value: 89.9}}
	s := newSubscriptionService(t, pay, &fakeRegistrar{})
	ctx := context.Background()

	st, err := s.CheckPaymentStatus(ctx, "pay_1")
	if err != nil || !st.Paid || st.Status != "CONFIRMED" || st.Payment.ID != "pay_1" {
		t.Fatalf("st=%+v err=%v", st, err)
	}
	pay.payment.Status = "PENDING"
	if st, _ := s.CheckPaymentStatus(ctx, "pay_1"); st.Paid {
		t.Fatalf("PENDING must not be paid")
	}
	if _, err := s.CheckPaymentStatus(ctx, " "); err == nil {
		t.Fatalf("blank payment id accepted")
	}
}

func TestHasActiveSubscription(t *testing.T) {
	pay := &fakePayments{configured: true, active: true}
	s := newSubscriptionService(t, pay, &fakeRegistrar{})
	ctx := context.Background()

	if ok, err := s.HasActiveSubscription(ctx, "u1"); err != nil || ok {
		t.Fatalf("no plan: ok=%v err=%v", ok, err)
	}

	if _, err := repo.CreateSubscriptionPlan(ctx, s.DB, &domain.SubscriptionPlan{
		UserID: "u1", BeneficiaryID: "b1", PlanName: "Plano basic", Status: PlanActive,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if ok, _ := s.HasActiveSubscription(ctx, "u1"); !ok {
		t.Fatalf("local active plan should pass")
	}

	if _, err := repo.CreateSubscriptionPlan(ctx, s.DB, &domain.SubscriptionPlan{
		UserID: "u2", BeneficiaryID: "b2", PlanName: "Plano basic", Status: PlanPending, AsaasCustomerID: "cus_9",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if ok, _ := s.HasActiveSubscription(ctx, "u2"); !ok || pay.activeCustomer != "cus_9" {
		t.Fatalf("provider should decide for linked customers (asked %q)", pay.activeCustomer)
	}
}
