// Package services – SubscriptionService
//
// This file implements the subscription flows: the signup that registers a
// beneficiary with the consultation provider, a customer with the payment
// provider and the first charge; the payment status check; and the gate
// consulted by the Orchestrator before a consultation may start.
//
// Local bookkeeping (beneficiary row, subscription plan) is written after
// the remote side effects succeed and failures there are logged only, so a
// payer is never charged without the response reporting it.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/payments"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// Payment methods accepted by CreateSubscription.
const (
	MethodCreditCard = "credit_card"
	MethodPix        = "pix"
	MethodBoleto     = "boleto"
)

// Plan statuses written locally.
const (
	PlanActive    = "active"
	PlanPending   = "pending"
	PlanOverdue   = "overdue"
	PlanRefunded  = "refunded"
	PlanCancelled = "cancelled"
)

// billingPeriod is the offset of next_billing_date.
const billingPeriod = 30 * 24 * time.Hour

// PaymentsAPI is the payment-provider surface used here.
type PaymentsAPI interface {
	Configured() bool
	FindCustomerByCPF(ctx context.Context, cpf string) (*payments.Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*payments.Customer, error)
	CreateCustomer(ctx context.Context, in payments.CustomerInput) (*payments.Customer, error)
	CreateSubscription(ctx context.Context, in payments.SubscriptionInput) (*payments.Subscription, error)
	CancelSubscription(ctx context.Context, id string) error
	CreatePixPayment(ctx context.Context, in payments.ChargeInput) (*payments.PixCharge, error)
	CreateBoletoPayment(ctx context.Context, in payments.ChargeInput) (*payments.Payment, error)
	GetPayment(ctx context.Context, id string) (*payments.Payment, error)
	HasActiveSubscription(ctx context.Context, customerID string) (bool, error)
}

// BeneficiaryRegistrar registers patients with the consultation provider.
type BeneficiaryRegistrar interface {
	CreateBeneficiary(ctx context.Context, in provider.BeneficiaryInput) (provider.BeneficiaryRecord, error)
}

// SubscriptionRequest is the signup form.
type SubscriptionRequest struct {
	UserID string `json:"userId,omitempty"`

	FullName     string `json:"fullName"`
	CPF          string `json:"cpf"`
	BirthDate    string `json:"birthDate"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	CEP          string `json:"cep"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`

	IncludeSpecialists bool    `json:"includeSpecialists"`
	IncludePsychology  bool    `json:"includePsychology"`
	IncludeNutrition   bool    `json:"includeNutrition"`
	MemberCount        int     `json:"memberCount"`
	ServiceType        string  `json:"serviceType"`
	TotalPrice         float64 `json:"totalPrice"`
	DiscountPercentage float64 `json:"discountPercentage"`

	PaymentMethod string               `json:"paymentMethod"`
	CreditCard    *payments.CreditCard `json:"creditCard,omitempty"`
}

// SubscriptionResult reports what was created. Only the fields of the chosen
// payment method are set.
type SubscriptionResult struct {
	UserID              string `json:"userId"`
	BeneficiaryUUID     string `json:"beneficiaryUuid"`
	AsaasCustomerID     string `json:"asaasCustomerId"`
	AsaasSubscriptionID string `json:"asaasSubscriptionId,omitempty"`
	PaymentID           string `json:"paymentId,omitempty"`
	PixQRCode           string `json:"pixQrCode,omitempty"`
	PixCopyPaste        string `json:"pixCopyPaste,omitempty"`
	BoletoURL           string `json:"boletoUrl,omitempty"`
	PaymentMethod       string `json:"paymentMethod"`
}

// PaymentStatus is the check_payment_status view.
type PaymentStatus struct {
	Status  string            `json:"status"`
	Paid    bool              `json:"paid"`
	Payment *payments.Payment `json:"payment,omitempty"`
}

// SubscriptionService runs signup and billing checks.
type SubscriptionService struct {
	DB            *gorm.DB
	Payments      PaymentsAPI
	Beneficiaries BeneficiaryRegistrar
	Now           func() time.Time
}

func (s *SubscriptionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SubscriptionService) configured() bool {
	return s.Payments != nil && s.Payments.Configured()
}

// HasActiveSubscription reports whether userID may use paid services. The
// user's latest plan decides; when it points at a payment-provider customer
// the provider is asked, otherwise the local plan status is used.
func (s *SubscriptionService) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	plan, err := repo.GetLatestPlanByUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if plan.AsaasCustomerID != "" && s.configured() {
		return s.Payments.HasActiveSubscription(ctx, plan.AsaasCustomerID)
	}
	return plan.Status == PlanActive, nil
}

// CreateSubscription registers the beneficiary and the payer, opens the
// first charge and records the plan locally.
//
// Errors:
//   - ErrPaymentsNotConfigured when no payment credentials are set.
//   - ErrInvalidPaymentMethod for an unknown method or a card flow without card.
//   - *validation.Error for malformed customer data.
//   - *UpstreamError when either provider rejects the request.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, in SubscriptionRequest) (*SubscriptionResult, error) {
	if !s.configured() {
		return nil, ErrPaymentsNotConfigured
	}
	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	switch method {
	case MethodPix, MethodBoleto:
	case MethodCreditCard:
		if in.CreditCard == nil {
			return nil, ErrInvalidPaymentMethod
		}
	default:
		return nil, ErrInvalidPaymentMethod
	}
	cpf, err := validation.CPF(in.CPF)
	if err != nil {
		return nil, err
	}

	rec, err := s.Beneficiaries.CreateBeneficiary(ctx, provider.BeneficiaryInput{
		Name:        in.FullName,
		CPF:         cpf,
		BirthDate:   in.BirthDate,
		Email:       in.Email,
		Phone:       in.Phone,
		ServiceType: in.ServiceType,
	})
	if err != nil {
		log.Error().Err(err).Str("email", in.Email).Msg("provider beneficiary not created")
		return nil, &UpstreamError{Message: "Erro ao criar beneficiário"}
	}

	out := &SubscriptionResult{
		UserID:          in.UserID,
		BeneficiaryUUID: rec.UUID,
		PaymentMethod:   method,
	}
	if out.UserID == "" {
		out.UserID = uuid.NewString()
	}

	customer, err := s.customerFor(ctx, in, cpf, rec.UUID)
	if err != nil {
		return nil, err
	}
	out.AsaasCustomerID = customer.ID

	if err := s.charge(ctx, in, method, cpf, customer.ID, rec.UUID, out); err != nil {
		return nil, err
	}

	s.record(ctx, in, cpf, method, out)
	return out, nil
}

func (s *SubscriptionService) customerFor(ctx context.Context, in SubscriptionRequest, cpf, beneficiaryUUID string) (*payments.Customer, error) {
	c, err := s.Payments.FindCustomerByCPF(ctx, cpf)
	if err != nil {
		return nil, upstreamPayments("customer lookup", err)
	}
	if c == nil && strings.TrimSpace(in.Email) != "" {
		if c, err = s.Payments.FindCustomerByEmail(ctx, in.Email); err != nil {
			return nil, upstreamPayments("customer lookup", err)
		}
	}
	if c != nil {
		return c, nil
	}
	c, err = s.Payments.CreateCustomer(ctx, payments.CustomerInput{
		Name:            in.FullName,
		Email:           in.Email,
		CPF:             cpf,
		Phone:           in.Phone,
		PostalCode:      in.CEP,
		Address:         in.Street,
		AddressNumber:   in.Number,
		Complement:      in.Complement,
		Province:        in.Neighborhood,
		BeneficiaryUUID: beneficiaryUUID,
	})
	if err != nil {
		return nil, upstreamPayments("customer create", err)
	}
	return c, nil
}

func (s *SubscriptionService) charge(ctx context.Context, in SubscriptionRequest, method, cpf, customerID, beneficiaryUUID string, out *SubscriptionResult) error {
	desc := fmt.Sprintf("Assinatura AiLun Saúde - %s", in.FullName)
	switch method {
	case MethodCreditCard:
		sub, err := s.Payments.CreateSubscription(ctx, payments.SubscriptionInput{
			CustomerID:  customerID,
			BillingType: payments.BillingCreditCard,
			Value:       in.TotalPrice,
			CreditCard:  in.CreditCard,
			HolderInfo: &payments.CreditCardHolderInfo{
				Name:              in.FullName,
				Email:             in.Email,
				CPFCNPJ:           cpf,
				PostalCode:        in.CEP,
				AddressNumber:     in.Number,
				AddressComplement: in.Complement,
				Phone:             in.Phone,
			},
			BeneficiaryUUID: beneficiaryUUID,
		})
		if err != nil {
			return upstreamPayments("subscription create", err)
		}
		out.AsaasSubscriptionID = sub.ID
	case MethodPix:
		pix, err := s.Payments.CreatePixPayment(ctx, payments.ChargeInput{
			CustomerID: customerID, Value: in.TotalPrice, Description: desc, BeneficiaryUUID: beneficiaryUUID,
		})
		if err != nil {
			return upstreamPayments("pix create", err)
		}
		out.PaymentID = pix.ID
		out.PixQRCode = pix.EncodedImage
		out.PixCopyPaste = pix.Payload
	case MethodBoleto:
		p, err := s.Payments.CreateBoletoPayment(ctx, payments.ChargeInput{
			CustomerID: customerID, Value: in.TotalPrice, Description: desc, BeneficiaryUUID: beneficiaryUUID,
		})
		if err != nil {
			return upstreamPayments("boleto create", err)
		}
		out.PaymentID = p.ID
		out.BoletoURL = p.BankSlipURL
	}
	return nil
}

// record writes the beneficiary and plan rows. Failures are logged only.
func (s *SubscriptionService) record(ctx context.Context, in SubscriptionRequest, cpf, method string, out *SubscriptionResult) {
	if _, err := repo.CreateBeneficiary(ctx, s.DB, &domain.Beneficiary{
		UserID:          out.UserID,
		BeneficiaryUUID: out.BeneficiaryUUID,
		CPF:             cpf,
		FullName:        in.FullName,
		BirthDate:       in.BirthDate,
		Email:           in.Email,
		Phone:           in.Phone,
		ServiceType:     in.ServiceType,
		IsPrimary:       true,
		Status:          "active",
		HasActivePlan:   true,
	}); err != nil {
		log.Warn().Err(err).Str("beneficiary_uuid", out.BeneficiaryUUID).Msg("beneficiary row not recorded")
	}

	status := PlanPending
	if method == MethodCreditCard {
		status = PlanActive
	}
	members := in.MemberCount
	if members <= 0 {
		members = 1
	}
	plan := &domain.SubscriptionPlan{
		UserID:             out.UserID,
		BeneficiaryID:      out.BeneficiaryUUID,
		PlanName:           "Plano " + in.ServiceType,
		ServiceType:        in.ServiceType,
		IncludeClinical:    true,
		IncludeSpecialists: in.IncludeSpecialists,
		IncludePsychology:  in.IncludePsychology,
		IncludeNutrition:   in.IncludeNutrition,
		MemberCount:        members,
		DiscountPercentage: in.DiscountPercentage,
		BasePrice:          in.TotalPrice,
		TotalPrice:         in.TotalPrice,
		AsaasCustomerID:    out.AsaasCustomerID,
		PaymentMethod:      method,
		BillingCycle:       "monthly",
		Status:             status,
		NextBillingDate:    s.now().Add(billingPeriod).Format("2006-01-02"),
	}
	if out.AsaasSubscriptionID != "" {
		id := out.AsaasSubscriptionID
		plan.AsaasSubscriptionID = &id
	}
	if _, err := repo.CreateSubscriptionPlan(ctx, s.DB, plan); err != nil {
		log.Warn().Err(err).Str("beneficiary_uuid", out.BeneficiaryUUID).Msg("subscription plan not recorded")
	}
}

// CheckPaymentStatus fetches a payment and reports whether it settled.
func (s *SubscriptionService) CheckPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	if !s.configured() {
		return nil, ErrPaymentsNotConfigured
	}
	if strings.TrimSpace(paymentID) == "" {
		return nil, &validation.Error{Field: "paymentId", Message: "ID do pagamento é obrigatório"}
	}
	p, err := s.Payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, upstreamPaymentsMsg("payment get", "Erro ao verificar pagamento", err)
	}
	return &PaymentStatus{Status: p.Status, Paid: p.Paid(), Payment: p}, nil
}

// CancelledSubscription is the answer to CancelSubscription.
type CancelledSubscription struct {
	SubscriptionID  string `json:"subscriptionId"`
	BeneficiaryUUID string `json:"beneficiaryUuid"`
	Status          string `json:"status"`
}

// CancelSubscription cancels the recurring subscription behind the user's
// latest plan and marks the beneficiary's plans cancelled. Pix and boleto
// plans have no recurring subscription and yield ErrNoSubscription.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, userID string) (*CancelledSubscription, error) {
	if !s.configured() {
		return nil, ErrPaymentsNotConfigured
	}
	plan, err := repo.GetLatestPlanByUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	if plan.AsaasSubscriptionID == nil || *plan.AsaasSubscriptionID == "" {
		return nil, ErrNoSubscription
	}
	out := &CancelledSubscription{
		SubscriptionID:  *plan.AsaasSubscriptionID,
		BeneficiaryUUID: plan.BeneficiaryID,
		Status:          PlanCancelled,
	}
	if plan.Status == PlanCancelled {
		return out, nil
	}
	if err := s.Payments.CancelSubscription(ctx, out.SubscriptionID); err != nil {
		return nil, upstreamPaymentsMsg("subscription cancel", "Erro ao cancelar assinatura", err)
	}
	if _, err := repo.UpdatePlanStatusByBeneficiary(ctx, s.DB, plan.BeneficiaryID, PlanCancelled); err != nil {
		log.Warn().Err(err).Str("beneficiary_uuid", plan.BeneficiaryID).Msg("plan cancellation not recorded")
	}
	return out, nil
}

// upstreamPayments keeps validation errors and reduces anything else to an
// *UpstreamError carrying the provider's description.
func upstreamPayments(op string, err error) error {
	return upstreamPaymentsMsg(op, "Erro ao criar assinatura", err)
}

func upstreamPaymentsMsg(op, fallback string, err error) error {
	var ve *validation.Error
	if errors.As(err, &ve) {
		return ve
	}
	log.Error().Err(err).Str("op", op).Msg("payment provider call failed")
	var ae *payments.APIError
	if errors.As(err, &ae) {
		return &UpstreamError{Message: ae.Error()}
	}
	return &UpstreamError{Message: fallback}
}
