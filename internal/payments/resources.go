package payments

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// Billing types accepted by the provider.
const (
	BillingCreditCard = "CREDIT_CARD"
	BillingPix        = "PIX"
	BillingBoleto     = "BOLETO"
)

// Customer is a payer registered with the provider.
type Customer struct {
	ID                   string `json:"id,omitempty"`
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Phone                string `json:"phone,omitempty"`
	MobilePhone          string `json:"mobilePhone,omitempty"`
	CPFCNPJ              string `json:"cpfCnpj"`
	PostalCode           string `json:"postalCode,omitempty"`
	Address              string `json:"address,omitempty"`
	AddressNumber        string `json:"addressNumber,omitempty"`
	Complement           string `json:"complement,omitempty"`
	Province             string `json:"province,omitempty"`
	ExternalReference    string `json:"externalReference,omitempty"`
	NotificationDisabled bool   `json:"notificationDisabled"`
}

// CustomerInput is the raw registration data; CreateCustomer cleans it.
type CustomerInput struct {
	Name            string
	Email           string
	CPF             string
	Phone           string
	PostalCode      string
	Address         string
	AddressNumber   string
	Complement      string
	Province        string
	BeneficiaryUUID string
}

// CreditCard is the card block of a card subscription.
type CreditCard struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CCV         string `json:"ccv"`
}

// CreditCardHolderInfo identifies the card holder.
type CreditCardHolderInfo struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	CPFCNPJ           string `json:"cpfCnpj"`
	PostalCode        string `json:"postalCode"`
	AddressNumber     string `json:"addressNumber"`
	AddressComplement string `json:"addressComplement,omitempty"`
	Phone             string `json:"phone"`
	MobilePhone       string `json:"mobilePhone,omitempty"`
}

// Subscription is a recurring charge.
type Subscription struct {
	ID                   string                `json:"id,omitempty"`
	Customer             string                `json:"customer"`
	BillingType          string                `json:"billingType"`
	Value                float64               `json:"value"`
	NextDueDate          string                `json:"nextDueDate"`
	Cycle                string                `json:"cycle"`
	Description          string                `json:"description"`
	ExternalReference    string                `json:"externalReference,omitempty"`
	Status               string                `json:"status,omitempty"`
	CreditCard           *CreditCard           `json:"creditCard,omitempty"`
	CreditCardHolderInfo *CreditCardHolderInfo `json:"creditCardHolderInfo,omitempty"`
}

// SubscriptionInput creates a monthly subscription. A zero Value means
// SubscriptionValue.
type SubscriptionInput struct {
	CustomerID      string
	BillingType     string
	Value           float64
	CreditCard      *CreditCard
	HolderInfo      *CreditCardHolderInfo
	BeneficiaryUUID string
}

// Payment is a single charge, standalone or generated by a subscription.
type Payment struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	Subscription      string  `json:"subscription,omitempty"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
	Status            string  `json:"status"`
	ClientPaymentDate string  `json:"clientPaymentDate,omitempty"`
	InvoiceURL        string  `json:"invoiceUrl,omitempty"`
	BankSlipURL       string  `json:"bankSlipUrl,omitempty"`
}

// Paid reports whether the payment has settled.
func (p Payment) Paid() bool { return IsPaid(p.Status) }

// IsPaid reports whether status is a settled payment status.
func IsPaid(status string) bool { return status == "RECEIVED" || status == "CONFIRMED" }

// ChargeInput creates a one-off PIX or boleto charge.
type ChargeInput struct {
	CustomerID      string
	Value           float64
	Description     string
	BeneficiaryUUID string
}

// PixCharge is a PIX payment with its QR code.
type PixCharge struct {
	Payment
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
}

// SubscriptionStatus summarizes a subscription and its next pending charge.
type SubscriptionStatus struct {
	HasActiveSubscription bool          `json:"hasActiveSubscription"`
	Subscription          *Subscription `json:"subscription,omitempty"`
	NextPayment           *Payment      `json:"nextPayment,omitempty"`
	Status                string        `json:"status"`
}

type list[T any] struct {
	Data []T `json:"data"`
}

type chargeBody struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description"`
	ExternalReference string  `json:"externalReference,omitempty"`
}

// CreateCustomer validates and normalizes in, then registers it.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	phone := digits(in.Phone)
	body := Customer{
		Name:              strings.TrimSpace(in.Name),
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		CPFCNPJ:           digits(in.CPF),
		Phone:             phone,
		MobilePhone:       phone,
		PostalCode:        digits(in.PostalCode),
		Address:           strings.TrimSpace(in.Address),
		AddressNumber:     strings.TrimSpace(in.AddressNumber),
		Complement:        strings.TrimSpace(in.Complement),
		Province:          strings.TrimSpace(in.Province),
		ExternalReference: in.BeneficiaryUUID,
	}
	switch {
	case len(body.CPFCNPJ) != 11:
		return nil, &validation.Error{Field: "cpf", Message: "CPF deve ter 11 dígitos"}
	case len(phone) < 10:
		return nil, &validation.Error{Field: "phone", Message: "Telefone deve ter pelo menos 10 dígitos"}
	case !strings.Contains(body.Email, "@"):
		return nil, &validation.Error{Field: "email", Message: "Email inválido"}
	}

	var out Customer
	if err := c.do(ctx, "asaas.customers.create", http.MethodPost, "/customers", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindCustomerByCPF returns the first customer with the CPF, or nil.
func (c *Client) FindCustomerByCPF(ctx context.Context, cpf string) (*Customer, error) {
	return c.findCustomer(ctx, "cpfCnpj", digits(cpf))
}

// FindCustomerByEmail returns the first customer with the email, or nil.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	return c.findCustomer(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (c *Client) findCustomer(ctx context.Context, key, value string) (*Customer, error) {
	var out list[Customer]
	if err := c.do(ctx, "asaas.customers.find", http.MethodGet, "/customers", url.Values{key: {value}}, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, nil
	}
	return &out.Data[0], nil
}

// CreateSubscription opens a monthly subscription, first due tomorrow.
// Card data is only sent for credit-card subscriptions.
func (c *Client) CreateSubscription(ctx context.Context, in SubscriptionInput) (*Subscription, error) {
	value := in.Value
	if value <= 0 {
		value = SubscriptionValue
	}
	body := Subscription{
		Customer:          in.CustomerID,
		BillingType:       in.BillingType,
		Value:             value,
		NextDueDate:       c.now().Add(24 * time.Hour).UTC().Format(dateLayout),
		Cycle:             "MONTHLY",
		Description:       subscriptionDescription,
		ExternalReference: in.BeneficiaryUUID,
	}
	if in.BillingType == BillingCreditCard && in.CreditCard != nil && in.HolderInfo != nil {
		card := *in.CreditCard
		card.Number = strings.Join(strings.Fields(card.Number), "")
		holder := *in.HolderInfo
		holder.CPFCNPJ = digits(holder.CPFCNPJ)
		holder.PostalCode = digits(holder.PostalCode)
		holder.Phone = digits(holder.Phone)
		holder.MobilePhone = digits(holder.MobilePhone)
		body.CreditCard, body.CreditCardHolderInfo = &card, &holder
	}

	var out Subscription
	if err := c.do(ctx, "asaas.subscriptions.create", http.MethodPost, "/subscriptions", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSubscription fetches a subscription by id.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, "asaas.subscriptions.get", http.MethodGet, "/subscriptions/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelSubscription deletes a subscription.
func (c *Client) CancelSubscription(ctx context.Context, id string) error {
	return c.do(ctx, "asaas.subscriptions.cancel", http.MethodDelete, "/subscriptions/"+url.PathEscape(id), nil, nil, nil)
}

// ListSubscriptionPayments lists the charges generated by a subscription.
func (c *Client) ListSubscriptionPayments(ctx context.Context, subscriptionID string) ([]Payment, error) {
	var out list[Payment]
	if err := c.do(ctx, "asaas.payments.list", http.MethodGet, "/payments", url.Values{"subscription": {subscriptionID}}, nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return []Payment{}, nil
	}
	return out.Data, nil
}

// HasActiveSubscription reports whether the customer holds any ACTIVE
// subscription.
func (c *Client) HasActiveSubscription(ctx context.Context, customerID string) (bool, error) {
	var out list[Subscription]
	q := url.Values{"customer": {customerID}, "status": {"ACTIVE"}}
	if err := c.do(ctx, "asaas.subscriptions.list", http.MethodGet, "/subscriptions", q, nil, &out); err != nil {
		return false, err
	}
	return len(out.Data) > 0, nil
}

// CheckSubscriptionStatus resolves a subscription and its first pending
// charge. A blank id reports NO_SUBSCRIPTION without calling out.
func (c *Client) CheckSubscriptionStatus(ctx context.Context, subscriptionID string) (SubscriptionStatus, error) {
	if subscriptionID == "" {
		return SubscriptionStatus{Status: "NO_SUBSCRIPTION"}, nil
	}
	sub, err := c.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return SubscriptionStatus{Status: "ERROR"}, err
	}
	payments, err := c.ListSubscriptionPayments(ctx, sub.ID)
	if err != nil {
		return SubscriptionStatus{Status: "ERROR"}, err
	}
	st := SubscriptionStatus{
		HasActiveSubscription: sub.Status == "ACTIVE",
		Subscription:          sub,
		Status:                sub.Status,
	}
	for i := range payments {
		if payments[i].Status == "PENDING" {
			st.NextPayment = &payments[i]
			break
		}
	}
	return st, nil
}

// GetPayment fetches a payment by id.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, "asaas.payments.get", http.MethodGet, "/payments/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePixPayment creates a PIX charge due today and attaches its QR code.
func (c *Client) CreatePixPayment(ctx context.Context, in ChargeInput) (*PixCharge, error) {
	var p Payment
	body := chargeBody{
		Customer:          in.CustomerID,
		BillingType:       BillingPix,
		Value:             in.Value,
		DueDate:           c.now().UTC().Format(dateLayout),
		Description:       in.Description,
		ExternalReference: in.BeneficiaryUUID,
	}
	if err := c.do(ctx, "asaas.payments.pix", http.MethodPost, "/payments", nil, body, &p); err != nil {
		return nil, err
	}
	out := &PixCharge{Payment: p}
	var qr struct {
		EncodedImage string `json:"encodedImage"`
		Payload      string `json:"payload"`
	}
	if err := c.do(ctx, "asaas.payments.pixqr", http.MethodGet, "/payments/"+url.PathEscape(p.ID)+"/pixQrCode", nil, nil, &qr); err != nil {
		return nil, err
	}
	out.EncodedImage, out.Payload = qr.EncodedImage, qr.Payload
	return out, nil
}

// CreateBoletoPayment creates a boleto charge due in three days.
func (c *Client) CreateBoletoPayment(ctx context.Context, in ChargeInput) (*Payment, error) {
	var p Payment
	body := chargeBody{
		Customer:          in.CustomerID,
		BillingType:       BillingBoleto,
		Value:             in.Value,
		DueDate:           c.now().AddDate(0, 0, 3).UTC().Format(dateLayout),
		Description:       in.Description,
		ExternalReference: in.BeneficiaryUUID,
	}
	if err := c.do(ctx, "asaas.payments.boleto", http.MethodPost, "/payments", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
