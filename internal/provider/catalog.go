package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when the upstream has no such resource.
var ErrNotFound = errors.New("provider resource not found")

// Specialty is an upstream medical specialty.
type Specialty struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// AvailabilitySlot is one bookable time for a specialty. Date is dd/MM/yyyy
// and Time is HH:mm.
type AvailabilitySlot struct {
	UUID             string `json:"uuid"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	Available        bool   `json:"available"`
	SpecialtyUUID    string `json:"specialtyUuid"`
	ProfessionalName string `json:"professionalName,omitempty"`
}

// AvailabilityQuery is the window sent to /specialty-availability.
type AvailabilityQuery struct {
	SpecialtyUUID   string `json:"specialtyUuid"`
	BeneficiaryUUID string `json:"beneficiaryUuid"`
	DateInitial     string `json:"dateInitial"`
	DateFinal       string `json:"dateFinal"`
}

// Referral authorizes a beneficiary to book a specialist directly.
type Referral struct {
	UUID            string `json:"uuid"`
	BeneficiaryUUID string `json:"beneficiaryUuid"`
	SpecialtyUUID   string `json:"specialtyUuid"`
	SpecialtyName   string `json:"specialtyName"`
	ReferralDate    string `json:"referralDate"`
	ExpirationDate  string `json:"expirationDate,omitempty"`
	Description     string `json:"description,omitempty"`
	Status          string `json:"status"`
	Active          bool   `json:"active"`
}

// Appointment is a scheduled consultation.
type Appointment struct {
	UUID                           string `json:"uuid"`
	BeneficiaryUUID                string `json:"beneficiaryUuid"`
	SpecialtyUUID                  string `json:"specialtyUuid"`
	AvailabilityUUID               string `json:"availabilityUuid,omitempty"`
	BeneficiaryMedicalReferralUUID string `json:"beneficiaryMedicalReferralUuid,omitempty"`
	Date                           string `json:"date"`
	Time                           string `json:"time"`
	Status                         string `json:"status"`
	Doctor                         string `json:"doctor,omitempty"`
	ApproveAdditionalPayment       bool   `json:"approveAdditionalPayment,omitempty"`
}

// AppointmentRequest is the body of POST /appointments.
type AppointmentRequest struct {
	BeneficiaryUUID                string `json:"beneficiaryUuid"`
	AvailabilityUUID               string `json:"availabilityUuid"`
	SpecialtyUUID                  string `json:"specialtyUuid"`
	ApproveAdditionalPayment       bool   `json:"approveAdditionalPayment,omitempty"`
	BeneficiaryMedicalReferralUUID string `json:"beneficiaryMedicalReferralUuid,omitempty"`
}

// AppointmentCreated is the upstream answer to a booking.
type AppointmentCreated struct {
	Appointment    *Appointment `json:"appointment,omitempty"`
	AppointmentURL string       `json:"appointmentUrl,omitempty"`
}

// BeneficiaryInput registers a patient with the provider.
type BeneficiaryInput struct {
	Name        string `json:"name"`
	CPF         string `json:"cpf"`
	BirthDate   string `json:"birth_date"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	ServiceType string `json:"service_type"`
}

// BeneficiaryRecord is the provider's view of a registered patient.
type BeneficiaryRecord struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	CPF      string `json:"cpf"`
	Email    string `json:"email,omitempty"`
	IsActive bool   `json:"isActive"`
}

// envelope is the upstream's list/detail wrapper. Lists arrive under data or
// under a resource-named key depending on the endpoint version.
type envelope struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	Data           json.RawMessage `json:"data"`
	Specialties    json.RawMessage `json:"specialties"`
	Availability   json.RawMessage `json:"availability"`
	Referrals      json.RawMessage `json:"referrals"`
	Appointments   json.RawMessage `json:"appointments"`
	Appointment    *Appointment    `json:"appointment"`
	AppointmentURL string          `json:"appointmentUrl"`
	URL            string          `json:"url"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// pickList decodes the first present payload among candidates.
func pickList[T any](candidates ...json.RawMessage) ([]T, error) {
	for _, raw := range candidates {
		if !present(raw) {
			continue
		}
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return []T{}, nil
}

func (c *Client) getEnvelope(ctx context.Context, endpoint, path string, q url.Values) (envelope, error) {
	var env envelope
	if err := c.do(ctx, request{endpoint: endpoint, method: http.MethodGet, path: path, query: q}, &env); err != nil {
		return env, err
	}
	if !env.Success {
		log.Warn().Str("endpoint", endpoint).Str("message", env.Message).Msg("provider envelope reported failure")
		return env, fmt.Errorf("%s: %w", endpoint, ErrUnsuccessful)
	}
	return env, nil
}

// ListSpecialties returns every specialty the provider offers.
func (c *Client) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	env, err := c.getEnvelope(ctx, "specialties", "/specialties", nil)
	if err != nil {
		return nil, err
	}
	return pickList[Specialty](env.Data, env.Specialties)
}

// ListReferrals returns every medical referral visible to this client.
func (c *Client) ListReferrals(ctx context.Context) ([]Referral, error) {
	env, err := c.getEnvelope(ctx, "referrals", "/beneficiary-medical-referrals", nil)
	if err != nil {
		return nil, err
	}
	return pickList[Referral](env.Data, env.Referrals)
}

// ListAvailability returns the slots for q as delivered (unsorted).
func (c *Client) ListAvailability(ctx context.Context, q AvailabilityQuery) ([]AvailabilitySlot, error) {
	v := url.Values{}
	v.Set("specialtyUuid", q.SpecialtyUUID)
	v.Set("dateInitial", q.DateInitial)
	v.Set("dateFinal", q.DateFinal)
	v.Set("beneficiaryUuid", q.BeneficiaryUUID)
	env, err := c.getEnvelope(ctx, "availability", "/specialty-availability", v)
	if err != nil {
		return nil, err
	}
	return pickList[AvailabilitySlot](env.Data, env.Availability)
}

// CreateAppointment books a slot.
func (c *Client) CreateAppointment(ctx context.Context, in AppointmentRequest) (AppointmentCreated, error) {
	var env envelope
	if err := c.do(ctx, request{endpoint: "appointments.create", method: http.MethodPost, path: "/appointments", body: in}, &env); err != nil {
		return AppointmentCreated{}, err
	}
	if !env.Success {
		log.Warn().Str("message", env.Message).Msg("appointment rejected by provider")
		return AppointmentCreated{}, fmt.Errorf("appointments.create: %w", ErrUnsuccessful)
	}
	u := env.AppointmentURL
	if u == "" {
		u = env.URL
	}
	return AppointmentCreated{Appointment: env.Appointment, AppointmentURL: u}, nil
}

// ListAppointments returns a beneficiary's appointments as delivered.
func (c *Client) ListAppointments(ctx context.Context, beneficiaryUUID string) ([]Appointment, error) {
	v := url.Values{}
	v.Set("beneficiaryUuid", beneficiaryUUID)
	env, err := c.getEnvelope(ctx, "appointments.list", "/appointments", v)
	if err != nil {
		return nil, err
	}
	return pickList[Appointment](env.Data, env.Appointments)
}

// GetAppointment fetches one appointment; a successful envelope without an
// appointment is ErrNotFound.
func (c *Client) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	env, err := c.getEnvelope(ctx, "appointments.get", "/appointments/"+url.PathEscape(id), nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if env.Appointment == nil {
		return nil, ErrNotFound
	}
	return env.Appointment, nil
}

// CancelAppointment deletes an appointment upstream.
func (c *Client) CancelAppointment(ctx context.Context, id string) error {
	var env envelope
	if err := c.do(ctx, request{endpoint: "appointments.cancel", method: http.MethodDelete, path: "/appointments/" + url.PathEscape(id)}, &env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("appointments.cancel: %w", ErrUnsuccessful)
	}
	return nil
}

// CreateBeneficiary registers a patient and returns the provider record.
func (c *Client) CreateBeneficiary(ctx context.Context, in BeneficiaryInput) (BeneficiaryRecord, error) {
	var out BeneficiaryRecord
	if err := c.do(ctx, request{endpoint: "beneficiaries.create", method: http.MethodPost, path: "/beneficiaries", body: in}, &out); err != nil {
		return BeneficiaryRecord{}, err
	}
	if out.UUID == "" {
		return BeneficiaryRecord{}, fmt.Errorf("beneficiaries.create: %w", ErrUnsuccessful)
	}
	return out, nil
}
