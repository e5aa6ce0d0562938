package lookup

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// AppointmentSource is the upstream appointment API. *provider.Client
// satisfies it.
type AppointmentSource interface {
	CreateAppointment(ctx context.Context, in provider.AppointmentRequest) (provider.AppointmentCreated, error)
	ListAppointments(ctx context.Context, beneficiaryUUID string) ([]provider.Appointment, error)
	GetAppointment(ctx context.Context, id string) (*provider.Appointment, error)
	CancelAppointment(ctx context.Context, id string) error
}

// Appointments books and manages scheduled consultations.
type Appointments struct {
	src       AppointmentSource
	referrals *Referrals
}

// NewAppointments builds the service. referrals resolves the referral a
// specialist booking needs when the caller does not name one.
func NewAppointments(src AppointmentSource, referrals *Referrals) *Appointments {
	return &Appointments{src: src, referrals: referrals}
}

// Create books a slot.
func (a *Appointments) Create(ctx context.Context, in provider.AppointmentRequest) (provider.AppointmentCreated, error) {
	if err := validateAppointment(in); err != nil {
		return provider.AppointmentCreated{}, err
	}
	out, err := a.src.CreateAppointment(ctx, in)
	if err != nil {
		return provider.AppointmentCreated{}, upstream("appointments.create", "Erro ao criar agendamento", err)
	}
	return out, nil
}

// ListByBeneficiary returns a beneficiary's appointments, most recent first.
func (a *Appointments) ListByBeneficiary(ctx context.Context, beneficiaryUUID string) ([]provider.Appointment, error) {
	if err := validation.UUID("beneficiaryUuid", beneficiaryUUID, "UUID do beneficiário inválido"); err != nil {
		return nil, err
	}
	list, err := a.src.ListAppointments(ctx, beneficiaryUUID)
	if err != nil {
		return nil, upstream("appointments.list", "Erro ao buscar agendamentos", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		di, _ := validation.ParseDate(list[i].Date)
		dj, _ := validation.ParseDate(list[j].Date)
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return list[i].Time > list[j].Time
	})
	return list, nil
}

// Get fetches one appointment.
func (a *Appointments) Get(ctx context.Context, id string) (*provider.Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &validation.Error{Field: "appointmentId", Message: "ID do agendamento inválido"}
	}
	ap, err := a.src.GetAppointment(ctx, id)
	if err != nil {
		return nil, upstream("appointments.get", "Agendamento não encontrado", err)
	}
	return ap, nil
}

// Cancel cancels one appointment.
func (a *Appointments) Cancel(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &validation.Error{Field: "appointmentId", Message: "ID do agendamento inválido"}
	}
	if err := a.src.CancelAppointment(ctx, id); err != nil {
		return upstream("appointments.cancel", "Erro ao cancelar agendamento", err)
	}
	return nil
}

// ScheduleSpecialist books a specialist slot with additional payment
// approved. Without referralUUID it looks for an active referral for the
// specialty; if the referral lookup itself fails the booking is refused,
// and if none exists the booking proceeds without one.
func (a *Appointments) ScheduleSpecialist(ctx context.Context, beneficiaryUUID, specialtyUUID, availabilityUUID, referralUUID string) (provider.AppointmentCreated, error) {
	if referralUUID == "" && a.referrals != nil {
		refs, err := a.referrals.ByBeneficiary(ctx, beneficiaryUUID)
		if err != nil {
			log.Warn().Err(err).Str("beneficiary", beneficiaryUUID).Msg("referral check failed")
			return provider.AppointmentCreated{}, &Error{Message: "Encaminhamento médico necessário para esta especialidade", Err: err}
		}
		for _, ref := range refs {
			if ref.SpecialtyUUID == specialtyUUID && ref.Status == "active" {
				referralUUID = ref.UUID
				break
			}
		}
	}
	return a.Create(ctx, provider.AppointmentRequest{
		BeneficiaryUUID:                beneficiaryUUID,
		AvailabilityUUID:               availabilityUUID,
		SpecialtyUUID:                  specialtyUUID,
		BeneficiaryMedicalReferralUUID: referralUUID,
		ApproveAdditionalPayment:       true,
	})
}

func validateAppointment(in provider.AppointmentRequest) error {
	if err := validation.UUID("beneficiaryUuid", in.BeneficiaryUUID, "UUID do beneficiário inválido"); err != nil {
		return err
	}
	if err := validation.UUID("availabilityUuid", in.AvailabilityUUID, "UUID da disponibilidade inválido"); err != nil {
		return err
	}
	if err := validation.UUID("specialtyUuid", in.SpecialtyUUID, "UUID da especialidade inválido"); err != nil {
		return err
	}
	return nil
}
