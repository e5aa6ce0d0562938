// Appointment HTTP handlers.
//
//   - POST   /appointments              (book a slot)
//   - POST   /appointments/specialist   (book with referral auto-resolution)
//   - GET    /appointments              (?beneficiary=uuid, newest first)
//   - GET    /appointments/{id}
//   - DELETE /appointments/{id}
//
// Every route needs a bearer token and only reaches the caller's own
// beneficiaries; anything else looks like a missing appointment.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/telemed-orchestrator/internal/provider"
)

// ScheduleSpecialistRequest is the JSON payload for booking a specialist.
type ScheduleSpecialistRequest struct {
	// BeneficiaryUUID defaults to the caller's primary beneficiary.
	BeneficiaryUUID  string `json:"beneficiaryUuid" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	SpecialtyUUID    string `json:"specialtyUuid" example:"a3bb189e-8bf9-4888-9912-ace4e6543002"`
	AvailabilityUUID string `json:"availabilityUuid" example:"f47ac10b-58cc-4372-a567-0e02b2c3d479"`
	// ReferralUUID is optional; an active referral for the specialty is looked up when empty.
	ReferralUUID string `json:"referralUuid,omitempty"`
}

// CreateAppointment godoc
// @ID          createAppointment
// @Summary     Book an appointment
// @Tags        Appointments
// @Accept      json
// @Produce     json
//
// @Param       Authorization  header  string                       true  "Bearer token"
// @Param       body           body    provider.AppointmentRequest  true  "Booking"
//
// @Success     201  {object}  provider.AppointmentCreated
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid booking"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Beneficiary not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream error"
// @Router      /appointments [post]
func (h *Handlers) CreateAppointment(c *gin.Context) {
	if h.appt == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req provider.AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Dados da solicitação inválidos")
		return
	}
	if req.BeneficiaryUUID = h.ownBeneficiary(c, uid, req.BeneficiaryUUID); req.BeneficiaryUUID == "" {
		return
	}
	out, err := h.appt.Create(c.Request.Context(), req)
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao criar agendamento")
		return
	}
	ok(c, http.StatusCreated, out)
}

// ScheduleSpecialist godoc
// @ID          scheduleSpecialist
// @Summary     Book a specialist
// @Description Books with additional payment approved. Without referralUuid, an active referral for the specialty is attached when one exists.
// @Tags        Appointments
// @Accept      json
// @Produce     json
//
// @Param       Authorization  header  string                              true  "Bearer token"
// @Param       body           body    handlers.ScheduleSpecialistRequest  true  "Booking"
//
// @Success     201  {object}  provider.AppointmentCreated
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid booking"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Beneficiary not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream error"
// @Router      /appointments/specialist [post]
func (h *Handlers) ScheduleSpecialist(c *gin.Context) {
	if h.appt == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req ScheduleSpecialistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Dados da solicitação inválidos")
		return
	}
	if req.BeneficiaryUUID = h.ownBeneficiary(c, uid, req.BeneficiaryUUID); req.BeneficiaryUUID == "" {
		return
	}
	out, err := h.appt.ScheduleSpecialist(c.Request.Context(), req.BeneficiaryUUID, req.SpecialtyUUID, req.AvailabilityUUID, req.ReferralUUID)
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao criar agendamento")
		return
	}
	ok(c, http.StatusCreated, out)
}

// ListAppointments godoc
// @ID          listAppointments
// @Summary     List a beneficiary's appointments
// @Tags        Appointments
// @Produce     json
//
// @Param       Authorization  header  string  true   "Bearer token"
// @Param       beneficiary    query   string  false  "Beneficiary UUID, defaults to the caller's primary"  format(uuid)
//
// @Success     200  {array}   provider.Appointment
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid beneficiary UUID"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Beneficiary not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream error"
// @Router      /appointments [get]
func (h *Handlers) ListAppointments(c *gin.Context) {
	if h.appt == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	beneficiary := h.ownBeneficiary(c, uid, c.Query("beneficiary"))
	if beneficiary == "" {
		return
	}
	list, err := h.appt.ListByBeneficiary(c.Request.Context(), beneficiary)
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao buscar agendamentos")
		return
	}
	ok(c, http.StatusOK, list)
}

// GetAppointment godoc
// @ID          getAppointment
// @Summary     Get an appointment
// @Tags        Appointments
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       id             path    string  true  "Appointment ID"
//
// @Success     200  {object}  provider.Appointment
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream error"
// @Router      /appointments/{id} [get]
func (h *Handlers) GetAppointment(c *gin.Context) {
	if h.appt == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	ap, err := h.appt.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao buscar agendamento")
		return
	}
	if !h.ownsRecord(c, uid, ap.BeneficiaryUUID, "Agendamento não encontrado") {
		return
	}
	ok(c, http.StatusOK, ap)
}

// CancelAppointment godoc
// @ID          cancelAppointment
// @Summary     Cancel an appointment
// @Tags        Appointments
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       id             path    string  true  "Appointment ID"
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream error"
// @Router      /appointments/{id} [delete]
func (h *Handlers) CancelAppointment(c *gin.Context) {
	if h.appt == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	ctx, id := c.Request.Context(), c.Param("id")
	ap, err := h.appt.Get(ctx, id)
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao buscar agendamento")
		return
	}
	if !h.ownsRecord(c, uid, ap.BeneficiaryUUID, "Agendamento não encontrado") {
		return
	}
	if err := h.appt.Cancel(ctx, id); err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao cancelar agendamento")
		return
	}
	noContent(c)
}
