// Reference-data HTTP handlers.
//
// This file exposes read-only endpoints over the provider's catalog:
//   - GET /specialties              (list or search, cached)
//   - GET /specialties/{uuid}
//   - GET /referrals                (active referrals, optionally per beneficiary)
//   - GET /referrals/{uuid}
//   - GET /availability             (live slots in a dd/MM/yyyy window)
//   - GET /availability/next        (first open slots of the coming week)
//
// All of them need a bearer token. Referrals and availability are scoped to
// the caller's beneficiaries, defaulting to the primary one.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/telemed-orchestrator/internal/lookup"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/sysutil"
	"github.com/tbourn/telemed-orchestrator/internal/utils"
)

// maxSlotLimit bounds ?limit on /availability/next.
const maxSlotLimit = 50

// ListSpecialties godoc
// @ID          listSpecialties
// @Summary     List specialties
// @Description Returns the provider's specialties from a 5-minute cache. With search, filters by a case-insensitive match on name or description.
// @Tags        Catalog
// @Produce     json
//
// @Param       search   query  string  false "Name/description filter"  example(cardio)
// @Param       refresh  query  bool    false "Bypass the cache"
//
// @Success     200  {array}   provider.Specialty
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream error"
// @Router      /specialties [get]
func (h *Handlers) ListSpecialties(c *gin.Context) {
	if h.spec == nil {
		unavailable(c)
		return
	}
	if requireUser(c) == "" {
		return
	}
	ctx := c.Request.Context()
	if term := strings.TrimSpace(c.Query("search")); term != "" {
		out, err := h.spec.Search(ctx, term)
		if err != nil {
			failErr(c, err, ErrCodeLookupFailed, "Erro ao carregar especialidades")
			return
		}
		ok(c, http.StatusOK, out)
		return
	}
	out, err := h.spec.List(ctx, sysutil.IsTruthy(c.Query("refresh")))
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao carregar especialidades")
		return
	}
	ok(c, http.StatusOK, out)
}

// GetSpecialty godoc
// @ID          getSpecialty
// @Summary     Get a specialty
// @Tags        Catalog
// @Produce     json
//
// @Param       uuid  path  string  true  "Specialty UUID"  format(uuid)
//
// @Success     200  {object}  provider.Specialty
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream error"
// @Router      /specialties/{uuid} [get]
func (h *Handlers) GetSpecialty(c *gin.Context) {
	if h.spec == nil {
		unavailable(c)
		return
	}
	if requireUser(c) == "" {
		return
	}
	sp, err := h.spec.ByUUID(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao carregar especialidades")
		return
	}
	ok(c, http.StatusOK, sp)
}

// ListReferrals godoc
// @ID          listReferrals
// @Summary     List my active referrals
// @Description Returns one of the caller's beneficiaries' active referrals, newest referral date first, from a 2-minute cache.
// @Tags        Catalog
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer token"
// @Param       beneficiary    query   string  false "Beneficiary UUID, defaults to the caller's primary"  format(uuid)
// @Param       refresh        query   bool    false "Bypass the cache"
//
// @Success     200  {array}   provider.Referral
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid beneficiary UUID"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream error"
// @Router      /referrals [get]
func (h *Handlers) ListReferrals(c *gin.Context) {
	if h.ref == nil {
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
	ctx := c.Request.Context()
	if sysutil.IsTruthy(c.Query("refresh")) {
		if _, err := h.ref.List(ctx, true); err != nil {
			failErr(c, err, ErrCodeLookupFailed, "Erro ao carregar encaminhamentos")
			return
		}
	}
	out, err := h.ref.ByBeneficiary(ctx, beneficiary)
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao carregar encaminhamentos")
		return
	}
	ok(c, http.StatusOK, out)
}

// GetReferral godoc
// @ID          getReferral
// @Summary     Get an active referral
// @Tags        Catalog
// @Produce     json
//
// @Param       uuid  path  string  true  "Referral UUID"  format(uuid)
//
// @Success     200  {object}  provider.Referral
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid UUID"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /referrals/{uuid} [get]
func (h *Handlers) GetReferral(c *gin.Context) {
	if h.ref == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	ref, err := h.ref.ByUUID(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao carregar encaminhamentos")
		return
	}
	if !h.ownsRecord(c, uid, ref.BeneficiaryUUID, "Encaminhamento não encontrado") {
		return
	}
	ok(c, http.StatusOK, ref)
}

// GetAvailability godoc
// @ID          getAvailability
// @Summary     Query specialty availability
// @Description Live query, never cached. Slots are ordered by date, then time.
// @Tags        Catalog
// @Produce     json
//
// @Param       specialtyUuid    query  string  true  "Specialty UUID"     format(uuid)
// @Param       beneficiaryUuid  query  string  false "Beneficiary UUID, defaults to the caller's primary"  format(uuid)
// @Param       dateInitial      query  string  true  "First day (dd/MM/yyyy)"  example(10/01/2025)
// @Param       dateFinal        query  string  true  "Last day (dd/MM/yyyy)"   example(17/01/2025)
//
// @Success     200  {array}   provider.AvailabilitySlot
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid query"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream error"
// @Router      /availability [get]
func (h *Handlers) GetAvailability(c *gin.Context) {
	if h.avail == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	beneficiary := h.ownBeneficiary(c, uid, c.Query("beneficiaryUuid"))
	if beneficiary == "" {
		return
	}
	slots, err := h.avail.Get(c.Request.Context(), provider.AvailabilityQuery{
		SpecialtyUUID:   c.Query("specialtyUuid"),
		BeneficiaryUUID: beneficiary,
		DateInitial:     c.Query("dateInitial"),
		DateFinal:       c.Query("dateFinal"),
	})
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao consultar disponibilidade")
		return
	}
	ok(c, http.StatusOK, slots)
}

// NextAvailability godoc
// @ID          nextAvailability
// @Summary     Next open slots
// @Description Open slots from today to a week from today, at most limit of them.
// @Tags        Catalog
// @Produce     json
//
// @Param       specialtyUuid    query  string  true   "Specialty UUID"    format(uuid)
// @Param       beneficiaryUuid  query  string  false  "Beneficiary UUID, defaults to the caller's primary"  format(uuid)
// @Param       limit            query  int     false  "Max slots"  minimum(1) maximum(50) default(10)
//
// @Success     200  {array}   provider.AvailabilitySlot
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid query"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /availability/next [get]
func (h *Handlers) NextAvailability(c *gin.Context) {
	if h.avail == nil {
		unavailable(c)
		return
	}
	uid := requireUser(c)
	if uid == "" {
		return
	}
	beneficiary := h.ownBeneficiary(c, uid, c.Query("beneficiaryUuid"))
	if beneficiary == "" {
		return
	}
	limit := utils.QueryLimit(c.Query("limit"), lookup.DefaultSlotLimit, maxSlotLimit)
	slots, err := h.avail.NextAvailable(c.Request.Context(), c.Query("specialtyUuid"), beneficiary, limit)
	if err != nil {
		failErr(c, err, ErrCodeLookupFailed, "Erro ao consultar disponibilidade")
		return
	}
	ok(c, http.StatusOK, slots)
}
