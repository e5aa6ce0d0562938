package functions

import (
	"context"
	"net/http"
	"strings"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/services"
)

// ActionRequestConsultation is the single rapidoc action.
const ActionRequestConsultation = "request-consultation"

func (d *Dispatcher) rapidoc(ctx context.Context, inv Invocation) (int, Response) {
	if !d.ProviderConfigured {
		return fail(http.StatusInternalServerError, msgNoConfig)
	}
	caller, st, resp, authorized := authorize(inv, "Usuário não autenticado")
	if !authorized {
		return st, resp
	}
	req, valid := decode(inv.Body)
	if !valid {
		return fail(http.StatusBadRequest, msgInvalidRequest)
	}
	if req.Action != ActionRequestConsultation {
		return fail(http.StatusBadRequest, msgUnknownAction)
	}
	if strings.TrimSpace(req.ServiceType) == "" {
		return fail(http.StatusBadRequest, msgInvalidRequest)
	}
	svc, known := domain.ParseServiceType(req.ServiceType)
	if !known {
		return fail(http.StatusBadRequest, msgUnknownService)
	}

	profile := profileOf(caller)
	if req.UserProfile != nil {
		profile = *req.UserProfile
	}
	if profile.Name == "" {
		profile.Name = services.DefaultProfileName
	}

	res, err := d.Orchestrator.RequestConsultation(ctx, services.DirectRequest{
		UserID:        caller.UserID,
		ServiceType:   svc,
		Profile:       profile,
		Urgency:       req.Urgency,
		SpecialtyArea: req.SpecialtyArea,
	})
	if err != nil {
		return startError(caller.UserID, err)
	}
	if !res.Success {
		return fail(http.StatusBadGateway, res.Error)
	}
	return ok(res)
}
