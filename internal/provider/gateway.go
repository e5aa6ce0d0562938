package provider

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// isoMillis matches the millisecond ISO-8601 timestamps the upstream expects.
const isoMillis = "2006-01-02T15:04:05.000Z"

// Platform identifies this backend in upstream request metadata.
const Platform = "ailun_health"

// DefaultSpecialty is used for specialist requests without a specialty.
const DefaultSpecialty = "Clínica Geral"

// Profile is the patient block sent upstream.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Options carries the per-type knobs: Urgency applies to doctor requests,
// Specialty to specialist requests.
type Options struct {
	Urgency   string
	Specialty string
}

// ProfessionalInfo is the normalized professional snapshot.
type ProfessionalInfo struct {
	Name      string  `json:"name"`
	Specialty string  `json:"specialty"`
	Rating    float64 `json:"rating"`
}

// Result is the normalized outcome of a consultation request. On failure
// only Success=false and a user-safe Error are set.
type Result struct {
	Success           bool              `json:"success"`
	SessionID         string            `json:"sessionId,omitempty"`
	ConsultationURL   string            `json:"consultationUrl,omitempty"`
	EstimatedWaitTime int               `json:"estimatedWaitTime,omitempty"`
	ProfessionalInfo  *ProfessionalInfo `json:"professionalInfo,omitempty"`
	Message           string            `json:"message,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// ConsultationRequester is what the orchestrator needs from the gateway.
type ConsultationRequester interface {
	RequestConsultation(ctx context.Context, st domain.ServiceType, p Profile, o Options) (Result, error)
}

// Gateway maps service types onto the four upstream consultation endpoints.
type Gateway struct {
	client *Client
	now    func() time.Time
}

// NewGateway returns a Gateway over c.
func NewGateway(c *Client) *Gateway { return &Gateway{client: c, now: time.Now} }

type route struct {
	endpoint      string
	path          string
	serviceHeader string
	body          serviceBlock
	sessionPrefix string

	waitDefault      int
	nameDefault      string
	specialty        string
	ratingDefault    float64
	professional     func(*upstreamConsultation) *upstreamProfessional
	successMessage   string
	unavailableError string
}

type serviceBlock struct {
	Type      string `json:"type"`
	Specialty string `json:"specialty"`
	Urgency   string `json:"urgency"`
}

type upstreamProfessional struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

type upstreamConsultation struct {
	SessionID         string                `json:"session_id"`
	ConsultationURL   string                `json:"consultation_url"`
	EstimatedWaitTime int                   `json:"estimated_wait_time"`
	Professional      *upstreamProfessional `json:"professional"`
	Specialist        *upstreamProfessional `json:"specialist"`
	Psychologist      *upstreamProfessional `json:"psychologist"`
	Nutritionist      *upstreamProfessional `json:"nutritionist"`
}

var whitespace = regexp.MustCompile(`\s+`)

// SpecialtySlug lowercases s and joins whitespace runs with underscores.
func SpecialtySlug(s string) string {
	return whitespace.ReplaceAllString(strings.ToLower(s), "_")
}

func routeFor(st domain.ServiceType, o Options) (route, bool) {
	switch st {
	case domain.ServiceDoctor:
		urgency := o.Urgency
		if urgency == "" {
			urgency = "high"
		}
		return route{
			endpoint:      "consultation.doctor",
			path:          "/api/v1/consultations/immediate",
			serviceHeader: "general_medicine",
			body:          serviceBlock{Type: "immediate_consultation", Specialty: "general_medicine", Urgency: urgency},
			sessionPrefix: "DOC",
			waitDefault:   3,
			nameDefault:   "Médico Disponível",
			specialty:     "Clínica Geral",
			ratingDefault: 4.8,
			professional:  func(u *upstreamConsultation) *upstreamProfessional { return u.Professional },

			successMessage:   "Conexão estabelecida com sucesso",
			unavailableError: "Não foi possível conectar com o serviço médico no momento. Tente novamente em alguns minutos.",
		}, true
	case domain.ServiceSpecialist:
		area := strings.TrimSpace(o.Specialty)
		if area == "" {
			area = DefaultSpecialty
		}
		return route{
			endpoint:      "consultation.specialist",
			path:          "/api/v1/consultations/specialist",
			serviceHeader: "specialist",
			body:          serviceBlock{Type: "specialist_consultation", Specialty: SpecialtySlug(area), Urgency: "medium"},
			sessionPrefix: "SPEC",
			waitDefault:   10,
			nameDefault:   "Especialista em " + area,
			specialty:     area,
			ratingDefault: 4.9,
			professional:  func(u *upstreamConsultation) *upstreamProfessional { return u.Specialist },

			successMessage:   "Agendamento confirmado com especialista em " + area,
			unavailableError: fmt.Sprintf("Especialista em %s não disponível no momento. Tente novamente mais tarde.", area),
		}, true
	case domain.ServicePsychologist:
		return route{
			endpoint:      "consultation.psychologist",
			path:          "/api/v1/consultations/psychology",
			serviceHeader: "psychology",
			body:          serviceBlock{Type: "psychology_consultation", Specialty: "clinical_psychology", Urgency: "medium"},
			sessionPrefix: "PSY",
			waitDefault:   8,
			nameDefault:   "Psicólogo Qualificado",
			specialty:     "Psicologia Clínica",
			ratingDefault: 4.9,
			professional:  func(u *upstreamConsultation) *upstreamProfessional { return u.Psychologist },

			successMessage:   "Sessão de psicologia agendada com sucesso",
			unavailableError: "Serviço de psicologia temporariamente indisponível. Nossa equipe está trabalhando para restabelecer o atendimento.",
		}, true
	case domain.ServiceNutritionist:
		return route{
			endpoint:      "consultation.nutritionist",
			path:          "/api/v1/consultations/nutrition",
			serviceHeader: "nutrition",
			body:          serviceBlock{Type: "nutrition_consultation", Specialty: "clinical_nutrition", Urgency: "low"},
			sessionPrefix: "NUT",
			waitDefault:   15,
			nameDefault:   "Nutricionista Certificado",
			specialty:     "Nutrição Clínica",
			ratingDefault: 4.8,
			professional:  func(u *upstreamConsultation) *upstreamProfessional { return u.Nutritionist },

			successMessage:   "Consulta nutricional confirmada",
			unavailableError: "Serviço de nutrição indisponível. Tente novamente em alguns minutos.",
		}, true
	}
	return route{}, false
}

// RequestConsultation asks the upstream for a live session. An unknown
// service type is a *validation.Error and no call is made. Upstream
// failures are not Go errors: they come back as Result{Success:false}
// with a localized message, the upstream body having been logged.
func (g *Gateway) RequestConsultation(ctx context.Context, st domain.ServiceType, p Profile, o Options) (Result, error) {
	rt, ok := routeFor(st, o)
	if !ok {
		return Result{}, &validation.Error{Field: "serviceType", Message: "Tipo de serviço não reconhecido"}
	}

	payload := map[string]any{
		"patient": p,
		"service": rt.body,
		"metadata": map[string]string{
			"platform":  Platform,
			"timestamp": g.now().UTC().Format(isoMillis),
		},
	}

	var up upstreamConsultation
	err := g.client.do(ctx, request{
		endpoint: rt.endpoint,
		method:   http.MethodPost,
		path:     rt.path,
		body:     payload,
		headers:  map[string]string{"X-Service-Type": rt.serviceHeader},
	}, &up)
	if err != nil {
		log.Warn().Err(err).Str("service_type", string(st)).Msg("consultation request failed")
		return Result{Success: false, Error: rt.unavailableError}, nil
	}

	res := Result{
		Success:           true,
		SessionID:         up.SessionID,
		ConsultationURL:   up.ConsultationURL,
		EstimatedWaitTime: up.EstimatedWaitTime,
		ProfessionalInfo: &ProfessionalInfo{
			Name:      rt.nameDefault,
			Specialty: rt.specialty,
			Rating:    rt.ratingDefault,
		},
		Message: rt.successMessage,
	}
	if res.SessionID == "" {
		res.SessionID = fmt.Sprintf("%s_%d", rt.sessionPrefix, g.now().UnixMilli())
	}
	if res.EstimatedWaitTime == 0 {
		res.EstimatedWaitTime = rt.waitDefault
	}
	if prof := rt.professional(&up); prof != nil {
		if prof.Name != "" {
			res.ProfessionalInfo.Name = prof.Name
		}
		if prof.Rating != 0 {
			res.ProfessionalInfo.Rating = prof.Rating
		}
	}
	return res, nil
}
