package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/telemed-orchestrator/internal/auth"
	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/functions"
	"github.com/tbourn/telemed-orchestrator/internal/http/middleware"
	"github.com/tbourn/telemed-orchestrator/internal/lookup"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/services"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

const testSecret = "handler-secret"

// ---------- stubs ----------

type stubInvoker struct {
	mu     sync.Mutex
	calls  int
	last   functions.Invocation
	status int
	resp   functions.Response
}

func (s *stubInvoker) Invoke(_ context.Context, inv functions.Invocation) (int, functions.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = inv
	return s.status, s.resp
}

type memIdem struct {
	mu   sync.Mutex
	recs map[string]*domain.Idempotency
}

func newMemIdem() *memIdem { return &memIdem{recs: map[string]*domain.Idempotency{}} }

func (m *memIdem) Get(_ context.Context, userID, scope, key string, _ time.Time) (*domain.Idempotency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[userID+"|"+scope+"|"+key], nil
}

func (m *memIdem) Save(_ context.Context, userID, scope, key, requestHash string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[userID+"|"+scope+"|"+key] = &domain.Idempotency{UserID: userID, Scope: scope, Key: key, RequestHash: requestHash, Status: status, Response: body}
	return nil
}

func (m *memIdem) lookup(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
	rec, err := m.Get(ctx, userID, scope, key, now)
	return rec != nil, err
}

type stubSpecialties struct {
	list  []provider.Specialty
	err   error
	force bool
	term  string
}

func (s *stubSpecialties) List(_ context.Context, force bool) ([]provider.Specialty, error) {
	s.force = force
	return s.list, s.err
}
func (s *stubSpecialties) ByUUID(_ context.Context, uuid string) (*provider.Specialty, error) {
	for i := range s.list {
		if s.list[i].UUID == uuid {
			return &s.list[i], nil
		}
	}
	return nil, &lookup.Error{Message: "Especialidade não encontrada", Err: lookup.ErrNotFound}
}
func (s *stubSpecialties) Search(_ context.Context, term string) ([]provider.Specialty, error) {
	s.term = term
	return s.list[:1], s.err
}

type stubAvailability struct {
	q     provider.AvailabilityQuery
	limit int
	err   error
}

func (s *stubAvailability) Get(_ context.Context, q provider.AvailabilityQuery) ([]provider.AvailabilitySlot, error) {
	s.q = q
	if s.err != nil {
		return nil, s.err
	}
	return []provider.AvailabilitySlot{{UUID: "slot-1", Date: q.DateInitial, Time: "09:00", Available: true}}, nil
}
func (s *stubAvailability) NextAvailable(_ context.Context, _, _ string, limit int) ([]provider.AvailabilitySlot, error) {
	s.limit = limit
	return []provider.AvailabilitySlot{}, s.err
}

type stubAppointments struct {
	created   provider.AppointmentRequest
	listed    string
	cancelled string
	err       error
	referral  string
	owners    map[string]string // appointment id -> beneficiary uuid
}

func (s *stubAppointments) Create(_ context.Context, in provider.AppointmentRequest) (provider.AppointmentCreated, error) {
	if s.err != nil {
		return provider.AppointmentCreated{}, s.err
	}
	s.created = in
	return provider.AppointmentCreated{AppointmentURL: "https://appt/" + in.AvailabilityUUID}, nil
}
func (s *stubAppointments) ListByBeneficiary(_ context.Context, beneficiaryUUID string) ([]provider.Appointment, error) {
	s.listed = beneficiaryUUID
	return []provider.Appointment{{UUID: "a1", BeneficiaryUUID: beneficiaryUUID}}, s.err
}
func (s *stubAppointments) Get(_ context.Context, id string) (*provider.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Appointment{UUID: id, BeneficiaryUUID: s.owners[id]}, nil
}
func (s *stubAppointments) Cancel(_ context.Context, id string) error {
	s.cancelled = id
	return s.err
}
func (s *stubAppointments) ScheduleSpecialist(_ context.Context, _, _, _, referralUUID string) (provider.AppointmentCreated, error) {
	s.referral = referralUUID
	return provider.AppointmentCreated{AppointmentURL: "https://appt/specialist"}, s.err
}

type stubReferrals struct {
	list   []provider.Referral
	forced bool
}

func (s *stubReferrals) List(_ context.Context, force bool) ([]provider.Referral, error) {
	s.forced = force
	return s.list, nil
}
func (s *stubReferrals) ByBeneficiary(_ context.Context, beneficiaryUUID string) ([]provider.Referral, error) {
	out := []provider.Referral{}
	for _, r := range s.list {
		if r.BeneficiaryUUID == beneficiaryUUID {
			out = append(out, r)
		}
	}
	return out, nil
}
func (s *stubReferrals) ByUUID(_ context.Context, uuid string) (*provider.Referral, error) {
	for i := range s.list {
		if s.list[i].UUID == uuid {
			return &s.list[i], nil
		}
	}
	return nil, &lookup.Error{Message: "Encaminhamento não encontrado", Err: lookup.ErrNotFound}
}

// Beneficiary fixtures: benAna belongs to u-1, benBia to u-2.
const (
	benAna = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	benBia = "9b2e1d3c-5a4f-4e8b-9c7d-2f1a0b3c4d5e"
)

type stubBeneficiaries struct {
	status *services.BeneficiaryStatus
	owners map[string]string // beneficiary uuid -> user id
}

func ownedBeneficiaries() stubBeneficiaries {
	return stubBeneficiaries{owners: map[string]string{benAna: "u-1", benBia: "u-2"}}
}

func (s stubBeneficiaries) CheckActive(_ context.Context, cpf string) (*services.BeneficiaryStatus, error) {
	if _, err := validation.CPF(cpf); err != nil {
		return nil, err
	}
	return s.status, nil
}
func (s stubBeneficiaries) OwnedBy(_ context.Context, userID, beneficiaryUUID string) (bool, error) {
	if !validation.IsUUID(beneficiaryUUID) {
		return false, &validation.Error{Field: "beneficiaryUuid", Message: "UUID do beneficiário inválido"}
	}
	return userID != "" && s.owners[beneficiaryUUID] == userID, nil
}
func (s stubBeneficiaries) Primary(_ context.Context, userID string) (*domain.Beneficiary, error) {
	for b, u := range s.owners {
		if u == userID {
			return &domain.Beneficiary{BeneficiaryUUID: b, UserID: u}, nil
		}
	}
	return nil, nil
}

type stubInbox struct {
	items []domain.SystemNotification
	limit int
	read  map[string]bool
}

func (s *stubInbox) List(_ context.Context, _ string, limit int) ([]domain.SystemNotification, error) {
	s.limit = limit
	return s.items, nil
}
func (s *stubInbox) MarkRead(_ context.Context, _ string, id string) error {
	if _, ok := s.read[id]; !ok {
		return services.ErrNotificationNotFound
	}
	s.read[id] = true
	return nil
}
func (s *stubInbox) UnreadCount(context.Context, string) (int64, error) {
	var n int64
	for _, r := range s.read {
		if !r {
			n++
		}
	}
	return n, nil
}

// statInbox adds the fingerprint used for ETags.
type statInbox struct {
	stubInbox
	count int64
	at    time.Time
}

func (s *statInbox) Stats(context.Context, string) (int64, *time.Time, error) {
	return s.count, &s.at, nil
}

// ---------- router ----------

func newTestRouter(d Deps, idem *memIdem) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.BearerAuth(auth.NewVerifier(testSecret)))
	var lk middleware.IdempotencyLookup
	if idem != nil {
		lk = idem.lookup
		d.Idempotency = idem
	}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lk))

	h := New(d)
	r.POST("/functions/:name", h.InvokeFunction)
	r.POST("/webhooks/asaas", h.AsaasWebhook)
	r.GET("/specialties", h.ListSpecialties)
	r.GET("/specialties/:uuid", h.GetSpecialty)
	r.GET("/referrals", h.ListReferrals)
	r.GET("/referrals/:uuid", h.GetReferral)
	r.GET("/availability", h.GetAvailability)
	r.GET("/availability/next", h.NextAvailability)
	r.POST("/appointments", h.CreateAppointment)
	r.POST("/appointments/specialist", h.ScheduleSpecialist)
	r.GET("/appointments", h.ListAppointments)
	r.GET("/appointments/:id", h.GetAppointment)
	r.DELETE("/appointments/:id", h.CancelAppointment)
	r.GET("/beneficiaries/:cpf", h.GetBeneficiary)
	r.GET("/notifications", h.ListNotifications)
	r.GET("/notifications/unread-count", h.UnreadNotifications)
	r.PATCH("/notifications/:id/read", h.MarkNotificationRead)
	return r
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.NewVerifier(testSecret).Issue(auth.Caller{UserID: userID, Name: "Ana"}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + tok
}

func do(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er
}

// ---------- functions ----------

func TestInvokeFunction_PassesInvocationAndStatus(t *testing.T) {
	inv := &stubInvoker{status: http.StatusConflict, resp: functions.Response{Error: "Você já tem uma consulta ativa. Finalize antes de iniciar outra."}}
	r := newTestRouter(Deps{Functions: inv}, nil)

	w := do(r, http.MethodPost, "/functions/orchestrator", `{"action":"start_consultation","serviceType":"doctor"}`,
		map[string]string{"Authorization": bearer(t, "u-1")})

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	if inv.last.Function != functions.Orchestrator || inv.last.Caller == nil || inv.last.Caller.UserID != "u-1" {
		t.Fatalf("invocation = %+v", inv.last)
	}
	if !strings.Contains(string(inv.last.Body), `"start_consultation"`) {
		t.Fatalf("body not forwarded: %s", inv.last.Body)
	}
	var resp functions.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Success || !strings.Contains(resp.Error, "consulta ativa") {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestInvokeFunction_AnonymousCarriesAuthError(t *testing.T) {
	inv := &stubInvoker{status: http.StatusUnauthorized, resp: functions.Response{Error: "Não autorizado"}}
	r := newTestRouter(Deps{Functions: inv}, nil)

	do(r, http.MethodPost, "/functions/orchestrator", `{"action":"check_queue"}`, map[string]string{"Authorization": "Bearer junk"})
	if inv.last.Caller != nil || !errors.Is(inv.last.AuthErr, auth.ErrInvalidToken) {
		t.Fatalf("expected invalid-token invocation, got %+v", inv.last)
	}
}

func TestAsaasWebhook_ForwardsToken(t *testing.T) {
	inv := &stubInvoker{status: http.StatusOK, resp: functions.Response{Success: true}}
	r := newTestRouter(Deps{Functions: inv}, nil)

	w := do(r, http.MethodPost, "/webhooks/asaas", `{"event":"PAYMENT_CREATED"}`, map[string]string{"asaas-access-token": "whsec"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if inv.last.Function != functions.AsaasWebhook || inv.last.WebhookToken != "whsec" {
		t.Fatalf("invocation = %+v", inv.last)
	}
}

func TestInvokeFunction_IdempotentReplay(t *testing.T) {
	inv := &stubInvoker{status: http.StatusOK, resp: functions.Response{Success: true, Data: map[string]any{"n": 1}}}
	idem := newMemIdem()
	r := newTestRouter(Deps{Functions: inv}, idem)
	hdr := map[string]string{"Authorization": bearer(t, "u-1"), middleware.HeaderIdempotencyKey: "start-1"}

	first := do(r, http.MethodPost, "/functions/orchestrator", `{"action":"start_consultation"}`, hdr)
	if first.Code != http.StatusOK || first.Header().Get(HeaderIdempotentReplay) != "" {
		t.Fatalf("first call: %d %v", first.Code, first.Header())
	}

	inv.resp = functions.Response{Success: true, Data: map[string]any{"n": 2}}
	second := do(r, http.MethodPost, "/functions/orchestrator", `{"action":"start_consultation"}`, hdr)
	if second.Header().Get(HeaderIdempotentReplay) != "true" {
		t.Fatalf("expected replay header on second call")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body differs: %s vs %s", second.Body.String(), first.Body.String())
	}
	if inv.calls != 1 {
		t.Fatalf("function ran %d times", inv.calls)
	}

	// Same key under another function is a different operation.
	do(r, http.MethodPost, "/functions/tema-orchestrator", `{"action":"start_consultation"}`, hdr)
	if inv.calls != 2 {
		t.Fatalf("expected scope isolation, calls = %d", inv.calls)
	}
}

func TestInvokeFunction_ServerErrorsStayRetryable(t *testing.T) {
	inv := &stubInvoker{status: http.StatusInternalServerError, resp: functions.Response{Error: "Erro interno do servidor"}}
	idem := newMemIdem()
	r := newTestRouter(Deps{Functions: inv}, idem)
	hdr := map[string]string{"Authorization": bearer(t, "u-1"), middleware.HeaderIdempotencyKey: "k-500"}

	do(r, http.MethodPost, "/functions/orchestrator", `{}`, hdr)
	do(r, http.MethodPost, "/functions/orchestrator", `{}`, hdr)
	if inv.calls != 2 {
		t.Fatalf("5xx must not be replayed, calls = %d", inv.calls)
	}
}

func TestInvokeFunction_Unavailable(t *testing.T) {
	r := newTestRouter(Deps{}, nil)
	w := do(r, http.MethodPost, "/functions/orchestrator", `{}`, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestInvokeFunction_AnonymousCallsAreNotRemembered(t *testing.T) {
	inv := &stubInvoker{status: http.StatusOK, resp: functions.Response{Success: true, Data: map[string]any{"email": "alice@x.com"}}}
	idem := newMemIdem()
	r := newTestRouter(Deps{Functions: inv}, idem)
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "sub-1"}

	do(r, http.MethodPost, "/functions/tema-orchestrator", `{"action":"create_subscription","email":"alice@x.com"}`, hdr)
	inv.resp = functions.Response{Success: true, Data: map[string]any{"email": "bob@x.com"}}
	second := do(r, http.MethodPost, "/functions/tema-orchestrator", `{"action":"create_subscription","email":"bob@x.com"}`, hdr)

	if second.Header().Get(HeaderIdempotentReplay) != "" || strings.Contains(second.Body.String(), "alice") {
		t.Fatalf("anonymous call answered from another caller's record: %s", second.Body.String())
	}
	if inv.calls != 2 || len(idem.recs) != 0 {
		t.Fatalf("calls=%d stored=%d", inv.calls, len(idem.recs))
	}
}

func TestInvokeFunction_KeyReusedWithOtherBody(t *testing.T) {
	inv := &stubInvoker{status: http.StatusOK, resp: functions.Response{Success: true, Data: map[string]any{"n": 1}}}
	idem := newMemIdem()
	r := newTestRouter(Deps{Functions: inv}, idem)
	hdr := map[string]string{"Authorization": bearer(t, "u-1"), middleware.HeaderIdempotencyKey: "sub-1"}

	first := do(r, http.MethodPost, "/functions/tema-orchestrator", `{"action":"create_subscription","cpf":"1"}`, hdr)
	if first.Code != http.StatusOK {
		t.Fatalf("first: %d", first.Code)
	}
	w := do(r, http.MethodPost, "/functions/tema-orchestrator", `{"action":"create_subscription","cpf":"2"}`, hdr)
	if w.Code != http.StatusUnprocessableEntity || w.Header().Get(HeaderIdempotentReplay) != "" {
		t.Fatalf("reused key: %d %s", w.Code, w.Body.String())
	}
	var resp functions.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Success || !strings.Contains(resp.Error, "Idempotency-Key") {
		t.Fatalf("resp = %+v", resp)
	}
	if inv.calls != 1 {
		t.Fatalf("function ran %d times", inv.calls)
	}
}

// ---------- access ----------

func TestRESTRoutes_RequireCaller(t *testing.T) {
	r := newTestRouter(Deps{
		Specialties:   &stubSpecialties{},
		Referrals:     &stubReferrals{},
		Availability:  &stubAvailability{},
		Appointments:  &stubAppointments{},
		Beneficiaries: ownedBeneficiaries(),
	}, nil)

	routes := []struct{ method, path, body string }{
		{http.MethodGet, "/specialties", ""},
		{http.MethodGet, "/specialties/11111111-1111-4111-8111-111111111111", ""},
		{http.MethodGet, "/referrals", ""},
		{http.MethodGet, "/referrals/r-1", ""},
		{http.MethodGet, "/availability", ""},
		{http.MethodGet, "/availability/next", ""},
		{http.MethodPost, "/appointments", `{"beneficiaryUuid":"` + benAna + `"}`},
		{http.MethodPost, "/appointments/specialist", `{"beneficiaryUuid":"` + benAna + `"}`},
		{http.MethodGet, "/appointments", ""},
		{http.MethodGet, "/appointments/a1", ""},
		{http.MethodDelete, "/appointments/a1", ""},
		{http.MethodGet, "/beneficiaries/12345678909", ""},
	}
	for _, rt := range routes {
		for name, hdr := range map[string]map[string]string{
			"no token":  nil,
			"bad token": {"Authorization": "Bearer junk"},
		} {
			w := do(r, rt.method, rt.path, rt.body, hdr)
			if w.Code != http.StatusUnauthorized || decodeErr(t, w).Code != ErrCodeUnauthorized {
				t.Errorf("%s %s (%s) = %d %s", rt.method, rt.path, name, w.Code, w.Body.String())
			}
		}
	}
}

// ---------- catalog ----------

func TestSpecialties(t *testing.T) {
	spec := &stubSpecialties{list: []provider.Specialty{
		{UUID: "11111111-1111-4111-8111-111111111111", Name: "Cardiologia", Active: true},
		{UUID: "22222222-2222-4222-8222-222222222222", Name: "Dermatologia", Active: true},
	}}
	r := newTestRouter(Deps{Specialties: spec}, nil)
	hdr := map[string]string{"Authorization": bearer(t, "u-1")}

	w := do(r, http.MethodGet, "/specialties?refresh=true", "", hdr)
	if w.Code != http.StatusOK || !spec.force {
		t.Fatalf("list: %d force=%v", w.Code, spec.force)
	}
	var list []provider.Specialty
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list) != 2 {
		t.Fatalf("list len = %d", len(list))
	}

	w = do(r, http.MethodGet, "/specialties?search=cardio", "", hdr)
	if w.Code != http.StatusOK || spec.term != "cardio" {
		t.Fatalf("search: %d term=%q", w.Code, spec.term)
	}

	w = do(r, http.MethodGet, "/specialties/33333333-3333-4333-8333-333333333333", "", hdr)
	if w.Code != http.StatusNotFound || decodeErr(t, w).Message != "Especialidade não encontrada" {
		t.Fatalf("missing: %d %s", w.Code, w.Body.String())
	}

	spec.err = &lookup.Error{Message: "Erro ao carregar especialidades", Err: errors.New("boom")}
	w = do(r, http.MethodGet, "/specialties", "", hdr)
	if w.Code != http.StatusBadGateway || decodeErr(t, w).Code != ErrCodeUpstream {
		t.Fatalf("upstream: %d %s", w.Code, w.Body.String())
	}
}

func TestReferrals_ScopedToCaller(t *testing.T) {
	ref := &stubReferrals{list: []provider.Referral{
		{UUID: "r-ana", BeneficiaryUUID: benAna, Active: true},
		{UUID: "r-bia", BeneficiaryUUID: benBia, Active: true},
	}}
	r := newTestRouter(Deps{Referrals: ref, Beneficiaries: ownedBeneficiaries()}, nil)
	hdr := map[string]string{"Authorization": bearer(t, "u-1")}

	w := do(r, http.MethodGet, "/referrals?refresh=1", "", hdr)
	var list []provider.Referral
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if w.Code != http.StatusOK || len(list) != 1 || list[0].UUID != "r-ana" || !ref.forced {
		t.Fatalf("own list: %d %+v forced=%v", w.Code, list, ref.forced)
	}

	if w := do(r, http.MethodGet, "/referrals?beneficiary="+benBia, "", hdr); w.Code != http.StatusNotFound {
		t.Fatalf("foreign beneficiary: %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/referrals?beneficiary=nope", "", hdr); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed beneficiary: %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/referrals/r-ana", "", hdr); w.Code != http.StatusOK {
		t.Fatalf("own referral: %d", w.Code)
	}
	w = do(r, http.MethodGet, "/referrals/r-bia", "", hdr)
	if w.Code != http.StatusNotFound || decodeErr(t, w).Message != "Encaminhamento não encontrado" {
		t.Fatalf("foreign referral: %d %s", w.Code, w.Body.String())
	}

	// A caller with no beneficiary has nothing to list.
	if w := do(r, http.MethodGet, "/referrals", "", map[string]string{"Authorization": bearer(t, "u-9")}); w.Code != http.StatusNotFound {
		t.Fatalf("no beneficiary: %d", w.Code)
	}
}

func TestAvailability(t *testing.T) {
	av := &stubAvailability{}
	r := newTestRouter(Deps{Availability: av, Beneficiaries: ownedBeneficiaries()}, nil)
	hdr := map[string]string{"Authorization": bearer(t, "u-1")}

	w := do(r, http.MethodGet, "/availability?specialtyUuid=s&beneficiaryUuid="+benAna+"&dateInitial=10/01/2025&dateFinal=11/01/2025", "", hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if av.q.DateInitial != "10/01/2025" || av.q.DateFinal != "11/01/2025" || av.q.SpecialtyUUID != "s" || av.q.BeneficiaryUUID != benAna {
		t.Fatalf("query = %+v", av.q)
	}

	do(r, http.MethodGet, "/availability/next?limit=500", "", hdr)
	if av.limit != maxSlotLimit {
		t.Fatalf("limit not clamped: %d", av.limit)
	}
	do(r, http.MethodGet, "/availability/next", "", hdr)
	if av.limit != lookup.DefaultSlotLimit {
		t.Fatalf("default limit = %d", av.limit)
	}

	if w := do(r, http.MethodGet, "/availability?beneficiaryUuid="+benBia, "", hdr); w.Code != http.StatusNotFound {
		t.Fatalf("foreign beneficiary: %d", w.Code)
	}

	av.err = &validation.Error{Field: "dateInitial", Message: "Data inicial inválida (formato: dd/MM/yyyy)"}
	w = do(r, http.MethodGet, "/availability?dateInitial=2025-01-10", "", hdr)
	if w.Code != http.StatusBadRequest || decodeErr(t, w).Message != "Data inicial inválida (formato: dd/MM/yyyy)" {
		t.Fatalf("validation: %d %s", w.Code, w.Body.String())
	}
	if av.q.BeneficiaryUUID != benAna {
		t.Fatalf("primary beneficiary not used: %+v", av.q)
	}
}

func TestAppointments(t *testing.T) {
	ap := &stubAppointments{owners: map[string]string{"appt-7": benAna, "appt-bia": benBia}}
	r := newTestRouter(Deps{Appointments: ap, Beneficiaries: ownedBeneficiaries()}, nil)
	hdr := map[string]string{"Authorization": bearer(t, "u-1")}

	w := do(r, http.MethodPost, "/appointments", `{"beneficiaryUuid":"`+benAna+`","availabilityUuid":"slot-9","specialtyUuid":"s"}`, hdr)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), "https://appt/slot-9") {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPost, "/appointments", `{"availabilityUuid":"slot-10","specialtyUuid":"s"}`, hdr)
	if w.Code != http.StatusCreated || ap.created.BeneficiaryUUID != benAna {
		t.Fatalf("create for primary: %d %+v", w.Code, ap.created)
	}

	w = do(r, http.MethodPost, "/appointments", `{not json`, hdr)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", w.Code)
	}

	w = do(r, http.MethodPost, "/appointments/specialist", `{"beneficiaryUuid":"`+benAna+`","specialtyUuid":"s","availabilityUuid":"a","referralUuid":"ref-1"}`, hdr)
	if w.Code != http.StatusCreated || ap.referral != "ref-1" {
		t.Fatalf("specialist: %d referral=%q", w.Code, ap.referral)
	}

	if w := do(r, http.MethodGet, "/appointments", "", hdr); w.Code != http.StatusOK || ap.listed != benAna {
		t.Fatalf("list: %d listed=%q", w.Code, ap.listed)
	}
	if w := do(r, http.MethodGet, "/appointments/appt-7", "", hdr); w.Code != http.StatusOK {
		t.Fatalf("get own: %d", w.Code)
	}

	w = do(r, http.MethodDelete, "/appointments/appt-7", "", hdr)
	if w.Code != http.StatusNoContent || ap.cancelled != "appt-7" {
		t.Fatalf("cancel: %d %q", w.Code, ap.cancelled)
	}

	ap.err = &lookup.Error{Message: "Agendamento não encontrado", Err: lookup.ErrNotFound}
	w = do(r, http.MethodGet, "/appointments/appt-x", "", hdr)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get missing: %d", w.Code)
	}
}

func TestAppointments_OtherUsersBeneficiary(t *testing.T) {
	ap := &stubAppointments{owners: map[string]string{"appt-bia": benBia}}
	r := newTestRouter(Deps{Appointments: ap, Beneficiaries: ownedBeneficiaries()}, nil)
	hdr := map[string]string{"Authorization": bearer(t, "u-1")}

	cases := []struct{ method, path, body string }{
		{http.MethodPost, "/appointments", `{"beneficiaryUuid":"` + benBia + `","availabilityUuid":"slot-1"}`},
		{http.MethodPost, "/appointments/specialist", `{"beneficiaryUuid":"` + benBia + `","specialtyUuid":"s"}`},
		{http.MethodGet, "/appointments?beneficiary=" + benBia, ""},
		{http.MethodGet, "/appointments/appt-bia", ""},
		{http.MethodDelete, "/appointments/appt-bia", ""},
	}
	for _, tc := range cases {
		if w := do(r, tc.method, tc.path, tc.body, hdr); w.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d %s", tc.method, tc.path, w.Code, w.Body.String())
		}
	}
	if ap.cancelled != "" || ap.created.AvailabilityUUID != "" || ap.listed != "" {
		t.Fatalf("foreign request reached the provider: %+v", ap)
	}
}

// ---------- account ----------

func TestGetBeneficiary(t *testing.T) {
	st := &services.BeneficiaryStatus{Beneficiary: &domain.Beneficiary{FullName: "Ana", UserID: "u-1"}, HasActivePlan: true}
	r := newTestRouter(Deps{Beneficiaries: stubBeneficiaries{status: st}}, nil)
	hdr := map[string]string{"Authorization": bearer(t, "u-1")}

	w := do(r, http.MethodGet, "/beneficiaries/123", "", hdr)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short cpf: %d", w.Code)
	}
	w = do(r, http.MethodGet, "/beneficiaries/12345678909", "", hdr)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"hasActivePlan":true`) {
		t.Fatalf("found: %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/beneficiaries/12345678909", "", map[string]string{"Authorization": bearer(t, "u-2")})
	if w.Code != http.StatusNotFound || strings.Contains(w.Body.String(), "Ana") {
		t.Fatalf("other user's beneficiary: %d %s", w.Code, w.Body.String())
	}

	r = newTestRouter(Deps{Beneficiaries: stubBeneficiaries{}}, nil)
	w = do(r, http.MethodGet, "/beneficiaries/12345678909", "", hdr)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", w.Code)
	}
}

func TestNotifications(t *testing.T) {
	inbox := &stubInbox{
		items: []domain.SystemNotification{{ID: "n1", Title: "Consulta Iniciada"}},
		read:  map[string]bool{"n1": false, "n2": false},
	}
	r := newTestRouter(Deps{Notifications: inbox}, nil)

	if w := do(r, http.MethodGet, "/notifications", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: %d", w.Code)
	}

	hdr := map[string]string{"Authorization": bearer(t, "u-1")}
	w := do(r, http.MethodGet, "/notifications?limit=1000", "", hdr)
	if w.Code != http.StatusOK || inbox.limit != maxNotificationLimit {
		t.Fatalf("list: %d limit=%d", w.Code, inbox.limit)
	}
	do(r, http.MethodGet, "/notifications", "", hdr)
	if inbox.limit != services.DefaultNotificationLimit {
		t.Fatalf("default limit = %d", inbox.limit)
	}

	if w := do(r, http.MethodPatch, "/notifications/n1/read", "", hdr); w.Code != http.StatusNoContent {
		t.Fatalf("mark read: %d", w.Code)
	}
	if w := do(r, http.MethodPatch, "/notifications/zzz/read", "", hdr); w.Code != http.StatusNotFound {
		t.Fatalf("mark missing: %d", w.Code)
	}

	w = do(r, http.MethodGet, "/notifications/unread-count", "", hdr)
	var uc UnreadCountResponse
	_ = json.Unmarshal(w.Body.Bytes(), &uc)
	if w.Code != http.StatusOK || uc.Unread != 1 {
		t.Fatalf("unread: %d %+v", w.Code, uc)
	}
}

func TestListNotifications_ETag(t *testing.T) {
	inbox := &statInbox{
		stubInbox: stubInbox{items: []domain.SystemNotification{{ID: "n1"}}, read: map[string]bool{}},
		count:     1,
		at:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	r := newTestRouter(Deps{Notifications: inbox}, nil)
	hdr := map[string]string{"Authorization": bearer(t, "u-1")}

	w := do(r, http.MethodGet, "/notifications", "", hdr)
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || !strings.HasPrefix(etag, `W/"notifications:u-1:1:`) {
		t.Fatalf("first list: %d etag=%q", w.Code, etag)
	}

	hdr["If-None-Match"] = etag
	if w := do(r, http.MethodGet, "/notifications", "", hdr); w.Code != http.StatusNotModified {
		t.Fatalf("conditional list: %d", w.Code)
	}

	inbox.at = inbox.at.Add(time.Second)
	if w := do(r, http.MethodGet, "/notifications", "", hdr); w.Code != http.StatusOK {
		t.Fatalf("list after change: %d", w.Code)
	}
}
