package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/telemed-orchestrator/internal/domain"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func count(t *testing.T, db *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// ----- Fake gateway -----

type fakeGateway struct {
	mu sync.Mutex

	calls       int
	lastType    domain.ServiceType
	lastProfile provider.Profile
	lastOpts    provider.Options

	result provider.Result
	err    error

	// onCall runs inside RequestConsultation before the result is returned.
	onCall func()
}

func (g *fakeGateway) RequestConsultation(ctx context.Context, st domain.ServiceType, p provider.Profile, o provider.Options) (provider.Result, error) {
	g.mu.Lock()
	g.calls++
	g.lastType, g.lastProfile, g.lastOpts = st, p, o
	hook := g.onCall
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return g.result, g.err
}

func okResult() provider.Result {
	return provider.Result{
		Success:           true,
		SessionID:         "DOC_123",
		ConsultationURL:   "https://x",
		EstimatedWaitTime: 5,
		ProfessionalInfo:  &provider.ProfessionalInfo{Name: "Dr. A", Specialty: "Clínica Geral", Rating: 4.8},
		Message:           "Médico encontrado! Conectando...",
	}
}

var fixedNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestOrchestrator(t *testing.T, gw *fakeGateway) (*Orchestrator, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	o := NewOrchestrator(db, gw)
	o.Now = func() time.Time { return fixedNow }
	o.Sessions.Now = o.Now
	return o, db
}

// seedActiveSession writes a log and an active session for userID expiring at
// expires.
func seedActiveSession(t *testing.T, db *gorm.DB, userID string, expires time.Time) *domain.ActiveSession {
	t.Helper()
	ctx := context.Background()
	l, err := repo.CreateConsultationLog(ctx, db, &domain.ConsultationLog{
		UserID: userID, ServiceType: domain.ServiceDoctor, Status: domain.LogActive, Success: true,
	})
	if err != nil {
		t.Fatalf("seed log: %v", err)
	}
	s, err := repo.CreateActiveSession(ctx, db, &domain.ActiveSession{
		UserID: userID, ConsultationLogID: l.ID, ServiceType: domain.ServiceDoctor, ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return s
}
