// Package app assembles the services shared by the HTTP server and the
// serverless entrypoint from a loaded config.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/telemed-orchestrator/internal/cache"
	"github.com/tbourn/telemed-orchestrator/internal/config"
	"github.com/tbourn/telemed-orchestrator/internal/functions"
	"github.com/tbourn/telemed-orchestrator/internal/http/handlers"
	"github.com/tbourn/telemed-orchestrator/internal/lookup"
	"github.com/tbourn/telemed-orchestrator/internal/payments"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/repo"
	"github.com/tbourn/telemed-orchestrator/internal/services"
)

// App is a fully wired service graph.
type App struct {
	DB           *gorm.DB
	Dispatcher   *functions.Dispatcher
	Orchestrator *services.Orchestrator
	Deps         handlers.Deps

	closeCache func() error
}

// New opens the database (migrating it), connects the lookup cache and
// wires every service against cfg.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := repo.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return Wire(ctx, db, cfg)
}

// Wire builds the service graph over an already migrated db.
func Wire(ctx context.Context, db *gorm.DB, cfg config.Config) (*App, error) {
	store, closeCache, err := cache.NewStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	client := provider.NewClient(cfg.Provider)
	if !client.Configured() {
		log.Warn().Msg("provider credentials missing; consultation and catalog calls will fail")
	}
	pay := payments.NewClient(cfg.Payments)

	orch := services.NewOrchestrator(db, provider.NewGateway(client))
	if cfg.SessionTTL > 0 {
		orch.SessionTTL = cfg.SessionTTL
	}
	subs := &services.SubscriptionService{DB: db, Payments: pay, Beneficiaries: client}
	if cfg.RequireSubscription {
		orch.Gate = subs
	}

	dispatcher := &functions.Dispatcher{
		Orchestrator:       orch,
		Subscriptions:      subs,
		Webhooks:           &services.WebhookProcessor{DB: db, Notifications: orch.Notifications},
		ProviderConfigured: client.Configured(),
		WebhookSecret:      cfg.Payments.WebhookToken,
	}

	referrals := lookup.NewReferrals(client, store, cfg.Cache.ReferralTTL)
	deps := handlers.Deps{
		Functions:     dispatcher,
		Specialties:   lookup.NewSpecialties(client, store, cfg.Cache.SpecialtyTTL),
		Referrals:     referrals,
		Availability:  lookup.NewAvailability(client),
		Appointments:  lookup.NewAppointments(client, referrals),
		Beneficiaries: &services.BeneficiaryService{DB: db},
		Notifications: orch.Notifications,
	}

	return &App{
		DB:           db,
		Dispatcher:   dispatcher,
		Orchestrator: orch,
		Deps:         deps,
		closeCache:   closeCache,
	}, nil
}

// Sweep retires expired sessions and purges expired idempotency records.
func (a *App) Sweep(ctx context.Context) (sessions, keys int64, err error) {
	sessions, err = a.Orchestrator.Sessions.CleanExpiredSessions(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("clean sessions: %w", err)
	}
	keys, err = repo.PurgeIdempotency(ctx, a.DB, time.Now().UTC())
	if err != nil {
		return sessions, 0, fmt.Errorf("purge idempotency: %w", err)
	}
	return sessions, keys, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (a *App) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s, k, err := a.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if s > 0 || k > 0 {
				log.Info().Int64("sessions", s).Int64("idempotency_keys", k).Msg("sweep")
			}
		}
	}
}

// Close releases the cache connection and the database pool.
func (a *App) Close() error {
	if a.closeCache != nil {
		if err := a.closeCache(); err != nil {
			log.Warn().Err(err).Msg("close cache")
		}
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
