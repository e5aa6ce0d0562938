package lookup

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/tbourn/telemed-orchestrator/internal/cache"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
)

// SpecialtyTTL is the default lifetime of the specialty snapshot.
const SpecialtyTTL = 5 * time.Minute

// SpecialtySource lists specialties upstream. *provider.Client satisfies it.
type SpecialtySource interface {
	ListSpecialties(ctx context.Context) ([]provider.Specialty, error)
}

// Specialties serves the specialty catalog from a TTL cache.
type Specialties struct {
	cache *cache.TTL[provider.Specialty]
}

// NewSpecialties builds the service. A non-positive ttl means SpecialtyTTL.
func NewSpecialties(src SpecialtySource, store cache.Store, ttl time.Duration, opts ...cache.Option) *Specialties {
	if ttl <= 0 {
		ttl = SpecialtyTTL
	}
	return &Specialties{cache: cache.NewTTL[provider.Specialty]("specialties", ttl, store, src.ListSpecialties, opts...)}
}

// List returns every specialty, from cache unless force is set.
func (s *Specialties) List(ctx context.Context, force bool) ([]provider.Specialty, error) {
	out, err := s.cache.Get(ctx, force)
	if err != nil {
		return nil, upstream("specialties.list", "Erro ao carregar especialidades", err)
	}
	return out, nil
}

// ByUUID returns the specialty with the given uuid.
func (s *Specialties) ByUUID(ctx context.Context, uuid string) (*provider.Specialty, error) {
	all, err := s.List(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].UUID == uuid {
			return &all[i], nil
		}
	}
	return nil, notFound("Especialidade não encontrada")
}

// Active returns the specialties flagged active.
func (s *Specialties) Active(ctx context.Context) ([]provider.Specialty, error) {
	all, err := s.List(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]provider.Specialty, 0, len(all))
	for _, sp := range all {
		if sp.Active {
			out = append(out, sp)
		}
	}
	return out, nil
}

// Search matches term as a case-insensitive substring of the name or the
// description. An empty term matches everything.
func (s *Specialties) Search(ctx context.Context, term string) ([]provider.Specialty, error) {
	all, err := s.List(ctx, false)
	if err != nil {
		return nil, err
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(term))
	out := make([]provider.Specialty, 0, len(all))
	for _, sp := range all {
		if strings.Contains(fold.String(sp.Name), needle) || strings.Contains(fold.String(sp.Description), needle) {
			out = append(out, sp)
		}
	}
	return out, nil
}

// Clear drops the snapshot.
func (s *Specialties) Clear(ctx context.Context) error { return s.cache.Clear(ctx) }

// Info reports on the snapshot.
func (s *Specialties) Info(ctx context.Context) cache.Info { return s.cache.Info(ctx) }
