package lookup

import (
	"context"
	"sort"
	"time"

	"github.com/tbourn/telemed-orchestrator/internal/cache"
	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// ReferralTTL is the default lifetime of the referral snapshot.
const ReferralTTL = 2 * time.Minute

// ReferralSource lists referrals upstream. *provider.Client satisfies it.
type ReferralSource interface {
	ListReferrals(ctx context.Context) ([]provider.Referral, error)
}

// Referrals serves medical referrals from a TTL cache. The raw upstream list
// is cached; every read returns only active referrals, newest first.
type Referrals struct {
	cache *cache.TTL[provider.Referral]
}

// NewReferrals builds the service. A non-positive ttl means ReferralTTL.
func NewReferrals(src ReferralSource, store cache.Store, ttl time.Duration, opts ...cache.Option) *Referrals {
	if ttl <= 0 {
		ttl = ReferralTTL
	}
	return &Referrals{cache: cache.NewTTL[provider.Referral]("referrals", ttl, store, src.ListReferrals, opts...)}
}

// List returns the active referrals ordered by referral date, newest first.
func (r *Referrals) List(ctx context.Context, force bool) ([]provider.Referral, error) {
	all, err := r.cache.Get(ctx, force)
	if err != nil {
		return nil, upstream("referrals.list", "Erro ao carregar encaminhamentos", err)
	}
	out := make([]provider.Referral, 0, len(all))
	for _, ref := range all {
		if ref.Active {
			out = append(out, ref)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return referralTime(out[i].ReferralDate).After(referralTime(out[j].ReferralDate))
	})
	return out, nil
}

// ByBeneficiary returns the active referrals of one beneficiary.
func (r *Referrals) ByBeneficiary(ctx context.Context, beneficiaryUUID string) ([]provider.Referral, error) {
	if err := validation.UUID("beneficiaryUuid", beneficiaryUUID, "UUID do beneficiário inválido"); err != nil {
		return nil, err
	}
	all, err := r.List(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]provider.Referral, 0)
	for _, ref := range all {
		if ref.BeneficiaryUUID == beneficiaryUUID {
			out = append(out, ref)
		}
	}
	return out, nil
}

// ByUUID returns one active referral.
func (r *Referrals) ByUUID(ctx context.Context, uuid string) (*provider.Referral, error) {
	if err := validation.UUID("uuid", uuid, "UUID do encaminhamento inválido"); err != nil {
		return nil, err
	}
	all, err := r.List(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].UUID == uuid {
			return &all[i], nil
		}
	}
	return nil, notFound("Encaminhamento não encontrado")
}

// Clear drops the snapshot.
func (r *Referrals) Clear(ctx context.Context) error { return r.cache.Clear(ctx) }

// Info reports on the snapshot.
func (r *Referrals) Info(ctx context.Context) cache.Info { return r.cache.Info(ctx) }

var referralLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02", validation.DateLayout}

// referralTime parses the upstream date; unparseable values sort last.
func referralTime(s string) time.Time {
	for _, layout := range referralLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
