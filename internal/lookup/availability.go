package lookup

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/telemed-orchestrator/internal/provider"
	"github.com/tbourn/telemed-orchestrator/internal/validation"
)

// DefaultSlotLimit caps NextAvailable when the caller passes no limit.
const DefaultSlotLimit = 10

// AvailabilitySource lists slots upstream. *provider.Client satisfies it.
type AvailabilitySource interface {
	ListAvailability(ctx context.Context, q provider.AvailabilityQuery) ([]provider.AvailabilitySlot, error)
}

// Availability queries slots live. Nothing is cached: a stale slot would
// book a time that is already gone.
type Availability struct {
	src AvailabilitySource
	now func() time.Time
}

// NewAvailability builds the service.
func NewAvailability(src AvailabilitySource) *Availability {
	return &Availability{src: src, now: time.Now}
}

// Get validates q, fetches the window and orders it by date, then time.
func (a *Availability) Get(ctx context.Context, q provider.AvailabilityQuery) ([]provider.AvailabilitySlot, error) {
	if err := validation.UUID("specialtyUuid", q.SpecialtyUUID, "UUID da especialidade inválido"); err != nil {
		return nil, err
	}
	if err := validation.UUID("beneficiaryUuid", q.BeneficiaryUUID, "UUID do beneficiário inválido"); err != nil {
		return nil, err
	}
	if _, _, err := validation.DateRange(q.DateInitial, q.DateFinal); err != nil {
		return nil, err
	}

	slots, err := a.src.ListAvailability(ctx, q)
	if err != nil {
		return nil, upstream("availability.get", "Erro ao consultar disponibilidade", err)
	}
	SortSlots(slots)
	return slots, nil
}

// ForDate is Get over a single day.
func (a *Availability) ForDate(ctx context.Context, specialtyUUID, beneficiaryUUID, date string) ([]provider.AvailabilitySlot, error) {
	return a.Get(ctx, provider.AvailabilityQuery{
		SpecialtyUUID:   specialtyUUID,
		BeneficiaryUUID: beneficiaryUUID,
		DateInitial:     date,
		DateFinal:       date,
	})
}

// NextAvailable returns up to limit open slots between today and a week
// from today.
func (a *Availability) NextAvailable(ctx context.Context, specialtyUUID, beneficiaryUUID string, limit int) ([]provider.AvailabilitySlot, error) {
	if limit <= 0 {
		limit = DefaultSlotLimit
	}
	today := a.now()
	slots, err := a.Get(ctx, provider.AvailabilityQuery{
		SpecialtyUUID:   specialtyUUID,
		BeneficiaryUUID: beneficiaryUUID,
		DateInitial:     validation.FormatDate(today),
		DateFinal:       validation.FormatDate(today.AddDate(0, 0, 7)),
	})
	if err != nil {
		return nil, err
	}
	out := make([]provider.AvailabilitySlot, 0, limit)
	for _, s := range slots {
		if !s.Available {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// SortSlots orders slots by calendar date, then by the HH:mm string.
// The string comparison is chronological only for zero-padded 24h times;
// other shapes are logged and sorted as-is.
func SortSlots(slots []provider.AvailabilitySlot) {
	for _, s := range slots {
		if !validation.IsZeroPaddedTime(s.Time) {
			log.Warn().Str("time", s.Time).Str("slot", s.UUID).Msg("availability slot time is not zero-padded HH:mm")
			break
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		di, _ := validation.ParseDate(slots[i].Date)
		dj, _ := validation.ParseDate(slots[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return slots[i].Time < slots[j].Time
	})
}
