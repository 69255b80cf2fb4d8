/*
facts.go - Fact loading interface

PURPOSE:
  Defines the read-only boundary between the engine and whatever supplies
  the raw rows (SQLite here, the PMS database in production). The loader
  does no computation: filtering by hotel/client is a data-access concern,
  inclusion/exclusion of lines is the engine's (inclusion.go).

LOADING WINDOW:
  Cumulative figures need all history up to the period end, so fact
  queries carry only an UPPER date bound (Through). The engine applies the
  period lower bound in memory; the loader must never do it.

IMPLEMENTATIONS:
  - source.Memory (billing/source/memory.go): tests and demos
  - sqlite.Store (store/sqlite/sqlite.go): persistent fact store
*/
package billing

import (
	"context"
	"sort"
)

// FactFilter narrows fact loading to a hotel/client set. Empty slices
// mean "all". Through is the inclusive upper date bound; charges,
// add-ons, and payments dated after it are not loaded. Overrides follow
// their parent charge.
type FactFilter struct {
	HotelIDs  []HotelID
	ClientIDs []ClientID
	Through   DateStamp
}

// Matches reports whether a reservation falls inside the hotel/client set.
func (f FactFilter) Matches(res ReservationFact) bool {
	if len(f.HotelIDs) > 0 && !containsHotel(f.HotelIDs, res.HotelID) {
		return false
	}
	if len(f.ClientIDs) > 0 && !containsClient(f.ClientIDs, res.ClientID) {
		return false
	}
	return true
}

func containsHotel(ids []HotelID, id HotelID) bool {
	for _, h := range ids {
		if h == id {
			return true
		}
	}
	return false
}

func containsClient(ids []ClientID, id ClientID) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}
	return false
}

// FactSource supplies the raw fact streams. Pure data access; every
// method may block on the backing store and honors ctx.
type FactSource interface {
	Reservations(ctx context.Context, f FactFilter) ([]ReservationFact, error)
	NightlyCharges(ctx context.Context, f FactFilter) ([]NightlyChargeFact, error)
	RateOverrides(ctx context.Context, f FactFilter) ([]RateOverrideFact, error)
	Addons(ctx context.Context, f FactFilter) ([]AddonFact, error)
	Payments(ctx context.Context, f FactFilter) ([]PaymentFact, error)
}

// =============================================================================
// FACT SET - One loaded snapshot, indexed for aggregation
// =============================================================================

// factSet is a loaded snapshot of the five fact streams with the joins
// the aggregators need. Built once per engine call; read-only after.
type factSet struct {
	reservations map[ReservationID]ReservationFact
	charges      []NightlyChargeFact
	overrides    map[ChargeID][]RateOverrideFact
	addons       []AddonFact
	payments     []PaymentFact

	// chargeOwner joins add-ons to their reservation context.
	chargeOwner map[ChargeID]ReservationID
}

func loadFacts(ctx context.Context, src FactSource, f FactFilter) (*factSet, error) {
	reservations, err := src.Reservations(ctx, f)
	if err != nil {
		return nil, err
	}
	charges, err := src.NightlyCharges(ctx, f)
	if err != nil {
		return nil, err
	}
	overrides, err := src.RateOverrides(ctx, f)
	if err != nil {
		return nil, err
	}
	addons, err := src.Addons(ctx, f)
	if err != nil {
		return nil, err
	}
	payments, err := src.Payments(ctx, f)
	if err != nil {
		return nil, err
	}

	fs := &factSet{
		reservations: make(map[ReservationID]ReservationFact, len(reservations)),
		charges:      charges,
		overrides:    make(map[ChargeID][]RateOverrideFact),
		addons:       addons,
		payments:     payments,
		chargeOwner:  make(map[ChargeID]ReservationID, len(charges)),
	}
	for _, r := range reservations {
		fs.reservations[r.ID] = r
	}
	for _, c := range charges {
		fs.chargeOwner[c.ID] = c.ReservationID
	}
	for _, ov := range overrides {
		fs.overrides[ov.ChargeID] = append(fs.overrides[ov.ChargeID], ov)
	}

	// Deterministic iteration regardless of source ordering.
	sort.Slice(fs.charges, func(i, j int) bool {
		if !fs.charges[i].Date.Equal(fs.charges[j].Date) {
			return fs.charges[i].Date.Before(fs.charges[j].Date)
		}
		return fs.charges[i].ID < fs.charges[j].ID
	})
	sort.Slice(fs.addons, func(i, j int) bool {
		if !fs.addons[i].Date.Equal(fs.addons[j].Date) {
			return fs.addons[i].Date.Before(fs.addons[j].Date)
		}
		return fs.addons[i].ChargeID < fs.addons[j].ChargeID
	})
	sort.Slice(fs.payments, func(i, j int) bool {
		if !fs.payments[i].Date.Equal(fs.payments[j].Date) {
			return fs.payments[i].Date.Before(fs.payments[j].Date)
		}
		return fs.payments[i].ReservationID < fs.payments[j].ReservationID
	})
	return fs, nil
}

// owner resolves a charge line's reservation. Second return is false for
// orphans (missing reservation reference).
func (fs *factSet) owner(resID ReservationID) (ReservationFact, bool) {
	res, ok := fs.reservations[resID]
	return res, ok
}

// addonOwner resolves an add-on through its parent charge to the
// reservation context.
func (fs *factSet) addonOwner(chargeID ChargeID) (ReservationFact, bool) {
	resID, ok := fs.chargeOwner[chargeID]
	if !ok {
		return ReservationFact{}, false
	}
	return fs.owner(resID)
}
