// Package source provides FactSource implementations.
package source

import (
	"context"
	"sync"

	"github.com/lodgeworks/billing-engine/billing"
)

// =============================================================================
// MEMORY SOURCE - In-memory fact streams (for testing/dev)
// =============================================================================

// Memory holds fact streams in memory. Safe for concurrent use; readers
// always receive copies.
type Memory struct {
	mu           sync.RWMutex
	reservations []billing.ReservationFact
	charges      []billing.NightlyChargeFact
	overrides    []billing.RateOverrideFact
	addons       []billing.AddonFact
	payments     []billing.PaymentFact
}

func NewMemory() *Memory {
	return &Memory{}
}

// AddReservation registers a reservation fact.
func (m *Memory) AddReservation(r billing.ReservationFact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations = append(m.reservations, r)
}

// AddCharge registers a nightly charge with its rate overrides.
func (m *Memory) AddCharge(c billing.NightlyChargeFact, overrides ...billing.RateOverrideFact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges = append(m.charges, c)
	m.overrides = append(m.overrides, overrides...)
}

// AddAddon registers an add-on charge.
func (m *Memory) AddAddon(a billing.AddonFact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addons = append(m.addons, a)
}

// AddPayment registers a captured payment.
func (m *Memory) AddPayment(p billing.PaymentFact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, p)
}

func (m *Memory) Reservations(_ context.Context, f billing.FactFilter) ([]billing.ReservationFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []billing.ReservationFact
	for _, r := range m.reservations {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) NightlyCharges(_ context.Context, f billing.FactFilter) ([]billing.NightlyChargeFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nightlyChargesLocked(f), nil
}

func (m *Memory) nightlyChargesLocked(f billing.FactFilter) []billing.NightlyChargeFact {
	matched := m.matchedReservations(f)
	var out []billing.NightlyChargeFact
	for _, c := range m.charges {
		if !dateInWindow(c.Date, f) {
			continue
		}
		// Orphan charges (unknown reservation) pass through: excluding
		// them is the engine's job, and it must see them to warn.
		if _, known := m.reservationByID(c.ReservationID); known && !matched[c.ReservationID] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (m *Memory) RateOverrides(_ context.Context, f billing.FactFilter) ([]billing.RateOverrideFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	charges := m.nightlyChargesLocked(f)
	wanted := make(map[billing.ChargeID]bool, len(charges))
	for _, c := range charges {
		wanted[c.ID] = true
	}
	var out []billing.RateOverrideFact
	for _, ov := range m.overrides {
		if wanted[ov.ChargeID] {
			out = append(out, ov)
		}
	}
	return out, nil
}

func (m *Memory) Addons(_ context.Context, f billing.FactFilter) ([]billing.AddonFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := m.matchedReservations(f)
	var out []billing.AddonFact
	for _, a := range m.addons {
		if !dateInWindow(a.Date, f) {
			continue
		}
		owner, known := m.chargeByID(a.ChargeID)
		if known {
			if _, resKnown := m.reservationByID(owner.ReservationID); resKnown && !matched[owner.ReservationID] {
				continue
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) Payments(_ context.Context, f billing.FactFilter) ([]billing.PaymentFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := m.matchedReservations(f)
	var out []billing.PaymentFact
	for _, p := range m.payments {
		if !dateInWindow(p.Date, f) {
			continue
		}
		if _, known := m.reservationByID(p.ReservationID); known && !matched[p.ReservationID] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// =============================================================================
// INTERNAL LOOKUPS (callers hold m.mu)
// =============================================================================

func (m *Memory) matchedReservations(f billing.FactFilter) map[billing.ReservationID]bool {
	matched := make(map[billing.ReservationID]bool, len(m.reservations))
	for _, r := range m.reservations {
		if f.Matches(r) {
			matched[r.ID] = true
		}
	}
	return matched
}

func (m *Memory) reservationByID(id billing.ReservationID) (billing.ReservationFact, bool) {
	for _, r := range m.reservations {
		if r.ID == id {
			return r, true
		}
	}
	return billing.ReservationFact{}, false
}

func (m *Memory) chargeByID(id billing.ChargeID) (billing.NightlyChargeFact, bool) {
	for _, c := range m.charges {
		if c.ID == id {
			return c, true
		}
	}
	return billing.NightlyChargeFact{}, false
}

func dateInWindow(d billing.DateStamp, f billing.FactFilter) bool {
	if f.Through.IsZero() {
		return true
	}
	return d.BeforeOrEqual(f.Through)
}
