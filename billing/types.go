/*
Package billing provides the reconciliation and tax-rate revenue-allocation
engine for the hotel portfolio.

PURPOSE:
  Turns the raw billing facts of a hotel/client/period - nightly room
  charges, tax-rate overrides, add-on charges, and payments - into one
  consistent set of numbers: period sales, cumulative sales, payments split
  into advance vs. settlement, and a reconciliation status. The same
  computation is used at every aggregation scope (client, hotel, portfolio)
  so the views can never disagree.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: integer-yen amount backed by decimal.Decimal
  - Fact rows: ReservationFact, NightlyChargeFact, RateOverrideFact,
    AddonFact, PaymentFact - immutable inputs supplied by collaborators
  - ScopeKey: the (hotel, client) granularity a result is computed at
  - TaxBucket: a (tax rate, amount) slice of a nightly charge
  - ReconciliationResult: the derived output, never a source of truth

DESIGN PRINCIPLES:
  1. Facts in, numbers out: the engine never mutates its inputs
  2. Precision: decimal.Decimal, whole yen only - no floats anywhere
  3. Determinism: identical fact snapshots produce byte-identical results
  4. One inclusion rule: every scope filters lines with the same predicate

SEE ALSO:
  - allocator.go: distributes a charge across tax-rate buckets
  - aggregator.go: rolls allocated amounts into period/cumulative sums
  - payments.go: advance/settlement classification
  - reconcile.go: the engine and the status classifier
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Whole-yen amounts
// =============================================================================

// Money is an amount in the currency's minimum unit (yen). The allocator
// never emits fractional amounts; decimal backing is for safe arithmetic
// with tax rates, not for sub-unit precision.
type Money struct {
	Value decimal.Decimal
}

func Yen(n int64) Money {
	return Money{Value: decimal.NewFromInt(n)}
}

func (m Money) Add(o Money) Money      { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money      { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money             { return Money{Value: m.Value.Neg()} }
func (m Money) Abs() Money             { return Money{Value: m.Value.Abs()} }
func (m Money) MulInt(n int64) Money   { return Money{Value: m.Value.Mul(decimal.NewFromInt(n))} }
func (m Money) IsZero() bool           { return m.Value.IsZero() }
func (m Money) IsNegative() bool       { return m.Value.IsNegative() }
func (m Money) IsPositive() bool       { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool     { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool    { return m.Value.LessThan(o.Value) }
func (m Money) String() string           { return m.Value.StringFixed(0) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type HotelID string
type ClientID string
type ReservationID string
type ChargeID string

// OverrideID is numeric: descending id is the allocator's secondary
// tie-break, so ordering must be well defined.
type OverrideID int64

// =============================================================================
// TAX RATES
// =============================================================================

// DefaultTaxRate applies when an override carries no rate and when a
// charge has no overrides at all (the synthetic full-total bucket).
func DefaultTaxRate() decimal.Decimal {
	return decimal.New(10, -2) // 0.10
}

// =============================================================================
// RESERVATION FACTS
// =============================================================================

type ReservationStatus string

const (
	ResConfirmed  ReservationStatus = "confirmed"
	ResCheckedIn  ReservationStatus = "checked_in"
	ResCheckedOut ReservationStatus = "checked_out"
	ResHold       ReservationStatus = "hold"  // tentative, blocks inventory only
	ResBlock      ReservationStatus = "block" // room taken out of sale
	ResCancelled  ReservationStatus = "cancelled"
)

// IsBlocking reports whether the status represents a holding/blocking
// state that must never contribute revenue.
func (s ReservationStatus) IsBlocking() bool {
	return s == ResHold || s == ResBlock || s == ResCancelled
}

type ReservationType string

const (
	ResTypeGuest    ReservationType = "guest"
	ResTypeEmployee ReservationType = "employee"
	ResTypeInternal ReservationType = "internal"
)

// IsInternal reports whether the type is an employee/internal stay,
// excluded from billing.
func (t ReservationType) IsInternal() bool {
	return t == ResTypeEmployee || t == ResTypeInternal
}

// ReservationFact is the owning context of every charge and payment line.
type ReservationFact struct {
	ID       ReservationID
	HotelID  HotelID
	ClientID ClientID
	CheckIn  DateStamp
	CheckOut DateStamp
	Status   ReservationStatus
	Type     ReservationType
}

// =============================================================================
// CHARGE FACTS
// =============================================================================

type PricingMode string

const (
	PricePerRoom   PricingMode = "per_room"   // line price charged once
	PricePerPerson PricingMode = "per_person" // line price times occupant count
)

// NightlyChargeFact is one night's room charge for one reservation.
// Immutable once billed; cancellation is a soft marker, never a delete.
type NightlyChargeFact struct {
	ID            ChargeID
	ReservationID ReservationID
	Date          DateStamp
	Price         Money
	Mode          PricingMode
	Occupants     int64
	Billable      bool
	Cancelled     bool
}

// Total is the charge's full price under its pricing mode.
func (c NightlyChargeFact) Total() Money {
	if c.Mode == PricePerPerson {
		return c.Price.MulInt(c.Occupants)
	}
	return c.Price
}

// RateOverrideFact is a tax-rate-specific slice of a nightly charge.
// A nil TaxRate means "rate absent": it sorts last in the allocation
// tie-break and resolves to DefaultTaxRate in the emitted bucket.
type RateOverrideFact struct {
	ID       OverrideID
	ChargeID ChargeID
	TaxRate  *decimal.Decimal
	Price    Money
}

// AddonFact is an extra charge (meals, parking, laundry) attached to a
// nightly charge's reservation context. Add-ons carry their own single
// tax rate, so they bypass the allocator entirely.
type AddonFact struct {
	ChargeID ChargeID
	Date     DateStamp
	Price    Money
	Quantity int64
	TaxRate  decimal.Decimal
}

// Amount is price times quantity.
func (a AddonFact) Amount() Money {
	return a.Price.MulInt(a.Quantity)
}

// PaymentFact is a captured payment. Never mutated.
type PaymentFact struct {
	ReservationID ReservationID
	Date          DateStamp
	Value         Money
}

// =============================================================================
// SCOPE KEYS
// =============================================================================

// Scope selects the granularity a reconciliation is computed at.
type Scope string

const (
	ScopeClient    Scope = "client"    // one key per (hotel, client)
	ScopeHotel     Scope = "hotel"     // one key per hotel
	ScopePortfolio Scope = "portfolio" // single key across all hotels
)

// ScopeKey identifies one aggregation bucket. Hotel-level keys leave
// ClientID empty; the portfolio key leaves both empty. Every aggregation
// is keyed this way so the rollup invariant can be checked mechanically.
type ScopeKey struct {
	HotelID  HotelID
	ClientID ClientID
}

func PortfolioKey() ScopeKey            { return ScopeKey{} }
func HotelKey(h HotelID) ScopeKey       { return ScopeKey{HotelID: h} }
func ClientKey(h HotelID, c ClientID) ScopeKey {
	return ScopeKey{HotelID: h, ClientID: c}
}

func (k ScopeKey) String() string {
	switch {
	case k.HotelID == "" && k.ClientID == "":
		return "portfolio"
	case k.ClientID == "":
		return string(k.HotelID)
	default:
		return string(k.HotelID) + "/" + string(k.ClientID)
	}
}

// keyFor projects a reservation onto the requested scope.
func keyFor(scope Scope, res ReservationFact) ScopeKey {
	switch scope {
	case ScopeClient:
		return ClientKey(res.HotelID, res.ClientID)
	case ScopeHotel:
		return HotelKey(res.HotelID)
	default:
		return PortfolioKey()
	}
}

// =============================================================================
// TAX BUCKETS - Allocator output
// =============================================================================

// TaxBucket is one (tax rate, amount) slice of a nightly charge. The
// amounts of all buckets for a charge sum exactly to the charge total.
type TaxBucket struct {
	Rate   decimal.Decimal
	Amount Money
}

// =============================================================================
// RECONCILIATION RESULT - Derived, never persisted as source of truth
// =============================================================================

type SettlementStatus string

const (
	Settled     SettlementStatus = "settled"
	Outstanding SettlementStatus = "outstanding" // client owes money
	AdvancePaid SettlementStatus = "advance_paid"
	Overpaid    SettlementStatus = "overpaid"
)

// ReconciliationResult is the per-scope-key output for one period.
// Recomputed from raw facts on every call; any cache in front of it is
// not authoritative.
type ReconciliationResult struct {
	Key    ScopeKey
	Period Period

	PeriodSales     Money
	CumulativeSales Money

	PeriodPayments     Money
	AdvancePayments    Money
	SettlementPayments Money
	CumulativePayments Money

	Difference           Money
	CumulativeDifference Money
	Status               SettlementStatus

	// EarliestCheckIn is the representative check-in for the scope,
	// used by the AdvancePaid classification.
	EarliestCheckIn DateStamp
}
