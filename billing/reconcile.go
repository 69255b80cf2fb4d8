/*
reconcile.go - The reconciliation engine and status classifier

PURPOSE:
  The public entry points of the package. Combines revenue aggregation
  (aggregator.go) and payment classification (payments.go) per scope key
  into differences and a settlement status.

STATELESSNESS:
  Every figure is a pure function of the fact snapshot and the period.
  Nothing is persisted, nothing is incrementally maintained: any number
  shown to a user is re-derivable from the three raw fact streams alone.
  That makes concurrent calls for overlapping periods trivially safe.

STATUS CLASSIFICATION (per scope key, in order):
  1. |cumulativeDifference| <= tolerance          -> Settled
  2. cumulativeDifference < -tolerance            -> Outstanding
  3. positive beyond tolerance:
       earliest check-in after period end         -> AdvancePaid
       otherwise                                  -> Overpaid
  Tolerance is one minimum currency unit, absorbing the allocator's
  integer-rounding noise.

SEE ALSO:
  - rollup.go: cross-scope consistency validation
  - export.go: ledger-shaped export rows
*/
package billing

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
)

// RoundingTolerance is the fixed reconciliation tolerance: one yen.
func RoundingTolerance() Money { return Yen(1) }

// Engine computes reconciliation results from a FactSource. Stateless
// and safe for concurrent use.
type Engine struct {
	Source FactSource
	Log    *logrus.Logger

	// Tolerance for status classification; defaults to RoundingTolerance.
	Tolerance Money

	// VerifyRollup re-derives the client-scope sums on every hotel-scope
	// call and fails loudly on divergence. A mismatch means two code
	// paths disagree about inclusion.
	VerifyRollup bool
}

// NewEngine creates an engine with the default tolerance.
func NewEngine(src FactSource, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{Source: src, Log: log, Tolerance: RoundingTolerance()}
}

// =============================================================================
// RECONCILE - scope-keyed reconciliation
// =============================================================================

// ReconcileRequest selects the scope, the hotel/client filters, and the
// reporting period.
type ReconcileRequest struct {
	Scope   Scope
	Hotels  []HotelID
	Clients []ClientID
	Period  Period
}

// ReconcileOutput carries one result per scope key touched by the
// filters, plus warnings for every excluded orphan or broken line.
type ReconcileOutput struct {
	Results  []ReconciliationResult
	Warnings []error
}

// Reconcile computes reconciliation results for every scope key matching
// the request. Orphan lines never abort the computation; they are
// excluded, logged, and reported in Warnings.
func (e *Engine) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileOutput, error) {
	if !req.Period.Valid() {
		return nil, ErrInvalidPeriod
	}

	fs, err := loadFacts(ctx, e.Source, FactFilter{
		HotelIDs:  req.Hotels,
		ClientIDs: req.Clients,
		Through:   req.Period.End,
	})
	if err != nil {
		return nil, err
	}

	results, warnings := e.reconcileFacts(fs, req.Scope, req.Period)
	out := &ReconcileOutput{Results: results, Warnings: warnings}

	if e.VerifyRollup && req.Scope == ScopeHotel {
		fine, _ := e.reconcileFacts(fs, ScopeClient, req.Period)
		if err := compareRollup(fine, results, e.Tolerance); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// reconcileFacts is the pure core: one snapshot, one scope, one period.
func (e *Engine) reconcileFacts(fs *factSet, scope Scope, p Period) ([]ReconciliationResult, []error) {
	revenue, revWarnings := aggregateRevenue(fs, scope, p, e.Log)
	payments, payWarnings := aggregatePayments(fs, scope, p, e.Log)

	keys := make(map[ScopeKey]struct{}, len(revenue)+len(payments))
	for k := range revenue {
		keys[k] = struct{}{}
	}
	for k := range payments {
		keys[k] = struct{}{}
	}

	results := make([]ReconciliationResult, 0, len(keys))
	for k := range keys {
		rev := revenue[k]
		if rev == nil {
			rev = newRevenueTotals()
		}
		pay := payments[k]
		if pay == nil {
			pay = newPaymentTotals()
		}
		results = append(results, e.classify(k, p, rev, pay))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Key.HotelID != results[j].Key.HotelID {
			return results[i].Key.HotelID < results[j].Key.HotelID
		}
		return results[i].Key.ClientID < results[j].Key.ClientID
	})
	return results, append(revWarnings, payWarnings...)
}

// classify folds one scope key's totals into the final result.
func (e *Engine) classify(key ScopeKey, p Period, rev *revenueTotals, pay *paymentTotals) ReconciliationResult {
	tol := e.Tolerance
	if tol.IsZero() {
		tol = RoundingTolerance()
	}

	cumDiff := pay.cumulative.Sub(rev.cumulative)

	// Within tolerance the period difference is reported as exactly zero;
	// the cumulative difference is always reported unrounded.
	diff := Yen(0)
	if cumDiff.Abs().GreaterThan(tol) {
		diff = pay.settlement.Sub(rev.period)
	}

	var status SettlementStatus
	switch {
	case !cumDiff.Abs().GreaterThan(tol):
		status = Settled
	case cumDiff.IsNegative():
		status = Outstanding
	case !pay.earliestCheckIn.IsZero() && pay.earliestCheckIn.After(p.End):
		status = AdvancePaid
	default:
		status = Overpaid
	}

	return ReconciliationResult{
		Key:                  key,
		Period:               p,
		PeriodSales:          rev.period,
		CumulativeSales:      rev.cumulative,
		PeriodPayments:       pay.period,
		AdvancePayments:      pay.advance,
		SettlementPayments:   pay.settlement,
		CumulativePayments:   pay.cumulative,
		Difference:           diff,
		CumulativeDifference: cumDiff,
		Status:               status,
		EarliestCheckIn:      pay.earliestCheckIn,
	}
}

// =============================================================================
// PER-RESERVATION DRILL-DOWN
// =============================================================================

// NightBreakdown is one allocated nightly charge in a drill-down.
type NightBreakdown struct {
	ChargeID ChargeID
	Date     DateStamp
	Total    Money
	Buckets  []TaxBucket
}

// ReservationBreakdown is the per-reservation view. It uses the same
// inclusion predicate and allocator as every aggregate scope, so the
// drill-down can never show figures the statement does not.
type ReservationBreakdown struct {
	Reservation ReservationFact
	Result      ReconciliationResult
	Nights      []NightBreakdown
	Addons      []AddonFact
	Payments    []PaymentFact

	// BroughtForwardBalance is cumulative payments minus cumulative sales
	// strictly before the period start, for display continuity across
	// period boundaries.
	BroughtForwardBalance Money
}

// ReconcileReservation computes the drill-down for one reservation.
func (e *Engine) ReconcileReservation(ctx context.Context, id ReservationID, p Period) (*ReservationBreakdown, error) {
	if !p.Valid() {
		return nil, ErrInvalidPeriod
	}

	fs, err := loadFacts(ctx, e.Source, FactFilter{Through: p.End})
	if err != nil {
		return nil, err
	}
	res, ok := fs.owner(id)
	if !ok {
		return nil, ErrReservationNotFound
	}

	sub := fs.restrictTo(id)
	results, _ := e.reconcileFacts(sub, ScopeClient, p)

	result := e.classify(ClientKey(res.HotelID, res.ClientID), p, newRevenueTotals(), newPaymentTotals())
	if len(results) > 0 {
		result = results[0]
	}

	bd := &ReservationBreakdown{
		Reservation:           res,
		Result:                result,
		BroughtForwardBalance: e.broughtForward(sub, p.Start),
	}

	for _, line := range sub.charges {
		if !Includable(res, line) {
			continue
		}
		buckets, err := Allocate(line, sub.overrides[line.ID])
		if err != nil {
			continue // already warned during aggregation
		}
		bd.Nights = append(bd.Nights, NightBreakdown{
			ChargeID: line.ID,
			Date:     line.Date,
			Total:    line.Total(),
			Buckets:  buckets,
		})
	}
	if reservationIncludable(res) {
		bd.Addons = append(bd.Addons, sub.addons...)
		bd.Payments = append(bd.Payments, sub.payments...)
	}
	return bd, nil
}

// broughtForward computes cumulative payments minus cumulative sales for
// facts dated strictly before the cutoff.
func (e *Engine) broughtForward(fs *factSet, cutoff DateStamp) Money {
	before := fs.before(cutoff)
	// The window is empty on purpose: only the cumulative figures matter.
	empty := Period{Start: cutoff, End: cutoff}

	sales := Yen(0)
	revenue, _ := aggregateRevenue(before, ScopePortfolio, empty, e.Log)
	for _, t := range revenue {
		sales = sales.Add(t.cumulative)
	}
	paid := Yen(0)
	payments, _ := aggregatePayments(before, ScopePortfolio, empty, e.Log)
	for _, t := range payments {
		paid = paid.Add(t.cumulative)
	}
	return paid.Sub(sales)
}

// =============================================================================
// FACT SET VIEWS
// =============================================================================

// restrictTo returns a view containing only one reservation's lines.
func (fs *factSet) restrictTo(id ReservationID) *factSet {
	sub := &factSet{
		reservations: fs.reservations,
		overrides:    fs.overrides,
		chargeOwner:  fs.chargeOwner,
	}
	for _, c := range fs.charges {
		if c.ReservationID == id {
			sub.charges = append(sub.charges, c)
		}
	}
	for _, a := range fs.addons {
		if fs.chargeOwner[a.ChargeID] == id {
			sub.addons = append(sub.addons, a)
		}
	}
	for _, p := range fs.payments {
		if p.ReservationID == id {
			sub.payments = append(sub.payments, p)
		}
	}
	return sub
}

// before returns a view containing only facts dated strictly before the
// cutoff day.
func (fs *factSet) before(cutoff DateStamp) *factSet {
	sub := &factSet{
		reservations: fs.reservations,
		overrides:    fs.overrides,
		chargeOwner:  fs.chargeOwner,
	}
	for _, c := range fs.charges {
		if c.Date.Before(cutoff) {
			sub.charges = append(sub.charges, c)
		}
	}
	for _, a := range fs.addons {
		if a.Date.Before(cutoff) {
			sub.addons = append(sub.addons, a)
		}
	}
	for _, p := range fs.payments {
		if p.Date.Before(cutoff) {
			sub.payments = append(sub.payments, p)
		}
	}
	return sub
}
