/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place. The taxonomy is deliberately small:
  everything else in the engine is total, because every division point
  (missing rate, zero overrides, zero price) has an explicit default.

ERROR CATEGORIES:
  1. Reference errors  - a fact line points at a missing reservation
  2. Allocation errors - bucket amounts fail the conservation invariant
  3. Rollup errors     - cross-scope sums diverge beyond tolerance

USAGE:
  Reference and allocation errors never abort a computation: the offending
  line is excluded, logged with full detail, and reported as a warning.
  Rollup errors are always surfaced - a mismatch means two code paths
  disagree about inclusion, the exact bug class this engine exists to
  prevent.
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingReference is returned when a fact line references a
	// reservation that does not exist in the snapshot.
	ErrMissingReference = errors.New("missing reference")

	// ErrAllocationInvariant is returned when allocated bucket amounts do
	// not reproduce the parent charge total.
	ErrAllocationInvariant = errors.New("allocation invariant violated")

	// ErrScopeRollupMismatch is returned when per-client sums diverge from
	// the hotel (or per-hotel from the portfolio) beyond tolerance.
	ErrScopeRollupMismatch = errors.New("scope rollup mismatch")

	// ErrInvalidPeriod is returned when a period is malformed (end before
	// start, or zero bounds).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrReservationNotFound is returned by per-reservation drill-downs
	// for an unknown reservation id.
	ErrReservationNotFound = errors.New("reservation not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry line-level context
// =============================================================================

// MissingReferenceError identifies the orphan line. The scope key of an
// orphan is unknowable, so the line is excluded everywhere.
type MissingReferenceError struct {
	Kind          string // "nightly_charge", "addon", "payment"
	ReservationID ReservationID
	ChargeID      ChargeID
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("%s references unknown reservation %q (charge %q)",
		e.Kind, e.ReservationID, e.ChargeID)
}

func (e *MissingReferenceError) Unwrap() error { return ErrMissingReference }

// AllocationInvariantError carries the full line detail; silently
// continuing with a bad allocation would reintroduce the discrepancy bug.
type AllocationInvariantError struct {
	ChargeID  ChargeID
	Total     Money
	Allocated Money
	Buckets   []TaxBucket
}

func (e *AllocationInvariantError) Error() string {
	return fmt.Sprintf("allocation for charge %q sums to %s, expected %s (%d buckets)",
		e.ChargeID, e.Allocated, e.Total, len(e.Buckets))
}

func (e *AllocationInvariantError) Unwrap() error { return ErrAllocationInvariant }

// ScopeRollupMismatchError reports one diverging figure between two
// aggregation scopes computed over identical filters.
type ScopeRollupMismatchError struct {
	Figure    string // "period_sales", "period_payments", ...
	Key       ScopeKey
	FineSum   Money
	CoarseSum Money
	Tolerance Money
}

func (e *ScopeRollupMismatchError) Error() string {
	return fmt.Sprintf("rollup mismatch on %s at %s: fine-scope sum = %s, coarse figure = %s (tolerance %s)",
		e.Figure, e.Key, e.FineSum, e.CoarseSum, e.Tolerance)
}

func (e *ScopeRollupMismatchError) Unwrap() error { return ErrScopeRollupMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrReservationNotFound)
}

// IsFatal returns true for errors that must never be swallowed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrScopeRollupMismatch)
}
