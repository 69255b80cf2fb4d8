/*
inclusion.go - The single inclusion predicate

PURPOSE:
  Decides whether a nightly charge contributes to revenue. This predicate
  exists exactly once and every aggregation entry point goes through it:
  per-client, per-hotel, portfolio, per-reservation, and the ledger export
  all see the same set of lines.

  The historical discrepancy this engine replaces came from two code paths
  re-expressing this rule independently (one inner-joined against the
  override table and silently dropped billable lines with zero overrides).
  Never duplicate this logic per scope.
*/
package billing

// Includable reports whether a nightly charge contributes to revenue:
// the line must be billable and not cancelled, and its reservation must
// be in a real stay state (not hold/block/cancelled) of a billable type
// (not employee/internal).
//
// Date-range filtering is NOT part of this predicate: period and
// cumulative windows differ per figure, while inclusion never does.
func Includable(res ReservationFact, line NightlyChargeFact) bool {
	if !line.Billable || line.Cancelled {
		return false
	}
	return reservationIncludable(res)
}

// reservationIncludable is the reservation-level half of the predicate,
// shared with payment aggregation: payments on hold/block or internal
// reservations are excluded the same way their charges are.
func reservationIncludable(res ReservationFact) bool {
	if res.Status.IsBlocking() {
		return false
	}
	return !res.Type.IsInternal()
}
