/*
payments.go - Payment classification and aggregation

PURPOSE:
  Groups payment lines by scope key and splits period payments into
  advance vs. settlement by comparing the owning reservation's check-in
  date to the period end.

PARTITION INVARIANT:
  periodPayments == advancePayments + settlementPayments, exactly, for
  every scope key, always. Each payment in the window lands in exactly
  one side of the split; there is no third class.
*/
package billing

import (
	"github.com/sirupsen/logrus"
)

// paymentTotals accumulates payment figures for one scope key.
type paymentTotals struct {
	period     Money
	advance    Money
	settlement Money
	cumulative Money

	// earliestCheckIn across the scope's reservations that carry
	// payments; the representative check-in for status classification.
	earliestCheckIn DateStamp
}

func newPaymentTotals() *paymentTotals {
	return &paymentTotals{
		period:     Yen(0),
		advance:    Yen(0),
		settlement: Yen(0),
		cumulative: Yen(0),
	}
}

func (t *paymentTotals) add(pay PaymentFact, checkIn DateStamp, p Period) {
	if t.earliestCheckIn.IsZero() || checkIn.Before(t.earliestCheckIn) {
		t.earliestCheckIn = checkIn
	}
	// Loader guarantees pay.Date <= p.End.
	t.cumulative = t.cumulative.Add(pay.Value)
	if !p.Contains(pay.Date) {
		return
	}
	t.period = t.period.Add(pay.Value)
	if checkIn.After(p.End) {
		t.advance = t.advance.Add(pay.Value)
	} else {
		t.settlement = t.settlement.Add(pay.Value)
	}
}

// aggregatePayments walks every payment in the snapshot once. Payments on
// hold/block or internal reservations are excluded with the same
// reservation-level rule the revenue side uses, so the two sides can
// never disagree about which reservations exist.
func aggregatePayments(fs *factSet, scope Scope, p Period, log *logrus.Logger) (map[ScopeKey]*paymentTotals, []error) {
	totals := make(map[ScopeKey]*paymentTotals)
	var warnings []error

	for _, pay := range fs.payments {
		res, ok := fs.owner(pay.ReservationID)
		if !ok {
			err := &MissingReferenceError{Kind: "payment", ReservationID: pay.ReservationID}
			log.WithFields(logrus.Fields{
				"reservation": pay.ReservationID,
				"date":        pay.Date.String(),
				"value":       pay.Value.String(),
			}).Warn("excluding orphan payment")
			warnings = append(warnings, err)
			continue
		}
		if !reservationIncludable(res) {
			continue
		}

		key := keyFor(scope, res)
		t, okT := totals[key]
		if !okT {
			t = newPaymentTotals()
			totals[key] = t
		}
		t.add(pay, res.CheckIn, p)
	}

	return totals, warnings
}
