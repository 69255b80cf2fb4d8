/*
aggregator.go - Revenue aggregation

PURPOSE:
  Rolls allocated nightly buckets and add-on amounts into per-scope-key
  period and cumulative sums. Streaming group-by-date accumulation: no
  materialized per-line intermediate, so multi-year cumulative queries
  stay bounded in memory.

INCLUSION:
  Applied exactly once, upstream of allocation, via Includable() - never
  re-expressed per scope. A line excluded here is excluded from every
  scope, every export row, and every drill-down.

ORPHANS:
  A charge or add-on referencing an unknown reservation has no scope key.
  It is excluded, logged with full line detail, and reported as a warning;
  the rest of the computation proceeds.
*/
package billing

import (
	"github.com/sirupsen/logrus"
)

// revenueTotals accumulates sales figures for one scope key.
type revenueTotals struct {
	period     Money
	cumulative Money
}

func newRevenueTotals() *revenueTotals {
	return &revenueTotals{period: Yen(0), cumulative: Yen(0)}
}

func (r *revenueTotals) add(date DateStamp, amount Money, p Period) {
	// Loader guarantees date <= p.End; cumulative has no lower bound.
	r.cumulative = r.cumulative.Add(amount)
	if p.Contains(date) {
		r.period = r.period.Add(amount)
	}
}

// aggregateRevenue walks every charge and add-on in the snapshot once,
// allocating charges across tax buckets and accumulating per scope key.
// Returned warnings carry the excluded orphan/invariant lines.
func aggregateRevenue(fs *factSet, scope Scope, p Period, log *logrus.Logger) (map[ScopeKey]*revenueTotals, []error) {
	totals := make(map[ScopeKey]*revenueTotals)
	var warnings []error

	at := func(key ScopeKey) *revenueTotals {
		t, ok := totals[key]
		if !ok {
			t = newRevenueTotals()
			totals[key] = t
		}
		return t
	}

	for _, line := range fs.charges {
		res, ok := fs.owner(line.ReservationID)
		if !ok {
			err := &MissingReferenceError{Kind: "nightly_charge", ReservationID: line.ReservationID, ChargeID: line.ID}
			log.WithFields(logrus.Fields{
				"charge":      line.ID,
				"reservation": line.ReservationID,
				"date":        line.Date.String(),
				"price":       line.Price.String(),
			}).Warn("excluding orphan nightly charge")
			warnings = append(warnings, err)
			continue
		}
		if !Includable(res, line) {
			continue
		}

		buckets, err := Allocate(line, fs.overrides[line.ID])
		if err != nil {
			// Fatal for this line's contribution only.
			log.WithFields(logrus.Fields{
				"charge":    line.ID,
				"total":     line.Total().String(),
				"overrides": len(fs.overrides[line.ID]),
			}).Error("excluding charge with broken allocation")
			warnings = append(warnings, err)
			continue
		}

		t := at(keyFor(scope, res))
		for _, b := range buckets {
			t.add(line.Date, b.Amount, p)
		}
	}

	for _, addon := range fs.addons {
		res, ok := fs.addonOwner(addon.ChargeID)
		if !ok {
			err := &MissingReferenceError{Kind: "addon", ChargeID: addon.ChargeID}
			log.WithFields(logrus.Fields{
				"charge": addon.ChargeID,
				"date":   addon.Date.String(),
				"amount": addon.Amount().String(),
			}).Warn("excluding orphan addon")
			warnings = append(warnings, err)
			continue
		}
		if !reservationIncludable(res) {
			continue
		}
		at(keyFor(scope, res)).add(addon.Date, addon.Amount(), p)
	}

	return totals, warnings
}
