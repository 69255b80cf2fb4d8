/*
rollup.go - Cross-scope consistency validation

PURPOSE:
  Asserts that summing the fine-scope results reproduces the coarse-scope
  result for the same period and filters: sum of client figures equals
  the hotel figure, sum of hotel figures equals the portfolio figure.
  Any violation indicates an inclusion/exclusion mismatch between two
  code paths - the exact class of bug this system historically shipped -
  and must fail loudly rather than silently diverge.

TOLERANCE:
  Rounding tolerance scales with the number of fine-scope keys being
  summed, since each key may independently carry up to one unit of
  rounding noise.
*/
package billing

import "context"

// ValidateRollup recomputes the request at client, hotel, and portfolio
// scope from one fact snapshot and checks that each level sums to the
// next. Returns a ScopeRollupMismatchError on the first divergence.
func (e *Engine) ValidateRollup(ctx context.Context, req ReconcileRequest) error {
	if !req.Period.Valid() {
		return ErrInvalidPeriod
	}

	fs, err := loadFacts(ctx, e.Source, FactFilter{
		HotelIDs:  req.Hotels,
		ClientIDs: req.Clients,
		Through:   req.Period.End,
	})
	if err != nil {
		return err
	}

	clients, _ := e.reconcileFacts(fs, ScopeClient, req.Period)
	hotels, _ := e.reconcileFacts(fs, ScopeHotel, req.Period)
	portfolio, _ := e.reconcileFacts(fs, ScopePortfolio, req.Period)

	tol := e.Tolerance
	if tol.IsZero() {
		tol = RoundingTolerance()
	}
	if err := compareRollup(clients, hotels, tol); err != nil {
		return err
	}
	return compareRollup(hotels, portfolio, tol)
}

// compareRollup checks that the fine results, grouped onto the coarse
// keys, reproduce each coarse result within tolerance x group size.
func compareRollup(fine, coarse []ReconciliationResult, tol Money) error {
	type sums struct {
		periodSales     Money
		periodPayments  Money
		cumulativeSales Money
		count           int64
	}
	grouped := make(map[ScopeKey]*sums)
	for _, r := range fine {
		ck := coarsenKey(r.Key, coarse)
		s, ok := grouped[ck]
		if !ok {
			s = &sums{periodSales: Yen(0), periodPayments: Yen(0), cumulativeSales: Yen(0)}
			grouped[ck] = s
		}
		s.periodSales = s.periodSales.Add(r.PeriodSales)
		s.periodPayments = s.periodPayments.Add(r.PeriodPayments)
		s.cumulativeSales = s.cumulativeSales.Add(r.CumulativeSales)
		s.count++
	}

	for _, c := range coarse {
		s := grouped[c.Key]
		if s == nil {
			s = &sums{periodSales: Yen(0), periodPayments: Yen(0), cumulativeSales: Yen(0), count: 1}
		}
		limit := tol.MulInt(s.count)
		checks := []struct {
			figure  string
			fineSum Money
			coarse  Money
		}{
			{"period_sales", s.periodSales, c.PeriodSales},
			{"period_payments", s.periodPayments, c.PeriodPayments},
			{"cumulative_sales", s.cumulativeSales, c.CumulativeSales},
		}
		for _, chk := range checks {
			if chk.fineSum.Sub(chk.coarse).Abs().GreaterThan(limit) {
				return &ScopeRollupMismatchError{
					Figure:    chk.figure,
					Key:       c.Key,
					FineSum:   chk.fineSum,
					CoarseSum: chk.coarse,
					Tolerance: limit,
				}
			}
		}
	}
	return nil
}

// coarsenKey maps a fine key onto the granularity of the coarse results:
// hotel keys when the coarse side is per-hotel, the portfolio key when
// the coarse side is a single portfolio row.
func coarsenKey(fine ScopeKey, coarse []ReconciliationResult) ScopeKey {
	if len(coarse) > 0 && coarse[0].Key == PortfolioKey() {
		return PortfolioKey()
	}
	return HotelKey(fine.HotelID)
}
