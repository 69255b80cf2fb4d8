/*
export.go - Ledger-shaped export rows

PURPOSE:
  Produces the one persisted artifact the core is allowed to emit: a
  ledger listing (date, scope key, sales amount, payment amount, tax
  rate) for downstream accounting-system export. Rows are fully ordered
  so the same fact snapshot always yields the same byte sequence when
  serialized.

  Inclusion and allocation use the same predicate and allocator as every
  reconciliation scope; the export can never list a line the statements
  exclude.
*/
package billing

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// LedgerRow is one export line. Sales rows carry a tax rate and a zero
// payment; payment rows carry a zero sales amount and no rate.
type LedgerRow struct {
	Date     DateStamp
	HotelID  HotelID
	ClientID ClientID
	Sales    Money
	Payment  Money
	TaxRate  decimal.Decimal // zero on payment rows
	Kind     string          // "room", "addon", "payment"
}

// ExportLedger lists every included sales bucket and payment inside the
// period, in a total deterministic order.
func (e *Engine) ExportLedger(ctx context.Context, req ReconcileRequest) ([]LedgerRow, error) {
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

	var rows []LedgerRow
	for _, line := range fs.charges {
		res, ok := fs.owner(line.ReservationID)
		if !ok || !Includable(res, line) {
			continue
		}
		if !req.Period.Contains(line.Date) {
			continue
		}
		buckets, err := Allocate(line, fs.overrides[line.ID])
		if err != nil {
			continue // excluded and warned by reconciliation
		}
		for _, b := range buckets {
			rows = append(rows, LedgerRow{
				Date:     line.Date,
				HotelID:  res.HotelID,
				ClientID: res.ClientID,
				Sales:    b.Amount,
				Payment:  Yen(0),
				TaxRate:  b.Rate,
				Kind:     "room",
			})
		}
	}
	for _, addon := range fs.addons {
		res, ok := fs.addonOwner(addon.ChargeID)
		if !ok || !reservationIncludable(res) || !req.Period.Contains(addon.Date) {
			continue
		}
		rows = append(rows, LedgerRow{
			Date:     addon.Date,
			HotelID:  res.HotelID,
			ClientID: res.ClientID,
			Sales:    addon.Amount(),
			Payment:  Yen(0),
			TaxRate:  addon.TaxRate,
			Kind:     "addon",
		})
	}
	for _, pay := range fs.payments {
		res, ok := fs.owner(pay.ReservationID)
		if !ok || !reservationIncludable(res) || !req.Period.Contains(pay.Date) {
			continue
		}
		rows = append(rows, LedgerRow{
			Date:     pay.Date,
			HotelID:  res.HotelID,
			ClientID: res.ClientID,
			Sales:    Yen(0),
			Payment:  pay.Value,
			Kind:     "payment",
		})
	}

	sortLedgerRows(rows)
	return rows, nil
}

// sortLedgerRows imposes the total order that makes serialization
// byte-reproducible: date, hotel, client, kind, rate desc, amount.
func sortLedgerRows(rows []LedgerRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.HotelID != b.HotelID {
			return a.HotelID < b.HotelID
		}
		if a.ClientID != b.ClientID {
			return a.ClientID < b.ClientID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if !a.TaxRate.Equal(b.TaxRate) {
			return a.TaxRate.GreaterThan(b.TaxRate)
		}
		return a.Sales.Add(a.Payment).LessThan(b.Sales.Add(b.Payment))
	})
}
