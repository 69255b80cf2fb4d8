/*
Package export serializes ledger rows for downstream accounting systems.

PURPOSE:
  Two sinks over the same billing.LedgerRow listing:
  - CSV: the canonical artifact. Fixed header, fixed field formats, rows
    already totally ordered by the engine - the same fact snapshot always
    produces the same bytes.
  - XLSX: a convenience sink for accounting teams (xlsx.go). Not
    byte-stable (the zip container embeds timestamps), so never used as
    the artifact of record.
*/
package export

import (
	"encoding/csv"
	"io"

	"github.com/lodgeworks/billing-engine/billing"
)

// csvHeader is fixed; changing it breaks downstream imports.
var csvHeader = []string{"date", "hotel_id", "client_id", "kind", "tax_rate", "sales", "payment"}

// WriteCSV serializes rows to w. Byte-reproducible for a given row
// slice: no timestamps, no locale-dependent formatting.
func WriteCSV(w io.Writer, rows []billing.LedgerRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Date.String(),
			string(row.HotelID),
			string(row.ClientID),
			row.Kind,
			formatRate(row),
			row.Sales.String(),
			row.Payment.String(),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatRate renders the tax rate with two decimals; payment rows have
// no rate and render empty.
func formatRate(row billing.LedgerRow) string {
	if row.Kind == "payment" {
		return ""
	}
	return row.TaxRate.StringFixed(2)
}
