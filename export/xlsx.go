package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/lodgeworks/billing-engine/billing"
)

const ledgerSheet = "Ledger"

// WriteXLSX serializes rows as a workbook for accounting teams. The CSV
// sink remains the artifact of record; see the package comment.
func WriteXLSX(w io.Writer, rows []billing.LedgerRow) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), ledgerSheet)

	for col, name := range csvHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(ledgerSheet, cell, name); err != nil {
			return err
		}
	}

	for i, row := range rows {
		values := []any{
			row.Date.String(),
			string(row.HotelID),
			string(row.ClientID),
			row.Kind,
			formatRate(row),
			row.Sales.String(),
			row.Payment.String(),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(ledgerSheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
