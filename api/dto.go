/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP surface, decoupling the engine's internal
  types from the external contract. Money serializes as whole-yen
  strings; dates as YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - billing/reconcile.go: Source types
*/
package api

import (
	"github.com/lodgeworks/billing-engine/billing"
	"github.com/lodgeworks/billing-engine/store/sqlite"
)

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconciliationResultDTO is one scope key's reconciliation figures.
type ReconciliationResultDTO struct {
	HotelID  string `json:"hotel_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`

	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`

	PeriodSales     string `json:"period_sales"`
	CumulativeSales string `json:"cumulative_sales"`

	PeriodPayments     string `json:"period_payments"`
	AdvancePayments    string `json:"advance_payments"`
	SettlementPayments string `json:"settlement_payments"`
	CumulativePayments string `json:"cumulative_payments"`

	Difference           string `json:"difference"`
	CumulativeDifference string `json:"cumulative_difference"`
	Status               string `json:"status"`
}

// ReconcileResponseDTO wraps the results with exclusion warnings.
type ReconcileResponseDTO struct {
	Scope    string                    `json:"scope"`
	Results  []ReconciliationResultDTO `json:"results"`
	Warnings []string                  `json:"warnings,omitempty"`
}

func toResultDTO(r billing.ReconciliationResult) ReconciliationResultDTO {
	return ReconciliationResultDTO{
		HotelID:              string(r.Key.HotelID),
		ClientID:             string(r.Key.ClientID),
		PeriodStart:          r.Period.Start.String(),
		PeriodEnd:            r.Period.End.String(),
		PeriodSales:          r.PeriodSales.String(),
		CumulativeSales:      r.CumulativeSales.String(),
		PeriodPayments:       r.PeriodPayments.String(),
		AdvancePayments:      r.AdvancePayments.String(),
		SettlementPayments:   r.SettlementPayments.String(),
		CumulativePayments:   r.CumulativePayments.String(),
		Difference:           r.Difference.String(),
		CumulativeDifference: r.CumulativeDifference.String(),
		Status:               string(r.Status),
	}
}

// =============================================================================
// RESERVATION DRILL-DOWN
// =============================================================================

type TaxBucketDTO struct {
	Rate   string `json:"rate"`
	Amount string `json:"amount"`
}

type NightDTO struct {
	ChargeID string         `json:"charge_id"`
	Date     string         `json:"date"`
	Total    string         `json:"total"`
	Buckets  []TaxBucketDTO `json:"buckets"`
}

type AddonDTO struct {
	ChargeID string `json:"charge_id"`
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	TaxRate  string `json:"tax_rate"`
}

type PaymentDTO struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// ReservationBreakdownDTO is the per-reservation drill-down.
type ReservationBreakdownDTO struct {
	ReservationID string `json:"reservation_id"`
	HotelID       string `json:"hotel_id"`
	ClientID      string `json:"client_id"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`

	Result                ReconciliationResultDTO `json:"result"`
	Nights                []NightDTO              `json:"nights"`
	Addons                []AddonDTO              `json:"addons"`
	Payments              []PaymentDTO            `json:"payments"`
	BroughtForwardBalance string                  `json:"brought_forward_balance"`
}

func toBreakdownDTO(b *billing.ReservationBreakdown) ReservationBreakdownDTO {
	dto := ReservationBreakdownDTO{
		ReservationID:         string(b.Reservation.ID),
		HotelID:               string(b.Reservation.HotelID),
		ClientID:              string(b.Reservation.ClientID),
		CheckIn:               b.Reservation.CheckIn.String(),
		CheckOut:              b.Reservation.CheckOut.String(),
		Result:                toResultDTO(b.Result),
		BroughtForwardBalance: b.BroughtForwardBalance.String(),
	}
	for _, n := range b.Nights {
		night := NightDTO{ChargeID: string(n.ChargeID), Date: n.Date.String(), Total: n.Total.String()}
		for _, bk := range n.Buckets {
			night.Buckets = append(night.Buckets, TaxBucketDTO{Rate: bk.Rate.StringFixed(2), Amount: bk.Amount.String()})
		}
		dto.Nights = append(dto.Nights, night)
	}
	for _, a := range b.Addons {
		dto.Addons = append(dto.Addons, AddonDTO{
			ChargeID: string(a.ChargeID),
			Date:     a.Date.String(),
			Amount:   a.Amount().String(),
			TaxRate:  a.TaxRate.StringFixed(2),
		})
	}
	for _, p := range b.Payments {
		dto.Payments = append(dto.Payments, PaymentDTO{Date: p.Date.String(), Value: p.Value.String()})
	}
	return dto
}

// =============================================================================
// RUNS AND FIXTURES
// =============================================================================

// RunDTO is one scheduler run in history listings.
type RunDTO struct {
	ID           string `json:"id"`
	Scope        string `json:"scope"`
	PeriodStart  string `json:"period_start"`
	PeriodEnd    string `json:"period_end"`
	Status       string `json:"status"`
	ResultCount  int    `json:"result_count"`
	WarningCount int    `json:"warning_count"`
	Error        string `json:"error,omitempty"`
	StartedAt    string `json:"started_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

func toRunDTO(r sqlite.RunRecord) RunDTO {
	dto := RunDTO{
		ID:           r.ID,
		Scope:        string(r.Scope),
		PeriodStart:  r.PeriodStart.String(),
		PeriodEnd:    r.PeriodEnd.String(),
		Status:       r.Status,
		ResultCount:  r.ResultCount,
		WarningCount: r.WarningCount,
		Error:        r.Error,
		StartedAt:    r.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if r.CompletedAt != nil {
		dto.CompletedAt = r.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

// FixtureDTO describes a loadable demo fact set.
type FixtureDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadFixtureRequest selects the fixture to load.
type LoadFixtureRequest struct {
	Name string `json:"name"`
}

// ErrorDTO is the error envelope for all failures.
type ErrorDTO struct {
	Error string `json:"error"`
}
