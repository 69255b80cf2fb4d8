/*
fixtures.go - Loadable demo fact sets

PURPOSE:
  Named fact sets for demos and manual verification. Each fixture wipes
  the fact tables and seeds a self-contained scenario with known
  reconciliation outcomes, so a reviewer can load one and check the API
  figures by hand.

SEE ALSO:
  - handlers.go: ListFixtures / LoadFixture endpoints
  - store/sqlite: Insert* write side
*/
package api

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lodgeworks/billing-engine/billing"
	"github.com/lodgeworks/billing-engine/store/sqlite"
)

// Fixture is a named, loadable fact set.
type Fixture struct {
	Name        string
	Description string
	Load        func(ctx context.Context, s *sqlite.Store) error
}

// Fixtures lists every loadable fixture, in menu order.
var Fixtures = []Fixture{
	{
		Name:        "december-settled",
		Description: "One hotel, one client, December 2025. A 10000 yen night split across 0.10 and 0.08 tax buckets, fully paid mid-month. Expected status: settled.",
		Load:        loadDecemberSettled,
	},
	{
		Name:        "advance-payment",
		Description: "Payment captured in December 2025 for a stay checking in January 2026. Expected status for December: advance_paid.",
		Load:        loadAdvancePayment,
	},
	{
		Name:        "portfolio-demo",
		Description: "Two hotels, three corporate clients, mixed statuses across December 2025, including an internal stay and a cancelled charge that must not bill.",
		Load:        loadPortfolioDemo,
	},
}

func findFixture(name string) *Fixture {
	for i := range Fixtures {
		if Fixtures[i].Name == name {
			return &Fixtures[i]
		}
	}
	return nil
}

func rate(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func date(s string) billing.DateStamp {
	d, err := billing.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// loadDecemberSettled seeds the worked example from the billing handbook:
// overrides 3000@0.08 and 6500@0.10 against a 10000 yen night allocate as
// 7000@0.10 (spillover absorbed by the highest rate) and 3000@0.08.
func loadDecemberSettled(ctx context.Context, s *sqlite.Store) error {
	res := billing.ReservationFact{
		ID:       "R-1001",
		HotelID:  "H-TOKYO",
		ClientID: "C-ACME",
		CheckIn:  date("2025-12-10"),
		CheckOut: date("2025-12-12"),
		Status:   billing.ResCheckedOut,
		Type:     billing.ResTypeGuest,
	}
	if err := s.InsertReservation(ctx, res); err != nil {
		return err
	}

	charge := billing.NightlyChargeFact{
		ID:            "N-1001-1",
		ReservationID: res.ID,
		Date:          date("2025-12-10"),
		Price:         billing.Yen(10000),
		Mode:          billing.PricePerRoom,
		Occupants:     1,
		Billable:      true,
	}
	overrides := []billing.RateOverrideFact{
		{ID: 1, ChargeID: charge.ID, TaxRate: rate("0.08"), Price: billing.Yen(3000)},
		{ID: 2, ChargeID: charge.ID, TaxRate: rate("0.10"), Price: billing.Yen(6500)},
	}
	if err := s.InsertNightlyCharge(ctx, charge, overrides...); err != nil {
		return err
	}

	return s.InsertPayment(ctx, billing.PaymentFact{
		ReservationID: res.ID,
		Date:          date("2025-12-15"),
		Value:         billing.Yen(10000),
	})
}

// loadAdvancePayment seeds a deposit for a January stay, captured in
// December. December-scope reconciliation must classify the payment as
// advance and report advance_paid, not overpaid.
func loadAdvancePayment(ctx context.Context, s *sqlite.Store) error {
	res := billing.ReservationFact{
		ID:       "R-2001",
		HotelID:  "H-TOKYO",
		ClientID: "C-ACME",
		CheckIn:  date("2026-01-05"),
		CheckOut: date("2026-01-08"),
		Status:   billing.ResConfirmed,
		Type:     billing.ResTypeGuest,
	}
	if err := s.InsertReservation(ctx, res); err != nil {
		return err
	}

	return s.InsertPayment(ctx, billing.PaymentFact{
		ReservationID: res.ID,
		Date:          date("2025-12-20"),
		Value:         billing.Yen(30000),
	})
}

func loadPortfolioDemo(ctx context.Context, s *sqlite.Store) error {
	type stay struct {
		res      billing.ReservationFact
		nights   []billing.NightlyChargeFact
		addons   []billing.AddonFact
		payments []billing.PaymentFact
	}

	stays := []stay{
		{
			// Settled corporate stay, single rate.
			res: billing.ReservationFact{
				ID: "R-3001", HotelID: "H-TOKYO", ClientID: "C-ACME",
				CheckIn: date("2025-12-01"), CheckOut: date("2025-12-03"),
				Status: billing.ResCheckedOut, Type: billing.ResTypeGuest,
			},
			nights: []billing.NightlyChargeFact{
				{ID: "N-3001-1", ReservationID: "R-3001", Date: date("2025-12-01"), Price: billing.Yen(12000), Mode: billing.PricePerRoom, Occupants: 1, Billable: true},
				{ID: "N-3001-2", ReservationID: "R-3001", Date: date("2025-12-02"), Price: billing.Yen(12000), Mode: billing.PricePerRoom, Occupants: 1, Billable: true},
			},
			addons: []billing.AddonFact{
				{ChargeID: "N-3001-1", Date: date("2025-12-01"), Price: billing.Yen(1500), Quantity: 2, TaxRate: decimal.RequireFromString("0.08")},
			},
			payments: []billing.PaymentFact{
				{ReservationID: "R-3001", Date: date("2025-12-05"), Value: billing.Yen(27000)},
			},
		},
		{
			// Outstanding: per-person pricing, only half paid.
			res: billing.ReservationFact{
				ID: "R-3002", HotelID: "H-TOKYO", ClientID: "C-GLOBEX",
				CheckIn: date("2025-12-08"), CheckOut: date("2025-12-09"),
				Status: billing.ResCheckedOut, Type: billing.ResTypeGuest,
			},
			nights: []billing.NightlyChargeFact{
				{ID: "N-3002-1", ReservationID: "R-3002", Date: date("2025-12-08"), Price: billing.Yen(8000), Mode: billing.PricePerPerson, Occupants: 2, Billable: true},
			},
			payments: []billing.PaymentFact{
				{ReservationID: "R-3002", Date: date("2025-12-08"), Value: billing.Yen(8000)},
			},
		},
		{
			// Overpaid: the client wired too much.
			res: billing.ReservationFact{
				ID: "R-3003", HotelID: "H-OSAKA", ClientID: "C-INITECH",
				CheckIn: date("2025-12-12"), CheckOut: date("2025-12-13"),
				Status: billing.ResCheckedOut, Type: billing.ResTypeGuest,
			},
			nights: []billing.NightlyChargeFact{
				{ID: "N-3003-1", ReservationID: "R-3003", Date: date("2025-12-12"), Price: billing.Yen(9500), Mode: billing.PricePerRoom, Occupants: 1, Billable: true},
			},
			payments: []billing.PaymentFact{
				{ReservationID: "R-3003", Date: date("2025-12-14"), Value: billing.Yen(12000)},
			},
		},
		{
			// Internal stay: charged in the PMS but excluded from billing.
			res: billing.ReservationFact{
				ID: "R-3004", HotelID: "H-OSAKA", ClientID: "C-INITECH",
				CheckIn: date("2025-12-18"), CheckOut: date("2025-12-19"),
				Status: billing.ResCheckedOut, Type: billing.ResTypeEmployee,
			},
			nights: []billing.NightlyChargeFact{
				{ID: "N-3004-1", ReservationID: "R-3004", Date: date("2025-12-18"), Price: billing.Yen(5000), Mode: billing.PricePerRoom, Occupants: 1, Billable: true},
			},
		},
		{
			// Cancelled night: stays on the books, contributes nothing.
			res: billing.ReservationFact{
				ID: "R-3005", HotelID: "H-OSAKA", ClientID: "C-ACME",
				CheckIn: date("2025-12-22"), CheckOut: date("2025-12-23"),
				Status: billing.ResCancelled, Type: billing.ResTypeGuest,
			},
			nights: []billing.NightlyChargeFact{
				{ID: "N-3005-1", ReservationID: "R-3005", Date: date("2025-12-22"), Price: billing.Yen(11000), Mode: billing.PricePerRoom, Occupants: 1, Billable: true, Cancelled: true},
			},
		},
	}

	for _, st := range stays {
		if err := s.InsertReservation(ctx, st.res); err != nil {
			return err
		}
		for _, n := range st.nights {
			if err := s.InsertNightlyCharge(ctx, n); err != nil {
				return err
			}
		}
		for _, a := range st.addons {
			if err := s.InsertAddon(ctx, a); err != nil {
				return err
			}
		}
		for _, p := range st.payments {
			if err := s.InsertPayment(ctx, p); err != nil {
				return err
			}
		}
	}

	// A multi-rate night at the second hotel, mirroring the handbook
	// split, paid in full.
	multiRes := billing.ReservationFact{
		ID: "R-3006", HotelID: "H-OSAKA", ClientID: "C-GLOBEX",
		CheckIn: date("2025-12-27"), CheckOut: date("2025-12-28"),
		Status: billing.ResCheckedOut, Type: billing.ResTypeGuest,
	}
	if err := s.InsertReservation(ctx, multiRes); err != nil {
		return err
	}
	multi := billing.NightlyChargeFact{
		ID: "N-3006-1", ReservationID: multiRes.ID, Date: date("2025-12-27"),
		Price: billing.Yen(6000), Mode: billing.PricePerRoom, Occupants: 1, Billable: true,
	}
	if err := s.InsertNightlyCharge(ctx, multi,
		billing.RateOverrideFact{ID: 10, ChargeID: multi.ID, TaxRate: rate("0.08"), Price: billing.Yen(2000)},
		billing.RateOverrideFact{ID: 11, ChargeID: multi.ID, TaxRate: rate("0.10"), Price: billing.Yen(4000)},
	); err != nil {
		return err
	}
	return s.InsertPayment(ctx, billing.PaymentFact{
		ReservationID: multiRes.ID, Date: date("2025-12-28"), Value: billing.Yen(6000),
	})
}
