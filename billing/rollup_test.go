package billing_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lodgeworks/billing-engine/billing"
	"github.com/lodgeworks/billing-engine/billing/source"
)

// populatedPortfolio seeds two hotels and three clients with charges,
// overrides, add-ons, and payments spread across November and December.
func populatedPortfolio() *source.Memory {
	mem := source.NewMemory()
	hotels := []string{"H1", "H2"}
	clients := []string{"C1", "C2", "C3"}

	n := 0
	for _, h := range hotels {
		for _, c := range clients {
			n++
			resID := fmt.Sprintf("res-%s-%s", h, c)
			mem.AddReservation(guestStay(resID, h, c, billing.NewDate(2025, 12, n)))

			mem.AddCharge(chargeOn(fmt.Sprintf("n-%d-a", n), resID, billing.NewDate(2025, 11, n+5), int64(4000+300*n)))
			mem.AddCharge(chargeOn(fmt.Sprintf("n-%d-b", n), resID, billing.NewDate(2025, 12, n), int64(9000+700*n)),
				billing.RateOverrideFact{ID: billing.OverrideID(n*10 + 1), ChargeID: billing.ChargeID(fmt.Sprintf("n-%d-b", n)), TaxRate: rate("0.08"), Price: billing.Yen(3000)},
				billing.RateOverrideFact{ID: billing.OverrideID(n*10 + 2), ChargeID: billing.ChargeID(fmt.Sprintf("n-%d-b", n)), TaxRate: rate("0.10"), Price: billing.Yen(5000)},
			)
			mem.AddPayment(paymentOn(resID, billing.NewDate(2025, 12, n+2), int64(6000+500*n)))
		}
	}
	return mem
}

func TestValidateRollup_ConsistentAcrossScopes(t *testing.T) {
	// GIVEN: A populated portfolio
	// WHEN: Validating client -> hotel -> portfolio rollup for December
	// THEN: No mismatch; every figure sums across scope levels

	engine := billing.NewEngine(populatedPortfolio(), nil)
	err := engine.ValidateRollup(context.Background(), billing.ReconcileRequest{
		Scope:  billing.ScopeHotel,
		Period: december2025(),
	})
	if err != nil {
		t.Fatalf("rollup must be consistent: %v", err)
	}
}

func TestRollup_ScopeSumsAgreeFigureByFigure(t *testing.T) {
	// GIVEN: The same fact set reconciled at client and portfolio scope
	// WHEN: Summing the client results by hand
	// THEN: The sums match the portfolio row exactly

	engine := billing.NewEngine(populatedPortfolio(), nil)
	ctx := context.Background()

	clients, err := engine.Reconcile(ctx, billing.ReconcileRequest{Scope: billing.ScopeClient, Period: december2025()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	portfolio, err := engine.Reconcile(ctx, billing.ReconcileRequest{Scope: billing.ScopePortfolio, Period: december2025()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(portfolio.Results) != 1 {
		t.Fatalf("expected a single portfolio row, got %d", len(portfolio.Results))
	}

	sales, payments, cumulative := billing.Yen(0), billing.Yen(0), billing.Yen(0)
	for _, r := range clients.Results {
		sales = sales.Add(r.PeriodSales)
		payments = payments.Add(r.PeriodPayments)
		cumulative = cumulative.Add(r.CumulativeSales)
	}

	p := portfolio.Results[0]
	if !sales.Equal(p.PeriodSales) {
		t.Errorf("period sales: client sum %v != portfolio %v", sales, p.PeriodSales)
	}
	if !payments.Equal(p.PeriodPayments) {
		t.Errorf("period payments: client sum %v != portfolio %v", payments, p.PeriodPayments)
	}
	if !cumulative.Equal(p.CumulativeSales) {
		t.Errorf("cumulative sales: client sum %v != portfolio %v", cumulative, p.CumulativeSales)
	}
}

func TestReconcile_VerifyRollupFlag_PassesOnConsistentData(t *testing.T) {
	// GIVEN: An engine with the per-request rollup check enabled
	// WHEN: Reconciling at hotel scope
	// THEN: The call succeeds; the shadow client-scope sums agree

	engine := billing.NewEngine(populatedPortfolio(), nil)
	engine.VerifyRollup = true

	out, err := engine.Reconcile(context.Background(), billing.ReconcileRequest{
		Scope:  billing.ScopeHotel,
		Period: december2025(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Results) != 2 {
		t.Errorf("expected one row per hotel, got %d", len(out.Results))
	}
}

func TestValidateRollup_HotelFilterStillConsistent(t *testing.T) {
	// GIVEN: A request narrowed to one hotel
	// WHEN: Validating the rollup
	// THEN: Filters apply identically at every scope, so it still holds

	engine := billing.NewEngine(populatedPortfolio(), nil)
	err := engine.ValidateRollup(context.Background(), billing.ReconcileRequest{
		Scope:  billing.ScopeHotel,
		Hotels: []billing.HotelID{"H1"},
		Period: december2025(),
	})
	if err != nil {
		t.Fatalf("filtered rollup must be consistent: %v", err)
	}
}

func TestValidateRollup_InvalidPeriod(t *testing.T) {
	engine := billing.NewEngine(source.NewMemory(), nil)
	err := engine.ValidateRollup(context.Background(), billing.ReconcileRequest{
		Scope: billing.ScopeHotel,
		Period: billing.Period{
			Start: billing.NewDate(2025, 12, 31),
			End:   billing.NewDate(2025, 12, 1),
		},
	})
	if !errors.Is(err, billing.ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
}
