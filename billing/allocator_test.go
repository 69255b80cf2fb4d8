package billing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lodgeworks/billing-engine/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func rate(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func night(id string, price int64) billing.NightlyChargeFact {
	return billing.NightlyChargeFact{
		ID:            billing.ChargeID(id),
		ReservationID: "res-1",
		Date:          billing.NewDate(2025, 12, 10),
		Price:         billing.Yen(price),
		Mode:          billing.PricePerRoom,
		Occupants:     1,
		Billable:      true,
	}
}

func bucketSum(buckets []billing.TaxBucket) billing.Money {
	sum := billing.Yen(0)
	for _, b := range buckets {
		sum = sum.Add(b.Amount)
	}
	return sum
}

// =============================================================================
// ALLOCATION TESTS
// =============================================================================

func TestAllocate_NoOverrides_SyntheticDefaultBucket(t *testing.T) {
	// GIVEN: A 10000 yen night with zero override rows
	// WHEN: Allocating
	// THEN: One bucket at the default rate carries the full total

	buckets, err := billing.Allocate(night("n-1", 10000), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	if !buckets[0].Rate.Equal(billing.DefaultTaxRate()) {
		t.Errorf("expected default rate, got %v", buckets[0].Rate)
	}
	if !buckets[0].Amount.Equal(billing.Yen(10000)) {
		t.Errorf("expected 10000, got %v", buckets[0].Amount)
	}
}

func TestAllocate_SpilloverAbsorbedByHighestRate(t *testing.T) {
	// GIVEN: The worked example: 10000 total, overrides 3000@0.08 and 6500@0.10
	// WHEN: Allocating
	// THEN: The 0.10 slice absorbs the 500 yen spillover: 7000@0.10, 3000@0.08

	line := night("n-1", 10000)
	overrides := []billing.RateOverrideFact{
		{ID: 1, ChargeID: line.ID, TaxRate: rate("0.08"), Price: billing.Yen(3000)},
		{ID: 2, ChargeID: line.ID, TaxRate: rate("0.10"), Price: billing.Yen(6500)},
	}

	buckets, err := billing.Allocate(line, overrides)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if !buckets[0].Rate.Equal(decimal.RequireFromString("0.10")) || !buckets[0].Amount.Equal(billing.Yen(7000)) {
		t.Errorf("expected 7000@0.10 first, got %v@%v", buckets[0].Amount, buckets[0].Rate)
	}
	if !buckets[1].Rate.Equal(decimal.RequireFromString("0.08")) || !buckets[1].Amount.Equal(billing.Yen(3000)) {
		t.Errorf("expected 3000@0.08 second, got %v@%v", buckets[1].Amount, buckets[1].Rate)
	}
}

func TestAllocate_NegativeSpillover(t *testing.T) {
	// GIVEN: Override prices exceeding the parent total
	// WHEN: Allocating
	// THEN: The winner absorbs a negative remainder and conservation holds

	line := night("n-1", 9000)
	overrides := []billing.RateOverrideFact{
		{ID: 1, ChargeID: line.ID, TaxRate: rate("0.10"), Price: billing.Yen(6000)},
		{ID: 2, ChargeID: line.ID, TaxRate: rate("0.08"), Price: billing.Yen(4000)},
	}

	buckets, err := billing.Allocate(line, overrides)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bucketSum(buckets).Equal(line.Total()) {
		t.Errorf("bucket sum %v != total %v", bucketSum(buckets), line.Total())
	}
	if !buckets[0].Amount.Equal(billing.Yen(5000)) {
		t.Errorf("expected winner reduced to 5000, got %v", buckets[0].Amount)
	}
}

func TestAllocate_TieBreak_DescRateThenDescIDThenNilLast(t *testing.T) {
	// GIVEN: Overrides with equal rates, distinct ids, and one absent rate
	// WHEN: Allocating
	// THEN: Order is desc rate, then desc id, rate-absent last

	line := night("n-1", 12000)
	overrides := []billing.RateOverrideFact{
		{ID: 5, ChargeID: line.ID, TaxRate: nil, Price: billing.Yen(1000)},
		{ID: 1, ChargeID: line.ID, TaxRate: rate("0.10"), Price: billing.Yen(3000)},
		{ID: 3, ChargeID: line.ID, TaxRate: rate("0.10"), Price: billing.Yen(4000)},
		{ID: 2, ChargeID: line.ID, TaxRate: rate("0.08"), Price: billing.Yen(2000)},
	}

	buckets, err := billing.Allocate(line, overrides)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Winner: the id=3 slice (0.10, higher id) gets 4000 + 2000 spillover.
	if !buckets[0].Amount.Equal(billing.Yen(6000)) {
		t.Errorf("expected winner amount 6000, got %v", buckets[0].Amount)
	}
	if !buckets[1].Amount.Equal(billing.Yen(3000)) {
		t.Errorf("expected second amount 3000, got %v", buckets[1].Amount)
	}
	// The rate-absent slice sorts last and resolves to the default rate.
	last := buckets[len(buckets)-1]
	if !last.Rate.Equal(billing.DefaultTaxRate()) || !last.Amount.Equal(billing.Yen(1000)) {
		t.Errorf("expected rate-absent slice last at default rate, got %v@%v", last.Amount, last.Rate)
	}
	if !bucketSum(buckets).Equal(line.Total()) {
		t.Errorf("bucket sum %v != total %v", bucketSum(buckets), line.Total())
	}
}

func TestAllocate_ZeroPrice_EmitsZeroBucket(t *testing.T) {
	// GIVEN: A complimentary night (zero price), no overrides
	// WHEN: Allocating
	// THEN: A single zero-amount bucket is still emitted

	buckets, err := billing.Allocate(night("n-1", 0), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 1 || !buckets[0].Amount.IsZero() {
		t.Fatalf("expected a single zero bucket, got %v", buckets)
	}
}

func TestAllocate_PerPersonMode_ScalesPricesByOccupants(t *testing.T) {
	// GIVEN: A per-person night, 3 occupants, price 5000, one override slice
	// WHEN: Allocating
	// THEN: Both the total and the bucket prices scale by occupant count

	line := night("n-1", 5000)
	line.Mode = billing.PricePerPerson
	line.Occupants = 3
	overrides := []billing.RateOverrideFact{
		{ID: 1, ChargeID: line.ID, TaxRate: rate("0.08"), Price: billing.Yen(2000)},
		{ID: 2, ChargeID: line.ID, TaxRate: rate("0.10"), Price: billing.Yen(3000)},
	}

	buckets, err := billing.Allocate(line, overrides)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !line.Total().Equal(billing.Yen(15000)) {
		t.Fatalf("expected total 15000, got %v", line.Total())
	}
	// 3000*3=9000 at 0.10 wins; 2000*3=6000 at 0.08; sum already 15000.
	if !buckets[0].Amount.Equal(billing.Yen(9000)) || !buckets[1].Amount.Equal(billing.Yen(6000)) {
		t.Errorf("unexpected bucket amounts: %v", buckets)
	}
	if !bucketSum(buckets).Equal(line.Total()) {
		t.Errorf("bucket sum %v != total %v", bucketSum(buckets), line.Total())
	}
}

func TestAllocate_CorruptSlice_ReturnsInvariantError(t *testing.T) {
	// GIVEN: A non-winner slice larger than the parent total
	// WHEN: Allocating
	// THEN: An allocation invariant error is returned, not a silent negative

	line := night("n-1", 1000)
	overrides := []billing.RateOverrideFact{
		{ID: 1, ChargeID: line.ID, TaxRate: rate("0.10"), Price: billing.Yen(500)},
		{ID: 2, ChargeID: line.ID, TaxRate: rate("0.08"), Price: billing.Yen(5000)},
	}

	_, err := billing.Allocate(line, overrides)
	if !errors.Is(err, billing.ErrAllocationInvariant) {
		t.Fatalf("expected allocation invariant error, got %v", err)
	}
}

func TestAllocate_DoesNotMutateInput(t *testing.T) {
	// GIVEN: An override slice in caller order
	// WHEN: Allocating (which sorts internally)
	// THEN: The caller's slice order is untouched

	line := night("n-1", 10000)
	overrides := []billing.RateOverrideFact{
		{ID: 1, ChargeID: line.ID, TaxRate: rate("0.08"), Price: billing.Yen(3000)},
		{ID: 2, ChargeID: line.ID, TaxRate: rate("0.10"), Price: billing.Yen(6500)},
	}

	if _, err := billing.Allocate(line, overrides); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overrides[0].ID != 1 || overrides[1].ID != 2 {
		t.Errorf("input slice was reordered: %v", overrides)
	}
}
