/*
allocator.go - Tax-rate revenue allocation

PURPOSE:
  Distributes one nightly charge's total across its tax-rate override
  slices without creating or destroying money. This is the single most
  bug-prone step of the whole engine: production incidents came from the
  join semantics of "charge with zero override rows".

CONTRACT (per charge):
  1. Each override's bucket price follows the parent's pricing mode
     (per_room: raw price; per_person: price x occupant count).
  2. Overrides are ordered by descending tax rate, then descending id,
     rates-absent last. The FIRST override in that order absorbs the full
     spillover: bucketPrice + (parentTotal - sum of all bucket prices).
  3. Zero overrides => one synthetic bucket for the full parent total at
     the default tax rate. The join shape can never drop a line.
  4. Zero parent total => a single zero-amount bucket is still emitted, so
     downstream line counts stay intact.
  5. Output amounts sum exactly to the parent total, in whole yen.

SEE ALSO:
  - aggregator.go: consumes the buckets
  - errors.go: AllocationInvariantError
*/
package billing

import "sort"

// Allocate distributes a nightly charge's total across its rate override
// slices, returning one bucket per override (or one synthetic bucket when
// there are none). The returned amounts always sum to line.Total().
//
// An AllocationInvariantError is returned when the input data is
// malformed enough that the invariant cannot hold (an override slice
// larger than the parent total). Callers exclude such lines and log them;
// continuing silently is how the historical discrepancy shipped.
func Allocate(line NightlyChargeFact, overrides []RateOverrideFact) ([]TaxBucket, error) {
	total := line.Total()

	// Zero override rows: synthesize one full-total bucket. This replaces
	// the implicit inner-vs-outer join distinction entirely.
	if len(overrides) == 0 {
		return []TaxBucket{{Rate: DefaultTaxRate(), Amount: total}}, nil
	}

	ordered := make([]RateOverrideFact, len(overrides))
	copy(ordered, overrides)
	sortOverrides(ordered)

	buckets := make([]TaxBucket, 0, len(ordered))
	allocated := Yen(0)
	for _, ov := range ordered {
		price := ov.Price
		if line.Mode == PricePerPerson {
			price = price.MulInt(line.Occupants)
		}
		rate := DefaultTaxRate()
		if ov.TaxRate != nil {
			rate = *ov.TaxRate
		}
		buckets = append(buckets, TaxBucket{Rate: rate, Amount: price})
		allocated = allocated.Add(price)
	}

	// The tie-break winner absorbs the remainder, positive or negative.
	buckets[0].Amount = buckets[0].Amount.Add(total.Sub(allocated))

	if err := verifyAllocation(line.ID, total, buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// sortOverrides orders by descending tax rate, then descending id, with
// rate-absent overrides last. This ordering decides which slice absorbs
// the rounding remainder, so it must be total and stable.
func sortOverrides(ovs []RateOverrideFact) {
	sort.SliceStable(ovs, func(i, j int) bool {
		a, b := ovs[i], ovs[j]
		switch {
		case a.TaxRate == nil && b.TaxRate == nil:
			return a.ID > b.ID
		case a.TaxRate == nil:
			return false
		case b.TaxRate == nil:
			return true
		case !a.TaxRate.Equal(*b.TaxRate):
			return a.TaxRate.GreaterThan(*b.TaxRate)
		default:
			return a.ID > b.ID
		}
	})
}

// verifyAllocation enforces conservation: bucket amounts must reproduce
// the parent total exactly, and no single override slice may exceed it.
func verifyAllocation(id ChargeID, total Money, buckets []TaxBucket) error {
	sum := Yen(0)
	for _, b := range buckets {
		sum = sum.Add(b.Amount)
	}
	if !sum.Equal(total) {
		return &AllocationInvariantError{ChargeID: id, Total: total, Allocated: sum, Buckets: buckets}
	}
	// A non-winner bucket above the parent total forces the winner
	// negative; that is corrupt input, not a rounding artifact.
	for _, b := range buckets[1:] {
		if b.Amount.GreaterThan(total) {
			return &AllocationInvariantError{ChargeID: id, Total: total, Allocated: sum, Buckets: buckets}
		}
	}
	return nil
}
