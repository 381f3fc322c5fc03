/*
deductions.go - Tax and NI-style deductions

PURPOSE:
  Turns gross pay into net. Each deduction is independently toggled and
  idempotent: disabling a rule and recomputing yields exactly the result of
  never having enabled it.

  The NI threshold is documented as a weekly figure but is compared against
  each individual calculation's gross; this per-call comparison is the
  specified behavior and is deliberately not "fixed" to weekly aggregation.

SEE ALSO:
  - payrules.go: Produces the gross these rules deduct from
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// DEDUCTION ENGINE
// =============================================================================

// Deductions holds the computed deduction components for one gross amount.
type Deductions struct {
	Tax Money
	NI  Money
	// Net is the take-home amount after both deductions.
	Net Money
}

// ComputeDeductions applies the tax and NI rules to gross.
func ComputeDeductions(gross Money, tax TaxRule, ni NIRule) Deductions {
	d := Deductions{Tax: ZeroMoney(), NI: ZeroMoney()}

	if tax.Enabled {
		taxable := gross.Sub(tax.PersonalAllowance).ClampZero()
		d.Tax = taxable.Mul(percent(tax.Percent)).ClampZero()
	}
	if ni.Enabled {
		liable := gross.Sub(ni.Threshold).ClampZero()
		d.NI = liable.Mul(percent(ni.Percent)).ClampZero()
	}

	d.Net = gross.Sub(d.Tax).Sub(d.NI)
	return d
}

func percent(p decimal.Decimal) decimal.Decimal {
	return p.Div(decimal.NewFromInt(100))
}
