package billing

import (
	"github.com/shopspring/decimal"
)

// settleEpsilon is the largest outstanding amount still treated as fully paid.
var settleEpsilon = decimal.New(1, -2)

// Balance is the derived financial state of an invoice.
type Balance struct {
	PaidAmount decimal.Decimal
	BalanceDue decimal.Decimal
	Status     InvoiceStatus
}

// Recompute derives paid amount, balance due and status from the invoice total
// and the allocations still linked to the invoice.
func Recompute(total decimal.Decimal, allocations []decimal.Decimal) Balance {
	paid := decimal.Zero
	for _, a := range allocations {
		paid = paid.Add(a)
	}

	status := deriveStatus(total, paid)

	// A settled invoice owes nothing, even when a sub-cent remainder is left.
	due := total.Sub(paid)
	if due.IsNegative() || status == StatusPaid {
		due = decimal.Zero
	}

	return Balance{
		PaidAmount: paid,
		BalanceDue: due,
		Status:     status,
	}
}

func deriveStatus(total, paid decimal.Decimal) InvoiceStatus {
	switch {
	case !paid.IsPositive():
		return StatusDraft
	case total.Sub(paid).LessThan(settleEpsilon):
		return StatusPaid
	default:
		return StatusPartial
	}
}

// Apply copies the balance onto the invoice.
func (b Balance) Apply(inv *Invoice) {
	inv.PaidAmount = b.PaidAmount
	inv.BalanceDue = b.BalanceDue
	inv.Status = b.Status
}
