package billing

import (
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Totals struct {
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeTotals prices an invoice: Σ(quantity × unitPrice) − discount + tax,
// where tax is taxRate percent of the discounted subtotal. Rates and discounts
// are inputs; this only checks they are in range.
func ComputeTotals(lines []Line, discount, taxRate decimal.Decimal) (Totals, error) {
	if discount.IsNegative() {
		return Totals{}, apperrors.Validation("discount cannot be negative")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return Totals{}, apperrors.Validation("tax rate must be between 0 and 100")
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineSubtotal(l.Quantity, l.UnitPrice))
	}
	discount = discount.Round(2)
	if discount.GreaterThan(subtotal) {
		return Totals{}, apperrors.Validation("discount exceeds subtotal").
			With("subtotal", subtotal.StringFixed(2))
	}

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(taxRate).Div(hundred).Round(2)
	return Totals{
		Subtotal:  subtotal,
		Discount:  discount,
		TaxAmount: tax,
		Total:     taxable.Add(tax),
	}, nil
}

func LineSubtotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// PaymentStatusFor derives paid / partial / due from the amounts.
func PaymentStatusFor(total, paid decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(total):
		return models.PaymentPaid
	case paid.IsPositive():
		return models.PaymentPartial
	default:
		return models.PaymentDue
	}
}
