package utils

import (
	"github.com/shopspring/decimal"
)

// SaleTaxRatePercent is the fixed POS tax rate applied on the net line amount.
var SaleTaxRatePercent = decimal.NewFromInt(5)

type LineAmounts struct {
	Gross decimal.Decimal
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
}

// CalculateLineAmounts computes a sale line's money fields from
// quantity, unit price and a flat discount amount.
// gross = qty * unitPrice; net = gross - discount; tax = net * rate; total = net + tax.
func CalculateLineAmounts(qty, unitPrice, discountAmount decimal.Decimal) LineAmounts {
	gross := qty.Mul(unitPrice)
	net := gross.Sub(discountAmount)
	tax := net.Mul(SaleTaxRatePercent).DivRound(decimal.NewFromInt(100), 4)
	return LineAmounts{
		Gross: gross,
		Net:   net,
		Tax:   tax,
		Total: net.Add(tax),
	}
}

func CalculateDiscountAmount(subTotal decimal.Decimal, discount decimal.Decimal, discountType string) decimal.Decimal {

	var discountAmount decimal.Decimal

	decimalOneHundred := decimal.NewFromFloat(100)

	if discount.GreaterThan(decimal.NewFromFloat(0.0)) {
		if discountType == "P" {
			discountAmount = subTotal.Mul(discount).DivRound(decimalOneHundred, 4)
		} else {
			discountAmount = discount
		}
	} else {
		discountAmount = decimal.NewFromFloat(0.0)
	}

	return discountAmount
}

// CalculateCommissionAmount returns grandTotal * rate / 100 rounded to 4 places.
func CalculateCommissionAmount(grandTotal, ratePercent decimal.Decimal) decimal.Decimal {
	return grandTotal.Mul(ratePercent).DivRound(decimal.NewFromInt(100), 4)
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}
