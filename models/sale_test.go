package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeSaleTotals(t *testing.T) {
	items := []SaleItem{
		{
			GrossAmount:    decimal.NewFromInt(400),
			DiscountAmount: decimal.Zero,
			TaxAmount:      decimal.NewFromInt(20),
		},
		{
			GrossAmount:    decimal.NewFromInt(200),
			DiscountAmount: decimal.NewFromInt(50),
			TaxAmount:      decimal.RequireFromString("7.5"),
		},
	}

	totals := ComputeSaleTotals(items)
	if !totals.Subtotal.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("subtotal = %s, want 600", totals.Subtotal)
	}
	if !totals.TotalDiscount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("total discount = %s, want 50", totals.TotalDiscount)
	}
	if !totals.TotalTax.Equal(decimal.RequireFromString("27.5")) {
		t.Fatalf("total tax = %s, want 27.5", totals.TotalTax)
	}
	if !totals.GrandTotal.Equal(decimal.RequireFromString("577.5")) {
		t.Fatalf("grand total = %s, want 577.5", totals.GrandTotal)
	}
}

func TestComputeSaleTotalsEmpty(t *testing.T) {
	totals := ComputeSaleTotals(nil)
	if !totals.GrandTotal.IsZero() {
		t.Fatalf("grand total = %s, want 0", totals.GrandTotal)
	}
}

func TestSumPayments(t *testing.T) {
	payments := []SalePayment{
		{Method: "cash", Amount: decimal.NewFromInt(300)},
		{Method: "kpay", Amount: decimal.NewFromInt(120)},
	}
	if got := SumPayments(payments); !got.Equal(decimal.NewFromInt(420)) {
		t.Fatalf("paid = %s, want 420", got)
	}
}

func TestComputeNewBalance(t *testing.T) {
	// new sale of 420 on a prior balance of 1000 debits up to 1420
	prior := decimal.NewFromInt(1000)
	got := ComputeNewBalance(prior, decimal.NewFromInt(420), decimal.Zero)
	if !got.Equal(decimal.NewFromInt(1420)) {
		t.Fatalf("balance = %s, want 1420", got)
	}
	// payment credits the balance back down
	got = ComputeNewBalance(got, decimal.Zero, decimal.NewFromInt(1420))
	if !got.IsZero() {
		t.Fatalf("balance = %s, want 0", got)
	}
}
