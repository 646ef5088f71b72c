package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculateLineAmounts(t *testing.T) {
	// 4m at 100/m, no discount: gross 400, tax 20 at 5%, total 420.
	got := CalculateLineAmounts(dec("4"), dec("100"), decimal.Zero)
	if !got.Gross.Equal(dec("400")) {
		t.Fatalf("gross = %s, want 400", got.Gross)
	}
	if !got.Net.Equal(dec("400")) {
		t.Fatalf("net = %s, want 400", got.Net)
	}
	if !got.Tax.Equal(dec("20")) {
		t.Fatalf("tax = %s, want 20", got.Tax)
	}
	if !got.Total.Equal(dec("420")) {
		t.Fatalf("total = %s, want 420", got.Total)
	}
}

func TestCalculateLineAmountsWithDiscount(t *testing.T) {
	// 3.5m at 120/m with 20 off: gross 420, net 400, tax 20, total 420.
	got := CalculateLineAmounts(dec("3.5"), dec("120"), dec("20"))
	if !got.Gross.Equal(dec("420")) {
		t.Fatalf("gross = %s, want 420", got.Gross)
	}
	if !got.Net.Equal(dec("400")) {
		t.Fatalf("net = %s, want 400", got.Net)
	}
	if !got.Tax.Equal(dec("20")) {
		t.Fatalf("tax = %s, want 20", got.Tax)
	}
	if !got.Total.Equal(dec("420")) {
		t.Fatalf("total = %s, want 420", got.Total)
	}
}

func TestCalculateLineAmountsTaxRounding(t *testing.T) {
	// net 33.33 at 5% is 1.6665, kept at 4 decimal places
	got := CalculateLineAmounts(dec("1"), dec("33.33"), decimal.Zero)
	if !got.Tax.Equal(dec("1.6665")) {
		t.Fatalf("tax = %s, want 1.6665", got.Tax)
	}
	if !got.Total.Equal(dec("34.9965")) {
		t.Fatalf("total = %s, want 34.9965", got.Total)
	}
}

func TestCalculateDiscountAmount(t *testing.T) {
	if got := CalculateDiscountAmount(dec("200"), dec("10"), "P"); !got.Equal(dec("20")) {
		t.Fatalf("percentage discount = %s, want 20", got)
	}
	if got := CalculateDiscountAmount(dec("200"), dec("15"), "A"); !got.Equal(dec("15")) {
		t.Fatalf("flat discount = %s, want 15", got)
	}
	if got := CalculateDiscountAmount(dec("200"), decimal.Zero, "P"); !got.IsZero() {
		t.Fatalf("zero discount = %s, want 0", got)
	}
}

func TestCalculateCommissionAmount(t *testing.T) {
	if got := CalculateCommissionAmount(dec("420"), dec("2.5")); !got.Equal(dec("10.5")) {
		t.Fatalf("commission = %s, want 10.5", got)
	}
	if got := CalculateCommissionAmount(dec("420"), decimal.Zero); !got.IsZero() {
		t.Fatalf("commission = %s, want 0", got)
	}
}
