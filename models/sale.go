package models

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Sale struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	SaleNumber          string          `gorm:"size:50;not null;uniqueIndex" json:"sale_number"`
	DailySeqNo          int             `gorm:"not null;default:0" json:"daily_seq_no"`
	SaleDate            time.Time       `gorm:"not null" json:"sale_date"`
	CustomerId          *int            `gorm:"index;default:null" json:"customer_id"`
	StaffId             *int            `gorm:"index;default:null" json:"staff_id"`
	Notes               string          `gorm:"type:text;default:null" json:"notes"`
	SubtotalAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal_amount"`
	TotalDiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_discount_amount"`
	TotalTaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_tax_amount"`
	GrandTotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"grand_total_amount"`
	TotalPaidAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_paid_amount"`
	BalanceAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_amount"`
	CurrentStatus       SaleStatus      `gorm:"type:enum('Pending','Completed','Cancelled');not null;default:'Pending'" json:"current_status"`
	Items               []SaleItem      `json:"items"`
	Payments            []SalePayment   `json:"payments"`
	CreatedBy           int             `gorm:"index" json:"created_by"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SaleId         int             `gorm:"index;not null" json:"sale_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	RollId         int             `gorm:"index;not null" json:"roll_id"`
	Qty            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	Unit           string          `gorm:"size:20;not null;default:'m'" json:"unit"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	GrossAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_amount"`
	NetAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
}

type SalePayment struct {
	ID     int             `gorm:"primary_key" json:"id"`
	SaleId int             `gorm:"index;not null" json:"sale_id"`
	Method string          `gorm:"size:50;not null" json:"method"`
	Amount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

type NewSale struct {
	CustomerId *int             `json:"customer_id"`
	StaffId    *int             `json:"staff_id"`
	Notes      string           `json:"notes"`
	Items      []NewSaleItem    `json:"items" binding:"required,dive"`
	Payments   []NewSalePayment `json:"payments" binding:"dive"`
}

// NewSaleItem is one requested sale line. Discount is either a flat
// amount or, with DiscountType "P", a percentage of the line's gross.
type NewSaleItem struct {
	ProductId      int             `json:"product_id" binding:"required"`
	RollId         int             `json:"roll_id" binding:"required"`
	Qty            decimal.Decimal `json:"qty" binding:"required"`
	UnitPrice      decimal.Decimal `json:"unit_price" binding:"required"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountType   string          `json:"discount_type" binding:"omitempty,oneof=P A"`
}

type NewSalePayment struct {
	Method string          `json:"method" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// UpdateSaleInput carries the fields that may change while a sale is still
// Pending. Inventory effects were committed at creation and are not
// re-derived here.
type UpdateSaleInput struct {
	CustomerId *int              `json:"customer_id"`
	Notes      *string           `json:"notes"`
	Payments   *[]NewSalePayment `json:"payments"`
}

// SaleTotals aggregates the money fields derived from a sale's lines.
type SaleTotals struct {
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalTax      decimal.Decimal
	GrandTotal    decimal.Decimal
}

// ComputeSaleTotals folds line amounts into document totals:
// grandTotal = subtotal - totalDiscount + totalTax.
func ComputeSaleTotals(items []SaleItem) SaleTotals {
	totals := SaleTotals{
		Subtotal:      decimal.Zero,
		TotalDiscount: decimal.Zero,
		TotalTax:      decimal.Zero,
	}
	for _, item := range items {
		totals.Subtotal = totals.Subtotal.Add(item.GrossAmount)
		totals.TotalDiscount = totals.TotalDiscount.Add(item.DiscountAmount)
		totals.TotalTax = totals.TotalTax.Add(item.TaxAmount)
	}
	totals.GrandTotal = totals.Subtotal.Sub(totals.TotalDiscount).Add(totals.TotalTax)
	return totals
}

func SumPayments(payments []SalePayment) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

func GetSale(tx *gorm.DB, saleId int) (*Sale, error) {
	var sale Sale
	err := tx.Preload("Items").Preload("Payments").First(&sale, saleId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("sale %d: %w", saleId, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &sale, nil
}
