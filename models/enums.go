package models

import (
	"github.com/shopspring/decimal"
)

type RollStatus string

const (
	RollStatusAvailable  RollStatus = "Available"
	RollStatusLowStock   RollStatus = "LowStock"
	RollStatusOutOfStock RollStatus = "OutOfStock"
	RollStatusReserved   RollStatus = "Reserved"
	RollStatusDamaged    RollStatus = "Damaged"
	RollStatusDisposed   RollStatus = "Disposed"
)

// LowStockThreshold is the remaining quantity at or below which a roll is
// flagged LowStock.
var LowStockThreshold = decimal.NewFromInt(5)

// ComputeRollStatus derives the quantity-driven status for a roll.
// Reserved/Damaged/Disposed are operator-set lifecycle states and are
// never produced here.
func ComputeRollStatus(remaining decimal.Decimal) RollStatus {
	if remaining.LessThanOrEqual(decimal.Zero) {
		return RollStatusOutOfStock
	}
	if remaining.LessThanOrEqual(LowStockThreshold) {
		return RollStatusLowStock
	}
	return RollStatusAvailable
}

type MovementDirection string

const (
	MovementDirectionIn  MovementDirection = "IN"
	MovementDirectionOut MovementDirection = "OUT"
)

type MovementReferenceType string

const (
	MovementReferenceTypeSale          MovementReferenceType = "Sale"
	MovementReferenceTypePurchaseOrder MovementReferenceType = "PurchaseOrder"
	MovementReferenceTypeTransfer      MovementReferenceType = "Transfer"
)

type PartyType string

const (
	PartyTypeCustomer PartyType = "Customer"
	PartyTypeSupplier PartyType = "Supplier"
	PartyTypeEmployee PartyType = "Employee"
)

type LedgerEntryType string

const (
	LedgerEntryTypeSale       LedgerEntryType = "Sale"
	LedgerEntryTypePurchase   LedgerEntryType = "Purchase"
	LedgerEntryTypeCommission LedgerEntryType = "Commission"
	LedgerEntryTypePayment    LedgerEntryType = "Payment"
	LedgerEntryTypeAdjustment LedgerEntryType = "Adjustment"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusCreated           PurchaseOrderStatus = "Created"
	PurchaseOrderStatusOrdered           PurchaseOrderStatus = "Ordered"
	PurchaseOrderStatusPartiallyReceived PurchaseOrderStatus = "PartiallyReceived"
	PurchaseOrderStatusReceived          PurchaseOrderStatus = "Received"
	PurchaseOrderStatusClosed            PurchaseOrderStatus = "Closed"
	PurchaseOrderStatusCancelled         PurchaseOrderStatus = "Cancelled"
)

// purchaseOrderTransitions is the explicit adjacency table for the PO
// lifecycle. Anything not listed is rejected.
var purchaseOrderTransitions = map[PurchaseOrderStatus][]PurchaseOrderStatus{
	PurchaseOrderStatusCreated:           {PurchaseOrderStatusOrdered, PurchaseOrderStatusCancelled},
	PurchaseOrderStatusOrdered:           {PurchaseOrderStatusPartiallyReceived, PurchaseOrderStatusReceived, PurchaseOrderStatusCancelled},
	PurchaseOrderStatusPartiallyReceived: {PurchaseOrderStatusPartiallyReceived, PurchaseOrderStatusReceived},
	PurchaseOrderStatusReceived:          {PurchaseOrderStatusClosed},
	PurchaseOrderStatusClosed:            {},
	PurchaseOrderStatusCancelled:         {},
}

func CanTransitionPurchaseOrder(from, to PurchaseOrderStatus) bool {
	for _, next := range purchaseOrderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "Pending"
	SaleStatusCompleted SaleStatus = "Completed"
	SaleStatusCancelled SaleStatus = "Cancelled"
)
