package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseOrder struct {
	ID                   int                 `gorm:"primary_key" json:"id"`
	SupplierId           int                 `gorm:"index;not null" json:"supplier_id" binding:"required"`
	OrderNumber          string              `gorm:"size:255;not null" json:"order_number"`
	SequenceNo           decimal.Decimal     `gorm:"type:decimal(15);not null" json:"sequence_no"`
	OrderDate            time.Time           `gorm:"not null" json:"order_date"`
	ExpectedDeliveryDate *time.Time          `gorm:"default:null" json:"expected_delivery_date"`
	Notes                string              `gorm:"type:text;default:null" json:"notes"`
	CurrentStatus        PurchaseOrderStatus `gorm:"type:enum('Created','Ordered','PartiallyReceived','Received','Closed','Cancelled');not null" json:"current_status"`
	ApprovedBy           int                 `gorm:"default:null" json:"approved_by"`
	OrderTotalAmount     decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"order_total_amount"`
	Items                []PurchaseOrderItem `json:"items"`
	CreatedBy            int                 `gorm:"index" json:"created_by"`
	CreatedAt            time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"index;not null" json:"purchase_order_id"`
	ProductId       int             `gorm:"index;not null" json:"product_id"`
	Qty             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	ReceivedQty     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"received_qty"`
	RemainingQty    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"remaining_qty"`
	Unit            string          `gorm:"size:20;not null;default:'m'" json:"unit"`
}

type NewPurchaseOrder struct {
	SupplierId           int                      `json:"supplier_id" binding:"required"`
	OrderDate            time.Time                `json:"order_date" binding:"required"`
	ExpectedDeliveryDate *time.Time               `json:"expected_delivery_date"`
	Notes                string                   `json:"notes"`
	Items                []NewPurchaseOrderItem   `json:"items" binding:"required,dive"`
}

type NewPurchaseOrderItem struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
	Unit      string          `json:"unit"`
}

type ReceivePurchaseOrder struct {
	LocationId int                        `json:"location_id" binding:"required"`
	Lines      []ReceivePurchaseOrderLine `json:"lines" binding:"required,dive"`
}

type ReceivePurchaseOrderLine struct {
	PurchaseOrderItemId int             `json:"purchase_order_item_id" binding:"required"`
	Qty                 decimal.Decimal `json:"qty" binding:"required"`
	BatchNumber         string          `json:"batch_number"`
}

func (input *NewPurchaseOrder) validate(ctx context.Context, db *gorm.DB) error {
	if err := utils.ValidateResourceId[Supplier](ctx, db, input.SupplierId); err != nil {
		return fmt.Errorf("supplier not found: %w", utils.ErrorValidation)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("purchase order needs at least one item: %w", utils.ErrorValidation)
	}
	for _, item := range input.Items {
		if err := utils.ValidateResourceId[Product](ctx, db, item.ProductId); err != nil {
			return fmt.Errorf("product %d not found: %w", item.ProductId, utils.ErrorValidation)
		}
		if item.Qty.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("item qty must be positive: %w", utils.ErrorValidation)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("item unit price cannot be negative: %w", utils.ErrorValidation)
		}
	}
	return nil
}

// CreatePurchaseOrder stores a new PO in Created status with each line's
// remaining quantity seeded from the ordered quantity.
func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	db := config.GetDB()
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	items := make([]PurchaseOrderItem, 0, len(input.Items))
	total := decimal.Zero
	for _, item := range input.Items {
		unit := item.Unit
		if unit == "" {
			unit = "m"
		}
		items = append(items, PurchaseOrderItem{
			ProductId:    item.ProductId,
			Qty:          item.Qty,
			UnitPrice:    item.UnitPrice,
			ReceivedQty:  decimal.Zero,
			RemainingQty: item.Qty,
			Unit:         unit,
		})
		total = total.Add(item.Qty.Mul(item.UnitPrice))
	}

	po := PurchaseOrder{
		SupplierId:           input.SupplierId,
		OrderDate:            input.OrderDate,
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		Notes:                input.Notes,
		CurrentStatus:        PurchaseOrderStatusCreated,
		OrderTotalAmount:     total,
		Items:                items,
		CreatedBy:            userId,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seqNo, err := GetSequence[PurchaseOrder](ctx, tx, "purchase_order")
		if err != nil {
			return err
		}
		po.SequenceNo = decimal.NewFromInt(seqNo)
		po.OrderNumber = fmt.Sprintf("PO-%06d", seqNo)
		return tx.Create(&po).Error
	})
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func GetPurchaseOrder(tx *gorm.DB, poId int) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := tx.Preload("Items").First(&po, poId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("purchase order %d: %w", poId, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &po, nil
}
