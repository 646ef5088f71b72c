package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/models"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransitionPurchaseOrder moves a PO along its lifecycle. Only the
// transitions listed in the adjacency table are accepted; receipt-driven
// statuses (PartiallyReceived, Received) are set by ReceivePurchaseOrder
// and rejected here.
func TransitionPurchaseOrder(ctx context.Context, poId int, target models.PurchaseOrderStatus) (*models.PurchaseOrder, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("missing acting user: %w", utils.ErrorValidation)
	}
	if target == models.PurchaseOrderStatusPartiallyReceived || target == models.PurchaseOrderStatusReceived {
		return nil, fmt.Errorf("status %s is set by goods receipt: %w", target, utils.ErrorInvalidStatusTransition)
	}

	var po *models.PurchaseOrder
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		po, err = models.GetPurchaseOrder(tx, poId)
		if err != nil {
			config.LogError(logger, "purchaseOrderWorkflow.go", "TransitionPurchaseOrder", "GetPurchaseOrder", poId, err)
			return err
		}
		if !models.CanTransitionPurchaseOrder(po.CurrentStatus, target) {
			return fmt.Errorf("purchase order %d cannot move %s -> %s: %w",
				poId, po.CurrentStatus, target, utils.ErrorInvalidStatusTransition)
		}

		updates := map[string]interface{}{"current_status": target}
		if target == models.PurchaseOrderStatusOrdered {
			updates["approved_by"] = userId
		}
		if err := tx.Model(&models.PurchaseOrder{}).Where("id = ?", po.ID).Updates(updates).Error; err != nil {
			config.LogError(logger, "purchaseOrderWorkflow.go", "TransitionPurchaseOrder", "UpdateStatus", updates, err)
			return err
		}
		po.CurrentStatus = target
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return po, nil
}

// ReceiptResult bundles everything one goods receipt produced.
type ReceiptResult struct {
	PurchaseOrder *models.PurchaseOrder  `json:"purchase_order"`
	Rolls         []models.InventoryRoll `json:"rolls"`
	Movements     []models.StockMovement `json:"movements"`
	LedgerEntry   *models.LedgerEntry    `json:"ledger_entry"`
}

// ReceivePurchaseOrder books a goods receipt against an Ordered or
// PartiallyReceived PO. Each received line allocates a fresh inventory
// roll at the line's unit price, records an IN movement, and advances the
// line's received/remaining counters. A quantity beyond a line's
// remaining is rejected as a whole; partial over-receipt is never
// silently clamped. When every line reaches zero remaining the PO becomes
// Received, otherwise PartiallyReceived. One supplier Purchase credit is
// posted for the value received in this call.
func ReceivePurchaseOrder(ctx context.Context, poId int, input *models.ReceivePurchaseOrder) (*ReceiptResult, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("missing acting user: %w", utils.ErrorValidation)
	}
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("receipt needs at least one line: %w", utils.ErrorValidation)
	}
	if err := utils.ValidateResourceId[models.Location](ctx, db, input.LocationId); err != nil {
		return nil, fmt.Errorf("location not found: %w", utils.ErrorValidation)
	}

	// The supplier's posting lock wraps the whole receipt so the credit
	// entry's balance read stays serialized until the commit.
	var supplierId int
	err := db.WithContext(ctx).Model(&models.PurchaseOrder{}).
		Select("supplier_id").Where("id = ?", poId).Scan(&supplierId).Error
	if err != nil {
		return nil, err
	}
	if supplierId == 0 {
		return nil, fmt.Errorf("purchase order %d: %w", poId, utils.ErrorRecordNotFound)
	}

	var result ReceiptResult
	err = withPartyPostingLocks(ctx, db, []partyRef{{Type: models.PartyTypeSupplier, Id: supplierId}}, func(tx *gorm.DB) error {
		po, err := models.GetPurchaseOrder(tx, poId)
		if err != nil {
			config.LogError(logger, "purchaseOrderWorkflow.go", "ReceivePurchaseOrder", "GetPurchaseOrder", poId, err)
			return err
		}
		result.PurchaseOrder = po
		if po.CurrentStatus != models.PurchaseOrderStatusOrdered &&
			po.CurrentStatus != models.PurchaseOrderStatusPartiallyReceived {
			return fmt.Errorf("purchase order %d is %s, not receivable: %w",
				poId, po.CurrentStatus, utils.ErrorInvalidStatusTransition)
		}

		itemsById := make(map[int]*models.PurchaseOrderItem, len(po.Items))
		for i := range po.Items {
			itemsById[po.Items[i].ID] = &po.Items[i]
		}

		receivedValue := decimal.Zero
		for _, line := range input.Lines {
			item, found := itemsById[line.PurchaseOrderItemId]
			if !found {
				return fmt.Errorf("line %d does not belong to purchase order %d: %w",
					line.PurchaseOrderItemId, poId, utils.ErrorValidation)
			}
			if line.Qty.LessThanOrEqual(decimal.Zero) {
				return fmt.Errorf("receipt qty must be positive: %w", utils.ErrorValidation)
			}
			if line.Qty.GreaterThan(item.RemainingQty) {
				return fmt.Errorf("line %d remaining %s, got %s: %w",
					item.ID, item.RemainingQty, line.Qty, utils.ErrorExcessReceipt)
			}

			batchNumber := line.BatchNumber
			if batchNumber == "" {
				batchNumber = uuid.NewString()
			}
			roll := models.InventoryRoll{
				ProductId:   item.ProductId,
				SupplierId:  po.SupplierId,
				BatchNumber: batchNumber,
				InitialQty:  line.Qty,
				Unit:        item.Unit,
				CostPerUnit: item.UnitPrice,
				LocationId:  input.LocationId,
				CreatedBy:   userId,
			}
			if err := models.AllocateRoll(tx, &roll); err != nil {
				config.LogError(logger, "purchaseOrderWorkflow.go", "ReceivePurchaseOrder", "AllocateRoll", roll, err)
				return err
			}

			movement := models.StockMovement{
				Direction:     models.MovementDirectionIn,
				ProductId:     item.ProductId,
				RollId:        roll.ID,
				Qty:           line.Qty,
				Unit:          roll.Unit,
				ReferenceType: models.MovementReferenceTypePurchaseOrder,
				ReferenceID:   po.ID,
				BeforeQty:     decimal.Zero,
				AfterQty:      roll.RemainingQty,
				UnitCost:      item.UnitPrice,
				CreatedBy:     userId,
			}
			if err := models.RecordMovement(tx, &movement); err != nil {
				config.LogError(logger, "purchaseOrderWorkflow.go", "ReceivePurchaseOrder", "RecordMovement", movement, err)
				return err
			}
			result.Rolls = append(result.Rolls, roll)
			result.Movements = append(result.Movements, movement)

			item.ReceivedQty = item.ReceivedQty.Add(line.Qty)
			item.RemainingQty = item.RemainingQty.Sub(line.Qty)
			err := tx.Model(&models.PurchaseOrderItem{}).Where("id = ?", item.ID).
				Updates(map[string]interface{}{
					"received_qty":  item.ReceivedQty,
					"remaining_qty": item.RemainingQty,
				}).Error
			if err != nil {
				config.LogError(logger, "purchaseOrderWorkflow.go", "ReceivePurchaseOrder", "UpdateItemCounters", item, err)
				return err
			}

			receivedValue = receivedValue.Add(line.Qty.Mul(item.UnitPrice))
		}

		next := models.PurchaseOrderStatusReceived
		for i := range po.Items {
			if po.Items[i].RemainingQty.GreaterThan(decimal.Zero) {
				next = models.PurchaseOrderStatusPartiallyReceived
				break
			}
		}
		if err := tx.Model(&models.PurchaseOrder{}).Where("id = ?", po.ID).
			Update("current_status", next).Error; err != nil {
			config.LogError(logger, "purchaseOrderWorkflow.go", "ReceivePurchaseOrder", "UpdateStatus", next, err)
			return err
		}
		po.CurrentStatus = next

		entry, err := AppendLedgerEntry(tx, logger, models.PartyTypeSupplier, po.SupplierId,
			models.LedgerEntryTypePurchase, decimal.Zero, receivedValue,
			models.MovementReferenceTypePurchaseOrder, po.ID, userId)
		if err != nil {
			config.LogError(logger, "purchaseOrderWorkflow.go", "ReceivePurchaseOrder", "AppendSupplierLedgerEntry", po.SupplierId, err)
			return err
		}
		result.LedgerEntry = entry
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &result, nil
}

// ClosePurchaseOrder finalizes a fully received PO.
func ClosePurchaseOrder(ctx context.Context, poId int) (*models.PurchaseOrder, error) {
	return TransitionPurchaseOrder(ctx, poId, models.PurchaseOrderStatusClosed)
}
