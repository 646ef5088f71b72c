package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/models"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateSale runs the whole POS sale as one atomic unit: daily sale
// number, per-line roll decrements with OUT movements, computed totals,
// the sale record itself, the movement back-fill, and customer/commission
// ledger entries. Any failure rolls back everything.
func CreateSale(ctx context.Context, input *models.NewSale) (*models.Sale, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, fmt.Errorf("missing acting user: %w", utils.ErrorValidation)
	}
	if err := validateNewSale(ctx, db, input); err != nil {
		return nil, err
	}

	// Both parties are known up front, so their posting locks can wrap
	// the whole transaction and stay held until after the commit.
	refs := make([]partyRef, 0, 2)
	if input.CustomerId != nil {
		refs = append(refs, partyRef{Type: models.PartyTypeCustomer, Id: *input.CustomerId})
	}
	if input.StaffId != nil {
		refs = append(refs, partyRef{Type: models.PartyTypeEmployee, Id: *input.StaffId})
	}

	var sale *models.Sale
	err := withPartyPostingLocks(ctx, db, refs, func(tx *gorm.DB) error {
		var err error
		sale, err = createSale(ctx, tx, logger, userId, input)
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return sale, nil
}

func validateNewSale(ctx context.Context, db *gorm.DB, input *models.NewSale) error {
	if len(input.Items) == 0 {
		return fmt.Errorf("sale needs at least one item: %w", utils.ErrorValidation)
	}
	for _, item := range input.Items {
		if item.Qty.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("item qty must be positive: %w", utils.ErrorValidation)
		}
		if item.UnitPrice.IsNegative() || item.DiscountAmount.IsNegative() {
			return fmt.Errorf("item price/discount cannot be negative: %w", utils.ErrorValidation)
		}
		if item.DiscountType == "P" && item.DiscountAmount.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("percentage discount cannot exceed 100: %w", utils.ErrorValidation)
		}
	}
	for _, payment := range input.Payments {
		if payment.Amount.IsNegative() {
			return fmt.Errorf("payment amount cannot be negative: %w", utils.ErrorValidation)
		}
	}
	if input.CustomerId != nil {
		if err := utils.ValidateResourceId[models.Customer](ctx, db, *input.CustomerId); err != nil {
			return fmt.Errorf("customer not found: %w", utils.ErrorValidation)
		}
	}
	if input.StaffId != nil {
		if err := utils.ValidateResourceId[models.Employee](ctx, db, *input.StaffId); err != nil {
			return fmt.Errorf("staff not found: %w", utils.ErrorValidation)
		}
	}
	return nil
}

type negotiationCandidate struct {
	itemIndex       int
	productId       int
	listPrice       decimal.Decimal
	negotiatedPrice decimal.Decimal
}

func createSale(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, userId int, input *models.NewSale) (*models.Sale, error) {

	now := time.Now()
	dailySeq, saleNumber, err := NextSaleNumber(ctx, tx, SaleBusinessDay(now))
	if err != nil {
		config.LogError(logger, "saleWorkflow.go", "createSale", "NextSaleNumber", nil, err)
		return nil, err
	}

	items := make([]models.SaleItem, 0, len(input.Items))
	movementIds := make([]int, 0, len(input.Items))
	negotiations := make([]negotiationCandidate, 0)

	for i, line := range input.Items {
		roll, err := models.GetRoll(tx, line.RollId)
		if err != nil {
			config.LogError(logger, "saleWorkflow.go", "createSale", "GetRoll", line.RollId, err)
			return nil, err
		}
		if roll.ProductId != line.ProductId {
			return nil, fmt.Errorf("roll %d does not hold product %d: %w", line.RollId, line.ProductId, utils.ErrorValidation)
		}

		// a "P" discount resolves to a flat amount against the line gross
		// before the money fields are derived; the stored line always
		// carries the resolved amount
		discountAmount := utils.CalculateDiscountAmount(line.Qty.Mul(line.UnitPrice), line.DiscountAmount, line.DiscountType)
		amounts := utils.CalculateLineAmounts(line.Qty, line.UnitPrice, discountAmount)
		items = append(items, models.SaleItem{
			ProductId:      line.ProductId,
			RollId:         line.RollId,
			Qty:            line.Qty,
			Unit:           roll.Unit,
			UnitPrice:      line.UnitPrice,
			DiscountAmount: discountAmount,
			GrossAmount:    amounts.Gross,
			NetAmount:      amounts.Net,
			TaxAmount:      amounts.Tax,
			TotalAmount:    amounts.Total,
		})

		mutation, err := models.DecrementRoll(tx, line.RollId, line.Qty)
		if err != nil {
			config.LogError(logger, "saleWorkflow.go", "createSale", "DecrementRoll", line, err)
			return nil, err
		}

		// the sale id does not exist yet; the movement is back-filled with
		// it below, inside this same transaction
		movement := models.StockMovement{
			Direction:     models.MovementDirectionOut,
			ProductId:     line.ProductId,
			RollId:        line.RollId,
			Qty:           line.Qty,
			Unit:          mutation.Roll.Unit,
			ReferenceType: models.MovementReferenceTypeSale,
			ReferenceID:   0,
			BeforeQty:     mutation.BeforeQty,
			AfterQty:      mutation.AfterQty,
			UnitCost:      mutation.Roll.CostPerUnit,
			CreatedBy:     userId,
		}
		if err := models.RecordMovement(tx, &movement); err != nil {
			config.LogError(logger, "saleWorkflow.go", "createSale", "RecordMovement", movement, err)
			return nil, err
		}
		movementIds = append(movementIds, movement.ID)

		product, err := models.GetProduct(tx, line.ProductId)
		if err != nil {
			config.LogError(logger, "saleWorkflow.go", "createSale", "GetProduct", line.ProductId, err)
			return nil, err
		}
		if !product.ListPrice.IsZero() && !product.ListPrice.Equal(line.UnitPrice) {
			negotiations = append(negotiations, negotiationCandidate{
				itemIndex:       i,
				productId:       line.ProductId,
				listPrice:       product.ListPrice,
				negotiatedPrice: line.UnitPrice,
			})
		}
	}

	totals := models.ComputeSaleTotals(items)
	payments := make([]models.SalePayment, 0, len(input.Payments))
	for _, p := range input.Payments {
		payments = append(payments, models.SalePayment{Method: p.Method, Amount: p.Amount})
	}
	totalPaid := models.SumPayments(payments)

	sale := models.Sale{
		SaleNumber:          saleNumber,
		DailySeqNo:          dailySeq,
		SaleDate:            now,
		CustomerId:          input.CustomerId,
		StaffId:             input.StaffId,
		Notes:               input.Notes,
		SubtotalAmount:      totals.Subtotal,
		TotalDiscountAmount: totals.TotalDiscount,
		TotalTaxAmount:      totals.TotalTax,
		GrandTotalAmount:    totals.GrandTotal,
		TotalPaidAmount:     totalPaid,
		BalanceAmount:       totals.GrandTotal.Sub(totalPaid),
		CurrentStatus:       models.SaleStatusPending,
		Items:               items,
		Payments:            payments,
		CreatedBy:           userId,
	}
	if err := tx.Create(&sale).Error; err != nil {
		config.LogError(logger, "saleWorkflow.go", "createSale", "CreateSale", sale, err)
		return nil, err
	}

	// back-fill the movements with the persisted sale id (same transaction)
	if len(movementIds) > 0 {
		err := tx.Model(&models.StockMovement{}).
			Where("id IN ?", movementIds).
			Update("reference_id", sale.ID).Error
		if err != nil {
			config.LogError(logger, "saleWorkflow.go", "createSale", "BackfillMovementReference", movementIds, err)
			return nil, err
		}
	}

	for _, n := range negotiations {
		log := models.PriceNegotiationLog{
			SaleId:          sale.ID,
			SaleItemId:      sale.Items[n.itemIndex].ID,
			ProductId:       n.productId,
			ListPrice:       n.listPrice,
			NegotiatedPrice: n.negotiatedPrice,
			CreatedBy:       userId,
		}
		if err := tx.Create(&log).Error; err != nil {
			config.LogError(logger, "saleWorkflow.go", "createSale", "CreatePriceNegotiationLog", log, err)
			return nil, err
		}
	}

	if input.CustomerId != nil {
		_, err := AppendLedgerEntry(tx, logger, models.PartyTypeCustomer, *input.CustomerId,
			models.LedgerEntryTypeSale, totals.GrandTotal, decimal.Zero,
			models.MovementReferenceTypeSale, sale.ID, userId)
		if err != nil {
			config.LogError(logger, "saleWorkflow.go", "createSale", "AppendCustomerLedgerEntry", input.CustomerId, err)
			return nil, err
		}
	}

	if input.StaffId != nil {
		staff, err := models.GetEmployee(tx, *input.StaffId)
		if err != nil {
			config.LogError(logger, "saleWorkflow.go", "createSale", "GetEmployee", input.StaffId, err)
			return nil, err
		}
		if staff.CommissionRate.GreaterThan(decimal.Zero) {
			commission := utils.CalculateCommissionAmount(totals.GrandTotal, staff.CommissionRate)
			_, err := AppendLedgerEntry(tx, logger, models.PartyTypeEmployee, staff.ID,
				models.LedgerEntryTypeCommission, commission, decimal.Zero,
				models.MovementReferenceTypeSale, sale.ID, userId)
			if err != nil {
				config.LogError(logger, "saleWorkflow.go", "createSale", "AppendCommissionLedgerEntry", staff.ID, err)
				return nil, err
			}
		}
	}

	return &sale, nil
}

// RemoveSale reverses a Pending sale: every touched roll gets its sold
// quantity back, and the sale's movements, ledger entries, negotiation
// logs, payments, items and the sale row itself are purged, all in one
// transaction. A committed removal leaves no residue of the sale.
func RemoveSale(ctx context.Context, saleId int) error {
	db := config.GetDB()
	logger := config.GetLogger()

	if _, ok := utils.GetUserIdFromContext(ctx); !ok {
		return fmt.Errorf("missing acting user: %w", utils.ErrorValidation)
	}

	// The reversal purges this sale's ledger entries, so the affected
	// parties are locked for the whole transaction. They are read ahead
	// of the lock; the transaction re-reads the sale under it.
	existing, err := models.GetSale(db.WithContext(ctx), saleId)
	if err != nil {
		return mapStoreError(err)
	}
	refs := make([]partyRef, 0, 2)
	if existing.CustomerId != nil {
		refs = append(refs, partyRef{Type: models.PartyTypeCustomer, Id: *existing.CustomerId})
	}
	if existing.StaffId != nil {
		refs = append(refs, partyRef{Type: models.PartyTypeEmployee, Id: *existing.StaffId})
	}

	err = withPartyPostingLocks(ctx, db, refs, func(tx *gorm.DB) error {
		sale, err := models.GetSale(tx, saleId)
		if err != nil {
			config.LogError(logger, "saleWorkflow.go", "RemoveSale", "GetSale", saleId, err)
			return err
		}
		if sale.CurrentStatus != models.SaleStatusPending {
			return fmt.Errorf("sale %d is %s: %w", saleId, sale.CurrentStatus, utils.ErrorInvalidStatusTransition)
		}

		for _, item := range sale.Items {
			if _, err := models.IncrementRoll(tx, item.RollId, item.Qty); err != nil {
				config.LogError(logger, "saleWorkflow.go", "RemoveSale", "IncrementRoll", item, err)
				return err
			}
		}

		if err := tx.Where("reference_type = ? AND reference_id = ?",
			models.MovementReferenceTypeSale, sale.ID).
			Delete(&models.StockMovement{}).Error; err != nil {
			config.LogError(logger, "saleWorkflow.go", "RemoveSale", "DeleteStockMovements", sale.ID, err)
			return err
		}
		if err := tx.Where("reference_type = ? AND reference_id = ?",
			models.MovementReferenceTypeSale, sale.ID).
			Delete(&models.LedgerEntry{}).Error; err != nil {
			config.LogError(logger, "saleWorkflow.go", "RemoveSale", "DeleteLedgerEntries", sale.ID, err)
			return err
		}
		if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.PriceNegotiationLog{}).Error; err != nil {
			config.LogError(logger, "saleWorkflow.go", "RemoveSale", "DeletePriceNegotiationLogs", sale.ID, err)
			return err
		}
		if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.SalePayment{}).Error; err != nil {
			config.LogError(logger, "saleWorkflow.go", "RemoveSale", "DeleteSalePayments", sale.ID, err)
			return err
		}
		if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.SaleItem{}).Error; err != nil {
			config.LogError(logger, "saleWorkflow.go", "RemoveSale", "DeleteSaleItems", sale.ID, err)
			return err
		}
		if err := tx.Delete(&models.Sale{}, sale.ID).Error; err != nil {
			config.LogError(logger, "saleWorkflow.go", "RemoveSale", "DeleteSale", sale.ID, err)
			return err
		}
		return nil
	})
	return mapStoreError(err)
}

// UpdateSale replaces a Pending sale's mutable fields. Inventory effects
// were committed at creation and are deliberately not re-derived here.
func UpdateSale(ctx context.Context, saleId int, input *models.UpdateSaleInput) (*models.Sale, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	if _, ok := utils.GetUserIdFromContext(ctx); !ok {
		return nil, fmt.Errorf("missing acting user: %w", utils.ErrorValidation)
	}

	var updated *models.Sale
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := models.GetSale(tx, saleId)
		if err != nil {
			return err
		}
		if sale.CurrentStatus != models.SaleStatusPending {
			return fmt.Errorf("sale %d is %s: %w", saleId, sale.CurrentStatus, utils.ErrorInvalidStatusTransition)
		}

		updates := map[string]interface{}{}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}
		if input.CustomerId != nil {
			if err := utils.ValidateResourceId[models.Customer](ctx, tx, *input.CustomerId); err != nil {
				return fmt.Errorf("customer not found: %w", utils.ErrorValidation)
			}
			updates["customer_id"] = *input.CustomerId
		}

		if input.Payments != nil {
			for _, p := range *input.Payments {
				if p.Amount.IsNegative() {
					return fmt.Errorf("payment amount cannot be negative: %w", utils.ErrorValidation)
				}
			}
			if err := tx.Where("sale_id = ?", sale.ID).Delete(&models.SalePayment{}).Error; err != nil {
				config.LogError(logger, "saleWorkflow.go", "UpdateSale", "DeleteSalePayments", sale.ID, err)
				return err
			}
			totalPaid := decimal.Zero
			for _, p := range *input.Payments {
				payment := models.SalePayment{SaleId: sale.ID, Method: p.Method, Amount: p.Amount}
				if err := tx.Create(&payment).Error; err != nil {
					config.LogError(logger, "saleWorkflow.go", "UpdateSale", "CreateSalePayment", payment, err)
					return err
				}
				totalPaid = totalPaid.Add(p.Amount)
			}
			updates["total_paid_amount"] = totalPaid
			updates["balance_amount"] = sale.GrandTotalAmount.Sub(totalPaid)
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Sale{}).Where("id = ?", sale.ID).Updates(updates).Error; err != nil {
				config.LogError(logger, "saleWorkflow.go", "UpdateSale", "UpdateSale", updates, err)
				return err
			}
		}

		updated, err = models.GetSale(tx, sale.ID)
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return updated, nil
}
