package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/models"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"bitbucket.org/mmdatafocus/fabric_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestSaleLifecycleAndReversal(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	product := mustCreateProduct(t, ctx, "Cotton Lawn", "CL-001", "100")
	location := mustCreateLocation(t, ctx, "Main Shop")
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Daw Mya"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	staff, err := models.CreateEmployee(ctx, &models.NewEmployee{
		Name:           "Ko Aung",
		CommissionRate: decimal.RequireFromString("2.5"),
	})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}

	roll := mustAllocateRoll(t, db, product.ID, location.ID, "10", "80")

	// Prior customer balance of 1000 so the sale entry chains on top of it.
	seedEntry := models.LedgerEntry{
		PartyType:     models.PartyTypeCustomer,
		PartyId:       customer.ID,
		EntryType:     models.LedgerEntryTypeAdjustment,
		Debit:         decimal.NewFromInt(1000),
		Credit:        decimal.Zero,
		Balance:       decimal.NewFromInt(1000),
		ReferenceType: models.MovementReferenceTypeSale,
		CreatedBy:     1,
	}
	if err := db.Create(&seedEntry).Error; err != nil {
		t.Fatalf("seed ledger entry: %v", err)
	}

	sale, err := workflow.CreateSale(ctx, &models.NewSale{
		CustomerId: &customer.ID,
		StaffId:    &staff.ID,
		Items: []models.NewSaleItem{{
			ProductId: product.ID,
			RollId:    roll.ID,
			Qty:       decimal.NewFromInt(4),
			UnitPrice: decimal.NewFromInt(100),
		}},
		Payments: []models.NewSalePayment{{
			Method: "cash",
			Amount: decimal.NewFromInt(400),
		}},
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	// 4m at 100 with 5% tax: 400 gross, 20 tax, 420 grand total.
	if !sale.SubtotalAmount.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("subtotal = %s, want 400", sale.SubtotalAmount)
	}
	if !sale.TotalTaxAmount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("tax = %s, want 20", sale.TotalTaxAmount)
	}
	if !sale.GrandTotalAmount.Equal(decimal.NewFromInt(420)) {
		t.Fatalf("grand total = %s, want 420", sale.GrandTotalAmount)
	}
	if !sale.BalanceAmount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("balance = %s, want 20", sale.BalanceAmount)
	}

	day := time.Now().Format("20060102")
	if !strings.HasPrefix(sale.SaleNumber, "SALE-"+day+"-") {
		t.Fatalf("sale number %q lacks SALE-%s- prefix", sale.SaleNumber, day)
	}

	reloaded, err := models.GetRoll(db, roll.ID)
	if err != nil {
		t.Fatalf("GetRoll: %v", err)
	}
	if !reloaded.RemainingQty.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("remaining = %s, want 6", reloaded.RemainingQty)
	}

	movements, err := models.GetMovementsByReference(db, models.MovementReferenceTypeSale, sale.ID)
	if err != nil {
		t.Fatalf("GetMovementsByReference: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("movements = %d, want 1", len(movements))
	}
	m := movements[0]
	if m.Direction != models.MovementDirectionOut || !m.Qty.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("movement = %s %s, want OUT 4", m.Direction, m.Qty)
	}
	if !m.BeforeQty.Equal(decimal.NewFromInt(10)) || !m.AfterQty.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("movement snapshot = %s -> %s, want 10 -> 6", m.BeforeQty, m.AfterQty)
	}

	// Customer debit chains 1000 + 420.
	balance, err := models.GetPartyBalance(db, models.PartyTypeCustomer, customer.ID)
	if err != nil {
		t.Fatalf("GetPartyBalance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(1420)) {
		t.Fatalf("customer balance = %s, want 1420", balance)
	}

	// 2.5% of 420.
	commission, err := models.GetPartyBalance(db, models.PartyTypeEmployee, staff.ID)
	if err != nil {
		t.Fatalf("employee GetPartyBalance: %v", err)
	}
	if !commission.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("commission balance = %s, want 10.5", commission)
	}

	// Sold at list price: no negotiation row.
	logs, err := models.GetNegotiationLogsBySale(db, sale.ID)
	if err != nil {
		t.Fatalf("GetNegotiationLogsBySale: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("negotiation logs = %d, want 0", len(logs))
	}

	// A below-list sale on the same roll must leave a negotiation trail.
	// Its 10% line discount resolves against the gross before tax.
	negotiated, err := workflow.CreateSale(ctx, &models.NewSale{
		Items: []models.NewSaleItem{{
			ProductId:      product.ID,
			RollId:         roll.ID,
			Qty:            decimal.NewFromInt(2),
			UnitPrice:      decimal.NewFromInt(95),
			DiscountAmount: decimal.NewFromInt(10),
			DiscountType:   "P",
		}},
	})
	if err != nil {
		t.Fatalf("CreateSale negotiated: %v", err)
	}
	// 2m at 95: 190 gross, 19 discount, 171 net, 8.55 tax.
	if !negotiated.TotalDiscountAmount.Equal(decimal.NewFromInt(19)) {
		t.Fatalf("discount = %s, want 19", negotiated.TotalDiscountAmount)
	}
	if !negotiated.GrandTotalAmount.Equal(decimal.RequireFromString("179.55")) {
		t.Fatalf("grand total = %s, want 179.55", negotiated.GrandTotalAmount)
	}
	logs, err = models.GetNegotiationLogsBySale(db, negotiated.ID)
	if err != nil {
		t.Fatalf("GetNegotiationLogsBySale: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("negotiation logs = %d, want 1", len(logs))
	}
	if !logs[0].ListPrice.Equal(decimal.NewFromInt(100)) || !logs[0].NegotiatedPrice.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("negotiation prices = %s/%s, want 100/95", logs[0].ListPrice, logs[0].NegotiatedPrice)
	}

	// Reversal: quantity restored, every trace of the sale purged, the
	// customer balance back to the seed entry.
	if err := workflow.RemoveSale(ctx, sale.ID); err != nil {
		t.Fatalf("RemoveSale: %v", err)
	}
	if _, err := models.GetSale(db, sale.ID); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("GetSale after removal = %v, want record not found", err)
	}
	reloaded, err = models.GetRoll(db, roll.ID)
	if err != nil {
		t.Fatalf("GetRoll after removal: %v", err)
	}
	if !reloaded.RemainingQty.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("remaining after removal = %s, want 8", reloaded.RemainingQty)
	}
	movements, err = models.GetMovementsByReference(db, models.MovementReferenceTypeSale, sale.ID)
	if err != nil {
		t.Fatalf("GetMovementsByReference after removal: %v", err)
	}
	if len(movements) != 0 {
		t.Fatalf("movements after removal = %d, want 0", len(movements))
	}
	balance, err = models.GetPartyBalance(db, models.PartyTypeCustomer, customer.ID)
	if err != nil {
		t.Fatalf("GetPartyBalance after removal: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("customer balance after removal = %s, want 1000", balance)
	}

	// The trail opened with the allocation IN movement, so the movement
	// sums alone reconcile to what is left on the roll.
	in, out, err := models.SumRollMovements(db, roll.ID)
	if err != nil {
		t.Fatalf("SumRollMovements: %v", err)
	}
	if !in.Sub(out).Equal(reloaded.RemainingQty) {
		t.Fatalf("movement sums %s/%s do not reconcile to remaining %s", in, out, reloaded.RemainingQty)
	}

	// Removing the already-removed sale reports not found, nothing else.
	if err := workflow.RemoveSale(ctx, sale.ID); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("second RemoveSale = %v, want record not found", err)
	}
}

func TestPurchaseOrderReceiptLifecycle(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	product := mustCreateProduct(t, ctx, "Silk Brocade", "SB-001", "250")
	location := mustCreateLocation(t, ctx, "Warehouse")
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Golden Thread Co"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}

	po, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		SupplierId: supplier.ID,
		OrderDate:  time.Now(),
		Items: []models.NewPurchaseOrderItem{{
			ProductId: product.ID,
			Qty:       decimal.NewFromInt(50),
			UnitPrice: decimal.NewFromInt(80),
		}},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	if po.CurrentStatus != models.PurchaseOrderStatusCreated {
		t.Fatalf("status = %s, want Created", po.CurrentStatus)
	}
	if !strings.HasPrefix(po.OrderNumber, "PO-") {
		t.Fatalf("order number %q lacks PO- prefix", po.OrderNumber)
	}

	// Receiving before Ordered is rejected.
	_, err = workflow.ReceivePurchaseOrder(ctx, po.ID, &models.ReceivePurchaseOrder{
		LocationId: location.ID,
		Lines: []models.ReceivePurchaseOrderLine{{
			PurchaseOrderItemId: po.Items[0].ID,
			Qty:                 decimal.NewFromInt(10),
		}},
	})
	if !errors.Is(err, utils.ErrorInvalidStatusTransition) {
		t.Fatalf("receive on Created = %v, want invalid status transition", err)
	}

	po, err = workflow.TransitionPurchaseOrder(ctx, po.ID, models.PurchaseOrderStatusOrdered)
	if err != nil {
		t.Fatalf("TransitionPurchaseOrder: %v", err)
	}

	// First receipt of 30: PartiallyReceived, one roll, one IN movement,
	// one supplier credit.
	receipt, err := workflow.ReceivePurchaseOrder(ctx, po.ID, &models.ReceivePurchaseOrder{
		LocationId: location.ID,
		Lines: []models.ReceivePurchaseOrderLine{{
			PurchaseOrderItemId: po.Items[0].ID,
			Qty:                 decimal.NewFromInt(30),
			BatchNumber:         "B-2025-01",
		}},
	})
	if err != nil {
		t.Fatalf("first receipt: %v", err)
	}
	if receipt.PurchaseOrder.CurrentStatus != models.PurchaseOrderStatusPartiallyReceived {
		t.Fatalf("status = %s, want PartiallyReceived", receipt.PurchaseOrder.CurrentStatus)
	}
	if len(receipt.Rolls) != 1 || len(receipt.Movements) != 1 {
		t.Fatalf("receipt produced %d rolls %d movements, want 1 each", len(receipt.Rolls), len(receipt.Movements))
	}
	if receipt.LedgerEntry == nil || !receipt.LedgerEntry.Credit.Equal(decimal.NewFromInt(2400)) {
		t.Fatalf("receipt ledger entry = %+v, want 2400 credit", receipt.LedgerEntry)
	}

	// Over-receipt of the remaining 20 is rejected as a whole.
	_, err = workflow.ReceivePurchaseOrder(ctx, po.ID, &models.ReceivePurchaseOrder{
		LocationId: location.ID,
		Lines: []models.ReceivePurchaseOrderLine{{
			PurchaseOrderItemId: po.Items[0].ID,
			Qty:                 decimal.NewFromInt(21),
		}},
	})
	if !errors.Is(err, utils.ErrorExcessReceipt) {
		t.Fatalf("over-receipt = %v, want excess receipt", err)
	}

	// Second receipt of 20: Received, two rolls totaling 50.
	receipt, err = workflow.ReceivePurchaseOrder(ctx, po.ID, &models.ReceivePurchaseOrder{
		LocationId: location.ID,
		Lines: []models.ReceivePurchaseOrderLine{{
			PurchaseOrderItemId: po.Items[0].ID,
			Qty:                 decimal.NewFromInt(20),
		}},
	})
	if err != nil {
		t.Fatalf("second receipt: %v", err)
	}
	if receipt.PurchaseOrder.CurrentStatus != models.PurchaseOrderStatusReceived {
		t.Fatalf("status = %s, want Received", receipt.PurchaseOrder.CurrentStatus)
	}

	var rolls []models.InventoryRoll
	if err := db.Where("product_id = ?", product.ID).Find(&rolls).Error; err != nil {
		t.Fatalf("list rolls: %v", err)
	}
	if len(rolls) != 2 {
		t.Fatalf("rolls = %d, want 2", len(rolls))
	}
	totalRemaining := decimal.Zero
	for _, r := range rolls {
		totalRemaining = totalRemaining.Add(r.RemainingQty)
		if r.SupplierId != supplier.ID || r.LocationId != location.ID {
			t.Fatalf("roll %d has supplier %d location %d", r.ID, r.SupplierId, r.LocationId)
		}
		if !r.CostPerUnit.Equal(decimal.NewFromInt(80)) {
			t.Fatalf("roll %d cost = %s, want 80", r.ID, r.CostPerUnit)
		}
		if r.BatchNumber == "" {
			t.Fatalf("roll %d has empty batch number", r.ID)
		}
	}
	if !totalRemaining.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("total remaining = %s, want 50", totalRemaining)
	}

	// Each receipt-created roll opens its trail with the receipt's IN
	// movement; the sums reconcile without touching initial_qty.
	for _, r := range rolls {
		in, out, err := models.SumRollMovements(db, r.ID)
		if err != nil {
			t.Fatalf("SumRollMovements roll %d: %v", r.ID, err)
		}
		if !in.Sub(out).Equal(r.RemainingQty) {
			t.Fatalf("roll %d movement sums %s/%s do not reconcile to remaining %s", r.ID, in, out, r.RemainingQty)
		}
	}

	// Supplier ledger carries both receipt credits: 30*80 + 20*80, and a
	// full replay of the history reproduces the stored running balance.
	balance, err := models.GetPartyBalance(db, models.PartyTypeSupplier, supplier.ID)
	if err != nil {
		t.Fatalf("GetPartyBalance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(-4000)) {
		t.Fatalf("supplier balance = %s, want -4000", balance)
	}
	replayed, err := models.ReplayPartyBalance(db, models.PartyTypeSupplier, supplier.ID)
	if err != nil {
		t.Fatalf("ReplayPartyBalance: %v", err)
	}
	if !replayed.Equal(balance) {
		t.Fatalf("replayed balance %s != stored balance %s", replayed, balance)
	}

	po, err = workflow.ClosePurchaseOrder(ctx, po.ID)
	if err != nil {
		t.Fatalf("ClosePurchaseOrder: %v", err)
	}
	if po.CurrentStatus != models.PurchaseOrderStatusClosed {
		t.Fatalf("status = %s, want Closed", po.CurrentStatus)
	}
	if _, err := workflow.ClosePurchaseOrder(ctx, po.ID); !errors.Is(err, utils.ErrorInvalidStatusTransition) {
		t.Fatalf("second close = %v, want invalid status transition", err)
	}
}

func TestTransferSplitAndRelocate(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	product := mustCreateProduct(t, ctx, "Linen Blend", "LB-001", "150")
	source := mustCreateLocation(t, ctx, "Shop A")
	destination := mustCreateLocation(t, ctx, "Shop B")

	// Partial quantity splits the roll.
	splitSource := mustAllocateRoll(t, db, product.ID, source.ID, "10", "60")
	results, err := workflow.TransferStock(ctx, &workflow.TransferStockInput{
		FromLocationId: source.ID,
		ToLocationId:   destination.ID,
		Items: []workflow.TransferStockItem{{
			RollId: splitSource.ID,
			Qty:    decimal.NewFromInt(4),
		}},
	})
	if err != nil {
		t.Fatalf("TransferStock split: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	result := results[0]
	if result.SourceRoll.ID == result.DestinationRoll.ID {
		t.Fatalf("split should create a new destination roll")
	}
	if !result.SourceRoll.RemainingQty.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("source remaining = %s, want 6", result.SourceRoll.RemainingQty)
	}
	if !result.DestinationRoll.RemainingQty.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("destination remaining = %s, want 4", result.DestinationRoll.RemainingQty)
	}
	if result.DestinationRoll.LocationId != destination.ID {
		t.Fatalf("destination roll at location %d, want %d", result.DestinationRoll.LocationId, destination.ID)
	}
	if !result.DestinationRoll.CostPerUnit.Equal(splitSource.CostPerUnit) {
		t.Fatalf("destination cost = %s, want %s", result.DestinationRoll.CostPerUnit, splitSource.CostPerUnit)
	}
	if result.DestinationRoll.IsTailCut == nil || !*result.DestinationRoll.IsTailCut {
		t.Fatalf("split destination roll should be flagged as a cut")
	}

	movements, err := models.GetMovementsByReference(db, models.MovementReferenceTypeTransfer, result.DestinationRoll.ID)
	if err != nil {
		t.Fatalf("GetMovementsByReference: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("movements = %d, want OUT+IN pair", len(movements))
	}

	// The split destination's trail opens with the transfer's IN movement
	// and reconciles on movement sums alone; the source roll reconciles
	// the same way after giving up the cut.
	in, out, err := models.SumRollMovements(db, result.DestinationRoll.ID)
	if err != nil {
		t.Fatalf("SumRollMovements destination: %v", err)
	}
	if !in.Sub(out).Equal(result.DestinationRoll.RemainingQty) {
		t.Fatalf("destination movement sums %s/%s do not reconcile to remaining %s", in, out, result.DestinationRoll.RemainingQty)
	}
	in, out, err = models.SumRollMovements(db, splitSource.ID)
	if err != nil {
		t.Fatalf("SumRollMovements source: %v", err)
	}
	if !in.Sub(out).Equal(result.SourceRoll.RemainingQty) {
		t.Fatalf("source movement sums %s/%s do not reconcile to remaining %s", in, out, result.SourceRoll.RemainingQty)
	}

	// Full quantity relocates the roll in place.
	wholeSource := mustAllocateRoll(t, db, product.ID, source.ID, "10", "60")
	results, err = workflow.TransferStock(ctx, &workflow.TransferStockInput{
		FromLocationId: source.ID,
		ToLocationId:   destination.ID,
		Items: []workflow.TransferStockItem{{
			RollId: wholeSource.ID,
			Qty:    decimal.NewFromInt(10),
		}},
	})
	if err != nil {
		t.Fatalf("TransferStock relocate: %v", err)
	}
	result = results[0]
	if result.SourceRoll.ID != wholeSource.ID || result.DestinationRoll.ID != wholeSource.ID {
		t.Fatalf("relocate should keep the same roll")
	}
	if result.DestinationRoll.LocationId != destination.ID {
		t.Fatalf("relocated roll at location %d, want %d", result.DestinationRoll.LocationId, destination.ID)
	}
	if !result.DestinationRoll.RemainingQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("relocated remaining = %s, want 10", result.DestinationRoll.RemainingQty)
	}

	// Wrong source location is a location mismatch, and the whole request
	// rolls back even when another item would have succeeded.
	goodRoll := mustAllocateRoll(t, db, product.ID, destination.ID, "8", "60")
	_, err = workflow.TransferStock(ctx, &workflow.TransferStockInput{
		FromLocationId: destination.ID,
		ToLocationId:   source.ID,
		Items: []workflow.TransferStockItem{
			{RollId: goodRoll.ID, Qty: decimal.NewFromInt(2)},
			{RollId: splitSource.ID, Qty: decimal.NewFromInt(1)},
		},
	})
	if !errors.Is(err, utils.ErrorLocationMismatch) {
		t.Fatalf("wrong source location = %v, want location mismatch", err)
	}
	untouched, err := models.GetRoll(db, goodRoll.ID)
	if err != nil {
		t.Fatalf("GetRoll: %v", err)
	}
	if !untouched.RemainingQty.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("good roll remaining = %s after failed batch, want 8", untouched.RemainingQty)
	}

	// Same-location transfers are rejected outright.
	_, err = workflow.TransferStock(ctx, &workflow.TransferStockInput{
		FromLocationId: source.ID,
		ToLocationId:   source.ID,
		Items: []workflow.TransferStockItem{{
			RollId: splitSource.ID,
			Qty:    decimal.NewFromInt(1),
		}},
	})
	if !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("same-location transfer = %v, want validation error", err)
	}
}

func TestConcurrentSaleDecrement(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	product := mustCreateProduct(t, ctx, "Chiffon", "CH-001", "100")
	location := mustCreateLocation(t, ctx, "Main Shop")
	roll := mustAllocateRoll(t, db, product.ID, location.ID, "10", "70")

	// Two concurrent sales of 6 from a 10-unit roll: exactly one wins.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = workflow.CreateSale(ctx, &models.NewSale{
				Items: []models.NewSaleItem{{
					ProductId: product.ID,
					RollId:    roll.ID,
					Qty:       decimal.NewFromInt(6),
					UnitPrice: decimal.NewFromInt(100),
				}},
			})
		}(i)
	}
	wg.Wait()

	succeeded, failed := 0, 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		failed++
		if !errors.Is(err, utils.ErrorInsufficientStock) && !errors.Is(err, utils.ErrorConflictRetry) {
			t.Fatalf("loser error = %v, want insufficient stock or conflict", err)
		}
	}
	if succeeded != 1 || failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want exactly one of each", succeeded, failed)
	}

	reloaded, err := models.GetRoll(db, roll.ID)
	if err != nil {
		t.Fatalf("GetRoll: %v", err)
	}
	if !reloaded.RemainingQty.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("remaining = %s, want 4", reloaded.RemainingQty)
	}
	if reloaded.Status != models.RollStatusLowStock {
		t.Fatalf("status = %s, want LowStock at remaining 4", reloaded.Status)
	}
}

func TestConcurrentLedgerPostings(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	product := mustCreateProduct(t, ctx, "Voile", "VO-001", "100")
	location := mustCreateLocation(t, ctx, "Main Shop")
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Ma Hla"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	rollA := mustAllocateRoll(t, db, product.ID, location.ID, "10", "70")
	rollB := mustAllocateRoll(t, db, product.ID, location.ID, "10", "70")

	// Two sales for the same customer race each other on separate rolls.
	// The party posting lock is held until each transaction commits, so
	// the second entry must chain on the first one's committed balance;
	// a lock released before commit would let both read balance 0 and
	// both write 420.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, rollId := range []int{rollA.ID, rollB.ID} {
		wg.Add(1)
		go func(i, rollId int) {
			defer wg.Done()
			_, errs[i] = workflow.CreateSale(ctx, &models.NewSale{
				CustomerId: &customer.ID,
				Items: []models.NewSaleItem{{
					ProductId: product.ID,
					RollId:    rollId,
					Qty:       decimal.NewFromInt(4),
					UnitPrice: decimal.NewFromInt(100),
				}},
			})
		}(i, rollId)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("CreateSale %d: %v", i, err)
		}
	}

	balance, err := models.GetPartyBalance(db, models.PartyTypeCustomer, customer.ID)
	if err != nil {
		t.Fatalf("GetPartyBalance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(840)) {
		t.Fatalf("customer balance = %s, want 840", balance)
	}

	var entries []models.LedgerEntry
	err = db.Where("party_type = ? AND party_id = ?", models.PartyTypeCustomer, customer.ID).
		Order("id").Find(&entries).Error
	if err != nil {
		t.Fatalf("list ledger entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(entries))
	}
	if !entries[0].Balance.Equal(decimal.NewFromInt(420)) || !entries[1].Balance.Equal(decimal.NewFromInt(840)) {
		t.Fatalf("running balances = %s/%s, want 420/840", entries[0].Balance, entries[1].Balance)
	}
}

func TestSaleNumberRecoversFromStaleCounter(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	product := mustCreateProduct(t, ctx, "Organza", "OR-001", "100")
	location := mustCreateLocation(t, ctx, "Main Shop")
	roll := mustAllocateRoll(t, db, product.ID, location.ID, "30", "70")

	newSale := func() *models.NewSale {
		return &models.NewSale{
			Items: []models.NewSaleItem{{
				ProductId: product.ID,
				RollId:    roll.ID,
				Qty:       decimal.NewFromInt(1),
				UnitPrice: decimal.NewFromInt(100),
			}},
		}
	}

	first, err := workflow.CreateSale(ctx, newSale())
	if err != nil {
		t.Fatalf("CreateSale first: %v", err)
	}
	second, err := workflow.CreateSale(ctx, newSale())
	if err != nil {
		t.Fatalf("CreateSale second: %v", err)
	}
	if second.DailySeqNo != first.DailySeqNo+1 {
		t.Fatalf("second seq = %d, want %d", second.DailySeqNo, first.DailySeqNo+1)
	}

	// Rewind the counter below the store's high-water mark, as a restored
	// redis snapshot would. The next sale must skip past the persisted
	// numbers instead of reissuing one of them.
	dateKey := time.Now().Format("20060102")
	if err := config.SetRedisValue("sale_seq:"+dateKey, fmt.Sprint(second.DailySeqNo-1), time.Hour); err != nil {
		t.Fatalf("SetRedisValue: %v", err)
	}

	third, err := workflow.CreateSale(ctx, newSale())
	if err != nil {
		t.Fatalf("CreateSale third: %v", err)
	}
	if third.DailySeqNo != second.DailySeqNo+1 {
		t.Fatalf("third seq = %d, want %d", third.DailySeqNo, second.DailySeqNo+1)
	}
	if third.SaleNumber == first.SaleNumber || third.SaleNumber == second.SaleNumber {
		t.Fatalf("sale number %q reissued", third.SaleNumber)
	}
}

func TestRollStatusMarking(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	db := config.GetDB()

	product := mustCreateProduct(t, ctx, "Twill", "TW-001", "120")
	location := mustCreateLocation(t, ctx, "Warehouse")
	roll := mustAllocateRoll(t, db, product.ID, location.ID, "10", "50")

	if err := models.MarkRollStatus(db, roll.ID, models.RollStatusDamaged); err != nil {
		t.Fatalf("MarkRollStatus: %v", err)
	}
	reloaded, err := models.GetRoll(db, roll.ID)
	if err != nil {
		t.Fatalf("GetRoll: %v", err)
	}
	if reloaded.Status != models.RollStatusDamaged {
		t.Fatalf("status = %s, want Damaged", reloaded.Status)
	}

	// A quantity change never overwrites an operator-set status.
	if _, err := models.DecrementRoll(db, roll.ID, decimal.NewFromInt(2)); err != nil {
		t.Fatalf("DecrementRoll: %v", err)
	}
	reloaded, err = models.GetRoll(db, roll.ID)
	if err != nil {
		t.Fatalf("GetRoll after decrement: %v", err)
	}
	if reloaded.Status != models.RollStatusDamaged {
		t.Fatalf("status after decrement = %s, want Damaged", reloaded.Status)
	}

	// Quantity-driven statuses cannot be assigned by hand.
	if err := models.MarkRollStatus(db, roll.ID, models.RollStatusAvailable); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("manual Available = %v, want validation error", err)
	}
	if err := models.MarkRollStatus(db, 99999, models.RollStatusReserved); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("missing roll = %v, want record not found", err)
	}
}

func setupIntegrationEnv(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "fabric_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

func mustCreateProduct(t *testing.T, ctx context.Context, name, sku, listPrice string) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:      name,
		Sku:       sku,
		ListPrice: decimal.RequireFromString(listPrice),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	return product
}

func mustCreateLocation(t *testing.T, ctx context.Context, name string) *models.Location {
	t.Helper()
	location, err := models.CreateLocation(ctx, &models.NewLocation{Name: name})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	return location
}

func mustAllocateRoll(t *testing.T, db *gorm.DB, productId, locationId int, qty, cost string) *models.InventoryRoll {
	t.Helper()
	roll := models.InventoryRoll{
		ProductId:   productId,
		InitialQty:  decimal.RequireFromString(qty),
		CostPerUnit: decimal.RequireFromString(cost),
		LocationId:  locationId,
		CreatedBy:   1,
	}
	if err := models.AllocateRoll(db, &roll); err != nil {
		t.Fatalf("AllocateRoll: %v", err)
	}
	// Seeded stock lands the way a goods receipt would: the allocation
	// itself is the first IN movement on the roll's trail.
	opening := models.StockMovement{
		Direction:     models.MovementDirectionIn,
		ProductId:     productId,
		RollId:        roll.ID,
		Qty:           roll.InitialQty,
		Unit:          roll.Unit,
		ReferenceType: models.MovementReferenceTypePurchaseOrder,
		BeforeQty:     decimal.Zero,
		AfterQty:      roll.InitialQty,
		UnitCost:      roll.CostPerUnit,
		CreatedBy:     1,
	}
	if err := models.RecordMovement(db, &opening); err != nil {
		t.Fatalf("record opening movement: %v", err)
	}
	return &roll
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("fabric-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("fabric-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=fabric_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
