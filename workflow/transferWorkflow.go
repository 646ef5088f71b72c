package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/models"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type TransferStockInput struct {
	FromLocationId int                 `json:"from_location_id" binding:"required"`
	ToLocationId   int                 `json:"to_location_id" binding:"required"`
	Items          []TransferStockItem `json:"items" binding:"required,dive"`
	Notes          string              `json:"notes"`
}

type TransferStockItem struct {
	RollId int             `json:"roll_id" binding:"required"`
	Qty    decimal.Decimal `json:"qty" binding:"required"`
}

// TransferResult reports both sides of one committed item. SourceRoll and
// DestinationRoll are the same roll when the whole remaining quantity
// moved and the roll was relocated instead of split.
type TransferResult struct {
	SourceRoll      *models.InventoryRoll `json:"source_roll"`
	DestinationRoll *models.InventoryRoll `json:"destination_roll"`
	OutMovementId   int                   `json:"out_movement_id"`
	InMovementId    int                   `json:"in_movement_id"`
}

// TransferStock moves quantities from rolls at one location to another,
// atomically across every item in the request. Moving a roll's full
// remaining quantity relocates it in place; moving less splits it,
// decrementing the source and allocating a destination roll that carries
// the source's cost basis and batch. Either way exactly one OUT and one
// IN movement are recorded per item in the same transaction.
func TransferStock(ctx context.Context, input *TransferStockInput) ([]TransferResult, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("missing acting user: %w", utils.ErrorValidation)
	}
	if input.FromLocationId == input.ToLocationId {
		return nil, fmt.Errorf("transfer within the same location: %w", utils.ErrorValidation)
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("transfer needs at least one item: %w", utils.ErrorValidation)
	}
	rollIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Qty.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("transfer qty must be positive: %w", utils.ErrorValidation)
		}
		rollIds = append(rollIds, item.RollId)
	}
	// a roll may appear once per request; a second line against the same
	// roll would race its own relocation or split
	if len(utils.UniqueSlice(rollIds)) != len(rollIds) {
		return nil, fmt.Errorf("duplicate roll in transfer request: %w", utils.ErrorValidation)
	}
	if err := utils.ValidateResourceId[models.Location](ctx, db, input.ToLocationId); err != nil {
		return nil, fmt.Errorf("destination location not found: %w", utils.ErrorValidation)
	}

	results := make([]TransferResult, 0, len(input.Items))
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range input.Items {
			roll, err := models.GetRoll(tx, item.RollId)
			if err != nil {
				config.LogError(logger, "transferWorkflow.go", "TransferStock", "GetRoll", item.RollId, err)
				return err
			}
			if roll.LocationId != input.FromLocationId {
				return fmt.Errorf("roll %d is at location %d, not %d: %w",
					roll.ID, roll.LocationId, input.FromLocationId, utils.ErrorLocationMismatch)
			}

			var result *TransferResult
			if item.Qty.Equal(roll.RemainingQty) {
				result, err = relocateWholeRoll(tx, logger, roll, input.ToLocationId, userId)
			} else {
				result, err = splitRoll(tx, logger, roll, item.Qty, input.ToLocationId, userId)
			}
			if err != nil {
				return err
			}
			results = append(results, *result)
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return results, nil
}

func relocateWholeRoll(tx *gorm.DB, logger *logrus.Logger, roll *models.InventoryRoll, toLocationId int, userId int) (*TransferResult, error) {
	if err := models.RelocateRoll(tx, roll.ID, toLocationId); err != nil {
		config.LogError(logger, "transferWorkflow.go", "relocateWholeRoll", "RelocateRoll", roll.ID, err)
		return nil, err
	}

	// the roll keeps its quantity; the movement pair documents the hop
	out := models.StockMovement{
		Direction:     models.MovementDirectionOut,
		ProductId:     roll.ProductId,
		RollId:        roll.ID,
		Qty:           roll.RemainingQty,
		Unit:          roll.Unit,
		ReferenceType: models.MovementReferenceTypeTransfer,
		ReferenceID:   roll.ID,
		BeforeQty:     roll.RemainingQty,
		AfterQty:      roll.RemainingQty,
		UnitCost:      roll.CostPerUnit,
		CreatedBy:     userId,
	}
	if err := models.RecordMovement(tx, &out); err != nil {
		config.LogError(logger, "transferWorkflow.go", "relocateWholeRoll", "RecordOutMovement", out, err)
		return nil, err
	}
	in := out
	in.ID = 0
	in.Direction = models.MovementDirectionIn
	if err := models.RecordMovement(tx, &in); err != nil {
		config.LogError(logger, "transferWorkflow.go", "relocateWholeRoll", "RecordInMovement", in, err)
		return nil, err
	}

	moved, err := models.GetRoll(tx, roll.ID)
	if err != nil {
		return nil, err
	}
	return &TransferResult{
		SourceRoll:      moved,
		DestinationRoll: moved,
		OutMovementId:   out.ID,
		InMovementId:    in.ID,
	}, nil
}

func splitRoll(tx *gorm.DB, logger *logrus.Logger, roll *models.InventoryRoll, qty decimal.Decimal, toLocationId int, userId int) (*TransferResult, error) {
	mutation, err := models.DecrementRoll(tx, roll.ID, qty)
	if err != nil {
		config.LogError(logger, "transferWorkflow.go", "splitRoll", "DecrementRoll", roll.ID, err)
		return nil, err
	}

	destination := models.InventoryRoll{
		ProductId:   roll.ProductId,
		SupplierId:  roll.SupplierId,
		BatchNumber: roll.BatchNumber,
		InitialQty:  qty,
		Unit:        roll.Unit,
		CostPerUnit: roll.CostPerUnit,
		LocationId:  toLocationId,
		IsTailCut:   utils.NewTrue(),
		CreatedBy:   userId,
	}
	if err := models.AllocateRoll(tx, &destination); err != nil {
		config.LogError(logger, "transferWorkflow.go", "splitRoll", "AllocateRoll", destination, err)
		return nil, err
	}

	out := models.StockMovement{
		Direction:     models.MovementDirectionOut,
		ProductId:     roll.ProductId,
		RollId:        roll.ID,
		Qty:           qty,
		Unit:          roll.Unit,
		ReferenceType: models.MovementReferenceTypeTransfer,
		ReferenceID:   destination.ID,
		BeforeQty:     mutation.BeforeQty,
		AfterQty:      mutation.AfterQty,
		UnitCost:      roll.CostPerUnit,
		CreatedBy:     userId,
	}
	if err := models.RecordMovement(tx, &out); err != nil {
		config.LogError(logger, "transferWorkflow.go", "splitRoll", "RecordOutMovement", out, err)
		return nil, err
	}
	in := models.StockMovement{
		Direction:     models.MovementDirectionIn,
		ProductId:     roll.ProductId,
		RollId:        destination.ID,
		Qty:           qty,
		Unit:          roll.Unit,
		ReferenceType: models.MovementReferenceTypeTransfer,
		ReferenceID:   destination.ID,
		BeforeQty:     decimal.Zero,
		AfterQty:      destination.RemainingQty,
		UnitCost:      roll.CostPerUnit,
		CreatedBy:     userId,
	}
	if err := models.RecordMovement(tx, &in); err != nil {
		config.LogError(logger, "transferWorkflow.go", "splitRoll", "RecordInMovement", in, err)
		return nil, err
	}

	return &TransferResult{
		SourceRoll:      mutation.Roll,
		DestinationRoll: &destination,
		OutMovementId:   out.ID,
		InMovementId:    in.ID,
	}, nil
}
