package models

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryRoll is the authoritative record of one physical stock unit
// (a bolt of fabric). Rolls are created on purchase receipt or transfer
// split and are never hard-deleted; disposal is a status change.
//
// RemainingQty is only ever mutated through DecrementRoll/IncrementRoll so
// that every quantity delta has a matching StockMovement row appended in
// the same transaction by the calling workflow.
type InventoryRoll struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	SupplierId   int             `gorm:"index" json:"supplier_id"`
	BatchNumber  string          `gorm:"size:100" json:"batch_number"`
	InitialQty   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"initial_qty"`
	RemainingQty decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"remaining_qty"`
	Unit         string          `gorm:"size:20;not null;default:'m'" json:"unit"`
	Status       RollStatus      `gorm:"type:enum('Available','LowStock','OutOfStock','Reserved','Damaged','Disposed');default:'Available'" json:"status"`
	CostPerUnit  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_per_unit"`
	LocationId   int             `gorm:"index;not null" json:"location_id"`
	IsTailCut    *bool           `gorm:"not null;default:false" json:"is_tail_cut"`
	CreatedBy    int             `gorm:"index" json:"created_by"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// RollMutation reports one committed quantity change. BeforeQty/AfterQty
// feed the movement row's snapshot fields.
type RollMutation struct {
	Roll      *InventoryRoll
	BeforeQty decimal.Decimal
	AfterQty  decimal.Decimal
}

func GetRoll(tx *gorm.DB, rollId int) (*InventoryRoll, error) {
	var roll InventoryRoll
	err := tx.First(&roll, rollId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("roll %d: %w", rollId, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &roll, nil
}

// AllocateRoll creates a new roll with its derived status. Used on purchase
// receipt and on the destination side of a transfer split; the caller
// records the opening IN movement in the same transaction so the roll's
// trail reconciles from its first row.
func AllocateRoll(tx *gorm.DB, roll *InventoryRoll) error {
	if roll.RemainingQty.IsZero() {
		roll.RemainingQty = roll.InitialQty
	}
	roll.Status = ComputeRollStatus(roll.RemainingQty)
	if roll.IsTailCut == nil {
		roll.IsTailCut = utils.NewFalse()
	}
	return tx.Create(roll).Error
}

// DecrementRoll subtracts qty from the roll's remaining quantity, guarded
// so that two concurrent callers cannot both take the last units: the
// UPDATE only applies while remaining_qty >= qty, first committer wins.
func DecrementRoll(tx *gorm.DB, rollId int, qty decimal.Decimal) (*RollMutation, error) {
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("decrement qty must be positive: %w", utils.ErrorValidation)
	}
	if _, err := GetRoll(tx, rollId); err != nil {
		return nil, err
	}
	res := tx.Model(&InventoryRoll{}).
		Where("id = ? AND remaining_qty >= ?", rollId, qty).
		Update("remaining_qty", gorm.Expr("remaining_qty - ?", qty))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("roll %d: %w", rollId, utils.ErrorInsufficientStock)
	}
	return finishRollMutation(tx, rollId, qty, true)
}

// IncrementRoll adds qty back (sale reversal, receipt corrections).
func IncrementRoll(tx *gorm.DB, rollId int, qty decimal.Decimal) (*RollMutation, error) {
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("increment qty must be positive: %w", utils.ErrorValidation)
	}
	if _, err := GetRoll(tx, rollId); err != nil {
		return nil, err
	}
	res := tx.Model(&InventoryRoll{}).
		Where("id = ?", rollId).
		Update("remaining_qty", gorm.Expr("remaining_qty + ?", qty))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("roll %d: %w", rollId, utils.ErrorRecordNotFound)
	}
	return finishRollMutation(tx, rollId, qty, false)
}

// finishRollMutation reloads the mutated roll, recomputes the derived
// status and reconstructs the before quantity from the committed delta
// (the pre-read value may be stale under concurrency; the delta is not).
func finishRollMutation(tx *gorm.DB, rollId int, qty decimal.Decimal, outgoing bool) (*RollMutation, error) {
	roll, err := GetRoll(tx, rollId)
	if err != nil {
		return nil, err
	}
	var before decimal.Decimal
	if outgoing {
		before = roll.RemainingQty.Add(qty)
	} else {
		before = roll.RemainingQty.Sub(qty)
	}
	status := ComputeRollStatus(roll.RemainingQty)
	if status != roll.Status && !isManualRollStatus(roll.Status) {
		if err := tx.Model(roll).Update("status", status).Error; err != nil {
			return nil, err
		}
		roll.Status = status
	}
	return &RollMutation{Roll: roll, BeforeQty: before, AfterQty: roll.RemainingQty}, nil
}

// RelocateRoll moves a roll to another location in place (full-quantity
// transfers do not split).
func RelocateRoll(tx *gorm.DB, rollId int, toLocationId int) error {
	res := tx.Model(&InventoryRoll{}).Where("id = ?", rollId).Update("location_id", toLocationId)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("roll %d: %w", rollId, utils.ErrorRecordNotFound)
	}
	return nil
}

// MarkRollStatus sets an operator lifecycle status (Reserved, Damaged,
// Disposed). Quantity-driven statuses are recomputed on mutation instead.
func MarkRollStatus(tx *gorm.DB, rollId int, status RollStatus) error {
	if !isManualRollStatus(status) {
		return fmt.Errorf("status %s is derived, not assignable: %w", status, utils.ErrorValidation)
	}
	res := tx.Model(&InventoryRoll{}).Where("id = ?", rollId).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("roll %d: %w", rollId, utils.ErrorRecordNotFound)
	}
	return nil
}

func isManualRollStatus(s RollStatus) bool {
	return s == RollStatusReserved || s == RollStatusDamaged || s == RollStatusDisposed
}
