package models

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockMovement is one immutable IN/OUT ledger row for a roll. The package
// exposes no update or delete on movements; corrections append a
// compensating movement. Every roll enters the system through a goods
// receipt or a transfer split, and that opening allocation is itself the
// trail's first IN movement, so for every roll
// remaining = sum(IN qty) - sum(OUT qty) must hold.
type StockMovement struct {
	ID            int                   `gorm:"primary_key" json:"id"`
	Direction     MovementDirection     `gorm:"type:enum('IN','OUT');not null" json:"direction"`
	ProductId     int                   `gorm:"index;not null" json:"product_id"`
	RollId        int                   `gorm:"index;not null" json:"roll_id"`
	Qty           decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"qty"`
	Unit          string                `gorm:"size:20;not null;default:'m'" json:"unit"`
	ReferenceType MovementReferenceType `gorm:"type:enum('Sale','PurchaseOrder','Transfer');not null" json:"reference_type"`
	ReferenceID   int                   `gorm:"index" json:"reference_id"`
	BeforeQty     decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"before_qty"`
	AfterQty      decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"after_qty"`
	UnitCost      decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	TotalValue    decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"total_value"`
	CreatedBy     int                   `gorm:"index" json:"created_by"`
	CreatedAt     time.Time             `gorm:"autoCreateTime" json:"created_at"`
}

// RecordMovement appends a movement row. TotalValue is always derived from
// qty and the roll's unit cost at movement time so that the audit trail
// ties to valuation.
func RecordMovement(tx *gorm.DB, m *StockMovement) error {
	if m.Qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("movement qty must be positive: %w", utils.ErrorValidation)
	}
	m.TotalValue = m.Qty.Mul(m.UnitCost)
	return tx.Create(m).Error
}

// SumRollMovements returns sum(IN) and sum(OUT) for a roll. Used by
// reconciliation checks and tests.
func SumRollMovements(tx *gorm.DB, rollId int) (decimal.Decimal, decimal.Decimal, error) {
	type row struct {
		Direction MovementDirection
		Total     decimal.Decimal
	}
	var rows []row
	err := tx.Model(&StockMovement{}).
		Select("direction, COALESCE(SUM(qty), 0) AS total").
		Where("roll_id = ?", rollId).
		Group("direction").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	in := decimal.Zero
	out := decimal.Zero
	for _, r := range rows {
		if r.Direction == MovementDirectionIn {
			in = r.Total
		} else {
			out = r.Total
		}
	}
	return in, out, nil
}

func GetMovementsByReference(tx *gorm.DB, refType MovementReferenceType, refId int) ([]StockMovement, error) {
	var movements []StockMovement
	err := tx.Where("reference_type = ? AND reference_id = ?", refType, refId).
		Order("id").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}
