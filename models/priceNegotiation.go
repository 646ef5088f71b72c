package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceNegotiationLog records a sale line that was sold away from the
// product's list price, for later review. Rows are purged together with
// their sale when a Pending sale is removed.
type PriceNegotiationLog struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SaleId          int             `gorm:"index;not null" json:"sale_id"`
	SaleItemId      int             `gorm:"index;not null" json:"sale_item_id"`
	ProductId       int             `gorm:"index;not null" json:"product_id"`
	ListPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"list_price"`
	NegotiatedPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"negotiated_price"`
	CreatedBy       int             `gorm:"index" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func GetNegotiationLogsBySale(tx *gorm.DB, saleId int) ([]PriceNegotiationLog, error) {
	var logs []PriceNegotiationLog
	err := tx.Where("sale_id = ?", saleId).Order("id").Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
