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

type Product struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku       string          `gorm:"size:100;uniqueIndex" json:"sku"`
	Unit      string          `gorm:"size:20;not null;default:'m'" json:"unit"`
	ListPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"list_price"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name      string          `json:"name" binding:"required"`
	Sku       string          `json:"sku"`
	Unit      string          `json:"unit"`
	ListPrice decimal.Decimal `json:"list_price"`
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()
	if input.Name == "" {
		return nil, fmt.Errorf("product name is required: %w", utils.ErrorValidation)
	}
	unit := input.Unit
	if unit == "" {
		unit = "m"
	}
	product := Product{
		Name:      input.Name,
		Sku:       input.Sku,
		Unit:      unit,
		ListPrice: input.ListPrice,
		IsActive:  utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProduct(tx *gorm.DB, productId int) (*Product, error) {
	var product Product
	err := tx.First(&product, productId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("product %d: %w", productId, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &product, nil
}
