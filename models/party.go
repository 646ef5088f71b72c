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

// Parties (customers, suppliers, employees) carry no stored balance of
// their own; the Party Ledger's latest entry is the balance.

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone     string    `gorm:"size:30" json:"phone"`
	Email     string    `gorm:"size:100" json:"email"`
	Address   string    `gorm:"type:text;default:null" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone     string    `gorm:"size:30" json:"phone"`
	Email     string    `gorm:"size:100" json:"email"`
	Address   string    `gorm:"type:text;default:null" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Employee struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Name           string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone          string          `gorm:"size:30" json:"phone"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"commission_rate"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Location struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name" binding:"required"`
	Address   string    `gorm:"type:text;default:null" json:"address"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	db := config.GetDB()
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, fmt.Errorf("invalid phone number: %w", utils.ErrorValidation)
		}
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, fmt.Errorf("invalid email: %w", utils.ErrorValidation)
	}
	customer := Customer{
		Name:     input.Name,
		Phone:    utils.NormalizePhoneNumber(input.Phone, utils.CountryCode),
		Email:    input.Email,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

type NewSupplier struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	db := config.GetDB()
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, fmt.Errorf("invalid phone number: %w", utils.ErrorValidation)
		}
	}
	supplier := Supplier{
		Name:     input.Name,
		Phone:    utils.NormalizePhoneNumber(input.Phone, utils.CountryCode),
		Email:    input.Email,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

type NewEmployee struct {
	Name           string          `json:"name" binding:"required"`
	Phone          string          `json:"phone"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

func CreateEmployee(ctx context.Context, input *NewEmployee) (*Employee, error) {
	db := config.GetDB()
	if input.CommissionRate.IsNegative() {
		return nil, fmt.Errorf("commission rate cannot be negative: %w", utils.ErrorValidation)
	}
	employee := Employee{
		Name:           input.Name,
		Phone:          utils.NormalizePhoneNumber(input.Phone, utils.CountryCode),
		CommissionRate: input.CommissionRate,
		IsActive:       utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

type NewLocation struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

func CreateLocation(ctx context.Context, input *NewLocation) (*Location, error) {
	db := config.GetDB()
	location := Location{Name: input.Name, Address: input.Address}
	if err := db.WithContext(ctx).Create(&location).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

func GetEmployee(tx *gorm.DB, employeeId int) (*Employee, error) {
	var employee Employee
	err := tx.First(&employee, employeeId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("employee %d: %w", employeeId, utils.ErrorRecordNotFound)
		}
		return nil, err
	}
	return &employee, nil
}
