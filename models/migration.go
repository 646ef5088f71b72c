package models

import (
	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Customer{}, &Supplier{}, &Employee{}, &Location{}, &User{},
		&Product{},
		&InventoryRoll{}, &StockMovement{},
		&LedgerEntry{},
		&PurchaseOrder{}, &PurchaseOrderItem{},
		&Sale{}, &SaleItem{}, &SalePayment{},
		&PriceNegotiationLog{},
	)
	utils.ErrorPanic(err)
}
