package handlers

import (
	"bitbucket.org/mmdatafocus/fabric_backend/middlewares"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the REST boundary. Reads are open behind the auth
// middleware's pass-through; every mutating route requires a valid token.
func RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/login", Login)

	r.GET("/rolls/:id", GetRoll)
	r.GET("/rolls/:id/movements", GetRollMovements)
	r.GET("/parties/:type/:id/balance", GetPartyBalance)
	r.GET("/sales/:id", GetSale)
	r.GET("/purchase-orders/:id", GetPurchaseOrder)

	authed := r.Group("/", middlewares.RequireAuth())
	{
		authed.POST("/sales", CreateSale)
		authed.PATCH("/sales/:id", UpdateSale)
		authed.DELETE("/sales/:id", RemoveSale)

		authed.POST("/purchase-orders", CreatePurchaseOrder)
		authed.POST("/purchase-orders/:id/receive", ReceivePurchaseOrder)
		authed.POST("/purchase-orders/:id/status", TransitionPurchaseOrder)
		authed.POST("/purchase-orders/:id/close", ClosePurchaseOrder)

		authed.POST("/transfers", TransferStock)

		authed.PATCH("/rolls/:id/status", MarkRollStatus)
	}
}
