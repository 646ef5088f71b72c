package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/models"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"bitbucket.org/mmdatafocus/fabric_backend/workflow"
	"github.com/gin-gonic/gin"
)

func CreatePurchaseOrder(c *gin.Context) {
	var input models.NewPurchaseOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err.Error(), utils.ErrorValidation))
		return
	}

	po, err := models.CreatePurchaseOrder(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, po)
}

func GetPurchaseOrder(c *gin.Context) {
	poId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid purchase order id: %w", utils.ErrorValidation))
		return
	}

	po, err := models.GetPurchaseOrder(config.GetDB().WithContext(c.Request.Context()), poId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func ReceivePurchaseOrder(c *gin.Context) {
	poId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid purchase order id: %w", utils.ErrorValidation))
		return
	}

	var input models.ReceivePurchaseOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err.Error(), utils.ErrorValidation))
		return
	}

	result, err := workflow.ReceivePurchaseOrder(c.Request.Context(), poId, &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type transitionRequest struct {
	Status models.PurchaseOrderStatus `json:"status" binding:"required"`
}

func TransitionPurchaseOrder(c *gin.Context) {
	poId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid purchase order id: %w", utils.ErrorValidation))
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err.Error(), utils.ErrorValidation))
		return
	}

	po, err := workflow.TransitionPurchaseOrder(c.Request.Context(), poId, req.Status)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func ClosePurchaseOrder(c *gin.Context) {
	poId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid purchase order id: %w", utils.ErrorValidation))
		return
	}

	po, err := workflow.ClosePurchaseOrder(c.Request.Context(), poId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}
