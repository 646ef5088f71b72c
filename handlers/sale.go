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

func CreateSale(c *gin.Context) {
	var input models.NewSale
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err.Error(), utils.ErrorValidation))
		return
	}

	sale, err := workflow.CreateSale(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func GetSale(c *gin.Context) {
	saleId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid sale id: %w", utils.ErrorValidation))
		return
	}

	sale, err := models.GetSale(config.GetDB().WithContext(c.Request.Context()), saleId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func RemoveSale(c *gin.Context) {
	saleId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid sale id: %w", utils.ErrorValidation))
		return
	}

	if err := workflow.RemoveSale(c.Request.Context(), saleId); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func UpdateSale(c *gin.Context) {
	saleId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid sale id: %w", utils.ErrorValidation))
		return
	}

	var input models.UpdateSaleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err.Error(), utils.ErrorValidation))
		return
	}

	sale, err := workflow.UpdateSale(c.Request.Context(), saleId, &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}
