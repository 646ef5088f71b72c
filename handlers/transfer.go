package handlers

import (
	"fmt"
	"net/http"

	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"bitbucket.org/mmdatafocus/fabric_backend/workflow"
	"github.com/gin-gonic/gin"
)

func TransferStock(c *gin.Context) {
	var input workflow.TransferStockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err.Error(), utils.ErrorValidation))
		return
	}

	result, err := workflow.TransferStock(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
