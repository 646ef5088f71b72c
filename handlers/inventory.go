package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/models"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/gin-gonic/gin"
)

func GetRoll(c *gin.Context) {
	rollId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid roll id: %w", utils.ErrorValidation))
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	roll, err := models.GetRoll(db, rollId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, roll)
}

// GetRollMovements returns the roll's movement trail plus the IN/OUT
// sums. The trail opens with the roll's allocation movement, so
// total_in - total_out reconciles to the roll's remaining quantity.
func GetRollMovements(c *gin.Context) {
	rollId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid roll id: %w", utils.ErrorValidation))
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	roll, err := models.GetRoll(db, rollId)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var movements []models.StockMovement
	if err := db.Where("roll_id = ?", rollId).Order("id").Find(&movements).Error; err != nil {
		abortWithError(c, err)
		return
	}
	in, out, err := models.SumRollMovements(db, rollId)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"roll":      roll,
		"movements": movements,
		"total_in":  in,
		"total_out": out,
	})
}

type markRollStatusRequest struct {
	Status models.RollStatus `json:"status" binding:"required"`
}

// MarkRollStatus sets an operator lifecycle status on a roll (Reserved,
// Damaged, Disposed). Quantity-driven statuses cannot be assigned here;
// they are recomputed on every stock mutation.
func MarkRollStatus(c *gin.Context) {
	rollId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid roll id: %w", utils.ErrorValidation))
		return
	}
	var req markRollStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err.Error(), utils.ErrorValidation))
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := models.MarkRollStatus(db, rollId, req.Status); err != nil {
		abortWithError(c, err)
		return
	}
	roll, err := models.GetRoll(db, rollId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, roll)
}

func GetPartyBalance(c *gin.Context) {
	partyType := models.PartyType(c.Param("type"))
	switch partyType {
	case models.PartyTypeCustomer, models.PartyTypeSupplier, models.PartyTypeEmployee:
	default:
		abortWithError(c, fmt.Errorf("unknown party type %q: %w", c.Param("type"), utils.ErrorValidation))
		return
	}
	partyId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithError(c, fmt.Errorf("invalid party id: %w", utils.ErrorValidation))
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	balance, err := models.GetPartyBalance(db, partyType, partyId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"party_type": partyType,
		"party_id":   partyId,
		"balance":    balance,
	})
}
