package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/models"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AppendLedgerEntry appends one immutable debit/credit row for a party.
// The running balance is previous latest balance + debit - credit; prior
// entries are never mutated. Must run inside a transaction opened by
// withPartyPostingLocks covering this party, so a failed orchestration
// leaves no entry behind and the posting lock outlives the commit. The
// re-acquire below is reentrant on that connection; releasing it here
// does not drop the workflow's hold.
func AppendLedgerEntry(tx *gorm.DB, logger *logrus.Logger, partyType models.PartyType, partyId int, entryType models.LedgerEntryType, debit decimal.Decimal, credit decimal.Decimal, refType models.MovementReferenceType, refId int, createdBy int) (*models.LedgerEntry, error) {

	if partyId <= 0 {
		return nil, fmt.Errorf("ledger entry needs a party: %w", utils.ErrorValidation)
	}
	if debit.IsNegative() || credit.IsNegative() {
		return nil, fmt.Errorf("debit/credit cannot be negative: %w", utils.ErrorValidation)
	}

	if err := AcquirePartyPostingLock(tx, partyType, partyId); err != nil {
		config.LogError(logger, "partyLedger.go", "AppendLedgerEntry", "AcquirePartyPostingLock", partyId, err)
		return nil, err
	}
	defer ReleasePartyPostingLock(tx, partyType, partyId)

	lastBalance, err := models.GetPartyBalance(tx, partyType, partyId)
	if err != nil {
		config.LogError(logger, "partyLedger.go", "AppendLedgerEntry", "GetPartyBalance", partyId, err)
		return nil, err
	}

	entry := models.LedgerEntry{
		PartyType:     partyType,
		PartyId:       partyId,
		EntryType:     entryType,
		Debit:         debit,
		Credit:        credit,
		Balance:       models.ComputeNewBalance(lastBalance, debit, credit),
		ReferenceType: refType,
		ReferenceID:   refId,
		CreatedBy:     createdBy,
	}
	if err := tx.Create(&entry).Error; err != nil {
		config.LogError(logger, "partyLedger.go", "AppendLedgerEntry", "CreateLedgerEntry", entry, err)
		return nil, err
	}
	return &entry, nil
}
