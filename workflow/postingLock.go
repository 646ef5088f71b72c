package workflow

import (
	"context"
	"fmt"
	"sort"

	"bitbucket.org/mmdatafocus/fabric_backend/models"
	"gorm.io/gorm"
)

type partyRef struct {
	Type models.PartyType
	Id   int
}

// withPartyPostingLocks pins one connection, takes the advisory lock for
// every party on it, and runs fn as a transaction on that same connection.
// The deferred releases only run after the transaction has committed or
// rolled back, so no concurrent writer can read a running balance that an
// uncommitted entry is about to supersede. Locks are taken in a sorted
// order to keep two multi-party postings from deadlocking each other.
func withPartyPostingLocks(ctx context.Context, db *gorm.DB, refs []partyRef, fn func(tx *gorm.DB) error) error {
	refs = dedupePartyRefs(refs)
	return db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		for _, ref := range refs {
			if err := AcquirePartyPostingLock(conn, ref.Type, ref.Id); err != nil {
				return err
			}
			defer ReleasePartyPostingLock(conn, ref.Type, ref.Id)
		}
		return conn.Transaction(fn)
	})
}

func dedupePartyRefs(refs []partyRef) []partyRef {
	seen := make(map[partyRef]struct{}, len(refs))
	out := make([]partyRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Id < out[j].Id
	})
	return out
}

// AcquirePartyPostingLock serializes ledger appends per party across
// instances using MySQL advisory locks, so two writers can never read the
// same prior running balance.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB (connection or transaction) that will append the entry. It is
// reentrant within a session; AppendLedgerEntry re-acquiring a lock its
// workflow already holds through withPartyPostingLocks is a no-op.
func AcquirePartyPostingLock(tx *gorm.DB, partyType models.PartyType, partyId int) error {
	lockName := fmt.Sprintf("ledger:%s:%d", partyType, partyId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for %s:%d", partyType, partyId)
	}
	return nil
}

func ReleasePartyPostingLock(tx *gorm.DB, partyType models.PartyType, partyId int) {
	lockName := fmt.Sprintf("ledger:%s:%d", partyType, partyId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
