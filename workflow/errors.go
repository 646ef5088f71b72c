package workflow

import (
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/go-sql-driver/mysql"
)

// mapStoreError translates store-level serialization failures into the
// retryable taxonomy error. Deadlocks, lock-wait timeouts and unique-key
// collisions (two instances racing the same sale number) mean the write
// did not commit, so the caller can safely retry the whole operation.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062: // duplicate key
			return fmt.Errorf("%v: %w", err, utils.ErrorConflictRetry)
		case 1205, 1213: // lock wait timeout, deadlock
			return fmt.Errorf("%v: %w", err, utils.ErrorConflictRetry)
		}
	}
	return err
}
