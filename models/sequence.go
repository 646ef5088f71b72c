package models

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"gorm.io/gorm"
)

var sequenceMutex sync.Mutex

// GetSequence hands out the next document number for model T, backed by a
// redis counter with a DB max(sequence_no) resync when the counter is
// cold. Callers persist the returned value in the row's sequence_no column
// inside the same transaction; the counter itself is gap-tolerant.
func GetSequence[T any](ctx context.Context, tx *gorm.DB, key string) (int64, error) {
	sequenceMutex.Lock()
	defer sequenceMutex.Unlock()

	cacheKey := strings.ToLower(key) + "_seq"
	var model T

	for {
		seqNo, err := config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, err
		}
		// a fresh counter (or no redis at all) resyncs from the store
		if seqNo <= 1 {
			var dbSeq *int64
			if err := tx.WithContext(ctx).Model(&model).
				Select("max(sequence_no)").
				Scan(&dbSeq).Error; err != nil {
				return 0, err
			}
			if dbSeq == nil {
				seqNo = 0
			} else {
				seqNo = *dbSeq
			}
			seqNo++
			if err := config.SetRedisValue(cacheKey, fmt.Sprint(seqNo), 0); err != nil {
				return 0, err
			}
		}
		// guard against a stale counter colliding with persisted rows
		var count int64
		if err := tx.WithContext(ctx).Model(&model).
			Where("sequence_no = ?", seqNo).
			Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return seqNo, nil
		}
	}
}
