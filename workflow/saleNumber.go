package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fabric_backend/config"
	"bitbucket.org/mmdatafocus/fabric_backend/models"
	"bitbucket.org/mmdatafocus/fabric_backend/utils"
	"github.com/bsm/redislock"
	"gorm.io/gorm"
)

// FormatSaleNumber renders the human-readable POS number for a day and a
// daily sequence value: SALE-YYYYMMDD-0001.
func FormatSaleNumber(day time.Time, seq int) string {
	return fmt.Sprintf("SALE-%s-%04d", day.Format("20060102"), seq)
}

// SaleBusinessDay resolves the calendar day a sale is numbered under. The
// shop's day boundary follows BUSINESS_TIMEZONE when set; otherwise the
// server clock's zone is used as-is.
func SaleBusinessDay(now time.Time) time.Time {
	tz := strings.TrimSpace(os.Getenv("BUSINESS_TIMEZONE"))
	if tz == "" {
		return now
	}
	day, err := utils.ConvertToDate(now, tz)
	if err != nil {
		return now
	}
	return day
}

// NextSaleNumber hands out the next per-day sale sequence. The counter is
// a redis INCR keyed by date; a cold counter resyncs from the store's max
// daily_seq_no for that day under a cross-instance lock, and a counter
// that fell behind the store re-increments until the number is free. The
// sequence is gap-tolerant; the unique index on sale_number backstops the
// race where two instances still land on the same value.
func NextSaleNumber(ctx context.Context, tx *gorm.DB, day time.Time) (int, string, error) {
	dateKey := day.Format("20060102")
	cacheKey := "sale_seq:" + dateKey

	for {
		seqNo, err := config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, "", err
		}
		if seqNo <= 1 {
			// cold counter (new day, redis restart, or no redis): resync from
			// the store, guarded against other instances doing the same
			release, lockErr := acquireCounterLock(ctx, cacheKey)
			if lockErr != nil {
				return 0, "", lockErr
			}
			if release != nil {
				defer release()
			}

			var dbSeq *int64
			err := tx.WithContext(ctx).Model(&models.Sale{}).
				Select("max(daily_seq_no)").
				Where("sale_number LIKE ?", "SALE-"+dateKey+"-%").
				Scan(&dbSeq).Error
			if err != nil {
				return 0, "", err
			}
			if dbSeq == nil {
				seqNo = 0
			} else {
				seqNo = *dbSeq
			}
			seqNo++
			if err := config.SetRedisValue(cacheKey, fmt.Sprint(seqNo), 48*time.Hour); err != nil {
				return 0, "", err
			}
		}

		// guard against a stale counter colliding with persisted sales
		saleNumber := FormatSaleNumber(day, int(seqNo))
		var count int64
		err = tx.WithContext(ctx).Model(&models.Sale{}).
			Where("sale_number = ?", saleNumber).
			Count(&count).Error
		if err != nil {
			return 0, "", err
		}
		if count == 0 {
			return int(seqNo), saleNumber, nil
		}
	}
}

// acquireCounterLock takes a short redis lock around the counter resync.
// Without redis there is nothing to lock against; the sale_number unique
// index still rejects the rare collision.
func acquireCounterLock(ctx context.Context, key string) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, "lock:"+key, 5*time.Second, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond),
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
