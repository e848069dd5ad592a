package commission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"regionmart/internal/database/models"
)

const (
	statsCachePrefix = "commission_stats:"
	statsCacheTTL    = 2 * time.Hour
	recentLimit      = 5
)

// UserStats is the read-side summary for one recipient.
type UserStats struct {
	UserID            int64               `json:"user_id"`
	TotalEarned       string              `json:"total_earned"`
	PendingAmount     string              `json:"pending_amount"`
	PaidAmount        string              `json:"paid_amount"`
	EntryCount        int64               `json:"entry_count"`
	ByServiceType     map[string]string   `json:"by_service_type"`
	RecentCommissions []models.Commission `json:"recent_commissions"`
}

// StatsAggregator summarizes ledger entries for reporting. It is pure
// read-side: no writes beyond its Redis cache.
type StatsAggregator struct {
	db    *gorm.DB
	redis *redis.Client
	log   *zap.Logger
}

func NewStatsAggregator(db *gorm.DB, redisClient *redis.Client, log *zap.Logger) *StatsAggregator {
	return &StatsAggregator{db: db, redis: redisClient, log: log}
}

type statsTotalsRow struct {
	TotalEarned   string
	PendingAmount string
	PaidAmount    string
	EntryCount    int64
}

type statsTypeRow struct {
	ServiceType string
	Total       string
}

// StatsFor aggregates a user's ledger entries. An empty ledger yields zeros
// and empty collections, never an error.
func (a *StatsAggregator) StatsFor(ctx context.Context, userID int64) (*UserStats, error) {
	cacheKey := fmt.Sprintf("%s%d", statsCachePrefix, userID)
	if val, err := a.redis.Get(ctx, cacheKey).Result(); err == nil {
		var cached UserStats
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			return &cached, nil
		}
	} else if err != redis.Nil {
		a.log.Warn("stats cache read failed, falling back to DB", zap.Error(err))
	}

	var totals statsTotalsRow
	err := a.db.WithContext(ctx).Model(&models.Commission{}).
		Select("COALESCE(SUM(commission_amount), 0) as total_earned, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN commission_amount ELSE 0 END), 0) as pending_amount, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN commission_amount ELSE 0 END), 0) as paid_amount, "+
			"COUNT(*) as entry_count",
			models.CommissionStatusPending, models.CommissionStatusPaid).
		Where("user_id = ?", userID).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate commissions for user %d: %w", userID, err)
	}

	var byType []statsTypeRow
	err = a.db.WithContext(ctx).Model(&models.Commission{}).
		Select("service_type, COALESCE(SUM(commission_amount), 0) as total").
		Where("user_id = ?", userID).
		Group("service_type").
		Scan(&byType).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate by service type for user %d: %w", userID, err)
	}

	var recent []models.Commission
	err = a.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(recentLimit).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("load recent commissions for user %d: %w", userID, err)
	}

	stats := assembleStats(userID, totals, byType, recent)

	if data, err := json.Marshal(stats); err == nil {
		if err := a.redis.Set(ctx, cacheKey, data, statsCacheTTL).Err(); err != nil {
			a.log.Warn("stats cache write failed", zap.Error(err))
		}
	}

	return stats, nil
}

// InvalidateUsers drops cached stats after a ledger mutation.
func (a *StatsAggregator) InvalidateUsers(ctx context.Context, userIDs ...int64) {
	for _, id := range userIDs {
		key := fmt.Sprintf("%s%d", statsCachePrefix, id)
		if err := a.redis.Del(ctx, key).Err(); err != nil {
			a.log.Warn("stats cache invalidation failed",
				zap.Int64("user_id", id), zap.Error(err))
		}
	}
}

// assembleStats shapes aggregation rows into the reply, normalizing every
// amount to 2 places and zeroing anything the database left empty.
func assembleStats(userID int64, totals statsTotalsRow, byType []statsTypeRow, recent []models.Commission) *UserStats {
	stats := &UserStats{
		UserID:            userID,
		TotalEarned:       fixedOrZero(totals.TotalEarned),
		PendingAmount:     fixedOrZero(totals.PendingAmount),
		PaidAmount:        fixedOrZero(totals.PaidAmount),
		EntryCount:        totals.EntryCount,
		ByServiceType:     make(map[string]string, len(byType)),
		RecentCommissions: recent,
	}
	if stats.RecentCommissions == nil {
		stats.RecentCommissions = []models.Commission{}
	}
	for _, row := range byType {
		stats.ByServiceType[row.ServiceType] = fixedOrZero(row.Total)
	}
	return stats
}

func fixedOrZero(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
