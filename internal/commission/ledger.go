package commission

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"regionmart/internal/database/models"
)

// PendingFilter narrows ListPending.
type PendingFilter struct {
	UserID      *int64
	ServiceType *string
	Limit       int
}

// Ledger is the system of record for per-participant commission entries.
type Ledger struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewLedger(db *gorm.DB, log *zap.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

// Record persists one transaction's entries in a single database
// transaction. Either every entry lands or none do; a mid-batch failure
// rolls the whole batch back and surfaces as ErrPartialFailure so the run
// can be queued for retry.
func (l *Ledger) Record(ctx context.Context, entries []models.Commission) error {
	if len(entries) == 0 {
		return nil
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range entries {
			if err := tx.Create(&entries[i]).Error; err != nil {
				return fmt.Errorf("entry %d of %d: %w", i+1, len(entries), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: transaction %s: %v", ErrPartialFailure, entries[0].TransactionID, err)
	}

	l.log.Info("commission batch recorded",
		zap.String("transaction_id", entries[0].TransactionID),
		zap.Int("entries", len(entries)))
	return nil
}

// HasTransaction reports whether the ledger already holds entries for a
// transaction id. Used to keep retries from double-paying.
func (l *Ledger) HasTransaction(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.Commission{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count entries for %s: %w", transactionID, err)
	}
	return count > 0, nil
}

// MarkPaid transitions the given entries from pending to paid and returns
// how many rows actually moved. The status guard in the WHERE clause makes
// concurrent calls race-safe: each row transitions exactly once, and ids
// that are already paid or unknown are skipped, not errors.
func (l *Ledger) MarkPaid(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res := l.db.WithContext(ctx).Model(&models.Commission{}).
		Where("id IN ? AND status = ?", ids, models.CommissionStatusPending).
		Update("status", models.CommissionStatusPaid)
	if res.Error != nil {
		return 0, fmt.Errorf("mark paid: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		l.log.Info("commissions marked paid",
			zap.Int("requested", len(ids)), zap.Int64("updated", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (l *Ledger) ListPending(ctx context.Context, filter PendingFilter) ([]models.Commission, error) {
	query := l.db.WithContext(ctx).
		Where("status = ?", models.CommissionStatusPending)
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ServiceType != nil {
		query = query.Where("service_type = ?", *filter.ServiceType)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []models.Commission
	if err := query.Order("created_at desc").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list pending commissions: %w", err)
	}
	return entries, nil
}

func (l *Ledger) ListByUser(ctx context.Context, userID int64) ([]models.Commission, error) {
	var entries []models.Commission
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list commissions for user %d: %w", userID, err)
	}
	return entries, nil
}

// ListByIDs fetches entries by ledger row id, preserving no particular order.
func (l *Ledger) ListByIDs(ctx context.Context, ids []int64) ([]models.Commission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entries []models.Commission
	if err := l.db.WithContext(ctx).Where("id IN ?", ids).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list commissions by id: %w", err)
	}
	return entries, nil
}

func (l *Ledger) ListByTransaction(ctx context.Context, transactionID string) ([]models.Commission, error) {
	var entries []models.Commission
	err := l.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list commissions for transaction %s: %w", transactionID, err)
	}
	return entries, nil
}
