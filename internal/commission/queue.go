package commission

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"regionmart/internal/database/models"
)

// FailureQueue is the operator queue: transactions whose commission run
// failed wait here, with the original payload kept for retry once the
// underlying data is repaired.
type FailureQueue struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewFailureQueue(db *gorm.DB, log *zap.Logger) *FailureQueue {
	return &FailureQueue{db: db, log: log}
}

func (q *FailureQueue) Enqueue(ctx context.Context, txn CompletedTransaction, reason, detail string) error {
	payload, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("marshal transaction %s: %w", txn.ID, err)
	}

	failure := models.CommissionFailure{
		Reference:     uuid.NewString(),
		TransactionID: txn.ID,
		ServiceType:   txn.ServiceType,
		Reason:        reason,
		Detail:        detail,
		Payload:       string(payload),
	}
	if err := q.db.WithContext(ctx).Create(&failure).Error; err != nil {
		return fmt.Errorf("enqueue commission failure for %s: %w", txn.ID, err)
	}

	q.log.Warn("commission run queued for operator",
		zap.String("transaction_id", txn.ID),
		zap.String("reference", failure.Reference),
		zap.String("reason", reason))
	return nil
}

func (q *FailureQueue) Get(ctx context.Context, id int64) (*models.CommissionFailure, error) {
	var failure models.CommissionFailure
	if err := q.db.WithContext(ctx).First(&failure, id).Error; err != nil {
		return nil, err
	}
	return &failure, nil
}

// Transaction unmarshals the payload stored with a failure.
func (q *FailureQueue) Transaction(failure *models.CommissionFailure) (CompletedTransaction, error) {
	var txn CompletedTransaction
	if err := json.Unmarshal([]byte(failure.Payload), &txn); err != nil {
		return CompletedTransaction{}, fmt.Errorf("decode payload of failure %d: %w", failure.ID, err)
	}
	return txn, nil
}

func (q *FailureQueue) List(ctx context.Context, includeResolved bool) ([]models.CommissionFailure, error) {
	query := q.db.WithContext(ctx).Model(&models.CommissionFailure{})
	if !includeResolved {
		query = query.Where("resolved = ?", false)
	}

	var failures []models.CommissionFailure
	if err := query.Order("created_at desc").Find(&failures).Error; err != nil {
		return nil, fmt.Errorf("list commission failures: %w", err)
	}
	return failures, nil
}

// Resolve closes a queue entry, either because a retry disbursed it or
// because an operator wrote it off manually.
func (q *FailureQueue) Resolve(ctx context.Context, id, resolvedBy int64, notes string) error {
	updates := map[string]interface{}{
		"Resolved":   true,
		"ResolvedBy": resolvedBy,
	}
	if notes != "" {
		updates["Notes"] = notes
	}

	res := q.db.WithContext(ctx).Model(&models.CommissionFailure{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("resolve commission failure %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
