package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"regionmart/internal/database/models"
)

type configResolver interface {
	Resolve(ctx context.Context, serviceType string, provider *string, at time.Time) (*models.CommissionConfig, error)
}

type participantResolver interface {
	ResolveParticipants(ctx context.Context, agentID, customerID int64) ([]Participant, error)
}

type ledgerSink interface {
	Record(ctx context.Context, entries []models.Commission) error
	HasTransaction(ctx context.Context, transactionID string) (bool, error)
}

type failureSink interface {
	Enqueue(ctx context.Context, txn CompletedTransaction, reason, detail string) error
	Get(ctx context.Context, id int64) (*models.CommissionFailure, error)
	Transaction(failure *models.CommissionFailure) (CompletedTransaction, error)
	Resolve(ctx context.Context, id, resolvedBy int64, notes string) error
}

type statsInvalidator interface {
	InvalidateUsers(ctx context.Context, userIDs ...int64)
}

// Engine drives one commission run end to end: config resolution, hierarchy
// resolution, computation, ledger write. Failures are queued for an operator
// and returned typed; they never propagate into the customer-facing
// transaction flow.
type Engine struct {
	configs configResolver
	parties participantResolver
	ledger  ledgerSink
	queue   failureSink
	stats   statsInvalidator
	log     *zap.Logger
}

func NewEngine(configs configResolver, parties participantResolver, ledger ledgerSink, queue failureSink, stats statsInvalidator, log *zap.Logger) *Engine {
	return &Engine{
		configs: configs,
		parties: parties,
		ledger:  ledger,
		queue:   queue,
		stats:   stats,
		log:     log,
	}
}

// ProcessTransaction runs the full disbursement for one completed
// transaction. It is safe to call again for the same transaction id: a
// second run finds the existing entries and returns ErrAlreadyRecorded
// without writing anything.
func (e *Engine) ProcessTransaction(ctx context.Context, txn CompletedTransaction) (*DisbursementResult, error) {
	return e.run(ctx, txn, true)
}

// run is the shared body; enqueueOnFailure is false on the retry path so a
// second failure does not stack another queue row on top of the open one.
func (e *Engine) run(ctx context.Context, txn CompletedTransaction, enqueueOnFailure bool) (*DisbursementResult, error) {
	if txn.ID == "" || txn.ServiceType == "" {
		return nil, fmt.Errorf("transaction id and service type are required")
	}

	exists, err := e.ledger.HasTransaction(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRecorded, txn.ID)
	}

	at := txn.CompletedAt
	if at.IsZero() {
		at = time.Now()
	}

	cfg, err := e.configs.Resolve(ctx, txn.ServiceType, txn.Provider, at)
	if err != nil {
		if errors.Is(err, ErrConfigMissing) {
			return nil, e.deferRun(ctx, txn, err, enqueueOnFailure)
		}
		return nil, err
	}

	var agentID int64
	if txn.AgentID != nil {
		agentID = *txn.AgentID
	}
	participants, err := e.parties.ResolveParticipants(ctx, agentID, txn.UserID)
	if err != nil {
		if errors.Is(err, ErrHierarchyMalformed) {
			return nil, e.deferRun(ctx, txn, err, enqueueOnFailure)
		}
		return nil, err
	}

	entries, forfeited, err := Compute(txn, cfg, participants)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			return nil, e.deferRun(ctx, txn, err, enqueueOnFailure)
		}
		return nil, err
	}

	if err := e.ledger.Record(ctx, entries); err != nil {
		return nil, e.deferRun(ctx, txn, err, enqueueOnFailure)
	}

	userIDs := make([]int64, 0, len(entries))
	for _, entry := range entries {
		userIDs = append(userIDs, entry.UserID)
	}
	e.stats.InvalidateUsers(ctx, userIDs...)

	for _, tier := range forfeited {
		e.log.Warn("commission tier forfeited",
			zap.String("transaction_id", txn.ID),
			zap.String("tier", tier))
	}
	e.log.Info("commission run complete",
		zap.String("transaction_id", txn.ID),
		zap.Int64("config_id", cfg.ID),
		zap.Int("entries", len(entries)))

	return &DisbursementResult{
		TransactionID: txn.ID,
		ConfigID:      cfg.ID,
		Entries:       entries,
		Forfeited:     forfeited,
	}, nil
}

// Retry reprocesses a queued failure after the underlying data has been
// repaired. A successful run (or discovering the entries already landed)
// closes the queue entry.
func (e *Engine) Retry(ctx context.Context, failureID, operatorID int64) (*DisbursementResult, error) {
	failure, err := e.queue.Get(ctx, failureID)
	if err != nil {
		return nil, err
	}
	if failure.Resolved {
		return nil, fmt.Errorf("commission failure %d is already resolved", failureID)
	}

	txn, err := e.queue.Transaction(failure)
	if err != nil {
		return nil, err
	}

	result, err := e.run(ctx, txn, false)
	if err != nil && !errors.Is(err, ErrAlreadyRecorded) {
		return nil, err
	}

	if err := e.queue.Resolve(ctx, failureID, operatorID, "resolved by retry"); err != nil {
		e.log.Error("retried commission run succeeded but queue entry not closed",
			zap.Int64("failure_id", failureID), zap.Error(err))
	}
	return result, nil
}

// deferRun records a failed run in the operator queue and hands the original
// error back. A queue write failure is logged on top but the first error
// still wins.
func (e *Engine) deferRun(ctx context.Context, txn CompletedTransaction, cause error, enqueue bool) error {
	if !enqueue {
		return cause
	}
	if err := e.queue.Enqueue(ctx, txn, reasonFor(cause), cause.Error()); err != nil {
		e.log.Error("failed to enqueue commission failure",
			zap.String("transaction_id", txn.ID), zap.Error(err))
	}
	return cause
}
