package commission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"regionmart/internal/database/models"
)

type fakeConfigs struct {
	cfg *models.CommissionConfig
	err error
}

func (f *fakeConfigs) Resolve(_ context.Context, _ string, _ *string, _ time.Time) (*models.CommissionConfig, error) {
	return f.cfg, f.err
}

type fakeParties struct {
	participants []Participant
	err          error
}

func (f *fakeParties) ResolveParticipants(_ context.Context, _, _ int64) ([]Participant, error) {
	return f.participants, f.err
}

type fakeLedger struct {
	existing  map[string]bool
	recordErr error
	recorded  [][]models.Commission
}

func (f *fakeLedger) Record(_ context.Context, entries []models.Commission) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, entries)
	return nil
}

func (f *fakeLedger) HasTransaction(_ context.Context, transactionID string) (bool, error) {
	return f.existing[transactionID], nil
}

type fakeQueue struct {
	enqueued []struct {
		txn    CompletedTransaction
		reason string
	}
	failure  *models.CommissionFailure
	resolved []int64
}

func (f *fakeQueue) Enqueue(_ context.Context, txn CompletedTransaction, reason, _ string) error {
	f.enqueued = append(f.enqueued, struct {
		txn    CompletedTransaction
		reason string
	}{txn, reason})
	return nil
}

func (f *fakeQueue) Get(_ context.Context, id int64) (*models.CommissionFailure, error) {
	if f.failure == nil {
		return nil, fmt.Errorf("failure %d not found", id)
	}
	return f.failure, nil
}

func (f *fakeQueue) Transaction(failure *models.CommissionFailure) (CompletedTransaction, error) {
	var txn CompletedTransaction
	if err := json.Unmarshal([]byte(failure.Payload), &txn); err != nil {
		return CompletedTransaction{}, err
	}
	return txn, nil
}

func (f *fakeQueue) Resolve(_ context.Context, id, _ int64, _ string) error {
	f.resolved = append(f.resolved, id)
	return nil
}

type fakeStats struct {
	invalidated []int64
}

func (f *fakeStats) InvalidateUsers(_ context.Context, userIDs ...int64) {
	f.invalidated = append(f.invalidated, userIDs...)
}

func okTxn() CompletedTransaction {
	agent := int64(4)
	return CompletedTransaction{
		ID:          "txn-200",
		UserID:      5,
		AgentID:     &agent,
		ServiceType: models.ServiceRecharge,
		ServiceID:   "svc-1",
		Amount:      "1000.00",
		CompletedAt: time.Now(),
	}
}

func newTestEngine(configs *fakeConfigs, parties *fakeParties, ledger *fakeLedger, queue *fakeQueue, stats *fakeStats) *Engine {
	if ledger.existing == nil {
		ledger.existing = map[string]bool{}
	}
	return NewEngine(configs, parties, ledger, queue, stats, zap.NewNop())
}

func TestProcessTransactionHappyPath(t *testing.T) {
	ledger := &fakeLedger{}
	queue := &fakeQueue{}
	stats := &fakeStats{}
	e := newTestEngine(
		&fakeConfigs{cfg: testConfig()},
		&fakeParties{participants: fullParticipants()},
		ledger, queue, stats,
	)

	result, err := e.ProcessTransaction(context.Background(), okTxn())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "txn-200", result.TransactionID)
	assert.Equal(t, int64(1), result.ConfigID)
	assert.Len(t, result.Entries, 5)
	assert.Empty(t, result.Forfeited)

	require.Len(t, ledger.recorded, 1)
	assert.Empty(t, queue.enqueued)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, stats.invalidated)
}

func TestProcessTransactionIdempotent(t *testing.T) {
	ledger := &fakeLedger{existing: map[string]bool{"txn-200": true}}
	queue := &fakeQueue{}
	e := newTestEngine(
		&fakeConfigs{cfg: testConfig()},
		&fakeParties{participants: fullParticipants()},
		ledger, queue, &fakeStats{},
	)

	_, err := e.ProcessTransaction(context.Background(), okTxn())
	assert.True(t, errors.Is(err, ErrAlreadyRecorded), "got %v", err)
	// A replay is not an operator problem.
	assert.Empty(t, queue.enqueued)
	assert.Empty(t, ledger.recorded)
}

func TestProcessTransactionDefersFailures(t *testing.T) {
	tests := []struct {
		name       string
		configs    *fakeConfigs
		parties    *fakeParties
		ledger     *fakeLedger
		txn        CompletedTransaction
		wantErr    error
		wantReason string
	}{
		{
			name:       "missing config",
			configs:    &fakeConfigs{err: fmt.Errorf("%w: recharge", ErrConfigMissing)},
			parties:    &fakeParties{participants: fullParticipants()},
			ledger:     &fakeLedger{},
			txn:        okTxn(),
			wantErr:    ErrConfigMissing,
			wantReason: ReasonConfigMissing,
		},
		{
			name:       "malformed hierarchy",
			configs:    &fakeConfigs{cfg: testConfig()},
			parties:    &fakeParties{err: fmt.Errorf("%w: duplicate", ErrHierarchyMalformed)},
			ledger:     &fakeLedger{},
			txn:        okTxn(),
			wantErr:    ErrHierarchyMalformed,
			wantReason: ReasonHierarchyMalformed,
		},
		{
			name:    "invalid amount",
			configs: &fakeConfigs{cfg: testConfig()},
			parties: &fakeParties{participants: fullParticipants()},
			ledger:  &fakeLedger{},
			txn: func() CompletedTransaction {
				txn := okTxn()
				txn.Amount = "-10.00"
				return txn
			}(),
			wantErr:    ErrInvalidAmount,
			wantReason: ReasonInvalidAmount,
		},
		{
			name:       "ledger write failure",
			configs:    &fakeConfigs{cfg: testConfig()},
			parties:    &fakeParties{participants: fullParticipants()},
			ledger:     &fakeLedger{recordErr: fmt.Errorf("%w: boom", ErrPartialFailure)},
			txn:        okTxn(),
			wantErr:    ErrPartialFailure,
			wantReason: ReasonRecordFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := &fakeQueue{}
			stats := &fakeStats{}
			e := newTestEngine(tt.configs, tt.parties, tt.ledger, queue, stats)

			_, err := e.ProcessTransaction(context.Background(), tt.txn)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			require.Len(t, queue.enqueued, 1)
			assert.Equal(t, tt.wantReason, queue.enqueued[0].reason)
			assert.Equal(t, tt.txn.ID, queue.enqueued[0].txn.ID)
			assert.Empty(t, stats.invalidated)
		})
	}
}

func queuedFailure(t *testing.T, txn CompletedTransaction) *models.CommissionFailure {
	t.Helper()
	payload, err := json.Marshal(txn)
	require.NoError(t, err)
	return &models.CommissionFailure{
		ID:            7,
		Reference:     "ref-7",
		TransactionID: txn.ID,
		ServiceType:   txn.ServiceType,
		Reason:        ReasonConfigMissing,
		Payload:       string(payload),
	}
}

func TestRetryDisbursesAndClosesFailure(t *testing.T) {
	txn := okTxn()
	ledger := &fakeLedger{}
	queue := &fakeQueue{failure: queuedFailure(t, txn)}
	e := newTestEngine(
		&fakeConfigs{cfg: testConfig()},
		&fakeParties{participants: fullParticipants()},
		ledger, queue, &fakeStats{},
	)

	result, err := e.Retry(context.Background(), 7, 99)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, ledger.recorded, 1)
	assert.Equal(t, []int64{7}, queue.resolved)
}

func TestRetryFailingAgainDoesNotStackQueueRows(t *testing.T) {
	txn := okTxn()
	queue := &fakeQueue{failure: queuedFailure(t, txn)}
	e := newTestEngine(
		&fakeConfigs{err: fmt.Errorf("%w: recharge", ErrConfigMissing)},
		&fakeParties{participants: fullParticipants()},
		&fakeLedger{}, queue, &fakeStats{},
	)

	_, err := e.Retry(context.Background(), 7, 99)
	assert.True(t, errors.Is(err, ErrConfigMissing), "got %v", err)
	// The open queue row stays open and no second row is added.
	assert.Empty(t, queue.enqueued)
	assert.Empty(t, queue.resolved)
}

func TestRetryAlreadyRecordedStillClosesFailure(t *testing.T) {
	txn := okTxn()
	ledger := &fakeLedger{existing: map[string]bool{txn.ID: true}}
	queue := &fakeQueue{failure: queuedFailure(t, txn)}
	e := newTestEngine(
		&fakeConfigs{cfg: testConfig()},
		&fakeParties{participants: fullParticipants()},
		ledger, queue, &fakeStats{},
	)

	result, err := e.Retry(context.Background(), 7, 99)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, []int64{7}, queue.resolved)
}

func TestRetryResolvedFailureRejected(t *testing.T) {
	txn := okTxn()
	failure := queuedFailure(t, txn)
	failure.Resolved = true
	queue := &fakeQueue{failure: failure}
	e := newTestEngine(
		&fakeConfigs{cfg: testConfig()},
		&fakeParties{participants: fullParticipants()},
		&fakeLedger{}, queue, &fakeStats{},
	)

	_, err := e.Retry(context.Background(), 7, 99)
	assert.Error(t, err)
	assert.Empty(t, queue.resolved)
}
