package commission

import "errors"

// Error taxonomy for the commission subsystem. Every one of these is caught
// at the engine boundary, logged, and (where it blocks disbursement) queued
// for an operator; none of them aborts the originating transaction.
var (
	// ErrConfigMissing means no active commission config matched the
	// transaction's service type. The run is deferred, never zeroed.
	ErrConfigMissing = errors.New("no active commission config for service type")

	// ErrHierarchyMalformed means the parent chain produced the same tier
	// twice. Paying a tier twice is never acceptable, so the run aborts.
	ErrHierarchyMalformed = errors.New("duplicate tier in management hierarchy")

	// ErrInvalidAmount rejects non-positive transaction amounts before any
	// ledger write.
	ErrInvalidAmount = errors.New("transaction amount must be positive")

	// ErrPartialFailure wraps a ledger batch write that failed partway.
	// The whole batch has been rolled back and the run is retryable.
	ErrPartialFailure = errors.New("commission batch write failed")

	// ErrAlreadyRecorded guards retries: the ledger already holds entries
	// for this transaction id.
	ErrAlreadyRecorded = errors.New("commissions already recorded for transaction")

	// ErrInvalidConfig rejects a commission config payload that fails the
	// percentage sanity bounds.
	ErrInvalidConfig = errors.New("invalid commission config")
)

// Operator-queue reason codes.
const (
	ReasonConfigMissing      = "config_missing"
	ReasonHierarchyMalformed = "hierarchy_malformed"
	ReasonInvalidAmount      = "invalid_amount"
	ReasonRecordFailed       = "record_failed"
)

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrConfigMissing):
		return ReasonConfigMissing
	case errors.Is(err, ErrHierarchyMalformed):
		return ReasonHierarchyMalformed
	case errors.Is(err, ErrInvalidAmount):
		return ReasonInvalidAmount
	default:
		return ReasonRecordFailed
	}
}
