package commission

import (
	"time"

	"regionmart/internal/database/models"
)

// CompletedTransaction is what the transaction-processing layer hands to the
// engine once payment has been confirmed. Amounts arrive as decimal strings,
// matching how they are stored.
type CompletedTransaction struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	AgentID     *int64    `json:"agent_id,omitempty"`
	ServiceType string    `json:"service_type"`
	ServiceID   string    `json:"service_id"`
	Provider    *string   `json:"provider,omitempty"`
	Amount      string    `json:"amount"`
	CompletedAt time.Time `json:"completed_at"`
}

// Participant is one resolved recipient: a tier and the user holding it.
type Participant struct {
	Tier   models.UserType `json:"tier"`
	UserID int64           `json:"user_id"`
}

// DisbursementResult reports one successful commission run.
type DisbursementResult struct {
	TransactionID string              `json:"transaction_id"`
	ConfigID      int64               `json:"config_id"`
	Entries       []models.Commission `json:"entries"`
	Forfeited     []models.UserType   `json:"forfeited,omitempty"`
}
