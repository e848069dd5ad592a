package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"regionmart/internal/database/models"
)

// disbursementOrder fixes the order entries are produced in, root tier first.
var disbursementOrder = []models.UserType{
	models.UserTypeAdmin,
	models.UserTypeBranchManager,
	models.UserTypeTalukManager,
	models.UserTypeServiceAgent,
	models.UserTypeRegisteredUser,
}

// Compute turns a completed transaction, a resolved config and the resolved
// participants into unsaved ledger entries, one per participant tier with a
// nonzero percentage. Amounts are rounded half-up to 2 decimal places.
//
// A tier with a nonzero percentage but no participant is forfeited: its share
// is simply not disbursed. It is not redistributed and not refunded; changing
// that would change platform economics.
func Compute(txn CompletedTransaction, cfg *models.CommissionConfig, participants []Participant) ([]models.Commission, []models.UserType, error) {
	amount, err := decimal.NewFromString(txn.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: amount %q", ErrInvalidAmount, txn.Amount)
	}
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: got %s", ErrInvalidAmount, amount.StringFixed(2))
	}

	byTier := make(map[models.UserType]int64, len(participants))
	for _, p := range participants {
		byTier[p.Tier] = p.UserID
	}

	var entries []models.Commission
	var forfeited []models.UserType
	hundred := decimal.NewFromInt(100)

	for _, tier := range disbursementOrder {
		pct, err := decimal.NewFromString(cfg.PercentFor(tier))
		if err != nil {
			return nil, nil, fmt.Errorf("config %d: bad %s percentage: %w", cfg.ID, tier, err)
		}
		if !pct.IsPositive() {
			continue
		}

		userID, ok := byTier[tier]
		if !ok {
			forfeited = append(forfeited, tier)
			continue
		}

		// shopspring Round is half away from zero, i.e. half-up for the
		// positive amounts allowed here.
		share := amount.Mul(pct).Div(hundred).Round(2)

		entries = append(entries, models.Commission{
			TransactionID:     txn.ID,
			UserID:            userID,
			UserType:          tier,
			ServiceType:       txn.ServiceType,
			ServiceID:         txn.ServiceID,
			OriginalAmount:    amount.StringFixed(2),
			CommissionPercent: pct.StringFixed(2),
			CommissionAmount:  share.StringFixed(2),
			Status:            models.CommissionStatusPending,
		})
	}

	return entries, forfeited, nil
}
