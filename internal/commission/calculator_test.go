package commission

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regionmart/internal/database/models"
)

func testConfig() *models.CommissionConfig {
	return &models.CommissionConfig{
		ID:                    1,
		ServiceType:           models.ServiceRecharge,
		AdminPercent:          "0.50",
		BranchManagerPercent:  "0.50",
		TalukManagerPercent:   "1.00",
		ServiceAgentPercent:   "3.00",
		RegisteredUserPercent: "1.00",
		TotalPercent:          "6.00",
		IsActive:              true,
	}
}

func fullParticipants() []Participant {
	return []Participant{
		{Tier: models.UserTypeServiceAgent, UserID: 4},
		{Tier: models.UserTypeTalukManager, UserID: 3},
		{Tier: models.UserTypeBranchManager, UserID: 2},
		{Tier: models.UserTypeAdmin, UserID: 1},
		{Tier: models.UserTypeRegisteredUser, UserID: 5},
	}
}

func TestComputeFullChain(t *testing.T) {
	txn := CompletedTransaction{
		ID:          "txn-100",
		UserID:      5,
		ServiceType: models.ServiceRecharge,
		ServiceID:   "svc-1",
		Amount:      "1000.00",
	}

	entries, forfeited, err := Compute(txn, testConfig(), fullParticipants())
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Empty(t, forfeited)

	wantAmounts := map[string]string{
		models.UserTypeAdmin:          "5.00",
		models.UserTypeBranchManager:  "5.00",
		models.UserTypeTalukManager:   "10.00",
		models.UserTypeServiceAgent:   "30.00",
		models.UserTypeRegisteredUser: "10.00",
	}
	for _, entry := range entries {
		assert.Equal(t, wantAmounts[entry.UserType], entry.CommissionAmount, "tier %s", entry.UserType)
		assert.Equal(t, "txn-100", entry.TransactionID)
		assert.Equal(t, "1000.00", entry.OriginalAmount)
		assert.Equal(t, models.CommissionStatusPending, entry.Status)
	}

	// Entries come out root tier first.
	assert.Equal(t, models.UserTypeAdmin, entries[0].UserType)
	assert.Equal(t, models.UserTypeRegisteredUser, entries[4].UserType)
}

func TestComputeForfeitsUnresolvedTiers(t *testing.T) {
	txn := CompletedTransaction{
		ID:          "txn-101",
		ServiceType: models.ServiceRecharge,
		ServiceID:   "svc-1",
		Amount:      "1000.00",
	}

	// No taluk manager in the chain: its 10.00 is forfeited, not
	// redistributed among the remaining tiers.
	participants := []Participant{
		{Tier: models.UserTypeServiceAgent, UserID: 4},
		{Tier: models.UserTypeBranchManager, UserID: 2},
		{Tier: models.UserTypeAdmin, UserID: 1},
		{Tier: models.UserTypeRegisteredUser, UserID: 5},
	}

	entries, forfeited, err := Compute(txn, testConfig(), participants)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, []models.UserType{models.UserTypeTalukManager}, forfeited)

	sum := decimal.Zero
	for _, entry := range entries {
		d, err := decimal.NewFromString(entry.CommissionAmount)
		require.NoError(t, err)
		sum = sum.Add(d)
	}
	assert.Equal(t, "50.00", sum.StringFixed(2))
}

func TestComputeSkipsZeroPercentTiers(t *testing.T) {
	cfg := testConfig()
	cfg.RegisteredUserPercent = "0.00"
	cfg.TotalPercent = "5.00"

	txn := CompletedTransaction{
		ID:          "txn-102",
		ServiceType: models.ServiceRecharge,
		ServiceID:   "svc-1",
		Amount:      "200.00",
	}

	entries, forfeited, err := Compute(txn, cfg, fullParticipants())
	require.NoError(t, err)
	require.Len(t, entries, 4)
	// A zero-percent tier is skipped, never reported as forfeited.
	assert.Empty(t, forfeited)
	for _, entry := range entries {
		assert.NotEqual(t, models.UserTypeRegisteredUser, entry.UserType)
	}
}

func TestComputeRoundsHalfUp(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceAgentPercent = "3.00"

	tests := []struct {
		amount string
		want   string
	}{
		// 333.33 * 3% = 9.9999
		{"333.33", "10.00"},
		// 100.50 * 3% = 3.015, half rounds up
		{"100.50", "3.02"},
		{"0.10", "0.00"},
	}

	for _, tt := range tests {
		txn := CompletedTransaction{
			ID:          "txn-round",
			ServiceType: models.ServiceRecharge,
			ServiceID:   "svc-1",
			Amount:      tt.amount,
		}
		participants := []Participant{{Tier: models.UserTypeServiceAgent, UserID: 4}}

		entries, _, err := Compute(txn, cfg, participants)
		require.NoError(t, err)
		require.Len(t, entries, 1, "amount %s", tt.amount)
		assert.Equal(t, tt.want, entries[0].CommissionAmount, "amount %s", tt.amount)
	}
}

func TestComputeRejectsInvalidAmounts(t *testing.T) {
	for _, amount := range []string{"0.00", "-50.00", "", "abc"} {
		txn := CompletedTransaction{
			ID:          "txn-bad",
			ServiceType: models.ServiceRecharge,
			ServiceID:   "svc-1",
			Amount:      amount,
		}

		_, _, err := Compute(txn, testConfig(), fullParticipants())
		assert.True(t, errors.Is(err, ErrInvalidAmount), "amount %q: got %v", amount, err)
	}
}

func TestComputeSumNeverExceedsConfiguredTotal(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	for _, amount := range []string{"0.01", "1.00", "99.99", "1000.00", "123456.78"} {
		txn := CompletedTransaction{
			ID:          "txn-prop",
			ServiceType: models.ServiceRecharge,
			ServiceID:   "svc-1",
			Amount:      amount,
		}

		entries, _, err := Compute(txn, testConfig(), fullParticipants())
		require.NoError(t, err)

		sum := decimal.Zero
		for _, entry := range entries {
			d, err := decimal.NewFromString(entry.CommissionAmount)
			require.NoError(t, err)
			sum = sum.Add(d)
		}

		amt, _ := decimal.NewFromString(amount)
		total, _ := decimal.NewFromString(testConfig().TotalPercent)
		// Half-up rounding can add at most half a cent per entry.
		ceiling := amt.Mul(total).Div(hundred).Add(decimal.NewFromFloat(0.03))
		assert.True(t, sum.LessThanOrEqual(ceiling),
			"amount %s: disbursed %s exceeds ceiling %s", amount, sum, ceiling)
	}
}
