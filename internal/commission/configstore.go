package commission

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"regionmart/internal/database/models"
)

// Platform-wide sanity bounds for a commission split. A single tier above
// 15% or a split above 20% of the transaction would push transactions into
// negative margin, so these reject the payload outright instead of clamping.
var (
	maxTierPercent  = decimal.NewFromInt(15)
	maxTotalPercent = decimal.NewFromInt(20)
)

// ConfigInput is the admin-facing payload for creating or updating a
// commission config. Percentages are decimal strings.
type ConfigInput struct {
	ServiceType string  `json:"service_type" validate:"required,oneof=recharge booking taxi delivery rental grocery recycling"`
	Provider    *string `json:"provider,omitempty"`

	AdminPercent          string `json:"admin_percent" validate:"required"`
	BranchManagerPercent  string `json:"branch_manager_percent" validate:"required"`
	TalukManagerPercent   string `json:"taluk_manager_percent" validate:"required"`
	ServiceAgentPercent   string `json:"service_agent_percent" validate:"required"`
	RegisteredUserPercent string `json:"registered_user_percent" validate:"required"`

	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	IsPeakRate bool       `json:"is_peak_rate"`
}

// ConfigStore owns commission config persistence and resolution.
type ConfigStore struct {
	db       *gorm.DB
	log      *zap.Logger
	validate *validator.Validate
}

func NewConfigStore(db *gorm.DB, log *zap.Logger) *ConfigStore {
	return &ConfigStore{
		db:       db,
		log:      log,
		validate: validator.New(),
	}
}

// checkInput enforces the percentage sanity bounds and returns the computed
// total. TotalPercent is always recomputed here, never taken from a client.
func (s *ConfigStore) checkInput(in *ConfigInput) (decimal.Decimal, error) {
	if err := s.validate.Struct(in); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	tiers := []struct {
		name string
		pct  string
	}{
		{"admin", in.AdminPercent},
		{"branch_manager", in.BranchManagerPercent},
		{"taluk_manager", in.TalukManagerPercent},
		{"service_agent", in.ServiceAgentPercent},
		{"registered_user", in.RegisteredUserPercent},
	}

	total := decimal.Zero
	for _, t := range tiers {
		pct, err := decimal.NewFromString(t.pct)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %s percentage %q is not a number", ErrInvalidConfig, t.name, t.pct)
		}
		if pct.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: %s percentage is negative", ErrInvalidConfig, t.name)
		}
		if pct.GreaterThan(maxTierPercent) {
			return decimal.Zero, fmt.Errorf("%w: %s percentage %s exceeds %s", ErrInvalidConfig, t.name, pct, maxTierPercent)
		}
		total = total.Add(pct)
	}
	if total.GreaterThan(maxTotalPercent) {
		return decimal.Zero, fmt.Errorf("%w: total percentage %s exceeds platform ceiling %s", ErrInvalidConfig, total, maxTotalPercent)
	}

	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return decimal.Zero, fmt.Errorf("%w: validity window ends before it starts", ErrInvalidConfig)
	}
	if in.IsPeakRate && (in.StartDate == nil || in.EndDate == nil) {
		return decimal.Zero, fmt.Errorf("%w: peak-rate config requires a validity window", ErrInvalidConfig)
	}

	return total, nil
}

func (s *ConfigStore) Create(ctx context.Context, in *ConfigInput) (*models.CommissionConfig, error) {
	total, err := s.checkInput(in)
	if err != nil {
		return nil, err
	}

	cfg := &models.CommissionConfig{
		ServiceType:           in.ServiceType,
		Provider:              in.Provider,
		AdminPercent:          mustFixed(in.AdminPercent),
		BranchManagerPercent:  mustFixed(in.BranchManagerPercent),
		TalukManagerPercent:   mustFixed(in.TalukManagerPercent),
		ServiceAgentPercent:   mustFixed(in.ServiceAgentPercent),
		RegisteredUserPercent: mustFixed(in.RegisteredUserPercent),
		TotalPercent:          total.StringFixed(2),
		StartDate:             in.StartDate,
		EndDate:               in.EndDate,
		IsPeakRate:            in.IsPeakRate,
		IsActive:              true,
	}

	if err := s.db.WithContext(ctx).Create(cfg).Error; err != nil {
		return nil, fmt.Errorf("create commission config: %w", err)
	}
	return cfg, nil
}

func (s *ConfigStore) Update(ctx context.Context, id int64, in *ConfigInput) (*models.CommissionConfig, error) {
	total, err := s.checkInput(in)
	if err != nil {
		return nil, err
	}

	var cfg models.CommissionConfig
	if err := s.db.WithContext(ctx).First(&cfg, id).Error; err != nil {
		return nil, fmt.Errorf("load commission config %d: %w", id, err)
	}

	updates := map[string]interface{}{
		"ServiceType":           in.ServiceType,
		"Provider":              in.Provider,
		"AdminPercent":          mustFixed(in.AdminPercent),
		"BranchManagerPercent":  mustFixed(in.BranchManagerPercent),
		"TalukManagerPercent":   mustFixed(in.TalukManagerPercent),
		"ServiceAgentPercent":   mustFixed(in.ServiceAgentPercent),
		"RegisteredUserPercent": mustFixed(in.RegisteredUserPercent),
		"TotalPercent":          total.StringFixed(2),
		"StartDate":             in.StartDate,
		"EndDate":               in.EndDate,
		"IsPeakRate":            in.IsPeakRate,
	}
	if err := s.db.WithContext(ctx).Model(&cfg).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update commission config %d: %w", id, err)
	}

	if err := s.db.WithContext(ctx).First(&cfg, id).Error; err != nil {
		return nil, fmt.Errorf("reload commission config %d: %w", id, err)
	}
	return &cfg, nil
}

// Deactivate soft-disables a config. Configs are never deleted.
func (s *ConfigStore) Deactivate(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&models.CommissionConfig{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate commission config %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *ConfigStore) Get(ctx context.Context, id int64) (*models.CommissionConfig, error) {
	var cfg models.CommissionConfig
	if err := s.db.WithContext(ctx).First(&cfg, id).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *ConfigStore) List(ctx context.Context, serviceType string, includeInactive bool) ([]models.CommissionConfig, error) {
	query := s.db.WithContext(ctx).Model(&models.CommissionConfig{})
	if serviceType != "" {
		query = query.Where("service_type = ?", serviceType)
	}
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var configs []models.CommissionConfig
	if err := query.Order("created_at desc").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("list commission configs: %w", err)
	}
	return configs, nil
}

// Resolve picks exactly one config for a transaction: active configs for the
// service type, provider-exact over wildcard, in-window peak rate over the
// standing default, and on a residual tie the most recently created one with
// a warning logged.
func (s *ConfigStore) Resolve(ctx context.Context, serviceType string, provider *string, at time.Time) (*models.CommissionConfig, error) {
	var candidates []models.CommissionConfig
	err := s.db.WithContext(ctx).
		Where("service_type = ? AND is_active = ?", serviceType, true).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("load configs for %s: %w", serviceType, err)
	}

	cfg := selectConfig(candidates, provider, at, s.log)
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigMissing, serviceType)
	}
	return cfg, nil
}

// selectConfig is the pure resolution step over pre-filtered active
// candidates of one service type.
func selectConfig(candidates []models.CommissionConfig, provider *string, at time.Time, log *zap.Logger) *models.CommissionConfig {
	var pool []models.CommissionConfig
	for _, c := range candidates {
		if !c.InWindow(at) {
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		return nil
	}

	// Provider match beats the wildcard; a transaction without a provider
	// only ever matches wildcard configs.
	if provider != nil {
		var exact []models.CommissionConfig
		for _, c := range pool {
			if c.Provider != nil && *c.Provider == *provider {
				exact = append(exact, c)
			}
		}
		if len(exact) > 0 {
			pool = exact
		} else {
			pool = wildcardsOnly(pool)
		}
	} else {
		pool = wildcardsOnly(pool)
	}
	if len(pool) == 0 {
		return nil
	}

	// An in-window peak rate outranks the standing default.
	var peaks []models.CommissionConfig
	for _, c := range pool {
		if c.IsPeakRate {
			peaks = append(peaks, c)
		}
	}
	if len(peaks) > 0 {
		pool = peaks
	} else {
		var standing []models.CommissionConfig
		for _, c := range pool {
			if !c.IsPeakRate {
				standing = append(standing, c)
			}
		}
		pool = standing
	}
	if len(pool) == 0 {
		return nil
	}

	if len(pool) > 1 {
		// Equally specific configs are a data-entry anomaly. Deterministic
		// pick: newest creation wins, id as the final tie-break.
		sort.Slice(pool, func(i, j int) bool {
			ti, tj := pool[i].CreatedAt, pool[j].CreatedAt
			if ti != nil && tj != nil && !ti.Equal(*tj) {
				return ti.After(*tj)
			}
			return pool[i].ID > pool[j].ID
		})
		ids := make([]int64, len(pool))
		for i, c := range pool {
			ids[i] = c.ID
		}
		log.Warn("ambiguous commission configs, picking most recently created",
			zap.Int64s("config_ids", ids), zap.Int64("selected", pool[0].ID))
	}

	return &pool[0]
}

func wildcardsOnly(pool []models.CommissionConfig) []models.CommissionConfig {
	var out []models.CommissionConfig
	for _, c := range pool {
		if c.Provider == nil {
			out = append(out, c)
		}
	}
	return out
}

// mustFixed normalizes an already-validated decimal string to 2 places.
func mustFixed(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		// checkInput has already parsed this value.
		panic(fmt.Sprintf("unvalidated decimal %q: %v", s, err))
	}
	return d.StringFixed(2)
}
