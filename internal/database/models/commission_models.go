package models

import "time"

type ServiceType = string

const (
	ServiceRecharge  ServiceType = "recharge"
	ServiceBooking   ServiceType = "booking"
	ServiceTaxi      ServiceType = "taxi"
	ServiceDelivery  ServiceType = "delivery"
	ServiceRental    ServiceType = "rental"
	ServiceGrocery   ServiceType = "grocery"
	ServiceRecycling ServiceType = "recycling"
)

type UserType = string

const (
	UserTypeAdmin          UserType = "admin"
	UserTypeBranchManager  UserType = "branch_manager"
	UserTypeTalukManager   UserType = "taluk_manager"
	UserTypeServiceAgent   UserType = "service_agent"
	UserTypeRegisteredUser UserType = "registered_user"
)

// ManagementTiers is the hierarchy walk order, leaf to root. The registered
// user referral share is flat and deliberately not part of this chain.
var ManagementTiers = []UserType{
	UserTypeServiceAgent,
	UserTypeTalukManager,
	UserTypeBranchManager,
	UserTypeAdmin,
}

const (
	CommissionStatusPending = "pending"
	CommissionStatusPaid    = "paid"
)

// CommissionConfig holds the percentage split for one (serviceType, provider)
// pair. Provider nil means the config applies to every provider of the
// service type. A peak-rate config carries a validity window and outranks the
// standing default while the window is active. Configs are never deleted,
// only deactivated.
type CommissionConfig struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	ServiceType string  `gorm:"index;not null"`
	Provider    *string `gorm:"index"`

	AdminPercent          string `gorm:"type:decimal(5,2);not null"`
	BranchManagerPercent  string `gorm:"type:decimal(5,2);not null"`
	TalukManagerPercent   string `gorm:"type:decimal(5,2);not null"`
	ServiceAgentPercent   string `gorm:"type:decimal(5,2);not null"`
	RegisteredUserPercent string `gorm:"type:decimal(5,2);not null"`
	TotalPercent          string `gorm:"type:decimal(6,2);not null"`

	StartDate  *time.Time
	EndDate    *time.Time
	IsPeakRate bool `gorm:"default:false"`
	IsActive   bool `gorm:"default:true;index"`

	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

// PercentFor returns the configured percentage for a tier as stored, or ""
// for an unknown tier.
func (c *CommissionConfig) PercentFor(tier UserType) string {
	switch tier {
	case UserTypeAdmin:
		return c.AdminPercent
	case UserTypeBranchManager:
		return c.BranchManagerPercent
	case UserTypeTalukManager:
		return c.TalukManagerPercent
	case UserTypeServiceAgent:
		return c.ServiceAgentPercent
	case UserTypeRegisteredUser:
		return c.RegisteredUserPercent
	}
	return ""
}

// InWindow reports whether t falls inside the config's validity window.
// A config without a window is always in window.
func (c *CommissionConfig) InWindow(t time.Time) bool {
	if c.StartDate != nil && t.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && t.After(*c.EndDate) {
		return false
	}
	return true
}

// Commission is one ledger entry: one participant's share of one completed
// transaction. Entries are created as a batch per transaction and only ever
// mutated by the pending -> paid transition.
type Commission struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	TransactionID     string `gorm:"index;not null"`
	UserID            int64  `gorm:"index;not null"`
	UserType          string `gorm:"not null"`
	ServiceType       string `gorm:"index;not null"`
	ServiceID         string `gorm:"not null"`
	OriginalAmount    string `gorm:"type:decimal(18,2);not null"`
	CommissionPercent string `gorm:"type:decimal(5,2);not null"`
	CommissionAmount  string `gorm:"type:decimal(18,2);not null"`
	Status            string `gorm:"index;not null;default:pending"`

	CreatedAt *time.Time `gorm:"autoCreateTime"`
}

// CommissionFailure is an operator-queue row: a transaction whose commission
// run could not complete. The original transaction payload is kept so the
// run can be retried after the data is repaired.
type CommissionFailure struct {
	ID            int64   `gorm:"primaryKey;autoIncrement"`
	Reference     string  `gorm:"uniqueIndex;not null"`
	TransactionID string  `gorm:"index;not null"`
	ServiceType   string  `gorm:"not null"`
	Reason        string  `gorm:"index;not null"`
	Detail        string  `gorm:"type:text"`
	Payload       string  `gorm:"type:text;not null"`
	Resolved      bool    `gorm:"default:false;index"`
	ResolvedBy    *int64  `gorm:""`
	Notes         *string `gorm:"type:text"`

	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

// User is a marketplace account. ParentID points one level up the management
// hierarchy (service_agent -> taluk_manager -> branch_manager -> admin);
// it is nil for the root admin and for plain registered users.
type User struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Username string `gorm:"uniqueIndex;not null"`
	Email    string `gorm:"uniqueIndex;not null"`
	Password string `gorm:"not null"`
	Fullname string `gorm:"not null"`
	Phone    string `gorm:""`
	Region   string `gorm:"index"`
	UserType string `gorm:"index;not null"`
	ParentID *int64 `gorm:"index"`
	IsActive bool   `gorm:"default:true"`

	LastLogin *time.Time
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}
