package commission

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"regionmart/internal/database/models"
)

// UserSource supplies hierarchy lookups. A nil user (with nil error) means
// the id does not exist; that is a broken link, not a failure.
type UserSource interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// GormUserSource reads the marketplace users table.
type GormUserSource struct {
	db *gorm.DB
}

func NewGormUserSource(db *gorm.DB) *GormUserSource {
	return &GormUserSource{db: db}
}

func (s *GormUserSource) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user %d: %w", id, err)
	}
	return &u, nil
}

// Resolver walks the parent chain upward from the service agent who handled
// a transaction, collecting one participant per management tier.
type Resolver struct {
	users UserSource
	log   *zap.Logger
}

func NewResolver(users UserSource, log *zap.Logger) *Resolver {
	return &Resolver{users: users, log: log}
}

// maxChainHops bounds the walk so a corrupt parent cycle cannot loop forever.
const maxChainHops = 8

// ResolveParticipants returns the participants owed a share of a transaction.
// agentID is the service agent who processed it (0 when none was involved);
// customerID is the originating customer, who always carries the flat
// registered_user referral tier regardless of hierarchy position.
//
// A missing or inactive link forfeits that tier and the walk stops there;
// a duplicated tier aborts with ErrHierarchyMalformed so no tier is paid
// twice.
func (r *Resolver) ResolveParticipants(ctx context.Context, agentID, customerID int64) ([]Participant, error) {
	var participants []Participant
	seen := make(map[models.UserType]bool)

	cur := agentID
	for hops := 0; cur != 0; hops++ {
		if hops >= maxChainHops {
			return nil, fmt.Errorf("%w: parent chain exceeds %d hops from user %d", ErrHierarchyMalformed, maxChainHops, agentID)
		}

		u, err := r.users.GetUser(ctx, cur)
		if err != nil {
			return nil, err
		}
		if u == nil {
			r.log.Warn("hierarchy link points to missing user, tier forfeited",
				zap.Int64("user_id", cur), zap.Int64("agent_id", agentID))
			break
		}
		if !u.IsActive {
			r.log.Warn("inactive user in hierarchy, tier forfeited",
				zap.Int64("user_id", u.ID), zap.String("user_type", u.UserType))
			if u.ParentID == nil {
				break
			}
			cur = *u.ParentID
			continue
		}

		if !isManagementTier(u.UserType) {
			r.log.Warn("non-management user in parent chain, skipped",
				zap.Int64("user_id", u.ID), zap.String("user_type", u.UserType))
			if u.ParentID == nil {
				break
			}
			cur = *u.ParentID
			continue
		}

		if seen[u.UserType] {
			return nil, fmt.Errorf("%w: tier %s appears twice in chain from user %d", ErrHierarchyMalformed, u.UserType, agentID)
		}
		seen[u.UserType] = true
		participants = append(participants, Participant{Tier: u.UserType, UserID: u.ID})

		if u.ParentID == nil {
			break
		}
		cur = *u.ParentID
	}

	// The referral incentive goes to the customer whether or not any of the
	// management chain resolved. The calculator drops it when the config
	// grants it nothing.
	if customerID > 0 {
		participants = append(participants, Participant{Tier: models.UserTypeRegisteredUser, UserID: customerID})
	}

	return participants, nil
}

func isManagementTier(t models.UserType) bool {
	for _, tier := range models.ManagementTiers {
		if t == tier {
			return true
		}
	}
	return false
}
