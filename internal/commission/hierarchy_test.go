package commission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"regionmart/internal/database/models"
)

type mapUserSource struct {
	users map[int64]*models.User
}

func (s *mapUserSource) GetUser(_ context.Context, id int64) (*models.User, error) {
	return s.users[id], nil
}

func i64Ptr(v int64) *int64 { return &v }

func chainUsers() map[int64]*models.User {
	return map[int64]*models.User{
		1: {ID: 1, UserType: models.UserTypeAdmin, IsActive: true},
		2: {ID: 2, UserType: models.UserTypeBranchManager, ParentID: i64Ptr(1), IsActive: true},
		3: {ID: 3, UserType: models.UserTypeTalukManager, ParentID: i64Ptr(2), IsActive: true},
		4: {ID: 4, UserType: models.UserTypeServiceAgent, ParentID: i64Ptr(3), IsActive: true},
		5: {ID: 5, UserType: models.UserTypeRegisteredUser, IsActive: true},
	}
}

func TestResolveParticipantsFullChain(t *testing.T) {
	r := NewResolver(&mapUserSource{users: chainUsers()}, zap.NewNop())

	participants, err := r.ResolveParticipants(context.Background(), 4, 5)
	require.NoError(t, err)
	require.Len(t, participants, 5)

	assert.Equal(t, []Participant{
		{Tier: models.UserTypeServiceAgent, UserID: 4},
		{Tier: models.UserTypeTalukManager, UserID: 3},
		{Tier: models.UserTypeBranchManager, UserID: 2},
		{Tier: models.UserTypeAdmin, UserID: 1},
		{Tier: models.UserTypeRegisteredUser, UserID: 5},
	}, participants)
}

func TestResolveParticipantsMissingLinkTruncatesChain(t *testing.T) {
	users := chainUsers()
	delete(users, 2)
	r := NewResolver(&mapUserSource{users: users}, zap.NewNop())

	participants, err := r.ResolveParticipants(context.Background(), 4, 5)
	require.NoError(t, err)

	// The walk stops at the broken link; branch_manager and admin forfeit,
	// the registered user still collects.
	assert.Equal(t, []Participant{
		{Tier: models.UserTypeServiceAgent, UserID: 4},
		{Tier: models.UserTypeTalukManager, UserID: 3},
		{Tier: models.UserTypeRegisteredUser, UserID: 5},
	}, participants)
}

func TestResolveParticipantsInactiveUserForfeitsOwnTierOnly(t *testing.T) {
	users := chainUsers()
	users[3].IsActive = false
	r := NewResolver(&mapUserSource{users: users}, zap.NewNop())

	participants, err := r.ResolveParticipants(context.Background(), 4, 5)
	require.NoError(t, err)

	assert.Equal(t, []Participant{
		{Tier: models.UserTypeServiceAgent, UserID: 4},
		{Tier: models.UserTypeBranchManager, UserID: 2},
		{Tier: models.UserTypeAdmin, UserID: 1},
		{Tier: models.UserTypeRegisteredUser, UserID: 5},
	}, participants)
}

func TestResolveParticipantsDuplicateTierFails(t *testing.T) {
	users := chainUsers()
	// Two taluk managers in one chain.
	users[3].ParentID = i64Ptr(6)
	users[6] = &models.User{ID: 6, UserType: models.UserTypeTalukManager, ParentID: i64Ptr(2), IsActive: true}
	r := NewResolver(&mapUserSource{users: users}, zap.NewNop())

	_, err := r.ResolveParticipants(context.Background(), 4, 5)
	assert.True(t, errors.Is(err, ErrHierarchyMalformed), "got %v", err)
}

func TestResolveParticipantsParentCycleFails(t *testing.T) {
	users := chainUsers()
	users[1].ParentID = i64Ptr(4)
	r := NewResolver(&mapUserSource{users: users}, zap.NewNop())

	_, err := r.ResolveParticipants(context.Background(), 4, 5)
	assert.True(t, errors.Is(err, ErrHierarchyMalformed), "got %v", err)
}

func TestResolveParticipantsNoAgent(t *testing.T) {
	r := NewResolver(&mapUserSource{users: chainUsers()}, zap.NewNop())

	participants, err := r.ResolveParticipants(context.Background(), 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []Participant{
		{Tier: models.UserTypeRegisteredUser, UserID: 5},
	}, participants)
}

func TestResolveParticipantsNonManagementUserSkipped(t *testing.T) {
	users := chainUsers()
	// A registered user wedged into the parent chain earns nothing from it.
	users[4].ParentID = i64Ptr(7)
	users[7] = &models.User{ID: 7, UserType: models.UserTypeRegisteredUser, ParentID: i64Ptr(3), IsActive: true}
	r := NewResolver(&mapUserSource{users: users}, zap.NewNop())

	participants, err := r.ResolveParticipants(context.Background(), 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []Participant{
		{Tier: models.UserTypeServiceAgent, UserID: 4},
		{Tier: models.UserTypeTalukManager, UserID: 3},
		{Tier: models.UserTypeBranchManager, UserID: 2},
		{Tier: models.UserTypeAdmin, UserID: 1},
		{Tier: models.UserTypeRegisteredUser, UserID: 5},
	}, participants)
}
