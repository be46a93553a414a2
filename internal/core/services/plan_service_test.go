package services

import (
	"context"
	"testing"

	"slate/internal/core/domain"
	apperrors "slate/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLimitsFor_AnonymousIsFreeTier(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := NewPlanService(userRepo)

	limits, err := svc.LimitsFor(context.Background(), domain.Identity{ID: "anon-1", Anonymous: true})
	require.NoError(t, err)

	assert.Equal(t, domain.LimitsForPlan(domain.PlanFree), limits)
	userRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestLimitsFor_CachesLookup(t *testing.T) {
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", mock.Anything, domain.IdentityID("user-1")).
		Return(&domain.User{ID: "user-1", Plan: domain.PlanTeam}, nil).Once()

	svc := NewPlanService(userRepo)
	identity := domain.Identity{ID: "user-1"}

	first, err := svc.LimitsFor(context.Background(), identity)
	require.NoError(t, err)
	second, err := svc.LimitsFor(context.Background(), identity)
	require.NoError(t, err)

	assert.Equal(t, domain.LimitsForPlan(domain.PlanTeam), first)
	assert.Equal(t, first, second)
	userRepo.AssertExpectations(t)
	userRepo.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestLimitsFor_UnknownUserFallsBackToClaimTier(t *testing.T) {
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", mock.Anything, domain.IdentityID("user-1")).
		Return(nil, domain.ErrUserNotFound)

	svc := NewPlanService(userRepo)
	limits, err := svc.LimitsFor(context.Background(), domain.Identity{ID: "user-1", Plan: domain.PlanPro})
	require.NoError(t, err)

	assert.Equal(t, domain.LimitsForPlan(domain.PlanPro), limits)
}

func TestLimitsFor_LookupFailureIsTyped(t *testing.T) {
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", mock.Anything, domain.IdentityID("user-1")).
		Return(nil, domain.ErrBackendUnavailable)

	svc := NewPlanService(userRepo)
	_, err := svc.LimitsFor(context.Background(), domain.Identity{ID: "user-1"})
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeLimitCheckFailed, appErr.Code)
}
