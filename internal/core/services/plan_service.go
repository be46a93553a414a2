package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	"slate/pkg/cache"
	apperrors "slate/pkg/errors"
)

// planCacheTTL bounds how stale a cached plan lookup may be. Plan upgrades
// propagate within this window.
const planCacheTTL = 5 * time.Minute

type planService struct {
	userRepo ports.UserRepository
	cache    *cache.Cache
}

func NewPlanService(userRepo ports.UserRepository) ports.PlanService {
	return &planService{
		userRepo: userRepo,
		cache:    cache.New(planCacheTTL),
	}
}

// LimitsFor resolves the numeric entitlements of an identity. Anonymous
// identities always get the free tier; stored users are looked up and
// cached.
func (s *planService) LimitsFor(ctx context.Context, identity domain.Identity) (domain.PlanLimits, error) {
	if identity.Anonymous {
		return domain.LimitsForPlan(domain.PlanFree), nil
	}

	key := fmt.Sprintf("plan:%s", identity.ID)
	tier, err := s.cache.GetOrSet(ctx, key, func(ctx context.Context) (interface{}, error) {
		user, uerr := s.userRepo.GetByID(ctx, identity.ID)
		if uerr != nil {
			return nil, uerr
		}
		return user.Plan, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Token-only identities without a stored profile use whatever
			// tier the claims carried.
			return domain.LimitsForPlan(identity.Plan), nil
		}
		return domain.PlanLimits{}, apperrors.WrapError(err, apperrors.ErrCodeLimitCheckFailed, "plan limit lookup failed", 503)
	}

	planTier, ok := tier.(domain.PlanTier)
	if !ok {
		return domain.LimitsForPlan(domain.PlanFree), nil
	}
	return domain.LimitsForPlan(planTier), nil
}
