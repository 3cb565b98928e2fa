package service

import (
	"context"
	"fmt"
	"time"

	"shipa-backend/config"
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// CleanupServiceImpl implements ports.CleanupService. Shops, menu items and
// users are purged once they have been deactivated for longer than their
// retention window. Deleting a shop cascades to its menu items.
type CleanupServiceImpl struct {
	shopRepo ports.ShopRepository
	menuRepo ports.MenuItemRepository
	userRepo ports.UserRepository
	cfg      config.CleanupConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewCleanupService(
	shopRepo ports.ShopRepository,
	menuRepo ports.MenuItemRepository,
	userRepo ports.UserRepository,
	cfg config.CleanupConfig,
	log zerolog.Logger,
) *CleanupServiceImpl {
	return &CleanupServiceImpl{
		shopRepo: shopRepo,
		menuRepo: menuRepo,
		userRepo: userRepo,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type sweep struct {
	entity string
	months int
	delete func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (s *CleanupServiceImpl) CleanupShops(ctx context.Context) (*domain.CleanupResult, error) {
	return s.run(ctx, s.shopSweep())
}

func (s *CleanupServiceImpl) CleanupMenuItems(ctx context.Context) (*domain.CleanupResult, error) {
	return s.run(ctx, s.menuItemSweep())
}

func (s *CleanupServiceImpl) CleanupUsers(ctx context.Context) (*domain.CleanupResult, error) {
	return s.run(ctx, s.userSweep())
}

// CleanupAll runs every sweep concurrently. A failed sweep is reported in its
// result and does not stop the others.
func (s *CleanupServiceImpl) CleanupAll(ctx context.Context) ([]domain.CleanupResult, error) {
	sweeps := []sweep{s.shopSweep(), s.menuItemSweep(), s.userSweep()}
	results := make([]domain.CleanupResult, len(sweeps))

	var g errgroup.Group
	for i, sw := range sweeps {
		g.Go(func() error {
			res, err := s.run(ctx, sw)
			if err != nil {
				results[i] = domain.CleanupResult{Entity: sw.entity, Success: false, Message: err.Error()}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *CleanupServiceImpl) run(ctx context.Context, sw sweep) (*domain.CleanupResult, error) {
	cutoff := s.now().AddDate(0, -sw.months, 0)

	n, err := sw.delete(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Str("entity", sw.entity).Msg("cleanup failed")
		return nil, apperror.InternalError(fmt.Errorf("cleanup %s: %w", sw.entity, err))
	}

	s.log.Info().
		Str("entity", sw.entity).
		Int64("deleted", n).
		Time("cutoff", cutoff).
		Msg("cleanup completed")

	return &domain.CleanupResult{
		Entity:       sw.entity,
		Success:      true,
		DeletedCount: n,
		Message:      fmt.Sprintf("Deleted %d %s deactivated for more than %d months", n, sw.entity, sw.months),
	}, nil
}

func (s *CleanupServiceImpl) shopSweep() sweep {
	return sweep{entity: "shops", months: s.cfg.ShopRetentionMonths, delete: s.shopRepo.DeleteDeactivatedBefore}
}

func (s *CleanupServiceImpl) menuItemSweep() sweep {
	return sweep{entity: "menu items", months: s.cfg.MenuItemRetentionMonths, delete: s.menuRepo.DeleteDeactivatedBefore}
}

func (s *CleanupServiceImpl) userSweep() sweep {
	return sweep{entity: "users", months: s.cfg.UserRetentionMonths, delete: s.userRepo.DeleteDeactivatedBefore}
}
