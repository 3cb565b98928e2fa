package service

import (
	"context"
	"fmt"
	"sort"

	"shipa-backend/config"
	"shipa-backend/internal/core/domain"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/apperror"
	"shipa-backend/pkg/geo"

	"github.com/rs/zerolog"
)

// ShopServiceImpl implements ports.ShopService.
type ShopServiceImpl struct {
	shopRepo ports.ShopRepository
	cfg      config.GeoConfig
	log      zerolog.Logger
}

func NewShopService(shopRepo ports.ShopRepository, cfg config.GeoConfig, log zerolog.Logger) *ShopServiceImpl {
	return &ShopServiceImpl{shopRepo: shopRepo, cfg: cfg, log: log}
}

// SearchNearby delegates the radius filter to the store and annotates each
// shop with its haversine distance in km (2 dp). Results keep the store's
// order unless SortByDistance is set.
func (s *ShopServiceImpl) SearchNearby(ctx context.Context, q ports.NearbyQuery) ([]domain.ShopWithDistance, error) {
	if !q.Point.Valid() {
		return nil, apperror.Validation("longitude must be within [-180, 180] and latitude within [-90, 90]")
	}

	radius := q.RadiusMeters
	if radius <= 0 {
		radius = s.cfg.DefaultRadiusMeters
	}
	if s.cfg.MaxRadiusMeters > 0 && radius > s.cfg.MaxRadiusMeters {
		return nil, apperror.Validation(fmt.Sprintf("maxDistance must not exceed %.0f meters", s.cfg.MaxRadiusMeters))
	}

	shops, err := s.shopRepo.FindWithinRadius(ctx, q.Point, radius)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find nearby shops: %w", err))
	}

	results := make([]domain.ShopWithDistance, len(shops))
	for i, shop := range shops {
		results[i] = domain.ShopWithDistance{
			Shop:       shop,
			DistanceKm: geo.Round2(geo.DistanceKm(q.Point, shop.Location)),
		}
	}

	if q.SortByDistance {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].DistanceKm < results[j].DistanceKm
		})
	}

	s.log.Debug().
		Float64("longitude", q.Point.Longitude).
		Float64("latitude", q.Point.Latitude).
		Float64("radius_m", radius).
		Int("count", len(results)).
		Msg("nearby shop search")

	return results, nil
}
