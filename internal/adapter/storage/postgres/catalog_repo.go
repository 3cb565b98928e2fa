package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shipa-backend/internal/core/domain"
	"shipa-backend/pkg/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const shopColumns = `id, owner_id, name, description, address,
	ST_X(location::geometry), ST_Y(location::geometry),
	phone, categories, rating, is_active, deactivated_at, created_at, updated_at`

// ShopRepo implements ports.ShopRepository on a PostGIS geography column.
type ShopRepo struct {
	pool Pool
}

func NewShopRepo(pool Pool) *ShopRepo {
	return &ShopRepo{pool: pool}
}

func (r *ShopRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops WHERE id = $1`

	shop, err := scanShop(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shop by id: %w", err)
	}
	return shop, nil
}

// FindWithinRadius uses the GiST index on location and returns active shops
// nearest first.
func (r *ShopRepo) FindWithinRadius(ctx context.Context, p geo.Point, radiusMeters float64) ([]domain.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops
		WHERE is_active
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography`

	rows, err := r.pool.Query(ctx, query, p.Longitude, p.Latitude, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("find shops within radius: %w", err)
	}
	defer rows.Close()

	shops := []domain.Shop{}
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shop row: %w", err)
		}
		shops = append(shops, *shop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shop rows: %w", err)
	}
	return shops, nil
}

// DeleteDeactivatedBefore purges inactive shops; menu_items cascade.
func (r *ShopRepo) DeleteDeactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteDeactivated(ctx, r.pool, "shops", "is_active", cutoff)
}

func scanShop(row pgx.Row) (*domain.Shop, error) {
	s := &domain.Shop{}
	var address []byte
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Description, &address,
		&s.Location.Longitude, &s.Location.Latitude,
		&s.Phone, &s.Categories, &s.Rating, &s.IsActive, &s.DeactivatedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &s.Address); err != nil {
			return nil, fmt.Errorf("decode shop address: %w", err)
		}
	}
	return s, nil
}

const menuItemColumns = `id, shop_id, name, description, price, category, is_available, deactivated_at, created_at, updated_at`

// MenuItemRepo implements ports.MenuItemRepository.
type MenuItemRepo struct {
	pool Pool
}

func NewMenuItemRepo(pool Pool) *MenuItemRepo {
	return &MenuItemRepo{pool: pool}
}

// GetByIDs returns the items that exist; missing ids are simply absent.
func (r *MenuItemRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get menu items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.MenuItem, 0, len(ids))
	for rows.Next() {
		var mi domain.MenuItem
		if err := rows.Scan(
			&mi.ID, &mi.ShopID, &mi.Name, &mi.Description, &mi.Price, &mi.Category,
			&mi.IsAvailable, &mi.DeactivatedAt, &mi.CreatedAt, &mi.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan menu item row: %w", err)
		}
		items = append(items, mi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu item rows: %w", err)
	}
	return items, nil
}

func (r *MenuItemRepo) DeleteDeactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteDeactivated(ctx, r.pool, "menu_items", "is_available", cutoff)
}

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT id, name, email, phone, is_active, deactivated_at, created_at FROM users WHERE id = $1`

	u := &domain.User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.IsActive, &u.DeactivatedAt, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepo) DeleteDeactivatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteDeactivated(ctx, r.pool, "users", "is_active", cutoff)
}

// deleteDeactivated removes rows whose flag column is false and whose
// deactivated_at is at or before cutoff. table and flag are constants.
func deleteDeactivated(ctx context.Context, pool Pool, table, flag string, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE NOT %s AND deactivated_at <= $1`, table, flag)

	tag, err := pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete deactivated %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}
