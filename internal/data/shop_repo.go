package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/gmvmax/execd/internal/errors"

	"github.com/gmvmax/execd/internal/core"
	"github.com/gmvmax/execd/internal/domain/model"
)

// ErrShopNotFound is returned when a shop is not found.
var ErrShopNotFound = errors.New("shop not found")

// ShopRepo provides database operations for the shop (tenant) directory.
type ShopRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewShopRepo creates a new ShopRepo instance.
func NewShopRepo(db *sql.DB, cfg RepoConfig) *ShopRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &ShopRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const shopColumns = `
  id, display_name, platform, site, external_browser_id,
  connection_status, last_connected_at, created_at, updated_at
`

// Create registers a new shop. New shops start inactive until a connection
// test promotes them.
func (r *ShopRepo) Create(ctx context.Context, req *model.CreateShopRequest) (*model.Shop, error) {
	if req == nil {
		return nil, errors.New("create shop request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO shops (display_name, platform, site, external_browser_id, connection_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'inactive', $5, $5)
		RETURNING `+shopColumns,
		req.DisplayName, req.Platform, strings.ToLower(req.Site), req.ExternalBrowserID, now,
	)

	shop, err := scanShopFromRow(row)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("create shop: %w", err))
	}
	return shop, nil
}

// GetByID retrieves a shop by its ID.
func (r *ShopRepo) GetByID(ctx context.Context, id string) (*model.Shop, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		WHERE id = $1
	`, id)

	shop, err := scanShopFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shop: %w", err)
	}
	return shop, nil
}

// List returns shops ordered by display name.
func (r *ShopRepo) List(ctx context.Context, limit, offset int) ([]*model.Shop, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		ORDER BY display_name ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	var shops []*model.Shop
	for rows.Next() {
		shop, scanErr := scanShopFromRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan shop: %w", scanErr)
		}
		shops = append(shops, shop)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate shops: %w", rowsErr)
	}
	return shops, nil
}

// Update mutates the provided fields of a shop.
func (r *ShopRepo) Update(
	ctx context.Context,
	id string,
	req *model.UpdateShopRequest,
) (*model.Shop, error) {
	if req == nil {
		return nil, errors.New("update shop request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	row := r.DB.QueryRowContext(ctx, `
		UPDATE shops
		SET display_name = COALESCE($2, display_name),
		    platform = COALESCE($3, platform),
		    site = COALESCE(LOWER($4), site),
		    connection_status = COALESCE($5, connection_status),
		    updated_at = $6
		WHERE id = $1
		RETURNING `+shopColumns,
		id, req.DisplayName, req.Platform, req.Site, req.ConnectionStatus,
		r.timeProvider.Now().UTC(),
	)

	shop, err := scanShopFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("update shop: %w", err))
	}
	return shop, nil
}

// Delete removes a shop. Shops with non-terminal tasks are protected by the
// foreign key and surface as a ForeignKey AppError.
func (r *ShopRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM shops WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.MapDBError(fmt.Errorf("delete shop: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete shop rows affected: %w", err)
	}
	return affected == 1, nil
}

// SetConnectionStatus records the outcome of a connection attempt.
func (r *ShopRepo) SetConnectionStatus(
	ctx context.Context,
	params core.SetConnectionStatusParams,
) error {
	if !params.Status.Valid() {
		return fmt.Errorf("invalid connection status: %q", params.Status)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE shops
		SET connection_status = $2,
		    last_connected_at = COALESCE($3, last_connected_at),
		    updated_at = $4
		WHERE id = $1
	`, params.ShopID, params.Status, params.ConnectedAt, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("set connection status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set connection status rows affected: %w", err)
	}
	if affected == 0 {
		return ErrShopNotFound
	}
	return nil
}

// UpsertByExternalBrowserID inserts or refreshes a shop during a bulk sync
// from the provisioner's browser listing. Connection status is preserved for
// existing rows.
func (r *ShopRepo) UpsertByExternalBrowserID(
	ctx context.Context,
	req *model.CreateShopRequest,
) (*model.Shop, error) {
	if req == nil {
		return nil, errors.New("create shop request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO shops (display_name, platform, site, external_browser_id, connection_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'inactive', $5, $5)
		ON CONFLICT (external_browser_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    platform = EXCLUDED.platform,
		    site = EXCLUDED.site,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+shopColumns,
		req.DisplayName, req.Platform, strings.ToLower(req.Site), req.ExternalBrowserID, now,
	)

	shop, err := scanShopFromRow(row)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("upsert shop: %w", err))
	}
	return shop, nil
}

type shopRowScanner interface {
	Scan(dest ...any) error
}

func scanShopFromRow(scanner shopRowScanner) (*model.Shop, error) {
	shop := &model.Shop{}
	var lastConnectedAt sql.NullTime
	if err := scanner.Scan(
		&shop.ID,
		&shop.DisplayName,
		&shop.Platform,
		&shop.Site,
		&shop.ExternalBrowserID,
		&shop.ConnectionStatus,
		&lastConnectedAt,
		&shop.CreatedAt,
		&shop.UpdatedAt,
	); err != nil {
		return nil, err
	}
	shop.LastConnectedAt = cloneNullableTime(lastConnectedAt)
	return shop, nil
}
