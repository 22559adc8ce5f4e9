package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmvmax/execd/internal/core"
	"github.com/gmvmax/execd/internal/domain/model"
	apperrors "github.com/gmvmax/execd/internal/errors"
	"github.com/gmvmax/execd/internal/testutil"
)

func TestShopRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewShopRepo(db, RepoConfig{})

		req := testutil.ShopRequest("browser-shop-create")
		req.Site = "ID"
		shop, err := repo.Create(context.Background(), req)
		require.NoError(t, err)

		assert.NotEmpty(t, shop.ID)
		assert.Equal(t, req.DisplayName, shop.DisplayName)
		assert.Equal(t, "id", shop.Site)
		assert.Equal(t, model.ConnectionStatusInactive, shop.ConnectionStatus)
		assert.Nil(t, shop.LastConnectedAt)
		assert.NotZero(t, shop.CreatedAt)
	})
}

func TestShopRepo_Create_DuplicateBrowserID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewShopRepo(db, RepoConfig{})

		_, err := repo.Create(ctx, testutil.ShopRequest("browser-shop-dupe"))
		require.NoError(t, err)

		_, err = repo.Create(ctx, testutil.ShopRequest("browser-shop-dupe"))
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestShopRepo_GetByID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewShopRepo(db, RepoConfig{})

		created, err := repo.Create(ctx, testutil.ShopRequest("browser-shop-get"))
		require.NoError(t, err)

		found, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)

		_, err = repo.GetByID(ctx, "550e8400-e29b-41d4-a716-446655440000")
		assert.ErrorIs(t, err, ErrShopNotFound)
	})
}

func TestShopRepo_List_OrdersByDisplayName(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewShopRepo(db, RepoConfig{})

		for _, name := range []string{"Zulu Store", "Alpha Store", "Mango Store"} {
			req := testutil.ShopRequest("browser-" + name)
			req.DisplayName = name
			_, err := repo.Create(ctx, req)
			require.NoError(t, err)
		}

		shops, err := repo.List(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, shops, 3)
		assert.Equal(t, "Alpha Store", shops[0].DisplayName)
		assert.Equal(t, "Mango Store", shops[1].DisplayName)
		assert.Equal(t, "Zulu Store", shops[2].DisplayName)

		page, err := repo.List(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "Zulu Store", page[0].DisplayName)
	})
}

func TestShopRepo_Update_PartialFields(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewShopRepo(db, RepoConfig{})

		created, err := repo.Create(ctx, testutil.ShopRequest("browser-shop-update"))
		require.NoError(t, err)

		updated, err := repo.Update(ctx, created.ID, &model.UpdateShopRequest{
			DisplayName: testutil.StringPtr("Renamed Store"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed Store", updated.DisplayName)
		assert.Equal(t, created.Site, updated.Site)
		assert.Equal(t, created.Platform, updated.Platform)
		assert.Equal(t, created.ConnectionStatus, updated.ConnectionStatus)

		site := "VN"
		updated, err = repo.Update(ctx, created.ID, &model.UpdateShopRequest{Site: &site})
		require.NoError(t, err)
		assert.Equal(t, "vn", updated.Site)
		assert.Equal(t, "Renamed Store", updated.DisplayName)
	})
}

func TestShopRepo_Update_NotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewShopRepo(db, RepoConfig{})

		_, err := repo.Update(
			context.Background(),
			"550e8400-e29b-41d4-a716-446655440000",
			&model.UpdateShopRequest{DisplayName: testutil.StringPtr("Ghost")},
		)
		assert.ErrorIs(t, err, ErrShopNotFound)
	})
}

func TestShopRepo_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewShopRepo(db, RepoConfig{})

		created, err := repo.Create(ctx, testutil.ShopRequest("browser-shop-delete"))
		require.NoError(t, err)

		deleted, err := repo.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = repo.GetByID(ctx, created.ID)
		assert.ErrorIs(t, err, ErrShopNotFound)

		deleted, err = repo.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestShopRepo_Delete_ProtectedByTaskHistory(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		shop := createTestShop(t, db, "browser-shop-fk")
		taskRepo := NewTaskRepo(db, RepoConfig{})
		shopRepo := NewShopRepo(db, RepoConfig{})

		_, err := taskRepo.Create(ctx, testutil.NewTaskRequest(shop.ID).Build())
		require.NoError(t, err)

		_, err = shopRepo.Delete(ctx, shop.ID)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeForeignKey, apperrors.GetCode(err))
	})
}

func TestShopRepo_SetConnectionStatus(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewShopRepo(db, RepoConfig{})

		created, err := repo.Create(ctx, testutil.ShopRequest("browser-shop-status"))
		require.NoError(t, err)

		connectedAt := time.Now().UTC().Truncate(time.Millisecond)
		err = repo.SetConnectionStatus(ctx, core.SetConnectionStatusParams{
			ShopID:      created.ID,
			Status:      model.ConnectionStatusActive,
			ConnectedAt: &connectedAt,
		})
		require.NoError(t, err)

		shop, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ConnectionStatusActive, shop.ConnectionStatus)
		require.NotNil(t, shop.LastConnectedAt)
		assert.WithinDuration(t, connectedAt, *shop.LastConnectedAt, time.Second)

		// A failure stamp keeps the last successful connection time.
		err = repo.SetConnectionStatus(ctx, core.SetConnectionStatusParams{
			ShopID: created.ID,
			Status: model.ConnectionStatusError,
		})
		require.NoError(t, err)

		shop, err = repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ConnectionStatusError, shop.ConnectionStatus)
		require.NotNil(t, shop.LastConnectedAt)
	})
}

func TestShopRepo_SetConnectionStatus_Errors(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewShopRepo(db, RepoConfig{})

		err := repo.SetConnectionStatus(ctx, core.SetConnectionStatusParams{
			ShopID: "550e8400-e29b-41d4-a716-446655440000",
			Status: model.ConnectionStatusActive,
		})
		assert.ErrorIs(t, err, ErrShopNotFound)

		created, createErr := repo.Create(ctx, testutil.ShopRequest("browser-shop-badstatus"))
		require.NoError(t, createErr)

		err = repo.SetConnectionStatus(ctx, core.SetConnectionStatusParams{
			ShopID: created.ID,
			Status: model.ConnectionStatus("paused"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid connection status")
	})
}

func TestShopRepo_UpsertByExternalBrowserID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewShopRepo(db, RepoConfig{})

		inserted, err := repo.UpsertByExternalBrowserID(ctx, testutil.ShopRequest("browser-shop-upsert"))
		require.NoError(t, err)
		assert.Equal(t, model.ConnectionStatusInactive, inserted.ConnectionStatus)

		// Promote to active so we can verify the refresh preserves it.
		err = repo.SetConnectionStatus(ctx, core.SetConnectionStatusParams{
			ShopID: inserted.ID,
			Status: model.ConnectionStatusActive,
		})
		require.NoError(t, err)

		refresh := testutil.ShopRequest("browser-shop-upsert")
		refresh.DisplayName = "Renamed By Sync"
		refresh.Site = "TH"
		refreshed, err := repo.UpsertByExternalBrowserID(ctx, refresh)
		require.NoError(t, err)

		assert.Equal(t, inserted.ID, refreshed.ID)
		assert.Equal(t, "Renamed By Sync", refreshed.DisplayName)
		assert.Equal(t, "th", refreshed.Site)
		assert.Equal(t, model.ConnectionStatusActive, refreshed.ConnectionStatus)
	})
}
