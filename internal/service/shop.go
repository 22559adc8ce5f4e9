package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gmvmax/execd/internal/core"
	"github.com/gmvmax/execd/internal/domain/model"
	apperrors "github.com/gmvmax/execd/internal/errors"
	"github.com/gmvmax/execd/internal/provision"
)

// BrowserLister is the slice of the provisioning client the shop service
// needs for sync and connectivity probes.
type BrowserLister interface {
	ListBrowsers(ctx context.Context) ([]provision.BrowserListing, error)
	EnsureBrowser(ctx context.Context, externalID string) (provision.BrowserInfo, error)
}

// ShopServiceOptions groups dependencies for ShopService.
type ShopServiceOptions struct {
	Repo        core.ShopRepository // Required: shop repository
	Provisioner BrowserLister       // Optional: browser-farm client for sync and probes
	Logger      *slog.Logger        // Optional: structured logger
}

// ShopService provides business logic for the tenant directory.
type ShopService struct {
	repo        core.ShopRepository
	provisioner BrowserLister
	logger      *slog.Logger
}

// NewShopService constructs a new ShopService.
func NewShopService(opts ShopServiceOptions) (*ShopService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ShopRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "shop_service")
	}

	return &ShopService{
		repo:        opts.Repo,
		provisioner: opts.Provisioner,
		logger:      logger,
	}, nil
}

// MustNewShopService constructs a new ShopService and panics on error.
func MustNewShopService(opts ShopServiceOptions) *ShopService {
	svc, err := NewShopService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ShopService: %v", err))
	}
	return svc
}

// Create registers a shop.
func (s *ShopService) Create(ctx context.Context, req *model.CreateShopRequest) (*model.Shop, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	shop, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create shop: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "shop created",
			"id", shop.ID, "display_name", shop.DisplayName, "site", shop.Site)
	}

	return shop, nil
}

// Get retrieves a shop by id.
func (s *ShopService) Get(ctx context.Context, id string) (*model.Shop, error) {
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}
	shop, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get shop %s: %w", id, err)
	}
	return shop, nil
}

// List returns shops ordered by display name.
func (s *ShopService) List(ctx context.Context, limit, offset int) ([]*model.Shop, error) {
	shops, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	return shops, nil
}

// Update applies a partial update to a shop.
func (s *ShopService) Update(ctx context.Context, id string, req *model.UpdateShopRequest) (*model.Shop, error) {
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	shop, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update shop %s: %w", id, err)
	}
	return shop, nil
}

// Delete removes a shop. Shops with task history are protected by the
// database and surface as a conflict.
func (s *ShopService) Delete(ctx context.Context, id string) error {
	if err := requireUUID("id", id); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete shop %s: %w", id, err)
	}
	if !deleted {
		return apperrors.NotFound(fmt.Sprintf("shop %s", id))
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "shop deleted", "id", id)
	}
	return nil
}

// SyncResult summarises one provisioner sync pass.
type SyncResult struct {
	Seen    int `json:"seen"`
	Expired int `json:"expired"`
}

// SyncFromProvisioner pulls the browser-farm listing and upserts a shop per
// non-expired browser, so newly allocated tenants show up without manual
// registration.
func (s *ShopService) SyncFromProvisioner(ctx context.Context) (*SyncResult, error) {
	if s.provisioner == nil {
		return nil, errors.New("provisioner is not configured")
	}

	listings, err := s.provisioner.ListBrowsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list browsers: %w", err)
	}

	result := &SyncResult{}
	for _, listing := range listings {
		if listing.IsExpired {
			result.Expired++
			continue
		}

		_, err := s.repo.UpsertByExternalBrowserID(ctx, &model.CreateShopRequest{
			DisplayName:       listing.Name,
			Platform:          listing.PlatformName,
			Site:              listing.SiteID,
			ExternalBrowserID: listing.ExternalID,
		})
		if err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "shop sync upsert failed",
					"external_browser_id", listing.ExternalID, "error", err)
			}
			continue
		}
		result.Seen++
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "shop sync finished",
			"seen", result.Seen, "expired", result.Expired)
	}

	return result, nil
}

// TestConnection asks the provisioner for the shop's browser and records the
// outcome on the shop row. It does not open a DevTools session; reachability
// of the farm endpoint is what operators are diagnosing here.
func (s *ShopService) TestConnection(ctx context.Context, id string) (*model.Shop, error) {
	if s.provisioner == nil {
		return nil, errors.New("provisioner is not configured")
	}
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}

	shop, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get shop %s: %w", id, err)
	}

	if _, err := s.provisioner.EnsureBrowser(ctx, shop.ExternalBrowserID); err != nil {
		if serr := s.repo.SetConnectionStatus(ctx, core.SetConnectionStatusParams{
			ShopID: id,
			Status: model.ConnectionStatusError,
		}); serr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "record connection failure failed", "shop_id", id, "error", serr)
		}
		return nil, fmt.Errorf("test connection for shop %s: %w", id, err)
	}

	now := time.Now().UTC()
	if err := s.repo.SetConnectionStatus(ctx, core.SetConnectionStatusParams{
		ShopID:      id,
		Status:      model.ConnectionStatusActive,
		ConnectedAt: &now,
	}); err != nil {
		return nil, fmt.Errorf("record connection success for shop %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "shop connection verified", "shop_id", id)
	}

	return s.repo.GetByID(ctx, id)
}
