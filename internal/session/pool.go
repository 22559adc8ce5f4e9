package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gmvmax/execd/internal/core"
	"github.com/gmvmax/execd/internal/domain/model"
	"github.com/gmvmax/execd/internal/provision"
)

// Provisioner is the slice of the provisioning client the pool needs.
type Provisioner interface {
	EnsureBrowser(ctx context.Context, externalID string) (provision.BrowserInfo, error)
	Forget(externalID string)
}

// connectFunc allows tests to substitute the DevTools dial.
type connectFunc func(params ConnectParams) (*Session, error)

// PoolOptions groups dependencies for the session pool.
type PoolOptions struct {
	Provisioner Provisioner          // Required: browser-farm client
	Shops       core.ShopRepository  // Optional: stamps last_connected_at on connect
	Timeouts    Timeouts             // Per-primitive deadlines
	Logger      *slog.Logger         // Optional: structured logger
	Connect     connectFunc          // Optional: test seam for the DevTools dial
}

// Pool owns every live session, keyed by shop. Provisioning is slow and
// rate-limited, so sessions are reused per tenant; there is at most one live
// session per shop and no pooling across tenants, because automated actions
// mutate live console state and must not interleave within a tenant.
type Pool struct {
	provisioner Provisioner
	shops       core.ShopRepository
	timeouts    Timeouts
	logger      *slog.Logger
	connect     connectFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewPool constructs a session pool.
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.Provisioner == nil {
		return nil, errors.New("provisioner is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Timeouts.Sanitize()

	connect := opts.Connect
	if connect == nil {
		connect = Connect
	}

	return &Pool{
		provisioner: opts.Provisioner,
		shops:       opts.Shops,
		timeouts:    opts.Timeouts,
		logger:      logger.With("component", "session_pool"),
		connect:     connect,
		sessions:    make(map[string]*Session),
	}, nil
}

// Acquire returns a healthy session for the shop, reusing a cached one when
// its transport still responds and provisioning a fresh one otherwise.
func (p *Pool) Acquire(ctx context.Context, shop *model.Shop) (*Session, error) {
	if shop == nil {
		return nil, errors.New("shop is required")
	}

	p.mu.Lock()
	cached, ok := p.sessions[shop.ID]
	p.mu.Unlock()

	if ok {
		if cached.HealthCheck() {
			return cached, nil
		}
		p.logger.WarnContext(ctx, "cached session dead, re-provisioning",
			"shop_id", shop.ID, "external_id", shop.ExternalBrowserID)
		p.discard(shop.ID, cached)
	}

	info, err := p.provisioner.EnsureBrowser(ctx, shop.ExternalBrowserID)
	if err != nil {
		return nil, err
	}

	sess, err := p.connect(ConnectParams{
		ShopID:      shop.ID,
		ExternalID:  shop.ExternalBrowserID,
		CoreVersion: info.CoreVersion,
		ControlURL:  info.Endpoint(),
		Timeouts:    p.timeouts,
	})
	if err != nil {
		// A provisioned port we cannot dial is stale vendor state.
		p.provisioner.Forget(shop.ExternalBrowserID)
		return nil, err
	}

	p.mu.Lock()
	p.sessions[shop.ID] = sess
	p.mu.Unlock()

	p.stampConnected(ctx, shop.ID)
	p.logger.InfoContext(ctx, "session established",
		"shop_id", shop.ID, "external_id", shop.ExternalBrowserID, "core_version", info.CoreVersion)
	return sess, nil
}

// Invalidate drops a shop's cached session, closing it best-effort.
func (p *Pool) Invalidate(shopID string) {
	p.mu.Lock()
	sess, ok := p.sessions[shopID]
	delete(p.sessions, shopID)
	p.mu.Unlock()

	if ok {
		p.provisioner.Forget(sess.ExternalID)
		if err := sess.Close(); err != nil {
			p.logger.Warn("close invalidated session", "shop_id", shopID, "error", err)
		}
	}
}

// CloseAll closes every cached session. Called during graceful shutdown.
// Closes run concurrently; a wedged DevTools socket on one tenant must not
// stall teardown of the rest.
func (p *Pool) CloseAll(ctx context.Context) {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*Session)
	p.mu.Unlock()

	var g errgroup.Group
	for shopID, sess := range sessions {
		g.Go(func() error {
			if err := sess.Close(); err != nil {
				p.logger.WarnContext(ctx, "close session", "shop_id", shopID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(sessions) > 0 {
		p.logger.InfoContext(ctx, "all sessions closed", "count", len(sessions))
	}
}

// Size reports the number of live cached sessions.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *Pool) discard(shopID string, sess *Session) {
	p.mu.Lock()
	if p.sessions[shopID] == sess {
		delete(p.sessions, shopID)
	}
	p.mu.Unlock()

	p.provisioner.Forget(sess.ExternalID)
	_ = sess.Close()
}

func (p *Pool) stampConnected(ctx context.Context, shopID string) {
	if p.shops == nil {
		return
	}
	now := time.Now().UTC()
	if err := p.shops.SetConnectionStatus(ctx, core.SetConnectionStatusParams{
		ShopID:      shopID,
		Status:      model.ConnectionStatusActive,
		ConnectedAt: &now,
	}); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.WarnContext(ctx, "stamp last_connected_at failed",
			"shop_id", shopID, "error", err)
	}
}
