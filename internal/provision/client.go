// Package provision talks to the vendor browser-farm client that hosts the
// per-shop storefront browser profiles. The client exposes a single local
// HTTP endpoint taking JSON action requests.
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/gmvmax/execd/internal/errors"
)

// BrowserInfo describes one provisioned browser profile with its live
// debugging endpoint.
type BrowserInfo struct {
	ExternalID    string `json:"browser_id"`
	DebuggingPort int    `json:"debugging_port"`
	CoreVersion   string `json:"core_version"`
}

// Endpoint returns the DevTools control URL for the provisioned browser.
func (b BrowserInfo) Endpoint() string {
	return "http://127.0.0.1:" + strconv.Itoa(b.DebuggingPort)
}

// BrowserListing is one entry of the vendor's profile directory, used for
// bulk-syncing the shop table.
type BrowserListing struct {
	ExternalID   string `json:"browserOauth"`
	Name         string `json:"browserName"`
	SiteID       string `json:"siteId"`
	PlatformName string `json:"platform_name"`
	IsExpired    bool   `json:"isExpired"`
}

// ClientOptions configures the provisioning client.
type ClientOptions struct {
	BaseURL    string
	Company    string
	Username   string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is the provisioning API client. It caches live browser info per
// external id so repeated EnsureBrowser calls for the same shop do not
// re-launch the profile. Safe for concurrent use.
type Client struct {
	baseURL  string
	company  string
	username string
	password string
	timeout  time.Duration
	http     *http.Client
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]BrowserInfo
}

// NewClient constructs a provisioning client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("provisioner base URL is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		baseURL:  opts.BaseURL,
		company:  opts.Company,
		username: opts.Username,
		password: opts.Password,
		timeout:  timeout,
		http:     hc,
		logger:   logger.With("component", "provisioner"),
		active:   make(map[string]BrowserInfo),
	}, nil
}

// apiResponse is the vendor's envelope. statusCode zero means success.
type apiResponse struct {
	StatusCode    int              `json:"statusCode"`
	Err           string           `json:"err"`
	DebuggingPort string           `json:"debuggingPort"`
	CoreVersion   string           `json:"core_version"`
	BrowserList   []BrowserListing `json:"browserList"`
}

func (c *Client) call(ctx context.Context, payload map[string]any) (*apiResponse, error) {
	body := map[string]any{
		"company":   c.company,
		"username":  c.username,
		"password":  c.password,
		"requestId": fmt.Sprintf("req_%d", time.Now().UnixMilli()),
	}
	for k, v := range payload {
		body[k] = v
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal provisioner request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build provisioner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Infrastructure("provisioner unreachable", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			_ = cerr
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Infrastructure(
			fmt.Sprintf("provisioner returned HTTP %d", resp.StatusCode), nil)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.Infrastructure("decode provisioner response", err)
	}
	return &parsed, nil
}

// HealthCheck reports whether the provisioner client process is responding.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.call(ctx, map[string]any{"action": "getRunningInfo"})
	return err == nil
}

// ListBrowsers returns the vendor's browser profile directory.
func (c *Client) ListBrowsers(ctx context.Context) ([]BrowserListing, error) {
	resp, err := c.call(ctx, map[string]any{"action": "getBrowserList"})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 0 {
		return nil, apperrors.Infrastructure(
			fmt.Sprintf("list browsers: %s", nonEmpty(resp.Err, "provisioner error")), nil)
	}
	return resp.BrowserList, nil
}

// EnsureBrowser launches (or reuses) the browser profile for an external id
// and returns its control endpoint.
func (c *Client) EnsureBrowser(ctx context.Context, externalID string) (BrowserInfo, error) {
	c.mu.Lock()
	if info, ok := c.active[externalID]; ok {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "reusing provisioned browser", "external_id", externalID)
		return info, nil
	}
	c.mu.Unlock()

	resp, err := c.call(ctx, map[string]any{
		"action":                 "startBrowser",
		"browserId":              externalID,
		"isHeadless":             true,
		"notPromptForDownload":   1,
	})
	if err != nil {
		return BrowserInfo{}, err
	}
	if resp.StatusCode != 0 {
		return BrowserInfo{}, apperrors.Infrastructure(
			fmt.Sprintf("start browser %s: %s", externalID, nonEmpty(resp.Err, "provisioner error")), nil)
	}

	port, err := strconv.Atoi(resp.DebuggingPort)
	if err != nil || port <= 0 {
		return BrowserInfo{}, apperrors.Infrastructure(
			fmt.Sprintf("start browser %s: bad debugging port %q", externalID, resp.DebuggingPort), nil)
	}

	info := BrowserInfo{
		ExternalID:    externalID,
		DebuggingPort: port,
		CoreVersion:   resp.CoreVersion,
	}

	c.mu.Lock()
	c.active[externalID] = info
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "browser provisioned",
		"external_id", externalID, "port", port, "core_version", info.CoreVersion)
	return info, nil
}

// StopBrowser shuts down a browser profile and forgets its cached info.
func (c *Client) StopBrowser(ctx context.Context, externalID string) error {
	c.mu.Lock()
	delete(c.active, externalID)
	c.mu.Unlock()

	resp, err := c.call(ctx, map[string]any{
		"action":    "stopBrowser",
		"browserId": externalID,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != 0 {
		return apperrors.Infrastructure(
			fmt.Sprintf("stop browser %s: %s", externalID, nonEmpty(resp.Err, "provisioner error")), nil)
	}
	return nil
}

// Forget drops cached browser info without contacting the provisioner. The
// session pool calls this when a transport is found dead so the next
// EnsureBrowser re-launches.
func (c *Client) Forget(externalID string) {
	c.mu.Lock()
	delete(c.active, externalID)
	c.mu.Unlock()
}

// Exit asks the provisioner client process to shut down. Errors are logged
// and swallowed; this runs during shutdown.
func (c *Client) Exit(ctx context.Context) {
	if _, err := c.call(ctx, map[string]any{"action": "exit"}); err != nil {
		c.logger.WarnContext(ctx, "provisioner exit failed", "error", err)
	}
	c.mu.Lock()
	c.active = make(map[string]BrowserInfo)
	c.mu.Unlock()
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
