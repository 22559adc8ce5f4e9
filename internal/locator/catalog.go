package locator

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gmvmax/execd/internal/domain/model"
)

// Well-known bundle keys handlers resolve. Keeping them as constants makes a
// catalog/key drift a compile-visible grep instead of a scattered literal.
const (
	KeyAdRow             = "ad_row"
	KeyAdName            = "ad_name"
	KeyAdStatus          = "ad_status"
	KeyAdBudget          = "ad_budget"
	KeySearchInput       = "search_input"
	KeyEditButton        = "edit_button"
	KeyToggleButton      = "toggle_button"
	KeyBudgetModal       = "budget_modal"
	KeyBudgetInput       = "budget_input"
	KeyBudgetDailyOption = "budget_daily_option"
	KeyBudgetTotalOption = "budget_total_option"
	KeySaveButton        = "save_button"
	KeyConfirmModal      = "confirm_modal"
	KeyConfirmButton     = "confirm_button"
	KeySuccessToast      = "success_toast"
	KeyErrorToast        = "error_toast"
	KeyProductRow        = "product_row"
	KeyProductName       = "product_name"
	KeyProductPrice      = "product_price"
	KeyTitleInput        = "title_input"
	KeyPriceInput        = "price_input"
)

// Bundle is one page's worth of locators plus the URL that reaches it.
type Bundle struct {
	ListURL  string            `json:"list_url,omitempty"`
	Locators map[string]string `json:"locators"`
}

// Get resolves a named locator from the bundle.
func (b *Bundle) Get(key string) (Locator, error) {
	raw, ok := b.Locators[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return Locator{}, fmt.Errorf("locator %q not configured", key)
	}
	return Parse(raw), nil
}

// SiteConfig holds every bundle for one storefront site.
type SiteConfig struct {
	BaseURL     string `json:"base_url"`
	Ads         Bundle `json:"ads"`
	Products    Bundle `json:"products"`
	ProductEdit Bundle `json:"product_edit"`
}

// ActionLocators is the slice of a site's catalog one handler needs.
// Ad actions use List only; product-edit actions use List for the row lookup
// and Edit for the edit form.
type ActionLocators struct {
	Site string
	List *Bundle
	Edit *Bundle
}

// Catalog maps sites to their locator configuration.
type Catalog struct {
	version string
	sites   map[string]*SiteConfig
}

// Version reports the loaded catalog version.
func (c *Catalog) Version() string {
	return c.version
}

// Site returns the configuration for a site, or an error if unknown.
func (c *Catalog) Site(site string) (*SiteConfig, error) {
	cfg, ok := c.sites[strings.ToLower(strings.TrimSpace(site))]
	if !ok {
		return nil, fmt.Errorf("no locator catalog for site %q", site)
	}
	return cfg, nil
}

// Bundle resolves the locator slice for (site, action).
func (c *Catalog) Bundle(site string, action model.ActionKind) (*ActionLocators, error) {
	cfg, err := c.Site(site)
	if err != nil {
		return nil, err
	}

	switch action {
	case model.ActionAdjustBudget, model.ActionToggleAd:
		return &ActionLocators{Site: site, List: &cfg.Ads}, nil
	case model.ActionUpdateTitle, model.ActionUpdatePrice:
		return &ActionLocators{Site: site, List: &cfg.Products, Edit: &cfg.ProductEdit}, nil
	default:
		return nil, fmt.Errorf("no locator bundle for action %q", action)
	}
}

// catalogFile is the on-disk override format.
type catalogFile struct {
	Version string                 `json:"version"`
	Sites   map[string]*SiteConfig `json:"sites"`
}

// LoadFile reads a catalog JSON file. Sites present in the file replace the
// built-in configuration for that site; sites it omits keep the defaults.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locator catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse locator catalog %s: %w", path, err)
	}

	cat := Builtin()
	if file.Version != "" {
		cat.version = file.Version
	}
	for site, cfg := range file.Sites {
		if cfg == nil {
			continue
		}
		cat.sites[strings.ToLower(site)] = cfg
	}
	return cat, nil
}

// Load returns the built-in catalog, overridden by the file at path when path
// is non-empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin(), nil
	}
	return LoadFile(path)
}
