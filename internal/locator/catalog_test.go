package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmvmax/execd/internal/domain/model"
)

func TestBuiltin_CoversEverySiteAndAction(t *testing.T) {
	cat := Builtin()
	require.NotEmpty(t, cat.Version())

	actions := []model.ActionKind{
		model.ActionAdjustBudget,
		model.ActionToggleAd,
		model.ActionUpdateTitle,
		model.ActionUpdatePrice,
	}
	for site := range sellerBaseURLs {
		for _, action := range actions {
			bundle, err := cat.Bundle(site, action)
			require.NoError(t, err, "site %s action %s", site, action)
			require.NotNil(t, bundle.List, "site %s action %s", site, action)
			assert.NotEmpty(t, bundle.List.Locators)
		}
	}
}

func TestBundle_ProductActionsCarryEditBundle(t *testing.T) {
	cat := Builtin()

	ads, err := cat.Bundle("id", model.ActionToggleAd)
	require.NoError(t, err)
	assert.Nil(t, ads.Edit)
	assert.Contains(t, ads.List.ListURL, "seller.shopee.co.id")

	products, err := cat.Bundle("id", model.ActionUpdatePrice)
	require.NoError(t, err)
	require.NotNil(t, products.Edit)
	_, err = products.Edit.Get(KeyPriceInput)
	require.NoError(t, err)
}

func TestBundle_UnknownSite(t *testing.T) {
	_, err := Builtin().Bundle("br", model.ActionToggleAd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no locator catalog for site "br"`)
}

func TestSite_NormalizesCase(t *testing.T) {
	cfg, err := Builtin().Site("  ID ")
	require.NoError(t, err)
	assert.Contains(t, cfg.BaseURL, "co.id")
}

func TestBundleGet_MissingKey(t *testing.T) {
	bundle := &Bundle{Locators: map[string]string{KeyAdRow: "css:tr"}}

	_, err := bundle.Get("no_such_key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `locator "no_such_key" not configured`)

	loc, err := bundle.Get(KeyAdRow)
	require.NoError(t, err)
	assert.Equal(t, "tr", loc.CSS())
}

func TestLoad_EmptyPathReturnsBuiltin(t *testing.T) {
	cat, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, builtinVersion, cat.Version())
}

func TestLoadFile_OverridesOnlyListedSites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	payload := `{
		"version": "ops-2026.08.20",
		"sites": {
			"ID": {
				"base_url": "https://seller.shopee.co.id",
				"ads": {
					"list_url": "https://seller.shopee.co.id/portal/marketing/pas/new",
					"locators": {"ad_row": "css:.new-ad-row"}
				}
			}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ops-2026.08.20", cat.Version())

	// The overridden site uses the file's selectors.
	overridden, err := cat.Bundle("id", model.ActionToggleAd)
	require.NoError(t, err)
	loc, err := overridden.List.Get(KeyAdRow)
	require.NoError(t, err)
	assert.Equal(t, ".new-ad-row", loc.CSS())

	// Untouched sites keep the builtin configuration.
	kept, err := cat.Bundle("my", model.ActionToggleAd)
	require.NoError(t, err)
	assert.Contains(t, kept.List.ListURL, "shopee.com.my")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	css := Parse("css:.ad-name")
	assert.False(t, css.IsXPath())
	assert.Equal(t, ".ad-name", css.CSS())

	xpath := Parse(`xpath://button[text()="Simpan"]`)
	assert.True(t, xpath.IsXPath())

	bare := Parse(".implicit-css")
	assert.False(t, bare.IsXPath())
	assert.Equal(t, ".implicit-css", bare.CSS())
}
