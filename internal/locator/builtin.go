package locator

// builtinVersion identifies the selector set compiled into the binary.
// File-based catalogs carry their own version string.
const builtinVersion = "builtin-2026.08"

// sellerBaseURLs maps Shopee seller-console sites to their base URLs.
var sellerBaseURLs = map[string]string{
	"id": "https://seller.shopee.co.id",
	"my": "https://seller.shopee.com.my",
	"th": "https://seller.shopee.co.th",
	"vn": "https://banhang.shopee.vn",
	"ph": "https://seller.shopee.ph",
	"sg": "https://seller.shopee.sg",
}

// Builtin returns the compiled-in catalog. The Indonesian site carries the
// locale-specific button texts; the remaining sites share the structural
// selectors with their own base URLs until they diverge.
func Builtin() *Catalog {
	sites := make(map[string]*SiteConfig, len(sellerBaseURLs))
	for site, baseURL := range sellerBaseURLs {
		sites[site] = siteDefaults(baseURL)
	}
	return &Catalog{version: builtinVersion, sites: sites}
}

func siteDefaults(baseURL string) *SiteConfig {
	return &SiteConfig{
		BaseURL: baseURL,
		Ads: Bundle{
			ListURL: baseURL + "/portal/marketing/pas/assembly",
			Locators: map[string]string{
				KeyAdRow:             `css:tr[data-testid="ad-row"], .ads-table tbody tr`,
				KeyAdName:            `css:.ad-name, td:nth-child(1)`,
				KeyAdStatus:          `css:.ad-status, td:nth-child(2)`,
				KeyAdBudget:          `css:.ad-budget, td:nth-child(5)`,
				KeySearchInput:       `css:input[placeholder*="Cari"], input[placeholder*="Search"]`,
				KeyEditButton:        `css:button[data-testid="edit-budget"], .edit-budget`,
				KeyToggleButton:      `css:.toggle-switch, button[data-testid="toggle-ad"]`,
				KeyBudgetModal:       `css:.budget-modal, [data-testid="budget-dialog"]`,
				KeyBudgetInput:       `css:input[name="budget"], input[type="number"]`,
				KeyBudgetDailyOption: `css:label[data-budget-type="daily"]`,
				KeyBudgetTotalOption: `css:label[data-budget-type="total"]`,
				KeySaveButton:        `css:button[data-testid="save-budget"], .budget-modal button[type="submit"]`,
				KeyConfirmModal:      `css:.confirm-modal, [role="dialog"]`,
				KeyConfirmButton:     `css:.confirm-modal button[data-testid="confirm"], [role="dialog"] button.primary`,
				KeySuccessToast:      `css:.toast-success, [role="alert"].success`,
				KeyErrorToast:        `css:.toast-error, [role="alert"].error`,
			},
		},
		Products: Bundle{
			ListURL: baseURL + "/portal/product/list/all",
			Locators: map[string]string{
				KeySearchInput:  `css:input[placeholder*="Cari"], input[placeholder*="Search"]`,
				KeyProductRow:   `css:tr[data-product-id], .product-item`,
				KeyProductName:  `css:.product-name, .product-title`,
				KeyProductPrice: `css:.product-price`,
				KeyEditButton:   `css:button[data-testid="edit-product"], .product-edit-btn`,
			},
		},
		ProductEdit: Bundle{
			Locators: map[string]string{
				KeyTitleInput:   `css:input[name="name"], textarea[name="name"]`,
				KeyPriceInput:   `css:input[name="price"]`,
				KeySaveButton:   `css:button[data-testid="save-product"], button[type="submit"].save`,
				KeySuccessToast: `css:.toast-success, [role="alert"].success`,
				KeyErrorToast:   `css:.toast-error, [role="alert"].error`,
			},
		},
	}
}
