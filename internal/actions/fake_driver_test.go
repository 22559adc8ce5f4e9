package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/gmvmax/execd/internal/domain/model"
	"github.com/gmvmax/execd/internal/locator"
)

// fakeRow scripts one list row. Cells are keyed by locator value.
type fakeRow struct {
	text   string
	cells  map[string]string
	clicks []string
}

func (r *fakeRow) Text() (string, error) { return r.text, nil }

func (r *fakeRow) CellText(loc locator.Locator) (string, error) {
	v, ok := r.cells[loc.Value]
	if !ok {
		return "", fmt.Errorf("no cell %s", loc.Value)
	}
	return v, nil
}

func (r *fakeRow) Click(loc locator.Locator) error {
	r.clicks = append(r.clicks, loc.Value)
	return nil
}

// fakeDriver scripts page-level primitives, keyed by locator value. The
// defaults are permissive: navigation and clicks succeed, WaitVisible
// succeeds, Exists is false unless scripted.
type fakeDriver struct {
	rows      []Row
	rowsErr   error
	exists    map[string]bool
	texts     map[string]string
	waitErr   map[string]error
	navigated []string
	filled    map[string]string
	clicked   []string
	submitted []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		exists:  map[string]bool{},
		texts:   map[string]string{},
		waitErr: map[string]error{},
		filled:  map[string]string{},
	}
}

func (d *fakeDriver) Navigate(url string) error {
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *fakeDriver) WaitVisible(loc locator.Locator) error {
	return d.waitErr[loc.Value]
}

func (d *fakeDriver) Exists(loc locator.Locator) bool {
	return d.exists[loc.Value]
}

func (d *fakeDriver) Click(loc locator.Locator) error {
	d.clicked = append(d.clicked, loc.Value)
	return nil
}

func (d *fakeDriver) Fill(loc locator.Locator, text string) error {
	d.filled[loc.Value] = text
	return nil
}

func (d *fakeDriver) Submit(loc locator.Locator) error {
	d.submitted = append(d.submitted, loc.Value)
	return nil
}

func (d *fakeDriver) Text(loc locator.Locator) (string, error) {
	return d.texts[loc.Value], nil
}

func (d *fakeDriver) Rows(loc locator.Locator) ([]Row, error) {
	return d.rows, d.rowsErr
}

func (d *fakeDriver) Sleep(ctx context.Context, dur time.Duration) {}

// logSink collects step-level log lines for assertions.
type logSink struct {
	entries []string
}

func (s *logSink) fn() LogFunc {
	return func(_ context.Context, level model.LogLevel, stage, message string) {
		s.entries = append(s.entries, fmt.Sprintf("%s/%s: %s", level, stage, message))
	}
}

// adsLocators builds a flat test bundle where every locator value equals its
// catalog key, so fake lookups stay readable.
func adsLocators() *locator.ActionLocators {
	keys := []string{
		locator.KeyAdRow, locator.KeyAdName, locator.KeyAdStatus, locator.KeyAdBudget,
		locator.KeySearchInput, locator.KeyEditButton, locator.KeyToggleButton,
		locator.KeyBudgetModal, locator.KeyBudgetInput, locator.KeyBudgetDailyOption,
		locator.KeyBudgetTotalOption, locator.KeySaveButton, locator.KeyConfirmModal,
		locator.KeyConfirmButton, locator.KeySuccessToast, locator.KeyErrorToast,
	}
	locs := make(map[string]string, len(keys))
	for _, k := range keys {
		locs[k] = k
	}
	return &locator.ActionLocators{
		Site: "id",
		List: &locator.Bundle{ListURL: "https://seller.example/ads", Locators: locs},
	}
}

func productLocators() *locator.ActionLocators {
	listKeys := []string{
		locator.KeyProductRow, locator.KeyProductName, locator.KeyProductPrice,
		locator.KeySearchInput, locator.KeyEditButton,
	}
	editKeys := []string{
		locator.KeyTitleInput, locator.KeyPriceInput, locator.KeySaveButton,
		locator.KeySuccessToast, locator.KeyErrorToast,
	}
	list := make(map[string]string, len(listKeys))
	for _, k := range listKeys {
		list[k] = k
	}
	edit := make(map[string]string, len(editKeys))
	for _, k := range editKeys {
		edit[k] = k
	}
	return &locator.ActionLocators{
		Site: "id",
		List: &locator.Bundle{ListURL: "https://seller.example/products", Locators: list},
		Edit: &locator.Bundle{Locators: edit},
	}
}
