package actions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gmvmax/execd/internal/errors"
	"github.com/gmvmax/execd/internal/locator"
)

func TestAdjustBudget_HappyPath(t *testing.T) {
	row := &fakeRow{
		text:  "1001 Summer Sale Rp30.000 Aktif",
		cells: map[string]string{locator.KeyAdBudget: "30000"},
	}
	d := newFakeDriver()
	d.rows = []Row{row}
	d.exists[locator.KeySearchInput] = true

	sink := &logSink{}
	run := &Context{
		TaskNo:   "TASK-1-0001",
		Site:     "id",
		Payload:  json.RawMessage(`{"campaign_name":"Summer Sale","new_budget":50000,"budget_type":"daily"}`),
		Locators: adsLocators(),
		Driver:   d,
		Log:      sink.fn(),
	}

	data, err := (&adjustBudgetHandler{}).Execute(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, "30000", data["old_budget"])
	assert.Equal(t, float64(50000), data["new_budget"])
	assert.Equal(t, "daily", data["budget_type"])

	assert.Equal(t, []string{"https://seller.example/ads"}, d.navigated)
	assert.Equal(t, "Summer Sale", d.filled[locator.KeySearchInput])
	assert.Equal(t, "50000", d.filled[locator.KeyBudgetInput])
	assert.Equal(t, []string{locator.KeyEditButton}, row.clicks)
	assert.Contains(t, d.clicked, locator.KeyBudgetDailyOption)
	assert.Contains(t, d.clicked, locator.KeySaveButton)
}

func TestAdjustBudget_TotalBudgetOption(t *testing.T) {
	row := &fakeRow{text: "1001 Summer Sale", cells: map[string]string{}}
	d := newFakeDriver()
	d.rows = []Row{row}

	run := &Context{
		Payload:  json.RawMessage(`{"campaign_id":"1001","new_budget":200,"budget_type":"total"}`),
		Locators: adsLocators(),
		Driver:   d,
	}

	_, err := (&adjustBudgetHandler{}).Execute(context.Background(), run)
	require.NoError(t, err)
	assert.Contains(t, d.clicked, locator.KeyBudgetTotalOption)
	assert.NotContains(t, d.clicked, locator.KeyBudgetDailyOption)
}

func TestAdjustBudget_NoCampaignsListed(t *testing.T) {
	d := newFakeDriver()

	run := &Context{
		Payload:  json.RawMessage(`{"campaign_id":"1001","new_budget":100}`),
		Locators: adsLocators(),
		Driver:   d,
	}

	_, err := (&adjustBudgetHandler{}).Execute(context.Background(), run)
	require.Error(t, err)
	assert.Equal(t, apperrors.FailureTargetNotFound, apperrors.KindOf(err))
}

func TestAdjustBudget_ErrorToastFailsTask(t *testing.T) {
	row := &fakeRow{text: "1001 Summer Sale", cells: map[string]string{}}
	d := newFakeDriver()
	d.rows = []Row{row}
	d.exists[locator.KeyErrorToast] = true
	d.texts[locator.KeyErrorToast] = "Budget below minimum"

	run := &Context{
		Payload:  json.RawMessage(`{"campaign_id":"1001","new_budget":100}`),
		Locators: adsLocators(),
		Driver:   d,
	}

	_, err := (&adjustBudgetHandler{}).Execute(context.Background(), run)
	require.Error(t, err)
	assert.Equal(t, apperrors.FailureAutomationStep, apperrors.KindOf(err))
	assert.ErrorContains(t, err, "Budget below minimum")
}

func TestAdjustBudget_InvalidPayload(t *testing.T) {
	run := &Context{
		Payload:  json.RawMessage(`{"new_budget":100}`),
		Locators: adsLocators(),
		Driver:   newFakeDriver(),
	}

	_, err := (&adjustBudgetHandler{}).Execute(context.Background(), run)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "50000", formatAmount(50000))
	assert.Equal(t, "19.9", formatAmount(19.9))
}
