package actions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gmvmax/execd/internal/domain/model"
	apperrors "github.com/gmvmax/execd/internal/errors"
	"github.com/gmvmax/execd/internal/locator"
)

// AdjustBudgetPayload changes an ad campaign's budget.
type AdjustBudgetPayload struct {
	CampaignID   string  `json:"campaign_id"   validate:"required_without=CampaignName"`
	CampaignName string  `json:"campaign_name" validate:"required_without=CampaignID"`
	NewBudget    float64 `json:"new_budget"    validate:"required,gt=0"`
	BudgetType   string  `json:"budget_type"   validate:"omitempty,oneof=daily total"`
}

type adjustBudgetHandler struct{}

func (h *adjustBudgetHandler) Kind() model.ActionKind { return model.ActionAdjustBudget }

func (h *adjustBudgetHandler) ValidatePayload(raw []byte) error {
	var p AdjustBudgetPayload
	return decodePayload(raw, &p)
}

func (h *adjustBudgetHandler) Execute(ctx context.Context, run *Context) (map[string]any, error) {
	var p AdjustBudgetPayload
	if err := decodePayload(run.Payload, &p); err != nil {
		return nil, apperrors.ValidationField("payload", err.Error())
	}
	if p.BudgetType == "" {
		p.BudgetType = "daily"
	}

	ads := run.Locators.List
	d := run.Driver

	run.log(ctx, model.LogLevelInfo, "navigate", "open ads console")
	if err := d.Navigate(ads.ListURL); err != nil {
		return nil, err
	}
	d.Sleep(ctx, 2*time.Second)

	target := firstNonEmpty(p.CampaignName, p.CampaignID)
	run.log(ctx, model.LogLevelInfo, "search", fmt.Sprintf("looking for campaign %q", target))
	if p.CampaignName != "" {
		if loc, err := ads.Get(locator.KeySearchInput); err == nil && d.Exists(loc) {
			if err := d.Fill(loc, p.CampaignName); err != nil {
				return nil, err
			}
			d.Sleep(ctx, 1500*time.Millisecond)
		}
	}

	rowLoc, err := ads.Get(locator.KeyAdRow)
	if err != nil {
		return nil, apperrors.AutomationStep("campaign row locator missing", err)
	}
	rows, err := d.Rows(rowLoc)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.TargetNotFound("no campaigns listed")
	}

	row, err := findTargetRow(ctx, run, rows, p.CampaignID, p.CampaignName, "campaign")
	if err != nil {
		return nil, err
	}

	// Old value is audit material; failing to read it is not fatal.
	oldBudget := ""
	if loc, lerr := ads.Get(locator.KeyAdBudget); lerr == nil {
		if text, terr := row.CellText(loc); terr == nil {
			oldBudget = text
			run.log(ctx, model.LogLevelInfo, "read", fmt.Sprintf("current budget: %s", text))
		} else {
			run.log(ctx, model.LogLevelWarning, "read", "could not read current budget")
		}
	}

	run.log(ctx, model.LogLevelInfo, "edit", "open budget editor")
	editLoc, err := ads.Get(locator.KeyEditButton)
	if err != nil {
		return nil, apperrors.AutomationStep("edit button locator missing", err)
	}
	if err := row.Click(editLoc); err != nil {
		return nil, err
	}
	d.Sleep(ctx, time.Second)

	modalLoc, err := ads.Get(locator.KeyBudgetModal)
	if err != nil {
		return nil, apperrors.AutomationStep("budget modal locator missing", err)
	}
	if err := d.WaitVisible(modalLoc); err != nil {
		return nil, apperrors.AutomationStep("budget editor did not open", err)
	}

	optionKey := locator.KeyBudgetDailyOption
	if p.BudgetType == "total" {
		optionKey = locator.KeyBudgetTotalOption
	}
	if loc, lerr := ads.Get(optionKey); lerr == nil {
		if err := d.Click(loc); err != nil {
			return nil, err
		}
		d.Sleep(ctx, 300*time.Millisecond)
	}

	newBudget := formatAmount(p.NewBudget)
	run.log(ctx, model.LogLevelInfo, "input", fmt.Sprintf("set budget to %s", newBudget))
	inputLoc, err := ads.Get(locator.KeyBudgetInput)
	if err != nil {
		return nil, apperrors.AutomationStep("budget input locator missing", err)
	}
	if err := d.Fill(inputLoc, newBudget); err != nil {
		return nil, err
	}
	d.Sleep(ctx, 500*time.Millisecond)

	run.log(ctx, model.LogLevelInfo, "submit", "save budget")
	saveLoc, err := ads.Get(locator.KeySaveButton)
	if err != nil {
		return nil, apperrors.AutomationStep("save button locator missing", err)
	}
	if err := d.Click(saveLoc); err != nil {
		return nil, err
	}
	d.Sleep(ctx, 2*time.Second)

	// Best-effort postcondition: an error toast means the console rejected
	// the change; its absence is only weak evidence of success.
	if err := checkErrorToast(d, ads, "save budget"); err != nil {
		return nil, err
	}

	run.log(ctx, model.LogLevelSuccess, "done", fmt.Sprintf("budget adjusted to %s", newBudget))
	return map[string]any{
		"campaign_id":   p.CampaignID,
		"campaign_name": p.CampaignName,
		"old_budget":    oldBudget,
		"new_budget":    p.NewBudget,
		"budget_type":   p.BudgetType,
	}, nil
}

// formatAmount renders a budget or price the way a user would type it,
// without a trailing ".00" for whole amounts.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// checkErrorToast fails the step when the console surfaced an error toast
// after a submit. Missing toast locators are treated as "no toast".
func checkErrorToast(d Driver, b *locator.Bundle, what string) error {
	loc, err := b.Get(locator.KeyErrorToast)
	if err != nil {
		return nil
	}
	if !d.Exists(loc) {
		return nil
	}
	text, _ := d.Text(loc)
	return apperrors.AutomationStep(fmt.Sprintf("%s rejected: %s", what, text), nil)
}
