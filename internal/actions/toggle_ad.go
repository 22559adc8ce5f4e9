package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gmvmax/execd/internal/domain/model"
	apperrors "github.com/gmvmax/execd/internal/errors"
	"github.com/gmvmax/execd/internal/locator"
)

// ToggleAdPayload enables or pauses an ad campaign. Enable is a pointer so
// an explicit false survives validation.
type ToggleAdPayload struct {
	CampaignID   string `json:"campaign_id"   validate:"required_without=CampaignName"`
	CampaignName string `json:"campaign_name" validate:"required_without=CampaignID"`
	Enable       *bool  `json:"enable"        validate:"required"`
}

type toggleAdHandler struct{}

func (h *toggleAdHandler) Kind() model.ActionKind { return model.ActionToggleAd }

func (h *toggleAdHandler) ValidatePayload(raw []byte) error {
	var p ToggleAdPayload
	return decodePayload(raw, &p)
}

// disabledMarkers must be checked before enabledMarkers: "nonaktif" contains
// "aktif" and "inactive" contains "active", so a paused campaign would
// otherwise read as live.
var disabledMarkers = []string{"nonaktif", "inactive", "paused", "dijeda", "tạm dừng"}

// enabledMarkers are the status-cell substrings that mean "currently live",
// across the console locales the catalog covers.
var enabledMarkers = []string{"aktif", "active", "live", "ongoing", "đang chạy"}

func statusMeansEnabled(status string) bool {
	lower := strings.ToLower(status)
	for _, marker := range disabledMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	for _, marker := range enabledMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (h *toggleAdHandler) Execute(ctx context.Context, run *Context) (map[string]any, error) {
	var p ToggleAdPayload
	if err := decodePayload(run.Payload, &p); err != nil {
		return nil, apperrors.ValidationField("payload", err.Error())
	}
	enable := *p.Enable
	verb := "enable"
	if !enable {
		verb = "pause"
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

	oldStatus := ""
	if loc, lerr := ads.Get(locator.KeyAdStatus); lerr == nil {
		if text, terr := row.CellText(loc); terr == nil {
			oldStatus = text
			run.log(ctx, model.LogLevelInfo, "read", fmt.Sprintf("current status: %s", text))

			// Already in the requested state: report success without
			// touching the console.
			if statusMeansEnabled(text) == enable {
				run.log(ctx, model.LogLevelInfo, "skip",
					fmt.Sprintf("campaign already %sd", verb))
				return map[string]any{
					"campaign_id":   p.CampaignID,
					"campaign_name": p.CampaignName,
					"old_status":    oldStatus,
					"new_status":    oldStatus,
					"skipped":       true,
				}, nil
			}
		} else {
			run.log(ctx, model.LogLevelWarning, "read", "could not read current status")
		}
	}

	run.log(ctx, model.LogLevelInfo, "toggle", fmt.Sprintf("%s campaign", verb))
	toggleLoc, err := ads.Get(locator.KeyToggleButton)
	if err != nil {
		return nil, apperrors.AutomationStep("toggle locator missing", err)
	}
	if err := row.Click(toggleLoc); err != nil {
		return nil, err
	}
	d.Sleep(ctx, time.Second)

	// Some consoles interpose a confirmation dialog.
	if modalLoc, lerr := ads.Get(locator.KeyConfirmModal); lerr == nil && d.Exists(modalLoc) {
		run.log(ctx, model.LogLevelInfo, "confirm", "acknowledge confirmation dialog")
		confirmLoc, cerr := ads.Get(locator.KeyConfirmButton)
		if cerr != nil {
			return nil, apperrors.AutomationStep("confirm button locator missing", cerr)
		}
		if err := d.Click(confirmLoc); err != nil {
			return nil, err
		}
		d.Sleep(ctx, time.Second)
	}

	d.Sleep(ctx, 2*time.Second)
	if err := checkErrorToast(d, ads, verb+" campaign"); err != nil {
		return nil, err
	}

	newStatus := ""
	if loc, lerr := ads.Get(locator.KeyAdStatus); lerr == nil {
		d.Sleep(ctx, time.Second)
		newStatus, _ = row.CellText(loc)
	}

	run.log(ctx, model.LogLevelSuccess, "done", fmt.Sprintf("campaign %sd", verb))
	return map[string]any{
		"campaign_id":   p.CampaignID,
		"campaign_name": p.CampaignName,
		"old_status":    oldStatus,
		"new_status":    newStatus,
		"enabled":       enable,
	}, nil
}
