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

// UpdateTitlePayload renames a product listing.
type UpdateTitlePayload struct {
	ProductID   string `json:"product_id"   validate:"required_without=ProductName"`
	ProductName string `json:"product_name" validate:"required_without=ProductID"`
	NewTitle    string `json:"new_title"    validate:"required"`
}

type updateTitleHandler struct{}

func (h *updateTitleHandler) Kind() model.ActionKind { return model.ActionUpdateTitle }

func (h *updateTitleHandler) ValidatePayload(raw []byte) error {
	var p UpdateTitlePayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.NewTitle) == "" {
		return fmt.Errorf("new_title must not be blank")
	}
	return nil
}

func (h *updateTitleHandler) Execute(ctx context.Context, run *Context) (map[string]any, error) {
	var p UpdateTitlePayload
	if err := decodePayload(run.Payload, &p); err != nil {
		return nil, apperrors.ValidationField("payload", err.Error())
	}
	if strings.TrimSpace(p.NewTitle) == "" {
		return nil, apperrors.ValidationField("payload", "new_title must not be blank")
	}

	oldTitle, err := openProductEditor(ctx, run, p.ProductID, p.ProductName,
		locator.KeyProductName, "title")
	if err != nil {
		return nil, err
	}

	edit := run.Locators.Edit
	d := run.Driver

	run.log(ctx, model.LogLevelInfo, "input", fmt.Sprintf("set title to %q", truncate(p.NewTitle, 50)))
	titleLoc, err := edit.Get(locator.KeyTitleInput)
	if err != nil {
		return nil, apperrors.AutomationStep("title input locator missing", err)
	}
	if err := d.Fill(titleLoc, p.NewTitle); err != nil {
		return nil, err
	}
	d.Sleep(ctx, 500*time.Millisecond)

	if err := saveProductEdit(ctx, run); err != nil {
		return nil, err
	}

	run.log(ctx, model.LogLevelSuccess, "done", "title updated")
	return map[string]any{
		"product_id":   p.ProductID,
		"product_name": p.ProductName,
		"old_title":    oldTitle,
		"new_title":    p.NewTitle,
	}, nil
}

// openProductEditor walks the shared prefix of the product-edit handlers:
// navigate to the product list, search, match the target row, record the
// current value of the audited cell, open the edit form and wait for it to
// render. The audit cell must be read here; once the editor loads the list
// row is stale.
func openProductEditor(ctx context.Context, run *Context, productID, productName, auditKey, auditLabel string) (string, error) {
	products := run.Locators.List
	edit := run.Locators.Edit
	d := run.Driver

	run.log(ctx, model.LogLevelInfo, "navigate", "open product list")
	if err := d.Navigate(products.ListURL); err != nil {
		return "", err
	}
	d.Sleep(ctx, 2*time.Second)

	target := firstNonEmpty(productName, productID)
	run.log(ctx, model.LogLevelInfo, "search", fmt.Sprintf("searching product %q", target))
	if loc, err := products.Get(locator.KeySearchInput); err == nil && d.Exists(loc) {
		if err := d.Fill(loc, target); err != nil {
			return "", err
		}
		d.Sleep(ctx, 500*time.Millisecond)
		if err := d.Submit(loc); err != nil {
			return "", err
		}
		d.Sleep(ctx, 2*time.Second)
	}

	rowLoc, err := products.Get(locator.KeyProductRow)
	if err != nil {
		return "", apperrors.AutomationStep("product row locator missing", err)
	}
	rows, err := d.Rows(rowLoc)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", apperrors.TargetNotFound("no products listed")
	}

	row, err := findTargetRow(ctx, run, rows, productID, productName, "product")
	if err != nil {
		return "", err
	}

	oldValue := ""
	if loc, lerr := products.Get(auditKey); lerr == nil {
		if text, terr := row.CellText(loc); terr == nil {
			oldValue = text
			run.log(ctx, model.LogLevelInfo, "read",
				fmt.Sprintf("current %s: %s", auditLabel, truncate(text, 50)))
		} else {
			run.log(ctx, model.LogLevelWarning, "read",
				fmt.Sprintf("could not read current %s", auditLabel))
		}
	}

	run.log(ctx, model.LogLevelInfo, "edit", "open product editor")
	editLoc, err := products.Get(locator.KeyEditButton)
	if err != nil {
		return "", apperrors.AutomationStep("edit button locator missing", err)
	}
	if err := row.Click(editLoc); err != nil {
		return "", err
	}
	d.Sleep(ctx, 2*time.Second)

	titleLoc, err := edit.Get(locator.KeyTitleInput)
	if err != nil {
		return "", apperrors.AutomationStep("title input locator missing", err)
	}
	if err := d.WaitVisible(titleLoc); err != nil {
		return "", apperrors.AutomationStep("product editor did not load", err)
	}

	return oldValue, nil
}

// saveProductEdit submits the edit form and checks the error toast.
func saveProductEdit(ctx context.Context, run *Context) error {
	edit := run.Locators.Edit
	d := run.Driver

	run.log(ctx, model.LogLevelInfo, "submit", "save product")
	saveLoc, err := edit.Get(locator.KeySaveButton)
	if err != nil {
		return apperrors.AutomationStep("save button locator missing", err)
	}
	if err := d.Click(saveLoc); err != nil {
		return err
	}
	d.Sleep(ctx, 3*time.Second)

	return checkErrorToast(d, edit, "save product")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
