package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/gmvmax/execd/internal/domain/model"
	apperrors "github.com/gmvmax/execd/internal/errors"
	"github.com/gmvmax/execd/internal/locator"
)

// UpdatePricePayload reprices a product listing.
type UpdatePricePayload struct {
	ProductID   string  `json:"product_id"   validate:"required_without=ProductName"`
	ProductName string  `json:"product_name" validate:"required_without=ProductID"`
	NewPrice    float64 `json:"new_price"    validate:"required,gt=0"`
}

type updatePriceHandler struct{}

func (h *updatePriceHandler) Kind() model.ActionKind { return model.ActionUpdatePrice }

func (h *updatePriceHandler) ValidatePayload(raw []byte) error {
	var p UpdatePricePayload
	return decodePayload(raw, &p)
}

func (h *updatePriceHandler) Execute(ctx context.Context, run *Context) (map[string]any, error) {
	var p UpdatePricePayload
	if err := decodePayload(run.Payload, &p); err != nil {
		return nil, apperrors.ValidationField("payload", err.Error())
	}

	oldPrice, err := openProductEditor(ctx, run, p.ProductID, p.ProductName,
		locator.KeyProductPrice, "price")
	if err != nil {
		return nil, err
	}

	edit := run.Locators.Edit
	d := run.Driver

	newPrice := formatAmount(p.NewPrice)
	run.log(ctx, model.LogLevelInfo, "input", fmt.Sprintf("set price to %s", newPrice))
	priceLoc, err := edit.Get(locator.KeyPriceInput)
	if err != nil {
		return nil, apperrors.AutomationStep("price input locator missing", err)
	}
	if err := d.WaitVisible(priceLoc); err != nil {
		return nil, apperrors.AutomationStep("price input not found", err)
	}
	if err := d.Fill(priceLoc, newPrice); err != nil {
		return nil, err
	}
	d.Sleep(ctx, 500*time.Millisecond)

	if err := saveProductEdit(ctx, run); err != nil {
		return nil, err
	}

	run.log(ctx, model.LogLevelSuccess, "done", fmt.Sprintf("price updated to %s", newPrice))
	return map[string]any{
		"product_id":   p.ProductID,
		"product_name": p.ProductName,
		"old_price":    oldPrice,
		"new_price":    p.NewPrice,
	}, nil
}
