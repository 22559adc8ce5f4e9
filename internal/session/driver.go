package session

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"github.com/gmvmax/execd/internal/actions"
	apperrors "github.com/gmvmax/execd/internal/errors"
	"github.com/gmvmax/execd/internal/locator"
)

// Driver adapts a Session to the primitive surface action handlers drive.
type Driver struct {
	s *Session
}

// NewDriver wraps a live session.
func NewDriver(s *Session) *Driver {
	return &Driver{s: s}
}

var _ actions.Driver = (*Driver)(nil)

func (d *Driver) Navigate(url string) error {
	return d.s.Navigate(url)
}

func (d *Driver) WaitVisible(loc locator.Locator) error {
	_, err := d.s.WaitVisible(loc)
	return err
}

func (d *Driver) Exists(loc locator.Locator) bool {
	return d.s.Exists(loc)
}

func (d *Driver) Click(loc locator.Locator) error {
	return d.s.Click(loc)
}

func (d *Driver) Fill(loc locator.Locator, text string) error {
	el, err := d.s.WaitVisible(loc)
	if err != nil {
		return err
	}
	return d.s.Fill(el, text)
}

func (d *Driver) Submit(loc locator.Locator) error {
	el, err := d.s.WaitVisible(loc)
	if err != nil {
		return err
	}
	if err := el.Type(input.Enter); err != nil {
		return apperrors.AutomationStep("submit failed", err)
	}
	return nil
}

func (d *Driver) Text(loc locator.Locator) (string, error) {
	return d.s.Text(loc)
}

func (d *Driver) Rows(loc locator.Locator) ([]actions.Row, error) {
	els, err := d.s.Elements(loc)
	if err != nil {
		return nil, err
	}
	rows := make([]actions.Row, 0, len(els))
	for _, el := range els {
		rows = append(rows, &rowHandle{s: d.s, el: el})
	}
	return rows, nil
}

func (d *Driver) Sleep(ctx context.Context, dur time.Duration) {
	d.s.Sleep(ctx, dur)
}

// rowHandle scopes element operations to one list row.
type rowHandle struct {
	s  *Session
	el *rod.Element
}

func (r *rowHandle) Text() (string, error) {
	return r.s.ElementText(r.el)
}

func (r *rowHandle) CellText(loc locator.Locator) (string, error) {
	el, err := r.s.ElementIn(r.el, loc)
	if err != nil {
		return "", err
	}
	return r.s.ElementText(el)
}

func (r *rowHandle) Click(loc locator.Locator) error {
	el, err := r.s.ElementIn(r.el, loc)
	if err != nil {
		return err
	}
	return r.s.ClickElement(el)
}
