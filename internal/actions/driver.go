package actions

import (
	"context"
	"time"

	"github.com/gmvmax/execd/internal/locator"
)

// Row is one matched list row (a campaign or a product) that a handler can
// inspect and act on without re-querying the page.
type Row interface {
	// Text returns the row's full visible text, used for target matching.
	Text() (string, error)
	// CellText reads a cell scoped to this row.
	CellText(loc locator.Locator) (string, error)
	// Click clicks an element scoped to this row.
	Click(loc locator.Locator) error
}

// Driver is the bounded set of browser primitives handlers are allowed to
// use. Handlers never touch the transport directly; everything goes through
// locators resolved from the injected catalog, so storefront UI drift is
// absorbed by configuration rather than code changes.
type Driver interface {
	Navigate(url string) error
	WaitVisible(loc locator.Locator) error
	Exists(loc locator.Locator) bool
	Click(loc locator.Locator) error
	// Fill clears the input and types text, firing input events as a user
	// would.
	Fill(loc locator.Locator, text string) error
	// Submit presses Enter in the element, typically to fire a search.
	Submit(loc locator.Locator) error
	Text(loc locator.Locator) (string, error)
	Rows(loc locator.Locator) ([]Row, error)
	Sleep(ctx context.Context, d time.Duration)
}
