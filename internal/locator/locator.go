// Package locator holds the per-site, per-action element locator catalog.
// Selectors live in configuration, versioned independently of handler code,
// so storefront UI drift is absorbed here instead of in the handlers.
package locator

import (
	"fmt"
	"strings"
)

// Strategy is how a locator string is resolved against the page.
type Strategy string

const (
	// StrategyCSS resolves via a CSS selector.
	StrategyCSS Strategy = "css"
	// StrategyXPath resolves via an XPath expression.
	StrategyXPath Strategy = "xpath"
	// StrategyID resolves via an element id attribute.
	StrategyID Strategy = "id"
	// StrategyName resolves via an element name attribute.
	StrategyName Strategy = "name"
)

// Locator is one parsed element locator.
type Locator struct {
	Strategy Strategy
	Value    string
}

// Parse splits a raw catalog string of the form "<strategy>:<value>" into a
// Locator. Strings without a recognized prefix are treated as CSS.
func Parse(raw string) Locator {
	raw = strings.TrimSpace(raw)
	for _, s := range []Strategy{StrategyCSS, StrategyXPath, StrategyID, StrategyName} {
		prefix := string(s) + ":"
		if strings.HasPrefix(raw, prefix) {
			return Locator{Strategy: s, Value: strings.TrimSpace(raw[len(prefix):])}
		}
	}
	return Locator{Strategy: StrategyCSS, Value: raw}
}

// IsXPath reports whether the locator must be resolved as XPath.
func (l Locator) IsXPath() bool {
	return l.Strategy == StrategyXPath
}

// CSS returns the locator as a CSS selector. ID and name strategies are
// rewritten to attribute selectors; XPath locators have no CSS form.
func (l Locator) CSS() string {
	switch l.Strategy {
	case StrategyCSS:
		return l.Value
	case StrategyID:
		return "#" + l.Value
	case StrategyName:
		return fmt.Sprintf(`[name=%q]`, l.Value)
	default:
		return ""
	}
}

// String returns the canonical "<strategy>:<value>" form.
func (l Locator) String() string {
	return string(l.Strategy) + ":" + l.Value
}
