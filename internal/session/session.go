// Package session manages live remote-browser sessions, one per shop.
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	apperrors "github.com/gmvmax/execd/internal/errors"
	"github.com/gmvmax/execd/internal/locator"
)

// Timeouts groups the per-primitive deadlines. There is deliberately no
// whole-task deadline here; primitives time out individually and the stale
// task reaper is the backstop.
type Timeouts struct {
	Navigate time.Duration
	Element  time.Duration
	Settle   time.Duration
}

// Sanitize applies defaults for unset values.
func (t *Timeouts) Sanitize() {
	if t.Navigate <= 0 {
		t.Navigate = 30 * time.Second
	}
	if t.Element <= 0 {
		t.Element = 5 * time.Second
	}
	if t.Settle <= 0 {
		t.Settle = 2 * time.Second
	}
}

// Session is a live handle to one shop's remote browser. It wraps the
// DevTools transport with the small set of primitives handlers are allowed
// to use. Any transport fault flips the liveness flag so the pool discards
// the session on its next acquire.
type Session struct {
	ShopID      string
	ExternalID  string
	CoreVersion string

	browser  *rod.Browser
	page     *rod.Page
	timeouts Timeouts
	alive    atomic.Bool
}

// Connect attaches to a browser's DevTools endpoint and opens a working page.
type ConnectParams struct {
	ShopID      string
	ExternalID  string
	CoreVersion string
	ControlURL  string
	Timeouts    Timeouts
}

// Connect dials the control endpoint and prepares a page for automation.
func Connect(params ConnectParams) (*Session, error) {
	params.Timeouts.Sanitize()

	browser := rod.New().ControlURL(params.ControlURL)
	if err := browser.Connect(); err != nil {
		return nil, apperrors.Infrastructure(
			fmt.Sprintf("connect browser for shop %s", params.ShopID), err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		return nil, apperrors.Infrastructure(
			fmt.Sprintf("open page for shop %s", params.ShopID), err)
	}

	s := &Session{
		ShopID:      params.ShopID,
		ExternalID:  params.ExternalID,
		CoreVersion: params.CoreVersion,
		browser:     browser,
		page:        page,
		timeouts:    params.Timeouts,
	}
	s.alive.Store(true)
	return s, nil
}

// Alive reports whether the session's transport is believed healthy.
func (s *Session) Alive() bool {
	return s.alive.Load()
}

// markDead flips liveness after a transport fault. The session is not closed
// here; the pool discards and re-provisions on the next acquire.
func (s *Session) markDead() {
	s.alive.Store(false)
}

// HealthCheck probes the transport with a cheap page-info call.
func (s *Session) HealthCheck() bool {
	if !s.Alive() {
		return false
	}
	if _, err := s.page.Info(); err != nil {
		s.markDead()
		return false
	}
	return true
}

// Navigate drives the page to a URL and waits for the load event.
func (s *Session) Navigate(url string) error {
	page := s.page.Timeout(s.timeouts.Navigate)
	if err := page.Navigate(url); err != nil {
		s.markDead()
		return apperrors.Infrastructure(fmt.Sprintf("navigate to %s", url), err)
	}
	if err := page.WaitLoad(); err != nil {
		// A slow load is an automation problem, not a dead transport.
		return apperrors.AutomationStep(fmt.Sprintf("page load timed out for %s", url), err)
	}
	return nil
}

// resolve turns a Locator into an element lookup on the scoped page.
func resolve(page *rod.Page, loc locator.Locator) (*rod.Element, error) {
	if loc.IsXPath() {
		return page.ElementX(loc.Value)
	}
	return page.Element(loc.CSS())
}

// WaitVisible waits for the element to exist and become visible.
func (s *Session) WaitVisible(loc locator.Locator) (*rod.Element, error) {
	page := s.page.Timeout(s.timeouts.Element)
	el, err := resolve(page, loc)
	if err != nil {
		return nil, apperrors.AutomationStep(fmt.Sprintf("element %s not found", loc), err)
	}
	if err := el.WaitVisible(); err != nil {
		return nil, apperrors.AutomationStep(fmt.Sprintf("element %s not visible", loc), err)
	}
	return el, nil
}

// Exists reports whether an element is currently present, without waiting
// beyond a short settle window.
func (s *Session) Exists(loc locator.Locator) bool {
	page := s.page.Timeout(s.timeouts.Settle)
	_, err := resolve(page, loc)
	return err == nil
}

// Elements returns every element matching the locator. An empty result is
// not an error.
func (s *Session) Elements(loc locator.Locator) (rod.Elements, error) {
	page := s.page.Timeout(s.timeouts.Element)
	var els rod.Elements
	var err error
	if loc.IsXPath() {
		els, err = page.ElementsX(loc.Value)
	} else {
		els, err = page.Elements(loc.CSS())
	}
	if err != nil {
		s.markDead()
		return nil, apperrors.Infrastructure(fmt.Sprintf("query elements %s", loc), err)
	}
	return els, nil
}

// ElementIn scopes an element lookup to a parent element (e.g. a table row).
func (s *Session) ElementIn(parent *rod.Element, loc locator.Locator) (*rod.Element, error) {
	el, err := parent.Timeout(s.timeouts.Settle).Element(loc.CSS())
	if err != nil {
		return nil, apperrors.AutomationStep(fmt.Sprintf("element %s not found in row", loc), err)
	}
	return el, nil
}

// Click waits for the element and performs a single left click.
func (s *Session) Click(loc locator.Locator) error {
	el, err := s.WaitVisible(loc)
	if err != nil {
		return err
	}
	return s.ClickElement(el)
}

// ClickElement performs a single left click on an already-resolved element.
func (s *Session) ClickElement(el *rod.Element) error {
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return apperrors.AutomationStep("click failed", err)
	}
	return nil
}

// Fill clears an input and types the given text, firing input events the way
// a user would.
func (s *Session) Fill(el *rod.Element, text string) error {
	if err := el.SelectAllText(); err != nil {
		return apperrors.AutomationStep("select text failed", err)
	}
	if err := el.Input(text); err != nil {
		return apperrors.AutomationStep("type text failed", err)
	}
	return nil
}

// Text reads the visible text of the first element matching the locator.
func (s *Session) Text(loc locator.Locator) (string, error) {
	el, err := s.WaitVisible(loc)
	if err != nil {
		return "", err
	}
	return s.ElementText(el)
}

// ElementText reads the visible text of an already-resolved element.
func (s *Session) ElementText(el *rod.Element) (string, error) {
	text, err := el.Text()
	if err != nil {
		return "", apperrors.AutomationStep("read text failed", err)
	}
	return text, nil
}

// Eval runs a JavaScript function in the page.
func (s *Session) Eval(js string, args ...any) error {
	if _, err := s.page.Timeout(s.timeouts.Element).Eval(js, args...); err != nil {
		return apperrors.AutomationStep("script evaluation failed", err)
	}
	return nil
}

// Sleep pauses between UI steps, honoring context cancellation.
func (s *Session) Sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Screenshot captures a full-page PNG.
func (s *Session) Screenshot() ([]byte, error) {
	img, err := s.page.Timeout(s.timeouts.Navigate).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		s.markDead()
		return nil, apperrors.Infrastructure("capture screenshot", err)
	}
	return img, nil
}

// Close tears down the page and browser connection.
func (s *Session) Close() error {
	s.markDead()
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}
