// Package pages models the application's pages on top of the interaction
// primitives. Page objects hold no state beyond the tab and the base URL.
package pages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/interact"
)

// Page is implemented by every page object.
type Page interface {
	Navigate(ctx context.Context) error
	WaitForPageLoad(ctx context.Context) error
	PageTitle(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	PageContent(ctx context.Context) (string, error)
	IsContentVisible(ctx context.Context) (bool, error)
}

const loadMarkerTimeout = 10 * time.Second

var (
	mainContent   = browser.Sel("main, .main, #main, .content, #content")
	pageTitle     = browser.Sel("h1")
	errorMessages = browser.Sel(".error-message")
)

// Base carries what every page needs: the interactor for its tab and the
// base URL of the application.
type Base struct {
	ix      *interact.Interactor
	baseURL string
}

func newBase(ix *interact.Interactor, baseURL string) *Base {
	return &Base{ix: ix, baseURL: strings.TrimRight(baseURL, "/")}
}

// URL joins path onto the base URL.
func (b *Base) URL(path string) string {
	if path == "" || path == "/" {
		return b.baseURL
	}
	return b.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (b *Base) open(ctx context.Context, path string, state browser.LoadState) error {
	return b.ix.NavigateTo(ctx, b.URL(path), state)
}

func (b *Base) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.ix.Config().Timeout())
}

func (b *Base) waitForLoadState(ctx context.Context, state browser.LoadState) error {
	if state == browser.LoadStateNetworkIdle {
		return b.ix.WaitForNetworkIdle(ctx)
	}
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	if err := b.ix.Driver().WaitForLoadState(ctx, state); err != nil {
		return fmt.Errorf("wait for %s: %w", state, err)
	}
	return nil
}

// settle waits for state, then gives marker up to within to become visible.
// A marker that stays hidden is not an error.
func (b *Base) settle(ctx context.Context, state browser.LoadState, marker browser.Target, within time.Duration) error {
	if err := b.waitForLoadState(ctx, state); err != nil {
		return err
	}
	_ = b.ix.ObserveElement(ctx, marker, interact.Timeout(within))
	return nil
}

func (b *Base) text(ctx context.Context, t browser.Target) (string, error) {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	return b.ix.Driver().Text(ctx, t)
}

func (b *Base) value(ctx context.Context, t browser.Target) (string, error) {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	return b.ix.Driver().InputValue(ctx, t)
}

func (b *Base) allTexts(ctx context.Context, t browser.Target) ([]string, error) {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	return b.ix.Driver().AllTexts(ctx, t)
}

func (b *Base) count(ctx context.Context, t browser.Target) (int, error) {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	return b.ix.Driver().Count(ctx, t)
}

func (b *Base) enabled(ctx context.Context, t browser.Target) (bool, error) {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	return b.ix.Driver().IsEnabled(ctx, t)
}

func (b *Base) checked(ctx context.Context, t browser.Target) (bool, error) {
	ctx, cancel := b.bounded(ctx)
	defer cancel()
	return b.ix.Driver().IsChecked(ctx, t)
}

// PageTitle returns the text of the first h1.
func (b *Base) PageTitle(ctx context.Context) (string, error) {
	return b.text(ctx, pageTitle)
}

func (b *Base) ElementText(ctx context.Context, t browser.Target) (string, error) {
	return b.text(ctx, t)
}

// ElementExists reports whether t currently matches, without waiting.
func (b *Base) ElementExists(ctx context.Context, t browser.Target) (bool, error) {
	n, err := b.count(ctx, t)
	return n > t.Index, err
}

func (b *Base) CurrentURL(ctx context.Context) (string, error) {
	return b.ix.Driver().URL(ctx)
}

func (b *Base) PageContent(ctx context.Context) (string, error) {
	return b.text(ctx, mainContent)
}

func (b *Base) IsContentVisible(ctx context.Context) (bool, error) {
	return b.ElementExists(ctx, mainContent)
}

func (b *Base) ErrorMessages(ctx context.Context) ([]string, error) {
	return b.allTexts(ctx, errorMessages)
}
