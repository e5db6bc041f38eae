package pages

import (
	"context"
	"strings"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/interact"
)

var (
	aboutContent  = browser.Sel("main")
	aboutSections = browser.Sel("h2")
)

type AboutPage struct {
	*Base
}

func NewAboutPage(ix *interact.Interactor, baseURL string) *AboutPage {
	return &AboutPage{Base: newBase(ix, baseURL)}
}

func (p *AboutPage) Navigate(ctx context.Context) error {
	if err := p.open(ctx, "/about", browser.LoadStateDOMContentLoaded); err != nil {
		return err
	}
	return p.WaitForPageLoad(ctx)
}

func (p *AboutPage) WaitForPageLoad(ctx context.Context) error {
	return p.settle(ctx, browser.LoadStateDOMContentLoaded, pageTitle, loadMarkerTimeout)
}

func (p *AboutPage) PageContent(ctx context.Context) (string, error) {
	return p.text(ctx, aboutContent)
}

func (p *AboutPage) Sections(ctx context.Context) ([]string, error) {
	return p.allTexts(ctx, aboutSections)
}

func (p *AboutPage) HasSection(ctx context.Context, name string) (bool, error) {
	return p.ElementExists(ctx, aboutSections.WithText(name))
}

func (p *AboutPage) NavigateToHome(ctx context.Context) error {
	return p.open(ctx, "/", browser.LoadStateLoad)
}

// VerifyLoaded checks the URL, the heading and the main content together.
func (p *AboutPage) VerifyLoaded(ctx context.Context) (bool, error) {
	url, err := p.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	title, err := p.PageTitle(ctx)
	if err != nil {
		return false, err
	}
	if !strings.Contains(url, "/about") || !strings.Contains(strings.ToLower(title), "about") {
		return false, nil
	}
	return p.IsContentVisible(ctx)
}
