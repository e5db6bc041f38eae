package pages

import (
	"context"
	"regexp"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/interact"
)

var (
	toolContent = browser.Sel("main, .main, #main, .content, #content, [data-testid], .tool-content")
	toolPathRe  = regexp.MustCompile(`/tools/(.+)$`)
)

type ToolsPage struct {
	*Base
}

func NewToolsPage(ix *interact.Interactor, baseURL string) *ToolsPage {
	return &ToolsPage{Base: newBase(ix, baseURL)}
}

func (p *ToolsPage) Navigate(ctx context.Context) error {
	if err := p.open(ctx, "/tools", browser.LoadStateDOMContentLoaded); err != nil {
		return err
	}
	return p.WaitForPageLoad(ctx)
}

// NavigateToTool opens /tools/<path>.
func (p *ToolsPage) NavigateToTool(ctx context.Context, path string) error {
	if err := p.open(ctx, "/tools/"+path, browser.LoadStateDOMContentLoaded); err != nil {
		return err
	}
	return p.WaitForPageLoad(ctx)
}

func (p *ToolsPage) WaitForPageLoad(ctx context.Context) error {
	return p.settle(ctx, browser.LoadStateDOMContentLoaded, toolContent, loadMarkerTimeout)
}

// ToolPath returns the part of the URL after /tools/, or "".
func (p *ToolsPage) ToolPath(ctx context.Context) (string, error) {
	url, err := p.CurrentURL(ctx)
	if err != nil {
		return "", err
	}
	return ToolPathOf(url), nil
}

func ToolPathOf(url string) string {
	m := toolPathRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

func (p *ToolsPage) ToolTitle(ctx context.Context) (string, error) {
	return p.PageTitle(ctx)
}

func (p *ToolsPage) IsToolContentVisible(ctx context.Context) (bool, error) {
	return p.ElementExists(ctx, toolContent)
}

// PageContent returns the page's HTML.
func (p *ToolsPage) PageContent(ctx context.Context) (string, error) {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	return p.ix.Driver().Content(ctx)
}
