package pages

import (
	"context"
	"strings"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/interact"
)

// HomeSections are the section headings the home page must show.
var HomeSections = []string{"Test Data Generation", "Utility Tools", "Templates"}

var (
	homeWelcome     = browser.Sel("h1")
	homeDescription = browser.Sel("p.text-lg")
	homeSections    = browser.Sel("h2.text-2xl")
	homeMain        = browser.Sel("main")
	homeCardTitles  = browser.Sel(".card h3")
)

type HomePage struct {
	*Base
}

func NewHomePage(ix *interact.Interactor, baseURL string) *HomePage {
	return &HomePage{Base: newBase(ix, baseURL)}
}

func (p *HomePage) Navigate(ctx context.Context) error {
	if err := p.open(ctx, "/", browser.LoadStateDOMContentLoaded); err != nil {
		return err
	}
	return p.WaitForPageLoad(ctx)
}

func (p *HomePage) WaitForPageLoad(ctx context.Context) error {
	return p.settle(ctx, browser.LoadStateDOMContentLoaded, pageTitle, loadMarkerTimeout)
}

func (p *HomePage) WelcomeMessage(ctx context.Context) (string, error) {
	return p.text(ctx, homeWelcome)
}

func (p *HomePage) Description(ctx context.Context) (string, error) {
	return p.text(ctx, homeDescription)
}

func (p *HomePage) SectionTitles(ctx context.Context) ([]string, error) {
	return p.allTexts(ctx, homeSections)
}

func (p *HomePage) CardTitles(ctx context.Context) ([]string, error) {
	return p.allTexts(ctx, homeCardTitles)
}

func (p *HomePage) IsSectionVisible(ctx context.Context, name string) (bool, error) {
	return p.ElementExists(ctx, browser.Sel("h2").WithText(name))
}

// VerifyAllSectionsVisible reports whether every heading in HomeSections is
// present.
func (p *HomePage) VerifyAllSectionsVisible(ctx context.Context) (bool, error) {
	for _, s := range HomeSections {
		ok, err := p.IsSectionVisible(ctx, s)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// VerifyWelcomeMessage reports whether the welcome heading names the site.
func (p *HomePage) VerifyWelcomeMessage(ctx context.Context) (bool, error) {
	msg, err := p.WelcomeMessage(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(msg), "onlytests"), nil
}

func (p *HomePage) PageContent(ctx context.Context) (string, error) {
	return p.text(ctx, homeMain)
}

func (p *HomePage) IsContentVisible(ctx context.Context) (bool, error) {
	return p.ElementExists(ctx, homeMain)
}

func (p *HomePage) GoToUserData(ctx context.Context) error {
	return p.open(ctx, "/tools/user-data", browser.LoadStateLoad)
}

func (p *HomePage) GoToCountTool(ctx context.Context) error {
	return p.open(ctx, "/tools/count-tool", browser.LoadStateLoad)
}

func (p *HomePage) GoToTemplates(ctx context.Context) error {
	return p.open(ctx, "/templates/test-cases", browser.LoadStateLoad)
}

func (p *HomePage) GoToAbout(ctx context.Context) error {
	return p.open(ctx, "/about", browser.LoadStateLoad)
}

func (p *HomePage) GoToTerms(ctx context.Context) error {
	return p.open(ctx, "/terms", browser.LoadStateLoad)
}
