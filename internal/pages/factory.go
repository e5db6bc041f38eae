package pages

import "onlytests-e2e/internal/interact"

// Factory builds page objects for one tab against the configured base URL.
type Factory struct {
	ix      *interact.Interactor
	baseURL string
}

func NewFactory(ix *interact.Interactor) *Factory {
	return &Factory{ix: ix, baseURL: ix.Config().BaseURL()}
}

func (f *Factory) Home() *HomePage { return NewHomePage(f.ix, f.baseURL) }

func (f *Factory) About() *AboutPage { return NewAboutPage(f.ix, f.baseURL) }

func (f *Factory) Tools() *ToolsPage { return NewToolsPage(f.ix, f.baseURL) }

func (f *Factory) UserData() *UserDataPage { return NewUserDataPage(f.ix, f.baseURL) }

func (f *Factory) TestCases() *TestCasesPage { return NewTestCasesPage(f.ix, f.baseURL) }

func (f *Factory) TextGenerator() *TextGeneratorPage { return NewTextGeneratorPage(f.ix, f.baseURL) }

// All returns every page, keyed by name.
func (f *Factory) All() map[string]Page {
	return map[string]Page{
		"home":          f.Home(),
		"about":         f.About(),
		"tools":         f.Tools(),
		"userData":      f.UserData(),
		"testCases":     f.TestCases(),
		"textGenerator": f.TextGenerator(),
	}
}
