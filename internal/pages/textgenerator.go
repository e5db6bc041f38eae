package pages

import (
	"context"
	"strconv"
	"strings"
	"time"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/interact"
)

// Unit is what the generator counts.
type Unit string

const (
	UnitCharacters Unit = "characters"
	UnitWords      Unit = "words"
)

const (
	DefaultTextLength  = 100
	textGenerationWait = 5 * time.Second
)

var (
	textNumberInput = browser.Sel(`input[type="number"]`)
	textRadios      = browser.Sel(`input[type="radio"]`)
	charactersRadio = textRadios.Nth(0)
	wordsRadio      = textRadios.Nth(1)
	countSpacesBox  = browser.Sel(`input[type="checkbox"]`)
	generatedText   = browser.Sel("textarea")
	copyButton      = browser.Sel("button").WithText("Copy to Clipboard")
	backToHomeLink  = browser.Sel("a").WithText("Back to Home")
	textDescription = browser.Sel("p").WithText("Generate custom text content with our free online text generator")
)

type TextGeneratorPage struct {
	*Base
}

func NewTextGeneratorPage(ix *interact.Interactor, baseURL string) *TextGeneratorPage {
	return &TextGeneratorPage{Base: newBase(ix, baseURL)}
}

func (p *TextGeneratorPage) Navigate(ctx context.Context) error {
	if err := p.open(ctx, "/tools/text-generator", browser.LoadStateDOMContentLoaded); err != nil {
		return err
	}
	return p.WaitForPageLoad(ctx)
}

func (p *TextGeneratorPage) WaitForPageLoad(ctx context.Context) error {
	return p.settle(ctx, browser.LoadStateDOMContentLoaded, textNumberInput, loadMarkerTimeout)
}

func (p *TextGeneratorPage) SetNumber(ctx context.Context, n int) error {
	return p.ix.SafeFill(ctx, textNumberInput, strconv.Itoa(n))
}

func (p *TextGeneratorPage) Number(ctx context.Context) (int, error) {
	v, err := p.value(ctx, textNumberInput)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(v))
}

func (p *TextGeneratorPage) SelectUnit(ctx context.Context, u Unit) error {
	if u == UnitWords {
		return p.ix.SafeClick(ctx, wordsRadio)
	}
	return p.ix.SafeClick(ctx, charactersRadio)
}

func (p *TextGeneratorPage) SelectedUnit(ctx context.Context) (Unit, error) {
	words, err := p.checked(ctx, wordsRadio)
	if err != nil {
		return "", err
	}
	if words {
		return UnitWords, nil
	}
	return UnitCharacters, nil
}

func (p *TextGeneratorPage) CountSpaces(ctx context.Context) (bool, error) {
	return p.checked(ctx, countSpacesBox)
}

// SetCountSpaces toggles the checkbox only when it differs from on.
func (p *TextGeneratorPage) SetCountSpaces(ctx context.Context, on bool) error {
	cur, err := p.CountSpaces(ctx)
	if err != nil {
		return err
	}
	if cur == on {
		return nil
	}
	return p.ix.SafeClick(ctx, countSpacesBox)
}

func (p *TextGeneratorPage) GeneratedText(ctx context.Context) (string, error) {
	return p.value(ctx, generatedText)
}

// WaitForTextGeneration gives the output area a few seconds to fill.
func (p *TextGeneratorPage) WaitForTextGeneration(ctx context.Context) interact.Visibility {
	return p.ix.WaitUntil(ctx, textGenerationWait, func(ctx context.Context) (bool, error) {
		v, err := p.ix.Driver().InputValue(ctx, generatedText)
		return len(v) > 0, err
	})
}

// GenerateText sets the length and unit, waits for output and returns it.
func (p *TextGeneratorPage) GenerateText(ctx context.Context, n int, u Unit) (string, error) {
	if err := p.SetNumber(ctx, n); err != nil {
		return "", err
	}
	if err := p.SelectUnit(ctx, u); err != nil {
		return "", err
	}
	_ = p.WaitForTextGeneration(ctx)
	return p.GeneratedText(ctx)
}

func (p *TextGeneratorPage) CopyToClipboard(ctx context.Context) error {
	return p.ix.SafeClick(ctx, copyButton)
}

func (p *TextGeneratorPage) BackToHome(ctx context.Context) error {
	return p.ix.SafeClick(ctx, backToHomeLink)
}

func (p *TextGeneratorPage) IsDescriptionVisible(ctx context.Context) (bool, error) {
	return p.ElementExists(ctx, textDescription)
}

// VerifyDefaultState reports whether the form shows 100 characters with
// spaces counted.
func (p *TextGeneratorPage) VerifyDefaultState(ctx context.Context) (bool, error) {
	n, err := p.Number(ctx)
	if err != nil {
		return false, err
	}
	u, err := p.SelectedUnit(ctx)
	if err != nil {
		return false, err
	}
	spaces, err := p.CountSpaces(ctx)
	if err != nil {
		return false, err
	}
	return n == DefaultTextLength && u == UnitCharacters && spaces, nil
}

// CountWords counts whitespace separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// MatchesLength reports whether text has n units, allowing tolerance either
// way for characters. Spaces are left out of the character count unless
// countSpaces is set.
func MatchesLength(text string, n int, u Unit, countSpaces bool, tolerance int) bool {
	var got int
	switch u {
	case UnitWords:
		got = CountWords(text)
	default:
		if !countSpaces {
			text = strings.Join(strings.Fields(text), "")
		}
		got = len([]rune(text))
	}
	d := got - n
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
