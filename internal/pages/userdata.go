package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/interact"
)

// UserFields are the labelled values every generated user card carries.
var UserFields = []string{
	"Full Name", "Username", "Job Title", "Phone", "Email",
	"Country", "State", "City", "Address", "Zip Code",
}

const regenerateSettle = 2 * time.Second

var (
	numUsersInput   = browser.Sel(`input[id="numUsers"]`)
	languageSelect  = browser.Sel(`select[id="language"]`)
	regenerateBtn   = browser.Sel("button").WithText("Regenerate Data")
	countrySelect   = browser.Sel("select").Nth(3)
	stateSelect     = browser.Sel("select").Nth(1)
	citySelect      = browser.Sel("select").Nth(2)
	allSelects      = browser.Sel("select")
	allOptions      = browser.Sel("select option")
	userCardsSel    = "main main > div:last-child > div"
	userCards       = browser.Sel(userCardsSel)
	userAvatars     = browser.Sel(`img[alt="User Avatar"]`)
	downloadAvatars = browser.Sel("button").WithText("Download Avatar")
)

type UserDataPage struct {
	*Base
}

func NewUserDataPage(ix *interact.Interactor, baseURL string) *UserDataPage {
	return &UserDataPage{Base: newBase(ix, baseURL)}
}

func (p *UserDataPage) Navigate(ctx context.Context) error {
	if err := p.open(ctx, "/tools/user-data", browser.LoadStateDOMContentLoaded); err != nil {
		return err
	}
	return p.WaitForPageLoad(ctx)
}

func (p *UserDataPage) WaitForPageLoad(ctx context.Context) error {
	return p.settle(ctx, browser.LoadStateNetworkIdle, numUsersInput, loadMarkerTimeout)
}

func (p *UserDataPage) SetNumberOfUsers(ctx context.Context, n int) error {
	return p.ix.SafeFill(ctx, numUsersInput, strconv.Itoa(n))
}

func (p *UserDataPage) NumberOfUsers(ctx context.Context) (int, error) {
	v, err := p.value(ctx, numUsersInput)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(v))
}

func (p *UserDataPage) SelectLanguage(ctx context.Context, lang string) error {
	return p.ix.SafeSelect(ctx, languageSelect, lang)
}

func (p *UserDataPage) SelectCountry(ctx context.Context, country string) error {
	return p.ix.SafeSelect(ctx, countrySelect, country)
}

func (p *UserDataPage) SelectState(ctx context.Context, state string) error {
	return p.ix.SafeSelect(ctx, stateSelect, state)
}

func (p *UserDataPage) SelectCity(ctx context.Context, city string) error {
	return p.ix.SafeSelect(ctx, citySelect, city)
}

// RegenerateData clicks the regenerate button and gives the cards a short
// window to be re-rendered.
func (p *UserDataPage) RegenerateData(ctx context.Context) error {
	if err := p.ix.SafeClick(ctx, regenerateBtn); err != nil {
		return err
	}
	_ = p.ix.WaitUntil(ctx, regenerateSettle, func(ctx context.Context) (bool, error) {
		n, err := p.ix.Driver().Count(ctx, userCards)
		return n > 0, err
	})
	return nil
}

func (p *UserDataPage) UserCardCount(ctx context.Context) (int, error) {
	return p.count(ctx, userCards)
}

func (p *UserDataPage) AvatarCount(ctx context.Context) (int, error) {
	return p.count(ctx, userAvatars)
}

func (p *UserDataPage) DownloadAvatar(ctx context.Context, card int) error {
	return p.ix.SafeClick(ctx, downloadAvatars.Nth(card))
}

func (p *UserDataPage) IsRegenerateEnabled(ctx context.Context) (bool, error) {
	return p.enabled(ctx, regenerateBtn)
}

// cardFields addresses the labelled paragraphs of the card at index card.
func cardFields(card int) browser.Target {
	return browser.Sel(fmt.Sprintf("%s:nth-child(%d) > div p", userCardsSel, card+1))
}

// UserData returns the "Label: Value" pairs shown on the card at index card.
func (p *UserDataPage) UserData(ctx context.Context, card int) (map[string]string, error) {
	lines, err := p.allTexts(ctx, cardFields(card))
	if err != nil {
		return nil, err
	}
	return ParseLabeled(lines), nil
}

// ParseLabeled splits each "Label: Value" line at the first colon. Lines
// without one are skipped.
func ParseLabeled(lines []string) map[string]string {
	out := make(map[string]string, len(lines))
	for _, l := range lines {
		k, v, ok := strings.Cut(l, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// MissingFields returns the UserFields absent or empty in data.
func MissingFields(data map[string]string) []string {
	var missing []string
	for _, f := range UserFields {
		if data[f] == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// VerifyUserDataFields reports whether the card at index card shows every
// expected field.
func (p *UserDataPage) VerifyUserDataFields(ctx context.Context, card int) (bool, error) {
	data, err := p.UserData(ctx, card)
	if err != nil {
		return false, err
	}
	return len(MissingFields(data)) == 0, nil
}

// IsLocationSelectionWorking reports whether the country select is present
// and the location selects offer real choices beyond a placeholder each.
func (p *UserDataPage) IsLocationSelectionWorking(ctx context.Context) (bool, error) {
	ok, err := p.ElementExists(ctx, countrySelect)
	if err != nil || !ok {
		return false, err
	}
	selects, err := p.count(ctx, allSelects)
	if err != nil {
		return false, err
	}
	options, err := p.count(ctx, allOptions)
	if err != nil {
		return false, err
	}
	return options > selects, nil
}

// VerifyGeneratedDataStructure reports whether at least one card was
// generated, every card has an avatar and a download button, and the first
// card carries every field.
func (p *UserDataPage) VerifyGeneratedDataStructure(ctx context.Context) (bool, error) {
	cards, err := p.UserCardCount(ctx)
	if err != nil || cards == 0 {
		return false, err
	}
	avatars, err := p.AvatarCount(ctx)
	if err != nil {
		return false, err
	}
	downloads, err := p.count(ctx, downloadAvatars)
	if err != nil {
		return false, err
	}
	if avatars != cards || downloads != cards {
		return false, nil
	}
	return p.VerifyUserDataFields(ctx, 0)
}
