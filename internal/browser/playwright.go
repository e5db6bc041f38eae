package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

type playwrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	tracing   bool
	videoPath string
}

func launchPlaywright(opts LaunchOptions) (*playwrightDriver, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	w, h := opts.viewport()
	ctxOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: w, Height: h},
	}
	if opts.VideoDir != "" {
		ctxOpts.RecordVideo = &playwright.RecordVideo{Dir: opts.VideoDir}
	}

	context, err := browser.NewContext(ctxOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("create context: %w", err)
	}

	if opts.Trace {
		err = context.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
			Sources:     playwright.Bool(true),
		})
		if err != nil {
			context.Close()
			browser.Close()
			pw.Stop()
			return nil, fmt.Errorf("start tracing: %w", err)
		}
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("create page: %w", err)
	}

	return &playwrightDriver{
		pw:      pw,
		browser: browser,
		context: context,
		page:    page,
		tracing: opts.Trace,
	}, nil
}

// timeout converts the deadline of ctx into a playwright timeout in
// milliseconds. Zero means no limit.
func timeout(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return playwright.Float(0)
	}
	ms := time.Until(deadline).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(float64(ms))
}

func pwErr(err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func pwLoadState(state LoadState) *playwright.LoadState {
	switch state {
	case LoadStateDOMContentLoaded:
		return playwright.LoadStateDomcontentloaded
	case LoadStateNetworkIdle:
		return playwright.LoadStateNetworkidle
	default:
		return playwright.LoadStateLoad
	}
}

func pwWaitUntil(state LoadState) *playwright.WaitUntilState {
	switch state {
	case LoadStateDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case LoadStateNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateLoad
	}
}

func (d *playwrightDriver) locator(t Target) playwright.Locator {
	loc := d.page.Locator(t.Selector)
	if t.HasText != "" {
		loc = loc.Filter(playwright.LocatorFilterOptions{HasText: t.HasText})
	}
	return loc
}

func (d *playwrightDriver) element(t Target) playwright.Locator {
	return d.locator(t).Nth(t.Index)
}

func (d *playwrightDriver) Goto(ctx context.Context, url string, state LoadState) error {
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: pwWaitUntil(state),
		Timeout:   timeout(ctx),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, pwErr(err))
	}
	return nil
}

func (d *playwrightDriver) WaitForLoadState(ctx context.Context, state LoadState) error {
	err := d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   pwLoadState(state),
		Timeout: timeout(ctx),
	})
	if err != nil {
		return fmt.Errorf("wait for %s failed: %w", state, pwErr(err))
	}
	return nil
}

// Click performs a click action on the target
func (d *playwrightDriver) Click(ctx context.Context, t Target) error {
	if err := d.element(t).Click(playwright.LocatorClickOptions{Timeout: timeout(ctx)}); err != nil {
		return fmt.Errorf("click failed on selector '%s': %w", t, pwErr(err))
	}
	return nil
}

// Fill replaces the value of an input field
func (d *playwrightDriver) Fill(ctx context.Context, t Target, value string) error {
	if err := d.element(t).Fill(value, playwright.LocatorFillOptions{Timeout: timeout(ctx)}); err != nil {
		return fmt.Errorf("fill failed on selector '%s': %w", t, pwErr(err))
	}
	return nil
}

func (d *playwrightDriver) SelectOption(ctx context.Context, t Target, value string) error {
	_, err := d.element(t).SelectOption(
		playwright.SelectOptionValues{Values: &[]string{value}},
		playwright.LocatorSelectOptionOptions{Timeout: timeout(ctx)},
	)
	if err != nil {
		return fmt.Errorf("select option failed on selector '%s': %w", t, pwErr(err))
	}
	return nil
}

func (d *playwrightDriver) Press(ctx context.Context, t Target, key string) error {
	if err := d.element(t).Press(key, playwright.LocatorPressOptions{Timeout: timeout(ctx)}); err != nil {
		return fmt.Errorf("press %s failed on selector '%s': %w", key, t, pwErr(err))
	}
	return nil
}

// WaitVisible waits for the target to be visible
func (d *playwrightDriver) WaitVisible(ctx context.Context, t Target) error {
	err := d.element(t).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeout(ctx),
	})
	if err != nil {
		return fmt.Errorf("wait for element failed for selector '%s': %w", t, pwErr(err))
	}
	return nil
}

func (d *playwrightDriver) Text(ctx context.Context, t Target) (string, error) {
	text, err := d.element(t).TextContent(playwright.LocatorTextContentOptions{Timeout: timeout(ctx)})
	if err != nil {
		return "", fmt.Errorf("get element text failed for selector '%s': %w", t, pwErr(err))
	}
	return text, nil
}

func (d *playwrightDriver) InputValue(ctx context.Context, t Target) (string, error) {
	v, err := d.element(t).InputValue(playwright.LocatorInputValueOptions{Timeout: timeout(ctx)})
	if err != nil {
		return "", fmt.Errorf("get input value failed for selector '%s': %w", t, pwErr(err))
	}
	return v, nil
}

func (d *playwrightDriver) IsEnabled(ctx context.Context, t Target) (bool, error) {
	ok, err := d.element(t).IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: timeout(ctx)})
	if err != nil {
		return false, fmt.Errorf("enabled check failed for selector '%s': %w", t, pwErr(err))
	}
	return ok, nil
}

func (d *playwrightDriver) IsChecked(ctx context.Context, t Target) (bool, error) {
	ok, err := d.element(t).IsChecked(playwright.LocatorIsCheckedOptions{Timeout: timeout(ctx)})
	if err != nil {
		return false, fmt.Errorf("checked check failed for selector '%s': %w", t, pwErr(err))
	}
	return ok, nil
}

func (d *playwrightDriver) AllTexts(ctx context.Context, t Target) ([]string, error) {
	texts, err := d.locator(t).AllTextContents()
	if err != nil {
		return nil, fmt.Errorf("get texts failed for selector '%s': %w", t, pwErr(err))
	}
	return texts, nil
}

func (d *playwrightDriver) Count(ctx context.Context, t Target) (int, error) {
	n, err := d.locator(t).Count()
	if err != nil {
		return 0, fmt.Errorf("count failed for selector '%s': %w", t, pwErr(err))
	}
	return n, nil
}

func (d *playwrightDriver) URL(ctx context.Context) (string, error) {
	return d.page.URL(), nil
}

func (d *playwrightDriver) Title(ctx context.Context) (string, error) {
	title, err := d.page.Title()
	if err != nil {
		return "", fmt.Errorf("failed to get page title: %w", err)
	}
	return title, nil
}

func (d *playwrightDriver) Content(ctx context.Context) (string, error) {
	html, err := d.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (d *playwrightDriver) Screenshot(ctx context.Context, path string) error {
	buf, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  timeout(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", pwErr(err))
	}
	return writeScreenshot(path, buf)
}

// SaveTrace stops tracing and writes the archive to path.
func (d *playwrightDriver) SaveTrace(path string) error {
	if !d.tracing {
		return errors.New("tracing is off")
	}
	d.tracing = false
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create trace dir: %w", err)
	}
	if err := d.context.Tracing().Stop(path); err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	return nil
}

func (d *playwrightDriver) DiscardTrace() error {
	if !d.tracing {
		return nil
	}
	d.tracing = false
	return d.context.Tracing().Stop()
}

// VideoPath is known once the page is closed; the file is complete after Close.
func (d *playwrightDriver) VideoPath() (string, error) {
	if d.videoPath == "" {
		return "", errors.New("video recording is off")
	}
	return d.videoPath, nil
}

func (d *playwrightDriver) DiscardVideo() error {
	if d.videoPath == "" {
		return nil
	}
	if err := os.Remove(d.videoPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete video: %w", err)
	}
	d.videoPath = ""
	return nil
}

func (d *playwrightDriver) Close() error {
	if d.page != nil {
		d.page.Close()
		if v := d.page.Video(); v != nil {
			if path, err := v.Path(); err == nil {
				d.videoPath = path
			}
		}
	}
	if d.context != nil {
		d.context.Close()
	}
	if d.browser != nil {
		d.browser.Close()
	}
	if d.pw != nil {
		return d.pw.Stop()
	}
	return nil
}
