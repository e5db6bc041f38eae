package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type rodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func launchRod(ctx context.Context, opts LaunchOptions) (*rodDriver, error) {
	l := launcher.New().
		Headless(opts.Headless).
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch Chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if opts.SlowMo > 0 {
		b = b.SlowMotion(opts.SlowMo)
	}
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to Chrome: %w", err)
	}

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	page = page.Context(context.Background())

	w, h := opts.viewport()
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: w, Height: h}); err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	return &rodDriver{launcher: l, browser: b, page: page}, nil
}

// elements lists the current matches of t without waiting.
func (d *rodDriver) elements(ctx context.Context, t Target) (rod.Elements, error) {
	els, err := d.page.Context(ctx).Elements(t.Selector)
	if err != nil {
		return nil, err
	}
	if t.HasText == "" {
		return els, nil
	}
	var out rod.Elements
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		if MatchText(text, t.HasText) {
			out = append(out, el)
		}
	}
	return out, nil
}

// element polls until the Index-th match of t exists.
func (d *rodDriver) element(ctx context.Context, t Target) (*rod.Element, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		els, err := d.elements(ctx, t)
		if err != nil {
			return nil, err
		}
		if t.Index < len(els) {
			return els[t.Index].Context(ctx), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *rodDriver) Goto(ctx context.Context, url string, state LoadState) error {
	if err := d.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return d.WaitForLoadState(ctx, state)
}

func (d *rodDriver) WaitForLoadState(ctx context.Context, state LoadState) error {
	page := d.page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s failed: %w", state, err)
	}
	if state == LoadStateNetworkIdle {
		if err := page.WaitStable(500 * time.Millisecond); err != nil {
			return fmt.Errorf("wait stable after load: %w", err)
		}
	}
	return nil
}

// Click clicks an element by target.
func (d *rodDriver) Click(ctx context.Context, t Target) error {
	el, err := d.element(ctx, t)
	if err == nil {
		if err = el.WaitVisible(); err == nil {
			err = el.Click(proto.InputMouseButtonLeft, 1)
		}
	}
	if err != nil {
		return fmt.Errorf("click failed on selector '%s': %w", t, err)
	}
	return nil
}

// Fill replaces the value of an input by target.
func (d *rodDriver) Fill(ctx context.Context, t Target, value string) error {
	el, err := d.element(ctx, t)
	if err == nil {
		if _, err = el.Eval(`() => { this.value = "" }`); err == nil {
			err = el.Input(value)
		}
	}
	if err != nil {
		return fmt.Errorf("fill failed on selector '%s': %w", t, err)
	}
	return nil
}

func (d *rodDriver) SelectOption(ctx context.Context, t Target, value string) error {
	el, err := d.element(ctx, t)
	if err == nil {
		_, err = el.Eval(`(v) => {
			this.value = v;
			this.dispatchEvent(new Event("input", {bubbles: true}));
			this.dispatchEvent(new Event("change", {bubbles: true}));
		}`, value)
	}
	if err != nil {
		return fmt.Errorf("select option failed on selector '%s': %w", t, err)
	}
	return nil
}

var rodKeys = map[string]input.Key{
	"Enter":     input.Enter,
	"Tab":       input.Tab,
	"Escape":    input.Escape,
	"Backspace": input.Backspace,
	"ArrowUp":   input.ArrowUp,
	"ArrowDown": input.ArrowDown,
}

// Press presses a keyboard key with the target focused.
func (d *rodDriver) Press(ctx context.Context, t Target, key string) error {
	k, ok := rodKeys[key]
	if !ok {
		runes := []rune(key)
		if len(runes) != 1 {
			return fmt.Errorf("unsupported key: %s", key)
		}
		k = input.Key(runes[0])
	}
	el, err := d.element(ctx, t)
	if err == nil {
		if err = el.Focus(); err == nil {
			err = d.page.Context(ctx).Keyboard.Press(k)
		}
	}
	if err != nil {
		return fmt.Errorf("press failed on selector '%s': %w", t, err)
	}
	return nil
}

func (d *rodDriver) WaitVisible(ctx context.Context, t Target) error {
	el, err := d.element(ctx, t)
	if err == nil {
		err = el.WaitVisible()
	}
	if err != nil {
		return fmt.Errorf("wait for element failed for selector '%s': %w", t, err)
	}
	return nil
}

func (d *rodDriver) Text(ctx context.Context, t Target) (string, error) {
	el, err := d.element(ctx, t)
	if err != nil {
		return "", fmt.Errorf("get element text failed for selector '%s': %w", t, err)
	}
	v, err := el.Property("textContent")
	if err != nil {
		return "", fmt.Errorf("get element text failed for selector '%s': %w", t, err)
	}
	return v.String(), nil
}

func (d *rodDriver) InputValue(ctx context.Context, t Target) (string, error) {
	el, err := d.element(ctx, t)
	if err != nil {
		return "", fmt.Errorf("get input value failed for selector '%s': %w", t, err)
	}
	v, err := el.Property("value")
	if err != nil {
		return "", fmt.Errorf("get input value failed for selector '%s': %w", t, err)
	}
	return v.String(), nil
}

func (d *rodDriver) IsEnabled(ctx context.Context, t Target) (bool, error) {
	el, err := d.element(ctx, t)
	if err != nil {
		return false, fmt.Errorf("enabled check failed for selector '%s': %w", t, err)
	}
	disabled, err := el.Disabled()
	if err != nil {
		return false, fmt.Errorf("enabled check failed for selector '%s': %w", t, err)
	}
	return !disabled, nil
}

func (d *rodDriver) IsChecked(ctx context.Context, t Target) (bool, error) {
	el, err := d.element(ctx, t)
	if err != nil {
		return false, fmt.Errorf("checked check failed for selector '%s': %w", t, err)
	}
	v, err := el.Property("checked")
	if err != nil {
		return false, fmt.Errorf("checked check failed for selector '%s': %w", t, err)
	}
	return v.Bool(), nil
}

func (d *rodDriver) AllTexts(ctx context.Context, t Target) ([]string, error) {
	els, err := d.elements(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("get texts failed for selector '%s': %w", t, err)
	}
	texts := make([]string, 0, len(els))
	for _, el := range els {
		v, err := el.Property("textContent")
		if err != nil {
			return nil, fmt.Errorf("get texts failed for selector '%s': %w", t, err)
		}
		texts = append(texts, v.String())
	}
	return texts, nil
}

func (d *rodDriver) Count(ctx context.Context, t Target) (int, error) {
	els, err := d.elements(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("count failed for selector '%s': %w", t, err)
	}
	return len(els), nil
}

func (d *rodDriver) URL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to get current URL: %w", err)
	}
	return info.URL, nil
}

func (d *rodDriver) Title(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to get page title: %w", err)
	}
	return info.Title, nil
}

func (d *rodDriver) Content(ctx context.Context) (string, error) {
	html, err := d.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (d *rodDriver) Screenshot(ctx context.Context, path string) error {
	buf, err := d.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return writeScreenshot(path, buf)
}

func (d *rodDriver) Close() error {
	err := d.browser.Close()
	d.launcher.Kill()
	return err
}
