package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
)

const targetAttr = "data-uisuite-target"

// chromedpDriver talks CDP directly. Targets that need text filtering or an
// index are resolved in the page and tagged with a unique attribute, which is
// then queried like any other selector.
type chromedpDriver struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.Mutex
}

func launchChromedp(parent context.Context, opts LaunchOptions) (*chromedpDriver, error) {
	w, h := opts.viewport()
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(w, h),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(parent), allocOpts...)

	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(opts.logf()))

	// Run an empty task just to start the browser
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	return &chromedpDriver{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// newContext derives a run context from the browser context that carries the
// deadline and cancellation of the caller's ctx.
func (d *chromedpDriver) newContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(d.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		prev := cancel
		cancel = func() {
			cancelDeadline()
			prev()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (d *chromedpDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	runCtx, cancel := d.newContext(ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// matchesJS returns an expression evaluating to the elements matching t,
// ignoring its index.
func matchesJS(t Target) string {
	return fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).filter(e => !%s || (e.textContent || "").toLowerCase().includes(%s.toLowerCase()))`,
		jsString(t.Selector), jsString(t.HasText), jsString(t.HasText),
	)
}

// resolve returns a CSS selector for t, polling until the element exists
// when t is not a plain query.
func (d *chromedpDriver) resolve(ctx context.Context, t Target) (string, error) {
	if t.Simple() {
		return t.Selector, nil
	}

	token := uuid.NewString()
	script := fmt.Sprintf(`(() => {
		const el = %s[%d];
		if (!el) return false;
		el.setAttribute(%s, %s);
		return true;
	})()`, matchesJS(t), t.Index, jsString(targetAttr), jsString(token))

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		var found bool
		if err := d.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
			return "", err
		}
		if found {
			return fmt.Sprintf(`[%s=%q]`, targetAttr, token), nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func readyStateMet(state LoadState, readyState string) bool {
	if state == LoadStateDOMContentLoaded {
		return readyState == "interactive" || readyState == "complete"
	}
	return readyState == "complete"
}

func (d *chromedpDriver) Goto(ctx context.Context, url string, state LoadState) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return d.WaitForLoadState(ctx, state)
}

// WaitForLoadState polls document.readyState. Network idle is approximated
// as a complete document whose resource count has not changed for 500ms.
func (d *chromedpDriver) WaitForLoadState(ctx context.Context, state LoadState) error {
	const quiet = 500 * time.Millisecond

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	lastCount, stableSince := -1, time.Time{}
	for {
		var snap struct {
			ReadyState string `json:"readyState"`
			Resources  int    `json:"resources"`
		}
		err := d.run(ctx, chromedp.Evaluate(
			`({readyState: document.readyState, resources: performance.getEntriesByType("resource").length})`,
			&snap,
		))
		if err != nil {
			return fmt.Errorf("wait for %s failed: %w", state, err)
		}

		if readyStateMet(state, snap.ReadyState) {
			if state != LoadStateNetworkIdle {
				return nil
			}
			if snap.Resources != lastCount {
				lastCount, stableSince = snap.Resources, time.Now()
			} else if time.Since(stableSince) >= quiet {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s failed: %w", state, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Click performs a click action on the target
func (d *chromedpDriver) Click(ctx context.Context, t Target) error {
	sel, err := d.resolve(ctx, t)
	if err == nil {
		err = d.run(ctx,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Click(sel, chromedp.ByQuery),
		)
	}
	if err != nil {
		return fmt.Errorf("click failed on selector '%s': %w", t, err)
	}
	return nil
}

// Fill clears an input field and types value into it
func (d *chromedpDriver) Fill(ctx context.Context, t Target, value string) error {
	sel, err := d.resolve(ctx, t)
	if err == nil {
		err = d.run(ctx,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Clear(sel, chromedp.ByQuery),
			chromedp.SendKeys(sel, value, chromedp.ByQuery),
		)
	}
	if err != nil {
		return fmt.Errorf("fill failed on selector '%s': %w", t, err)
	}
	return nil
}

func (d *chromedpDriver) SelectOption(ctx context.Context, t Target, value string) error {
	sel, err := d.resolve(ctx, t)
	if err == nil {
		script := fmt.Sprintf(`(() => {
			const el = document.querySelector(%s);
			el.value = %s;
			el.dispatchEvent(new Event("input", {bubbles: true}));
			el.dispatchEvent(new Event("change", {bubbles: true}));
		})()`, jsString(sel), jsString(value))
		err = d.run(ctx,
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Evaluate(script, nil),
		)
	}
	if err != nil {
		return fmt.Errorf("select option failed on selector '%s': %w", t, err)
	}
	return nil
}

var chromedpKeys = map[string]string{
	"Enter":     kb.Enter,
	"Tab":       kb.Tab,
	"Escape":    kb.Escape,
	"Backspace": kb.Backspace,
	"ArrowUp":   kb.ArrowUp,
	"ArrowDown": kb.ArrowDown,
}

func (d *chromedpDriver) Press(ctx context.Context, t Target, key string) error {
	if k, ok := chromedpKeys[key]; ok {
		key = k
	}
	sel, err := d.resolve(ctx, t)
	if err == nil {
		err = d.run(ctx,
			chromedp.Focus(sel, chromedp.ByQuery),
			chromedp.KeyEvent(key),
		)
	}
	if err != nil {
		return fmt.Errorf("press failed on selector '%s': %w", t, err)
	}
	return nil
}

// WaitVisible waits for an element to be visible
func (d *chromedpDriver) WaitVisible(ctx context.Context, t Target) error {
	sel, err := d.resolve(ctx, t)
	if err == nil {
		err = d.run(ctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
	}
	if err != nil {
		return fmt.Errorf("wait for element failed for selector '%s': %w", t, err)
	}
	return nil
}

// Text retrieves the text content of an element
func (d *chromedpDriver) Text(ctx context.Context, t Target) (string, error) {
	var text string
	sel, err := d.resolve(ctx, t)
	if err == nil {
		err = d.run(ctx, chromedp.TextContent(sel, &text, chromedp.ByQuery))
	}
	if err != nil {
		return "", fmt.Errorf("get element text failed for selector '%s': %w", t, err)
	}
	return text, nil
}

func (d *chromedpDriver) InputValue(ctx context.Context, t Target) (string, error) {
	var v string
	sel, err := d.resolve(ctx, t)
	if err == nil {
		err = d.run(ctx, chromedp.Value(sel, &v, chromedp.ByQuery))
	}
	if err != nil {
		return "", fmt.Errorf("get input value failed for selector '%s': %w", t, err)
	}
	return v, nil
}

func (d *chromedpDriver) property(ctx context.Context, t Target, expr string) (bool, error) {
	sel, err := d.resolve(ctx, t)
	if err != nil {
		return false, err
	}
	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQuery)); err != nil {
		return false, err
	}
	var v bool
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%s); return %s; })()`, jsString(sel), expr)
	err = d.run(ctx, chromedp.Evaluate(script, &v))
	return v, err
}

func (d *chromedpDriver) IsEnabled(ctx context.Context, t Target) (bool, error) {
	ok, err := d.property(ctx, t, "!el.disabled")
	if err != nil {
		return false, fmt.Errorf("enabled check failed for selector '%s': %w", t, err)
	}
	return ok, nil
}

func (d *chromedpDriver) IsChecked(ctx context.Context, t Target) (bool, error) {
	ok, err := d.property(ctx, t, "!!el.checked")
	if err != nil {
		return false, fmt.Errorf("checked check failed for selector '%s': %w", t, err)
	}
	return ok, nil
}

func (d *chromedpDriver) AllTexts(ctx context.Context, t Target) ([]string, error) {
	var texts []string
	script := matchesJS(t) + `.map(e => e.textContent || "")`
	if err := d.run(ctx, chromedp.Evaluate(script, &texts)); err != nil {
		return nil, fmt.Errorf("get texts failed for selector '%s': %w", t, err)
	}
	return texts, nil
}

func (d *chromedpDriver) Count(ctx context.Context, t Target) (int, error) {
	var n int
	if err := d.run(ctx, chromedp.Evaluate(matchesJS(t)+`.length`, &n)); err != nil {
		return 0, fmt.Errorf("count failed for selector '%s': %w", t, err)
	}
	return n, nil
}

func (d *chromedpDriver) URL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to get current URL: %w", err)
	}
	return url, nil
}

func (d *chromedpDriver) Title(ctx context.Context) (string, error) {
	var title string
	if err := d.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to get page title: %w", err)
	}
	return title, nil
}

func (d *chromedpDriver) Content(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (d *chromedpDriver) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := d.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return writeScreenshot(path, buf)
}

func (d *chromedpDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	return nil
}
