// Package interact wraps single browser actions with bounded retry, timeouts,
// logging and metrics.
//
// Required actions (SafeClick, SafeFill, SafeSelect) retry and surface an
// *ExhaustedError once every attempt has failed. WaitForElement and
// WaitForNetworkIdle are strict preconditions and return their error.
// ObserveElement and WaitUntil are advisory: they report a Visibility and
// never fail.
package interact

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/config"
	"onlytests-e2e/internal/logger"
)

// Visibility is the result of an advisory wait.
type Visibility int

const (
	NotObserved Visibility = iota
	Observed
)

func (v Visibility) String() string {
	if v == Observed {
		return "observed"
	}
	return "not_observed"
}

const (
	existsTimeout = 5 * time.Second
	pollInterval  = 100 * time.Millisecond
)

// Interactor runs primitives against one driver.
type Interactor struct {
	driver        browser.Driver
	cfg           *config.Store
	log           *logger.Logger
	metrics       *Metrics
	policy        Policy
	sleep         func(context.Context, time.Duration) error
	now           func() time.Time
	screenshotDir string
	testName      string
}

type Option func(*Interactor)

func WithLogger(l *logger.Logger) Option {
	return func(i *Interactor) { i.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(i *Interactor) { i.metrics = m }
}

// WithPolicy sets the default attempts and backoff of required actions.
func WithPolicy(p Policy) Option {
	return func(i *Interactor) { i.policy = p }
}

// WithBackoffSleep replaces the wait between attempts.
func WithBackoffSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(i *Interactor) { i.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(i *Interactor) { i.now = now }
}

func WithScreenshotDir(dir string) Option {
	return func(i *Interactor) { i.screenshotDir = dir }
}

// WithTestName tags log lines with the running test.
func WithTestName(name string) Option {
	return func(i *Interactor) { i.testName = name }
}

func New(d browser.Driver, cfg *config.Store, opts ...Option) *Interactor {
	i := &Interactor{
		driver:        d,
		cfg:           cfg,
		log:           cfg.Logger(),
		policy:        DefaultPolicy(),
		sleep:         sleepContext,
		now:           time.Now,
		screenshotDir: filepath.Join("test-results", "screenshots"),
	}
	for _, o := range opts {
		o(i)
	}
	if i.metrics == nil {
		i.metrics = DefaultMetrics()
	}
	return i
}

func (i *Interactor) Driver() browser.Driver { return i.driver }

func (i *Interactor) Config() *config.Store { return i.cfg }

func (i *Interactor) Logger() *logger.Logger { return i.log }

func (i *Interactor) TestName() string { return i.testName }

type callOptions struct {
	attempts int
	timeout  time.Duration
}

// CallOption adjusts a single primitive call.
type CallOption func(*callOptions)

// Attempts overrides the number of attempts of a required action.
func Attempts(n int) CallOption {
	return func(c *callOptions) { c.attempts = n }
}

// Timeout overrides the per-attempt timeout, which defaults to the
// configured global timeout.
func Timeout(d time.Duration) CallOption {
	return func(c *callOptions) { c.timeout = d }
}

func (i *Interactor) call(opts []CallOption) callOptions {
	c := callOptions{attempts: i.policy.MaxAttempts, timeout: i.cfg.Timeout()}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func (i *Interactor) classify(action string, t string, timeout time.Duration, err error) error {
	if browser.IsTimeout(err) {
		return &TimeoutError{Action: action, Target: t, Timeout: timeout, Err: err}
	}
	return err
}

func (i *Interactor) ctx(c logger.Context) logger.Context {
	if c.TestName == "" {
		c.TestName = i.testName
	}
	return c
}

// required runs fn under the retry policy. verb names the element action in
// logs (click, fill), name the primitive (safeClick).
func (i *Interactor) required(ctx context.Context, verb, name string, t browser.Target, opts []CallOption, fn func(context.Context) error) error {
	c := i.call(opts)
	start := i.now()

	out := Retry(ctx, Policy{MaxAttempts: c.attempts, Backoff: i.policy.Backoff},
		func(ctx context.Context, _ int) (struct{}, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			began := i.now()
			err := fn(attemptCtx)
			i.log.ElementInteraction(t.String(), verb, err == nil)
			i.metrics.attempt(name, err == nil)
			if err != nil {
				return struct{}{}, i.classify(name, t.String(), c.timeout, err)
			}
			i.log.PerformanceMetrics(name, i.now().Sub(began))
			return struct{}{}, nil
		},
		WithSleep(i.sleep),
		OnRetry(func(n int, err error) { i.log.Retry(name, n, err) }),
	)
	i.metrics.observe(name, i.now().Sub(start))

	if out.State == Succeeded {
		return nil
	}
	i.metrics.exhaust(name)
	i.log.Error(fmt.Sprintf("Failed to %s element after %d retries: %s", verb, out.Attempts, t), i.ctx(logger.Context{
		Action:     strings.ToUpper(verb),
		RetryCount: out.Attempts,
		Err:        out.Err,
	}))
	return &ExhaustedError{Action: name, Target: t.String(), Attempts: out.Attempts, Err: out.Err}
}

// SafeClick clicks t, retrying on failure.
func (i *Interactor) SafeClick(ctx context.Context, t browser.Target, opts ...CallOption) error {
	return i.required(ctx, "click", "safeClick", t, opts, func(ctx context.Context) error {
		return i.driver.Click(ctx, t)
	})
}

// SafeFill replaces the value of t, retrying on failure.
func (i *Interactor) SafeFill(ctx context.Context, t browser.Target, value string, opts ...CallOption) error {
	return i.required(ctx, "fill", "safeFill", t, opts, func(ctx context.Context) error {
		return i.driver.Fill(ctx, t, value)
	})
}

// SafeSelect picks the option with value in the select t, retrying on failure.
func (i *Interactor) SafeSelect(ctx context.Context, t browser.Target, value string, opts ...CallOption) error {
	return i.required(ctx, "select", "safeSelect", t, opts, func(ctx context.Context) error {
		return i.driver.SelectOption(ctx, t, value)
	})
}

// SafePress presses key while t has focus, retrying on failure.
func (i *Interactor) SafePress(ctx context.Context, t browser.Target, key string, opts ...CallOption) error {
	return i.required(ctx, "press", "safePress", t, opts, func(ctx context.Context) error {
		return i.driver.Press(ctx, t, key)
	})
}

// WaitForElement waits for t to be visible and returns the error if it is
// not within the timeout.
func (i *Interactor) WaitForElement(ctx context.Context, t browser.Target, opts ...CallOption) error {
	c := i.call(opts)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := i.now()
	err := i.driver.WaitVisible(ctx, t)
	d := i.now().Sub(start)
	i.metrics.observe("waitForElement", d)
	i.log.ElementInteraction(t.String(), "waitForElement", err == nil)
	if err != nil {
		return i.classify("waitForElement", t.String(), c.timeout, err)
	}
	i.log.PerformanceMetrics("waitForElement", d)
	return nil
}

// ObserveElement waits for t to be visible, reporting NotObserved instead of
// an error when it is not. The element may be present but hidden.
func (i *Interactor) ObserveElement(ctx context.Context, t browser.Target, opts ...CallOption) Visibility {
	v := Observed
	if err := i.WaitForElement(ctx, t, opts...); err != nil {
		v = NotObserved
		i.log.Debug("Element not observed, continuing: "+t.String(), i.ctx(logger.Context{Action: "OBSERVE", Err: err}))
	}
	i.metrics.advise("observeElement", v)
	return v
}

// WaitForNetworkIdle waits for the page's network to go quiet. Failure is
// logged and returned.
func (i *Interactor) WaitForNetworkIdle(ctx context.Context, opts ...CallOption) error {
	return i.loadState(ctx, "waitForNetworkIdle", "NETWORK_IDLE", "Failed to wait for network idle", opts)
}

// WaitForPageLoad is WaitForNetworkIdle with the global timeout.
func (i *Interactor) WaitForPageLoad(ctx context.Context) error {
	return i.loadState(ctx, "waitForPageLoad", "PAGE_LOAD", "Failed to wait for page load", nil)
}

func (i *Interactor) loadState(ctx context.Context, name, action, failMsg string, opts []CallOption) error {
	c := i.call(opts)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := i.now()
	err := i.driver.WaitForLoadState(ctx, browser.LoadStateNetworkIdle)
	d := i.now().Sub(start)
	i.metrics.observe(name, d)
	if err != nil {
		err = i.classify(name, "", c.timeout, err)
		i.log.Error(failMsg, i.ctx(logger.Context{Action: action, Err: err}))
		return err
	}
	i.log.PerformanceMetrics(name, d)
	return nil
}

// NavigateTo loads url and waits for state.
func (i *Interactor) NavigateTo(ctx context.Context, url string, state browser.LoadState, opts ...CallOption) error {
	c := i.call(opts)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := i.now()
	err := i.driver.Goto(ctx, url, state)
	d := i.now().Sub(start)
	i.metrics.observe("navigate", d)
	if err != nil {
		err = i.classify("navigate", url, c.timeout, err)
		i.log.Error("Failed to navigate to "+url, i.ctx(logger.Context{Action: "NAVIGATE", PageURL: url, Err: err}))
		return err
	}
	i.log.PageAction("navigate", url, d)
	return nil
}

// GetElementText waits for t to be visible and returns its text content.
func (i *Interactor) GetElementText(ctx context.Context, t browser.Target, opts ...CallOption) (string, error) {
	if err := i.WaitForElement(ctx, t, opts...); err != nil {
		i.log.ElementInteraction(t.String(), "getText", false)
		return "", err
	}
	c := i.call(opts)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := i.driver.Text(ctx, t)
	i.log.ElementInteraction(t.String(), "getText", err == nil)
	if err != nil {
		return "", i.classify("getText", t.String(), c.timeout, err)
	}
	return text, nil
}

// ElementExists reports whether t is attached to the document within five
// seconds, visible or not.
func (i *Interactor) ElementExists(ctx context.Context, t browser.Target, opts ...CallOption) bool {
	c := callOptions{timeout: existsTimeout}
	for _, o := range opts {
		o(&c)
	}
	v := i.poll(ctx, c.timeout, func(ctx context.Context) (bool, error) {
		n, err := i.driver.Count(ctx, t)
		return n > t.Index, err
	})
	i.log.ElementInteraction(t.String(), "exists", v == Observed)
	return v == Observed
}

// WaitUntil polls cond until it reports true or timeout elapses. Errors from
// cond count as not yet true.
func (i *Interactor) WaitUntil(ctx context.Context, timeout time.Duration, cond func(context.Context) (bool, error)) Visibility {
	v := i.poll(ctx, timeout, cond)
	i.metrics.advise("waitUntil", v)
	return v
}

func (i *Interactor) poll(ctx context.Context, timeout time.Duration, cond func(context.Context) (bool, error)) Visibility {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if ok, err := cond(ctx); err == nil && ok {
			return Observed
		}
		select {
		case <-ctx.Done():
			return NotObserved
		case <-ticker.C:
		}
	}
}

// TakeScreenshot saves a full-page PNG named after name and the current time
// and returns its path.
func (i *Interactor) TakeScreenshot(ctx context.Context, name string) (string, error) {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(i.now().UTC().Format("2006-01-02T15:04:05.000Z"))
	path := filepath.Join(i.screenshotDir, fmt.Sprintf("%s-%s.png", name, ts))

	c := i.call(nil)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := i.driver.Screenshot(ctx, path); err != nil {
		i.log.Error("Failed to take screenshot", i.ctx(logger.Context{Action: "SCREENSHOT", Err: err}))
		return "", err
	}
	i.log.ScreenshotTaken(name, path)
	return path, nil
}
