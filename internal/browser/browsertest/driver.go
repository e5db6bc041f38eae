// Package browsertest provides an in-memory browser.Driver for exercising
// interaction code without a browser.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"onlytests-e2e/internal/browser"
)

// Element is one node of the fake document.
type Element struct {
	Text     string
	Value    string
	Hidden   bool
	Disabled bool
	Checked  bool
}

// Driver is a scripted tab. Elements are keyed by CSS selector verbatim;
// targets with HasText and Index are resolved the way the real drivers do.
// Missing or hidden elements block until the context expires.
type Driver struct {
	mu       sync.Mutex
	elements map[string][]*Element
	failures map[string][]error
	routes   map[string]func(*Driver)
	onClick  map[string]func(*Driver)
	calls    []string

	url     string
	title   string
	content string
	closed  bool

	videoPath string
	tracing   bool
}

func New() *Driver {
	return &Driver{
		elements: make(map[string][]*Element),
		failures: make(map[string][]error),
		routes:   make(map[string]func(*Driver)),
		onClick:  make(map[string]func(*Driver)),
		url:      "about:blank",
	}
}

var (
	_ browser.Driver        = (*Driver)(nil)
	_ browser.VideoRecorder = (*Driver)(nil)
	_ browser.TraceRecorder = (*Driver)(nil)
)

// Set replaces every element matching selector.
func (d *Driver) Set(selector string, els ...Element) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := make([]*Element, len(els))
	for i := range els {
		e := els[i]
		list[i] = &e
	}
	d.elements[selector] = list
	return d
}

// SetText is Set with visible, enabled elements carrying texts.
func (d *Driver) SetText(selector string, texts ...string) *Driver {
	els := make([]Element, len(texts))
	for i, t := range texts {
		els[i] = Element{Text: t}
	}
	return d.Set(selector, els...)
}

func (d *Driver) Remove(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, selector)
}

// FailNext makes the next len(errs) calls of op on t fail with errs in order.
// op is the Driver method name, e.g. "Click".
func (d *Driver) FailNext(op string, t browser.Target, errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := op + " " + t.String()
	d.failures[k] = append(d.failures[k], errs...)
}

// Route runs fn whenever Goto loads url.
func (d *Driver) Route(url string, fn func(*Driver)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[url] = fn
}

// OnClick runs fn after a successful click on selector.
func (d *Driver) OnClick(selector string, fn func(*Driver)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClick[selector] = fn
}

func (d *Driver) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

func (d *Driver) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

func (d *Driver) SetContent(html string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = html
}

// Element returns the element t resolves to, or nil.
func (d *Driver) Element(t browser.Target) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookup(t)
}

// Calls returns how many times op was invoked on t.
func (d *Driver) Calls(op string, t browser.Target) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := op + " " + t.String()
	n := 0
	for _, c := range d.calls {
		if c == k {
			n++
		}
	}
	return n
}

// History returns every recorded call in order.
func (d *Driver) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) matches(t browser.Target) []*Element {
	var out []*Element
	for _, e := range d.elements[t.Selector] {
		if browser.MatchText(e.Text, t.HasText) {
			out = append(out, e)
		}
	}
	return out
}

func (d *Driver) lookup(t browser.Target) *Element {
	m := d.matches(t)
	if t.Index < len(m) {
		return m[t.Index]
	}
	return nil
}

// begin records the call and pops a scripted failure, if any.
func (d *Driver) begin(op string, t browser.Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := op + " " + t.String()
	d.calls = append(d.calls, k)
	if q := d.failures[k]; len(q) > 0 {
		d.failures[k] = q[1:]
		return q[0]
	}
	return nil
}

// await blocks until t resolves (and is visible, if visible is set) or ctx
// is done. A target that never appears surfaces as ctx.Err().
func (d *Driver) await(ctx context.Context, t browser.Target, visible bool) (*Element, error) {
	d.mu.Lock()
	e := d.lookup(t)
	d.mu.Unlock()
	if e != nil && (!visible || !e.Hidden) {
		return e, nil
	}
	<-ctx.Done()
	return nil, fmt.Errorf("waiting for %s: %w", t, ctx.Err())
}

func (d *Driver) Goto(ctx context.Context, url string, state browser.LoadState) error {
	if err := d.begin("Goto", browser.Sel(url)); err != nil {
		return err
	}
	d.mu.Lock()
	d.url = url
	fn := d.routes[url]
	d.mu.Unlock()
	if fn != nil {
		fn(d)
	}
	return nil
}

func (d *Driver) WaitForLoadState(ctx context.Context, state browser.LoadState) error {
	return d.begin("WaitForLoadState", browser.Sel(string(state)))
}

func (d *Driver) Click(ctx context.Context, t browser.Target) error {
	if err := d.begin("Click", t); err != nil {
		return err
	}
	e, err := d.await(ctx, t, true)
	if err != nil {
		return err
	}
	if e.Disabled {
		return fmt.Errorf("element %s is disabled", t)
	}
	d.mu.Lock()
	fn := d.onClick[t.Selector]
	d.mu.Unlock()
	if fn != nil {
		fn(d)
	}
	return nil
}

func (d *Driver) Fill(ctx context.Context, t browser.Target, value string) error {
	if err := d.begin("Fill", t); err != nil {
		return err
	}
	e, err := d.await(ctx, t, true)
	if err != nil {
		return err
	}
	d.mu.Lock()
	e.Value = value
	d.mu.Unlock()
	return nil
}

func (d *Driver) SelectOption(ctx context.Context, t browser.Target, value string) error {
	return d.Fill(ctx, t, value)
}

func (d *Driver) Press(ctx context.Context, t browser.Target, key string) error {
	if err := d.begin("Press", t); err != nil {
		return err
	}
	_, err := d.await(ctx, t, true)
	return err
}

func (d *Driver) WaitVisible(ctx context.Context, t browser.Target) error {
	if err := d.begin("WaitVisible", t); err != nil {
		return err
	}
	_, err := d.await(ctx, t, true)
	return err
}

func (d *Driver) Text(ctx context.Context, t browser.Target) (string, error) {
	if err := d.begin("Text", t); err != nil {
		return "", err
	}
	e, err := d.await(ctx, t, false)
	if err != nil {
		return "", err
	}
	return e.Text, nil
}

func (d *Driver) InputValue(ctx context.Context, t browser.Target) (string, error) {
	if err := d.begin("InputValue", t); err != nil {
		return "", err
	}
	e, err := d.await(ctx, t, false)
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (d *Driver) IsEnabled(ctx context.Context, t browser.Target) (bool, error) {
	if err := d.begin("IsEnabled", t); err != nil {
		return false, err
	}
	e, err := d.await(ctx, t, false)
	if err != nil {
		return false, err
	}
	return !e.Disabled, nil
}

func (d *Driver) IsChecked(ctx context.Context, t browser.Target) (bool, error) {
	if err := d.begin("IsChecked", t); err != nil {
		return false, err
	}
	e, err := d.await(ctx, t, false)
	if err != nil {
		return false, err
	}
	return e.Checked, nil
}

func (d *Driver) AllTexts(ctx context.Context, t browser.Target) ([]string, error) {
	if err := d.begin("AllTexts", t); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var texts []string
	for _, e := range d.matches(t) {
		texts = append(texts, e.Text)
	}
	return texts, nil
}

func (d *Driver) Count(ctx context.Context, t browser.Target) (int, error) {
	if err := d.begin("Count", t); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.matches(t)), nil
}

func (d *Driver) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *Driver) Content(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content, nil
}

// pngHeader is enough for the file to be recognised as a PNG.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func (d *Driver) Screenshot(ctx context.Context, path string) error {
	if err := d.begin("Screenshot", browser.Sel(path)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, pngHeader, 0o644)
}

// Record mimics a launch with opts: a video file appears in opts.VideoDir and
// a trace starts when opts.Trace is set.
func (d *Driver) Record(opts browser.LaunchOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tracing = opts.Trace
	if opts.VideoDir == "" {
		return nil
	}
	if err := os.MkdirAll(opts.VideoDir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(opts.VideoDir, "*.webm")
	if err != nil {
		return err
	}
	d.videoPath = f.Name()
	return f.Close()
}

func (d *Driver) Tracing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracing
}

func (d *Driver) VideoPath() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.videoPath == "" {
		return "", errors.New("video recording is off")
	}
	return d.videoPath, nil
}

func (d *Driver) DiscardVideo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.videoPath == "" {
		return nil
	}
	err := os.Remove(d.videoPath)
	d.videoPath = ""
	return err
}

func (d *Driver) SaveTrace(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("browser is closed")
	}
	if !d.tracing {
		return errors.New("tracing is off")
	}
	d.tracing = false
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("PK\x05\x06"), 0o644)
}

func (d *Driver) DiscardTrace() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("browser is closed")
	}
	d.tracing = false
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("already closed")
	}
	d.closed = true
	return nil
}
