// Package browser drives a single browser tab through one of several
// automation backends behind a common Driver interface.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// Driver is one browser tab. Every blocking call is bounded by the deadline of
// ctx; a call without a deadline waits until ctx is cancelled.
type Driver interface {
	Goto(ctx context.Context, url string, state LoadState) error
	WaitForLoadState(ctx context.Context, state LoadState) error

	Click(ctx context.Context, t Target) error
	Fill(ctx context.Context, t Target, value string) error
	SelectOption(ctx context.Context, t Target, value string) error
	Press(ctx context.Context, t Target, key string) error
	WaitVisible(ctx context.Context, t Target) error

	Text(ctx context.Context, t Target) (string, error)
	InputValue(ctx context.Context, t Target) (string, error)
	IsEnabled(ctx context.Context, t Target) (bool, error)
	IsChecked(ctx context.Context, t Target) (bool, error)

	// AllTexts and Count consider every match of the target; Index is ignored.
	AllTexts(ctx context.Context, t Target) ([]string, error)
	Count(ctx context.Context, t Target) (int, error)

	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error

	Close() error
}

// VideoRecorder is implemented by drivers that record the tab. The video is
// finalized by Close; both methods are meant to be called after it.
type VideoRecorder interface {
	VideoPath() (string, error)
	DiscardVideo() error
}

// TraceRecorder is implemented by drivers launched with LaunchOptions.Trace.
// Either method ends the trace and must be called before Close.
type TraceRecorder interface {
	SaveTrace(path string) error
	DiscardTrace() error
}

// ErrTimeout marks a driver call that did not settle before its deadline.
var ErrTimeout = errors.New("browser: timeout")

// IsTimeout reports whether err is a driver timeout or a context deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Target addresses an element the way a locator does: every match of the CSS
// Selector, narrowed to those whose text contains HasText (case-insensitive),
// then the Index-th of those.
type Target struct {
	Selector string
	HasText  string
	Index    int
}

func Sel(selector string) Target {
	return Target{Selector: selector}
}

func (t Target) WithText(text string) Target {
	t.HasText = text
	return t
}

func (t Target) Nth(i int) Target {
	t.Index = i
	return t
}

// Simple reports whether the target is a plain first-match CSS query.
func (t Target) Simple() bool {
	return t.HasText == "" && t.Index == 0
}

func (t Target) String() string {
	var b strings.Builder
	b.WriteString(t.Selector)
	if t.HasText != "" {
		fmt.Fprintf(&b, " >> text=%q", t.HasText)
	}
	if t.Index > 0 {
		fmt.Fprintf(&b, " >> nth=%d", t.Index)
	}
	return b.String()
}

// MatchText is the HasText predicate shared by the drivers.
func MatchText(text, want string) bool {
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(want))
}
