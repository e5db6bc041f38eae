package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
	DriverRod        = "rod"
)

type LaunchOptions struct {
	Driver   string
	Headless bool
	SlowMo   time.Duration
	Width    int
	Height   int
	// VideoDir enables recording when the driver supports it.
	VideoDir string
	// Trace starts a trace when the driver supports it.
	Trace bool
	// Logf receives driver diagnostics.
	Logf func(format string, args ...any)
}

func (o LaunchOptions) viewport() (int, int) {
	w, h := o.Width, o.Height
	if w == 0 {
		w = 1280
	}
	if h == 0 {
		h = 720
	}
	return w, h
}

func (o LaunchOptions) logf() func(string, ...any) {
	if o.Logf == nil {
		return func(string, ...any) {}
	}
	return o.Logf
}

// Launch starts a browser with the named driver and opens one tab.
func Launch(ctx context.Context, opts LaunchOptions) (Driver, error) {
	switch opts.Driver {
	case DriverPlaywright, "":
		return launchPlaywright(opts)
	case DriverChromedp:
		return launchChromedp(ctx, opts)
	case DriverRod:
		return launchRod(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown browser driver: %s", opts.Driver)
	}
}

func writeScreenshot(path string, buf []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}
