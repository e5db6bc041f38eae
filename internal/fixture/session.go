package fixture

import (
	"context"
	"regexp"
	"testing"
	"time"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/interact"
	"onlytests-e2e/internal/pages"
)

const artifactTimeout = 30 * time.Second

// Session is one test's browser tab with everything built on top of it.
type Session struct {
	Driver     browser.Driver
	Interactor *interact.Interactor
	Pages      *pages.Factory
	Data       *TestData

	t     testing.TB
	setup *Setup
	name  string
	start time.Time
}

type SessionOption func(*sessionOptions)

type sessionOptions struct {
	interact []interact.Option
}

// WithInteractOptions passes opts to the session's Interactor.
func WithInteractOptions(opts ...interact.Option) SessionOption {
	return func(o *sessionOptions) { o.interact = append(o.interact, opts...) }
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactName turns a test name into something safe for a file name.
func ArtifactName(testName string) string {
	return unsafeName.ReplaceAllString(testName, "_")
}

// NewSession initializes setup if needed, opens a browser tab and registers
// its teardown with t. On failure the teardown keeps a screenshot, trace and
// video when the configuration asks for them; a passing test keeps none.
func NewSession(t testing.TB, setup *Setup, opts ...SessionOption) *Session {
	t.Helper()

	if err := setup.Initialize(); err != nil {
		t.Fatalf("initialize test environment: %v", err)
	}
	data, err := LoadTestData()
	if err != nil {
		t.Fatalf("load test data: %v", err)
	}

	var so sessionOptions
	for _, o := range opts {
		o(&so)
	}

	d, err := setup.Launch(t.Context())
	if err != nil {
		t.Fatalf("launch browser: %v", err)
	}

	name := t.Name()
	base := []interact.Option{
		interact.WithLogger(setup.Logger()),
		interact.WithTestName(name),
		interact.WithScreenshotDir(setup.Dir(ScreenshotsDir)),
	}
	ix := interact.New(d, setup.Config(), append(base, so.interact...)...)

	s := &Session{
		Driver:     d,
		Interactor: ix,
		Pages:      pages.NewFactory(ix),
		Data:       data,
		t:          t,
		setup:      setup,
		name:       name,
		start:      time.Now(),
	}
	setup.Logger().TestStart(name)
	t.Cleanup(s.finish)
	return s
}

// Context is cancelled when the test ends.
func (s *Session) Context() context.Context { return s.t.Context() }

func (s *Session) finish() {
	success := !s.t.Failed()
	log := s.setup.Logger()

	if !success && s.setup.Config().ScreenshotOnFailure() {
		ctx, cancel := context.WithTimeout(context.Background(), artifactTimeout)
		_, _ = s.Interactor.TakeScreenshot(ctx, ArtifactName(s.name))
		cancel()
	}
	s.setup.Release(s.Driver, s.name, !success)

	d := time.Since(s.start)
	log.TestEnd(s.name, d, success)
	s.setup.RecordResult(s.name, success, d)
}
