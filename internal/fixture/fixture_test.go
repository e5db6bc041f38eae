package fixture

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/browser/browsertest"
	"onlytests-e2e/internal/config"
	"onlytests-e2e/internal/interact"
	"onlytests-e2e/internal/logger"
	"onlytests-e2e/internal/pages"
)

type launched struct {
	mu      sync.Mutex
	drivers []*browsertest.Driver
	prepare func(*browsertest.Driver)
}

func (l *launched) launch(_ context.Context, opts browser.LaunchOptions) (browser.Driver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := browsertest.New()
	if err := d.Record(opts); err != nil {
		return nil, err
	}
	if l.prepare != nil {
		l.prepare(d)
	}
	l.drivers = append(l.drivers, d)
	return d, nil
}

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, k := range []string{"TEST_ENV", "LOCAL_BASE_URL", "LOCAL_API_URL", "TIMEOUT", "RETRIES", "WORKERS", "SLOW_MO", "BROWSER_DRIVER", "PARALLEL", "CI",
		"HEADLESS", "SCREENSHOT_ON_FAILURE", "VIDEO_ON_FAILURE", "TRACE_ON_FAILURE"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOCAL_BASE_URL", "http://localhost:3000")
	t.Setenv("LOCAL_API_URL", "http://localhost:3000/api")
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func newSetup(t *testing.T, env map[string]string) (*Setup, *launched, *bytes.Buffer) {
	t.Helper()
	setEnv(t, env)
	var logs bytes.Buffer
	l := logger.New(logger.WithOutput(&logs, &logs), logger.WithLevel(logger.LevelDebug), logger.WithDebug(true))
	store, err := config.Load(config.WithLogger(l))
	require.NoError(t, err)

	ld := &launched{}
	s := NewSetup(store, WithResultsDir(t.TempDir()), WithLauncher(ld.launch))
	t.Cleanup(func() { _ = s.Cleanup() })
	return s, ld, &logs
}

func quietInteract() []interact.Option {
	return []interact.Option{
		interact.WithMetrics(interact.NewMetrics(prometheus.NewRegistry())),
		interact.WithBackoffSleep(func(context.Context, time.Duration) error { return nil }),
	}
}

func TestInitializeCreatesArtifactDirs(t *testing.T) {
	s, _, logs := newSetup(t, nil)

	require.NoError(t, s.Initialize())

	for _, d := range []string{ScreenshotsDir, VideosDir, TracesDir, LogsDir} {
		assert.DirExists(t, s.Dir(d))
	}
	assert.FileExists(t, s.EventLogPath())
	assert.True(t, s.Ready())
	assert.Contains(t, logs.String(), "[ENV] Workers: 4")
	assert.Contains(t, logs.String(), "Test environment initialized successfully")
}

func TestInitializeIsIdempotent(t *testing.T) {
	s, _, logs := newSetup(t, nil)

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Initialize())

	assert.Contains(t, logs.String(), "Test environment already initialized")
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("Initializing test environment...")))
}

func TestInitializeToleratesExistingDirs(t *testing.T) {
	s, _, _ := newSetup(t, nil)
	require.NoError(t, os.MkdirAll(s.Dir(ScreenshotsDir), 0o755))

	assert.NoError(t, s.Initialize())
}

func TestInitializeFailsPreflight(t *testing.T) {
	s, _, _ := newSetup(t, nil)
	t.Setenv("LOCAL_API_URL", "")

	err := s.Initialize()

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "LOCAL_API_URL")
	assert.False(t, s.Ready())
}

func TestRecordResultAndSummary(t *testing.T) {
	s, _, logs := newSetup(t, nil)

	s.RecordResult("a", true, 100*time.Millisecond)
	s.RecordResult("b", false, 300*time.Millisecond)
	s.LogSummary()

	m := s.Metrics()
	assert.Equal(t, 2, m.Total)
	assert.Equal(t, 1, m.Passed)
	assert.Equal(t, 1, m.Failed)
	assert.Equal(t, 400*time.Millisecond, m.TotalDuration)
	assert.Equal(t, 200*time.Millisecond, m.AverageDuration)
	assert.InDelta(t, 50.0, m.SuccessRate(), 0.001)
	assert.Contains(t, logs.String(), `"successRate": "50.00%"`)
}

func TestSummarySkippedWithoutResults(t *testing.T) {
	s, _, logs := newSetup(t, nil)

	s.LogSummary()

	assert.NotContains(t, logs.String(), "Test execution summary")
	assert.Zero(t, RunMetrics{}.SuccessRate())
}

func TestCleanupClosesEventLog(t *testing.T) {
	s, _, _ := newSetup(t, nil)
	require.NoError(t, s.Initialize())
	s.Logger().Info("hello")

	require.NoError(t, s.Cleanup())
	s.Logger().Info("after cleanup")

	f, err := os.Open(s.EventLogPath())
	require.NoError(t, err)
	defer f.Close()

	var msgs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		msgs = append(msgs, ev["message"].(string))
	}
	assert.Contains(t, msgs, "hello")
	assert.NotContains(t, msgs, "after cleanup")
	assert.False(t, s.Ready())
}

func TestStatus(t *testing.T) {
	s, _, _ := newSetup(t, map[string]string{"WORKERS": "3"})
	require.NoError(t, s.Initialize())

	st := s.Status()

	assert.True(t, st.Initialized)
	assert.Equal(t, "local", st.Environment)
	assert.Equal(t, 3, st.Workers)
	assert.EqualValues(t, 30000, st.TimeoutMs)
	assert.Equal(t, s.RunID(), st.RunID)
}

func TestLimit(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want int
	}{
		{"workers", map[string]string{"WORKERS": "3"}, 3},
		{"ci", map[string]string{"WORKERS": "3", "CI": "true"}, 1},
		{"serial", map[string]string{"WORKERS": "3", "PARALLEL": "false"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newSetup(t, tt.env)
			assert.Equal(t, tt.want, s.Limit())
		})
	}
}

func TestBoundTestParallelism(t *testing.T) {
	f := flag.Lookup("test.parallel")
	require.NotNil(t, f)
	prev := f.Value.String()
	t.Cleanup(func() { _ = flag.Set("test.parallel", prev) })

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"workers", map[string]string{"WORKERS": "3"}, "3"},
		{"ci", map[string]string{"WORKERS": "3", "CI": "true"}, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newSetup(t, tt.env)

			require.NoError(t, s.BoundTestParallelism())
			assert.Equal(t, tt.want, f.Value.String())
		})
	}
}

func TestLaunchOptions(t *testing.T) {
	s, _, _ := newSetup(t, map[string]string{"BROWSER_DRIVER": "rod", "SLOW_MO": "50"})

	o := s.LaunchOptions()

	assert.Equal(t, "rod", o.Driver)
	assert.True(t, o.Headless)
	assert.Equal(t, 50*time.Millisecond, o.SlowMo)
	assert.Equal(t, s.Dir(VideosDir), o.VideoDir)
	assert.True(t, o.Trace)
	require.NotNil(t, o.Logf)
}

func TestLaunchOptionsForwardDriverLogs(t *testing.T) {
	s, _, logs := newSetup(t, map[string]string{"VIDEO_ON_FAILURE": "false", "TRACE_ON_FAILURE": "false"})

	o := s.LaunchOptions()
	o.Logf("target %s detached", "abc")

	assert.Empty(t, o.VideoDir)
	assert.False(t, o.Trace)
	assert.Contains(t, logs.String(), "[DRIVER] target abc detached")
}

func TestRunParallelBoundsConcurrency(t *testing.T) {
	s, ld, _ := newSetup(t, map[string]string{"WORKERS": "2"})

	var inFlight, peak atomic.Int32
	job := func(ctx context.Context, _ *pages.Factory) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}
	jobs := make([]Job, 6)
	for i := range jobs {
		jobs[i] = Job{Name: "job", Run: job}
	}

	results, err := RunParallel(context.Background(), s, jobs, quietInteract()...)

	require.NoError(t, err)
	assert.Len(t, results, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, ld.drivers, 6)
	for _, d := range ld.drivers {
		assert.True(t, d.Closed())
	}
	assert.Equal(t, 6, s.Metrics().Passed)
}

func TestRunParallelCollectsFailures(t *testing.T) {
	s, ld, _ := newSetup(t, nil)
	boom := errors.New("boom")
	jobs := []Job{
		{Name: "ok", Run: func(context.Context, *pages.Factory) error { return nil }},
		{Name: "bad/one", Run: func(context.Context, *pages.Factory) error { return boom }},
	}

	results, err := RunParallel(context.Background(), s, jobs, quietInteract()...)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad/one: boom")
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Contains(t, filepath.Base(results[1].Screenshot), "bad_one-")
	assert.FileExists(t, results[1].Screenshot)
	assert.Equal(t, 1, s.Metrics().Failed)
	assert.Len(t, ld.drivers, 1, "no retries outside CI")
	traces, err := os.ReadDir(s.Dir(TracesDir))
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Regexp(t, `^bad_one-\d+\.zip$`, traces[0].Name())
	videos, err := os.ReadDir(s.Dir(VideosDir))
	require.NoError(t, err)
	assert.Len(t, videos, 1, "only the failing job keeps its video")
}

func TestRunParallelRetriesFlakyJob(t *testing.T) {
	s, ld, logs := newSetup(t, map[string]string{"RETRIES": "1", "CI": "true"})
	var calls atomic.Int32
	jobs := []Job{{Name: "flaky", Run: func(context.Context, *pages.Factory) error {
		if calls.Add(1) == 1 {
			return errors.New("first run flakes")
		}
		return nil
	}}}

	results, err := RunParallel(context.Background(), s, jobs, quietInteract()...)

	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Empty(t, results[0].Screenshot)
	assert.Len(t, ld.drivers, 2)
	assert.Contains(t, logs.String(), "Retrying action: flaky")
	assert.Equal(t, 1, s.Metrics().Passed)
	traces, err := os.ReadDir(s.Dir(TracesDir))
	require.NoError(t, err)
	assert.Empty(t, traces, "the flaked attempt was not the last one")
}

func TestRunParallelRetriesAreBounded(t *testing.T) {
	s, ld, _ := newSetup(t, map[string]string{"RETRIES": "0", "CI": "true"})
	boom := errors.New("boom")

	_, err := RunParallel(context.Background(), s, []Job{{Name: "bad", Run: func(context.Context, *pages.Factory) error { return boom }}}, quietInteract()...)

	require.ErrorIs(t, err, boom)
	assert.Len(t, ld.drivers, 1)
}

func TestRunParallelRetriesOnlyInCI(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		launches int
	}{
		{"local", map[string]string{"RETRIES": "2"}, 1},
		{"ci", map[string]string{"RETRIES": "2", "CI": "true"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ld, _ := newSetup(t, tt.env)
			boom := errors.New("boom")

			_, err := RunParallel(context.Background(), s, []Job{{Name: "always-fails", Run: func(context.Context, *pages.Factory) error { return boom }}}, quietInteract()...)

			require.ErrorIs(t, err, boom)
			assert.Equal(t, tt.launches, s.Attempts())
			assert.Len(t, ld.drivers, tt.launches)
		})
	}
}

func TestSmokeJobs(t *testing.T) {
	s, ld, _ := newSetup(t, map[string]string{"WORKERS": "1"})
	ld.prepare = func(d *browsertest.Driver) {
		d.SetText("h1", "Welcome to OnlyTests")
		d.SetText("main", "content")
	}

	jobs := SmokeJobs()
	require.Len(t, jobs, 6)
	require.Equal(t, "smoke/home", jobs[1].Name)

	results, err := RunParallel(context.Background(), s, jobs[1:2], quietInteract()...)

	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Contains(t, ld.drivers[0].History(), "Goto http://localhost:3000")
}

type fakeTB struct {
	testing.TB
	failed   bool
	cleanups []func()
}

func (f *fakeTB) Failed() bool { return f.failed }

func (f *fakeTB) Cleanup(fn func()) { f.cleanups = append(f.cleanups, fn) }

func (f *fakeTB) Name() string { return "Test/Login Flow" }

func (f *fakeTB) Context() context.Context { return context.Background() }

func (f *fakeTB) runCleanups() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
}

func TestSessionLifecycle(t *testing.T) {
	s, ld, logs := newSetup(t, nil)
	tb := &fakeTB{TB: t}

	sess := NewSession(tb, s, WithInteractOptions(quietInteract()...))
	require.NotNil(t, sess.Pages)
	assert.Equal(t, []string{"Test Data Tools", "Utility Tools", "Templates"}, sess.Data.ExpectedContent.Sections)

	tb.runCleanups()

	assert.True(t, ld.drivers[0].Closed())
	assert.Contains(t, logs.String(), "Test started: Test/Login Flow")
	assert.Contains(t, logs.String(), "Test PASSED: Test/Login Flow")
	assert.Equal(t, 1, s.Metrics().Passed)
	for _, dir := range []string{ScreenshotsDir, VideosDir, TracesDir} {
		entries, err := os.ReadDir(s.Dir(dir))
		require.NoError(t, err)
		assert.Empty(t, entries, "passing test keeps nothing in %s", dir)
	}
	assert.False(t, ld.drivers[0].Tracing())
}

func TestSessionScreenshotOnFailure(t *testing.T) {
	s, ld, logs := newSetup(t, nil)
	tb := &fakeTB{TB: t}

	NewSession(tb, s, WithInteractOptions(quietInteract()...))
	tb.failed = true
	tb.runCleanups()

	entries, err := os.ReadDir(s.Dir(ScreenshotsDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^Test_Login_Flow-.*\.png$`, entries[0].Name())
	assert.True(t, ld.drivers[0].Closed())

	traces, err := os.ReadDir(s.Dir(TracesDir))
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Regexp(t, `^Test_Login_Flow-\d+\.zip$`, traces[0].Name())
	assert.Contains(t, logs.String(), "Trace saved: Test_Login_Flow")

	video, err := ld.drivers[0].VideoPath()
	require.NoError(t, err)
	assert.FileExists(t, video)
	assert.Contains(t, logs.String(), "Video recorded: Test_Login_Flow")
	assert.Contains(t, logs.String(), "Test FAILED: Test/Login Flow")
	assert.Equal(t, 1, s.Metrics().Failed)
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "TestHome_welcome_message", ArtifactName("TestHome/welcome message"))
}

func TestLoadTestData(t *testing.T) {
	td, err := LoadTestData()
	require.NoError(t, err)

	assert.Equal(t, "/tools/user-data", td.URLs.Tools.UserData)
	assert.Equal(t, "About OnlyTests", td.ExpectedContent.Titles["about"])
	assert.Equal(t, []int{1, 999, 1000}, td.TextGenerator.BoundaryValues)
	assert.Equal(t, 20, td.Tolerance(100))
}

func TestParseTestDataRejectsGarbage(t *testing.T) {
	_, err := ParseTestData([]byte("urls: [unterminated"))
	assert.Error(t, err)
}
