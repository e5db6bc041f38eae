// Package fixture wires configuration, browsers, interaction primitives and
// page objects into per-test sessions, and keeps run-level bookkeeping.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/config"
	"onlytests-e2e/internal/logger"
	"onlytests-e2e/internal/preflight"
)

const DefaultResultsDir = "test-results"

// Artifact subdirectories created under the results directory.
const (
	ScreenshotsDir = "screenshots"
	VideosDir      = "videos"
	TracesDir      = "traces"
	LogsDir        = "logs"
)

// Launcher opens a browser tab. browser.Launch is the default.
type Launcher func(ctx context.Context, opts browser.LaunchOptions) (browser.Driver, error)

// RunMetrics aggregates recorded test results.
type RunMetrics struct {
	Total           int
	Passed          int
	Failed          int
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

// SuccessRate is the passed share in percent, 0 when nothing ran.
func (m RunMetrics) SuccessRate() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Passed) / float64(m.Total) * 100
}

// Status is a snapshot of the environment a run executes against.
type Status struct {
	Initialized  bool   `json:"initialized"`
	RunID        string `json:"runId"`
	Environment  string `json:"environment"`
	BaseURL      string `json:"baseUrl"`
	IsCI         bool   `json:"isCI"`
	IsProduction bool   `json:"isProduction"`
	IsLocal      bool   `json:"isLocal"`
	Headless     bool   `json:"headless"`
	Parallel     bool   `json:"parallel"`
	Workers      int    `json:"workers"`
	TimeoutMs    int64  `json:"timeout"`
	Retries      int    `json:"retries"`
}

// Setup is the run-wide test environment. It is safe for concurrent use by
// parallel tests.
type Setup struct {
	mu      sync.Mutex
	cfg     *config.Store
	log     *logger.Logger
	root    string
	launch  Launcher
	runID   string
	ready   bool
	metrics RunMetrics
	sink    *os.File
}

type SetupOption func(*Setup)

// WithResultsDir roots the artifact directories at dir.
func WithResultsDir(dir string) SetupOption {
	return func(s *Setup) { s.root = dir }
}

func WithLauncher(l Launcher) SetupOption {
	return func(s *Setup) { s.launch = l }
}

func NewSetup(cfg *config.Store, opts ...SetupOption) *Setup {
	s := &Setup{
		cfg:    cfg,
		log:    cfg.Logger(),
		root:   DefaultResultsDir,
		launch: browser.Launch,
		runID:  uuid.NewString(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Initialize validates the configuration, logs the environment, creates the
// artifact directories and starts the JSON event log. Calling it again on a
// ready Setup is a no-op.
func (s *Setup) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		s.log.Info("Test environment already initialized")
		return nil
	}
	s.log.Info("Initializing test environment...")

	if err := preflight.ValidateAll(s.cfg); err != nil {
		s.log.Error("Failed to initialize test environment", logger.Context{Action: "INIT", Err: err})
		return err
	}

	s.logEnvironment()

	if err := s.createDirs(); err != nil {
		s.log.Error("Failed to initialize test environment", logger.Context{Action: "INIT", Err: err})
		return err
	}
	if err := s.openSink(); err != nil {
		s.log.Error("Failed to initialize test environment", logger.Context{Action: "INIT", Err: err})
		return err
	}

	s.metrics = RunMetrics{}
	s.log.Info("Performance monitoring initialized")

	s.ready = true
	s.log.Info("Test environment initialized successfully")
	return nil
}

func (s *Setup) logEnvironment() {
	cfg := s.cfg.Config()
	s.log.EnvironmentInfo(s.cfg.Environment(), s.cfg.IsCI(), cfg.Headless, cfg.Parallel, cfg.Workers)
	s.log.Configuration(cfg.BaseURL)

	summary, err := json.MarshalIndent(preflight.Summarize(s.cfg), "", "  ")
	if err == nil {
		s.log.Info("Configuration summary:", logger.Context{Action: "CONFIG_SUMMARY", PageURL: string(summary)})
	}
}

func (s *Setup) createDirs() error {
	s.log.Info("Setting up test directories...")
	for _, d := range []string{"", ScreenshotsDir, VideosDir, TracesDir, LogsDir} {
		dir := filepath.Join(s.root, d)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		s.log.Debug("Created directory: " + dir)
	}
	s.log.Info("Test directories setup completed")
	return nil
}

func (s *Setup) openSink() error {
	path := filepath.Join(s.root, LogsDir, s.runID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	s.sink = f
	s.log.AttachJSONSink(f)
	return nil
}

func (s *Setup) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Setup) RunID() string { return s.runID }

func (s *Setup) Config() *config.Store { return s.cfg }

func (s *Setup) Logger() *logger.Logger { return s.log }

// Dir returns the path of an artifact subdirectory.
func (s *Setup) Dir(kind string) string { return filepath.Join(s.root, kind) }

// EventLogPath is where the JSON event log of this run is written.
func (s *Setup) EventLogPath() string {
	return filepath.Join(s.root, LogsDir, s.runID+".jsonl")
}

// LaunchOptions derives browser options from the live configuration.
func (s *Setup) LaunchOptions() browser.LaunchOptions {
	cfg := s.cfg.Config()
	o := browser.LaunchOptions{
		Driver:   cfg.Driver,
		Headless: cfg.Headless,
		SlowMo:   cfg.SlowMo,
		Trace:    cfg.TraceOnFailure,
		Logf: func(format string, args ...any) {
			s.log.Debug(fmt.Sprintf(format, args...), logger.Context{Action: "DRIVER"})
		},
	}
	if cfg.VideoOnFailure {
		o.VideoDir = s.Dir(VideosDir)
	}
	return o
}

// Release closes a tab. The trace and video of a kept run are saved under the
// results directory; otherwise they are deleted.
func (s *Setup) Release(d browser.Driver, name string, keep bool) {
	if tr, ok := d.(browser.TraceRecorder); ok && s.cfg.TraceOnFailure() {
		if keep {
			path := filepath.Join(s.Dir(TracesDir), fmt.Sprintf("%s-%d.zip", ArtifactName(name), time.Now().UnixMilli()))
			if err := tr.SaveTrace(path); err != nil {
				s.log.Warn("Failed to save trace", logger.Context{TestName: name, Err: err})
			} else {
				s.log.TraceSaved(ArtifactName(name), path)
			}
		} else if err := tr.DiscardTrace(); err != nil {
			s.log.Debug("Failed to discard trace", logger.Context{TestName: name, Err: err})
		}
	}

	if err := d.Close(); err != nil {
		s.log.Warn("Failed to close browser", logger.Context{TestName: name, Err: err})
	}

	// Recorded video is only finalized once the tab is closed.
	rec, ok := d.(browser.VideoRecorder)
	if !ok || !s.cfg.VideoOnFailure() {
		return
	}
	if !keep {
		if err := rec.DiscardVideo(); err != nil {
			s.log.Debug("Failed to discard video", logger.Context{TestName: name, Err: err})
		}
		return
	}
	if path, err := rec.VideoPath(); err == nil && path != "" {
		s.log.VideoRecorded(ArtifactName(name), path)
	}
}

// Launch opens a new browser tab with the configured driver.
func (s *Setup) Launch(ctx context.Context) (browser.Driver, error) {
	return s.launch(ctx, s.LaunchOptions())
}

// RecordResult folds one test outcome into the run metrics.
func (s *Setup) RecordResult(name string, success bool, d time.Duration) {
	s.mu.Lock()
	m := &s.metrics
	m.Total++
	m.TotalDuration += d
	if success {
		m.Passed++
	} else {
		m.Failed++
	}
	m.AverageDuration = m.TotalDuration / time.Duration(m.Total)
	s.mu.Unlock()

	s.log.Debug("Updated test metrics for: "+name, logger.Context{Action: "METRICS_UPDATE", Duration: d})
}

func (s *Setup) Metrics() RunMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// LogSummary logs the run metrics. Nothing is logged before the first result.
func (s *Setup) LogSummary() {
	m := s.Metrics()
	if m.Total == 0 {
		return
	}
	summary, err := json.MarshalIndent(map[string]any{
		"totalTests":      m.Total,
		"passedTests":     m.Passed,
		"failedTests":     m.Failed,
		"successRate":     fmt.Sprintf("%.2f%%", m.SuccessRate()),
		"totalDuration":   fmt.Sprintf("%dms", m.TotalDuration.Milliseconds()),
		"averageDuration": fmt.Sprintf("%dms", m.AverageDuration.Milliseconds()),
	}, "", "  ")
	if err != nil {
		return
	}
	s.log.Info("Test execution summary:", logger.Context{Action: "TEST_SUMMARY", PageURL: string(summary)})
}

// Cleanup logs the summary, closes the event log and clears the ready flag.
func (s *Setup) Cleanup() error {
	s.log.Info("Cleaning up test environment...")
	s.LogSummary()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false

	var err error
	if s.sink != nil {
		s.log.AttachJSONSink(nil)
		err = s.sink.Close()
		s.sink = nil
	}
	s.log.Info("Test environment cleanup completed")
	return err
}

func (s *Setup) Status() Status {
	cfg := s.cfg.Config()
	return Status{
		Initialized:  s.Ready(),
		RunID:        s.runID,
		Environment:  s.cfg.Environment(),
		BaseURL:      cfg.BaseURL,
		IsCI:         s.cfg.IsCI(),
		IsProduction: s.cfg.IsProduction(),
		IsLocal:      s.cfg.IsLocal(),
		Headless:     cfg.Headless,
		Parallel:     cfg.Parallel,
		Workers:      cfg.Workers,
		TimeoutMs:    cfg.Timeout.Milliseconds(),
		Retries:      cfg.Retries,
	}
}
