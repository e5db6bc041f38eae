package preflight

import (
	"onlytests-e2e/internal/config"
	"onlytests-e2e/internal/logger"
)

// Summary is a diagnostic snapshot of the resolved configuration. It carries
// no credentials.
type Summary struct {
	Environment         string `json:"environment"`
	BaseURL             string `json:"baseUrl"`
	APIURL              string `json:"apiUrl"`
	TimeoutMs           int64  `json:"timeout"`
	Retries             int    `json:"retries"`
	Headless            bool   `json:"headless"`
	Parallel            bool   `json:"parallel"`
	Workers             int    `json:"workers"`
	Driver              string `json:"driver"`
	ScreenshotOnFailure bool   `json:"screenshotOnFailure"`
	VideoOnFailure      bool   `json:"videoOnFailure"`
	TraceOnFailure      bool   `json:"traceOnFailure"`
	IsCI                bool   `json:"isCI"`
	IsProduction        bool   `json:"isProduction"`
	IsLocal             bool   `json:"isLocal"`
}

func Summarize(s *config.Store) Summary {
	cfg := s.Config()
	return Summary{
		Environment:         s.Environment(),
		BaseURL:             cfg.BaseURL,
		APIURL:              cfg.APIURL,
		TimeoutMs:           cfg.Timeout.Milliseconds(),
		Retries:             cfg.Retries,
		Headless:            cfg.Headless,
		Parallel:            cfg.Parallel,
		Workers:             cfg.Workers,
		Driver:              cfg.Driver,
		ScreenshotOnFailure: cfg.ScreenshotOnFailure,
		VideoOnFailure:      cfg.VideoOnFailure,
		TraceOnFailure:      cfg.TraceOnFailure,
		IsCI:                s.IsCI(),
		IsProduction:        s.IsProduction(),
		IsLocal:             s.IsLocal(),
	}
}

func loggerErr(err error) logger.Context {
	return logger.Context{Err: err}
}
