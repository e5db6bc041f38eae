package logger

import (
	"fmt"
	"time"
)

func (l *Logger) TestStart(testName string) {
	l.Info("Test started: "+testName, Context{TestName: testName})
}

func (l *Logger) TestEnd(testName string, d time.Duration, success bool) {
	status, action := "PASSED", "PASS"
	if !success {
		status, action = "FAILED", "FAIL"
	}
	l.Info(fmt.Sprintf("Test %s: %s", status, testName), Context{
		TestName: testName,
		Duration: d,
		Action:   action,
	})
}

func (l *Logger) PageAction(action, pageURL string, d time.Duration) {
	l.Debug("Page action: "+action, Context{Action: action, PageURL: pageURL, Duration: d})
}

// Retry records that attempt n of action failed and another attempt follows.
func (l *Logger) Retry(action string, n int, err error) {
	l.Warn("Retrying action: "+action, Context{Action: action, RetryCount: n, Err: err})
}

func (l *Logger) Configuration(baseURL string) {
	l.Info("Configuration loaded", Context{Action: "CONFIG", PageURL: baseURL})
}

func (l *Logger) PerformanceMetrics(operation string, d time.Duration) {
	l.Debug(fmt.Sprintf("Performance: %s took %dms", operation, d.Milliseconds()), Context{
		Action:   operation,
		Duration: d,
	})
}

func (l *Logger) SecurityWarning(msg string) {
	l.Warn("Security: "+msg, Context{Action: "SECURITY"})
}

// NetworkRequest logs a request; a zero status is omitted.
func (l *Logger) NetworkRequest(method, url string, status int, d time.Duration) {
	s := ""
	if status != 0 {
		s = fmt.Sprint(status)
	}
	l.Debug(fmt.Sprintf("Network: %s %s %s", method, url, s), Context{
		Action:   "NETWORK",
		PageURL:  url,
		Duration: d,
	})
}

func (l *Logger) ElementInteraction(selector, action string, success bool) {
	result := "SUCCESS"
	if !success {
		result = "FAILED"
	}
	l.Debug(fmt.Sprintf("Element: %s on %s - %s", action, selector, result), Context{Action: "ELEMENT"})
}

func (l *Logger) ScreenshotTaken(name, path string) {
	l.Info("Screenshot taken: "+name, Context{Action: "SCREENSHOT", PageURL: path})
}

func (l *Logger) VideoRecorded(name, path string) {
	l.Info("Video recorded: "+name, Context{Action: "VIDEO", PageURL: path})
}

func (l *Logger) TraceSaved(name, path string) {
	l.Info("Trace saved: "+name, Context{Action: "TRACE", PageURL: path})
}

// EnvironmentInfo logs the run-shaping settings of the active profile.
func (l *Logger) EnvironmentInfo(env string, ci, headless, parallel bool, workers int) {
	c := Context{Action: "ENV"}
	l.Info("Environment: "+env, c)
	l.Info(fmt.Sprintf("CI Mode: %t", ci), c)
	l.Info(fmt.Sprintf("Headless: %t", headless), c)
	l.Info(fmt.Sprintf("Parallel: %t", parallel), c)
	l.Info(fmt.Sprintf("Workers: %d", workers), c)
}
