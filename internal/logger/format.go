package logger

import (
	"strconv"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// ShouldLog reports whether a line at level passes the configured threshold.
// Debug lines additionally require the debug flag.
func ShouldLog(level, configured Level, debugEnabled bool) bool {
	if level == LevelNone {
		return false
	}
	return level >= configured && (level != LevelDebug || debugEnabled)
}

// Format renders one log line:
//
//	[<ts>] [<LEVEL>] [<env>] [<test>]? [<action>]? [<n>ms]? [Retry: <n>]? <msg> (URL: <url>)? (Error: <err>)?
func Format(ts time.Time, level Level, env, msg string, c Context) string {
	var b strings.Builder

	b.WriteString("[")
	b.WriteString(ts.UTC().Format(timestampLayout))
	b.WriteString("] [")
	b.WriteString(level.String())
	b.WriteString("] [")
	b.WriteString(env)
	b.WriteString("]")

	if c.TestName != "" {
		b.WriteString(" [" + c.TestName + "]")
	}
	if c.Action != "" {
		b.WriteString(" [" + c.Action + "]")
	}
	if c.Duration > 0 {
		b.WriteString(" [" + strconv.FormatInt(c.Duration.Milliseconds(), 10) + "ms]")
	}
	if c.RetryCount > 0 {
		b.WriteString(" [Retry: " + strconv.Itoa(c.RetryCount) + "]")
	}

	b.WriteString(" ")
	b.WriteString(msg)

	if c.PageURL != "" {
		b.WriteString(" (URL: " + c.PageURL + ")")
	}
	if c.Err != nil {
		b.WriteString(" (Error: " + errText(c.Err) + ")")
	}
	return b.String()
}

// errText is err.Error() for errors that may be typed nils or panic.
func errText(err error) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = "<unprintable error>"
		}
	}()
	return err.Error()
}
