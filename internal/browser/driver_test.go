package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetString(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{Sel("h1"), "h1"},
		{Sel("h2").WithText("Tools"), `h2 >> text="Tools"`},
		{Sel("select").Nth(3), "select >> nth=3"},
		{Sel("div").WithText("Age").Nth(1), `div >> text="Age" >> nth=1`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.target.String())
		})
	}
}

func TestTargetSimple(t *testing.T) {
	assert.True(t, Sel("main input").Simple())
	assert.False(t, Sel("main input").Nth(1).Simple())
	assert.False(t, Sel("label").WithText("Words").Simple())
}

func TestMatchText(t *testing.T) {
	assert.True(t, MatchText("Welcome to OnlyTests", "welcome"))
	assert.True(t, MatchText("anything", ""))
	assert.False(t, MatchText("About", "Tools"))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("click failed: %w", ErrTimeout)))
	assert.False(t, IsTimeout(context.Canceled))
	assert.False(t, IsTimeout(errors.New("detached")))
}

func TestLaunchUnknownDriver(t *testing.T) {
	_, err := Launch(context.Background(), LaunchOptions{Driver: "selenium"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown browser driver")
}

func TestPlaywrightTimeout(t *testing.T) {
	assert.Equal(t, float64(0), *timeout(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ms := *timeout(ctx)
	assert.InDelta(t, 2000, ms, 100)

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.Equal(t, float64(1), *timeout(expired))
}

func TestReadyStateMet(t *testing.T) {
	assert.True(t, readyStateMet(LoadStateDOMContentLoaded, "interactive"))
	assert.False(t, readyStateMet(LoadStateLoad, "interactive"))
	assert.True(t, readyStateMet(LoadStateNetworkIdle, "complete"))
}

func TestMatchesJSEscapes(t *testing.T) {
	js := matchesJS(Sel(`textarea[placeholder="Enter your text here..."]`).WithText(`"quoted"`))
	assert.Contains(t, js, `"textarea[placeholder=\"Enter your text here...\"]"`)
	assert.Contains(t, js, `"\"quoted\""`)
}

func TestViewportDefaults(t *testing.T) {
	w, h := LaunchOptions{}.viewport()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
}
