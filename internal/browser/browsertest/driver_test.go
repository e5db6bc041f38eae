package browsertest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onlytests-e2e/internal/browser"
)

func TestResolvesTextAndIndex(t *testing.T) {
	d := New().SetText("h2", "Tools", "About", "Templates")
	ctx := context.Background()

	text, err := d.Text(ctx, browser.Sel("h2").WithText("about"))
	require.NoError(t, err)
	assert.Equal(t, "About", text)

	text, err = d.Text(ctx, browser.Sel("h2").Nth(2))
	require.NoError(t, err)
	assert.Equal(t, "Templates", text)

	n, err := d.Count(ctx, browser.Sel("h2").WithText("t"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMissingElementWaitsForDeadline(t *testing.T) {
	d := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.WaitVisible(ctx, browser.Sel("#nope"))

	assert.True(t, browser.IsTimeout(err))
}

func TestHiddenElementIsNotVisible(t *testing.T) {
	d := New().Set("#spinner", Element{Hidden: true})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, d.WaitVisible(ctx, browser.Sel("#spinner")))
	_, err := d.Text(context.Background(), browser.Sel("#spinner"))
	assert.NoError(t, err)
}

func TestFailNextIsConsumedInOrder(t *testing.T) {
	target := browser.Sel("button")
	d := New().SetText("button", "Go")
	boom := errors.New("boom")
	d.FailNext("Click", target, boom)

	assert.ErrorIs(t, d.Click(context.Background(), target), boom)
	assert.NoError(t, d.Click(context.Background(), target))
	assert.Equal(t, 2, d.Calls("Click", target))
}

func TestRoutesAndClickHooks(t *testing.T) {
	d := New()
	d.Route("http://app/about", func(d *Driver) { d.SetTitle("About") })
	d.SetText("a.home", "Home")
	d.OnClick("a.home", func(d *Driver) { d.SetURL("http://app/") })
	ctx := context.Background()

	require.NoError(t, d.Goto(ctx, "http://app/about", browser.LoadStateLoad))
	title, _ := d.Title(ctx)
	assert.Equal(t, "About", title)

	require.NoError(t, d.Click(ctx, browser.Sel("a.home")))
	url, _ := d.URL(ctx)
	assert.Equal(t, "http://app/", url)
}

func TestFillAndScreenshot(t *testing.T) {
	d := New().Set("input", Element{})
	ctx := context.Background()

	require.NoError(t, d.Fill(ctx, browser.Sel("input"), "42"))
	v, err := d.InputValue(ctx, browser.Sel("input"))
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	path := filepath.Join(t.TempDir(), "shots", "a.png")
	require.NoError(t, d.Screenshot(ctx, path))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestRecordVideoAndTrace(t *testing.T) {
	dir := t.TempDir()
	d := New()
	require.NoError(t, d.Record(browser.LaunchOptions{VideoDir: filepath.Join(dir, "videos"), Trace: true}))

	video, err := d.VideoPath()
	require.NoError(t, err)
	assert.FileExists(t, video)
	assert.True(t, d.Tracing())

	trace := filepath.Join(dir, "traces", "run.zip")
	require.NoError(t, d.SaveTrace(trace))
	assert.FileExists(t, trace)
	assert.Error(t, d.SaveTrace(trace), "trace already ended")

	require.NoError(t, d.Close())
	require.NoError(t, d.DiscardVideo())
	assert.NoFileExists(t, video)
	_, err = d.VideoPath()
	assert.Error(t, err)
}

func TestTraceMustEndBeforeClose(t *testing.T) {
	d := New()
	require.NoError(t, d.Record(browser.LaunchOptions{Trace: true}))
	require.NoError(t, d.Close())

	assert.Error(t, d.DiscardTrace())
}
