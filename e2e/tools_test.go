//go:build e2e

package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onlytests-e2e/internal/pages"
)

func TestUserDataGenerator(t *testing.T) {
	parallel(t)
	s := session(t)
	page := s.Pages.UserData()
	ctx := s.Context()

	require.NoError(t, page.Navigate(ctx))
	require.NoError(t, page.SetNumberOfUsers(ctx, 2))
	require.NoError(t, page.RegenerateData(ctx))

	n, err := page.UserCardCount(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	data, err := page.UserData(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pages.MissingFields(data))

	ok, err := page.IsLocationSelectionWorking(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTextGeneratorDefaults(t *testing.T) {
	parallel(t)
	s := session(t)
	page := s.Pages.TextGenerator()
	ctx := s.Context()

	require.NoError(t, page.Navigate(ctx))

	ok, err := page.VerifyDefaultState(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTextGeneratorCounts(t *testing.T) {
	parallel(t)
	s := session(t)
	page := s.Pages.TextGenerator()
	ctx := s.Context()
	require.NoError(t, page.Navigate(ctx))

	for _, n := range s.Data.TextGenerator.WordCounts {
		text, err := page.GenerateText(ctx, n, pages.UnitWords)
		require.NoError(t, err)
		assert.Equal(t, n, pages.CountWords(text), "words=%d", n)
	}
	for _, n := range s.Data.TextGenerator.CharacterCounts {
		text, err := page.GenerateText(ctx, n, pages.UnitCharacters)
		require.NoError(t, err)
		assert.True(t, pages.MatchesLength(text, n, pages.UnitCharacters, true, s.Data.Tolerance(n)), "characters=%d got %d", n, len(text))
	}
}

func TestToolNavigation(t *testing.T) {
	parallel(t)
	s := session(t)
	tools := s.Pages.Tools()
	ctx := s.Context()

	require.NoError(t, tools.NavigateToTool(ctx, "count-tool"))

	path, err := tools.ToolPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "count-tool", path)

	ok, err := tools.IsToolContentVisible(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
