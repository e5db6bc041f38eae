//go:build e2e

package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onlytests-e2e/internal/pages"
)

func TestTestCaseTemplate(t *testing.T) {
	parallel(t)
	s := session(t)
	page := s.Pages.TestCases()
	ctx := s.Context()
	require.NoError(t, page.Navigate(ctx))

	errs, err := page.ValidationErrors(ctx)
	require.NoError(t, err)
	assert.Len(t, errs, 3)

	tc := pages.TestCase{
		Fields: map[pages.Field]string{
			pages.FieldTestCaseID:  "TC-001",
			pages.FieldTitle:       "Generate user data",
			pages.FieldDescription: "Generated users carry every field",
		},
		Steps: []pages.Step{{Description: "Open the generator", Expected: "Cards are shown"}},
		Tags:  []string{"Smoke"},
	}
	require.NoError(t, page.Fill(ctx, tc))

	valid, err := page.IsFormValid(ctx)
	require.NoError(t, err)
	assert.True(t, valid)

	tags, err := page.Tags(ctx)
	require.NoError(t, err)
	assert.Contains(t, tags, "Smoke")
}
