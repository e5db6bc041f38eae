//go:build e2e

package e2e

import (
	"testing"

	"onlytests-e2e/internal/fixture"
)

func session(t *testing.T) *fixture.Session {
	t.Helper()
	return fixture.NewSession(t, setup)
}
