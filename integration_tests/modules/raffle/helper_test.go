//go:build integration

package raffleintegrationtests

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Black-And-White-Club/frolf-raffle/integration_tests/testutils"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

// setup returns the shared environment with empty tables and streams.
func setup(t *testing.T) *testutils.TestEnvironment {
	t.Helper()

	env := testutils.GetTestEnv(t)
	ctx, cancel := context.WithTimeout(env.Ctx, 10*time.Second)
	defer cancel()
	if err := env.Reset(ctx); err != nil {
		t.Fatalf("failed to reset environment: %v", err)
	}
	return env
}
