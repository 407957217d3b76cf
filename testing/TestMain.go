// Package testing switches the binaries into test mode for any test package
// that imports it, so wiring code never dials Postgres or Redis.
package testing

import (
	"os"
	stdtesting "testing"
)

var defaults = map[string]string{
	"SECTIONS_TEST_MODE": "1",
	"OTEL_TRACES_STDOUT": "false",
}

func init() {
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs m after init has applied the test defaults.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
