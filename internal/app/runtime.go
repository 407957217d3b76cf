package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv switches binaries into test mode when set to a true value.
const TestModeEnv = "SECTIONS_TEST_MODE"

var testMode struct {
	sync.Mutex
	loaded bool
	on     bool
}

// InTestMode reports whether binaries should skip connecting to Postgres and
// Redis. The environment is read on first use.
func InTestMode() bool {
	testMode.Lock()
	defer testMode.Unlock()
	if !testMode.loaded {
		testMode.on = readTestMode()
		testMode.loaded = true
	}
	return testMode.on
}

// RefreshTestMode re-reads the environment.
func RefreshTestMode() {
	testMode.Lock()
	testMode.on = readTestMode()
	testMode.loaded = true
	testMode.Unlock()
}

func readTestMode() bool {
	raw, ok := os.LookupEnv(TestModeEnv)
	if !ok {
		return false
	}
	on, err := strconv.ParseBool(raw)
	return err == nil && on
}
