// Package guard flips binaries into test mode when imported by a test, so
// main-package wiring never dials Redis or Postgres under go test.
package guard

import (
	"os"
	"sync"
)

// EnvVar is the flag app.InTestMode reads.
const EnvVar = "RISKDESK_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(EnvVar) == "" {
			_ = os.Setenv(EnvVar, "1")
		}
	})
}
