// Package testing points external endpoints at closed ports for packages that
// import it from their tests, so handlers never reach a live service.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/odyssey-erp/riskdesk/internal/testing/guard"
)

var once sync.Once

var unreachable = map[string]string{
	"GOTENBERG_URL": "http://127.0.0.1:0",
	"UPSTREAM_URL":  "http://127.0.0.1:0",
}

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(guard.EnvVar, "1")
		for key, value := range unreachable {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
