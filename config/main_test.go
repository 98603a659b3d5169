package config

import (
	"fmt"
	"os"
	"testing"
)

// TestMain refuses to run against anything but the test environment.
// An unset GO_ENV is treated as test so plain `go test ./...` works.
func TestMain(m *testing.M) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		os.Setenv("GO_ENV", "test")
		env = "test"
	}
	if env != "test" {
		fmt.Fprintf(os.Stderr, "\n"+
			"SAFETY CHECK FAILED: tests must run with GO_ENV=test (current: %q)\n"+
			"Run them with:\n"+
			"    GO_ENV=test go test ./...\n\n", env)
		os.Exit(1)
	}

	os.Exit(m.Run())
}
