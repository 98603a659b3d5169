package testutil

import (
	"os"
	"strings"
	"testing"
)

// RequireTestEnvironment stops a suite that was started outside GO_ENV=test
// or with DATABASE_URL pointing at something other than a test database.
// An unset GO_ENV is pinned to test for the rest of the run.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	switch env := os.Getenv("GO_ENV"); env {
	case "":
		os.Setenv("GO_ENV", "test")
	case "test":
	default:
		t.Fatalf("SAFETY CHECK FAILED: suites must run with GO_ENV=test (current: %q)", env)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" && !isTestDatabase(url) {
		t.Fatalf("SAFETY CHECK FAILED: DATABASE_URL %s does not look like a test database", maskDatabaseURL(url))
	}
}

func isTestDatabase(url string) bool {
	return strings.Contains(url, "test") || strings.Contains(url, "memory")
}

// maskDatabaseURL keeps credentials out of failure messages
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:20] + "..."
	}
	return url
}
