// Package envutil provides helper functions for MDPACK_* environment variables.
package envutil

import (
	"os"
	"strings"

	"github.com/poruru/mdpack/internal/meta"
)

// HostEnvKey returns the prefixed variable name.
// Example: HostEnvKey("ROOT") returns "MDPACK_ROOT".
func HostEnvKey(suffix string) string {
	return meta.EnvPrefix + "_" + suffix
}

// GetHostEnv returns the trimmed value of a prefixed variable.
func GetHostEnv(suffix string) string {
	return strings.TrimSpace(os.Getenv(HostEnvKey(suffix)))
}
