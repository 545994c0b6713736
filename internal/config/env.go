// Where: internal/config/env.go
// What: .env file loading into the process environment.
// Why: MDPACK_* and AWS_* settings can live next to the manifests instead of the shell profile.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded from the working directory when present.
const DefaultEnvFile = ".env"

// LoadEnvFiles loads the given files in order. Variables already set in the
// environment are never overridden. A missing DefaultEnvFile is ignored;
// any other missing file is an error.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) && path == DefaultEnvFile {
				continue
			}
			return fmt.Errorf("env file %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}
