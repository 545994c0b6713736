// Where: internal/config/recipes.go
// What: Recipes root discovery.
// Why: Find the directory holding distro/ and scripts/ from flags, config or the file system.
package config

import (
	"os"
	"path/filepath"

	"github.com/poruru/mdpack/internal/meta"
)

// ResolveRecipesRoot determines the recipes root.
// Priority:
// 1. explicit value (--root or MDPACK_ROOT)
// 2. root in the global config
// 3. upward search from startDir for a "mdpack" directory holding distro/
// 4. "mdpack" relative to the working directory
func ResolveRecipesRoot(explicit, configured, startDir string) string {
	if explicit != "" {
		return explicit
	}
	if configured != "" {
		return configured
	}
	if startDir != "" {
		if root, ok := findRecipesRoot(startDir); ok {
			return root
		}
	}
	return meta.AppName
}

// findRecipesRoot searches upward from path for <dir>/mdpack/distro.
func findRecipesRoot(path string) (string, bool) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}

	for {
		candidate := filepath.Join(dir, meta.AppName)
		if info, err := os.Stat(filepath.Join(candidate, "distro")); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}
