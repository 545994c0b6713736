// Where: internal/version/version.go
// What: Version information retrieval.
// Why: Report the module version or VCS revision baked into the mdpack binary.
package version

import (
	"fmt"
	"runtime/debug"
)

var readBuildInfo = debug.ReadBuildInfo

// GetVersion returns the released module version when the binary was
// installed with `go install module@version`, otherwise the short VCS
// revision (suffixed with "(dirty)" for modified trees), or "dev".
func GetVersion() string {
	info, ok := readBuildInfo()
	if !ok {
		return "dev"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	var revision string
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}

	if revision == "" {
		return "dev"
	}
	if modified {
		return fmt.Sprintf("%s (dirty)", revision)
	}
	return revision
}
