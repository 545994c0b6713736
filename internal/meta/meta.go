// Where: internal/meta/meta.go
// What: Product identity and container layout constants.
// Why: Keep names shared by the CLI, images and driver scripts in one place.
package meta

const (
	// Project Identity
	AppName     = "mdpack"
	EnvPrefix   = "MDPACK"
	ImagePrefix = "mdp"
	LabelPrefix = "io.mdpack"

	// Directory Layout
	HomeDir = ".mdpack"

	// Container Layout
	WorkspaceMount = "/app"
	ContainerShell = "/bin/sh"
	BuildDriver    = "generate.sh"
	TestDriver     = "test.sh"
)
