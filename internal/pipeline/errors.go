// Where: internal/pipeline/errors.go
// What: Error classification for pipeline stages.
// Why: Callers report failures by kind and show captured tool output under the failing stage.
package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindConfigValidation  Kind = "ConfigValidation"
	KindSourceAcquisition Kind = "SourceAcquisition"
	KindImageBuild        Kind = "ImageBuild"
	KindContainerRun      Kind = "ContainerRun"
	KindArtifactMissing   Kind = "ArtifactMissing"
	KindWorkspace         Kind = "Workspace"
	KindPublish           Kind = "Publish"
)

// ErrArtifactMissing is reported when the build produced no package file
// and an artifact is required.
var ErrArtifactMissing = errors.New("package file not produced")

// StageError is the error of one failed stage. Output holds the captured
// subprocess or container output, verbatim.
type StageError struct {
	Kind   Kind
	Stage  Stage
	Output string
	Err    error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed (%s)", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind carried by err, or "" when err is not a StageError.
func KindOf(err error) Kind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return ""
}
