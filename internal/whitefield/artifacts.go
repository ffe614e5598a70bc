package whitefield

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrArchive is matched by every *ArchiveError.
var ErrArchive = errors.New("archive failed")

// ArchiveError reports an output folder that could not be relocated.
type ArchiveError struct {
	Kind   string
	Source string
	Err    error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s folder %s: %v", e.Kind, e.Source, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

func (e *ArchiveError) Is(target error) bool { return target == ErrArchive }

// Artifact is one archived output folder.
type Artifact struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Artifacts is the ordered set of folders produced by one trial.
type Artifacts []Artifact

// Path returns the archived folder for kind, or "" if the trial did not produce it.
func (a Artifacts) Path(kind string) string {
	for _, art := range a {
		if art.Kind == kind {
			return art.Path
		}
	}
	return ""
}

// AbsPaths resolves every folder to an absolute path, preserving order.
func (a Artifacts) AbsPaths() []string {
	out := make([]string, 0, len(a))
	for _, art := range a {
		p, err := filepath.Abs(art.Path)
		if err != nil {
			p = art.Path
		}
		out = append(out, p)
	}
	return out
}
