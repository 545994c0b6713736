// Where: internal/source/source.go
// What: Source acquisition into a build workspace (dir copy, git checkout, archive extraction).
// Why: app.source.type selects a strategy from a closed dispatch table.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/go-archive"
	"github.com/poruru/mdpack/internal/infra/fileops"
	"github.com/poruru/mdpack/internal/manifest"
)

var (
	ErrUnknownType    = errors.New("unknown source type")
	ErrMissingField   = errors.New("missing source field")
	ErrTagNotFound    = errors.New("tag not found on remote")
	ErrCommitMismatch = errors.New("tag does not point to the declared commit")
)

// Fetcher downloads a remote archive to a local writer.
type Fetcher interface {
	Fetch(ctx context.Context, url string, dst io.Writer) error
}

// HTTPFetcher downloads archives with a plain HTTP GET.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, url string, dst io.Writer) error {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}
	_, err = io.Copy(dst, resp.Body)
	return err
}

type acquireFunc func(ctx context.Context, src manifest.Source, baseDir, dest string) error

// Acquirer populates a workspace source directory.
type Acquirer struct {
	git      *Git
	fetcher  Fetcher
	handlers map[manifest.SourceType]acquireFunc
}

// NewAcquirer wires the dispatch table. Nil collaborators get real implementations.
func NewAcquirer(git *Git, fetcher Fetcher) *Acquirer {
	if git == nil {
		git = NewGit(nil)
	}
	if fetcher == nil {
		fetcher = HTTPFetcher{}
	}
	a := &Acquirer{git: git, fetcher: fetcher}
	a.handlers = map[manifest.SourceType]acquireFunc{
		manifest.SourceDir:     a.acquireDir,
		manifest.SourceGit:     a.acquireGit,
		manifest.SourceArchive: a.acquireArchive,
	}
	return a
}

// Acquire places the sources described by src into dest. Relative local
// paths are resolved against baseDir (the manifest's directory).
func (a *Acquirer) Acquire(ctx context.Context, src manifest.Source, baseDir, dest string) error {
	handler, ok := a.handlers[src.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, src.Type)
	}
	return handler(ctx, src, baseDir, dest)
}

func (a *Acquirer) acquireDir(_ context.Context, src manifest.Source, baseDir, dest string) error {
	if src.Path == "" {
		return fmt.Errorf("%w: app.source.path", ErrMissingField)
	}
	path := localPath(baseDir, src.Path)
	if !fileops.DirExists(path) {
		return fmt.Errorf("source directory not found: %s", path)
	}
	return fileops.CopyDir(path, dest)
}

func (a *Acquirer) acquireGit(ctx context.Context, src manifest.Source, _ string, dest string) error {
	if src.URL == "" {
		return fmt.Errorf("%w: app.source.url", ErrMissingField)
	}
	if src.Tag == "" && src.Commit == "" {
		return fmt.Errorf("%w: app.source.tag or app.source.commit", ErrMissingField)
	}
	ref := src.Tag
	if src.Tag != "" && src.Commit != "" {
		resolved, err := a.git.RemoteTag(ctx, src.URL, src.Tag)
		if err != nil {
			return err
		}
		if !sameCommit(resolved, src.Commit) {
			return fmt.Errorf("%w: %s is %s, manifest declares %s", ErrCommitMismatch, src.Tag, resolved, src.Commit)
		}
	}
	if ref == "" {
		ref = src.Commit
	}
	if err := fileops.RemoveDir(dest); err != nil {
		return err
	}
	return a.git.Clone(ctx, src.URL, ref, dest)
}

// sameCommit accepts abbreviated hashes on the manifest side.
func sameCommit(full, declared string) bool {
	full = strings.ToLower(strings.TrimSpace(full))
	declared = strings.ToLower(strings.TrimSpace(declared))
	if len(declared) < 4 {
		return full == declared
	}
	return strings.HasPrefix(full, declared)
}

func (a *Acquirer) acquireArchive(ctx context.Context, src manifest.Source, baseDir, dest string) error {
	var name string
	switch {
	case src.Path != "":
		name = localPath(baseDir, src.Path)
	case src.URL != "":
		tmp, err := os.CreateTemp("", "mdpack-archive-*"+archiveSuffix(src.URL))
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())
		if err := a.fetcher.Fetch(ctx, src.URL, tmp); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		name = tmp.Name()
	default:
		return fmt.Errorf("%w: app.source.path or app.source.url", ErrMissingField)
	}

	if err := fileops.EnsureDir(dest); err != nil {
		return err
	}
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		return fileops.ExtractZip(name, dest)
	}
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()
	// Untar detects gzip, bzip2, xz and zstd compression.
	if err := archive.Untar(file, dest, &archive.TarOptions{NoLchown: true}); err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(name), err)
	}
	return nil
}

func archiveSuffix(url string) string {
	if strings.HasSuffix(strings.ToLower(url), ".zip") {
		return ".zip"
	}
	return ""
}

func localPath(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
