// Where: internal/infra/fileops/file_ops.go
// What: Shared filesystem operations for workspaces and source acquisition.
// Why: Keep copy/extract behavior (modes, symlinks, traversal checks) consistent.
package fileops

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const maxZipEntryBytes int64 = 1 << 30 // 1 GiB safety cap for zip extraction.

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

func RemoveDir(path string) error {
	if path == "" {
		return nil
	}
	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ResetDir removes path when it exists and recreates it empty.
func ResetDir(path string) error {
	if err := RemoveDir(path); err != nil {
		return err
	}
	return os.MkdirAll(path, 0o777)
}

// WriteFile writes content, creating parent directories.
func WriteFile(path, content string, mode fs.FileMode) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}

// CopyDir copies the contents of src into dst, preserving permission bits
// and recreating symlinks. Directories stay owner-writable until every
// child is copied and get their source mode last, deepest first.
func CopyDir(src, dst string) error {
	if err := EnsureDir(dst); err != nil {
		return err
	}
	type dirMode struct {
		path string
		perm fs.FileMode
	}
	var dirs []dirMode
	err := filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := entry.Info()
		if err != nil {
			return err
		}
		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := removePathIfExists(target); err != nil {
				return err
			}
			return os.Symlink(link, target)
		case entry.IsDir():
			perm := info.Mode().Perm()
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			if err := os.Chmod(target, perm|0o700); err != nil {
				return err
			}
			dirs = append(dirs, dirMode{path: target, perm: perm})
			return nil
		default:
			return copyFileWithMode(path, target, info.Mode().Perm())
		}
	})
	if err != nil {
		return err
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].perm); err != nil {
			return err
		}
	}
	return nil
}

// CopyFile copies a single file, keeping its permission bits.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return copyFileWithMode(src, dst, info.Mode().Perm())
}

func copyFileWithMode(src, dst string, mode fs.FileMode) error {
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, mode)
}

// Move renames src to dst, falling back to copy+remove across devices.
func Move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// ExtractZip unpacks a zip archive into dst.
func ExtractZip(src, dst string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := EnsureDir(dst); err != nil {
		return err
	}
	for _, file := range reader.File {
		//nolint:gosec // Path traversal is checked below with cleaned prefix validation.
		targetPath := filepath.Join(dst, file.Name)
		if !strings.HasPrefix(filepath.Clean(targetPath), filepath.Clean(dst)+string(os.PathSeparator)) {
			return fmt.Errorf("zip path escapes target: %s", file.Name)
		}
		if file.FileInfo().IsDir() {
			if err := EnsureDir(targetPath); err != nil {
				return err
			}
			continue
		}
		if file.UncompressedSize64 > uint64(maxZipEntryBytes) {
			return fmt.Errorf("zip entry too large: %s", file.Name)
		}
		if err := extractZipEntry(file, targetPath); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(file *zip.File, targetPath string) error {
	if err := EnsureDir(filepath.Dir(targetPath)); err != nil {
		return err
	}
	in, err := file.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	written, err := io.Copy(out, io.LimitReader(in, maxZipEntryBytes+1))
	if err != nil {
		out.Close()
		return err
	}
	if written > maxZipEntryBytes {
		out.Close()
		return fmt.Errorf("zip entry too large: %s", file.Name)
	}
	return out.Close()
}

func removePathIfExists(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
