// Package vault provides file storage rooted at a notes directory.
//
// Paths are slash-separated and relative to the vault root, the same form
// that is written to task file locations and the sync index.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
)

// ErrOutsideVault is returned for paths that escape the vault root.
var ErrOutsideVault = errors.New("path outside vault")

// Vault is a directory of notes.
type Vault struct {
	root string
}

// New returns a Vault rooted at dir. The directory must exist.
func New(dir string) (*Vault, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open vault: %s is not a directory", abs)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string { return v.root }

// Abs converts a vault path to an OS path. Leading ".." elements are
// clamped at the vault root.
func (v *Vault) Abs(p string) (string, error) {
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %s", ErrOutsideVault, p)
	}
	clean := path.Clean("/" + filepath.ToSlash(p))
	return filepath.Join(v.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Rel converts an OS path inside the vault to a vault path.
func (v *Vault) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideVault, abs)
	}
	return filepath.ToSlash(rel), nil
}

// Read returns the content of a file.
func (v *Vault) Read(p string) (string, error) {
	abs, err := v.Abs(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write replaces the content of a file atomically, creating it if needed.
func (v *Vault) Write(p, content string) error {
	abs, err := v.Abs(p)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(abs, strings.NewReader(content)); err != nil {
		return err
	}
	// atomic.WriteFile leaves the temp file mode on new files
	return os.Chmod(abs, 0o644)
}

// Create writes a new file. It fails with fs.ErrExist if the file exists.
func (v *Vault) Create(p, content string) error {
	abs, err := v.Abs(p)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Exists reports whether a file or folder exists at p.
func (v *Vault) Exists(p string) (bool, error) {
	abs, err := v.Abs(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// MkdirAll creates a folder and its parents.
func (v *Vault) MkdirAll(p string) error {
	abs, err := v.Abs(p)
	if err != nil {
		return err
	}
	return os.MkdirAll(abs, 0o755)
}

// Delete removes a file.
func (v *Vault) Delete(p string) error {
	abs, err := v.Abs(p)
	if err != nil {
		return err
	}
	return os.Remove(abs)
}

// List returns the Markdown files under dir, sorted.
// Hidden files and folders are skipped. A missing dir yields no files.
func (v *Vault) List(dir string) ([]string, error) {
	absDir, err := v.Abs(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	err = filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == absDir {
				return fs.SkipAll
			}
			return err
		}
		if p != absDir && isHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsMarkdown(d.Name()) {
			return nil
		}
		rel, err := v.Rel(p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// IsMarkdown reports whether name has a .md extension.
func IsMarkdown(name string) bool {
	return strings.EqualFold(path.Ext(name), ".md")
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
