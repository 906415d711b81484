package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Inbox subdirectories for processed files.
const (
	ImportedDir = "imported"
	FailedDir   = "failed"
)

// Inbox is a drop directory for import files. Processed files are moved into
// imported/ or failed/ next to a JSON report.
type Inbox struct {
	root string // absolute path
	now  func() time.Time
}

// OpenInbox resolves root and creates it with its subdirectories.
func OpenInbox(root string) (*Inbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("inbox: resolve root: %w", err)
	}
	for _, dir := range []string{abs, filepath.Join(abs, ImportedDir), filepath.Join(abs, FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("inbox: mkdir: %w", err)
		}
	}
	return &Inbox{root: abs, now: time.Now}, nil
}

// Root returns the absolute inbox path.
func (in *Inbox) Root() string { return in.root }

// safePath resolves a relative path against the inbox root and rejects any
// result that escapes it.
func (in *Inbox) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if rel == "" || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("inbox: invalid path: %q", rel)
	}
	abs, err := filepath.Abs(filepath.Join(in.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("inbox: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, in.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("inbox: path escapes root: %s", rel)
	}
	return abs, nil
}

// Pending lists importable files at the top level of the inbox, by name.
// Dotfiles are skipped so partially written temp files are not picked up.
func (in *Inbox) Pending() ([]string, error) {
	entries, err := os.ReadDir(in.root)
	if err != nil {
		return nil, fmt.Errorf("inbox: list: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !Supported(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Read returns the bytes of an inbox file.
func (in *Inbox) Read(name string) ([]byte, error) {
	abs, err := in.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("inbox: read %s: %w", name, err)
	}
	return data, nil
}

// Archive moves name into imported/ (ok) or failed/ and writes report beside
// it when non-nil. It returns the archived path relative to the root.
func (in *Inbox) Archive(name string, ok bool, report []byte) (string, error) {
	src, err := in.safePath(name)
	if err != nil {
		return "", err
	}
	dir := FailedDir
	if ok {
		dir = ImportedDir
	}
	rel := filepath.Join(dir, in.now().UTC().Format("20060102T150405")+"-"+filepath.Base(name))
	dst, err := in.safePath(rel)
	if err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("inbox: move: %w", err)
	}
	if report != nil {
		if err := in.write(rel+".report.json", report); err != nil {
			return rel, err
		}
	}
	return rel, nil
}

// write atomically writes content: tmp file, fsync, rename.
func (in *Inbox) write(rel string, content []byte) error {
	abs, err := in.safePath(rel)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".larder-tmp-*")
	if err != nil {
		return fmt.Errorf("inbox: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("inbox: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("inbox: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("inbox: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("inbox: rename: %w", err)
	}
	success = true
	return nil
}
