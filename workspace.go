package main

import (
	"io"
	"os"
	"path/filepath"
)

// workspace holds the two working directories for one processing run:
// archiveDir receives uploads as-is, markupDir receives the extracted
// and cleaned KML files. Both are cleared at the start of every run.
type workspace struct {
	root       string
	archiveDir string
	markupDir  string
}

func newWorkspace(root string) (workspace, error) {
	w := workspace{
		root:       root,
		archiveDir: filepath.Join(root, "kmz"),
		markupDir:  filepath.Join(root, "kml"),
	}
	for _, dir := range []string{w.archiveDir, w.markupDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return workspace{}, err
		}
	}
	return w, nil
}

func (w workspace) reset() error {
	for _, dir := range []string{w.archiveDir, w.markupDir} {
		if err := clearDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// clearDir removes the regular files directly inside dir. It does not
// recurse and does not remove dir itself. A missing or empty dir is a
// no-op.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename can fail across filesystems, fall back to copy.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
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
	return os.Remove(src)
}
