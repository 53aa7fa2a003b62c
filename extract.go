package main

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var errNoKMLInArchive = errors.New("no kml member in archive")

// extractKMZ opens archivePath as a zip container, finds the first
// member whose name ends in .kml and writes it to outDir under the
// member's base name. Returns errNoKMLInArchive when the container has
// no such member.
func extractKMZ(archivePath, outDir string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filepath.Base(archivePath), err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(f.Name), ".kml") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return "", err
		}

		outPath := filepath.Join(outDir, filepath.Base(f.Name))
		out, err := os.Create(outPath)
		if err != nil {
			rc.Close()
			return "", err
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return "", err
		}
		rc.Close()
		if err := out.Close(); err != nil {
			return "", err
		}
		return outPath, nil
	}

	return "", fmt.Errorf("%s: %w", filepath.Base(archivePath), errNoKMLInArchive)
}
