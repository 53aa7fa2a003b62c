package main

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeKMZ(t *testing.T, path string, members map[string]string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractKMZ(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()

	doc := kmlDoc(pmPoint("1,2"))
	archivePath := filepath.Join(dir, "upload.kmz")
	writeKMZ(t, archivePath, map[string]string{
		"doc.kml":         doc,
		"images/icon.png": "not markup",
	})

	got, err := extractKMZ(archivePath, outDir)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(outDir, "doc.kml"); got != want {
		t.Errorf("extracted to %s, want %s", got, want)
	}

	content, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != doc {
		t.Errorf("extracted content differs from member")
	}
}

func TestExtractKMZNestedMemberUsesBaseName(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()

	archivePath := filepath.Join(dir, "upload.kmz")
	writeKMZ(t, archivePath, map[string]string{
		"files/inner.kml": kmlDoc(pmPoint("1,2")),
	})

	got, err := extractKMZ(archivePath, outDir)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(outDir, "inner.kml"); got != want {
		t.Errorf("extracted to %s, want %s", got, want)
	}
}

func TestExtractKMZNoMember(t *testing.T) {
	dir := t.TempDir()

	archivePath := filepath.Join(dir, "upload.kmz")
	writeKMZ(t, archivePath, map[string]string{
		"readme.txt": "nothing here",
	})

	_, err := extractKMZ(archivePath, t.TempDir())
	if !errors.Is(err, errNoKMLInArchive) {
		t.Fatalf("got %v, want errNoKMLInArchive", err)
	}
}
