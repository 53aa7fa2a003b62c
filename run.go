package main

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	errEmptyUpload = errors.New("no files uploaded")
	errNoCity      = errors.New("no city selected")
)

var uuidRE = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// groupingKey tags every statement emitted from one source file. A
// UUID embedded in the filename wins; otherwise the city name with
// spaces replaced by underscores.
func groupingKey(filename, city string) string {
	if m := uuidRE.FindString(filename); m != "" {
		return m
	}
	return strings.ReplaceAll(city, " ", "_")
}

type upload struct {
	name string
	data []byte
}

type fileOutcome struct {
	file   string
	ok     bool
	reason string
}

type runResult struct {
	city       string
	status     string // "ok" or "warning"
	message    string
	outcomes   []fileOutcome
	sql        string
	rows       []coordRow
	geometries []fileGeometry
	firstID    int
	nextID     int
	mergedPath string
	bundleName string
	bundle     []byte
}

func (r *runResult) statements() int { return r.nextID - r.firstID }

const mergedName = "merged_output.kml"

type processor struct {
	ws  workspace
	st  *sqliteStore // run ledger, nil to skip recording
	log *slog.Logger
}

// run processes one batch of uploads for a city: stage, extract,
// sanitize, emit statements with one counter threaded through every
// file, then merge and bundle. Per-file failures are isolated; only an
// empty batch or a missing city rejects the run, and both do so before
// any directory is touched.
func (p processor) run(files []upload, city string) (*runResult, error) {
	if len(files) == 0 {
		return nil, errEmptyUpload
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, errNoCity
	}

	if err := p.ws.reset(); err != nil {
		return nil, err
	}

	res := &runResult{
		city:    city,
		firstID: counterBase,
		nextID:  counterBase,
	}

	var sqlBuf bytes.Buffer
	count := counterBase

	for _, up := range files {
		outcome, nextCount := p.processFile(up, city, count, &sqlBuf, res)
		res.outcomes = append(res.outcomes, outcome)
		count = nextCount
	}
	res.nextID = count
	res.sql = sqlBuf.String()

	res.mergedPath = filepath.Join(p.ws.markupDir, mergedName)
	if err := mergeKML(p.ws.markupDir, res.mergedPath, count, p.log); err != nil {
		return nil, err
	}

	bundle, err := bundleKML(p.ws.markupDir)
	if err != nil {
		return nil, err
	}
	res.bundle = bundle
	res.bundleName = city + "_kml_output.zip"

	res.status = "ok"
	res.message = "Processing complete! Your files are ready."
	var skipped int
	for _, o := range res.outcomes {
		if !o.ok {
			skipped++
		}
	}
	if skipped > 0 {
		res.status = "warning"
		res.message = fmt.Sprintf("Processing finished, %d file(s) skipped.", skipped)
	}

	if p.st != nil {
		if _, err := p.st.recordRun(res); err != nil {
			p.log.Warn("recording run failed", "err", err)
		}
	}

	return res, nil
}

// processFile takes one upload from staging through statement
// emission. It returns the outcome and the counter to use for the
// next file; a skipped file leaves the counter untouched.
func (p processor) processFile(up upload, city string, count int, sqlBuf *bytes.Buffer, res *runResult) (fileOutcome, int) {
	skip := func(reason string, err error) (fileOutcome, int) {
		p.log.Warn("skipping file", "file", up.name, "reason", reason, "err", err)
		return fileOutcome{file: up.name, reason: reason}, count
	}

	stagePath := filepath.Join(p.ws.archiveDir, filepath.Base(up.name))
	if err := os.WriteFile(stagePath, up.data, 0o644); err != nil {
		return skip("staging failed", err)
	}

	var kmlPath string
	switch strings.ToLower(filepath.Ext(up.name)) {
	case ".kmz":
		var err error
		kmlPath, err = extractKMZ(stagePath, p.ws.markupDir)
		if err != nil {
			return skip("no kml member in archive", err)
		}
	case ".kml":
		kmlPath = filepath.Join(p.ws.markupDir, filepath.Base(up.name))
		if err := moveFile(stagePath, kmlPath); err != nil {
			return skip("staging failed", err)
		}
	default:
		return skip("unsupported extension", nil)
	}

	cleaned, err := sanitizeKML(kmlPath)
	if err != nil {
		os.Remove(kmlPath)
		return skip("malformed document", err)
	}

	key := groupingKey(up.name, city)

	// Emit into a scratch buffer first so a file that fails partway
	// contributes nothing, per the isolation policy.
	var fileSQL bytes.Buffer
	next, err := emitStatements(cleaned, count, key, &fileSQL)
	if err != nil {
		os.Remove(cleaned)
		return skip("malformed document", err)
	}
	sqlBuf.Write(fileSQL.Bytes())

	rows, geom, err := collectGeometry(cleaned, up.name)
	if err == nil {
		res.rows = append(res.rows, rows...)
		if len(geom.lines) > 0 {
			res.geometries = append(res.geometries, geom)
		}
	}

	return fileOutcome{file: up.name, ok: true}, next
}

// bundleKML zips every .kml file in dir, merged output included, for
// download as one artifact.
func bundleKML(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ".kml") {
			continue
		}
		w, err := zw.Create(e.Name())
		if err != nil {
			return nil, err
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(w, f); err != nil {
			f.Close()
			return nil, err
		}
		f.Close()
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
