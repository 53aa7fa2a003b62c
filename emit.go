package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// counterBase is the first identifier issued in a run. Identifiers
// increase by one per emitted statement and are never reused within a
// run, even across files.
const counterBase = 30000

// emitStatements walks the placemarks of the cleaned document at path
// and writes one INSERT statement per coordinate group to w, starting
// at identifier start. It returns the next free identifier so the
// counter can be threaded through the rest of the run. Point, line and
// polygon coordinates are treated uniformly as ordered groups.
func emitStatements(path string, start int, key string, w io.Writer) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return start, err
	}
	defer f.Close()

	quotedKey := strings.ReplaceAll(key, "'", "''")

	dec := xml.NewDecoder(f)
	count := start
	inPlacemark := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return start, fmt.Errorf("%s: %w", filepath.Base(path), errMalformedKML)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Placemark" {
				inPlacemark++
				continue
			}
			if inPlacemark == 0 || t.Name.Local != "coordinates" {
				continue
			}
			var text string
			if err := dec.DecodeElement(&text, &t); err != nil {
				return start, fmt.Errorf("%s: %w", filepath.Base(path), errMalformedKML)
			}
			for _, group := range strings.Fields(text) {
				lon, lat, ok := parseCoordinate(group)
				if !ok {
					continue
				}
				if _, err := fmt.Fprintf(w, "INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (%d, '%s', %s, %s);\n",
					count, quotedKey, formatFloat(lon), formatFloat(lat)); err != nil {
					return start, err
				}
				count++
			}
		case xml.EndElement:
			if t.Name.Local == "Placemark" {
				inPlacemark--
			}
		}
	}

	return count, nil
}

// parseCoordinate splits one whitespace-delimited coordinate group on
// commas. Field 0 is longitude, field 1 latitude; anything after that
// (altitude) is ignored. Groups with fewer than two numeric fields are
// skipped by the caller, not treated as errors.
func parseCoordinate(group string) (lon, lat float64, ok bool) {
	parts := strings.Split(group, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false
	}
	lat, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, false
	}
	return lon, lat, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type coordRow struct {
	lat, lon float64
	file     string
}

// fileGeometry is the map/table view of one processed file: every
// coordinates element becomes one line string.
type fileGeometry struct {
	file  string
	lines []orb.LineString
}

// collectGeometry re-reads a cleaned document for display purposes. It
// is tolerant by design: the statement emitter is the authority on
// what counts, this pass only feeds the coordinate table and the map.
func collectGeometry(path, displayName string) ([]coordRow, fileGeometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fileGeometry{}, err
	}
	defer f.Close()

	var rows []coordRow
	geom := fileGeometry{file: displayName}

	dec := xml.NewDecoder(f)
	inPlacemark := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fileGeometry{}, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Placemark" {
				inPlacemark++
				continue
			}
			if inPlacemark == 0 || t.Name.Local != "coordinates" {
				continue
			}
			var text string
			if err := dec.DecodeElement(&text, &t); err != nil {
				return nil, fileGeometry{}, err
			}
			var ls orb.LineString
			for _, group := range strings.Fields(text) {
				lon, lat, ok := parseCoordinate(group)
				if !ok {
					continue
				}
				rows = append(rows, coordRow{lat: lat, lon: lon, file: displayName})
				ls = append(ls, orb.Point{lon, lat})
			}
			if len(ls) > 0 {
				geom.lines = append(geom.lines, ls)
			}
		case xml.EndElement:
			if t.Name.Local == "Placemark" {
				inPlacemark--
			}
		}
	}

	return rows, geom, nil
}
