package main

import (
	"bytes"
	"encoding/xml"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func kmlDoc(placemarks ...string) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<kml xmlns="http://www.opengis.net/kml/2.2"><Document>`)
	for _, p := range placemarks {
		b.WriteString(p)
	}
	b.WriteString(`</Document></kml>`)
	return b.String()
}

func pmLine(coords string) string {
	return "<Placemark><LineString><coordinates>" + coords + "</coordinates></LineString></Placemark>"
}

func pmPoint(coords string) string {
	return "<Placemark><Point><coordinates>" + coords + "</coordinates></Point></Placemark>"
}

func pmPolygon(coords string) string {
	return "<Placemark><Polygon><outerBoundaryIs><LinearRing><coordinates>" + coords + "</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark>"
}

func writeTempKML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.kml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestEmitStatements(t *testing.T) {
	cases := []struct {
		name     string
		doc      string
		start    int
		key      string
		want     []string
		wantNext int
	}{
		{
			name:  "TwoTuples",
			doc:   kmlDoc(pmLine("15.97,45.80,0 15.98,45.81,0")),
			start: 30000,
			key:   "Zagreb",
			want: []string{
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30000, 'Zagreb', 15.97, 45.8);",
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30001, 'Zagreb', 15.98, 45.81);",
			},
			wantNext: 30002,
		},
		{
			name:  "MalformedGroupSkipped",
			doc:   kmlDoc(pmLine("15.97 15.98,45.81")),
			start: 30000,
			key:   "Zagreb",
			want: []string{
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30000, 'Zagreb', 15.98, 45.81);",
			},
			wantNext: 30001,
		},
		{
			name:  "NonNumericFieldSkipped",
			doc:   kmlDoc(pmLine("x,45.80 15.98,45.81")),
			start: 30000,
			key:   "Zagreb",
			want: []string{
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30000, 'Zagreb', 15.98, 45.81);",
			},
			wantNext: 30001,
		},
		{
			name:     "EmptyCoordinates",
			doc:      kmlDoc(pmLine("   \n\t ")),
			start:    30000,
			key:      "Zagreb",
			wantNext: 30000,
		},
		{
			name:  "AltitudeIgnored",
			doc:   kmlDoc(pmPoint("16.44,43.51,120.5")),
			start: 30000,
			key:   "Split",
			want: []string{
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30000, 'Split', 16.44, 43.51);",
			},
			wantNext: 30001,
		},
		{
			name:  "QuoteInKeyDoubled",
			doc:   kmlDoc(pmPoint("16.44,43.51")),
			start: 30000,
			key:   "O'Brien",
			want: []string{
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30000, 'O''Brien', 16.44, 43.51);",
			},
			wantNext: 30001,
		},
		{
			name:  "InjectedStartCounter",
			doc:   kmlDoc(pmPoint("16.44,43.51")),
			start: 31234,
			key:   "Split",
			want: []string{
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (31234, 'Split', 16.44, 43.51);",
			},
			wantNext: 31235,
		},
		{
			name: "DocumentOrderAcrossGeometryTypes",
			doc: kmlDoc(
				pmPoint("1,2"),
				pmPolygon("3,4 5,6 3,4"),
			),
			start: 30000,
			key:   "Zadar",
			want: []string{
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30000, 'Zadar', 1, 2);",
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30001, 'Zadar', 3, 4);",
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30002, 'Zadar', 5, 6);",
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30003, 'Zadar', 3, 4);",
			},
			wantNext: 30004,
		},
		{
			name: "MultiGeometryWalkedInOrder",
			doc: kmlDoc(
				"<Placemark><MultiGeometry><Point><coordinates>1,2</coordinates></Point><LineString><coordinates>3,4 5,6</coordinates></LineString></MultiGeometry></Placemark>",
			),
			start: 30000,
			key:   "Pula",
			want: []string{
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30000, 'Pula', 1, 2);",
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30001, 'Pula', 3, 4);",
				"INSERT INTO street_coordinates (id, working_street_id, longitude, latitude) VALUES (30002, 'Pula', 5, 6);",
			},
			wantNext: 30003,
		},
		{
			name:     "CoordinatesOutsidePlacemarkIgnored",
			doc:      xml.Header + `<kml xmlns="http://www.opengis.net/kml/2.2"><Document><LookAt><coordinates>1,2</coordinates></LookAt></Document></kml>`,
			start:    30000,
			key:      "Zagreb",
			wantNext: 30000,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempKML(t, tc.doc)

			var buf bytes.Buffer
			next, err := emitStatements(path, tc.start, tc.key, &buf)
			if err != nil {
				t.Fatal(err)
			}

			if d := cmp.Diff(tc.want, lines(buf.String())); d != "" {
				t.Errorf("statement mismatch (-want +got):\n%s", d)
			}
			if next != tc.wantNext {
				t.Errorf("next counter = %d, want %d", next, tc.wantNext)
			}
		})
	}
}

func TestCollectGeometry(t *testing.T) {
	doc := kmlDoc(
		pmLine("15.97,45.80,0 15.98,45.81,0"),
		pmPoint("16.44,43.51"),
	)
	path := writeTempKML(t, doc)

	rows, geom, err := collectGeometry(path, "upload.kml")
	if err != nil {
		t.Fatal(err)
	}

	wantRows := []coordRow{
		{lat: 45.80, lon: 15.97, file: "upload.kml"},
		{lat: 45.81, lon: 15.98, file: "upload.kml"},
		{lat: 43.51, lon: 16.44, file: "upload.kml"},
	}
	if d := cmp.Diff(wantRows, rows, cmp.AllowUnexported(coordRow{})); d != "" {
		t.Errorf("row mismatch (-want +got):\n%s", d)
	}

	if got := len(geom.lines); got != 2 {
		t.Errorf("got %d lines, want 2", got)
	}
	if got := len(geom.lines[0]); got != 2 {
		t.Errorf("first line has %d points, want 2", got)
	}
}

func TestParseCoordinate(t *testing.T) {
	cases := []struct {
		in       string
		lon, lat float64
		ok       bool
	}{
		{"15.97,45.80,0", 15.97, 45.80, true},
		{"15.97,45.80", 15.97, 45.80, true},
		{"15.97", 0, 0, false},
		{"", 0, 0, false},
		{"a,b", 0, 0, false},
		{"-71.06,42.35", -71.06, 42.35, true},
	}

	for _, tc := range cases {
		lon, lat, ok := parseCoordinate(tc.in)
		if lon != tc.lon || lat != tc.lat || ok != tc.ok {
			t.Errorf("parseCoordinate(%q) = %v, %v, %v; want %v, %v, %v", tc.in, lon, lat, ok, tc.lon, tc.lat, tc.ok)
		}
	}
}
