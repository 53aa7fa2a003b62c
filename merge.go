package main

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/twpayne/go-kml"
)

// gxNamespace is declared on the merged root so gx-prefixed elements
// carried over from source documents stay resolvable.
const gxNamespace = "http://www.google.com/kml/ext/2.2"

// rawPlacemark is a placemark captured verbatim from a source
// document. Only the id attributes are kept; the body is carried as
// raw inner XML so merging never re-interprets geometry.
type rawPlacemark struct {
	ID       string `xml:"id,attr"`
	TargetID string `xml:"targetId,attr"`
	Inner    string `xml:",innerxml"`
}

// mergeKML combines the placemarks of every .kml file in dir into one
// document at outPath, under a single root carrying the KML 2.2 and gx
// namespaces. Files are taken in lexicographic name order so merged
// output is stable across runs. A file that fails to parse is skipped
// with a warning; zero parseable inputs still produce a valid, empty
// document. finalCounter is the last run's next free identifier,
// logged here to cross-reference the merge with the extraction phase.
func mergeKML(dir, outPath string, finalCounter int, log *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var placemarks []rawPlacemark
	files := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ".kml") {
			continue
		}
		pms, err := collectPlacemarks(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Warn("skipping unparseable file in merge", "file", e.Name(), "err", err)
			continue
		}
		placemarks = append(placemarks, pms...)
		files++
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	fmt.Fprintf(&buf, "<kml xmlns=%q xmlns:gx=%q>\n<Document>\n", kml.Namespace, gxNamespace)
	for _, pm := range placemarks {
		buf.WriteString("<Placemark")
		writeAttr(&buf, "id", pm.ID)
		writeAttr(&buf, "targetId", pm.TargetID)
		buf.WriteString(">")
		buf.WriteString(pm.Inner)
		buf.WriteString("</Placemark>\n")
	}
	buf.WriteString("</Document>\n</kml>\n")

	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return err
	}

	log.Info("merged documents", "files", files, "placemarks", len(placemarks), "final_id", finalCounter)
	return nil
}

func collectPlacemarks(path string) ([]rawPlacemark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []rawPlacemark
	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Placemark" {
			continue
		}
		var pm rawPlacemark
		if err := dec.DecodeElement(&pm, &se); err != nil {
			return nil, err
		}
		out = append(out, pm)
	}
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(name)
	buf.WriteString(`="`)
	xml.EscapeText(buf, []byte(value))
	buf.WriteString(`"`)
}
