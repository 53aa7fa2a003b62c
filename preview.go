package main

import (
	"fmt"
	"image/color"
	"io"

	"github.com/mazznoer/colorgrad"
	"github.com/twpayne/go-kml"
)

// writeOverviewKML renders the extracted geometry as a standalone
// preview document, one placemark per source file, coloured along a
// gradient so files are distinguishable in a viewer.
func writeOverviewKML(geoms []fileGeometry, w io.Writer) error {
	colors, err := fileColors(len(geoms))
	if err != nil {
		return err
	}

	var placemarks []kml.Element
	for i, g := range geoms {
		var lineStrings []kml.Element
		for _, ls := range g.lines {
			coords := make([]kml.Coordinate, 0, len(ls))
			for _, pt := range ls {
				coords = append(coords, kml.Coordinate{Lon: pt.Lon(), Lat: pt.Lat()})
			}
			lineStrings = append(lineStrings, kml.LineString(kml.Coordinates(coords...)))
		}

		placemarks = append(placemarks, kml.Placemark(
			kml.Name(g.file),
			kml.StyleURL(fmt.Sprintf("#file-%d", i)),
			kml.MultiGeometry(lineStrings...),
		))
	}

	folder := kml.Folder(kml.Name("Processed files"))
	folder.Add(placemarks...)

	doc := kml.Document()
	for i, col := range colors {
		doc.Add(kml.SharedStyle(fmt.Sprintf("file-%d", i), kml.LineStyle(kml.Width(4), kml.Color(col))))
	}
	doc.Add(folder)
	k := kml.KML(doc)
	return k.WriteIndent(w, "", "  ")
}

// fileColors picks n colours along a fixed gradient, one per source
// file. Returned as color.Color so both the KML styles and the hex
// values for the map payload can use them.
func fileColors(n int) ([]color.Color, error) {
	if n < 1 {
		n = 1
	}
	grad, err := colorgrad.NewGradient().HtmlColors("#aa0026", "darkorange", "#2a6f97").Build()
	if err != nil {
		return nil, err
	}

	out := make([]color.Color, 0, n)
	for i := 0; i < n; i++ {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		out = append(out, grad.At(t))
	}
	return out, nil
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
