package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rivo/tview"
)

// review shows the cleaned documents of the last run: a list of files
// on the left, the coordinate table and a summary for the selected
// file on the right.
func review(_ context.Context, ws workspace, _ []string) error {
	entries, err := os.ReadDir(ws.markupDir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".kml") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no kml files in %s, run process first", ws.markupDir)
	}

	app := tview.NewApplication()

	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true).SetTitle("files")

	table := tview.NewTable()
	table.SetBorder(true).SetTitle("coordinates")

	infoText := tview.NewTextView()
	infoText.SetDynamicColors(true)

	info := tview.NewFlex()
	info.AddItem(infoText, 0, 1, false)

	right := tview.NewFlex()
	right.SetDirection(tview.FlexRow)
	right.AddItem(table, 0, 4, false)
	right.AddItem(info, 0, 1, false)

	flex := tview.NewFlex().
		AddItem(list, 0, 1, true).
		AddItem(right, 0, 3, false)

	frs := make([]fileRenderer, 0, len(names))
	for _, name := range names {
		fr := fileRenderer{
			path:     filepath.Join(ws.markupDir, name),
			name:     name,
			table:    table,
			infoText: infoText,
		}

		list.AddItem(name, "", 0, fr.selected)

		frs = append(frs, fr)
	}

	list.SetChangedFunc(func(index int, mainText string, secondaryText string, shortcut rune) {
		frs[index].changed()
	})

	frs[0].changed()

	return app.SetRoot(flex, true).Run()
}

type fileRenderer struct {
	path string
	name string

	table    *tview.Table
	infoText *tview.TextView
}

func (r fileRenderer) selected() {
	r.changed()
}

func (r fileRenderer) changed() {
	r.table.Clear()
	r.infoText.Clear()

	rows, geom, err := collectGeometry(r.path, r.name)
	if err != nil {
		fmt.Fprintln(r.infoText, "[red]Error:", err)
		return
	}

	for i, h := range []string{"lat", "lon"} {
		r.table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false))
	}
	for i, row := range rows {
		r.table.SetCell(i+1, 0, tview.NewTableCell(formatFloat(row.lat)))
		r.table.SetCell(i+1, 1, tview.NewTableCell(formatFloat(row.lon)))
	}

	fmt.Fprintf(r.infoText, "%s: %d coordinate(s) in %d line(s)\n", r.name, len(rows), len(geom.lines))
}
