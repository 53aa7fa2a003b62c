package main

import (
	"github.com/xuri/excelize/v2"
)

// writeXLSX exports the coordinate table, same column order as the
// on-screen table: lat, lon, file.
func writeXLSX(rows []coordRow, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, h := range []string{"lat", "lon", "file"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for i, row := range rows {
		for j, v := range []interface{}{row.lat, row.lon, row.file} {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}
