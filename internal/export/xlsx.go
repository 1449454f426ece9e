package export

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet names of the workbook export.
const (
	SheetScored   = "scored"
	SheetSelected = "selected"
)

// Workbook builds a workbook with a scored sheet and a selected sheet.
// Numeric cells are written as numbers.
func Workbook(scored, selected []Record) (*xlsx.File, error) {
	f := xlsx.NewFile()
	for _, s := range []struct {
		name    string
		records []Record
	}{
		{SheetScored, scored},
		{SheetSelected, selected},
	} {
		sheet, err := f.AddSheet(s.name)
		if err != nil {
			return nil, eris.Wrapf(err, "export: add sheet %s", s.name)
		}
		header := sheet.AddRow()
		for _, c := range Columns {
			header.AddCell().SetString(c)
		}
		for _, r := range s.records {
			row := sheet.AddRow()
			for i, v := range r.Cells() {
				cell := row.AddCell()
				// GEOID and charging_type stay text.
				if i == 1 || i == 2 || v == "" {
					cell.SetString(v)
					continue
				}
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					cell.SetFloat(n)
				} else {
					cell.SetString(v)
				}
			}
		}
	}
	return f, nil
}

// WriteXLSX writes the workbook to w.
func WriteXLSX(w io.Writer, scored, selected []Record) error {
	f, err := Workbook(scored, selected)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}

// SaveXLSX writes the workbook to path.
func SaveXLSX(path string, scored, selected []Record) error {
	f, err := Workbook(scored, selected)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}
