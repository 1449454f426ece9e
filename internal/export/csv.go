package export

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// WriteCSV writes a header row and one row per record.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range records {
		if err := cw.Write(r.Cells()); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", r.GEOID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// SaveCSV writes records to a CSV file at path.
func SaveCSV(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
