package artifact

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"kassandra/internal/domain"
	"kassandra/internal/fusion"
)

const dateLayout = "2006-01-02"

// WriteFeatureTable writes the fused table to path as CSV: date, every
// column in declared order, then the target. The pending row is appended
// with an empty target cell.
func WriteFeatureTable(path string, table *fusion.Table) error {
	if table == nil || len(table.Rows) == 0 {
		return fmt.Errorf("refusing to write an empty feature table")
	}

	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"date"}, table.Columns...)
	header = append(header, "target")
	if err := w.Write(header); err != nil {
		return err
	}

	writeRow := func(row fusion.Row, target string) error {
		record := make([]string, 0, len(row.Values)+2)
		record = append(record, row.Date.Format(dateLayout))
		for _, v := range row.Values {
			record = append(record, formatFloat(v))
		}
		record = append(record, target)
		return w.Write(record)
	}

	for _, row := range table.Rows {
		if err := writeRow(row, formatFloat(row.Target)); err != nil {
			return err
		}
	}
	if table.Pending != nil {
		if err := writeRow(*table.Pending, ""); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WritePredictionLog writes the test-partition prediction log to path.
func WritePredictionLog(path string, records []domain.PredictionRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("refusing to write an empty prediction log")
	}

	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "actual", "predicted"}); err != nil {
		return err
	}
	for _, rec := range records {
		record := []string{
			rec.Date.Format(dateLayout),
			formatFloat(rec.Actual),
			formatFloat(rec.Predicted),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
