package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// RawTable is what both readers hand to the normalizer: a header row and the
// raw string cells underneath it. No typing happens here.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// ReadCSV parses CSV text into a RawTable. Ragged rows are tolerated; the
// normalizer treats short rows as empty cells.
func ReadCSV(r io.Reader) (RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	all, err := reader.ReadAll()
	if err != nil {
		return RawTable{}, fmt.Errorf("read csv: %w", err)
	}
	if len(all) == 0 {
		return RawTable{}, fmt.Errorf("no header row")
	}
	if len(all) < 2 {
		return RawTable{}, fmt.Errorf("no data rows")
	}

	headers := make([]string, len(all[0]))
	for i, h := range all[0] {
		headers[i] = strings.TrimSpace(strings.Trim(h, `"`))
	}
	return RawTable{Headers: headers, Rows: all[1:]}, nil
}
