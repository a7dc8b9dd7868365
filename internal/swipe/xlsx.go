package swipe

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readXLSX flattens the first sheet of a spreadsheet into header→value
// rows. The first row is the header; blank header cells are skipped.
func readXLSX(data []byte) ([]map[string]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnsupportedFormat)
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", ErrUnsupportedFormat)
	}

	header := cells[0]
	var rows []map[string]string
	for _, line := range cells[1:] {
		row := make(map[string]string, len(header))
		empty := true
		for i, key := range header {
			key = strings.TrimSpace(key)
			if key == "" || i >= len(line) {
				continue
			}
			val := strings.TrimSpace(line[i])
			if val != "" {
				empty = false
			}
			row[key] = val
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
