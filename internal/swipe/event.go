package swipe

import (
	"errors"
	"strings"
	"time"
)

// Event is one normalized biometric punch. Date and ClockTime are the
// local-calendar decomposition of Timestamp; the source timestamp is
// naive local time and is never shifted between zones.
type Event struct {
	RollNumber string    `json:"roll_number"`
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
	Date       string    `json:"date"`       // 2006-01-02
	ClockTime  string    `json:"clock_time"` // HH:MM
	BatchLabel string    `json:"batch_label"`
}

// Format selects the source file layout.
type Format string

const (
	FormatXLSX      Format = "xlsx"
	FormatDelimited Format = "delimited"
)

var (
	// ErrUnsupportedFormat means the file is neither a spreadsheet nor
	// the vendor's pipe-delimited export.
	ErrUnsupportedFormat = errors.New("unsupported swipe file format")
	// ErrNoRecords means parsing succeeded but produced zero usable rows.
	ErrNoRecords = errors.New("no swipe records in file")
)

// DetectFormat picks a format from the file name extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(lastExt(filename)) {
	case ".xlsx", ".xls":
		return FormatXLSX, nil
	case ".txt", ".csv", ".dat", ".log":
		return FormatDelimited, nil
	}
	return "", ErrUnsupportedFormat
}

func lastExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// Parse normalizes raw file bytes into deduplicated events. rowsRead
// is the raw data-row count before normalization; the gap between it
// and len(events) is how many rows were dropped or deduplicated.
func Parse(data []byte, format Format) (events []Event, rowsRead int, err error) {
	var rows []map[string]string
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(data)
	case FormatDelimited:
		rows, err = readDelimited(data)
	default:
		return nil, 0, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, 0, err
	}

	events = make([]Event, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		evt, ok := normalizeRow(row)
		if !ok {
			continue
		}
		key := evt.RollNumber + "|" + evt.Date + "|" + evt.ClockTime
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		events = append(events, evt)
	}
	if len(events) == 0 {
		return nil, len(rows), ErrNoRecords
	}
	return events, len(rows), nil
}

// Accepted header spellings per logical field, tried in order. The
// "Swipe TIme" entry is a real vendor export header, misspelling included.
var (
	rollAliases  = []string{"Roll No", "Roll Number"}
	timeAliases  = []string{"Swipe TIme", "Swipe Time", "Swipe DateTime"}
	nameAliases  = []string{"Name", "Person Name", "Employee Name"}
	batchAliases = []string{"Batch", "Batch Label"}
)

func lookup(row map[string]string, aliases []string) string {
	for _, key := range aliases {
		if v, ok := row[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// normalizeRow maps one header→value row to an Event. Rows missing a
// roll number or a parseable timestamp are dropped, not errored:
// partial vendor files are normal.
func normalizeRow(row map[string]string) (Event, bool) {
	roll := lookup(row, rollAliases)
	raw := lookup(row, timeAliases)
	if roll == "" || raw == "" {
		return Event{}, false
	}
	ts, ok := parseTimestamp(raw)
	if !ok {
		return Event{}, false
	}
	return Event{
		RollNumber: roll,
		Name:       lookup(row, nameAliases),
		Timestamp:  ts,
		Date:       ts.Format("2006-01-02"),
		ClockTime:  ts.Format("15:04"),
		BatchLabel: lookup(row, batchAliases),
	}, true
}

// ISO-like layouts first, then the vendor's 12-hour format
// ("MMM DD YYYY HH:MM AM"). Seconds optional in both families.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"Jan 2 2006 3:04:05 PM",
	"Jan 2 2006 3:04 PM",
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
