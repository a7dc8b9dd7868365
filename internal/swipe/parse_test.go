package swipe

import (
	"errors"
	"testing"
)

const delimitedHeader = "Roll No|Name|Swipe TIme|Batch|Location"

func TestParseDelimitedBasic(t *testing.T) {
	data := delimitedHeader + "\n" +
		"R001|Asha|2025-08-18 09:02:11|B1|Gate A\n" +
		"R002|Vikram|2025-08-18 09:05|B1|Gate A\n"
	events, _, err := Parse([]byte(data), FormatDelimited)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	first := events[0]
	if first.RollNumber != "R001" || first.Date != "2025-08-18" || first.ClockTime != "09:02" {
		t.Errorf("unexpected first event: %+v", first)
	}
	if first.Name != "Asha" || first.BatchLabel != "B1" {
		t.Errorf("name/batch not carried: %+v", first)
	}
}

func TestParseDelimitedMultilineField(t *testing.T) {
	// The geolocation column carries a raw newline; the record spans
	// two physical lines and must still count as one event.
	folded := delimitedHeader + "\n" +
		"R001|Asha|2025-08-18 09:02|B1|12.97,77.59\nGate A Campus\n" +
		"R002|Vikram|2025-08-18 09:05|B1|Gate A\n"
	flat := delimitedHeader + "\n" +
		"R001|Asha|2025-08-18 09:02|B1|12.97,77.59 Gate A Campus\n" +
		"R002|Vikram|2025-08-18 09:05|B1|Gate A\n"

	foldedEvents, _, err := Parse([]byte(folded), FormatDelimited)
	if err != nil {
		t.Fatalf("Parse folded: %v", err)
	}
	flatEvents, _, err := Parse([]byte(flat), FormatDelimited)
	if err != nil {
		t.Fatalf("Parse flat: %v", err)
	}
	if len(foldedEvents) != len(flatEvents) {
		t.Fatalf("folded file yields %d events, flat yields %d", len(foldedEvents), len(flatEvents))
	}
	if foldedEvents[0].RollNumber != "R001" || foldedEvents[1].RollNumber != "R002" {
		t.Errorf("rows corrupted by folding: %+v", foldedEvents)
	}
}

func TestParseVendorTimestamp(t *testing.T) {
	data := "Roll Number|Name|Swipe DateTime\n" +
		"R003|Meera|Aug 18 2025 09:07 AM\n" +
		"R004|Kiran|Aug 18 2025 02:15 PM\n"
	events, _, err := Parse([]byte(data), FormatDelimited)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ClockTime != "09:07" {
		t.Errorf("AM clock = %q", events[0].ClockTime)
	}
	if events[1].ClockTime != "14:15" {
		t.Errorf("PM clock = %q", events[1].ClockTime)
	}
}

func TestParseDropsBadRows(t *testing.T) {
	data := delimitedHeader + "\n" +
		"|Nameless|2025-08-18 09:02|B1|x\n" + // no roll number
		"R005|Asha|not a time|B1|x\n" + // bad timestamp
		"R006|Veda|2025-08-18 09:04|B1|x\n"
	events, rows, err := Parse([]byte(data), FormatDelimited)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 1 || events[0].RollNumber != "R006" {
		t.Fatalf("bad rows not dropped: %+v", events)
	}
	if rows != 3 {
		t.Errorf("rowsRead = %d, want 3", rows)
	}
}

func TestParseDeduplicatesSameMinute(t *testing.T) {
	data := delimitedHeader + "\n" +
		"R001|Asha|2025-08-18 09:02:10|B1|x\n" +
		"R001|Asha|2025-08-18 09:02:55|B1|x\n" + // same minute, same punch
		"R001|Asha|2025-08-18 09:03:00|B1|x\n"
	events, _, err := Parse([]byte(data), FormatDelimited)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (same-minute dup dropped)", len(events))
	}
}

func TestParseEmptyYieldsNoRecords(t *testing.T) {
	data := delimitedHeader + "\n" +
		"|Nameless|2025-08-18 09:02|B1|x\n"
	_, _, err := Parse([]byte(data), FormatDelimited)
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("err = %v, want ErrNoRecords", err)
	}
}

func TestParseRejectsNonDelimited(t *testing.T) {
	_, _, err := Parse([]byte("just some prose\nwith no pipes\n"), FormatDelimited)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name string
		want Format
		ok   bool
	}{
		{"swipes.xlsx", FormatXLSX, true},
		{"export.TXT", FormatDelimited, true},
		{"dump.csv", FormatDelimited, true},
		{"image.png", "", false},
		{"noext", "", false},
	}
	for _, c := range cases {
		got, err := DetectFormat(c.name)
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("DetectFormat(%q) = %v, %v", c.name, got, err)
		}
		if !c.ok && !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("DetectFormat(%q) err = %v, want ErrUnsupportedFormat", c.name, err)
		}
	}
}

func TestHeaderAliasFamilies(t *testing.T) {
	// Both vendor spellings of the swipe-time header must work.
	for _, hdr := range []string{"Swipe TIme", "Swipe Time", "Swipe DateTime"} {
		data := "Roll No|" + hdr + "\nR001|2025-08-18 09:02\n"
		events, _, err := Parse([]byte(data), FormatDelimited)
		if err != nil || len(events) != 1 {
			t.Errorf("header %q: events=%v err=%v", hdr, events, err)
		}
	}
}
