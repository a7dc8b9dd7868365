package swipe

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// readDelimited parses the vendor's pipe-separated export. The first
// line is the header. A data record may span several physical lines:
// the export embeds raw newlines inside the last column (usually a
// geolocation blob) without any quoting, so a record with fewer fields
// than the header absorbs following lines into its last field until
// the field count catches up.
func readDelimited(data []byte) ([]map[string]string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedFormat)
	}
	header := splitFields(scanner.Text())
	if len(header) < 2 || !strings.Contains(scanner.Text(), "|") {
		return nil, fmt.Errorf("%w: missing pipe-separated header", ErrUnsupportedFormat)
	}

	var rows []map[string]string
	var pending string
	havePending := false

	flush := func() {
		if !havePending {
			return
		}
		fields := splitFields(pending)
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(fields) {
				row[key] = fields[i]
			}
		}
		rows = append(rows, row)
		pending = ""
		havePending = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		if havePending {
			// Short record from a previous line: fold this line into
			// its last field and re-check the count.
			pending += "\n" + line
			if len(splitFields(pending)) >= len(header) {
				flush()
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		pending = line
		havePending = true
		if len(splitFields(pending)) >= len(header) {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read delimited file: %w", err)
	}
	flush() // trailing short record: keep whatever fields it has

	return rows, nil
}

func splitFields(line string) []string {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(strings.Trim(parts[i], "\r"))
	}
	return parts
}
