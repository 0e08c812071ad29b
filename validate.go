package main

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// validateCSVUpload checks a candidate file before anything is persisted or
// dispatched: extension, size ceiling, and a readable non-empty first line.
// The reader is rewound to the start on success. Column structure is not
// inspected here; the metrics calculator owns that.
//
// Returns a field->message map on rejection, nil on acceptance.
func validateCSVUpload(name string, size int64, f io.ReadSeeker, maxSize int64) map[string]string {
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return map[string]string{"file": "only CSV files are allowed"}
	}
	if size > maxSize {
		return map[string]string{"file": fmt.Sprintf("file size must be under %dMB", maxSize>>20)}
	}

	// Only a bounded prefix is read; a huge first line counts as unreadable.
	br := bufio.NewReaderSize(io.LimitReader(f, 64*1024), 4096)
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return map[string]string{"file": "unable to read the CSV file"}
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return map[string]string{"file": "the CSV file appears to be empty"}
	}
	if !utf8.ValidString(line) {
		return map[string]string{"file": "unable to read the CSV file"}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return map[string]string{"file": "unable to read the CSV file"}
	}
	return nil
}
