package table

import (
	"errors"
	"fmt"
)

// ErrNoRows is returned by Calculate when the table has a header but no data
// rows; metrics over nothing would be undefined rather than zero.
var ErrNoRows = errors.New("the CSV file is empty")

// ErrNoProducts is returned when every row has an empty Product cell, which
// leaves the grouped reductions without any group.
var ErrNoProducts = errors.New("no product values present in CSV")

// MissingColumnError reports a required column absent from the header.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q not found in CSV", e.Column)
}

// NoNumericError reports a numeric column holding no parseable value at all,
// which leaves its extremum undefined.
type NoNumericError struct {
	Column string
}

func (e *NoNumericError) Error() string {
	return fmt.Sprintf("no numeric values in column %q", e.Column)
}
