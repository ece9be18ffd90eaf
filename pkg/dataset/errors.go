package dataset

import "fmt"

// MissingColumnError reports a required column absent from an input
// table. Loading aborts immediately; the pipeline never proceeds with a
// partial schema.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table %q: required column %q is missing", e.Table, e.Column)
}

// ValueError reports a cell that could not be parsed into its typed
// representation. Row is 1-based and counts the header.
type ValueError struct {
	Table  string
	Column string
	Row    int
	Err    error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf(
		"table %q: row %d, column %q: %v", e.Table, e.Row, e.Column, e.Err,
	)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}
