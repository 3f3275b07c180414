package ingest

import "errors"

var (
	// ErrSourceUnreadable is returned when an input file is missing,
	// corrupt or of an unsupported format.
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrSchemaMismatch is returned when a table lacks a required column.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrNoValidSheets is returned when no sheet of the alarm workbook has
	// the required columns.
	ErrNoValidSheets = errors.New("no valid sheets")
)
