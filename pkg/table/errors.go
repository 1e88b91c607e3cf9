package table

import "errors"

// Error kinds returned by [Table] operations. Callers match them with
// [errors.Is]; every returned error wraps exactly one of these.
var (
	// ErrNotFound is returned by [Open] when the backing file is missing or
	// cannot be read.
	ErrNotFound = errors.New("table file not found or unreadable")

	// ErrIndex is returned when a line index is outside [0, Size()).
	ErrIndex = errors.New("line index out of range")

	// ErrRange is returned when a field index is outside a line's field
	// count, or when a (start, end) row range is invalid.
	ErrRange = errors.New("field index or row range out of range")

	// ErrIO is returned when persisting the table to its backing file fails.
	ErrIO = errors.New("persisting table failed")

	// ErrDelimiter is returned when a table is opened with an empty delimiter.
	ErrDelimiter = errors.New("delimiter cannot be empty")

	// ErrExists is returned by [Create] when the backing file already exists.
	ErrExists = errors.New("table file already exists")
)
