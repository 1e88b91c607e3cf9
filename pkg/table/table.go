// Package table provides an in-memory cache over a delimiter-separated text
// file.
//
// A [Table] loads the whole file into an ordered slice of lines, gives
// indexed access to lines and to the delimited fields within them, and
// rewrites the backing file after every mutating call. Field splitting is
// quote-aware (see [SplitFields]); joining is not (see [JoinFields]).
//
// A Table is owned by a single caller and is not safe for concurrent use.
//
// Example:
//
//	tbl, err := table.Open("people.csv", ",", table.Options{})
//	if err != nil {
//	    return err
//	}
//
//	age, err := tbl.Value(1, 1)
//	if err != nil {
//	    return err
//	}
//
//	err = tbl.WriteValue(1, 1, "31") // file rewritten before return
package table

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/calvinalkan/dtab/pkg/fs"
)

// Options configures a [Table]. The zero value is ready to use.
type Options struct {
	// FS is the filesystem the table reads and persists through.
	// Default: [fs.NewReal].
	FS fs.FS

	// Logger receives debug events for loads and persists.
	// Default: discard.
	Logger *slog.Logger

	// QuoteOnWrite wraps written values that contain the delimiter in
	// quotes, so they split back into a single field. Off by default, which
	// writes values verbatim.
	QuoteOnWrite bool

	// DirectWrite truncates and rewrites the backing file in place instead
	// of writing a temp file and renaming it over the original. A failure
	// mid-write can leave the file partially written.
	DirectWrite bool
}

// Table is the in-memory line cache of one delimited file.
type Table struct {
	path  string
	delim string
	lines []string

	fsys         fs.FS
	log          *slog.Logger
	quoteOnWrite bool
	directWrite  bool
}

// Open loads the file at path into a new [Table].
//
// Lines are split on "\n"; a trailing "\r" is stripped. A final line without
// a newline is kept. Returns an error wrapping [ErrNotFound] if the file
// cannot be opened or read, or [ErrDelimiter] if delimiter is empty.
func Open(path, delimiter string, opts Options) (*Table, error) {
	t, err := newTable(path, delimiter, opts)
	if err != nil {
		return nil, err
	}

	lines, err := readLines(t.fsys, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	}

	t.lines = lines
	t.log.Debug("table opened", "path", path, "lines", len(lines))

	return t, nil
}

// Create creates an empty backing file at path, including missing parent
// directories, and returns the empty [Table].
// Returns an error wrapping [ErrExists] if path already exists.
func Create(path, delimiter string, opts Options) (*Table, error) {
	t, err := newTable(path, delimiter, opts)
	if err != nil {
		return nil, err
	}

	exists, err := t.fsys.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}

	if exists {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := t.fsys.MkdirAll(dir, dirPerms); err != nil {
			return nil, fmt.Errorf("%w: creating %s: %w", ErrIO, dir, err)
		}
	}

	if err := t.persist(nil); err != nil {
		return nil, err
	}

	t.log.Debug("table created", "path", path)

	return t, nil
}

func newTable(path, delimiter string, opts Options) (*Table, error) {
	if delimiter == "" {
		return nil, ErrDelimiter
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Table{
		path:         path,
		delim:        delimiter,
		lines:        []string{},
		fsys:         fsys,
		log:          logger,
		quoteOnWrite: opts.QuoteOnWrite,
		directWrite:  opts.DirectWrite,
	}, nil
}

func readLines(fsys fs.FS, path string) (lines []string, err error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	lines = []string{}
	reader := bufio.NewReader(f)

	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, readErr
		}

		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			lines = append(lines, line)
		}

		if readErr != nil {
			return lines, nil
		}
	}
}

// Path returns the backing file path.
func (t *Table) Path() string { return t.path }

// Delimiter returns the field delimiter.
func (t *Table) Delimiter() string { return t.delim }

// Size returns the current number of lines.
func (t *Table) Size() int { return len(t.lines) }

// String renders all lines, each followed by "\n". This is exactly what
// the backing file holds after the last successful persist.
func (t *Table) String() string {
	return string(encodeLines(t.lines))
}

// SplitFields splits line on the table's delimiter. See [SplitFields].
func (t *Table) SplitFields(line string) []string {
	return SplitFields(line, t.delim)
}

// JoinFields joins values with the table's delimiter, quoting values that
// contain it when [Options.QuoteOnWrite] is set. See [JoinFields].
func (t *Table) JoinFields(values []string) string {
	if t.quoteOnWrite {
		values = quoteFields(values, t.delim)
	}

	return JoinFields(values, t.delim)
}

// --- Reads ---

// Line returns line i.
// Returns an error wrapping [ErrIndex] if i is outside [0, Size()).
func (t *Table) Line(i int) (string, error) {
	if err := t.checkLine(i); err != nil {
		return "", err
	}

	return t.lines[i], nil
}

// Lines returns a copy of all lines in order.
func (t *Table) Lines() []string {
	return slices.Clone(t.lines)
}

// Value returns field j of line i.
// Returns an error wrapping [ErrIndex] for a bad line index and [ErrRange]
// for a bad field index.
func (t *Table) Value(i, j int) (string, error) {
	fields, err := t.fieldsOf(i, j)
	if err != nil {
		return "", err
	}

	return fields[j], nil
}

// Values returns field j of every line.
func (t *Table) Values(j int) ([]string, error) {
	return t.ValuesRange(j, 0, len(t.lines))
}

// ValuesFrom returns field j of lines [start, Size()).
func (t *Table) ValuesFrom(j, start int) ([]string, error) {
	return t.ValuesRange(j, start, len(t.lines))
}

// ValuesRange returns field j of lines [start, end).
//
// Returns an error wrapping [ErrRange] if start > end, if either bound is
// outside [0, Size()], or if any line in the range has no field j.
func (t *Table) ValuesRange(j, start, end int) ([]string, error) {
	if start < 0 || end > len(t.lines) || start > end {
		return nil, fmt.Errorf("%w: rows [%d, %d) with size %d", ErrRange, start, end, len(t.lines))
	}

	values := make([]string, 0, end-start)

	for i := start; i < end; i++ {
		fields, err := t.fieldsOf(i, j)
		if err != nil {
			return nil, err
		}

		values = append(values, fields[j])
	}

	return values, nil
}

// --- Mutations ---
//
// Every mutation validates its indices, builds the next line slice, persists
// it, and only then installs it. A failed call leaves the table unchanged.

// Append joins values into one line and appends it.
func (t *Table) Append(values ...string) error {
	return t.AppendLines([]string{t.JoinFields(values)})
}

// AppendLine appends one raw line.
func (t *Table) AppendLine(line string) error {
	return t.AppendLines([]string{line})
}

// AppendLines appends raw lines in order.
func (t *Table) AppendLines(lines []string) error {
	next := make([]string, 0, len(t.lines)+len(lines))
	next = append(next, t.lines...)
	next = append(next, lines...)

	return t.commit(next)
}

// WriteLine replaces line i with a raw line.
// Returns an error wrapping [ErrIndex] if i is out of range.
func (t *Table) WriteLine(i int, line string) error {
	if err := t.checkLine(i); err != nil {
		return err
	}

	next := slices.Clone(t.lines)
	next[i] = line

	return t.commit(next)
}

// WriteFields replaces line i with values joined by the delimiter.
// Returns an error wrapping [ErrIndex] if i is out of range.
func (t *Table) WriteFields(i int, values []string) error {
	return t.WriteLine(i, t.JoinFields(values))
}

// WriteValue replaces field j of line i with value.
// Returns an error wrapping [ErrIndex] or [ErrRange] on a bad index.
func (t *Table) WriteValue(i, j int, value string) error {
	if t.quoteOnWrite {
		value = quoteFields([]string{value}, t.delim)[0]
	}

	return t.setField(i, j, value)
}

// DeleteValue blanks field j of line i. The line keeps its field count.
// Returns an error wrapping [ErrIndex] or [ErrRange] on a bad index.
func (t *Table) DeleteValue(i, j int) error {
	return t.setField(i, j, "")
}

// DeleteLine removes line i; later lines shift down by one.
// Returns an error wrapping [ErrIndex] if i is out of range.
func (t *Table) DeleteLine(i int) error {
	if err := t.checkLine(i); err != nil {
		return err
	}

	return t.commit(slices.Delete(slices.Clone(t.lines), i, i+1))
}

// Clear removes all lines.
func (t *Table) Clear() error {
	return t.commit([]string{})
}

// ClearAndWrite replaces all lines with one joined line per row of matrix.
func (t *Table) ClearAndWrite(matrix [][]string) error {
	next := make([]string, 0, len(matrix))
	for _, row := range matrix {
		next = append(next, t.JoinFields(row))
	}

	return t.commit(next)
}

func (t *Table) setField(i, j int, value string) error {
	fields, err := t.fieldsOf(i, j)
	if err != nil {
		return err
	}

	fields[j] = value

	next := slices.Clone(t.lines)
	next[i] = JoinFields(fields, t.delim)

	return t.commit(next)
}

func (t *Table) commit(next []string) error {
	if err := t.persist(next); err != nil {
		return err
	}

	t.lines = next

	return nil
}

func (t *Table) checkLine(i int) error {
	if i < 0 || i >= len(t.lines) {
		return fmt.Errorf("%w: line %d with size %d", ErrIndex, i, len(t.lines))
	}

	return nil
}

// fieldsOf splits line i and checks that field j exists.
func (t *Table) fieldsOf(i, j int) ([]string, error) {
	if err := t.checkLine(i); err != nil {
		return nil, err
	}

	fields := t.SplitFields(t.lines[i])
	if j < 0 || j >= len(fields) {
		return nil, fmt.Errorf("%w: field %d of line %d with %d fields", ErrRange, j, i, len(fields))
	}

	return fields, nil
}
