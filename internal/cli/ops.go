package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/calvinalkan/dtab/internal/lock"
	"github.com/calvinalkan/dtab/pkg/table"

	flag "github.com/spf13/pflag"
)

// tableOp is an operation on an open table. The same ops back the one-shot
// commands ("dtab value people.csv 1 1") and the shell ("value 1 1").
type tableOp struct {
	Name  string
	Args  string // synopsis after the file argument
	Short string
	Long  string

	// Writes marks mutations. One-shot commands take an exclusive lock for
	// them and a shared lock otherwise.
	Writes bool

	// Flags registers op-specific flags. Optional.
	Flags func(fs *flag.FlagSet)

	Exec func(o *IO, tbl *table.Table, fs *flag.FlagSet, args []string) error
}

// usage returns the synopsis without the file argument, as the shell shows it.
func (op *tableOp) usage() string {
	if op.Args == "" {
		return op.Name
	}

	return op.Name + " " + op.Args
}

// newFlagSet returns a fresh flag set for one invocation of op.
func (op *tableOp) newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(op.Name, flag.ContinueOnError)
	if op.Flags != nil {
		op.Flags(fs)
	}

	return fs
}

// tableCmd wraps op as a one-shot command that opens <file>, runs op, and
// exits. Mutations are persisted by the table before op returns.
func tableCmd(a *app, op *tableOp) *Command {
	fs := op.newFlagSet()

	usage := op.Name + " <file>"
	if op.Args != "" {
		usage += " " + op.Args
	}

	return &Command{
		Flags: fs,
		Usage: usage,
		Short: op.Short,
		Long:  op.Long,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errFileRequired
			}

			mode := lock.Shared
			if op.Writes {
				mode = lock.Exclusive
			}

			return a.withTable(ctx, args[0], mode, func(tbl *table.Table) error {
				return op.Exec(o, tbl, fs, args[1:])
			})
		},
	}
}

func tableOps() []*tableOp {
	return []*tableOp{
		lineOp(), linesOp(), fieldsOp(), valueOp(), valuesOp(), sizeOp(), catOp(),
		appendOp(), appendLinesOp(), writeLineOp(), writeValueOp(),
		deleteValueOp(), deleteLineOp(), clearOp(), clearAndWriteOp(),
	}
}

// --- Reads ---

func lineOp() *tableOp {
	return &tableOp{
		Name:  "line",
		Args:  "<i>",
		Short: "Print line i",
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			idx, err := parseArgs(args, "i")
			if err != nil {
				return err
			}

			line, err := tbl.Line(idx[0])
			if err != nil {
				return err
			}

			o.Println(line)

			return nil
		},
	}
}

func linesOp() *tableOp {
	return &tableOp{
		Name:  "lines",
		Short: "Print all lines with their index",
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			for i, line := range tbl.Lines() {
				o.Printf("%d\t%s\n", i, line)
			}

			return nil
		},
	}
}

func fieldsOp() *tableOp {
	return &tableOp{
		Name:  "fields",
		Args:  "<i>",
		Short: "Print the fields of line i, one per line",
		Long: "Print the fields of line i, one per line, prefixed with the field index.\n" +
			"Delimiters inside double quotes do not split.",
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			idx, err := parseArgs(args, "i")
			if err != nil {
				return err
			}

			line, err := tbl.Line(idx[0])
			if err != nil {
				return err
			}

			for j, field := range tbl.SplitFields(line) {
				o.Printf("%d\t%s\n", j, field)
			}

			return nil
		},
	}
}

func valueOp() *tableOp {
	return &tableOp{
		Name:  "value",
		Args:  "<i> <j>",
		Short: "Print field j of line i",
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			idx, err := parseArgs(args, "i", "j")
			if err != nil {
				return err
			}

			value, err := tbl.Value(idx[0], idx[1])
			if err != nil {
				return err
			}

			o.Println(value)

			return nil
		},
	}
}

func valuesOp() *tableOp {
	return &tableOp{
		Name:  "values",
		Args:  "<j> [flags]",
		Short: "Print field j of every line in a range",
		Long:  "Print field j of lines [start, end). Every line in the range must have field j.",
		Flags: func(fs *flag.FlagSet) {
			fs.Int("start", 0, "First line (inclusive)")
			fs.Int("end", -1, "Last line (exclusive); default is the table size")
		},
		Exec: func(o *IO, tbl *table.Table, fs *flag.FlagSet, args []string) error {
			idx, err := parseArgs(args, "j")
			if err != nil {
				return err
			}

			start, _ := fs.GetInt("start")

			end, _ := fs.GetInt("end")
			if !fs.Changed("end") {
				end = tbl.Size()
			}

			values, err := tbl.ValuesRange(idx[0], start, end)
			if err != nil {
				return err
			}

			for _, v := range values {
				o.Println(v)
			}

			return nil
		},
	}
}

func sizeOp() *tableOp {
	return &tableOp{
		Name:  "size",
		Short: "Print the number of lines",
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			o.Println(tbl.Size())

			return nil
		},
	}
}

func catOp() *tableOp {
	return &tableOp{
		Name:  "cat",
		Short: "Print the table as stored",
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			o.Printf("%s", tbl.String())

			return nil
		},
	}
}

// --- Mutations ---

func appendOp() *tableOp {
	return &tableOp{
		Name:   "append",
		Args:   "<field>... [flags]",
		Short:  "Append one line built from fields",
		Writes: true,
		Long: "Append one line built from the given fields joined by the delimiter.\n" +
			"With --raw, the single argument is appended verbatim.",
		Flags: func(fs *flag.FlagSet) {
			fs.Bool("raw", false, "Append the argument as a raw line")
		},
		Exec: func(o *IO, tbl *table.Table, fs *flag.FlagSet, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: <field>...", errMissingArgs)
			}

			raw, _ := fs.GetBool("raw")

			var err error
			if raw {
				if len(args) != 1 {
					return errRawNeedsOne
				}

				err = tbl.AppendLine(args[0])
			} else {
				err = tbl.Append(args...)
			}

			if err != nil {
				return err
			}

			o.Println("Appended line", tbl.Size()-1)

			return nil
		},
	}
}

func appendLinesOp() *tableOp {
	return &tableOp{
		Name:   "append-lines",
		Args:   "[line]...",
		Short:  "Append raw lines from arguments or stdin",
		Writes: true,
		Long:   "Append raw lines in order. Without arguments, lines are read from stdin.",
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			lines, err := argsOrInput(o, args)
			if err != nil {
				return err
			}

			err = tbl.AppendLines(lines)
			if err != nil {
				return err
			}

			o.Println("Appended", len(lines), "lines")

			return nil
		},
	}
}

func writeLineOp() *tableOp {
	return &tableOp{
		Name:   "write-line",
		Args:   "<i> <field>... [flags]",
		Short:  "Replace line i with fields",
		Writes: true,
		Long: "Replace line i with the given fields joined by the delimiter.\n" +
			"With --raw, the single argument replaces the line verbatim.",
		Flags: func(fs *flag.FlagSet) {
			fs.Bool("raw", false, "Write the argument as a raw line")
		},
		Exec: func(o *IO, tbl *table.Table, fs *flag.FlagSet, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("%w: <i> <field>...", errMissingArgs)
			}

			i, err := parseIndex("i", args[0])
			if err != nil {
				return err
			}

			raw, _ := fs.GetBool("raw")

			if raw {
				if len(args) != 2 {
					return errRawNeedsOne
				}

				err = tbl.WriteLine(i, args[1])
			} else {
				err = tbl.WriteFields(i, args[1:])
			}

			if err != nil {
				return err
			}

			o.Println("Wrote line", i)

			return nil
		},
	}
}

func writeValueOp() *tableOp {
	return &tableOp{
		Name:   "write-value",
		Args:   "<i> <j> <value>",
		Short:  "Replace field j of line i",
		Writes: true,
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("%w: <i> <j> <value>", errMissingArgs)
			}

			idx, err := parseArgs(args[:2], "i", "j")
			if err != nil {
				return err
			}

			err = tbl.WriteValue(idx[0], idx[1], args[2])
			if err != nil {
				return err
			}

			o.Println("Wrote value", idx[0], idx[1])

			return nil
		},
	}
}

func deleteValueOp() *tableOp {
	return &tableOp{
		Name:   "delete-value",
		Args:   "<i> <j>",
		Short:  "Blank field j of line i",
		Writes: true,
		Long:   "Blank field j of line i. The line keeps its number of fields.",
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			idx, err := parseArgs(args, "i", "j")
			if err != nil {
				return err
			}

			err = tbl.DeleteValue(idx[0], idx[1])
			if err != nil {
				return err
			}

			o.Println("Deleted value", idx[0], idx[1])

			return nil
		},
	}
}

func deleteLineOp() *tableOp {
	return &tableOp{
		Name:   "delete-line",
		Args:   "<i>",
		Short:  "Remove line i",
		Writes: true,
		Long:   "Remove line i. Later lines move up by one index.",
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			idx, err := parseArgs(args, "i")
			if err != nil {
				return err
			}

			err = tbl.DeleteLine(idx[0])
			if err != nil {
				return err
			}

			o.Println("Deleted line", idx[0])

			return nil
		},
	}
}

func clearOp() *tableOp {
	return &tableOp{
		Name:   "clear",
		Short:  "Remove all lines",
		Writes: true,
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			err := tbl.Clear()
			if err != nil {
				return err
			}

			o.Println("Cleared")

			return nil
		},
	}
}

func clearAndWriteOp() *tableOp {
	return &tableOp{
		Name:   "clear-and-write",
		Args:   "[row]...",
		Short:  "Replace all lines with rows from arguments or stdin",
		Writes: true,
		Long: "Replace all lines. Each row is split on the delimiter and joined again,\n" +
			"so quote_on_write applies. Without arguments, rows are read from stdin.",
		Exec: func(o *IO, tbl *table.Table, _ *flag.FlagSet, args []string) error {
			rows, err := argsOrInput(o, args)
			if err != nil {
				return err
			}

			matrix := make([][]string, 0, len(rows))
			for _, row := range rows {
				matrix = append(matrix, tbl.SplitFields(row))
			}

			err = tbl.ClearAndWrite(matrix)
			if err != nil {
				return err
			}

			o.Println("Wrote", len(matrix), "lines")

			return nil
		},
	}
}

// --- Helpers ---

// parseArgs requires exactly len(names) index arguments and parses them.
func parseArgs(args []string, names ...string) ([]int, error) {
	if len(args) < len(names) {
		return nil, fmt.Errorf("%w: <%s>", errMissingArgs, strings.Join(names, "> <"))
	}

	if len(args) > len(names) {
		return nil, errTooManyArgs
	}

	idx := make([]int, len(names))

	for k, name := range names {
		n, err := parseIndex(name, args[k])
		if err != nil {
			return nil, err
		}

		idx[k] = n
	}

	return idx, nil
}

func invalidIndex(name, value string) error {
	return fmt.Errorf("%w: %s=%q (want a non-negative integer)", errInvalidIndex, name, value)
}

// argsOrInput returns args, or the lines of stdin when args is empty.
func argsOrInput(o *IO, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	lines, err := readInputLines(o.in)
	if err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, errNoInput
	}

	return lines, nil
}

func readInputLines(in io.Reader) ([]string, error) {
	if in == nil {
		return nil, nil
	}

	var lines []string

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}

	return lines, nil
}

const maxLineBytes = 16 << 20
