package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one dtab subcommand. Table commands take the table file as
// their first positional argument; the rest follows in Usage order.
type Command struct {
	// Flags holds the command's own flags, parsed after the command name.
	Flags *flag.FlagSet

	// Usage is the synopsis after "dtab", starting with the command name,
	// e.g. "values <file> <j> [flags]".
	Usage string

	// Short is the line shown in "dtab --help".
	Short string

	// Long is shown by "dtab <cmd> --help". Falls back to Short.
	Long string

	// Exec receives the positional args left after flag parsing.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the command's line in the global listing, with Usage
// padded to width.
func (c *Command) HelpLine(width int) string {
	return fmt.Sprintf("  %-*s  %s", width, c.Usage, c.Short)
}

// usageWidth returns the widest Usage among commands.
func usageWidth(commands []*Command) int {
	width := 0
	for _, c := range commands {
		width = max(width, len(c.Usage))
	}

	return width
}

// PrintHelp prints the full help output for "dtab <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: dtab", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command, returning the exit code.
// Flag errors print the command help to stderr; Exec errors print only
// "error: <msg>".
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o.toErr())
		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}

	return 0
}
