package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/calvinalkan/dtab/internal/lock"
	"github.com/calvinalkan/dtab/pkg/table"

	flag "github.com/spf13/pflag"
)

var (
	errUnterminatedQuote = errors.New("unterminated quote")
	errScriptFailed      = errors.New("shell commands failed")
)

// ShellCmd returns the shell command.
func ShellCmd(a *app, ops []*tableOp) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell <file>",
		Short: "Interactive shell on one table",
		Long: "Open a table once and run commands against it until exit.\n" +
			"The table stays locked for the whole session.\n" +
			"Commands are the table commands without the file argument.\n" +
			"Arguments may be grouped with single quotes.\n" +
			"When stdin is not a terminal, commands are read one per line\n" +
			"and the exit code is 1 if any of them failed.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errFileRequired
			}

			if len(args) > 1 {
				return errTooManyArgs
			}

			return a.withTable(ctx, args[0], lock.Exclusive, func(tbl *table.Table) error {
				sh := &shell{
					tbl:     tbl,
					ops:     ops,
					io:      o,
					history: a.historyPath(),
				}

				if f, ok := o.in.(*os.File); ok && isatty.IsTerminal(f.Fd()) && liner.TerminalSupported() {
					return sh.runTerminal(ctx)
				}

				return sh.runScript(ctx, o.in)
			})
		},
	}
}

type shell struct {
	tbl     *table.Table
	ops     []*tableOp
	io      *IO
	history string
	line    *liner.State
	failed  int
}

// runTerminal reads commands with line editing and history.
func (s *shell) runTerminal(ctx context.Context) error {
	s.line = liner.NewLiner()
	defer s.line.Close()

	s.line.SetCtrlCAborts(true)
	s.line.SetCompleter(s.completer)

	if s.history != "" {
		if f, err := os.Open(s.history); err == nil {
			_, _ = s.line.ReadHistory(f)
			_ = f.Close()
		}
	}

	defer s.saveHistory()

	s.io.Printf("dtab - %s (%d lines, delimiter %q)\n", s.tbl.Path(), s.tbl.Size(), s.tbl.Delimiter())
	s.io.Println("Type 'help' for available commands.")

	for ctx.Err() == nil {
		input, err := s.line.Prompt("dtab> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				s.io.Println()

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		s.line.AppendHistory(input)

		if s.exec(input) {
			return nil
		}
	}

	return nil
}

// runScript reads commands one per line without a prompt. Every command runs
// even after a failure; the result reports how many failed.
func (s *shell) runScript(ctx context.Context, in io.Reader) error {
	if in == nil {
		return nil
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for ctx.Err() == nil && scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" || strings.HasPrefix(input, "#") {
			continue
		}

		if s.exec(input) {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	if s.failed > 0 {
		return fmt.Errorf("%d %w", s.failed, errScriptFailed)
	}

	return nil
}

func (s *shell) saveHistory() {
	if s.history == "" {
		return
	}

	if f, err := os.Create(s.history); err == nil {
		_, _ = s.line.WriteHistory(f)
		_ = f.Close()
	}
}

// exec runs one shell line. Errors are printed and counted but do not end
// the session. Returns true when the user asked to leave.
func (s *shell) exec(input string) bool {
	words, err := splitWords(input)
	if err != nil {
		s.fail(err)
		return false
	}

	name, args := strings.ToLower(words[0]), words[1:]

	switch name {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		s.printHelp()
		return false
	}

	idx := slices.IndexFunc(s.ops, func(op *tableOp) bool { return op.Name == name })
	if idx < 0 {
		s.fail(fmt.Errorf("%w: %s (type 'help' for commands)", errUnknownCommand, name))
		return false
	}

	op := s.ops[idx]

	fs := op.newFlagSet()
	fs.SetOutput(&strings.Builder{})

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			s.printOpHelp(op, fs)
		} else {
			s.fail(err)
		}

		return false
	}

	if err := op.Exec(s.io.withoutInput(), s.tbl, fs, fs.Args()); err != nil {
		s.fail(err)
	}

	return false
}

func (s *shell) fail(err error) {
	s.failed++
	s.io.ErrPrintln("error:", err)
}

func (s *shell) completer(line string) []string {
	var completions []string

	lower := strings.ToLower(line)

	for _, name := range s.names() {
		if strings.HasPrefix(name, lower) {
			completions = append(completions, name)
		}
	}

	return completions
}

func (s *shell) names() []string {
	names := make([]string, 0, len(s.ops)+3)
	for _, op := range s.ops {
		names = append(names, op.Name)
	}

	return append(names, "help", "exit", "quit")
}

func (s *shell) printHelp() {
	s.io.Println("Commands:")

	for _, op := range s.ops {
		s.io.Printf("  %-30s %s\n", op.usage(), op.Short)
	}

	s.io.Printf("  %-30s %s\n", "help", "Show this help")
	s.io.Printf("  %-30s %s\n", "exit / quit / q", "Leave the shell")
}

func (s *shell) printOpHelp(op *tableOp, fs *flag.FlagSet) {
	s.io.Println("Usage:", op.usage())
	s.io.Println()

	desc := op.Long
	if desc == "" {
		desc = op.Short
	}

	s.io.Println(desc)

	if fs.HasFlags() {
		var buf strings.Builder

		fs.SetOutput(&buf)
		fs.PrintDefaults()

		s.io.Println()
		s.io.Println("Flags:")
		s.io.Printf("%s", buf.String())
	}
}

// splitWords splits a shell line on whitespace. Single quotes group words and
// are removed. Double quotes also group words but are kept, since they are
// part of the field data.
func splitWords(line string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		inQuote rune
	)

	for _, r := range line {
		switch {
		case inQuote == '\'':
			if r == '\'' {
				inQuote = 0
			} else {
				cur.WriteRune(r)
			}
		case inQuote == '"':
			if r == '"' {
				inQuote = 0
			}

			cur.WriteRune(r)
		case r == '\'':
			inQuote, inWord = '\'', true
		case r == '"':
			cur.WriteRune(r)

			inQuote, inWord = '"', true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()

				inWord = false
			}
		default:
			cur.WriteRune(r)

			inWord = true
		}
	}

	if inQuote == '\'' {
		return nil, errUnterminatedQuote
	}

	if inWord {
		words = append(words, cur.String())
	}

	if len(words) == 0 {
		return nil, fmt.Errorf("%w: empty command", errMissingArgs)
	}

	return words, nil
}
