package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/calvinalkan/dtab/internal/config"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns exit code.
// sigCh may be nil; when it fires, the running command's context is cancelled.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	o := NewIO(stdin, out, errOut)

	globalFlags := flag.NewFlagSet("dtab", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagDelimiter := globalFlags.StringP("delimiter", "d", "", "Field `delimiter` (\\t for tab)")
	flagVerbose := globalFlags.BoolP("verbose", "v", false, "Log table loads and writes to stderr")

	a := &app{env: env}
	commands := allCommands(a)

	if len(args) > 0 {
		args = args[1:]
	}

	err := globalFlags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(o, globalFlags, commands)
			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		printUsage(o.toErr(), globalFlags, commands)

		return 1
	}

	rest := globalFlags.Args()

	if *flagHelp || len(args) == 0 {
		printUsage(o, globalFlags, commands)
		return 0
	}

	if len(rest) == 0 {
		o.ErrPrintln("error: no command provided")
		o.ErrPrintln()
		printUsage(o.toErr(), globalFlags, commands)

		return 1
	}

	var delimiterOverride *string
	if globalFlags.Changed("delimiter") {
		delimiterOverride = flagDelimiter
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride:   *flagCwd,
		ConfigPath:        *flagConfig,
		DelimiterOverride: delimiterOverride,
		Env:               env,
	})
	if err != nil {
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		printUsage(o.toErr(), globalFlags, commands)

		return 1
	}

	a.cfg = &cfg
	a.log = newLogger(errOut, *flagVerbose)

	cmdName := rest[0]

	var cmd *Command

	for _, c := range commands {
		if c.Name() == cmdName {
			cmd = c
			break
		}
	}

	if cmd == nil {
		o.ErrPrintln("error:", errUnknownCommand.Error()+":", cmdName)
		o.ErrPrintln()
		printUsage(o.toErr(), globalFlags, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				a.log.Debug("signal received, cancelling")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return cmd.Run(ctx, o, rest[1:])
}

func allCommands(a *app) []*Command {
	ops := tableOps()

	commands := []*Command{InitCmd(a)}
	for _, op := range ops {
		commands = append(commands, tableCmd(a, op))
	}

	return append(commands, ShellCmd(a, ops), PrintConfigCmd(a))
}

func printUsage(o *IO, globalFlags *flag.FlagSet, commands []*Command) {
	o.Println("dtab - delimited table tool")
	o.Println()
	o.Println("Usage: dtab [flags] <command> [args]")
	o.Println()
	o.Println("Global flags:")

	var buf strings.Builder

	globalFlags.SetOutput(&buf)
	globalFlags.PrintDefaults()
	globalFlags.SetOutput(&strings.Builder{})

	o.Printf("%s", buf.String())
	o.Println()
	o.Println("Commands:")

	width := usageWidth(commands)
	for _, c := range commands {
		o.Println(c.HelpLine(width))
	}

	o.Println()
	o.Println("Run 'dtab <command> --help' for more information on a command.")
}
