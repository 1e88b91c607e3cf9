package cli

import (
	"context"
	"strconv"

	"github.com/calvinalkan/dtab/internal/config"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(a *app) *Command {
	fs := flag.NewFlagSet("print-config", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the effective settings as a config file")

	return &Command{
		Flags: fs,
		Usage: "print-config [flags]",
		Short: "Show resolved configuration",
		Long: "Display the effective configuration and which files it was loaded from.\n" +
			"With --json, print only the settings, in the format of .dtab.json.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			if *asJSON {
				out, err := config.Format(*a.cfg)
				if err != nil {
					return err
				}

				io.Println(out)

				return nil
			}

			return execPrintConfig(io, a.cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg *config.Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("delimiter=" + strconv.Quote(cfg.Delimiter))
	io.Println("quote_on_write=" + strconv.FormatBool(cfg.QuoteOnWrite))
	io.Println("direct_write=" + strconv.FormatBool(cfg.DirectWrite))

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
