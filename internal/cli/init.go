package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// InitCmd returns the init command.
func InitCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("init", flag.ContinueOnError),
		Usage: "init <file>",
		Short: "Create an empty table file",
		Long: "Create an empty table file. Missing parent directories are created.\n" +
			"Fails if the file already exists.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errFileRequired
			}

			if len(args) > 1 {
				return errTooManyArgs
			}

			tbl, err := a.create(ctx, args[0])
			if err != nil {
				return err
			}

			o.Println("Created", tbl.Path())

			return nil
		},
	}
}
