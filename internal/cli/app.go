package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/calvinalkan/dtab/internal/config"
	"github.com/calvinalkan/dtab/internal/lock"
	"github.com/calvinalkan/dtab/pkg/table"
)

// app carries what every command needs once global flags and config are
// resolved.
type app struct {
	cfg *config.Config
	log *slog.Logger
	env map[string]string
}

// resolve returns file relative to the effective working directory.
func (a *app) resolve(file string) string {
	if filepath.IsAbs(file) {
		return file
	}

	return filepath.Join(a.cfg.EffectiveCwd, file)
}

func (a *app) tableOptions() table.Options {
	return table.Options{
		Logger:       a.log,
		QuoteOnWrite: a.cfg.QuoteOnWrite,
		DirectWrite:  a.cfg.DirectWrite,
	}
}

// withTable opens file while holding a lock of the given mode and runs fn on
// the loaded table. The lock is held until fn returns.
//
// A missing file is reported without locking, so a failed command leaves no
// lock directory behind. A shared lock that cannot be created in a read-only
// directory is skipped: reads never persist.
func (a *app) withTable(ctx context.Context, file string, mode lock.Mode, fn func(*table.Table) error) error {
	path := a.resolve(file)

	run := func() error {
		tbl, err := table.Open(path, a.cfg.Delimiter, a.tableOptions())
		if err != nil {
			return err
		}

		return fn(tbl)
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return run()
	}

	err := lock.With(ctx, path, mode, lock.DefaultTimeout, func() error {
		a.log.Debug("lock acquired", "path", path, "mode", mode)

		return run()
	})
	if mode == lock.Shared && errors.Is(err, lock.ErrUnavailable) {
		a.log.Debug("reading without lock", "path", path, "error", err)

		return run()
	}

	return err
}

// create creates file as an empty table under an exclusive lock.
func (a *app) create(ctx context.Context, file string) (*table.Table, error) {
	path := a.resolve(file)

	var tbl *table.Table

	err := lock.With(ctx, path, lock.Exclusive, lock.DefaultTimeout, func() error {
		var err error

		tbl, err = table.Create(path, a.cfg.Delimiter, a.tableOptions())

		return err
	})

	return tbl, err
}

// historyPath returns the shell history file, or "" if HOME is unknown.
func (a *app) historyPath() string {
	if home := a.env["HOME"]; home != "" {
		return filepath.Join(home, ".dtab_history")
	}

	return ""
}

// newLogger returns a tint-backed logger on w. Color is only enabled when w
// is a terminal.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	noColor := true

	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	}))
}

// parseIndex parses a non-negative line or field index argument.
func parseIndex(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, invalidIndex(name, s)
	}

	return n, nil
}
