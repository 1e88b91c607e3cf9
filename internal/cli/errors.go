package cli

import "errors"

var (
	errFileRequired   = errors.New("table file is required")
	errMissingArgs    = errors.New("missing arguments")
	errTooManyArgs    = errors.New("too many arguments")
	errInvalidIndex   = errors.New("invalid index")
	errUnknownCommand = errors.New("unknown command")
	errNoInput        = errors.New("no input lines")
	errRawNeedsOne    = errors.New("--raw takes exactly one line argument")
)
