package cmd

import (
	"flag"

	"github.com/pkg/errors"
)

// Run parses args and calls fn with at least min positional arguments,
// translating failures into an exit code.
func (c *Cmd) Run(args []string, min int, fn func() error) int {
	if err := c.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		c.PrintError(err)
		return 2
	}
	if len(c.Args) < min {
		c.Flags.Usage()
		return 2
	}
	if err := fn(); err != nil {
		if _, ok := err.(exitError); !ok {
			c.PrintError(err)
		}
		return 1
	}
	return 0
}

// exitError fails a command whose diagnostics were already printed.
type exitError struct{}

func (exitError) Error() string { return "failed" }

// ErrReported fails a command without printing another error.
var ErrReported error = exitError{}
