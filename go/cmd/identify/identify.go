// Package identify reports the detected format of files.
package identify

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/lunixbochs/nxcorn/go/cmd"
	"github.com/lunixbochs/nxcorn/go/loader"
	"github.com/lunixbochs/nxcorn/go/models"
)

func Main(args []string) int {
	return run(cmd.New(args[0], "<file> [file...]"), args)
}

func run(c *cmd.Cmd, args []string) int {
	return c.Run(args, 1, func() error { return identify(c) })
}

func identify(c *cmd.Cmd) error {
	reg := c.Registry()
	failed := false
	for _, path := range c.Args {
		f, err := c.Open(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("open failed")
			failed = true
			continue
		}
		content := reg.IdentifyFile(f)
		guess := loader.GuessFromFilename(f.Name())
		effective := content
		if effective == models.FileTypeUnknown {
			effective = guess
		}
		line := fmt.Sprintf("%s: %s", path, c.Colorize(loader.GetFileTypeString(effective), "green"))
		if content != guess {
			line += fmt.Sprintf(" (content %s, filename %s)",
				loader.GetFileTypeString(content), loader.GetFileTypeString(guess))
		}
		fmt.Fprintln(c.Stdout, line)
		if effective == models.FileTypeUnknown {
			failed = true
		}
	}
	if failed {
		return cmd.ErrReported
	}
	return nil
}

func init() {
	cmd.Register("identify", "print the format of files", Main)
}
