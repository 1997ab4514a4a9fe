// Package info prints the metadata a loader exposes for a file.
package info

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/lunixbochs/nxcorn/go/cmd"
	"github.com/lunixbochs/nxcorn/go/loader"
	"github.com/lunixbochs/nxcorn/go/models"
)

func Main(args []string) int {
	return run(cmd.New(args[0], "<file> [file...]"), args)
}

func run(c *cmd.Cmd, args []string) int {
	return c.Run(args, 1, func() error {
		reg := c.Registry()
		var failed error
		for n, path := range c.Args {
			if len(c.Args) > 1 {
				if n > 0 {
					fmt.Fprintln(c.Stdout)
				}
				fmt.Fprintf(c.Stdout, "%s:\n", path)
			}
			if err := info(c, reg, path); err != nil {
				c.PrintError(err)
				failed = cmd.ErrReported
			}
		}
		return failed
	})
}

func info(c *cmd.Cmd, reg *loader.Registry, path string) error {
	f, err := c.Open(path)
	if err != nil {
		return err
	}
	l := reg.GetLoader(f)
	if l == nil {
		return errors.Errorf("%s: unrecognized file format", path)
	}
	field := func(name string, val interface{}, status models.ResultStatus) {
		if status != models.Success {
			val = c.StatusText(status)
		}
		fmt.Fprintf(c.Stdout, "%-10s %v\n", name+":", val)
	}
	field("format", l.FileType(), models.Success)
	id, status := l.ReadProgramID()
	field("program", fmt.Sprintf("%016x", id), status)
	title, status := l.ReadTitle()
	field("title", title, status)
	dev, status := l.ReadDeveloper()
	field("developer", dev, status)
	ctrl, status := l.ReadControlData()
	if status == models.Success {
		field("version", ctrl.DisplayVersion, status)
	} else {
		field("version", nil, status)
	}
	is64, status := l.Is64Bit()
	field("64-bit", is64, status)
	icon, status := l.ReadIcon()
	field("icon", fmt.Sprintf("%d bytes", len(icon)), status)
	romfs, status := l.ReadRomFS()
	if status == models.Success {
		field("romfs", fmt.Sprintf("%d bytes", romfs.Size()), status)
	} else {
		field("romfs", nil, status)
	}
	return nil
}

func init() {
	cmd.Register("info", "print program metadata", Main)
}
