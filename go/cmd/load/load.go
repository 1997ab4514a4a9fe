// Package load maps a file into a process image and prints its layout.
package load

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/nxcorn/go/cmd"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/process"
)

type loadCmd struct {
	*cmd.Cmd
	dump string
}

func Main(args []string) int {
	c := newLoadCmd(cmd.New(args[0], "<file>"))
	return c.Run(args, 1, c.load)
}

func newLoadCmd(base *cmd.Cmd) *loadCmd {
	c := &loadCmd{Cmd: base}
	c.Flags.StringVar(&c.dump, "dump", "", "write the loaded process image to `file`")
	return c
}

func (c *loadCmd) load() error {
	f, err := c.Open(c.Args[0])
	if err != nil {
		return err
	}
	l := c.Registry().GetLoader(f)
	if l == nil {
		return errors.Errorf("%s: unrecognized file format", c.Args[0])
	}
	p := process.NewImage()
	if status := l.Load(p); status != models.Success {
		fmt.Fprintf(c.Stderr, "%s: %s\n", c.Args[0], c.StatusText(status))
		return cmd.ErrReported
	}

	meta := p.Metadata()
	fmt.Fprintf(c.Stdout, "%s %s (%016x), %s\n", c.Colorize(l.FileType().String(), "green"), meta.Name, meta.TitleID, meta.AddressSpace)
	for _, m := range p.Modules() {
		fmt.Fprintf(c.Stdout, "  %s\n", m)
		for _, s := range m.Segments {
			fmt.Fprintf(c.Stdout, "    %#x+%#x %s %s\n", s.Addr, s.Size, prot(s.Prot), s.Name)
		}
	}
	main := p.MainThread()
	fmt.Fprintf(c.Stdout, "entry %#x, priority %d, stack %#x\n", main.Entry, main.Priority, main.StackSize)

	if c.dump != "" {
		return writeDump(p, c.dump)
	}
	return nil
}

func prot(p int) string {
	out := []byte("---")
	if p&models.PROT_READ != 0 {
		out[0] = 'r'
	}
	if p&models.PROT_WRITE != 0 {
		out[1] = 'w'
	}
	if p&models.PROT_EXEC != 0 {
		out[2] = 'x'
	}
	return string(out)
}

func writeDump(p *process.Image, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := p.Dump(out); err != nil {
		out.Close()
		return err
	}
	return errors.WithStack(out.Close())
}

func init() {
	cmd.Register("load", "load a program and print its memory layout", Main)
}
