package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mgutz/ansi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/text/language"

	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/loader"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

// Cmd holds the flags and state every subcommand shares.
type Cmd struct {
	Flags  *flag.FlagSet
	Config *models.Config
	Keys   *keys.Manager
	Fs     afero.Fs

	Stdout io.Writer
	Stderr io.Writer
	// Args are the positional arguments left after Parse.
	Args []string
	// Usage is the positional argument summary, e.g. "<file>".
	Usage string

	configPath string
	keysDir    string
	lang       string
	logLevel   string
	verbose    bool
	noColor    bool
	color      bool
}

func New(name, usage string) *Cmd {
	c := &Cmd{
		Flags:  flag.NewFlagSet(name, flag.ContinueOnError),
		Fs:     afero.NewOsFs(),
		Stdout: Stdout(),
		Stderr: os.Stderr,
		Usage:  usage,
	}
	fs := c.Flags
	fs.StringVar(&c.configPath, "config", "", "config file (default: config.toml in the user config folder)")
	fs.StringVar(&c.keysDir, "keys", "", "directory holding prod.keys and title.keys")
	fs.StringVar(&c.lang, "lang", "", "language for titles, icons and error messages")
	fs.StringVar(&c.logLevel, "log", "", "log level (trace, debug, info, warn, error)")
	fs.BoolVar(&c.verbose, "v", false, "verbose output")
	fs.BoolVar(&c.noColor, "nocolor", false, "disable colored output")
	fs.Usage = c.printUsage
	return c
}

func (c *Cmd) printUsage() {
	fmt.Fprintf(c.Stderr, "Usage: %s [options] %s\n\nOptions:\n", c.Flags.Name(), c.Usage)
	var flags []*flag.Flag
	c.Flags.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
	printFlags(c.Stderr, flags)
}

// printFlags lists flags with their defaults, wrapping descriptions at 80
// columns.
func printFlags(w io.Writer, flags []*flag.Flag) {
	wname, wdef := 0, 0
	for _, f := range flags {
		wname = max(wname, len(f.Name))
		wdef = max(wdef, len(f.DefValue))
	}
	wdesc := 80 - wname - wdef - 7
	lpad := strings.Repeat(" ", wname+wdef+7)
	for _, f := range flags {
		def := ""
		if f.DefValue != "" && f.DefValue != "false" {
			def = "(" + f.DefValue + ")"
		}
		fmt.Fprintf(w, "  -%-*s %-*s ", wname, f.Name, wdef+2, def)
		usage := f.Usage
		for first := true; first || usage != ""; first = false {
			if !first {
				fmt.Fprint(w, lpad)
			}
			line := usage
			if len(line) > wdesc {
				if s := strings.LastIndexByte(line[:wdesc], ' '); s > 0 {
					line = line[:s]
				} else {
					line = line[:wdesc]
				}
			}
			fmt.Fprintln(w, line)
			usage = strings.TrimPrefix(usage[len(line):], " ")
		}
	}
}

// Parse reads flags from args[1:], then loads config, logging and keys.
// Flags override config values.
func (c *Cmd) Parse(args []string) error {
	if err := c.Flags.Parse(args[1:]); err != nil {
		return err
	}
	c.Args = c.Flags.Args()

	var err error
	if c.configPath != "" {
		c.Config, err = models.LoadConfig(c.configPath)
	} else {
		c.Config, err = models.FindConfig()
	}
	if err != nil {
		return err
	}
	if c.lang != "" {
		c.Config.Language = c.lang
	}
	if c.logLevel != "" {
		c.Config.LogLevel = c.logLevel
	} else if c.verbose {
		c.Config.LogLevel = "debug"
	}
	c.color = c.Config.Color && !c.noColor
	if f, ok := c.Stdout.(*os.File); ok {
		c.color = c.color && IsTerminal(f)
	}
	if err := InitLogging(c.Stderr, c.Config.LogLevel, c.Config.Color && !c.noColor); err != nil {
		return err
	}

	c.Keys = keys.NewManager()
	dir := c.keysDir
	if dir == "" {
		dir = c.Config.KeysPath()
	}
	if dir != "" {
		if err := c.Keys.LoadDir(dir); err != nil {
			if errors.Cause(err) != keys.ErrMissingKeyFile {
				return err
			}
			log.Debug().Str("dir", dir).Msg("no production keys, encrypted content will not load")
		}
	}
	return nil
}

// Language is the configured language preference.
func (c *Cmd) Language() language.Tag {
	if c.Config == nil {
		return language.AmericanEnglish
	}
	return c.Config.LanguageTag()
}

// Registry returns a loader registry using the loaded keys and language.
func (c *Cmd) Registry() *loader.Registry {
	return loader.NewRegistry(loader.Options{Keys: c.Keys, Language: c.Language()})
}

// Open returns a handle to path. A directory resolves to its "main"
// executable so extracted ExeFS folders can be named directly.
func (c *Cmd) Open(path string) (vfs.File, error) {
	if _, ok := c.Fs.(*afero.OsFs); ok {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		path = abs
	}
	st, err := c.Fs.Stat(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if st.IsDir() {
		f := vfs.NewAferoDir(c.Fs, path).File("main")
		if f == nil {
			return nil, errors.Errorf("%s: directory has no main executable", path)
		}
		return f, nil
	}
	return vfs.OpenFile(c.Fs, path)
}

// Colorize wraps s in the ansi style when color output is enabled.
func (c *Cmd) Colorize(s, style string) string {
	if !c.color {
		return s
	}
	return ansi.Color(s, style)
}

// StatusText formats a loader status in the configured language, followed
// by the English text when that differs.
func (c *Cmd) StatusText(s models.ResultStatus) string {
	msg := s.LocalizedMessage(models.MatchLanguage(c.Config.Language))
	if en := s.Message(); en != msg {
		return fmt.Sprintf("%s (%s)", c.Colorize(msg, "red"), en)
	}
	return c.Colorize(msg, "red")
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintError prints err, and its stack trace when verbose.
func (c *Cmd) PrintError(err error) {
	fmt.Fprintf(c.Stderr, "Error: %s\n", err)
	if !c.verbose {
		return
	}
	var st stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := e.(stackTracer); ok {
			st = s
		}
	}
	if st == nil {
		return
	}
	var frames [][2]string
	width := 0
	for _, f := range st.StackTrace() {
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)
		frames = append(frames, [2]string{fileline, method})
		width = max(width, len(fileline))
		if method == "main" {
			break
		}
	}
	for _, f := range frames {
		fmt.Fprintf(c.Stderr, "  %-*s | %s()\n", width, f[0], f[1])
	}
}
