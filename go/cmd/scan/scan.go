// Package scan identifies every file under a directory tree.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lunixbochs/nxcorn/go/cmd"
	"github.com/lunixbochs/nxcorn/go/loader"
	"github.com/lunixbochs/nxcorn/go/models"
)

type scanCmd struct {
	*cmd.Cmd
	workers int
	all     bool
}

// Result is the detected format of one file.
type Result struct {
	Path string
	Type models.FileType
}

func Main(args []string) int {
	c := newScanCmd(cmd.New(args[0], "<dir> [dir...]"))
	return c.Run(args, 1, c.scan)
}

func newScanCmd(base *cmd.Cmd) *scanCmd {
	c := &scanCmd{Cmd: base}
	c.Flags.IntVar(&c.workers, "j", 0, "files to identify in parallel (default from config)")
	c.Flags.BoolVar(&c.all, "all", false, "list unrecognized files too")
	return c
}

// Walk lists the regular files under root.
func Walk(root string) ([]string, error) {
	var mu sync.Mutex
	var paths []string
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping")
			return nil
		}
		if d.Type().IsRegular() {
			mu.Lock()
			paths = append(paths, path)
			mu.Unlock()
		}
		return nil
	})
	return paths, errors.Wrap(err, root)
}

// Identify detects the format of every path with at most workers files
// open at once. Results are in natural path order.
func Identify(ctx context.Context, c *cmd.Cmd, reg *loader.Registry, paths []string, workers int) ([]Result, error) {
	results := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Result{Path: path, Type: models.FileTypeError}
			f, err := c.Open(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("open failed")
				return nil
			}
			t := reg.IdentifyFile(f)
			if t == models.FileTypeUnknown {
				t = loader.GuessFromFilename(f.Name())
			}
			results[i].Type = t
			if closer, ok := f.(interface{ Close() error }); ok {
				closer.Close()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(a, b int) bool {
		return sortorder.NaturalLess(results[a].Path, results[b].Path)
	})
	return results, nil
}

func (c *scanCmd) scan() error {
	workers := c.workers
	if workers <= 0 {
		workers = c.Config.ScanWorkers
	}
	var paths []string
	for _, root := range c.Args {
		p, err := Walk(root)
		if err != nil {
			return err
		}
		paths = append(paths, p...)
	}
	results, err := Identify(context.Background(), c.Cmd, c.Registry(), paths, workers)
	if err != nil {
		return err
	}
	counts := make(map[models.FileType]int)
	for _, r := range results {
		known := r.Type.Loadable()
		if known {
			counts[r.Type]++
		}
		if known || c.all {
			fmt.Fprintf(c.Stdout, "%s: %s\n", r.Path, loader.GetFileTypeString(r.Type))
		}
	}
	types := make([]models.FileType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(a, b int) bool { return types[a] < types[b] })
	fmt.Fprintf(c.Stdout, "\n%d files\n", len(results))
	for _, t := range types {
		fmt.Fprintf(c.Stdout, "  %-9s %d\n", loader.GetFileTypeString(t), counts[t])
	}
	return nil
}

func init() {
	cmd.Register("scan", "identify every file under a directory", Main)
}
