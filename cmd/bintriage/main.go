package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/bintriage/internal/batch"
	"github.com/standardbeagle/bintriage/internal/bconfig"
	"github.com/standardbeagle/bintriage/internal/ioref"
	"github.com/standardbeagle/bintriage/internal/strscan"
	"github.com/standardbeagle/bintriage/internal/triage"
)

const configFileName = ".bintriage.kdl"

func loadConfigWithOverrides(c *cli.Context) (bconfig.Config, error) {
	configPath := c.String("config")
	if configPath == "" {
		configPath = configFileName
	}
	cfg, err := bconfig.LoadFile(configPath)
	if err != nil {
		return bconfig.Config{}, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "bintriage",
		Usage:                  "Binary format sniffing, entropy, packer, and CFG triage",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   configFileName,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Usage:     "Triage a single file and emit its artifact as JSON",
				ArgsUsage: "<path>",
				Action:    scanCommand,
			},
			{
				Name:      "batch",
				Usage:     "Triage every matching file under a directory concurrently",
				ArgsUsage: "<dir>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "include",
						Usage: "Include files matching glob patterns (default: **/*)",
					},
					&cli.StringSliceFlag{
						Name:  "exclude",
						Usage: "Exclude files matching glob patterns",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum concurrent analyses",
						Value: batch.DefaultOptions().Concurrency,
					},
				},
				Action: batchCommand,
			},
			{
				Name:      "overlay",
				Usage:     "Print overlay details for a single file, if any",
				ArgsUsage: "<path>",
				Action:    overlayCommand,
			},
			{
				Name:      "strings",
				Usage:     "Print the extracted string sample summary for a single file",
				ArgsUsage: "<path>",
				Action:    stringsCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "bintriage:", err)
		os.Exit(1)
	}
}

func scanCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: bintriage scan <path>")
	}
	path := c.Args().First()

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	r, err := ioref.Open(path, ioref.DefaultLimits())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	art := triage.Run(r, path, cfg)
	return printJSON(art)
}

func batchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: bintriage batch <dir>")
	}
	root := c.Args().First()

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	includes := c.StringSlice("include")
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	excludes := c.StringSlice("exclude")

	paths, err := walkMatching(root, includes, excludes)
	if err != nil {
		return err
	}

	opts := batch.DefaultOptions()
	opts.Config = cfg
	if n := c.Int("concurrency"); n > 0 {
		opts.Concurrency = n
	}

	results, err := batch.Run(context.Background(), paths, opts)
	if err != nil {
		return fmt.Errorf("batch run aborted: %w", err)
	}

	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "bintriage: %s: %v\n", res.Path, res.Err)
			continue
		}
		if err := printJSON(res.Artifact); err != nil {
			return err
		}
	}
	return nil
}

// walkMatching returns every regular file under root whose path (relative
// to root) matches at least one include glob and no exclude glob, sorted
// lexicographically so batch output is a pure function of the tree
// contents.
func walkMatching(root string, includes, excludes []string) ([]string, error) {
	var matched []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		if !matchesAny(includes, rel) {
			return nil
		}
		if matchesAny(excludes, rel) {
			return nil
		}
		matched = append(matched, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matched)
	return matched, nil
}

func matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

func overlayCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: bintriage overlay <path>")
	}
	path := c.Args().First()

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	r, err := ioref.Open(path, ioref.DefaultLimits())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	art := triage.Run(r, path, cfg)
	if art.Overlay == nil {
		fmt.Println("no overlay detected")
		return nil
	}
	return printJSON(art.Overlay)
}

func stringsCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: bintriage strings <path>")
	}
	path := c.Args().First()

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	r, err := ioref.Open(path, ioref.DefaultLimits())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	data, err := r.ReadAt(0, int(r.Size()))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	summary := strscan.Scan(data, strscan.Config{
		MinLength:  cfg.Heuristics.MinStringLength,
		MaxSamples: cfg.Heuristics.StringSampleLimit,
	})
	return printJSON(summary)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
