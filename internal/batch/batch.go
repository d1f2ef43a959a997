// Package batch runs the triage pipeline over many independent inputs
// concurrently. Each input gets its own Reader and its own pipeline
// invocation; per spec §5 the core is single-threaded within a single
// analysis, so the only thing this package adds is bounded fan-out and
// result collection across analyses that share nothing.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/bintriage/internal/artifact"
	"github.com/standardbeagle/bintriage/internal/bconfig"
	"github.com/standardbeagle/bintriage/internal/ioref"
	"github.com/standardbeagle/bintriage/internal/triage"
)

// Result pairs one input path with the artifact (or error) triage produced
// for it. Open/stat failures land in Err; parser-level failures for a
// recognized format are recorded inside the artifact itself (see
// internal/triage) and do not surface here.
type Result struct {
	Path     string
	Artifact *artifact.TriageArtifact
	Err      error
}

// Options bounds a batch run.
type Options struct {
	// Concurrency caps the number of analyses running at once. Zero or
	// negative means unlimited (errgroup.SetLimit's -1 sentinel).
	Concurrency int
	Limits      ioref.Limits
	Config      bconfig.Config
}

// DefaultOptions mirrors the IO defaults used by a single-file run.
func DefaultOptions() Options {
	return Options{
		Concurrency: 8,
		Limits:      ioref.DefaultLimits(),
		Config:      bconfig.Default(),
	}
}

// Run triages every path in paths concurrently, bounded by opts.Concurrency.
// It returns one Result per input path, in the same order as paths, even
// though the underlying work completes out of order. Run only returns a
// non-nil error if the context is canceled; per-input failures are carried
// in each Result instead of aborting the batch.
func Run(ctx context.Context, paths []string, opts Options) ([]Result, error) {
	results := make([]Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Path: path, Err: err}
				return err
			}
			results[i] = runOne(path, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func runOne(path string, opts Options) Result {
	r, err := ioref.Open(path, opts.Limits)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	return Result{Path: path, Artifact: triage.Run(r, path, opts.Config)}
}
