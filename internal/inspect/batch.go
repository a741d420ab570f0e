package inspect

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of files InspectFiles reads at once.
const DefaultConcurrency = 4

// BatchOption configures InspectFiles.
type BatchOption func(*batchSettings)

type batchSettings struct {
	concurrency int
	maxSize     int64
	logger      *slog.Logger
}

// WithConcurrency sets the number of files inspected at once.
func WithConcurrency(n int) BatchOption {
	return func(s *batchSettings) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxFileSize limits how much of each file is read.
func WithMaxFileSize(n int64) BatchOption {
	return func(s *batchSettings) {
		s.maxSize = n
	}
}

// WithLogger sets the logger used for files that could not be read.
func WithLogger(logger *slog.Logger) BatchOption {
	return func(s *batchSettings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// InspectFiles inspects the candidate files among paths concurrently and
// returns the files that carry metadata, in the order of paths.
//
// Files without metadata are skipped. A file that cannot be read is
// logged and skipped; it does not stop the others. The only error is the
// context error when ctx ends before every file was read.
//
// Design decision: results are written into a slice indexed by input
// position so the output order does not depend on scheduling.
func InspectFiles(ctx context.Context, paths []string, opts ...BatchOption) ([]Result, error) {
	s := &batchSettings{
		concurrency: DefaultConcurrency,
		maxSize:     DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	found := make([]*Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, path := range paths {
		if !IsCandidate(path) {
			continue
		}
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			result, err := InspectFile(path, s.maxSize)
			switch {
			case errors.Is(err, ErrNoMetadata):
				return nil
			case err != nil:
				s.logger.Warn("failed to inspect file", "path", path, "error", err)
				return nil
			}
			s.logger.Debug("metadata found", "path", path, "tags", len(result.Tags))
			found[i] = result
			return nil
		})
	}

	err := g.Wait()

	results := make([]Result, 0)
	for _, r := range found {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, err
}
