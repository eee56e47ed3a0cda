// Package runner applies the declassify transformer to batches of files.
//
// A Runner transforms files in parallel, caches results by content hash and
// optionally writes changed files back. A Watcher re-runs a Runner on the
// files of a directory tree as they change.
package runner

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/gnana997/declassify/pkg/declassify"
	"github.com/gnana997/declassify/pkg/parser"
	"github.com/gnana997/declassify/pkg/util"
)

// Options configures a Runner.
type Options struct {
	// Workers bounds the number of files transformed at once.
	// Zero picks a value from the CPU count.
	Workers int
	// CacheSize is the number of results kept by content hash.
	// Zero means 256; a negative value disables the cache.
	CacheSize int
	// Write replaces changed files on disk.
	Write bool
}

// FileReport is the outcome of one file.
type FileReport struct {
	Path    string                   `json:"path"`
	Classes []declassify.ClassReport `json:"classes,omitempty"`
	Changed bool                     `json:"changed"`
	Written bool                     `json:"written,omitempty"`
	Cached  bool                     `json:"cached,omitempty"`
	Error   string                   `json:"error,omitempty"`

	Original []byte `json:"-"`
	Output   []byte `json:"-"`
}

// Count returns the number of classes of the file with the given outcome.
func (r *FileReport) Count(o declassify.Outcome) int {
	n := 0
	for _, c := range r.Classes {
		if c.Outcome == o {
			n++
		}
	}
	return n
}

// Summary aggregates a batch of reports.
type Summary struct {
	Files       int `json:"files"`
	Changed     int `json:"changed"`
	Errors      int `json:"errors"`
	Transformed int `json:"transformed"`
	Disabled    int `json:"disabled"`
	Skipped     int `json:"skipped"`
}

// Summarize counts files and class outcomes.
func Summarize(reports []FileReport) Summary {
	var s Summary
	for i := range reports {
		r := &reports[i]
		s.Files++
		if r.Changed {
			s.Changed++
		}
		if r.Error != "" {
			s.Errors++
		}
		s.Transformed += r.Count(declassify.OutcomeTransformed)
		s.Disabled += r.Count(declassify.OutcomeDisabled)
		s.Skipped += r.Count(declassify.OutcomeSkipped)
	}
	return s
}

// Stats contains runner statistics.
type Stats struct {
	Files       int64
	CacheHits   int64
	CacheMisses int64
	Failures    int64
	AvgFileTime time.Duration
}

// Runner transforms files with a shared Transformer. It is safe for
// concurrent use.
type Runner struct {
	transformer *declassify.Transformer
	cache       *lru.Cache[string, *declassify.Result]
	options     Options
	logger      *slog.Logger

	files     atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	failures  atomic.Int64
	totalTime atomic.Int64 // Microseconds
}

// New creates a Runner.
func New(t *declassify.Transformer, options Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if options.CacheSize == 0 {
		options.CacheSize = 256
	}

	r := &Runner{
		transformer: t,
		options:     options,
		logger:      logger,
	}
	if options.CacheSize > 0 {
		cache, err := lru.NewWithEvict(options.CacheSize, func(key string, _ *declassify.Result) {
			logger.Debug("Evicting cached result", "key", key[:12])
		})
		if err != nil {
			panic(fmt.Sprintf("failed to create result cache: %v", err))
		}
		r.cache = cache
	}
	return r
}

// Run transforms files in parallel. Reports are returned in the order of
// files. Per-file failures are recorded in the reports; the returned error
// is only set when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, files []string) ([]FileReport, error) {
	reports := make([]FileReport, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(util.GetOptimalPoolSizeWithOverride(r.options.Workers))

	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = r.RunFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	if err := ctx.Err(); err != nil {
		return reports, err
	}
	return reports, nil
}

// RunFile transforms one file from disk.
func (r *Runner) RunFile(path string) FileReport {
	report := FileReport{Path: path}

	sf, err := util.OpenSource(path, r.logger)
	if err != nil {
		return r.fail(report, err)
	}
	source := bytes.Clone(sf.Bytes())
	sf.Close()
	report.Original = source

	res, cached, err := r.transform(path, source, parser.DetectDialect(path))
	if err != nil {
		return r.fail(report, err)
	}
	report.Cached = cached
	report.Classes = res.Classes
	report.Changed = res.Changed
	report.Output = res.Output

	if r.options.Write && res.Changed {
		if err := writeFile(path, res.Output); err != nil {
			return r.fail(report, err)
		}
		report.Written = true
		r.logger.Info("File rewritten", "file", path,
			"transformed", report.Count(declassify.OutcomeTransformed),
			"disabled", report.Count(declassify.OutcomeDisabled))
	}
	return report
}

// TransformSource transforms an in-memory source. The dialect is taken
// from filename.
func (r *Runner) TransformSource(filename string, source []byte) (*declassify.Result, error) {
	dialect := parser.DetectDialect(filename)
	if dialect == parser.DialectUnknown {
		return nil, fmt.Errorf("unsupported file type: %s", filename)
	}
	res, _, err := r.transform(filename, source, dialect)
	return res, err
}

func (r *Runner) transform(path string, source []byte, dialect parser.Dialect) (res *declassify.Result, cached bool, err error) {
	if dialect == parser.DialectUnknown {
		return nil, false, fmt.Errorf("unsupported file type: %s", path)
	}

	key := cacheKey(dialect, source)
	if r.cache != nil {
		if res, ok := r.cache.Get(key); ok {
			r.hits.Add(1)
			r.logger.Debug("Result cache hit", "file", path)
			return res, true, nil
		}
		r.misses.Add(1)
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Transformer panicked", "file", path, "panic", p)
			res, cached, err = nil, false, fmt.Errorf("internal error: %v", p)
		}
	}()

	res, err = r.transformer.TransformSource(source, dialect)
	if err != nil {
		return nil, false, fmt.Errorf("failed to transform %s: %w", path, err)
	}
	r.files.Add(1)
	r.totalTime.Add(time.Since(start).Microseconds())

	if r.cache != nil {
		r.cache.Add(key, res)
	}
	r.logger.Debug("File transformed", "file", path,
		"classes", len(res.Classes),
		"changed", res.Changed,
		"duration", time.Since(start))
	return res, false, nil
}

func (r *Runner) fail(report FileReport, err error) FileReport {
	r.failures.Add(1)
	report.Error = err.Error()
	r.logger.Warn("File failed", "file", report.Path, "error", err)
	return report
}

// GetStats returns runner statistics.
func (r *Runner) GetStats() Stats {
	s := Stats{
		Files:       r.files.Load(),
		CacheHits:   r.hits.Load(),
		CacheMisses: r.misses.Load(),
		Failures:    r.failures.Load(),
	}
	if s.Files > 0 {
		s.AvgFileTime = time.Duration(r.totalTime.Load()/s.Files) * time.Microsecond
	}
	return s
}

// cacheKey identifies a result by dialect and content.
func cacheKey(dialect parser.Dialect, source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:]) + ":" + dialect.String()
}

// writeFile replaces path through a temporary file in the same directory,
// keeping the original permissions.
func writeFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	tmp := path + ".declassify.tmp"
	if err := os.WriteFile(tmp, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
