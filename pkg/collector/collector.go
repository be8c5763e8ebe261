package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Sumatoshi-tech/repopulse/internal/observability"
	"github.com/Sumatoshi-tech/repopulse/pkg/cache"
	"github.com/Sumatoshi-tech/repopulse/pkg/gitlog"
	"github.com/Sumatoshi-tech/repopulse/pkg/identity"
	"github.com/Sumatoshi-tech/repopulse/pkg/timewindow"
)

// Collection failure kinds.
var (
	ErrPathMissing   = errors.New("repository path does not exist")
	ErrNotRepository = errors.New("not a git repository")
	ErrLogFailed     = errors.New("git log failed")
)

// CollectionError describes why one repository could not be collected. It is
// recorded into the record's errors as text and never returned to callers.
type CollectionError struct {
	Repository string
	Err        error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.Repository, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// Options configures a Collector.
type Options struct {
	ActivityThresholdDays int
	SkipBinary            bool
	Normalizer            *identity.Normalizer
}

// Collector builds Repository records from a gitlog.Source.
type Collector struct {
	source  gitlog.Source
	windows timewindow.Set
	opts    Options
	logger  *slog.Logger
	store   *cache.Store[Repository]
	scanKey string
}

// New creates a Collector. A nil logger discards output.
func New(source gitlog.Source, windows timewindow.Set, opts Options, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.Normalizer == nil {
		opts.Normalizer = identity.NewNormalizer("", nil)
	}

	return &Collector{
		source:  source,
		windows: windows,
		opts:    opts,
		logger:  logger,
		scanKey: scanKey(windows, opts),
	}
}

// WithCache enables result caching in store.
func (c *Collector) WithCache(store *cache.Store[Repository]) *Collector {
	c.store = store

	return c
}

// scanKey captures every setting that changes a collected record: the window
// definitions, the anchor day, the activity threshold and the normalization knobs.
func scanKey(windows timewindow.Set, opts Options) string {
	defs, err := json.Marshal(windows.Definitions())
	if err != nil {
		defs = nil
	}

	return cache.Fingerprint(
		string(defs),
		windows.Now().Format("2006-01-02"),
		strconv.Itoa(opts.ActivityThresholdDays),
		strconv.FormatBool(opts.SkipBinary),
		opts.Normalizer.Placeholder(),
	)
}

// Collect returns the record for the working copy at path. Failures are
// recorded in the record's errors; the metrics stay zero.
func (c *Collector) Collect(ctx context.Context, name, path string) Repository {
	ctx = observability.WithRepository(ctx, name)
	rec := Empty(name, path, c.windows.Names())

	checkErr := checkWorkingCopy(path)
	if checkErr != nil {
		rec.AddError(&CollectionError{Repository: name, Err: checkErr})

		return rec
	}

	if c.store == nil {
		return c.scan(ctx, rec)
	}

	head, headErr := c.source.Head(ctx, path)
	if headErr != nil {
		c.logger.DebugContext(ctx, "skip cache, no HEAD", "error", headErr)

		return c.scan(ctx, rec)
	}

	key := cache.Fingerprint(name, path, head, c.scanKey)

	out, hit, cacheErr := c.store.GetOrCompute(key, func() (Repository, bool) {
		scanned := c.scan(ctx, rec)

		return scanned, !scanned.Failed()
	})
	if cacheErr != nil {
		c.logger.WarnContext(ctx, "repository cache", "error", cacheErr)
	}

	if hit {
		c.logger.DebugContext(ctx, "cache hit")
	}

	return out
}

func (c *Collector) scan(ctx context.Context, rec Repository) Repository {
	raw, logErr := c.source.Log(ctx, rec.Path)
	if logErr != nil {
		rec.AddError(&CollectionError{Repository: rec.Name, Err: fmt.Errorf("%w: %w", ErrLogFailed, logErr)})

		return rec
	}

	commits, warnings := gitlog.Parse(bytes.NewReader(raw), gitlog.ParseOptions{SkipBinary: c.opts.SkipBinary})
	for _, w := range warnings {
		c.logger.WarnContext(ctx, "git log", "warning", w)
	}

	Fold(&rec, commits, c.windows, FoldOptions{
		ActivityThresholdDays: c.opts.ActivityThresholdDays,
		Normalizer:            c.opts.Normalizer,
	})

	if !rec.HasAnyCommits && len(warnings) > 0 {
		c.recoverLastCommit(ctx, &rec)
	}

	head, headErr := c.source.Head(ctx, rec.Path)
	if headErr == nil {
		rec.Head = head
	}

	c.logger.Debug("collected repository", "repository", rec.Name, "commits", rec.TotalCommitsEver)

	return rec
}

// recoverLastCommit asks git for the HEAD date when history exists but no
// commit header could be parsed.
func (c *Collector) recoverLastCommit(ctx context.Context, rec *Repository) {
	last, err := c.source.LastCommitDate(ctx, rec.Path)
	if err != nil {
		return
	}

	SetLastCommit(rec, last, c.windows.Now(), c.opts.ActivityThresholdDays)
}

func checkWorkingCopy(path string) error {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return fmt.Errorf("%w: %s", ErrPathMissing, path)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotRepository, path)
	}

	_, gitErr := os.Stat(filepath.Join(path, ".git"))
	if gitErr != nil {
		return fmt.Errorf("%w: %s", ErrNotRepository, path)
	}

	return nil
}
