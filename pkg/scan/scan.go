// Package scan walks a game data directory, hashes the files selected by a
// scope and records the results in a cache store.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"icepak/pkg/cache"
	"icepak/pkg/core"
	"icepak/pkg/progress"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"golang.org/x/sync/errgroup"
)

// Store is the part of the cache the scanner needs.
type Store interface {
	GetFile(ctx context.Context, name string) (cache.FileRecord, error)
	PutFile(ctx context.Context, rec cache.FileRecord) error
	ReplaceContents(ctx context.Context, parent string, records []cache.ContentRecord) error
}

// Options configures a Scanner.
type Options struct {
	Root         string
	ExcludeGlobs []string
	Logger       *slog.Logger
	Progress     *progress.Tracker
	// Workers bounds concurrent file reads; zero means runtime.NumCPU().
	Workers int
}

// Report counts what a scan did.
type Report struct {
	Scanned  int // files matching the scope
	Updated  int // files hashed and stored
	Skipped  int // files unchanged since the last scan
	Archives int // updated files that were ICE archives
	Failed   int // archives whose contents could not be decoded
}

// Scanner hashes files under a data root.
type Scanner struct {
	store Store
	opts  Options
}

// New returns a scanner writing to store.
func New(store Store, opts Options) *Scanner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Root = filepath.Clean(opts.Root)
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Scanner{store: store, opts: opts}
}

// ScanFiles hashes every file under the root that matches scope. Files whose
// size and modification time match the stored record are skipped unless
// force is set. ICE archives also get one content record per entry.
func (s *Scanner) ScanFiles(ctx context.Context, scope core.Scope, force bool) (Report, error) {
	paths, err := s.collect(scope)
	if err != nil {
		return Report{}, err
	}
	s.opts.Logger.Info("Scanning data root", "root", s.opts.Root, "scope", scope, "files", len(paths), "force", force)

	var updated, skipped, archives, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.scanFile(ctx, p, force)
			if err != nil {
				return err
			}
			switch {
			case res.skipped:
				skipped.Add(1)
			case res.archive:
				updated.Add(1)
				archives.Add(1)
			default:
				updated.Add(1)
			}
			if res.failed {
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep := Report{
		Scanned:  len(paths),
		Updated:  int(updated.Load()),
		Skipped:  int(skipped.Load()),
		Archives: int(archives.Load()),
		Failed:   int(failed.Load()),
	}
	s.opts.Logger.Info("Scan finished", "updated", rep.Updated, "skipped", rep.Skipped, "archives", rep.Archives, "failed", rep.Failed)
	return rep, nil
}

// collect walks the root and returns the matching file paths, sorted.
func (s *Scanner) collect(scope core.Scope) ([]string, error) {
	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if filepath.Clean(path) == s.opts.Root {
			return nil
		}
		rel, err := core.RelativeEntryName(path, s.opts.Root)
		if err != nil {
			return err
		}
		if s.excluded(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		// Asset files carry hashed names without an extension, so the
		// scope filter runs on the file path itself.
		if !d.Type().IsRegular() || !core.IsTargetPath(rel, scope) {
			return nil
		}
		mu.Lock()
		paths = append(paths, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.opts.Root, err)
	}
	slices.Sort(paths)
	return paths, nil
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.opts.ExcludeGlobs {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

type fileResult struct {
	skipped bool
	archive bool
	failed  bool
}

func (s *Scanner) scanFile(ctx context.Context, path string, force bool) (fileResult, error) {
	name, err := core.RelativeEntryName(path, s.opts.Root)
	if err != nil {
		return fileResult{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fileResult{}, fmt.Errorf("stat %s: %w", path, err)
	}
	modTime := info.ModTime()

	if !force {
		prev, err := s.store.GetFile(ctx, name)
		switch {
		case err == nil:
			if prev.Size == info.Size() && prev.UpdatedAt.UnixMilli() == modTime.UnixMilli() {
				return fileResult{skipped: true}, nil
			}
		case !errors.Is(err, cache.ErrNotFound):
			return fileResult{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fileResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	s.opts.Progress.AddBytes(uint64(len(data)))

	rec := cache.FileRecord{
		Name:      name,
		Hash:      core.Hash(data),
		Size:      int64(len(data)),
		IsArchive: core.IsIceMagic(data),
		UpdatedAt: modTime,
	}
	if err := s.store.PutFile(ctx, rec); err != nil {
		return fileResult{}, err
	}
	s.opts.Logger.Debug("Hashed file", "name", name, "hash", rec.Hash, "archive", rec.IsArchive)
	if !rec.IsArchive {
		return fileResult{}, nil
	}

	res := fileResult{archive: true}
	var contents []cache.ContentRecord
	a, err := core.Unpack(data)
	switch {
	case errors.Is(err, core.ErrNoEntries):
	case err != nil:
		s.opts.Logger.Warn("Failed to decode archive contents", "name", name, "error", err)
		res.failed = true
	default:
		for _, e := range a.Entries() {
			contents = append(contents, cache.ContentRecord{
				Parent:    name,
				Group:     int(e.Group),
				Name:      e.Name,
				Hash:      core.Hash(e.Data),
				Size:      int64(len(e.Data)),
				UpdatedAt: modTime,
			})
		}
	}
	if err := s.store.ReplaceContents(ctx, name, contents); err != nil {
		return fileResult{}, err
	}
	return res, nil
}
