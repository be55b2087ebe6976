package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"icepak/pkg/progress"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// ReadHeader validates the magic and decodes the archive header.
func ReadHeader(b []byte) (Header, error) {
	var h Header
	if err := h.UnmarshalBinary(b); err != nil {
		return Header{}, err
	}
	return h, nil
}

// groupRange returns the byte range of group g inside the archive.
func groupRange(h *Header, g Group, size int) (int64, int64, error) {
	start := int64(h.HeaderLen)
	if g == Group2 {
		start += int64(h.Groups[0].StoredSize)
	}
	end := start + int64(h.Group(g).StoredSize)
	if end > int64(size) {
		return 0, 0, fmt.Errorf("%s spans [%#x, %#x) of a %d byte archive: %w", g, start, end, size, ErrCorruptGroup)
	}
	return start, end, nil
}

// readGroup slices group g out of the archive, undoes its transforms and
// verifies the checksum. The result is the raw group.
func readGroup(b []byte, h *Header, g Group) ([]byte, error) {
	start, end, err := groupRange(h, g, len(b))
	if err != nil {
		return nil, &GroupError{Group: g, Offset: -1, Err: err}
	}
	raw, err := decodeTransforms(b[start:end], h, g)
	if err != nil {
		return nil, &GroupError{Group: g, Offset: -1, Err: err}
	}
	if sum := xxh3.Hash(raw); sum != h.Group(g).Checksum {
		return nil, &GroupError{Group: g, Offset: -1,
			Err: fmt.Errorf("got %016x, header declares %016x: %w", sum, h.Group(g).Checksum, ErrChecksumMismatch)}
	}
	return raw, nil
}

// Unpack validates the archive and decodes both groups. Any decode failure
// is fatal. An archive without entries yields ErrNoEntries.
func Unpack(b []byte) (*Archive, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return nil, err
	}
	a := &Archive{Header: h}
	for _, g := range []Group{Group1, Group2} {
		raw, err := readGroup(b, &h, g)
		if err != nil {
			return nil, err
		}
		entries, err := DecodeGroup(raw, g)
		if err != nil {
			return nil, err
		}
		if g == Group1 {
			a.Group1 = entries
		} else {
			a.Group2 = entries
		}
	}
	if len(a.Group1) == 0 && len(a.Group2) == 0 {
		return nil, ErrNoEntries
	}
	return a, nil
}

// UnpackOptions controls UnpackFile.
type UnpackOptions struct {
	// CreateSubdir extracts into outputDir/<archive file name>.
	CreateSubdir bool
	// SeparateByGroup extracts into group1/ and group2/ below the target.
	SeparateByGroup bool
	Progress        *progress.Tracker
}

// UnpackResult summarizes an extraction.
type UnpackResult struct {
	OutputDir string
	Group1    int
	Group2    int
	Bytes     uint64
}

// extractTask defines one file write
type extractTask struct {
	entry    Entry
	destPath string
}

// UnpackFile reads an archive from disk and writes its entries below
// outputDir.
func UnpackFile(ctx context.Context, inputArchive, outputDir string, opts UnpackOptions) (UnpackResult, error) {
	data, err := os.ReadFile(inputArchive)
	if err != nil {
		return UnpackResult{}, fmt.Errorf("open input: %w", err)
	}
	a, err := Unpack(data)
	if err != nil {
		return UnpackResult{}, fmt.Errorf("unpack %s: %w", inputArchive, err)
	}

	root := outputDir
	if opts.CreateSubdir {
		root = filepath.Join(outputDir, filepath.Base(inputArchive))
	}
	tasks, err := planExtraction(a, root, opts.SeparateByGroup)
	if err != nil {
		return UnpackResult{}, err
	}

	res := UnpackResult{OutputDir: root, Group1: len(a.Group1), Group2: len(a.Group2)}
	for _, t := range tasks {
		res.Bytes += uint64(len(t.entry.Data))
	}
	opts.Progress.SetTotal(res.Bytes)

	if err := writeFiles(ctx, tasks, opts.Progress); err != nil {
		return UnpackResult{}, err
	}
	return res, nil
}

// planExtraction maps entries to destination paths. Without group
// separation a group 2 entry replaces a group 1 entry of the same name.
func planExtraction(a *Archive, root string, separate bool) ([]extractTask, error) {
	var tasks []extractTask
	index := make(map[string]int)
	for _, e := range a.Entries() {
		rel := filepath.FromSlash(e.Name)
		if !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("entry %q escapes the output directory: %w", e.Name, ErrInvalidName)
		}
		dest := filepath.Join(root, rel)
		if separate {
			dest = filepath.Join(root, e.Group.String(), rel)
		}
		if i, ok := index[dest]; ok {
			tasks[i] = extractTask{entry: e, destPath: dest}
			continue
		}
		index[dest] = len(tasks)
		tasks = append(tasks, extractTask{entry: e, destPath: dest})
	}
	return tasks, nil
}

// writeFiles writes files concurrently
func writeFiles(ctx context.Context, tasks []extractTask, tracker *progress.Tracker) error {
	// Pre-create directories for all files
	for _, t := range tasks {
		if err := os.MkdirAll(filepath.Dir(t.destPath), 0755); err != nil {
			return fmt.Errorf("create dir for %s: %w", t.destPath, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, t := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := os.WriteFile(t.destPath, t.entry.Data, 0644); err != nil {
				return fmt.Errorf("write %s: %w", t.destPath, err)
			}
			tracker.AddBytes(uint64(len(t.entry.Data)))
			return nil
		})
	}
	return g.Wait()
}
