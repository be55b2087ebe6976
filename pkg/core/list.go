package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrorMarker prefixes listing rows that stand for unreadable data.
const ErrorMarker = "[ERROR]"

// List enumerates the entries of both groups without copying payloads. Only
// a failed magic check or an unreadable archive header is returned as an
// error; group level failures become summaries with Err set, placed after
// the entries decoded before the failure.
func List(b []byte) ([]EntrySummary, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return nil, err
	}
	var out []EntrySummary
	for _, g := range []Group{Group1, Group2} {
		raw, err := readGroup(b, &h, g)
		if err != nil {
			out = append(out, EntrySummary{Group: g, Err: err})
			continue
		}
		err = walkGroup(raw, g, func(eh EntryHeader, payload []byte) {
			out = append(out, EntrySummary{Group: g, Name: eh.Name, Size: len(payload)})
		})
		if err != nil {
			out = append(out, EntrySummary{Group: g, Err: err})
		}
	}
	return out, nil
}

// listFile produces the CSV rows for one archive file.
func listFile(path, label string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	summaries, err := List(data)
	if err != nil {
		if errors.Is(err, ErrNotIceFile) {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []string{fmt.Sprintf("%s %s,,,%v", ErrorMarker, label, err)}, nil
	}

	h, _ := ReadHeader(data)
	format := h.FormatLabel()
	rows := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if s.Err != nil {
			rows = append(rows, fmt.Sprintf("%s %s,%s,%d,%v", ErrorMarker, label, format, s.Group, s.Err))
			continue
		}
		rows = append(rows, fmt.Sprintf("%s,%s,%d,%s", label, format, s.Group, s.Name))
	}
	return rows, nil
}

// ListPath lists a single archive or every ICE archive below a directory.
// Rows are "filename,ICE{n},group,entryName". In directory mode files that
// fail the magic check are skipped; a named file that fails it is an error.
func ListPath(ctx context.Context, inputArchiveOrDir string) ([]string, error) {
	info, err := os.Stat(inputArchiveOrDir)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return listFile(inputArchiveOrDir, filepath.Base(inputArchiveOrDir))
	}

	paths, err := collectDirEntries(inputArchiveOrDir, true)
	if err != nil {
		return nil, err
	}

	results := make([][]string, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			label, err := RelativeEntryName(p, inputArchiveOrDir)
			if err != nil {
				return err
			}
			ok, err := sniffFile(p)
			if err != nil || !ok {
				return err
			}
			rows, err := listFile(p, label)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []string
	for _, r := range results {
		rows = append(rows, r...)
	}
	return rows, nil
}

// sniffFile reads just enough of path to run IsIceMagic.
func sniffFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	buf := make([]byte, MinArchiveSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return IsIceMagic(buf), nil
}
