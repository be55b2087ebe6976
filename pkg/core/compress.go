package core

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"icepak/pkg/progress"

	"github.com/zeebo/xxh3"
)

// PackOptions controls how Pack builds an archive.
type PackOptions struct {
	Compress bool
	Encrypt  bool
	// Codec selects the compression algorithm; CodecNone means lz4.
	Codec Codec
	// RequireEntries makes Pack fail with ErrEmptyInput when both groups
	// would be empty.
	RequireEntries bool
}

// Pack partitions files into the two groups with allow, encodes both groups
// and returns the complete archive. The output depends only on the inputs.
func Pack(files []File, allow AllowList, opts PackOptions) ([]byte, error) {
	var groups [2][]Entry
	for _, f := range files {
		g := Classify(f.Path, allow)
		groups[g-1] = append(groups[g-1], Entry{Name: f.Path, Data: f.Data, Group: g})
	}
	if opts.RequireEntries && len(groups[0]) == 0 && len(groups[1]) == 0 {
		return nil, ErrEmptyInput
	}

	h := Header{Version: Version, HeaderLen: HeaderSize}
	if opts.Compress {
		h.Flags |= FlagCompressed
		h.Codec = opts.Codec
		if h.Codec == CodecNone {
			h.Codec = CodecLZ4
		}
	}
	if opts.Encrypt {
		h.Flags |= FlagEncrypted
	}

	var stored [2][]byte
	total := int64(HeaderSize)
	for i, entries := range groups {
		g := Group(i + 1)
		raw, err := EncodeGroup(entries)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", g, err)
		}
		h.Groups[i] = GroupInfo{
			RawSize:  uint32(len(raw)),
			Count:    uint32(len(entries)),
			Checksum: xxh3.Hash(raw),
		}
		if stored[i], err = compressStored(raw, &h, g); err != nil {
			return nil, err
		}
		h.Groups[i].StoredSize = uint32(len(stored[i]))
		total += int64(len(stored[i]))
	}
	if total > maxUint32 {
		return nil, fmt.Errorf("archive of %d bytes does not fit a 32-bit size", total)
	}
	h.FileSize = uint32(total)
	if h.Encrypted() {
		h.KeySeed = keySeed(&h)
	}

	out := make([]byte, total)
	h.EncodeTo(out)
	off := HeaderSize
	for i := range stored {
		b, err := encryptStored(stored[i], &h, Group(i+1))
		if err != nil {
			return nil, err
		}
		off += copy(out[off:], b)
	}
	return out, nil
}

// keySeed mixes both group checksums so equal inputs give equal archives.
func keySeed(h *Header) uint32 {
	c1, c2 := h.Groups[0].Checksum, h.Groups[1].Checksum
	return uint32(c1) ^ uint32(c1>>32) ^ uint32(c2) ^ uint32(c2>>32)
}

// DirPackOptions controls PackDir.
type DirPackOptions struct {
	PackOptions
	Recursive bool
	AllowList AllowList
	Progress  *progress.Tracker
}

// PackDir reads every regular file under inputDir and packs it. Entry names
// are paths relative to inputDir using forward slashes.
func PackDir(ctx context.Context, inputDir string, opts DirPackOptions) ([]byte, error) {
	paths, err := collectDirEntries(inputDir, opts.Recursive)
	if err != nil {
		return nil, fmt.Errorf("collect entries: %w", err)
	}
	opts.Progress.SetTotal(calculateTotalSize(paths))

	files := make([]File, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := RelativeEntryName(p, inputDir)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		opts.Progress.AddBytes(uint64(len(data)))
		files = append(files, File{Path: name, Data: data})
	}
	return Pack(files, opts.AllowList, opts.PackOptions)
}

// calculateTotalSize sums the sizes of the files to be packed
func calculateTotalSize(paths []string) uint64 {
	var totalSize uint64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		totalSize += uint64(info.Size())
	}
	return totalSize
}

// collectDirEntries gathers regular files in walk order
func collectDirEntries(root string, recursive bool) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", root, err)
	}
	return paths, nil
}
