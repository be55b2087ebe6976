package core

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/exp/golden"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	t.Parallel()

	data, err := Pack(sampleFiles(), sampleAllow, PackOptions{Compress: true, Encrypt: true})
	require.NoError(t, err)

	got, err := List(data)
	require.NoError(t, err)
	require.Equal(t, []EntrySummary{
		{Group: Group1, Name: "data/tex.dds", Size: 4099},
		{Group: Group1, Name: "readme", Size: 5},
		{Group: Group2, Name: "data/model.aqp", Size: 2000},
		{Group: Group2, Name: "empty.bin", Size: 0},
		{Group: Group2, Name: "sub/dir/odd.sz", Size: 7},
	}, got)
}

func TestListNotIce(t *testing.T) {
	t.Parallel()

	_, err := List([]byte("plain text file that is long enough to not be rejected for size alone................................................................"))
	require.ErrorIs(t, err, ErrNotIceFile)
}

// TestListPartialFailure tests that a broken group 1 still lists group 2
func TestListPartialFailure(t *testing.T) {
	t.Parallel()

	data, err := Pack(sampleFiles(), sampleAllow, PackOptions{})
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data[HeaderSize+0x08:], 0xFFFF)
	rechecksum(t, data, Group1)

	got, err := List(data)
	require.NoError(t, err)
	require.Len(t, got, 4)

	require.Equal(t, Group1, got[0].Group)
	require.ErrorIs(t, got[0].Err, ErrCorruptGroup)
	for _, s := range got[1:] {
		require.Equal(t, Group2, s.Group)
		require.NoError(t, s.Err)
	}
}

func TestListChecksumFailure(t *testing.T) {
	t.Parallel()

	data, err := Pack(sampleFiles(), sampleAllow, PackOptions{})
	require.NoError(t, err)
	// no rechecksum: the group 1 checksum no longer matches
	data[HeaderSize+SubHeaderSize] ^= 0xFF

	got, err := List(data)
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.ErrorIs(t, got[0].Err, ErrChecksumMismatch)
}

func writeArchive(t *testing.T, path string, files []File, allow AllowList, opts PackOptions) {
	t.Helper()
	data, err := Pack(files, allow, opts)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestListPathFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "abc123")
	writeArchive(t, path, sampleFiles(), sampleAllow, PackOptions{Compress: true})

	rows, err := ListPath(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, []string{
		"abc123,ICE4,1,data/tex.dds",
		"abc123,ICE4,1,readme",
		"abc123,ICE4,2,data/model.aqp",
		"abc123,ICE4,2,empty.bin",
		"abc123,ICE4,2,sub/dir/odd.sz",
	}, rows)
}

func TestListPathNamedNonIce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, make([]byte, 512), 0o644))

	_, err := ListPath(context.Background(), path)
	require.ErrorIs(t, err, ErrNotIceFile)
}

func TestListPathMarksBrokenGroup(t *testing.T) {
	t.Parallel()

	data, err := Pack(sampleFiles(), sampleAllow, PackOptions{})
	require.NoError(t, err)
	data[HeaderSize+SubHeaderSize] ^= 0xFF
	path := filepath.Join(t.TempDir(), "broken")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	rows, err := ListPath(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.True(t, strings.HasPrefix(rows[0], ErrorMarker+" broken,ICE4,1,"), rows[0])
	require.Equal(t, "broken,ICE4,2,data/model.aqp", rows[1])
}

func TestListPathHeaderError(t *testing.T) {
	t.Parallel()

	data, err := Pack(sampleFiles(), sampleAllow, PackOptions{})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "short")
	require.NoError(t, os.WriteFile(path, data[:len(data)-1], 0o644))

	rows, err := ListPath(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, strings.HasPrefix(rows[0], ErrorMarker+" short,,,"), rows[0])
}

// TestListPathDirectory tests recursive listing with non-archives mixed in
func TestListPathDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeArchive(t, filepath.Join(dir, "win32", "0a1b2c"),
		[]File{{Path: "pl_body.aqp", Data: []byte("body")}, {Path: "pl_body.aqn", Data: []byte("bones")}},
		NewAllowList("pl_body.aqn"), PackOptions{Compress: true, Encrypt: true})
	writeArchive(t, filepath.Join(dir, "win32reboot", "ff", "00eeff"),
		[]File{{Path: "ui/icon.dds", Data: []byte("icon")}},
		AllowList{}, PackOptions{Compress: true, Codec: CodecZstd})
	writeArchive(t, filepath.Join(dir, "win32reboot", "ff", "empty"),
		nil, AllowList{}, PackOptions{})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not an archive"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "win32", "padding"), make([]byte, 4096), 0o644))

	rows, err := ListPath(context.Background(), dir)
	require.NoError(t, err)
	golden.RequireEqual(t, []byte(strings.Join(rows, "\n")+"\n"))
}
