package lib

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	t.Parallel()

	files := []File{
		{Path: "a.aqn", Data: []byte("bones")},
		{Path: "a.aqp", Data: []byte("model")},
	}
	data, err := Pack(files, NewAllowList("a.aqn"), PackOptions{Compress: true, Encrypt: true})
	require.NoError(t, err)
	require.True(t, IsIceFile(data))

	a, err := Unpack(data)
	require.NoError(t, err)
	require.Len(t, a.Group1, 1)
	require.Equal(t, Group1, a.Group1[0].Group)
	require.Equal(t, "a.aqn", a.Group1[0].Name)
	require.Len(t, a.Group2, 1)
	require.Equal(t, []byte("model"), a.Group2[0].Data)
	require.Equal(t, Hash([]byte("model")), Hash(a.Group2[0].Data))
}

// TestDirectoryRoundTrip tests PackDir, UnpackFile and List together
func TestDirectoryRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.bin"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "low.bin"), []byte("low"), 0o644))

	data, err := PackDir(ctx, src, true, NewAllowList("low.bin"), PackOptions{Compress: true})
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "abc")
	require.NoError(t, os.WriteFile(archive, data, 0o644))

	rows, err := List(ctx, archive)
	require.NoError(t, err)
	require.Equal(t, []string{"abc,ICE4,1,sub/low.bin", "abc,ICE4,2,top.bin"}, rows)

	out := t.TempDir()
	require.NoError(t, UnpackFile(ctx, archive, out, false, false))
	got, err := os.ReadFile(filepath.Join(out, "sub", "low.bin"))
	require.NoError(t, err)
	require.Equal(t, "low", string(got))
}
