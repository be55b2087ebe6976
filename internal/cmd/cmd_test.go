package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"icepak/pkg/core"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// resetFlags puts every flag back to its default between runs.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}

// run executes the root command with args and returns what it printed to
// stdout. Commands share global state, so tests here do not run in
// parallel.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func testConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := "cache_path: " + filepath.Join(dir, "cache", "cache.db") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// TestPackListUnpack tests the CLI round trip
func TestPackListUnpack(t *testing.T) {
	dir := t.TempDir()
	conf := testConfig(t, dir)

	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string]string{
		"body.aqn":     "bones",
		"body.aqp":     "model",
		"tex/body.dds": "texture",
	})
	allow := filepath.Join(dir, "group1.txt")
	require.NoError(t, os.WriteFile(allow, []byte("body.aqn\n"), 0o644))

	archive := filepath.Join(dir, "out", "0a1b2c")
	_, err := run(t, "pack", src, "--config", conf, "--progress=false",
		"-o", archive, "-r", "--compress", "--encrypt", "--codec", "zstd", "--allow-list", allow)
	require.NoError(t, err)

	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	h, err := core.ReadHeader(data)
	require.NoError(t, err)
	require.True(t, h.Compressed())
	require.True(t, h.Encrypted())
	require.Equal(t, core.CodecZstd, h.Codec)

	out, err := run(t, "list", archive, "--config", conf, "--progress=false")
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"0a1b2c,ICE4,1,body.aqn",
		"0a1b2c,ICE4,2,body.aqp",
		"0a1b2c,ICE4,2,tex/body.dds",
	}, "\n")+"\n", out)

	dest := filepath.Join(dir, "dest")
	_, err = run(t, "unpack", archive, "--config", conf, "--progress=false",
		"-o", dest, "--subdir=true", "--separate=true")
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dest, "0a1b2c", "group2", "tex", "body.dds"))
	require.NoError(t, err)
	require.Equal(t, "texture", string(got))
	got, err = os.ReadFile(filepath.Join(dest, "0a1b2c", "group1", "body.aqn"))
	require.NoError(t, err)
	require.Equal(t, "bones", string(got))
}

func TestPackRequireEntries(t *testing.T) {
	dir := t.TempDir()
	conf := testConfig(t, dir)
	src := filepath.Join(dir, "empty")
	require.NoError(t, os.MkdirAll(src, 0o755))

	_, err := run(t, "pack", src, "--config", conf, "--progress=false",
		"-o", filepath.Join(dir, "e.ice"), "--require-entries=true")
	require.ErrorIs(t, err, core.ErrEmptyInput)

	_, err = run(t, "pack", src, "--config", conf, "--progress=false",
		"-o", filepath.Join(dir, "e.ice"), "--require-entries=false")
	require.NoError(t, err)

	// an archive without entries extracts nothing and is not an error
	_, err = run(t, "unpack", filepath.Join(dir, "e.ice"), "--config", conf, "--progress=false",
		"-o", filepath.Join(dir, "dest"), "--subdir=false", "--separate=false")
	require.NoError(t, err)
}

func TestHashCommand(t *testing.T) {
	dir := t.TempDir()
	conf := testConfig(t, dir)
	p := filepath.Join(dir, "abc")
	require.NoError(t, os.WriteFile(p, []byte("abc"), 0o644))

	out, err := run(t, "hash", p, "--config", conf)
	require.NoError(t, err)
	require.Equal(t, "BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD  "+p+"\n", out)

	_, err = run(t, "hash", filepath.Join(dir, "missing"), "--config", conf)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	conf := testConfig(t, dir)
	data := filepath.Join(dir, "data")
	writeTree(t, data, map[string]string{
		"win32/0011aa":          "pso file",
		"win32reboot/00/22bbcc": "ngs file",
		"win32/notes.txt":       "ignored",
	})

	out, err := run(t, "scan", "--config", conf, "--progress=false", "--root", data, "--scope", "pso", "--force=false")
	require.NoError(t, err)
	require.Equal(t, "scanned 1, updated 1, skipped 0, archives 0, failed 0\n", out)

	out, err = run(t, "scan", "--config", conf, "--progress=false", "--root", data, "--scope", "all", "--force=false")
	require.NoError(t, err)
	require.Equal(t, "scanned 2, updated 1, skipped 1, archives 0, failed 0\n", out)

	_, err = run(t, "scan", "--config", conf, "--progress=false", "--root", data, "--scope", "everything")
	require.ErrorContains(t, err, "unknown scope")
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("codec: brotli\n"), 0o644))

	_, err := run(t, "hash", path, "--config", path)
	require.ErrorContains(t, err, "unknown codec")
}

func TestDetermineOutputPath(t *testing.T) {
	t.Chdir(t.TempDir())

	require.Equal(t, "mydir.ice", determineOutputPath(filepath.Join("some", "mydir")+string(filepath.Separator)))
	require.NoError(t, os.WriteFile("mydir.ice", nil, 0o644))
	require.Equal(t, "output.ice", determineOutputPath("mydir"))
}
