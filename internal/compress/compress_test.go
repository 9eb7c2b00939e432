package compress

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestZipHoldsOneEntryNamedBySource(t *testing.T) {
	for _, level := range []int{0, 5, 9} {
		dir := t.TempDir()
		src := writeLog(t, dir, "app_240101.log", strings.Repeat("line\n", 1000))
		dst := filepath.Join(dir, "app_240101.zip")

		c := New(".zip", level, nil)
		require.True(t, c.Available())
		require.NoError(t, c.Compress(context.Background(), src, dst))

		zr, err := zip.OpenReader(dst)
		require.NoError(t, err)
		require.Len(t, zr.File, 1)
		require.Equal(t, "app_240101.log", zr.File[0].Name)

		rc, err := zr.File[0].Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		require.NoError(t, zr.Close())
		require.Equal(t, strings.Repeat("line\n", 1000), string(b))

		// the raw file is left in place
		_, err = os.Stat(src)
		require.NoError(t, err)
	}
}

func TestTarGz(t *testing.T) {
	dir := t.TempDir()
	src := writeLog(t, dir, "app_240101_120000.log", "hello\n")
	dst := filepath.Join(dir, "app_240101_120000.tar.gz")

	require.NoError(t, New(".tar.gz", 9, nil).Compress(context.Background(), src, dst))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	hdr, err := tr.Next()
	require.NoError(t, err)
	require.Equal(t, "app_240101_120000.log", hdr.Name)
	b, err := io.ReadAll(tr)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(b))

	_, err = tr.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestOtherSuffixesProduceArchives(t *testing.T) {
	for _, suffix := range []string{".tar", ".tgz", ".tar.bz2", ".tar.xz", ".tar.zst"} {
		dir := t.TempDir()
		src := writeLog(t, dir, "app_240101.log", "payload\n")
		dst := filepath.Join(dir, "app_240101"+suffix)

		require.NoError(t, New(suffix, 6, nil).Compress(context.Background(), src, dst), suffix)
		st, err := os.Stat(dst)
		require.NoError(t, err, suffix)
		require.Positive(t, st.Size(), suffix)
	}
}

func TestExistingDestinationIsNeverOverwritten(t *testing.T) {
	dir := t.TempDir()
	src := writeLog(t, dir, "app_240101.log", "new content")
	dst := writeLog(t, dir, "app_240101.zip", "existing")

	err := New(".zip", 9, nil).Compress(context.Background(), src, dst)
	require.ErrorIs(t, err, ErrExists)

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "existing", string(b))
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	src := writeLog(t, dir, "app_240101.log", "x")

	require.NoError(t, New(".zip", 9, nil).Compress(context.Background(), src, filepath.Join(dir, "app_240101.zip")))
	err := New(".zip", 9, nil).Compress(context.Background(), filepath.Join(dir, "missing.log"), filepath.Join(dir, "missing.zip"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"app_240101.log", "app_240101.zip"}, names)
}

func TestMissingSourceIsNotExist(t *testing.T) {
	dir := t.TempDir()
	err := New(".zip", 9, nil).Compress(context.Background(), filepath.Join(dir, "gone.log"), filepath.Join(dir, "gone.zip"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnavailableSuffixes(t *testing.T) {
	for _, suffix := range []string{".7z", ".rar", ".foo"} {
		c := New(suffix, 9, nil)
		require.False(t, c.Available(), suffix)
		require.NotEmpty(t, c.Reason(), suffix)
		require.ErrorIs(t, c.Compress(context.Background(), "a", "b"), ErrUnavailable)
	}

	c := New(".zip", 12, nil)
	require.False(t, c.Available())
}

func TestSuffixIsCaseInsensitive(t *testing.T) {
	require.True(t, New(".ZIP", 9, nil).Available())
}
