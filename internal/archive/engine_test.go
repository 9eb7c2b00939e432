package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/raoulx24/log-archiver/internal/compress"
	"github.com/raoulx24/log-archiver/internal/fs"
	"github.com/raoulx24/log-archiver/internal/logging"
	"github.com/raoulx24/log-archiver/internal/metrics"
	"github.com/raoulx24/log-archiver/internal/naming"
)

// copyCompressor stores the source verbatim. It stands in for writers Go
// does not have, such as 7z.
type copyCompressor struct {
	mu      sync.Mutex
	fail    map[string]error
	panicOn string
	calls   []string
}

func (c *copyCompressor) Available() bool { return true }
func (c *copyCompressor) Reason() string  { return "" }

func (c *copyCompressor) Compress(_ context.Context, src, dst string) error {
	name := filepath.Base(src)
	c.mu.Lock()
	c.calls = append(c.calls, name)
	failErr := c.fail[name]
	c.mu.Unlock()

	if name == c.panicOn {
		panic("archiver exploded")
	}
	if failErr != nil {
		return failErr
	}

	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return compress.ErrExists
	}
	if err != nil {
		return err
	}
	if _, err := out.Write(b); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func seed(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("content of "+n), 0o644))
	}
}

func listing(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func observed() (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.FromZap(zap.New(core)), logs
}

func newEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

func TestScanSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "app_240103.log", "app.log", "app_240101_120000.log", "app_240101.log", "other_240101.log", "app_240101.zip")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "app_240102.log"), 0o755))

	e := newEngine(t, Config{Directory: dir, BaseName: "app", CompressionSuffix: ".zip"})

	raw, err := Scan(fs.New(), dir, e.Scheme().Pattern(naming.Raw))
	require.NoError(t, err)
	require.Equal(t, []string{"app_240101.log", "app_240101_120000.log", "app_240103.log"}, raw)
}

func TestScanMissingDirectory(t *testing.T) {
	e := newEngine(t, Config{Directory: "x", BaseName: "app", CompressionSuffix: ".zip"})

	names, err := Scan(fs.New(), filepath.Join(t.TempDir(), "missing"), e.Scheme().Pattern(naming.Raw))
	require.ErrorIs(t, err, fs.ErrDirUnavailable)
	require.NotNil(t, names)
	require.Empty(t, names)
}

func TestSweepCompressesBeforePruning(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "app.log", "app_240101.log", "app_240102.log", "app_240103.log")
	comp := &copyCompressor{}

	e := newEngine(t, Config{
		Directory:         dir,
		BaseName:          "app",
		CompressionSuffix: ".7z",
		CompressionLevel:  9,
		RawRetention:      2,
		ArchiveRetention:  2,
	}, WithCompressor(comp))

	res, err := e.Sweep(context.Background(), "test")
	require.NoError(t, err)

	// app_240101.log was archived before it was pruned
	require.Equal(t, []string{"app_240101.log", "app_240102.log", "app_240103.log"}, comp.calls)
	require.Equal(t, []string{"app_240101.7z", "app_240102.7z", "app_240103.7z"}, res.Compressed)
	require.Equal(t, []string{"app_240101.log"}, res.DeletedRaw)
	require.Equal(t, []string{"app_240101.7z"}, res.DeletedArchives)
	require.Equal(t, 3, res.Raw)
	require.NotEmpty(t, res.ID)

	require.Equal(t, []string{
		"app.log",
		"app_240102.7z", "app_240102.log",
		"app_240103.7z", "app_240103.log",
	}, listing(t, dir))
}

func TestSweepWithZip(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "app_240101.log", "app_240101_060000.log")

	e := newEngine(t, Config{Directory: dir, BaseName: "app", CompressionSuffix: ".zip", CompressionLevel: 6})

	res, err := e.Sweep(context.Background(), "test")
	require.NoError(t, err)
	require.Len(t, res.Compressed, 2)
	require.Empty(t, res.DeletedRaw)
	require.Equal(t, []string{
		"app_240101.log", "app_240101.zip",
		"app_240101_060000.log", "app_240101_060000.zip",
	}, listing(t, dir))
}

func TestSweepIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "app_240101.log", "app_240102.log", "app_240103.log", "app_240104.log")
	comp := &copyCompressor{}
	e := newEngine(t, Config{
		Directory:         dir,
		BaseName:          "app",
		CompressionSuffix: ".7z",
		RawRetention:      2,
		ArchiveRetention:  3,
	}, WithCompressor(comp))

	first, err := e.Sweep(context.Background(), "first")
	require.NoError(t, err)
	require.Len(t, first.Compressed, 4)
	require.Len(t, first.DeletedRaw, 2)
	require.Equal(t, []string{"app_240101.7z"}, first.DeletedArchives)
	after := listing(t, dir)

	res, err := e.Sweep(context.Background(), "second")
	require.NoError(t, err)
	require.Empty(t, res.Compressed)
	require.Empty(t, res.DeletedRaw)
	require.Empty(t, res.DeletedArchives)
	require.Equal(t, 2, res.Skipped)
	require.Equal(t, after, listing(t, dir))
}

func TestUnavailableCompressionDegradesOnce(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir,
		"app_240101.log", "app_240102.log", "app_240103.log",
		"app_231201.7z", "app_231202.7z", "app_231203.7z",
	)
	log, logs := observed()

	e := newEngine(t, Config{
		Directory:         dir,
		BaseName:          "app",
		CompressionSuffix: ".7z",
		RawRetention:      2,
		ArchiveRetention:  2,
	}, WithLogger(log))

	res, err := e.Sweep(context.Background(), "test")
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Empty(t, res.Compressed)
	require.Equal(t, []string{"app_240101.log"}, res.DeletedRaw)
	require.Equal(t, []string{"app_231201.7z"}, res.DeletedArchives)

	require.Equal(t, 1, logs.FilterMessage("compression unavailable, rotated logs are kept uncompressed").Len())
	require.Equal(t, []string{
		"app_231202.7z", "app_231203.7z",
		"app_240102.log", "app_240103.log",
	}, listing(t, dir))
}

func TestSweepContinuesPastCompressionFailure(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "app_240101.log", "app_240102.log", "app_240103.log")
	boom := errors.New("disk full")
	comp := &copyCompressor{fail: map[string]error{"app_240102.log": boom}}

	e := newEngine(t, Config{Directory: dir, BaseName: "app", CompressionSuffix: ".7z", RawRetention: 2},
		WithCompressor(comp))

	res, err := e.Sweep(context.Background(), "test")
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"app_240101.7z", "app_240103.7z"}, res.Compressed)
	require.Equal(t, []string{"app_240101.log"}, res.DeletedRaw)
}

func TestSweepRecoversPanic(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "app_240101.log")
	log, logs := observed()

	e := newEngine(t, Config{Directory: dir, BaseName: "app", CompressionSuffix: ".7z"},
		WithCompressor(&copyCompressor{panicOn: "app_240101.log"}), WithLogger(log))

	var err error
	require.NotPanics(t, func() {
		_, err = e.Sweep(context.Background(), "test")
	})
	require.ErrorIs(t, err, ErrPanic)
	require.Equal(t, 1, logs.FilterMessage("sweep panic").Len())
}

func TestSweepMissingDirectory(t *testing.T) {
	e := newEngine(t, Config{Directory: filepath.Join(t.TempDir(), "nope"), BaseName: "app", CompressionSuffix: ".zip"})

	res, err := e.Sweep(context.Background(), "test")
	require.ErrorIs(t, err, fs.ErrDirUnavailable)
	require.Zero(t, res.Raw)
}

func TestSweepWithoutRawFilesIsNoop(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "app.log", "app_240101.zip", "app_240102.zip", "app_240103.zip")
	log, logs := observed()

	e := newEngine(t, Config{Directory: dir, BaseName: "app", CompressionSuffix: ".zip", ArchiveRetention: 1},
		WithLogger(log))

	res, err := e.Sweep(context.Background(), "test")
	require.NoError(t, err)
	require.Empty(t, res.DeletedArchives)
	require.Equal(t, 1, logs.FilterMessage("no matching log files").Len())
	require.Len(t, listing(t, dir), 4)
}

func TestSweepHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "app_240101.log", "app_240102.log")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEngine(t, Config{Directory: dir, BaseName: "app", CompressionSuffix: ".7z", RawRetention: 1},
		WithCompressor(&copyCompressor{}))

	_, err := e.Sweep(ctx, "test")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"app_240101.log", "app_240102.log"}, listing(t, dir))
}

func TestConcurrentSweepsMatchSequential(t *testing.T) {
	names := []string{
		"app_240101.log", "app_240102.log", "app_240103.log", "app_240104.log",
		"app_240105.log", "app_240106.log", "app_231230.zip", "app_231231.zip",
	}
	cfg := Config{BaseName: "app", CompressionSuffix: ".zip", CompressionLevel: 1, RawRetention: 3, ArchiveRetention: 4}

	seqDir := t.TempDir()
	seed(t, seqDir, names...)
	cfg.Directory = seqDir
	seq := newEngine(t, cfg)
	for range 2 {
		_, err := seq.Sweep(context.Background(), "sequential")
		require.NoError(t, err)
	}

	for _, serialize := range []bool{false, true} {
		dir := t.TempDir()
		seed(t, dir, names...)
		cfg.Directory = dir
		var opts []Option
		if serialize {
			opts = append(opts, WithSerializedSweeps())
		}
		e := newEngine(t, cfg, opts...)

		var wg sync.WaitGroup
		for _, reason := range []string{"schedule", "rotation"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				// per-file races are logged, never fatal
				_, _ = e.Sweep(context.Background(), reason)
			}()
		}
		wg.Wait()

		require.Equal(t, listing(t, seqDir), listing(t, dir), "serialize=%v", serialize)
	}
}

func TestSweepRecordsMetrics(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, "app_240101.log", "app_240102.log")
	m := metrics.NewRegistry(filepath.Join(dir, "metrics", "archiver.prom"))

	e := newEngine(t, Config{Directory: dir, BaseName: "app", CompressionSuffix: ".7z", RawRetention: 1},
		WithCompressor(&copyCompressor{}), WithMetrics(m))

	_, err := e.Sweep(context.Background(), "schedule")
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.SweepsTotal.WithLabelValues("schedule")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.FilesCompressedTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FilesDeletedTotal.WithLabelValues("raw")))
	_, err = os.Stat(filepath.Join(dir, "metrics", "archiver.prom"))
	require.NoError(t, err)
}

func TestNewRejectsBadConfig(t *testing.T) {
	for _, cfg := range []Config{
		{BaseName: "app", CompressionSuffix: ".zip"},
		{Directory: "d", CompressionSuffix: ".zip"},
		{Directory: "d", BaseName: "app", CompressionSuffix: "zip"},
		{Directory: "d", BaseName: "app", CompressionSuffix: ".zip", CompressionLevel: 10},
	} {
		_, err := New(cfg)
		require.Error(t, err, "%+v", cfg)
	}
}
