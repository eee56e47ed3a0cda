package runner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/declassify/pkg/declassify"
	"github.com/gnana997/declassify/pkg/parser"
	"github.com/gnana997/declassify/pkg/parser/queries"
)

const (
	classSource = "class C extends React.Component { render() { return <div>Hi</div>; } }"
	classOutput = "const C = () => { return <div>Hi</div>; };"
	plainSource = "export const x = 1;\n"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRunner(t *testing.T, options Options) *Runner {
	t.Helper()
	pm := parser.NewParserManager(testLogger())
	qm := queries.NewQueryManager(testLogger())
	t.Cleanup(func() {
		qm.Close()
		pm.Close()
	})
	return New(declassify.New(pm, qm, testLogger()), options, testLogger())
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func baseNames(root string, files []string) []string {
	var out []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestDiscoverFiles(t *testing.T) {
	tmp := t.TempDir()
	writeTestFile(t, tmp, "a.jsx", classSource)
	writeTestFile(t, tmp, "b.tsx", classSource)
	writeTestFile(t, tmp, "style.css", "a {}")
	writeTestFile(t, tmp, "types.d.ts", "declare const x: number;")
	writeTestFile(t, tmp, "node_modules/lib/index.js", plainSource)
	writeTestFile(t, tmp, "dist/out.js", plainSource)
	writeTestFile(t, tmp, "src/c.ts", plainSource)

	files, err := DiscoverFiles(tmp, nil, DefaultExclude)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jsx", "b.tsx", "src/c.ts"}, baseNames(tmp, files))
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f), "expected absolute path, got %s", f)
	}

	files, err = DiscoverFiles(tmp, []string{"src/**"}, DefaultExclude)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/c.ts"}, baseNames(tmp, files))

	files, err = DiscoverFiles(tmp, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, baseNames(tmp, files), "dist/out.js")
	assert.NotContains(t, baseNames(tmp, files), "node_modules/lib/index.js")
}

func TestDiscoverFilesSingleFile(t *testing.T) {
	tmp := t.TempDir()
	path := writeTestFile(t, tmp, "a.jsx", classSource)
	css := writeTestFile(t, tmp, "a.css", "a {}")

	files, err := DiscoverFiles(path, nil, DefaultExclude)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)

	_, err = DiscoverFiles(css, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestDiscoverFilesRejectsInvalidPatterns(t *testing.T) {
	_, err := DiscoverFiles(t.TempDir(), []string{"[abc"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid include pattern")

	_, err = DiscoverFiles(t.TempDir(), nil, []string{"[abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid exclude pattern")
}

func TestDiscoverAllMergesRoots(t *testing.T) {
	tmp := t.TempDir()
	a := writeTestFile(t, tmp, "x/a.js", plainSource)
	writeTestFile(t, tmp, "y/b.js", plainSource)

	files, err := DiscoverAll([]string{tmp, filepath.Join(tmp, "x"), a}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x/a.js", "y/b.js"}, baseNames(tmp, files))
}

func TestRunTransformsFiles(t *testing.T) {
	tmp := t.TempDir()
	component := writeTestFile(t, tmp, "C.jsx", classSource)
	plain := writeTestFile(t, tmp, "plain.js", plainSource)
	missing := filepath.Join(tmp, "missing.js")

	r := newTestRunner(t, Options{Workers: 2})
	reports, err := r.Run(context.Background(), []string{component, plain, missing})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, component, reports[0].Path)
	assert.True(t, reports[0].Changed)
	assert.False(t, reports[0].Written)
	assert.Equal(t, classOutput, string(reports[0].Output))
	assert.Equal(t, classSource, string(reports[0].Original))
	assert.Equal(t, 1, reports[0].Count(declassify.OutcomeTransformed))

	assert.False(t, reports[1].Changed)
	assert.Empty(t, reports[1].Classes)
	assert.Empty(t, reports[1].Error)

	assert.NotEmpty(t, reports[2].Error)

	onDisk, err := os.ReadFile(component)
	require.NoError(t, err)
	assert.Equal(t, classSource, string(onDisk), "files are left alone without Write")

	s := Summarize(reports)
	assert.Equal(t, Summary{Files: 3, Changed: 1, Errors: 1, Transformed: 1}, s)
	assert.Equal(t, int64(1), r.GetStats().Failures)
}

func TestRunWritesChangedFiles(t *testing.T) {
	tmp := t.TempDir()
	component := writeTestFile(t, tmp, "C.jsx", classSource)

	r := newTestRunner(t, Options{Write: true})
	reports, err := r.Run(context.Background(), []string{component})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Written)

	onDisk, err := os.ReadFile(component)
	require.NoError(t, err)
	assert.Equal(t, classOutput, string(onDisk))

	info, err := os.Stat(component)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	reports, err = r.Run(context.Background(), []string{component})
	require.NoError(t, err)
	assert.False(t, reports[0].Changed, "a converted file converts to itself")
	assert.False(t, reports[0].Written)
}

func TestResultCache(t *testing.T) {
	tmp := t.TempDir()
	a := writeTestFile(t, tmp, "a.jsx", classSource)
	b := writeTestFile(t, tmp, "b.jsx", classSource)
	c := writeTestFile(t, tmp, "c.tsx", classSource)

	r := newTestRunner(t, Options{})
	first := r.RunFile(a)
	second := r.RunFile(b)
	third := r.RunFile(c)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached, "same content and dialect hits the cache")
	assert.False(t, third.Cached, "the dialect is part of the key")
	assert.Equal(t, first.Output, second.Output)

	stats := r.GetStats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(2), stats.Files)
}

func TestResultCacheDisabled(t *testing.T) {
	tmp := t.TempDir()
	a := writeTestFile(t, tmp, "a.jsx", classSource)

	r := newTestRunner(t, Options{CacheSize: -1})
	r.RunFile(a)
	report := r.RunFile(a)
	assert.False(t, report.Cached)
	assert.Equal(t, int64(0), r.GetStats().CacheHits)
}

func TestTransformSource(t *testing.T) {
	r := newTestRunner(t, Options{})
	res, err := r.TransformSource("C.jsx", []byte(classSource))
	require.NoError(t, err)
	assert.Equal(t, classOutput, string(res.Output))

	_, err = r.TransformSource("C.vue", []byte(classSource))
	require.Error(t, err)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	tmp := t.TempDir()
	a := writeTestFile(t, tmp, "a.jsx", classSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner(t, Options{})
	reports, err := r.Run(ctx, []string{a})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].Path, "no file is started after cancellation")
}

func TestWatcherRerunsChangedFiles(t *testing.T) {
	tmp := t.TempDir()
	writeTestFile(t, tmp, "plain.js", plainSource)

	got := make(chan FileReport, 8)
	r := newTestRunner(t, Options{})
	w, err := NewWatcher(r, WatchOptions{
		Exclude:  DefaultExclude,
		Debounce: 20 * time.Millisecond,
		OnReport: func(report FileReport) { got <- report },
	}, testLogger())
	require.NoError(t, err)
	require.NoError(t, w.Start(tmp))
	defer w.Stop()

	writeTestFile(t, tmp, "notes.txt", "ignored")
	path := writeTestFile(t, tmp, "C.jsx", classSource)

	select {
	case report := <-got:
		assert.Equal(t, path, report.Path)
		assert.Equal(t, classOutput, string(report.Output))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the watcher")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	r := newTestRunner(t, Options{})
	w, err := NewWatcher(r, WatchOptions{}, testLogger())
	require.NoError(t, err)
	require.NoError(t, w.Start(t.TempDir()))

	require.Error(t, w.Start(t.TempDir()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Equal(t, 0, w.Pending())
	require.Error(t, w.Start(t.TempDir()))
}
