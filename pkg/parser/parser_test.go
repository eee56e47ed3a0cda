package parser

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

const tsxComponent = `import React from "react";

interface Props { name: string }

export class Greeting extends React.Component<Props> {
  render() {
    return <div>Hello {this.props.name}</div>;
  }
}
`

func TestParseTSX(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.Parse([]byte(tsxComponent), DialectTSX)
	require.NoError(t, err)
	require.NotNil(t, tree)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "program", root.Kind())
	assert.False(t, root.HasError())
	assert.Contains(t, root.ToSexp(), "jsx_element")
	assert.Contains(t, root.ToSexp(), "class_declaration")
}

func TestParseJavaScriptWithJSX(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	source := []byte("class A extends React.Component { render() { return <b/>; } }")
	tree, err := manager.Parse(source, DialectJavaScript)
	require.NoError(t, err)
	defer tree.Close()

	assert.False(t, tree.RootNode().HasError())
	assert.Contains(t, tree.RootNode().ToSexp(), "jsx_self_closing_element")
}

func TestParseFileDetectsDialect(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	testCases := []struct {
		fileName string
		source   string
		expected Dialect
	}{
		{"a.ts", "const x: number = 1;", DialectTypeScript},
		{"a.tsx", "const x = <div />;", DialectTSX},
		{"a.jsx", "const x = <div />;", DialectJavaScript},
	}

	for _, tc := range testCases {
		t.Run(tc.fileName, func(t *testing.T) {
			tree, dialect, err := manager.ParseFile([]byte(tc.source), tc.fileName)
			require.NoError(t, err)
			defer tree.Close()
			assert.Equal(t, tc.expected, dialect)
			assert.False(t, tree.RootNode().HasError())
		})
	}

	_, _, err := manager.ParseFile([]byte("x"), "notes.md")
	assert.Error(t, err)
}

func TestDetectDialect(t *testing.T) {
	testCases := []struct {
		filePath string
		expected Dialect
		typed    bool
	}{
		{"file.ts", DialectTypeScript, true},
		{"file.mts", DialectTypeScript, true},
		{"file.TSX", DialectTSX, true},
		{"file.js", DialectJavaScript, false},
		{"file.jsx", DialectJavaScript, false},
		{"file.cjs", DialectJavaScript, false},
		{"file.md", DialectUnknown, false},
	}

	for _, tc := range testCases {
		t.Run(tc.filePath, func(t *testing.T) {
			d := DetectDialect(tc.filePath)
			assert.Equal(t, tc.expected, d)
			assert.Equal(t, tc.typed, d.Typed())
		})
	}
}

func TestParseDialectString(t *testing.T) {
	assert.Equal(t, DialectTSX, ParseDialectString("TSX"))
	assert.Equal(t, DialectTypeScript, ParseDialectString("ts"))
	assert.Equal(t, DialectJavaScript, ParseDialectString("jsx"))
	assert.Equal(t, DialectUnknown, ParseDialectString("go"))
}

func TestParseUnknownDialect(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.Parse([]byte("x"), DialectUnknown)
	assert.Error(t, err)
	assert.Nil(t, tree)
}

func TestParseInvalidSyntaxCountsErrors(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.Parse([]byte("class { render( }"), DialectTSX)
	require.NoError(t, err, "invalid syntax still yields a tree")
	defer tree.Close()

	assert.True(t, tree.RootNode().HasError())
	assert.Equal(t, 1, manager.GetStats().ParseErrors)
}

func TestPoolsAreCreatedLazilyPerDialect(t *testing.T) {
	manager := NewParserManagerWithPoolSize(testLogger(), 2)
	defer manager.Close()

	assert.Equal(t, 0, manager.GetStats().ParsersCreated)

	for i := 0; i < 3; i++ {
		tree, err := manager.Parse([]byte("const a = 1;"), DialectTypeScript)
		require.NoError(t, err)
		tree.Close()
	}
	assert.Equal(t, 1, manager.GetStats().ParsersCreated, "sequential parses reuse one parser")

	tree, err := manager.Parse([]byte("const a = 1;"), DialectJavaScript)
	require.NoError(t, err)
	tree.Close()

	stats := manager.GetStats()
	assert.Equal(t, 2, stats.ParsersCreated)
	assert.Equal(t, 4, stats.ParsesCalled)
}

func TestConcurrentParsingAcrossDialects(t *testing.T) {
	manager := NewParserManagerWithPoolSize(testLogger(), 4)
	defer manager.Close()

	sources := map[Dialect][]byte{
		DialectTypeScript: []byte("let x: string = 'a';"),
		DialectTSX:        []byte("const el = <span>{x}</span>;"),
		DialectJavaScript: []byte("function f() { return 1; }"),
	}

	const perDialect = 25
	var wg sync.WaitGroup
	errs := make(chan error, perDialect*len(sources))

	for dialect, source := range sources {
		for i := 0; i < perDialect; i++ {
			wg.Add(1)
			go func(d Dialect, src []byte) {
				defer wg.Done()
				tree, err := manager.Parse(src, d)
				if err != nil {
					errs <- err
					return
				}
				tree.Close()
			}(dialect, source)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected parse error: %v", err)
	}

	stats := manager.GetStats()
	assert.Equal(t, perDialect*len(sources), stats.ParsesCalled)
	assert.LessOrEqual(t, stats.ParsersCreated, 4*len(sources))
}

func TestPoolSizeBoundsParsers(t *testing.T) {
	manager := NewParserManagerWithPoolSize(testLogger(), 1)
	defer manager.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := manager.Parse([]byte("const a = <b />;"), DialectTSX)
			if assert.NoError(t, err) {
				tree.Close()
			}
		}()
	}
	wg.Wait()

	stats := manager.GetStats()
	assert.Equal(t, 1, stats.ParsersCreated)
	assert.Equal(t, 8, stats.ParsesCalled)
}
