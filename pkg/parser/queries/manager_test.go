package queries

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/declassify/pkg/parser"
)

const classSource = `import React, { Component } from "react";
import * as utils from './utils';

class First extends Component {
  render() { return null; }
}

export default class Second extends React.PureComponent {
  render() {
    class Inner {}
    return null;
  }
}
`

func newManagers(t *testing.T) (*parser.ParserManager, *QueryManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	pm := parser.NewParserManager(logger)
	qm := NewQueryManager(logger)
	t.Cleanup(func() {
		qm.Close()
		pm.Close()
	})
	return pm, qm
}

func TestQueryCompilation(t *testing.T) {
	_, qm := newManagers(t)

	for _, dialect := range parser.SupportedDialects() {
		for _, qtype := range []QueryType{QueryTypeClasses, QueryTypeImports} {
			query, err := qm.GetQuery(dialect, qtype)
			require.NoError(t, err, "%s/%s should compile", dialect, qtype)
			assert.NotNil(t, query)
		}
	}
}

func TestClassCapturesInDocumentOrder(t *testing.T) {
	pm, qm := newManagers(t)

	for _, dialect := range parser.SupportedDialects() {
		t.Run(dialect.String(), func(t *testing.T) {
			src := []byte(classSource)
			tree, err := pm.Parse(src, dialect)
			require.NoError(t, err)
			defer tree.Close()

			nodes, err := qm.CaptureNodes(tree, dialect, QueryTypeClasses, src, "class.declaration")
			require.NoError(t, err)
			require.Len(t, nodes, 3)

			names := make([]string, 0, len(nodes))
			for _, n := range nodes {
				names = append(names, n.ChildByFieldName("name").Utf8Text(src))
			}
			assert.Equal(t, []string{"First", "Second", "Inner"}, names)
		})
	}
}

func TestAnonymousDefaultExportIsCaptured(t *testing.T) {
	pm, qm := newManagers(t)
	src := []byte("export default class extends React.Component {\n  render() { return null; }\n}\n")

	for _, dialect := range parser.SupportedDialects() {
		t.Run(dialect.String(), func(t *testing.T) {
			tree, err := pm.Parse(src, dialect)
			require.NoError(t, err)
			defer tree.Close()

			nodes, err := qm.CaptureNodes(tree, dialect, QueryTypeClasses, src, "class.declaration")
			require.NoError(t, err)
			require.Len(t, nodes, 1)
			assert.Equal(t, "class", nodes[0].Kind())
			assert.Nil(t, nodes[0].ChildByFieldName("name"))
		})
	}
}

func TestImportCaptures(t *testing.T) {
	pm, qm := newManagers(t)

	src := []byte(classSource)
	tree, err := pm.Parse(src, parser.DialectTSX)
	require.NoError(t, err)
	defer tree.Close()

	query, err := qm.GetQuery(parser.DialectTSX, QueryTypeImports)
	require.NoError(t, err)

	matches, err := qm.ExecuteQuery(tree, query, src)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	var sources []string
	for _, m := range matches {
		for _, c := range m.Captures {
			if c.Category == "import" && c.Field == "source" {
				sources = append(sources, c.Text)
			}
		}
	}
	assert.Equal(t, []string{`"react"`, `'./utils'`}, sources)
}

func TestParseCaptureName(t *testing.T) {
	testCases := []struct {
		name     string
		category string
		field    string
	}{
		{"class.declaration", "class", "declaration"},
		{"import.source", "import", "source"},
		{"plain", "plain", ""},
		{"a.b.c", "a", "b.c"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			category, field := parseCaptureName(tc.name)
			assert.Equal(t, tc.category, category)
			assert.Equal(t, tc.field, field)
		})
	}
}

func TestNodeLocationIsOneBased(t *testing.T) {
	pm, qm := newManagers(t)

	src := []byte(classSource)
	tree, err := pm.Parse(src, parser.DialectJavaScript)
	require.NoError(t, err)
	defer tree.Close()

	query, err := qm.GetQuery(parser.DialectJavaScript, QueryTypeClasses)
	require.NoError(t, err)
	matches, err := qm.ExecuteQuery(tree, query, src)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	var first QueryCapture
	for _, c := range matches[0].Captures {
		if c.Name == "class.declaration" {
			first = c
		}
	}
	assert.Equal(t, uint32(4), first.Location.StartLine)
	assert.Equal(t, uint32(1), first.Location.StartColumn)
}

func TestQueryCacheReturnsSameQuery(t *testing.T) {
	_, qm := newManagers(t)

	q1, err := qm.GetQuery(parser.DialectTypeScript, QueryTypeClasses)
	require.NoError(t, err)
	q2, err := qm.GetQuery(parser.DialectTypeScript, QueryTypeClasses)
	require.NoError(t, err)
	assert.Same(t, q1, q2)

	q3, err := qm.GetQuery(parser.DialectTSX, QueryTypeClasses)
	require.NoError(t, err)
	assert.NotSame(t, q1, q3, "each dialect compiles against its own grammar")
}

func TestConcurrentGetQuery(t *testing.T) {
	_, qm := newManagers(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dialect := parser.SupportedDialects()[i%3]
			_, err := qm.GetQuery(dialect, QueryTypeImports)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestExecuteQueryRejectsNilInputs(t *testing.T) {
	pm, qm := newManagers(t)

	query, err := qm.GetQuery(parser.DialectJavaScript, QueryTypeClasses)
	require.NoError(t, err)
	_, err = qm.ExecuteQuery(nil, query, nil)
	assert.Error(t, err)

	tree, err := pm.Parse([]byte("1"), parser.DialectJavaScript)
	require.NoError(t, err)
	defer tree.Close()
	_, err = qm.ExecuteQuery(tree, nil, nil)
	assert.Error(t, err)
}

func TestGetQueryErrors(t *testing.T) {
	_, qm := newManagers(t)

	_, err := qm.GetQuery(parser.DialectUnknown, QueryTypeClasses)
	assert.Error(t, err)

	_, err = qm.GetQuery(parser.DialectTSX, QueryType(99))
	assert.Error(t, err)
}
