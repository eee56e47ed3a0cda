package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/declassify/pkg/declassify"
	"github.com/gnana997/declassify/pkg/mcplog"
	"github.com/gnana997/declassify/pkg/parser"
	"github.com/gnana997/declassify/pkg/parser/queries"
	"github.com/gnana997/declassify/pkg/runner"
)

const (
	classSource = "class C extends React.Component { render() { return <div>Hi</div>; } }"
	classOutput = "const C = () => { return <div>Hi</div>; };"
)

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testServer(t *testing.T, calls *mcplog.Logger) *Server {
	t.Helper()
	pm := parser.NewParserManager(testLogger())
	qm := queries.NewQueryManager(testLogger())
	t.Cleanup(func() {
		qm.Close()
		pm.Close()
	})
	r := runner.New(declassify.New(pm, qm, testLogger()), runner.Options{}, testLogger())
	return NewServer(r, "test", calls, testLogger())
}

func makeRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	var arguments any
	if args != nil {
		arguments = args
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: arguments,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return textContent.Text
}

func decode(t *testing.T, result *mcp.CallToolResult) conversion {
	t.Helper()
	require.False(t, result.IsError, resultText(t, result))
	var c conversion
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &c))
	return c
}

// --- declassify_source ---

func TestHandleDeclassifySource(t *testing.T) {
	s := testServer(t, nil)
	result, err := s.handleDeclassifySource(context.Background(), makeRequest("declassify_source", map[string]any{
		"source":   classSource,
		"filename": "C.jsx",
	}))
	require.NoError(t, err)

	c := decode(t, result)
	assert.Equal(t, "C.jsx", c.Filename)
	assert.True(t, c.Changed)
	assert.Equal(t, classOutput, c.Output)
	assert.Equal(t, 1, c.Transformed)
	require.Len(t, c.Classes, 1)
	assert.Equal(t, "C", c.Classes[0].Name)
	assert.Equal(t, declassify.OutcomeTransformed, c.Classes[0].Outcome)
}

func TestHandleDeclassifySourceReportsOutcomesByName(t *testing.T) {
	s := testServer(t, nil)
	result, err := s.handleDeclassifySource(context.Background(), makeRequest("declassify_source", map[string]any{
		"source": "class C extends React.Component {\n  foo() {}\n}\n",
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, `"outcome":"disabled"`)
	assert.Contains(t, text, `"message":"Missing render method"`)
	assert.Contains(t, text, `"filename":"component.tsx"`)

	c := decode(t, result)
	assert.Equal(t, 1, c.Disabled)
}

func TestHandleDeclassifySourceErrors(t *testing.T) {
	s := testServer(t, nil)

	result, err := s.handleDeclassifySource(context.Background(), makeRequest("declassify_source", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleDeclassifySource(context.Background(), makeRequest("declassify_source", map[string]any{
		"source":   classSource,
		"filename": "style.css",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unsupported file type")
}

func TestHandleDeclassifySourceWithoutClasses(t *testing.T) {
	s := testServer(t, nil)
	result, err := s.handleDeclassifySource(context.Background(), makeRequest("declassify_source", map[string]any{
		"source":   "export const x = 1;\n",
		"filename": "x.ts",
	}))
	require.NoError(t, err)

	c := decode(t, result)
	assert.False(t, c.Changed)
	assert.NotNil(t, c.Classes)
	assert.Empty(t, c.Classes)
	assert.Equal(t, "export const x = 1;\n", c.Output)
}

// --- declassify_file ---

func TestHandleDeclassifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "C.jsx")
	require.NoError(t, os.WriteFile(path, []byte(classSource), 0o644))

	s := testServer(t, nil)
	result, err := s.handleDeclassifyFile(context.Background(), makeRequest("declassify_file", map[string]any{"path": path}))
	require.NoError(t, err)

	c := decode(t, result)
	assert.Equal(t, classOutput, c.Output)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, classSource, string(onDisk))

	result, err = s.handleDeclassifyFile(context.Background(), makeRequest("declassify_file", map[string]any{
		"path": filepath.Join(t.TempDir(), "missing.jsx"),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- middleware ---

func TestLoggingMiddlewareRecordsCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	calls, err := mcplog.NewLogger(path)
	require.NoError(t, err)

	s := testServer(t, calls)
	handler := s.loggingMiddleware()(s.handleDeclassifySource)
	_, err = handler(context.Background(), makeRequest("declassify_source", map[string]any{
		"source":   classSource,
		"filename": "C.jsx",
	}))
	require.NoError(t, err)
	require.NoError(t, calls.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry mcplog.LogEntry
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "declassify_source", entry.Tool)
	assert.Equal(t, "C.jsx", entry.Params["filename"])
	assert.Contains(t, entry.Params, "source_len")
	assert.NotContains(t, entry.Params, "source")
	assert.False(t, entry.IsError)
	assert.Positive(t, entry.ResponseBytes)
}

// --- in-process client ---

func TestInProcessClientListsAndCallsTools(t *testing.T) {
	s := testServer(t, nil)
	c, err := client.NewInProcessClient(s.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "declassify-test", Version: "1.0.0"}
	info, err := c.Initialize(ctx, initReq)
	require.NoError(t, err)
	assert.Equal(t, serverName, info.ServerInfo.Name)

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"declassify_source", "declassify_file"}, names)

	req := mcp.CallToolRequest{}
	req.Params.Name = "declassify_source"
	req.Params.Arguments = map[string]any{"source": classSource, "filename": "C.jsx"}
	result, err := c.CallTool(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, classOutput, decode(t, result).Output)
}
