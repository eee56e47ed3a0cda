package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAgents replaces PATH lookups and directory probes for one test.
func stubAgents(t *testing.T, binaries []string, dirs []string) {
	t.Helper()
	origLook, origStat, origRun := lookPath, statPath, runCLI
	t.Cleanup(func() {
		lookPath, statPath, runCLI = origLook, origStat, origRun
	})

	lookPath = func(name string) (string, error) {
		for _, b := range binaries {
			if b == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	statPath = func(name string) (os.FileInfo, error) {
		for _, d := range dirs {
			if d == name {
				return os.Stat(".")
			}
		}
		return nil, os.ErrNotExist
	}
}

// --- JSON merge ---

func TestMergeServerEntry_EmptyFile(t *testing.T) {
	out, err := mergeServerEntry(nil, "mcpServers", nil)
	require.NoError(t, err)
	require.NotNil(t, out)

	var config map[string]any
	require.NoError(t, json.Unmarshal(out, &config))
	servers := config["mcpServers"].(map[string]any)
	entry := servers["declassify"].(map[string]any)
	assert.Equal(t, "declassify", entry["command"])
	assert.Equal(t, []any{"serve"}, entry["args"])
	assert.True(t, bytes.HasSuffix(out, []byte("}\n")))
}

func TestMergeServerEntry_KeepsOtherServers(t *testing.T) {
	existing := []byte(`{"mcpServers": {"other": {"command": "other"}}, "theme": "dark"}`)
	out, err := mergeServerEntry(existing, "mcpServers", nil)
	require.NoError(t, err)

	var config map[string]any
	require.NoError(t, json.Unmarshal(out, &config))
	servers := config["mcpServers"].(map[string]any)
	assert.Contains(t, servers, "other")
	assert.Contains(t, servers, "declassify")
	assert.Equal(t, "dark", config["theme"])
}

func TestMergeServerEntry_AlreadyConfigured(t *testing.T) {
	existing := []byte(`{"mcpServers": {"declassify": {"command": "declassify"}}}`)
	out, err := mergeServerEntry(existing, "mcpServers", nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestMergeServerEntry_ExtraFields(t *testing.T) {
	out, err := mergeServerEntry(nil, "servers", map[string]string{"type": "stdio"})
	require.NoError(t, err)

	var config map[string]any
	require.NoError(t, json.Unmarshal(out, &config))
	entry := config["servers"].(map[string]any)["declassify"].(map[string]any)
	assert.Equal(t, "stdio", entry["type"])
}

func TestMergeServerEntry_InvalidJSON(t *testing.T) {
	_, err := mergeServerEntry([]byte("{not json"), "mcpServers", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

// --- prompts ---

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"\n", true},
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"nope\n", false},
		{"", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		in := bufio.NewScanner(strings.NewReader(tt.input))
		assert.Equal(t, tt.want, confirm(in, &out, "Continue?"), "input %q", tt.input)
		assert.Contains(t, out.String(), "Continue? [Y/n]")
	}
}

// --- detection ---

func TestDetectAgents_CLIOnPath(t *testing.T) {
	t.Chdir(t.TempDir())
	stubAgents(t, []string{"codex"}, nil)

	found := detectAgents()
	require.Len(t, found, 1)
	assert.Equal(t, "codex", found[0].id)
	assert.False(t, found[0].configured)
}

func TestDetectAgents_NoneDetected(t *testing.T) {
	stubAgents(t, nil, nil)
	assert.Empty(t, detectAgents())
}

func TestDetectAgents_FileAgentAlreadyConfigured(t *testing.T) {
	t.Chdir(t.TempDir())
	stubAgents(t, nil, []string{".cursor"})
	require.NoError(t, os.MkdirAll(".cursor", 0755))
	require.NoError(t, os.WriteFile(filepath.Join(".cursor", "mcp.json"),
		[]byte(`{"mcpServers": {"declassify": {}}}`), 0644))

	found := detectAgents()
	require.Len(t, found, 1)
	assert.Equal(t, "cursor", found[0].id)
	assert.True(t, found[0].configured)
}

// --- orchestration ---

func TestRunSetup_AutoConfiguresFileAgent(t *testing.T) {
	t.Chdir(t.TempDir())
	stubAgents(t, nil, []string{".vscode"})

	var out bytes.Buffer
	runSetup(strings.NewReader(""), &out, true)
	assert.Contains(t, out.String(), "+ VS Code configured")

	data, err := os.ReadFile(filepath.Join(".vscode", "mcp.json"))
	require.NoError(t, err)
	assert.True(t, hasServer(filepath.Join(".vscode", "mcp.json"), "servers"))
	assert.Contains(t, string(data), `"type": "stdio"`)

	out.Reset()
	runSetup(strings.NewReader(""), &out, true)
	assert.Contains(t, out.String(), "VS Code (already configured)")
}

func TestRunSetup_DeclinedAgentIsSkipped(t *testing.T) {
	t.Chdir(t.TempDir())
	stubAgents(t, nil, []string{".cursor"})

	var out bytes.Buffer
	runSetup(strings.NewReader("n\n"), &out, false)
	assert.Contains(t, out.String(), "skipped")
	_, err := os.Stat(filepath.Join(".cursor", "mcp.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunSetup_CLIAgentRunsMcpAdd(t *testing.T) {
	t.Chdir(t.TempDir())
	stubAgents(t, []string{"codex"}, nil)

	var gotBinary string
	var gotArgs []string
	runCLI = func(binary string, args []string, _ io.Writer) error {
		gotBinary, gotArgs = binary, args
		return nil
	}

	var out bytes.Buffer
	runSetup(strings.NewReader(""), &out, true)
	assert.Equal(t, "codex", gotBinary)
	assert.Equal(t, []string{"mcp", "add", "declassify", "--", "declassify", "serve"}, gotArgs)
	assert.Contains(t, out.String(), "+ OpenAI Codex configured")
}

func TestRunSetup_NothingDetected(t *testing.T) {
	stubAgents(t, nil, nil)
	var out bytes.Buffer
	runSetup(strings.NewReader(""), &out, true)
	assert.Contains(t, out.String(), "No supported MCP clients detected.")
}
