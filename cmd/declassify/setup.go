package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// serverKey names the declassify entry in agent MCP configs.
const serverKey = "declassify"

// agentKind says how an agent is configured.
type agentKind int

const (
	// agentCLI agents register servers through their own `mcp add` command.
	agentCLI agentKind = iota
	// agentFile agents read a JSON file with a servers map.
	agentFile
)

// agent describes how to detect and configure one MCP client.
type agent struct {
	id         string
	name       string
	kind       agentKind
	binary     string        // agentCLI: executable on PATH
	markers    []string      // agentFile: directories that indicate a project-level agent
	configPath func() string // agentFile: JSON config location
	serversKey string        // agentFile: "servers" or "mcpServers"
	extra      map[string]string
}

// detected is an agent found on this machine.
type detected struct {
	agent
	config     string
	configured bool
}

// Replaceable for testing.
var (
	lookPath = exec.LookPath
	statPath = os.Stat
	runCLI   = func(binary string, args []string, out io.Writer) error {
		cmd := exec.Command(binary, args...)
		cmd.Stdout = out
		cmd.Stderr = out
		return cmd.Run()
	}
)

var agents = []agent{
	{id: "codex", name: "OpenAI Codex", kind: agentCLI, binary: "codex"},
	{
		id: "vscode", name: "VS Code", kind: agentFile,
		markers:    []string{".vscode"},
		configPath: func() string { return filepath.Join(".vscode", "mcp.json") },
		serversKey: "servers",
		extra:      map[string]string{"type": "stdio"},
	},
	{
		id: "cursor", name: "Cursor", kind: agentFile,
		markers:    []string{".cursor"},
		configPath: func() string { return filepath.Join(".cursor", "mcp.json") },
		serversKey: "mcpServers",
	},
	{
		id: "claude_desktop", name: "Claude Desktop", kind: agentFile,
		configPath: desktopConfigPath,
		serversKey: "mcpServers",
	},
}

func desktopConfigPath() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Claude", "claude_desktop_config.json")
	default:
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

// detectAgents returns the agents present on this machine.
func detectAgents() []detected {
	var found []detected
	for _, a := range agents {
		switch a.kind {
		case agentCLI:
			if _, err := lookPath(a.binary); err == nil {
				found = append(found, detected{agent: a, configured: hasServer(".mcp.json", "mcpServers")})
			}

		case agentFile:
			path := a.configPath()
			present := false
			for _, marker := range a.markers {
				if _, err := statPath(marker); err == nil {
					present = true
					break
				}
			}
			if len(a.markers) == 0 {
				_, err := statPath(filepath.Dir(path))
				present = err == nil
			}
			if present {
				found = append(found, detected{agent: a, config: path, configured: hasServer(path, a.serversKey)})
			}
		}
	}
	return found
}

// hasServer reports whether the JSON file at path already lists declassify.
func hasServer(path, serversKey string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return false
	}
	servers, _ := config[serversKey].(map[string]any)
	_, ok := servers[serverKey]
	return ok
}

func serverEntry(extra map[string]string) map[string]any {
	entry := map[string]any{
		"command": "declassify",
		"args":    []any{"serve"},
	}
	for k, v := range extra {
		entry[k] = v
	}
	return entry
}

// mergeServerEntry adds the declassify entry under serversKey, keeping
// everything else. It returns nil when the entry already exists.
func mergeServerEntry(existing []byte, serversKey string, extra map[string]string) ([]byte, error) {
	config := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &config); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}
	servers, ok := config[serversKey].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	if _, exists := servers[serverKey]; exists {
		return nil, nil
	}
	servers[serverKey] = serverEntry(extra)
	config[serversKey] = servers

	out, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func configureFile(d detected) error {
	if err := os.MkdirAll(filepath.Dir(d.config), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	existing, err := os.ReadFile(d.config)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	merged, err := mergeServerEntry(existing, d.serversKey, d.extra)
	if err != nil || merged == nil {
		return err
	}
	return os.WriteFile(d.config, merged, 0644)
}

func configureCLI(d detected, out io.Writer) error {
	args := []string{"mcp", "add", serverKey, "--", "declassify", "serve"}
	return runCLI(d.binary, args, out)
}

// confirm asks a Y/n question. Empty input and EOF mean yes.
func confirm(in *bufio.Scanner, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [Y/n] ", question)
	if !in.Scan() {
		return true
	}
	answer := strings.ToLower(strings.TrimSpace(in.Text()))
	return answer == "" || answer == "y" || answer == "yes"
}

// runSetup registers the MCP server with every detected agent.
func runSetup(r io.Reader, w io.Writer, auto bool) {
	found := detectAgents()
	if len(found) == 0 {
		fmt.Fprintln(w, "No supported MCP clients detected.")
		return
	}

	fmt.Fprintln(w, "Detected MCP clients:")
	for _, d := range found {
		if d.configured {
			fmt.Fprintf(w, "  * %s (already configured)\n", d.name)
		} else {
			fmt.Fprintf(w, "  * %s\n", d.name)
		}
	}

	in := bufio.NewScanner(r)
	for _, d := range found {
		if d.configured {
			continue
		}
		target := d.config
		if d.kind == agentCLI {
			target = d.binary + " mcp add"
		}
		if !auto && !confirm(in, w, fmt.Sprintf("%s: register declassify via %s?", d.name, target)) {
			fmt.Fprintln(w, "  skipped")
			continue
		}

		var err error
		if d.kind == agentCLI {
			err = configureCLI(d, w)
		} else {
			err = configureFile(d)
		}
		if err != nil {
			fmt.Fprintf(w, "  ! %s: failed: %v\n", d.name, err)
			continue
		}
		fmt.Fprintf(w, "  + %s configured\n", d.name)
	}
}

func newSetupCmd() *cobra.Command {
	var auto bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with detected editors and agents",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			runSetup(cmd.InOrStdin(), cmd.OutOrStdout(), auto)
		},
	}
	cmd.Flags().BoolVar(&auto, "auto", false, "configure every detected client without asking")
	return cmd
}
