package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/declassify/pkg/declassify"
)

const defaultFilename = "component.tsx"

// conversion is the JSON body returned by both tools.
type conversion struct {
	Filename    string                   `json:"filename"`
	Changed     bool                     `json:"changed"`
	Transformed int                      `json:"transformed"`
	Disabled    int                      `json:"disabled"`
	Skipped     int                      `json:"skipped"`
	Classes     []declassify.ClassReport `json:"classes"`
	Output      string                   `json:"output"`
}

func newConversion(filename string, classes []declassify.ClassReport, changed bool, output []byte) conversion {
	c := conversion{
		Filename: filename,
		Changed:  changed,
		Classes:  classes,
		Output:   string(output),
	}
	if c.Classes == nil {
		c.Classes = []declassify.ClassReport{}
	}
	for _, class := range classes {
		switch class.Outcome {
		case declassify.OutcomeTransformed:
			c.Transformed++
		case declassify.OutcomeDisabled:
			c.Disabled++
		case declassify.OutcomeSkipped:
			c.Skipped++
		}
	}
	return c
}

func (s *Server) handleDeclassifySource(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filename := req.GetString("filename", defaultFilename)

	res, err := s.runner.TransformSource(filename, []byte(source))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(newConversion(filename, res.Classes, res.Changed, res.Output))
}

func (s *Server) handleDeclassifyFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report := s.runner.RunFile(path)
	if report.Error != "" {
		return mcp.NewToolResultError(report.Error), nil
	}
	return jsonResult(newConversion(path, report.Classes, report.Changed, report.Output))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
