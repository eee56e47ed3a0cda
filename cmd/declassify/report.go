package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/gnana997/declassify/pkg/runner"
)

const maxWidth = 80

// displayPath shortens path relative to the working directory when it
// lies below it.
func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}

// printFileReport prints the classes of one file as a table. Messages of
// disabled classes are wrapped below their row.
func printFileReport(w io.Writer, r *runner.FileReport) {
	status := "unchanged"
	switch {
	case r.Error != "":
		status = "error"
	case r.Written:
		status = "written"
	case r.Changed:
		status = "changed"
	}
	fmt.Fprintf(w, "%s  [%s]\n", displayPath(r.Path), status)

	if r.Error != "" {
		printWrapped(w, r.Error, 2, maxWidth)
		return
	}
	if len(r.Classes) == 0 {
		return
	}

	nameW := len("CLASS")
	for _, c := range r.Classes {
		if len(c.Name) > nameW {
			nameW = len(c.Name)
		}
	}
	lineW := len("LINE")
	for _, c := range r.Classes {
		if n := len(strconv.Itoa(c.Line)); n > lineW {
			lineW = n
		}
	}

	fmt.Fprintf(w, "  %-*s  %*s  %s\n", nameW, "CLASS", lineW, "LINE", "OUTCOME")
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", nameW+lineW+len("OUTCOME")+4))
	for _, c := range r.Classes {
		name := c.Name
		if name == "" {
			name = "(anonymous)"
		}
		fmt.Fprintf(w, "  %-*s  %*d  %s\n", nameW, name, lineW, c.Line, c.Outcome)
		if c.Message != "" {
			printWrapped(w, c.Message, nameW+lineW+6, maxWidth)
		}
	}
}

// printSummary prints the totals of a run.
func printSummary(w io.Writer, s runner.Summary, verb string) {
	fmt.Fprintf(w, "%d files, %d %s, %d classes transformed, %d disabled, %d skipped",
		s.Files, s.Changed, verb, s.Transformed, s.Disabled, s.Skipped)
	if s.Errors > 0 {
		fmt.Fprintf(w, ", %d errors", s.Errors)
	}
	fmt.Fprintln(w)
}

// unifiedDiff renders the change of one file in unified format.
func unifiedDiff(r *runner.FileReport) (string, error) {
	name := displayPath(r.Path)
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(r.Original)),
		B:        difflib.SplitLines(string(r.Output)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
}

// printWrapped prints text word-wrapped at width with the given left indent.
func printWrapped(w io.Writer, text string, indent, width int) {
	words := strings.Fields(text)
	prefix := strings.Repeat(" ", indent)
	line := prefix
	for _, word := range words {
		if len(line)+len(word)+1 > width && line != prefix {
			fmt.Fprintln(w, line)
			line = prefix + word
			continue
		}
		if line == prefix {
			line += word
		} else {
			line += " " + word
		}
	}
	if line != prefix {
		fmt.Fprintln(w, line)
	}
}
