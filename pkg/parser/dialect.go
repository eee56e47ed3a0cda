package parser

import (
	"path/filepath"
	"strings"
)

// Dialect identifies the grammar a source file is parsed with.
type Dialect int

const (
	// DialectTypeScript is plain TypeScript (.ts, .mts, .cts)
	DialectTypeScript Dialect = iota
	// DialectTSX is TypeScript with JSX (.tsx)
	DialectTSX
	// DialectJavaScript is JavaScript with JSX (.js, .jsx, .mjs, .cjs)
	DialectJavaScript
	// DialectUnknown represents an unsupported file
	DialectUnknown
)

// String returns the string representation of the dialect.
func (d Dialect) String() string {
	switch d {
	case DialectTypeScript:
		return "typescript"
	case DialectTSX:
		return "tsx"
	case DialectJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// Typed reports whether the dialect carries static type annotations.
// Only typed dialects get synthesized annotations in rewritten output.
func (d Dialect) Typed() bool {
	return d == DialectTypeScript || d == DialectTSX
}

// DetectDialect detects the dialect from a file path.
// Returns DialectUnknown if the file extension is not recognized.
func DetectDialect(filePath string) Dialect {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".ts", ".mts", ".cts":
		return DialectTypeScript
	case ".tsx":
		return DialectTSX
	case ".js", ".jsx", ".mjs", ".cjs":
		return DialectJavaScript
	default:
		return DialectUnknown
	}
}

// ParseDialectString converts a dialect name to a Dialect.
// Returns DialectUnknown if the string is not recognized.
func ParseDialectString(name string) Dialect {
	switch strings.ToLower(name) {
	case "typescript", "ts":
		return DialectTypeScript
	case "tsx":
		return DialectTSX
	case "javascript", "js", "jsx":
		return DialectJavaScript
	default:
		return DialectUnknown
	}
}

// SupportedDialects returns all supported dialects.
func SupportedDialects() []Dialect {
	return []Dialect{
		DialectTypeScript,
		DialectTSX,
		DialectJavaScript,
	}
}
