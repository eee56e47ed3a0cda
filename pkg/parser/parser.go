// Package parser wraps tree-sitter parsers for the TypeScript, TSX and
// JavaScript dialects behind a pooled, concurrency-safe manager.
package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/gnana997/declassify/pkg/util"
)

// ParserManager manages tree-sitter parsers for every dialect with lazy
// initialization and thread-safe concurrent access.
//
// Memory Management:
// - Parser pools are created lazily on first use per dialect
// - ParserManager owns parser pool instances and must be closed via Close()
// - Callers own Tree instances and must call tree.Close() after use
//
// Example:
//
//	manager := NewParserManager(logger)
//	defer manager.Close()
//
//	tree, err := manager.Parse([]byte("class A extends React.Component {}"), DialectTSX)
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
type ParserManager struct {
	// pools stores parser pools per dialect (lazily initialized)
	pools map[Dialect]*parserPool

	// poolSize overrides the CPU-derived pool size when > 0
	poolSize int

	mutex  sync.RWMutex
	logger *slog.Logger

	stats struct {
		parsesCalled int
		parseErrors  int
	}
}

// NewParserManager creates a new ParserManager instance.
//
// The returned manager must be closed via Close() to free resources.
func NewParserManager(logger *slog.Logger) *ParserManager {
	return NewParserManagerWithPoolSize(logger, 0)
}

// NewParserManagerWithPoolSize creates a manager whose per-dialect pools hold
// at most poolSize parsers. A poolSize of 0 uses the CPU-derived default.
func NewParserManagerWithPoolSize(logger *slog.Logger, poolSize int) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ParserManager{
		pools:    make(map[Dialect]*parserPool),
		poolSize: poolSize,
		logger:   logger,
	}
}

// Parse parses source code with the grammar of the given dialect.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
// Trees containing syntax errors are still returned; callers decide how to
// treat ERROR nodes.
func (pm *ParserManager) Parse(source []byte, dialect Dialect) (*ts.Tree, error) {
	if dialect == DialectUnknown {
		return nil, fmt.Errorf("cannot parse unknown dialect")
	}

	pm.mutex.Lock()
	pm.stats.parsesCalled++
	pm.mutex.Unlock()

	pool, err := pm.getOrCreatePool(dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", dialect, err)
	}

	parser, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}

	tree := parser.Parse(source, nil)
	pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("parser.Parse returned nil tree")
	}

	if tree.RootNode().HasError() {
		pm.mutex.Lock()
		pm.stats.parseErrors++
		pm.mutex.Unlock()
		pm.logger.Warn("parse tree contains errors",
			"dialect", dialect.String())
	}

	return tree, nil
}

// ParseFile parses source after detecting its dialect from filePath.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
func (pm *ParserManager) ParseFile(source []byte, filePath string) (*ts.Tree, Dialect, error) {
	dialect := DetectDialect(filePath)
	if dialect == DialectUnknown {
		return nil, dialect, fmt.Errorf("unsupported file extension: %s", filePath)
	}

	tree, err := pm.Parse(source, dialect)
	return tree, dialect, err
}

// Close releases all parser pool resources.
// After Close(), the ParserManager cannot be used.
func (pm *ParserManager) Close() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.logger.Debug("closing ParserManager",
		"parses_called", pm.stats.parsesCalled,
		"parse_errors", pm.stats.parseErrors)

	for dialect, pool := range pm.pools {
		if pool != nil {
			pool.close()
			pm.logger.Debug("closed parser pool", "dialect", dialect.String())
		}
	}
	pm.pools = make(map[Dialect]*parserPool)

	return nil
}

// getOrCreatePool returns an existing parser pool or creates a new one.
// Thread-safe using double-checked locking.
func (pm *ParserManager) getOrCreatePool(dialect Dialect) (*parserPool, error) {
	pm.mutex.RLock()
	pool, exists := pm.pools[dialect]
	pm.mutex.RUnlock()

	if exists {
		return pool, nil
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pool, exists = pm.pools[dialect]; exists {
		return pool, nil
	}

	langPtr, err := LanguagePointer(dialect)
	if err != nil {
		return nil, err
	}

	poolSize := util.GetOptimalPoolSizeWithOverride(pm.poolSize)
	pool = newParserPool(dialect, langPtr, poolSize, pm.logger)
	pm.pools[dialect] = pool

	pm.logger.Debug("created new parser pool",
		"dialect", dialect.String(),
		"maxSize", poolSize)

	return pool, nil
}

// LanguagePointer returns the tree-sitter grammar for a dialect.
//
// Queries must be compiled against the same grammar the tree was parsed
// with, so QueryManager uses this too.
func LanguagePointer(dialect Dialect) (unsafe.Pointer, error) {
	switch dialect {
	case DialectTypeScript:
		return ts_typescript.LanguageTypescript(), nil
	case DialectTSX:
		return ts_typescript.LanguageTSX(), nil
	case DialectJavaScript:
		return ts_javascript.Language(), nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect.String())
	}
}

// GetStats returns parser usage statistics.
func (pm *ParserManager) GetStats() ParserStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	totalParsers, waits := 0, 0
	for _, pool := range pm.pools {
		totalParsers += int(pool.created.Load())
		waits += int(pool.waits.Load())
	}

	return ParserStats{
		ParsersCreated: totalParsers,
		PoolWaits:      waits,
		ParsesCalled:   pm.stats.parsesCalled,
		ParseErrors:    pm.stats.parseErrors,
	}
}

// ParserStats contains parser usage statistics.
type ParserStats struct {
	// ParsersCreated is the total number of parser instances created
	ParsersCreated int

	// ParsesCalled is the total number of Parse() calls
	ParsesCalled int

	// ParseErrors counts trees that contained ERROR or MISSING nodes
	ParseErrors int

	// PoolWaits counts parses that waited for a busy parser
	PoolWaits int
}
