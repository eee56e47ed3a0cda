package parser

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// parserPool hands out parsers bound to one grammar. At most cap(slots)
// parsers exist at a time; they are created on demand and kept idle
// between parses. Once every slot is taken, acquire waits for a release.
type parserPool struct {
	idle    chan *ts.Parser
	slots   chan struct{}
	lang    *ts.Language
	dialect Dialect
	logger  *slog.Logger

	created atomic.Int64
	waits   atomic.Int64
}

func newParserPool(dialect Dialect, langPtr unsafe.Pointer, size int, logger *slog.Logger) *parserPool {
	return &parserPool{
		idle:    make(chan *ts.Parser, size),
		slots:   make(chan struct{}, size),
		lang:    ts.NewLanguage(langPtr),
		dialect: dialect,
		logger:  logger,
	}
}

func (p *parserPool) acquire() (*ts.Parser, error) {
	select {
	case parser := <-p.idle:
		return parser, nil
	default:
	}

	select {
	case parser := <-p.idle:
		return parser, nil
	case p.slots <- struct{}{}:
		parser, err := p.newParser()
		if err != nil {
			<-p.slots
			return nil, err
		}
		return parser, nil
	default:
	}

	p.waits.Add(1)
	return <-p.idle, nil
}

func (p *parserPool) newParser() (*ts.Parser, error) {
	parser := ts.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create %s parser", p.dialect)
	}
	if err := parser.SetLanguage(p.lang); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set %s language: %w", p.dialect, err)
	}
	n := p.created.Add(1)
	p.logger.Debug("created parser", "dialect", p.dialect.String(), "parsers", n)
	return parser, nil
}

// release returns parser for reuse. The idle channel has room for every
// slot, so this never blocks.
func (p *parserPool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}
	p.idle <- parser
}

// close frees the idle parsers. Parsers still acquired are not tracked;
// the pool must be quiescent.
func (p *parserPool) close() {
	n := 0
	for {
		select {
		case parser := <-p.idle:
			parser.Close()
			n++
		default:
			p.logger.Debug("closed parser pool", "dialect", p.dialect.String(), "parsers_closed", n)
			return
		}
	}
}
