// Package declassify rewrites React class components into function
// components with hooks.
//
// A Transformer visits every class declaration of a file in source order.
// Classes that are not components are left untouched. Components the
// analysis cannot prove safe to rewrite get a leading disable comment
// explaining why; everything else is replaced by an equivalent function
// component.
package declassify

import (
	"fmt"
	"log/slog"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/declassify/pkg/analysis"
	"github.com/gnana997/declassify/pkg/edit"
	"github.com/gnana997/declassify/pkg/parser"
	"github.com/gnana997/declassify/pkg/parser/queries"
	"github.com/gnana997/declassify/pkg/syntax"
)

// DisablePrefix starts every disable comment the transformer writes.
const DisablePrefix = analysis.DisableMarker + " Cannot perform transformation: "

// Outcome is the terminal state of one class.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeTransformed
	OutcomeDisabled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTransformed:
		return "transformed"
	case OutcomeDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// MarshalText renders the outcome by name in JSON reports.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an outcome name.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "skipped":
		*o = OutcomeSkipped
	case "transformed":
		*o = OutcomeTransformed
	case "disabled":
		*o = OutcomeDisabled
	default:
		return fmt.Errorf("unknown outcome: %q", text)
	}
	return nil
}

// ClassReport describes what happened to one class declaration.
type ClassReport struct {
	Name    string  `json:"name"`
	Line    int     `json:"line"`
	Outcome Outcome `json:"outcome"`
	// Message is the analysis failure for disabled classes, or why an
	// eligible-looking class was skipped.
	Message string `json:"message,omitempty"`
}

// Result is the transformed file.
type Result struct {
	Output  []byte        `json:"-"`
	Classes []ClassReport `json:"classes"`
	Changed bool          `json:"changed"`
}

// Count returns the number of classes with the given outcome.
func (r *Result) Count(o Outcome) int {
	n := 0
	for _, c := range r.Classes {
		if c.Outcome == o {
			n++
		}
	}
	return n
}

// Transformer converts class components. It is safe for concurrent use;
// every call works on its own tree and edit buffer.
type Transformer struct {
	parsers *parser.ParserManager
	queries *queries.QueryManager
	library analysis.Library
	logger  *slog.Logger
}

// New creates a Transformer over shared parser and query managers.
func New(pm *parser.ParserManager, qm *queries.QueryManager, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{
		parsers: pm,
		queries: qm,
		library: analysis.DefaultLibrary(),
		logger:  logger,
	}
}

// TransformFile transforms source, picking the dialect from path.
func (t *Transformer) TransformFile(path string, source []byte) (*Result, error) {
	dialect := parser.DetectDialect(path)
	if dialect == parser.DialectUnknown {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	res, err := t.TransformSource(source, dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to transform %s: %w", path, err)
	}
	return res, nil
}

// TransformSource transforms every class component in source.
func (t *Transformer) TransformSource(source []byte, dialect parser.Dialect) (*Result, error) {
	tree, err := t.parsers.Parse(source, dialect)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	classes, err := t.queries.CaptureNodes(tree, dialect, queries.QueryTypeClasses, source, "class.declaration")
	if err != nil {
		return nil, fmt.Errorf("failed to find classes: %w", err)
	}
	imports, err := t.queries.CaptureNodes(tree, dialect, queries.QueryTypeImports, source, "import.statement")
	if err != nil {
		return nil, fmt.Errorf("failed to find imports: %w", err)
	}

	root := tree.RootNode()
	ctx := analysis.NewContext(source, syntax.Build(root, source), dialect.Typed())
	ctx.Library = t.library

	f := &fileRewrite{
		ctx:      ctx,
		buf:      edit.NewBuffer(source),
		lib:      newLibrary(ctx, imports),
		logger:   t.logger,
		optional: make(map[uint]bool),
	}

	res := &Result{}
	var done []*ts.Node
	for _, class := range classes {
		if insideAny(class, done) {
			continue
		}
		report := f.transformClass(class)
		res.Classes = append(res.Classes, report)
		if report.Outcome == OutcomeTransformed {
			done = append(done, class)
		}
	}
	f.lib.finish(f.buf)

	res.Changed = f.buf.Len() > 0
	if res.Changed {
		res.Output = f.buf.Bytes()
	} else {
		res.Output = source
	}
	return res, nil
}

func insideAny(node *ts.Node, outer []*ts.Node) bool {
	for _, o := range outer {
		if syntax.Contains(o, node) {
			return true
		}
	}
	return false
}

// fileRewrite is the per-file state shared by the classes of one file.
type fileRewrite struct {
	ctx    *analysis.Context
	buf    *edit.Buffer
	lib    *library
	logger *slog.Logger
	// optional records props type members already made optional.
	optional map[uint]bool
}

func (f *fileRewrite) transformClass(class *ts.Node) ClassReport {
	report := ClassReport{Line: syntax.Line(class)}
	if name := class.ChildByFieldName("name"); name != nil {
		report.Name = syntax.Text(name, f.ctx.Source)
	}

	head := analysis.AnalyzeHead(f.ctx, class)
	if head == nil {
		report.Outcome = OutcomeSkipped
		f.logger.Debug("skipping class", "class", report.Name, "line", report.Line)
		return report
	}
	if head.Name == "" {
		report.Outcome = OutcomeSkipped
		report.Message = "anonymous default-exported class has no name to give the component"
		f.logger.Info("skipping anonymous class", "line", report.Line)
		return report
	}
	if class.HasError() {
		report.Outcome = OutcomeSkipped
		report.Message = "syntax errors in class body"
		f.logger.Warn("skipping class with syntax errors", "class", report.Name, "line", report.Line)
		return report
	}

	mark, libMark := f.buf.Mark(), f.lib.mark()
	err := f.rewrite(head)
	if err == nil {
		report.Outcome = OutcomeTransformed
		f.logger.Debug("transformed class", "class", report.Name, "line", report.Line)
		return report
	}
	f.buf.Rollback(mark)
	f.lib.rollback(libMark)

	ae, ok := analysis.AsError(err)
	if !ok {
		panic(fmt.Sprintf("declassify: unexpected error for class %s: %v", report.Name, err))
	}
	f.disable(head, ae.Message)
	report.Outcome = OutcomeDisabled
	report.Message = ae.Message
	f.logger.Info("disabled class", "class", report.Name, "line", report.Line, "reason", ae.Message)
	return report
}

// disable prepends the disable comment to the class statement.
func (f *fileRewrite) disable(head *analysis.Head, msg string) {
	start := head.Statement.StartByte()
	indent, onlyWS := syntax.LineIndent(f.ctx.Source, start)
	if onlyWS {
		f.buf.Insert(start, "// "+DisablePrefix+msg+"\n"+indent)
		return
	}
	f.buf.Insert(start, "/* "+DisablePrefix+msg+" */ ")
}

// rewrite analyzes head and, when the analysis succeeds, registers the
// edits replacing the class.
func (f *fileRewrite) rewrite(head *analysis.Head) error {
	res, err := analysis.Analyze(f.ctx, head)
	if err != nil {
		return err
	}
	f.lib.reserve(res.Locals)
	e := &emitter{f: f, res: res, plan: plan(f.ctx, res), head: head}
	e.emit()
	return nil
}
