package declassify

import (
	"sort"
	"strconv"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/declassify/pkg/analysis"
	"github.com/gnana997/declassify/pkg/edit"
	"github.com/gnana997/declassify/pkg/syntax"
)

// librarySymbols are the library members generated code may refer to.
var librarySymbols = []string{
	"useState", "useCallback", "useRef", "useEffect", "memo", "FC", "ReactElement",
}

// library decides how generated code refers to library members: through
// a default or namespace import (`React.useState`), through the global
// (`React.useState` without an import) or through named imports, which are
// extended with whatever is missing.
type library struct {
	prefix string

	locals   map[string]string
	imported map[string]bool
	needed   []string
	named    *ts.Node
}

// newLibrary inspects the file's imports of the library.
func newLibrary(ctx *analysis.Context, imports []*ts.Node) *library {
	l := &library{
		locals:   make(map[string]string),
		imported: make(map[string]bool),
	}
	src := ctx.Library.Source
	for _, b := range ctx.Table.Root.Order {
		if b.Import == nil || b.Import.Source != src {
			continue
		}
		switch b.Import.Kind {
		case syntax.ImportDefault, syntax.ImportNamespace:
			if l.prefix == "" {
				l.prefix = b.Name + "."
			}
		case syntax.ImportNamed:
			if !syntax.HasToken(b.Import.Statement, "type") {
				l.locals[b.Import.Imported] = b.Name
				l.imported[b.Import.Imported] = true
			}
		}
	}
	if l.prefix != "" {
		return l
	}

	for _, stmt := range imports {
		source, ok := syntax.StringValue(stmt.ChildByFieldName("source"), ctx.Source)
		if !ok || source != src || syntax.HasToken(stmt, "type") {
			continue
		}
		clause := syntax.FindChild(stmt, "import_clause")
		if clause == nil {
			continue
		}
		if named := syntax.FindChild(clause, "named_imports"); named != nil && len(syntax.NamedChildren(named)) > 0 {
			l.named = named
			break
		}
	}
	if l.named == nil {
		l.prefix = ctx.Library.Global + "."
		return l
	}

	used := make(map[string]bool)
	for _, b := range ctx.Table.Bindings() {
		used[b.Name] = true
	}
	for name := range ctx.Table.Unresolved() {
		used[name] = true
	}
	for _, sym := range librarySymbols {
		if _, ok := l.locals[sym]; ok {
			continue
		}
		local := sym
		for i := 0; used[local]; i++ {
			local = sym + strconv.Itoa(i)
		}
		used[local] = true
		l.locals[sym] = local
	}
	return l
}

// reserve keeps generated class locals from shadowing named imports.
func (l *library) reserve(lm *analysis.LocalManager) {
	if l.prefix != "" {
		return
	}
	for _, local := range l.locals {
		lm.Reserve(local)
	}
}

// ref returns the expression naming sym and records a missing import.
func (l *library) ref(sym string) string {
	if l.prefix != "" {
		return l.prefix + sym
	}
	if !l.imported[sym] {
		l.imported[sym] = true
		l.needed = append(l.needed, sym)
	}
	return l.locals[sym]
}

// mark and rollback bracket a class rewrite so a disabled class does not
// leave imports behind.
func (l *library) mark() int {
	return len(l.needed)
}

func (l *library) rollback(mark int) {
	for _, sym := range l.needed[mark:] {
		delete(l.imported, sym)
	}
	l.needed = l.needed[:mark]
}

// finish extends the named import with the recorded symbols.
func (l *library) finish(buf *edit.Buffer) {
	if l.named == nil || len(l.needed) == 0 {
		return
	}
	needed := append([]string(nil), l.needed...)
	sort.SliceStable(needed, func(i, j int) bool {
		return symbolRank(needed[i]) < symbolRank(needed[j])
	})
	specs := make([]string, 0, len(needed))
	for _, sym := range needed {
		if local := l.locals[sym]; local != sym {
			specs = append(specs, sym+" as "+local)
		} else {
			specs = append(specs, sym)
		}
	}
	kids := syntax.NamedChildren(l.named)
	last := kids[len(kids)-1]
	buf.Insert(last.EndByte(), ", "+strings.Join(specs, ", "))
}

func symbolRank(sym string) int {
	for i, s := range librarySymbols {
		if s == sym {
			return i
		}
	}
	return len(librarySymbols)
}
