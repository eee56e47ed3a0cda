package analysis

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/declassify/pkg/parser"
	"github.com/gnana997/declassify/pkg/syntax"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// parseClass parses src and returns the context and the first class
// declaration.
func parseClass(t *testing.T, src string, dialect parser.Dialect) (*Context, *ts.Node) {
	t.Helper()
	pm := parser.NewParserManager(testLogger())
	t.Cleanup(func() { pm.Close() })

	tree, err := pm.Parse([]byte(src), dialect)
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	root := tree.RootNode()
	ctx := NewContext([]byte(src), syntax.Build(root, []byte(src)), dialect.Typed())

	var class *ts.Node
	var find func(n *ts.Node)
	find = func(n *ts.Node) {
		if class != nil {
			return
		}
		if n.Kind() == "class_declaration" {
			class = n
			return
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			find(n.NamedChild(i))
		}
	}
	find(root)
	require.NotNil(t, class, "no class in source")
	return ctx, class
}

func analyze(t *testing.T, src string) (*Result, error) {
	t.Helper()
	ctx, class := parseClass(t, src, parser.DialectJavaScript)
	head := AnalyzeHead(ctx, class)
	require.NotNil(t, head, "class was skipped")
	return Analyze(ctx, head)
}

func TestAnalyzeHeadEligibility(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		eligible bool
		pure     bool
	}{
		{"global component", "class C extends React.Component { render() { return null; } }", true, false},
		{"global pure", "class C extends React.PureComponent { render() { return null; } }", true, true},
		{"default import", "import R from 'react';\nclass C extends R.Component { render() { return null; } }", true, false},
		{"named import", "import { PureComponent as P } from 'react';\nclass C extends P { render() { return null; } }", true, true},
		{"namespace import", "import * as R from 'react';\nclass C extends R.Component { render() { return null; } }", true, false},
		{"other library", "import { Component } from 'preact';\nclass C extends Component { render() { return null; } }", false, false},
		{"shadowed global", "const React = {};\nclass C extends React.Component { render() { return null; } }", false, false},
		{"no superclass", "class C { render() { return null; } }", false, false},
		{"disabled", "// react-declassify-disable\nclass C extends React.Component { render() { return null; } }", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, class := parseClass(t, tt.src, parser.DialectJavaScript)
			head := AnalyzeHead(ctx, class)
			if !tt.eligible {
				assert.Nil(t, head)
				return
			}
			require.NotNil(t, head)
			assert.Equal(t, "C", head.Name)
			assert.Equal(t, tt.pure, head.Pure)
		})
	}
}

func TestAnalyzeHeadTypes(t *testing.T) {
	src := `interface Props { name: string; onClick?(): void }
type State = { count: number };
export default class C extends React.Component<Props, State> {
  render() { return null; }
}
`
	ctx, class := parseClass(t, src, parser.DialectTSX)
	head := AnalyzeHead(ctx, class)
	require.NotNil(t, head)

	assert.True(t, head.Exported)
	assert.True(t, head.DefaultExport)
	require.NotNil(t, head.PropTypes)
	require.NotNil(t, head.StateTypes)
	assert.Equal(t, 2, head.PropTypes.Len())

	onClick, ok := head.PropTypes.Get("onClick")
	require.True(t, ok)
	assert.True(t, onClick.Method)
	assert.True(t, onClick.Optional)
	assert.Equal(t, "() => void", onClick.TypeText(ctx.Source))

	count, ok := head.StateTypes.Get("count")
	require.True(t, ok)
	assert.Equal(t, "number", count.TypeText(ctx.Source))
}

func TestAnalyzeFieldSites(t *testing.T) {
	src := `class C extends React.Component {
  constructor(props) {
    super(props);
    this.state = { n: props.start };
    this.onClick = this.onClick.bind(this);
  }
  onClick() {
    this.setState({ n: this.state.n + 1 });
  }
  render() {
    return <button onClick={this.onClick}>{this.state.n}</button>;
  }
}
`
	ctx, class := parseClass(t, src, parser.DialectJavaScript)
	head := AnalyzeHead(ctx, class)
	require.NotNil(t, head)

	fields, err := AnalyzeFields(ctx, head)
	require.NoError(t, err)
	require.NotNil(t, fields.CtorParam)
	assert.Equal(t, "props", fields.CtorParam.Name)
	assert.Len(t, fields.Binds, 1)

	stateInit := fields.InitSite("state")
	require.NotNil(t, stateInit)
	assert.True(t, stateInit.InConstructor)

	var params int
	for _, s := range fields.Sites("props") {
		if s.Param {
			params++
		}
	}
	assert.Equal(t, 1, params)
	assert.NotNil(t, fields.InitSite("onClick"))
}

func TestAnalyzeStateAndProps(t *testing.T) {
	res, err := analyze(t, `class C extends React.Component {
  state = { a: 1, b: () => 2 };
  render() {
    const { x } = this.props;
    return <div onClick={() => this.setState({ b: null })}>{x}{this.state.a}{this.props.y()}</div>;
  }
}
`)
	require.NoError(t, err)

	require.Equal(t, 2, res.State.Fields.Len())
	a, _ := res.State.Fields.Get("a")
	assert.False(t, a.FunctionValued())
	assert.True(t, a.InitPure)
	b, _ := res.State.Fields.Get("b")
	assert.True(t, b.FunctionValued())

	x, ok := res.Props.Fields.Get("x")
	require.True(t, ok)
	assert.Len(t, x.Aliases, 1)
	assert.True(t, x.NeedsAlias())

	y, ok := res.Props.Fields.Get("y")
	require.True(t, ok)
	require.Len(t, y.Sites, 1)
	assert.True(t, y.Sites[0].Called)
	assert.True(t, y.Sites[0].Decompose)
	assert.True(t, res.Props.Used())
	assert.Len(t, res.Locals.Removals(), 1)
}

func TestAnalyzeUserDefinedKinds(t *testing.T) {
	res, err := analyze(t, `class C extends React.Component {
  input = React.createRef();
  timer = null;
  tick = () => { this.timer = 1; };
  render() {
    return <input ref={this.input} onChange={this.tick} />;
  }
}
`)
	require.NoError(t, err)

	ud := res.UserDefined
	assert.Equal(t, UDFactoryRef, ud.Get("input").Kind)
	assert.Equal(t, UDRef, ud.Get("timer").Kind)
	tick := ud.Get("tick")
	assert.Equal(t, UDFunction, tick.Kind)
	assert.True(t, tick.NeedsMemo)
	assert.Empty(t, tick.Deps)
}

func TestMemoPropagatesToCallees(t *testing.T) {
	res, err := analyze(t, `class C extends React.Component {
  helper() { return this.props.n; }
  direct() { return 1; }
  handle() { return this.helper(); }
  render() {
    return <X f={this.handle}>{this.direct()}</X>;
  }
}
`)
	require.NoError(t, err)

	ud := res.UserDefined
	assert.True(t, ud.IsMemoFunction("handle"))
	assert.True(t, ud.IsMemoFunction("helper"))
	assert.False(t, ud.IsMemoFunction("direct"))
	assert.Equal(t, []Dep{{Kind: DepFunction, Name: "helper"}}, ud.Get("handle").Deps)
	assert.Equal(t, []Dep{{Kind: DepProp, Name: "n"}}, ud.Get("helper").Deps)

	var order []string
	for pair := ud.Fields.Oldest(); pair != nil; pair = pair.Next() {
		order = append(order, pair.Key)
	}
	assert.Equal(t, []string{"helper", "direct", "handle"}, order)
}

func TestMemoCallablesAreSortedAfterDependencies(t *testing.T) {
	res, err := analyze(t, `class C extends React.Component {
  outer() { return this.inner(); }
  inner() { return 1; }
  render() {
    return <X f={this.outer} />;
  }
}
`)
	require.NoError(t, err)

	var order []string
	for pair := res.UserDefined.Fields.Oldest(); pair != nil; pair = pair.Next() {
		order = append(order, pair.Key)
	}
	assert.Equal(t, []string{"inner", "outer"}, order)
}

func TestAnalysisFailures(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{"missing render", "class C extends React.Component { foo() {} }", "Missing render method"},
		{"getter", "class C extends React.Component { get x() { return 1; } render() { return null; } }", "Getters and setters are not supported"},
		{"static method", "class C extends React.Component { static f() {} render() { return null; } }", "Static methods are not supported"},
		{"stray this", "class C extends React.Component { render() { return f(this); } }", "Stray this"},
		{"reserved member", "class C extends React.Component { componentWillMount() {} render() { return null; } }", "Unsupported member: componentWillMount"},
		{"state assignment", "class C extends React.Component { render() { this.state = {}; return null; } }", "Cannot assign to this.state"},
		{"prop assignment", "class C extends React.Component { render() { this.props.x = 1; return null; } }", "Cannot assign to prop x"},
		{"impure ref", "class C extends React.Component { x = load(); render() { return this.x; } }", "Initializer of x may have side effects"},
		{"two constructor params", "class C extends React.Component { constructor(a, b) { super(a); } render() { return null; } }", "Constructor must take exactly one parameter"},
		{"missing super", "class C extends React.Component { constructor(props) { this.x = 1; } render() { return null; } }", "Constructor must start with super(props)"},
		{"render params", "class C extends React.Component { render(x) { return x; } }", "render must take no parameters"},
		{"unmount reads state", "class C extends React.Component { state = { a: 1 }; componentWillUnmount() { log(this.state.a); } render() { return null; } }", "Cannot read state a in componentWillUnmount"},
		{"defaults with whole props", "class C extends React.Component { static defaultProps = { a: 1 }; render() { return f(this.props); } }", "Non-analyzable props access with defaultProps"},
		{"non-object state", "class C extends React.Component { state = 1; render() { return null; } }", "Non-object state initializer"},
		{"arguments in callback", "class C extends React.Component { sum() { return arguments.length; } render() { return <X f={this.sum} />; } }", "Cannot use arguments here"},
		{"arguments in arrow", "class C extends React.Component { componentDidMount() { const f = () => arguments[0]; f(); } render() { return null; } }", "Cannot use arguments here"},
		{"new.target", "class C extends React.Component { render() { return new.target ? null : null; } }", "Cannot use new.target here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := analyze(t, tt.src)
			require.Error(t, err)
			ae, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.message, ae.Message)
		})
	}
}

func TestEstimatePure(t *testing.T) {
	tests := []struct {
		expr string
		pure bool
	}{
		{"1", true},
		{"'a' + `b`", true},
		{"{ a: [1, 2], b: null }", true},
		{"() => load()", true},
		{"load()", false},
		{"new Map()", false},
		{"x.y", true},
		{"f`a`", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			src := "const v = " + tt.expr + ";"
			pm := parser.NewParserManager(testLogger())
			defer pm.Close()
			tree, err := pm.Parse([]byte(src), parser.DialectJavaScript)
			require.NoError(t, err)
			defer tree.Close()

			decl := tree.RootNode().NamedChild(0).NamedChild(0)
			require.Equal(t, "variable_declarator", decl.Kind())
			assert.Equal(t, tt.pure, EstimatePure(decl.ChildByFieldName("value")))
		})
	}
}

func TestNewLocalAvoidsCollisions(t *testing.T) {
	ctx, class := parseClass(t, `const foo = 1;
class C extends React.Component {
  render() {
    const bar = foo0;
    return bar;
  }
}
`, parser.DialectJavaScript)
	head := AnalyzeHead(ctx, class)
	require.NotNil(t, head)
	fields, err := AnalyzeFields(ctx, head)
	require.NoError(t, err)
	render, err := CheckReserved(fields)
	require.NoError(t, err)

	lm := NewLocalManager(ctx, head, render)
	assert.Equal(t, "foo1", lm.NewLocal("foo"))
	assert.Equal(t, "bar", lm.NewLocal("bar"))
	assert.Equal(t, "bar0", lm.NewLocal("bar"))
	assert.Equal(t, "default0", lm.NewLocal("default"))
	require.Len(t, lm.RenderLocals(), 1)
	assert.Equal(t, "bar", lm.RenderLocals()[0].Name)
}

func TestNestedFunctionsKeepTheirOwnArguments(t *testing.T) {
	_, err := analyze(t, `class C extends React.Component {
  sum() {
    return function () { return arguments.length; };
  }
  render() { return <X f={this.sum} />; }
}`)
	require.NoError(t, err)
}

func TestNewLocalAvoidsLocalsOutsideRender(t *testing.T) {
	tests := []struct {
		name string
		src  string
		base string
		want string
	}{
		{
			name: "state alias removed from render",
			src: `class C extends React.Component {
  state = { foo: 1 };
  handle() { const foo = 2; return foo + this.state.foo; }
  render() { const { foo } = this.state; return foo; }
}`,
			base: "foo",
			want: "foo0",
		},
		{
			name: "prop alias removed from render",
			src: `class C extends React.Component {
  handle() { const a = 5; return a + this.props.a; }
  render() { const { a } = this.props; return a; }
}`,
			base: "a",
			want: "a0",
		},
		{
			name: "local in nested render scope",
			src: `class C extends React.Component {
  state = { foo: 1 };
  render() { const f = () => { const foo = 1; return foo; }; return f(this.state.foo); }
}`,
			base: "foo",
			want: "foo0",
		},
		{
			name: "method local named like a member",
			src: `class C extends React.Component {
  onClick() { this.props.go(); }
  other() { const onClick = 1; return onClick; }
  render() { return <X f={this.onClick} v={this.other()} />; }
}`,
			base: "onClick",
			want: "onClick0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := analyze(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Locals.NewLocal(tt.base))
		})
	}
}
