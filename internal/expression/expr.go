package expression

import (
	"time"

	"github.com/karupanerura/series-formula/internal/ast"
	"github.com/karupanerura/series-formula/internal/scanner"
	"github.com/karupanerura/series-formula/internal/types"
)

// Expr is a compiled formula.
type Expr struct {
	Source string
	root   ast.Node
}

// Type is the static type of the formula's value.
func (e *Expr) Type() types.Type {
	return e.root.Type()
}

// Root exposes the typed expression graph.
func (e *Expr) Root() ast.Node {
	return e.root
}

func (e *Expr) String() string {
	return e.Source
}

// Evaluate runs the formula against symbols. "set" stores into symbols.
func (e *Expr) Evaluate(symbols *types.SymbolTable) (any, error) {
	return e.root.Eval(ast.NewFrame(symbols))
}

type Option func(*parser)

// WithSymbols sets the data source identifiers are typed against. The same
// names must be present when the formula is evaluated.
func WithSymbols(symbols *types.SymbolTable) Option {
	return func(p *parser) {
		p.symbols = symbols
	}
}

// WithClock anchors two-digit date years.
func WithClock(now func() time.Time) Option {
	return func(p *parser) {
		p.scannerOptions = append(p.scannerOptions, scanner.WithClock(now))
	}
}

func WithScannerOptions(opts ...scanner.Option) Option {
	return func(p *parser) {
		p.scannerOptions = append(p.scannerOptions, opts...)
	}
}

func Compile(source string, opts ...Option) (*Expr, error) {
	p := &parser{source: source, debug: parserDebugLog}
	for _, opt := range opts {
		opt(p)
	}
	return p.parse()
}

func CompileWithDebugOutput(source string, opts ...Option) (*Expr, error) {
	p := &parser{source: source}
	for _, opt := range opts {
		opt(p)
	}
	p.debug = true
	return p.parse()
}
