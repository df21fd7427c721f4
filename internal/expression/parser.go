package expression

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/k0kubun/pp"
	"github.com/samber/lo"

	"github.com/karupanerura/series-formula/internal/ast"
	"github.com/karupanerura/series-formula/internal/defaults"
	"github.com/karupanerura/series-formula/internal/lambda"
	"github.com/karupanerura/series-formula/internal/scanner"
	"github.com/karupanerura/series-formula/internal/token"
	"github.com/karupanerura/series-formula/internal/types"
)

var prefixOperatorBindingPowerMap = map[token.Kind]uint8{
	token.Not:   3,
	token.Minus: 6,
	token.Plus:  6,
}

var infixOperatorBindingPowerMap = map[token.Kind]uint8{
	token.Or:          1,
	token.And:         2,
	token.Eq:          3,
	token.Ne:          3,
	token.Lt:          3,
	token.Le:          3,
	token.Gt:          3,
	token.Ge:          3,
	token.Plus:        4,
	token.Minus:       4,
	token.Times:       5,
	token.Divide:      5,
	token.Mod:         5,
	token.PointTimes:  5,
	token.PointDivide: 5,
	token.Caret:       7,
	token.LBra:        9,
}

// right associative operators parse their right side at their own power
var rightAssociativeOperators = map[token.Kind]bool{
	token.Caret: true,
}

var parserDebugLog = false

func init() {
	if v, err := strconv.ParseBool(os.Getenv("SERIES_FORMULA_DEBUG")); v && err == nil {
		parserDebugLog = true
	}
}

type parser struct {
	source         string
	debug          bool
	symbols        *types.SymbolTable
	scannerOptions []scanner.Option

	sc     *scanner.Scanner
	stack  lambda.Stack
	locals []*ast.Local
}

func (p *parser) parse() (*Expr, error) {
	sc, err := scanner.New(p.source, append(p.scannerOptions, scanner.WithDebug(p.debug))...)
	if err != nil {
		return nil, err
	}
	p.sc = sc

	root, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if tok := p.sc.Current(); tok.Kind != token.EOF {
		if p.debug {
			log.Println("not consumed token: ", tok)
		}
		return nil, p.createInvalidTokenError(tok)
	}

	if p.debug {
		pp.Println(p.source)
		pp.Println(root)
		log.Println("type: ", root.Type())
	}

	return &Expr{
		Source: p.source,
		root:   root,
	}, nil
}

func (p *parser) advance() error {
	return p.sc.Advance()
}

func (p *parser) expect(kind token.Kind) (token.Token, error) {
	tok := p.sc.Current()
	if tok.Kind != kind {
		return tok, types.NewError(types.SyntaxErrorTag, tok.Offset, "expected %s but got %s", kind, describe(tok))
	}
	return tok, p.advance()
}

func (p *parser) parseExpr(minBP uint8) (ast.Node, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.sc.Current()
		bp, isInfixOP := infixOperatorBindingPowerMap[tok.Kind]
		if !isInfixOP || bp < minBP {
			return left, nil
		}
		if p.debug {
			log.Println("OP", minBP, tok)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}

		if tok.Kind == token.LBra {
			left, err = p.parseIndex(tok, left)
			if err != nil {
				return nil, err
			}
			continue
		}

		rightBP := bp + 1
		if rightAssociativeOperators[tok.Kind] {
			rightBP = bp
		}
		right, err := p.parseExpr(rightBP)
		if err != nil {
			return nil, err
		}
		left, err = newBinary(tok, left, right)
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) parsePrefix() (ast.Node, error) {
	tok := p.sc.Current()
	if p.debug {
		log.Println("first token: ", tok)
	}

	if bp, isPrefixOP := prefixOperatorBindingPowerMap[tok.Kind]; isPrefixOP {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseExpr(bp)
		if err != nil {
			return nil, err
		}
		return newUnary(tok, operand)
	}

	switch tok.Kind {
	case token.Int:
		v, _ := tok.Int()
		return p.constant(v, tok)
	case token.Real:
		v, _ := tok.Real()
		return p.constant(v, tok)
	case token.Imaginary:
		v, _ := tok.Real()
		return p.constant(complex(0, v), tok)
	case token.Date:
		v, _ := tok.Date()
		return p.constant(v, tok)
	case token.String:
		return p.constant(tok.Text, tok)
	case token.True:
		return p.constant(true, tok)
	case token.False:
		return p.constant(false, tok)

	case token.MultVarI, token.MultVarR:
		return p.parseMultipliedVariable(tok)
	case token.Identifier:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.sc.Current().Kind == token.Arrow {
			return nil, types.NewError(types.SyntaxErrorTag, tok.Offset, "a lambda is only allowed as the last argument of a higher-order function")
		}
		return p.resolveIdentifier(tok)
	case token.Functor:
		return p.parseCall(tok)
	case token.ClassName:
		return p.parseQualified(tok)

	case token.LPar:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPar); err != nil {
			return nil, err
		}
		return inner, nil
	case token.LBra:
		return p.parseVector(tok)

	case token.If:
		return p.parseConditional(tok)
	case token.Let:
		return p.parseLet(tok)
	case token.Set:
		return p.parseSet(tok)
	case token.All, token.Any:
		if err := p.advance(); err != nil {
			return nil, err
		}
		h, _ := defaults.LookupHigherOrder(tok.Kind.String())
		return p.parseHigherOrder(tok, h)

	case token.Def, token.Undef:
		return nil, types.NewError(types.SyntaxErrorTag, tok.Offset, "%s is not supported in a formula", tok.Kind)
	}

	return nil, p.createInvalidTokenError(tok)
}

func (p *parser) constant(v any, tok token.Token) (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	return ast.NewConstant(v, tok.Offset), nil
}

// parseMultipliedVariable expands 3x into 3 * x.
func (p *parser) parseMultipliedVariable(tok token.Token) (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	var coefficient ast.Node
	if v, ok := tok.Int(); ok {
		coefficient = ast.NewConstant(v, tok.Offset)
	} else {
		v, _ := tok.Real()
		coefficient = ast.NewConstant(v, tok.Offset)
	}

	variable, err := p.resolveIdentifier(token.Token{Kind: token.Identifier, Offset: tok.Offset, Text: tok.Text})
	if err != nil {
		return nil, err
	}
	return newBinary(token.Token{Kind: token.Times, Offset: tok.Offset}, coefficient, variable)
}

// resolveIdentifier looks a name up in the lambda scopes, then the let
// locals, then the data source.
func (p *parser) resolveIdentifier(tok token.Token) (ast.Node, error) {
	name := tok.Text
	if param, ok := p.stack.Resolve(name); ok {
		return param, nil
	}
	for i := len(p.locals) - 1; i >= 0; i-- {
		if strings.EqualFold(p.locals[i].Name, name) {
			return p.locals[i], nil
		}
	}
	if v, ok := p.symbols.Get(name); ok {
		t := types.TypeOf(ast.Normalize(v))
		if t == types.Undetermined {
			return nil, types.NewError(types.TypeErrorTag, tok.Offset, "%s holds an unsupported value: %T", name, v)
		}
		return ast.NewVariable(name, t, tok.Offset), nil
	}

	err := types.NewError(types.SyntaxErrorTag, tok.Offset, "undefined identifier %s", name)
	if suggestion := p.stack.Suggest(name, append(p.localNames(), p.symbols.Keys()...)...); suggestion != "" {
		err.Err = fmt.Errorf("undefined identifier %s, did you mean %s?", name, suggestion)
		err.Extra = map[string]any{"suggestion": suggestion}
	}
	return nil, err
}

func (p *parser) localNames() []string {
	return lo.Map(p.locals, func(l *ast.Local, _ int) string {
		return l.Name
	})
}

func (p *parser) parseIndex(tok token.Token, target ast.Node) (ast.Node, error) {
	index, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBra); err != nil {
		return nil, err
	}
	if target.Type() != types.Vector {
		return nil, types.NewError(types.TypeErrorTag, tok.Offset, "cannot index %s", target.Type())
	}
	if index.Type() != types.Integer {
		return nil, types.NewError(types.TypeErrorTag, index.Offset(), "index must be integer but is %s", index.Type())
	}
	return ast.NewIndex(target, index, tok.Offset), nil
}

func (p *parser) parseVector(tok token.Token) (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	items := []ast.Node{}
	if p.sc.Current().Kind != token.RBra {
		for {
			item, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if !isRealLike(item.Type()) {
				return nil, types.NewError(types.TypeErrorTag, item.Offset(), "vector item must be real but is %s", item.Type())
			}
			items = append(items, coerceOperand(item, types.Real))

			if p.sc.Current().Kind != token.Comma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(token.RBra); err != nil {
		return nil, err
	}
	return fold(ast.NewVectorLiteral(items, tok.Offset), items...), nil
}

func (p *parser) parseConditional(tok token.Token) (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if cond.Type() != types.Bool {
		return nil, types.NewError(types.TypeErrorTag, cond.Offset(), "condition must be bool but is %s", cond.Type())
	}
	if _, err := p.expect(token.Then); err != nil {
		return nil, err
	}
	then, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}

	var els ast.Node
	switch next := p.sc.Current(); next.Kind {
	case token.Elif:
		els, err = p.parseConditional(next)
	case token.Else:
		if err = p.advance(); err == nil {
			els, err = p.parseExpr(0)
		}
	default:
		err = types.NewError(types.SyntaxErrorTag, next.Offset, "expected else but got %s", describe(next))
	}
	if err != nil {
		return nil, err
	}

	then, els, err = unify(tok.Offset, then, els)
	if err != nil {
		return nil, err
	}
	return ast.NewConditional(cond, then, els, tok.Offset), nil
}

func (p *parser) parseLet(tok token.Token) (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	mark := len(p.locals)
	defer func() {
		p.locals = p.locals[:mark]
	}()

	var locals []*ast.Local
	var values []ast.Node
	for {
		nameTok, err := p.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Eq); err != nil {
			return nil, err
		}
		value, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}

		local := ast.NewLocal(nameTok.Text, value.Type(), nameTok.Offset)
		locals = append(locals, local)
		values = append(values, value)
		p.locals = append(p.locals, local)

		if p.sc.Current().Kind != token.Comma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.In); err != nil {
		return nil, err
	}

	body, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return ast.NewLet(locals, values, body, tok.Offset), nil
}

func (p *parser) parseSet(tok token.Token) (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Eq); err != nil {
		return nil, err
	}
	value, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return ast.NewAssign(nameTok.Text, value, tok.Offset), nil
}

func (p *parser) parseQualified(tok token.Token) (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.DoubleColon); err != nil {
		return nil, err
	}

	member := p.sc.Current()
	name := tok.Text + "::" + member.Text
	switch member.Kind {
	case token.Functor:
		member.Text = name
		return p.parseCall(member)
	case token.Identifier:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if v, ok := defaults.DefaultSymbolTable.Get(name); ok {
			return ast.NewConstant(v, tok.Offset), nil
		}
		return p.resolveIdentifier(token.Token{Kind: token.Identifier, Offset: tok.Offset, Text: name})
	}
	return nil, p.createInvalidTokenError(member)
}

func (p *parser) parseCall(tok token.Token) (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if h, ok := defaults.LookupHigherOrder(tok.Text); ok {
		return p.parseHigherOrder(tok, h)
	}

	fn, ok := defaults.LookupFunction(tok.Text)
	if !ok {
		err := types.NewError(types.SyntaxErrorTag, tok.Offset, "undefined function %s", tok.Text)
		if suggestion := lambda.Closest(tok.Text, defaults.FunctionNames()); suggestion != "" {
			err.Err = fmt.Errorf("undefined function %s, did you mean %s?", tok.Text, suggestion)
			err.Extra = map[string]any{"suggestion": suggestion}
		}
		return nil, err
	}

	if _, err := p.expect(token.LPar); err != nil {
		return nil, err
	}
	args, err := p.parseArguments()
	if err != nil {
		return nil, err
	}

	minimum, maximum := fn.Arity()
	if len(args) < minimum || len(args) > maximum {
		return nil, types.NewError(types.SyntaxErrorTag, tok.Offset, "%s takes %d to %d arguments but got %d", tok.Text, minimum, maximum, len(args))
	}
	params := fn.Params()
	for i := range args {
		if args[i], err = coerceArgument(tok.Text, i, args[i], params[i]); err != nil {
			return nil, err
		}
	}
	return fold(ast.NewCall(fn, args, tok.Offset), args...), nil
}

// parseArguments parses a comma separated list up to and including ")".
func (p *parser) parseArguments() ([]ast.Node, error) {
	var args []ast.Node
	if p.sc.Current().Kind == token.RPar {
		return args, p.advance()
	}
	for {
		arg, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.sc.Current().Kind != token.Comma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.RPar); err != nil {
		return nil, err
	}
	return args, nil
}

// parseHigherOrder parses "(args..., lambda)" after the function name.
func (p *parser) parseHigherOrder(tok token.Token, h *defaults.HigherOrder) (ast.Node, error) {
	if _, err := p.expect(token.LPar); err != nil {
		return nil, err
	}

	args := make([]ast.Node, len(h.Args))
	for i, want := range h.Args {
		arg, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if args[i], err = coerceArgument(h.Name, i, arg, want); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Comma); err != nil {
			return nil, err
		}
	}

	fn, err := p.parseLambda(h)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPar); err != nil {
		return nil, err
	}

	result := h.Result(fn.Result())
	if result == types.Undetermined {
		return nil, &types.Error{
			Tag:    types.TypeMismatchErrorTag,
			Offset: fn.Offset(),
			Err:    &lambda.MismatchError{Expected: h.Returns, Accepted: h.Accepts, Actual: fn.Result()},
		}
	}
	return ast.NewHigherOrder(h.Name, args, fn, result, h.Impl, tok.Offset), nil
}

// parseLambda parses "x => body" or "(x, y) => body".
func (p *parser) parseLambda(h *defaults.HigherOrder) (*ast.Lambda, error) {
	var names []token.Token
	switch tok := p.sc.Current(); tok.Kind {
	case token.Identifier:
		names = append(names, tok)
		if err := p.advance(); err != nil {
			return nil, err
		}
	case token.LPar:
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			name, err := p.expect(token.Identifier)
			if err != nil {
				return nil, err
			}
			names = append(names, name)
			if p.sc.Current().Kind != token.Comma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.RPar); err != nil {
			return nil, err
		}
	default:
		return nil, types.NewError(types.SyntaxErrorTag, tok.Offset, "%s expects a lambda but got %s", h.Name, describe(tok))
	}
	arrow, err := p.expect(token.Arrow)
	if err != nil {
		return nil, err
	}
	if len(names) != len(h.Params) {
		return nil, types.NewError(types.SyntaxErrorTag, names[0].Offset, "the lambda of %s takes %d parameters but got %d", h.Name, len(h.Params), len(names))
	}

	specs := make([]lambda.ParamSpec, len(names))
	for i, name := range names {
		specs[i] = lambda.ParamSpec{Name: name.Text, Type: h.Params[i], Offset: name.Offset}
	}
	if _, err := p.stack.Push(specs...); err != nil {
		return nil, err
	}

	body, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.debug {
		log.Println("lambda body at ", arrow.Offset, ": ", body.Type(), " visible: ", len(p.stack.VisibleParameters()))
	}

	if h.Upgrade {
		fn, _, err := p.stack.FinalizeUpgrade(body, h.Returns)
		return fn, err
	}
	return p.stack.Finalize(body, h.Returns)
}

func (p *parser) createInvalidTokenError(tok token.Token) error {
	if tok.Kind == token.EOF {
		return types.NewError(types.SyntaxErrorTag, tok.Offset, "unexpected end of formula")
	}
	return types.NewError(types.SyntaxErrorTag, tok.Offset, "unexpected %s", describe(tok))
}

func describe(tok token.Token) string {
	switch {
	case tok.Kind == token.EOF:
		return "end of formula"
	case tok.Kind.IsName():
		return tok.Kind.String() + " " + tok.Text
	case tok.Kind.IsLiteral():
		return tok.Kind.String() + " literal"
	default:
		return strconv.Quote(tok.Kind.String())
	}
}
