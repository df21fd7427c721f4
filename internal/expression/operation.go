package expression

import (
	"github.com/karupanerura/series-formula/internal/ast"
	"github.com/karupanerura/series-formula/internal/token"
	"github.com/karupanerura/series-formula/internal/types"
)

func isRealLike(t types.Type) bool {
	return t == types.Integer || t == types.Real
}

// binaryResultType decides the operand type both sides are coerced to and
// the type of the result. An Undetermined operand type leaves the sides as
// they are.
func binaryResultType(op token.Kind, lt, rt types.Type) (operand, result types.Type, ok bool) {
	numeric := lt.IsNumeric() && rt.IsNumeric()
	switch op {
	case token.And, token.Or:
		if lt == types.Bool && rt == types.Bool {
			return types.Bool, types.Bool, true
		}

	case token.Eq, token.Ne:
		if numeric {
			return types.Widest(lt, rt), types.Bool, true
		}
		switch {
		case lt != rt:
		case lt == types.Bool, lt == types.String, lt == types.DateType, lt == types.Vector:
			return lt, types.Bool, true
		}

	case token.Lt, token.Le, token.Gt, token.Ge:
		if isRealLike(lt) && isRealLike(rt) {
			return types.Widest(lt, rt), types.Bool, true
		}
		if lt == rt && (lt == types.String || lt == types.DateType) {
			return lt, types.Bool, true
		}

	case token.Plus:
		if numeric {
			w := types.Widest(lt, rt)
			return w, w, true
		}
		switch {
		case lt == types.String && rt == types.String:
			return types.String, types.String, true
		case lt == types.DateType && rt == types.Integer, lt == types.Integer && rt == types.DateType:
			return types.Undetermined, types.DateType, true
		case lt == types.Vector && rt == types.Vector:
			return types.Vector, types.Vector, true
		}

	case token.Minus:
		if numeric {
			w := types.Widest(lt, rt)
			return w, w, true
		}
		switch {
		case lt == types.DateType && rt == types.Integer:
			return types.Undetermined, types.DateType, true
		case lt == types.DateType && rt == types.DateType:
			return types.DateType, types.Integer, true
		case lt == types.Vector && rt == types.Vector:
			return types.Vector, types.Vector, true
		}

	case token.Times:
		if numeric {
			w := types.Widest(lt, rt)
			return w, w, true
		}
		switch {
		case isRealLike(lt) && rt == types.Vector, lt == types.Vector && isRealLike(rt):
			return types.Real, types.Vector, true
		case lt == types.Vector && rt == types.Vector:
			return types.Vector, types.Real, true
		}

	case token.Divide:
		if numeric {
			w := types.Widest(lt, rt)
			if w == types.Integer {
				w = types.Real
			}
			return w, w, true
		}
		if lt == types.Vector && isRealLike(rt) {
			return types.Real, types.Vector, true
		}

	case token.Mod:
		if isRealLike(lt) && isRealLike(rt) {
			w := types.Widest(lt, rt)
			return w, w, true
		}

	case token.Caret:
		if numeric {
			w := types.Widest(lt, rt)
			if w == types.Integer {
				w = types.Real
			}
			return w, w, true
		}

	case token.PointTimes, token.PointDivide:
		if lt == types.Vector && rt == types.Vector {
			return types.Vector, types.Vector, true
		}
	}
	return types.Undetermined, types.Undetermined, false
}

// coerceOperand converts a numeric operand; vectors and the other kinds
// pass through.
func coerceOperand(n ast.Node, to types.Type) ast.Node {
	if !n.Type().IsNumeric() || !to.IsNumeric() {
		return n
	}
	converted, ok := ast.Coerce(n, to)
	if !ok {
		return n
	}
	return converted
}

func newBinary(op token.Token, left, right ast.Node) (ast.Node, error) {
	operand, result, ok := binaryResultType(op.Kind, left.Type(), right.Type())
	if !ok {
		return nil, types.NewError(types.TypeErrorTag, op.Offset, "operator %s cannot be applied to %s and %s", op.Kind, left.Type(), right.Type())
	}

	left, right = coerceOperand(left, operand), coerceOperand(right, operand)
	return fold(ast.NewBinary(op.Kind.String(), left, right, result, op.Offset), left, right), nil
}

func newUnary(op token.Token, operand ast.Node) (ast.Node, error) {
	t := operand.Type()
	switch op.Kind {
	case token.Not:
		if t == types.Bool {
			return fold(ast.NewUnary("not", operand, op.Offset), operand), nil
		}
	case token.Plus, token.Minus:
		if t.IsNumeric() || t == types.Vector {
			return fold(ast.NewUnary(op.Kind.String(), operand, op.Offset), operand), nil
		}
	}
	return nil, types.NewError(types.TypeErrorTag, op.Offset, "operator %s cannot be applied to %s", op.Kind, t)
}

// unify brings two branch values to one type.
func unify(offset int, a, b ast.Node) (ast.Node, ast.Node, error) {
	if a.Type() == b.Type() {
		return a, b, nil
	}
	if a.Type().IsNumeric() && b.Type().IsNumeric() {
		w := types.Widest(a.Type(), b.Type())
		return coerceOperand(a, w), coerceOperand(b, w), nil
	}
	return nil, nil, types.NewError(types.TypeErrorTag, offset, "branches have different types: %s and %s", a.Type(), b.Type())
}

// coerceArgument converts an argument to the parameter type of a builtin.
// Undetermined parameters take anything.
func coerceArgument(name string, i int, arg ast.Node, to types.Type) (ast.Node, error) {
	if to == types.Undetermined || arg.Type() == to {
		return arg, nil
	}
	if converted, ok := ast.Coerce(arg, to); ok {
		return converted, nil
	}
	return nil, types.NewError(types.TypeErrorTag, arg.Offset(), "argument[%d] of %s must be %s but is %s", i, name, to, arg.Type())
}

// fold evaluates n at compile time when every operand is a constant. Errors
// are left for evaluation to report.
func fold(n ast.Node, operands ...ast.Node) ast.Node {
	for _, operand := range operands {
		if !ast.IsConstant(operand) {
			return n
		}
	}
	v, err := n.Eval(ast.NewFrame(nil))
	if err != nil || types.TypeOf(v) != n.Type() {
		return n
	}
	return ast.NewConstant(v, n.Offset())
}
