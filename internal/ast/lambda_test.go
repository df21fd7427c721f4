package ast_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/karupanerura/series-formula/internal/ast"
	"github.com/karupanerura/series-formula/internal/types"
)

func TestClosure(t *testing.T) {
	t.Parallel()

	// (x) => x * scale where scale is an outer parameter
	scale := ast.NewParameter("scale", types.Real, 0)
	x := ast.NewParameter("x", types.Real, 10)
	lambda := ast.NewLambda([]*ast.Parameter{x}, ast.NewBinary("*", x, scale, types.Real, 12), types.Real)

	if expected := "(x: real) => real"; lambda.String() != expected {
		t.Errorf("expect %q but got %q", expected, lambda.String())
	}
	if lambda.Offset() != 10 {
		t.Errorf("unexpected offset: %d", lambda.Offset())
	}

	outer := ast.NewFrame(nil)
	outer.Bind(scale, 3.0)
	fn, err := lambda.Eval(outer)
	if err != nil {
		t.Fatal(err)
	}
	closure := fn.(*ast.Closure)

	// integer arguments widen to the parameter type
	if v, err := closure.Call(int64(2)); err != nil || v != 6.0 {
		t.Errorf("expect 6 but got %v, %v", v, err)
	}
	if _, err := closure.Call(1.0, 2.0); !types.IsTag(err, types.TypeErrorTag) {
		t.Errorf("arity mismatch must be TypeError: %v", err)
	}
}

func TestHigherOrder(t *testing.T) {
	t.Parallel()

	x := ast.NewParameter("x", types.Real, 0)
	lambda := ast.NewLambda([]*ast.Parameter{x}, ast.NewUnary("-", x, 0), types.Real)
	apply := func(args []any, fn *ast.Closure) (any, error) {
		vec := args[0].([]float64)
		ret := make([]float64, len(vec))
		for i, v := range vec {
			r, err := fn.Call(v)
			if err != nil {
				return nil, err
			}
			ret[i] = r.(float64)
		}
		return ret, nil
	}

	n := ast.NewHigherOrder("map", []ast.Node{constant([]float64{1, 2})}, lambda, types.Vector, apply, 0)
	if n.Type() != types.Vector {
		t.Errorf("unexpected type: %s", n.Type())
	}
	actual, err := n.Eval(ast.NewFrame(nil))
	if err != nil {
		t.Fatal(err)
	}
	if expected := []float64{-1, -2}; !cmp.Equal(expected, actual) {
		t.Error(cmp.Diff(expected, actual))
	}
}
