package defaults

import (
	"fmt"

	"github.com/karupanerura/series-formula/internal/ast"
	"github.com/karupanerura/series-formula/internal/types"
)

// HigherOrder is the signature of a builtin whose last argument is a lambda.
type HigherOrder struct {
	Name string
	// Args are the types of the leading, non-lambda arguments.
	Args []types.Type
	// Params are the lambda parameter types.
	Params []types.Type
	// Returns is the declared lambda return type. With Upgrade the body may
	// widen it and Result sees the widened type.
	Returns types.Type
	Upgrade bool
	// Accepts names the return types Result takes in upgrade mode.
	Accepts []types.Type
	// Result maps the lambda return type to the call's type. Undetermined
	// means the lambda is unusable here.
	Result func(types.Type) types.Type
	Impl   ast.HigherOrderFunc
}

// MaxVectorLength bounds vectors built by tabulate.
const MaxVectorLength = 1 << 24

func always(t types.Type) func(types.Type) types.Type {
	return func(types.Type) types.Type {
		return t
	}
}

func aggregateHigherOrdersToMap(hs ...*HigherOrder) map[string]*HigherOrder {
	m := make(map[string]*HigherOrder, len(hs))
	for _, h := range hs {
		if _, duplicated := m[h.Name]; duplicated {
			panic(fmt.Sprintf("duplicated function name: %s", h.Name))
		}
		m[h.Name] = h
	}
	return m
}

func toReal(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, types.NewRuntimeError(types.TypeErrorTag, "lambda returned %T instead of a real", v)
	}
}

func toBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, types.NewRuntimeError(types.TypeErrorTag, "lambda returned %T instead of a bool", v)
	}
	return b, nil
}

func quantifier(name string, want bool) *HigherOrder {
	return &HigherOrder{
		Name:    name,
		Args:    []types.Type{types.Vector},
		Params:  []types.Type{types.Real},
		Returns: types.Bool,
		Result:  always(types.Bool),
		Impl: func(args []any, fn *ast.Closure) (any, error) {
			for i, x := range args[0].([]float64) {
				v, err := fn.Call(x)
				if err != nil {
					return nil, fmt.Errorf("item[%d]: %w", i, err)
				}
				b, err := toBool(v)
				if err != nil {
					return nil, err
				}
				if b == want {
					return want, nil
				}
			}
			return !want, nil
		},
	}
}

// HigherOrders are the lambda-taking builtins by name.
var HigherOrders = aggregateHigherOrdersToMap(
	&HigherOrder{
		Name:    "map",
		Args:    []types.Type{types.Vector},
		Params:  []types.Type{types.Real},
		Returns: types.Real,
		Result:  always(types.Vector),
		Impl: func(args []any, fn *ast.Closure) (any, error) {
			vec := args[0].([]float64)
			ret := make([]float64, len(vec))
			for i, x := range vec {
				v, err := fn.Call(x)
				if err != nil {
					return nil, fmt.Errorf("item[%d]: %w", i, err)
				}
				if ret[i], err = toReal(v); err != nil {
					return nil, err
				}
			}
			return ret, nil
		},
	},
	&HigherOrder{
		Name:    "zip",
		Args:    []types.Type{types.Vector, types.Vector},
		Params:  []types.Type{types.Real, types.Real},
		Returns: types.Real,
		Result:  always(types.Vector),
		Impl: func(args []any, fn *ast.Closure) (any, error) {
			xs, ys := args[0].([]float64), args[1].([]float64)
			if len(xs) != len(ys) {
				return nil, types.NewRuntimeError(types.ValueErrorTag, "vector lengths differ: %d and %d", len(xs), len(ys))
			}
			ret := make([]float64, len(xs))
			for i := range xs {
				v, err := fn.Call(xs[i], ys[i])
				if err != nil {
					return nil, fmt.Errorf("item[%d]: %w", i, err)
				}
				if ret[i], err = toReal(v); err != nil {
					return nil, err
				}
			}
			return ret, nil
		},
	},
	&HigherOrder{
		Name:    "reduce",
		Args:    []types.Type{types.Vector, types.Real},
		Params:  []types.Type{types.Real, types.Real},
		Returns: types.Real,
		Result:  always(types.Real),
		Impl: func(args []any, fn *ast.Closure) (any, error) {
			acc := args[1].(float64)
			for i, x := range args[0].([]float64) {
				v, err := fn.Call(acc, x)
				if err != nil {
					return nil, fmt.Errorf("item[%d]: %w", i, err)
				}
				if acc, err = toReal(v); err != nil {
					return nil, err
				}
			}
			return acc, nil
		},
	},
	&HigherOrder{
		Name:    "filter",
		Args:    []types.Type{types.Vector},
		Params:  []types.Type{types.Real},
		Returns: types.Bool,
		Result:  always(types.Vector),
		Impl: func(args []any, fn *ast.Closure) (any, error) {
			ret := []float64{}
			for i, x := range args[0].([]float64) {
				v, err := fn.Call(x)
				if err != nil {
					return nil, fmt.Errorf("item[%d]: %w", i, err)
				}
				keep, err := toBool(v)
				if err != nil {
					return nil, err
				}
				if keep {
					ret = append(ret, x)
				}
			}
			return ret, nil
		},
	},
	&HigherOrder{
		Name:    "tabulate",
		Args:    []types.Type{types.Integer},
		Params:  []types.Type{types.Integer},
		Returns: types.Undetermined,
		Upgrade: true,
		Accepts: []types.Type{types.Integer, types.Real},
		Result: func(t types.Type) types.Type {
			if t == types.Integer || t == types.Real {
				return types.Vector
			}
			return types.Undetermined
		},
		Impl: func(args []any, fn *ast.Closure) (any, error) {
			n := args[0].(int64)
			if n < 0 {
				return nil, types.NewRuntimeError(types.ValueErrorTag, "negative length: %d", n)
			}
			if n > MaxVectorLength {
				return nil, types.NewRuntimeError(types.ValueErrorTag, "length %d exceeds %d", n, MaxVectorLength)
			}
			ret := make([]float64, n)
			for i := int64(0); i < n; i++ {
				v, err := fn.Call(i)
				if err != nil {
					return nil, fmt.Errorf("item[%d]: %w", i, err)
				}
				if ret[i], err = toReal(v); err != nil {
					return nil, err
				}
			}
			return ret, nil
		},
	},
	&HigherOrder{
		Name:    "capply",
		Args:    []types.Type{types.Complex},
		Params:  []types.Type{types.Complex},
		Returns: types.Complex,
		Result:  always(types.Complex),
		Impl: func(args []any, fn *ast.Closure) (any, error) {
			return fn.Call(args[0])
		},
	},
	quantifier("all", false),
	quantifier("any", true),
)
