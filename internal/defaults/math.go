package defaults

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/karupanerura/series-formula/internal/types"
)

func realFunction(name string, f func(float64) float64) types.Function {
	return types.MustNewFunction(name, []types.Argument{
		{Name: "x"},
	}, func(x float64) (float64, error) {
		return f(x), nil
	})
}

var Math = aggregateFunctionsToMap(
	realFunction("abs", math.Abs),
	realFunction("exp", math.Exp),
	realFunction("sin", math.Sin),
	realFunction("cos", math.Cos),
	realFunction("tan", math.Tan),
	realFunction("atan", math.Atan),
	types.MustNewFunction("sqrt", []types.Argument{
		{Name: "x"},
	}, func(x float64) (float64, error) {
		if x < 0 {
			return 0, &types.Error{
				Tag:    types.ValueErrorTag,
				Offset: types.NoOffset,
				Err:    fmt.Errorf("x is negative: %v", x),
			}
		}
		return math.Sqrt(x), nil
	}),
	types.MustNewFunction("log", []types.Argument{
		{Name: "x"},
	}, func(x float64) (float64, error) {
		if x <= 0 {
			return 0, &types.Error{
				Tag:    types.ValueErrorTag,
				Offset: types.NoOffset,
				Err:    fmt.Errorf("x is not positive: %v", x),
			}
		}
		return math.Log(x), nil
	}),
	types.MustNewFunction("round", []types.Argument{
		{Name: "x"},
	}, func(x float64) (int64, error) {
		if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxInt64 {
			return 0, &types.Error{
				Tag:    types.ValueErrorTag,
				Offset: types.NoOffset,
				Err:    fmt.Errorf("x cannot be rounded to an integer: %v", x),
			}
		}
		return int64(math.Round(x)), nil
	}),
	types.MustNewFunction("max", []types.Argument{
		{Name: "x"},
		{Name: "y"},
	}, func(x, y float64) (float64, error) {
		return math.Max(x, y), nil
	}),
	types.MustNewFunction("min", []types.Argument{
		{Name: "x"},
		{Name: "y"},
	}, func(x, y float64) (float64, error) {
		return math.Min(x, y), nil
	}),
)

var Complex = aggregateFunctionsToMap(
	types.MustNewFunction("complex", []types.Argument{
		{Name: "re"},
		{Name: "im", Default: 0.0},
	}, func(re, im float64) (complex128, error) {
		return complex(re, im), nil
	}),
	types.MustNewFunction("re", []types.Argument{
		{Name: "z"},
	}, func(z complex128) (float64, error) {
		return real(z), nil
	}),
	types.MustNewFunction("im", []types.Argument{
		{Name: "z"},
	}, func(z complex128) (float64, error) {
		return imag(z), nil
	}),
	types.MustNewFunction("mag", []types.Argument{
		{Name: "z"},
	}, func(z complex128) (float64, error) {
		return cmplx.Abs(z), nil
	}),
	types.MustNewFunction("phase", []types.Argument{
		{Name: "z"},
	}, func(z complex128) (float64, error) {
		return cmplx.Phase(z), nil
	}),
	types.MustNewFunction("conj", []types.Argument{
		{Name: "z"},
	}, func(z complex128) (complex128, error) {
		return cmplx.Conj(z), nil
	}),
)

var Vector = aggregateFunctionsToMap(
	types.MustNewFunction("len", []types.Argument{
		{Name: "v"},
	}, func(v []float64) (int64, error) {
		return int64(len(v)), nil
	}),
	types.MustNewFunction("sum", []types.Argument{
		{Name: "v"},
	}, func(v []float64) (float64, error) {
		sum := 0.0
		for _, x := range v {
			sum += x
		}
		return sum, nil
	}),
	types.MustNewFunction("mean", []types.Argument{
		{Name: "v"},
	}, func(v []float64) (float64, error) {
		if len(v) == 0 {
			return 0, &types.Error{
				Tag:    types.ZeroDivisionErrorTag,
				Offset: types.NoOffset,
				Err:    fmt.Errorf("mean of an empty vector"),
			}
		}
		sum := 0.0
		for _, x := range v {
			sum += x
		}
		return sum / float64(len(v)), nil
	}),
)

// MathConstants are the values of the math class: math::pi.
var MathConstants = map[string]any{
	"pi": math.Pi,
	"e":  math.E,
	"i":  complex(0, 1),
}
