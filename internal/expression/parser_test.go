package expression_test

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/sync/errgroup"

	"github.com/karupanerura/series-formula/internal/defaults"
	"github.com/karupanerura/series-formula/internal/expression"
	"github.com/karupanerura/series-formula/internal/types"
)

var fixedClock = func() time.Time {
	return time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
}

func newSymbols() *types.SymbolTable {
	return types.NewSymbolTableWith(map[string]any{
		"revenue": []float64{1, 2, 3},
		"cost":    2.5,
		"n":       int64(4),
		"start":   types.Date{Year: 2020, Month: time.January, Day: 31},
		"z":       complex(1, 2),
		"name":    "abc",
		"flag":    true,
	}, defaults.DefaultSymbolTable)
}

// nestedMaps builds depth nested map lambdas; every level yields 1.
func nestedMaps(depth int) string {
	inner := fmt.Sprintf("x%d", depth)
	for i := depth; i >= 1; i-- {
		inner = fmt.Sprintf("map(revenue, x%d => %s)[0]", i, inner)
	}
	return inner
}

func TestParseExpr(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		source                string
		expected              any
		expectToBeParseErr    bool
		expectToBeEvaluateErr bool
		errTag                types.ErrorTag
		debug                 bool
	}{
		// syntax
		{source: "", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "+", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "*", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "1 2", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "()", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "((1)", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "(1))", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "sqrt((1)", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "sqrt(1))", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "revenue[[1]", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "3else", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "if true then 1", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "let a = 1", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "def x = 1", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "undef x", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "x => x", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "unknown + 1", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "nosuch(1)", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "math::tau", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "sqrt()", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "max(1, 2, 3)", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: `"abc`, expectToBeParseErr: true, errTag: types.LexicalErrorTag},
		{source: "1 # 2", expectToBeParseErr: true, errTag: types.LexicalErrorTag},
		{source: "30@feb21", expectToBeParseErr: true, errTag: types.LexicalErrorTag},

		// arithmetic
		{source: "1 + 2", expected: int64(3)},
		{source: "1 + 2 * 3", expected: int64(7)},
		{source: "(1 + 2) * 3", expected: int64(9)},
		{source: "7 / 2", expected: 3.5},
		{source: "7 % 3", expected: int64(1)},
		{source: "7.5 % 2", expected: 1.5},
		{source: "2 ^ 3 ^ 2", expected: 512.0},
		{source: "-2 ^ 2", expected: -4.0},
		{source: "2 ^ 0.5", expected: math.Sqrt2},
		{source: "- -3", expected: int64(3)},
		{source: "2n", expected: int64(8)},
		{source: "1.5n + 1", expected: 7.0},
		{source: "1 % 0", expectToBeEvaluateErr: true, errTag: types.ZeroDivisionErrorTag},
		{source: "1 + true", expectToBeParseErr: true, errTag: types.TypeErrorTag},
		{source: "not 1", expectToBeParseErr: true, errTag: types.TypeErrorTag},
		{source: "-name", expectToBeParseErr: true, errTag: types.TypeErrorTag},

		// complex
		{source: "3i * 3i", expected: complex(-9, 0)},
		{source: "1 + 2i", expected: complex(1, 2)},
		{source: "z * 2", expected: complex(2, 4)},
		{source: "re(z) + im(z)", expected: 3.0},
		{source: "complex(1)", expected: complex(1, 0)},
		{source: "z ^ 2", expected: complex(-3, 4)},
		{source: "z < 1", expectToBeParseErr: true, errTag: types.TypeErrorTag},
		{source: "z % 2", expectToBeParseErr: true, errTag: types.TypeErrorTag},

		// comparison and logic
		{source: "1 = 1 and 2 < 3 or false", expected: true},
		{source: "not n > 3", expected: false},
		{source: "n = 4.0", expected: true},
		{source: "n <> 4", expected: false},
		{source: "flag and n >= 4", expected: true},
		{source: `name = "abc"`, expected: true},
		{source: `"a" + "b"`, expected: "ab"},
		{source: `"a" < "b"`, expected: true},
		{source: "true = 1", expectToBeParseErr: true, errTag: types.TypeErrorTag},

		// builtins
		{source: "sqrt(16)", expected: 4.0},
		{source: "math::sqrt(16)", expected: 4.0},
		{source: "math :: sqrt (16)", expected: 4.0},
		{source: "math::pi", expected: math.Pi},
		{source: "math::i * math::i", expected: complex(-1, 0)},
		{source: "abs(-3)", expected: 3.0},
		{source: "round(2.6)", expected: int64(3)},
		{source: "max(1, 2.5)", expected: 2.5},
		{source: "min(cost, 1)", expected: 1.0},
		{source: "SUM(Revenue)", expected: 6.0},
		{source: "len(revenue)", expected: int64(3)},
		{source: "mean(revenue)", expected: 2.0},
		{source: "mean([])", expectToBeEvaluateErr: true, errTag: types.ZeroDivisionErrorTag},
		{source: "sqrt(-1)", expectToBeEvaluateErr: true, errTag: types.ValueErrorTag},
		{source: "log(0)", expectToBeEvaluateErr: true, errTag: types.ValueErrorTag},
		{source: "sqrt(name)", expectToBeParseErr: true, errTag: types.TypeErrorTag},
		{source: "len(1)", expectToBeParseErr: true, errTag: types.TypeErrorTag},

		// vectors
		{source: "[]", expected: []float64{}},
		{source: "[1, 2.5]", expected: []float64{1, 2.5}},
		{source: "revenue[1]", expected: 2.0},
		{source: "[4, 5][0] + 1", expected: 5.0},
		{source: "revenue[3]", expectToBeEvaluateErr: true, errTag: types.IndexErrorTag},
		{source: "revenue[1.0]", expectToBeParseErr: true, errTag: types.TypeErrorTag},
		{source: "n[0]", expectToBeParseErr: true, errTag: types.TypeErrorTag},
		{source: "[1, 2, 3] .* revenue", expected: []float64{1, 4, 9}},
		{source: "revenue ./ [1, 2, 3]", expected: []float64{1, 1, 1}},
		{source: "[1, 2] + [3, 4]", expected: []float64{4, 6}},
		{source: "[1, 2] - [3, 4]", expected: []float64{-2, -2}},
		{source: "2 * revenue", expected: []float64{2, 4, 6}},
		{source: "revenue * 2", expected: []float64{2, 4, 6}},
		{source: "revenue / 2", expected: []float64{0.5, 1, 1.5}},
		{source: "revenue * revenue", expected: 14.0},
		{source: "-revenue", expected: []float64{-1, -2, -3}},
		{source: "revenue + [1]", expectToBeEvaluateErr: true, errTag: types.ValueErrorTag},
		{source: `[1, "a"]`, expectToBeParseErr: true, errTag: types.TypeErrorTag},

		// conditionals and bindings
		{source: "if n > 3 then 1 else 2.5", expected: 1.0},
		{source: "if false then 1 elif true then 2 else 3", expected: int64(2)},
		{source: "if false then 1 elif false then 2 else 3", expected: int64(3)},
		{source: "if 1 then 2 else 3", expectToBeParseErr: true, errTag: types.TypeErrorTag},
		{source: `if true then 1 else "a"`, expectToBeParseErr: true, errTag: types.TypeErrorTag},
		{source: "let a = 2, b = a * 3 in a + b", expected: int64(8)},
		{source: "let a = 2 in let a = a + 1 in a", expected: int64(3)},
		{source: "(let a = 2 in a) + a", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},

		// dates
		{source: "start + 1", expected: types.Date{Year: 2020, Month: time.February, Day: 1}},
		{source: "1 + start", expected: types.Date{Year: 2020, Month: time.February, Day: 1}},
		{source: "start - 31", expected: types.Date{Year: 2019, Month: time.December, Day: 31}},
		{source: "start - 31@dec19", expected: int64(31)},
		{source: "start > 1@jan20", expected: true},
		{source: "jan20 = 1@jan2020", expected: true},
		{source: "addmonths(start, 1)", expected: types.Date{Year: 2020, Month: time.February, Day: 29}},
		{source: "year(29@feb20) * 100 + month(dec99)", expected: int64(202012)},
		{source: "day(date(2024, 2, 29))", expected: int64(29)},
		{source: "date(2023, 2, 29)", expectToBeEvaluateErr: true, errTag: types.ValueErrorTag},
		{source: "start * 2", expectToBeParseErr: true, errTag: types.TypeErrorTag},

		// lambdas
		{source: "map(revenue, x => x * 2)", expected: []float64{2, 4, 6}},
		{source: "zip(revenue, [3, 2, 1], (a, b) => a - b)", expected: []float64{-2, 0, 2}},
		{source: "reduce(revenue, 0, (acc, x) => acc + x)", expected: 6.0},
		{source: "filter(revenue, x => x > 1)", expected: []float64{2, 3}},
		{source: "tabulate(3, i => i * i)", expected: []float64{0, 1, 4}},
		{source: "tabulate(3, i => i / 2)", expected: []float64{0, 0.5, 1}},
		{source: "all(revenue, x => x > 0)", expected: true},
		{source: "any(revenue, x => x > 2)", expected: true},
		{source: "any(revenue, x => x > 3)", expected: false},
		{source: "capply(z, w => 2)", expected: complex(2, 0)},
		{source: "capply(1, w => w * w)", expected: complex(1, 0)},
		{source: "map(revenue, X => x + 1)", expected: []float64{2, 3, 4}},
		{source: "let k = 2 in map(revenue, x => x * k)", expected: []float64{2, 4, 6}},
		{source: "map(revenue, x => reduce(revenue, 0, (acc, y) => acc + x * y))", expected: []float64{6, 12, 18}},
		{source: "map(revenue, x => map([10, 20], x => x + 1)[0])", expected: []float64{11, 11, 11}},
		{source: "map(revenue, x => 1)", expected: []float64{1, 1, 1}},
		{source: "map(revenue, x => x > 1)", expectToBeParseErr: true, errTag: types.TypeMismatchErrorTag},
		{source: "reduce(revenue, 0, (acc, x) => acc > x)", expectToBeParseErr: true, errTag: types.TypeMismatchErrorTag},
		{source: "tabulate(2, i => i > 0)", expectToBeParseErr: true, errTag: types.TypeMismatchErrorTag},
		{source: "map(revenue, (a, b) => a)", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "zip(revenue, revenue, (a, a) => a)", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "map(revenue, 1)", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "map(revenue, x => x) + x", expectToBeParseErr: true, errTag: types.SyntaxErrorTag},
		{source: "tabulate(-1, i => i)", expectToBeEvaluateErr: true, errTag: types.ValueErrorTag},
		{source: "tabulate(1152921504606846976, i => i)", expectToBeEvaluateErr: true, errTag: types.ValueErrorTag},
		{source: nestedMaps(lambdaDepth), expected: 1.0},
		{source: nestedMaps(lambdaDepth + 1), expectToBeParseErr: true, errTag: types.ResourceLimitErrorTag},
	} {
		tt := tt
		t.Run(tt.source, func(t *testing.T) {
			t.Parallel()

			symbols := newSymbols()
			opts := []expression.Option{expression.WithSymbols(symbols), expression.WithClock(fixedClock)}
			var expr *expression.Expr
			var err error
			if tt.debug {
				expr, err = expression.CompileWithDebugOutput(tt.source, opts...)
			} else {
				expr, err = expression.Compile(tt.source, opts...)
			}
			if err != nil {
				if tt.expectToBeParseErr {
					t.Logf("expected parse error: %v", err)
					if tt.errTag != "" && !types.IsTag(err, tt.errTag) {
						t.Errorf("expect %s but got %v", tt.errTag, err)
					}
					return // ok
				}
				t.Fatal(err)
			}
			if tt.expectToBeParseErr {
				t.Error("should be parse error")
				return
			}

			e := expression.Evaluator{SymbolTable: symbols}
			ret, err := e.EvaluateValue(expr)
			if err != nil {
				if tt.expectToBeEvaluateErr {
					t.Logf("expected evaluate error: %v", err)
					if tt.errTag != "" && !types.IsTag(err, tt.errTag) {
						t.Errorf("expect %s but got %v", tt.errTag, err)
					}
					return // ok
				}
				t.Fatal(err)
			}
			if tt.expectToBeEvaluateErr {
				t.Error("should be evaluate error")
				return
			}

			// check type
			retType := reflect.TypeOf(ret)
			expectedType := reflect.TypeOf(tt.expected)
			if retType != expectedType {
				t.Fatalf("expect to %s but got %s (%+v)", expectedType.String(), retType.String(), ret)
			}
			if actual := types.TypeOf(ret); actual != expr.Type() {
				t.Errorf("compiled as %s but evaluated to %s", expr.Type(), actual)
			}

			var isSame bool
			switch v := ret.(type) {
			case float64:
				isSame = math.Abs(v-tt.expected.(float64)) < 0.0000001
			case complex128:
				isSame = cmplx.Abs(v-tt.expected.(complex128)) < 0.0000001
			default:
				isSame = cmp.Equal(ret, tt.expected, cmpopts.EquateApprox(0, 0.0000001))
			}

			if !isSame {
				t.Errorf("expect to %v but got %v", tt.expected, ret)
			}
		})
	}
}

const lambdaDepth = 8

func TestCompileSuggestion(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		source     string
		suggestion string
	}{
		{source: "revenu + 1", suggestion: "revenue"},
		{source: "reveneu + 1", suggestion: "revenue"},
		{source: "map(revenue, value => valeu)", suggestion: "value"},
		{source: "let total = 1 in totl", suggestion: "total"},
		{source: "sqr(2)", suggestion: "sqrt"},
	} {
		tt := tt
		t.Run(tt.source, func(t *testing.T) {
			t.Parallel()

			_, err := expression.Compile(tt.source, expression.WithSymbols(newSymbols()))
			if !types.IsTag(err, types.SyntaxErrorTag) {
				t.Fatalf("expect SyntaxError but got %v", err)
			}
			if !strings.Contains(err.Error(), "did you mean "+tt.suggestion+"?") {
				t.Errorf("missing suggestion: %v", err)
			}
			exception := err.(types.Exception).Exception().(map[string]any)
			if exception["suggestion"] != tt.suggestion {
				t.Errorf("unexpected exception: %+v", exception)
			}
		})
	}
}

func TestCompileErrorOffset(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		source string
		offset int
	}{
		{source: "1 + ", offset: 4},
		{source: "1 + (2 * ", offset: 9},
		{source: "  revenu", offset: 2},
		{source: "map(revenue, x => x > 1)", offset: 20},
		{source: "1 + true", offset: 2},
	} {
		_, err := expression.Compile(tt.source, expression.WithSymbols(newSymbols()))
		var e *types.Error
		if !errors.As(err, &e) {
			t.Fatalf("%q: expect *types.Error but got %v", tt.source, err)
		}
		if e.Offset != tt.offset {
			t.Errorf("%q: expect offset %d but got %d (%v)", tt.source, tt.offset, e.Offset, err)
		}
	}
}

func TestCompileLambdaMismatchMessage(t *testing.T) {
	t.Parallel()

	for source, expected := range map[string]string{
		"tabulate(2, i => i > 0)":  "TypeMismatchError at 12: lambda must return integer or real but the body is bool",
		"map(revenue, x => x > 1)": "TypeMismatchError at 20: lambda must return real but the body is bool",
	} {
		_, err := expression.Compile(source, expression.WithSymbols(newSymbols()))
		if err == nil {
			t.Errorf("%q: should be error", source)
			continue
		}
		if err.Error() != expected {
			t.Errorf("%q: expect %q but got %q", source, expected, err.Error())
		}
	}
}

func TestSetStoresIntoSymbols(t *testing.T) {
	t.Parallel()

	symbols := newSymbols()
	expr, err := expression.Compile("set total = sum(revenue) * 2", expression.WithSymbols(symbols))
	if err != nil {
		t.Fatal(err)
	}
	ret, err := expr.Evaluate(symbols)
	if err != nil {
		t.Fatal(err)
	}
	if ret != 12.0 {
		t.Errorf("unexpected result: %v", ret)
	}
	if v, ok := symbols.Get("TOTAL"); !ok || v != 12.0 {
		t.Errorf("total was not stored: %v", v)
	}

	// the stored value is visible to the next formula
	expr, err = expression.Compile("total / 4", expression.WithSymbols(symbols))
	if err != nil {
		t.Fatal(err)
	}
	if ret, err := expr.Evaluate(symbols); err != nil || ret != 3.0 {
		t.Errorf("unexpected result: %v, %v", ret, err)
	}
}

func TestEvaluateWithChangedSymbols(t *testing.T) {
	t.Parallel()

	expr, err := expression.Compile("n + 1", expression.WithSymbols(newSymbols()))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := expr.Evaluate(types.NewSymbolTable()); !types.IsTag(err, types.KeyErrorTag) {
		t.Errorf("expect KeyError but got %v", err)
	}
	if _, err := expr.Evaluate(types.NewSymbolTableWith(map[string]any{"n": "x"}, nil)); !types.IsTag(err, types.TypeErrorTag) {
		t.Errorf("expect TypeError but got %v", err)
	}
	if ret, err := expr.Evaluate(types.NewSymbolTableWith(map[string]any{"n": 41}, nil)); err != nil || ret != int64(42) {
		t.Errorf("unexpected result: %v, %v", ret, err)
	}
}

func TestCompileConcurrently(t *testing.T) {
	t.Parallel()

	sources := []string{
		"map(revenue, x => map(revenue, y => x * y)[0])",
		"reduce(revenue, 0, (acc, x) => acc + x)",
		"tabulate(4, i => i)",
		"filter(revenue, x => x >= 2)",
	}
	expected := []any{
		[]float64{1, 2, 3},
		6.0,
		[]float64{0, 1, 2, 3},
		[]float64{2, 3},
	}

	results := make([]any, len(sources))
	var eg errgroup.Group
	for i, source := range sources {
		i, source := i, source
		eg.Go(func() error {
			symbols := newSymbols()
			expr, err := expression.Compile(source, expression.WithSymbols(symbols))
			if err != nil {
				return err
			}
			results[i], err = expr.Evaluate(symbols)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(expected, results) {
		t.Errorf("unexpected results: %s", cmp.Diff(expected, results))
	}
}

func FuzzParseExpr(f *testing.F) {
	for _, seed := range []string{"1 + 2", "map(revenue, x => x * 2)", "let a = 1 in a", "if flag then 1 else 2", "29@feb20 + 1", nestedMaps(3)} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, source string) {
		symbols := newSymbols()
		expr, err := expression.Compile(source, expression.WithSymbols(symbols), expression.WithClock(fixedClock))
		if err != nil {
			if _, ok := err.(types.Exception); !ok {
				t.Fatalf("untagged error: %v", err)
			}
			t.Logf("INVALID: %q (%v)", source, err)
			return
		}

		t.Logf("PASS: %q", source)
		_, _ = expr.Evaluate(symbols)
	})
}
