package ast

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/karupanerura/series-formula/internal/types"
)

type Unary struct {
	position
	Operator string
	Operand  Node
}

func NewUnary(operator string, operand Node, offset int) *Unary {
	return &Unary{position: position(offset), Operator: operator, Operand: operand}
}

func (n *Unary) Type() types.Type {
	return n.Operand.Type()
}

func (n *Unary) Eval(f *Frame) (any, error) {
	value, err := n.Operand.Eval(f)
	if err != nil {
		return nil, fmt.Errorf("value of unary operator %q: %w", n.Operator, err)
	}

	switch n.Operator {
	case "not":
		if v, ok := value.(bool); ok {
			return !v, nil
		}
	case "+":
		switch value.(type) {
		case int64, float64, complex128, []float64:
			return value, nil
		}
	case "-":
		switch v := value.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		case complex128:
			return -v, nil
		case []float64:
			return mapVector(v, func(x float64) float64 { return -x }), nil
		}
	}
	return nil, types.NewError(types.TypeErrorTag, n.Offset(), "unknown value type for unary operator %q: %T", n.Operator, value)
}

type Binary struct {
	position
	Operator string
	Left     Node
	Right    Node
	typ      types.Type
}

// NewBinary expects operands already coerced to the types the operator works on.
func NewBinary(operator string, left, right Node, result types.Type, offset int) *Binary {
	return &Binary{position: position(offset), Operator: operator, Left: left, Right: right, typ: result}
}

func (n *Binary) Type() types.Type {
	return n.typ
}

func (n *Binary) Eval(f *Frame) (any, error) {
	left, err := n.Left.Eval(f)
	if err != nil {
		return nil, fmt.Errorf("left of operator %q: %w", n.Operator, err)
	}

	// short circuit
	if lhs, ok := left.(bool); ok && (n.Operator == "and" || n.Operator == "or") {
		if (n.Operator == "and" && !lhs) || (n.Operator == "or" && lhs) {
			return lhs, nil
		}
	}

	right, err := n.Right.Eval(f)
	if err != nil {
		return nil, fmt.Errorf("right of operator %q: %w", n.Operator, err)
	}

	ret, err := n.calculate(left, right)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (n *Binary) invalid(left, right any) error {
	return types.NewError(types.TypeErrorTag, n.Offset(), "invalid operator %q for left=%T right=%T", n.Operator, left, right)
}

func (n *Binary) calculate(left, right any) (any, error) {
	switch lhs := left.(type) {
	case bool:
		rhs, ok := right.(bool)
		if !ok {
			return nil, n.invalid(left, right)
		}
		switch n.Operator {
		case "=":
			return lhs == rhs, nil
		case "!=":
			return lhs != rhs, nil
		case "and":
			return lhs && rhs, nil
		case "or":
			return lhs || rhs, nil
		}

	case string:
		rhs, ok := right.(string)
		if !ok {
			return nil, n.invalid(left, right)
		}
		switch n.Operator {
		case "+":
			return lhs + rhs, nil
		case "=":
			return lhs == rhs, nil
		case "!=":
			return lhs != rhs, nil
		case "<":
			return lhs < rhs, nil
		case "<=":
			return lhs <= rhs, nil
		case ">":
			return lhs > rhs, nil
		case ">=":
			return lhs >= rhs, nil
		}

	case int64:
		switch rhs := right.(type) {
		case int64:
			return n.calculateInteger(lhs, rhs)
		case types.Date:
			if n.Operator == "+" {
				return rhs.AddDays(int(lhs)), nil
			}
		}

	case float64:
		switch rhs := right.(type) {
		case float64:
			return n.calculateReal(lhs, rhs)
		case []float64:
			if n.Operator == "*" {
				return mapVector(rhs, func(x float64) float64 { return lhs * x }), nil
			}
		}

	case complex128:
		if rhs, ok := right.(complex128); ok {
			return n.calculateComplex(lhs, rhs)
		}

	case types.Date:
		switch rhs := right.(type) {
		case int64:
			switch n.Operator {
			case "+":
				return lhs.AddDays(int(rhs)), nil
			case "-":
				return lhs.AddDays(-int(rhs)), nil
			}
		case types.Date:
			switch n.Operator {
			case "-":
				return lhs.Sub(rhs), nil
			case "=":
				return lhs == rhs, nil
			case "!=":
				return lhs != rhs, nil
			case "<":
				return lhs.Before(rhs), nil
			case "<=":
				return !rhs.Before(lhs), nil
			case ">":
				return rhs.Before(lhs), nil
			case ">=":
				return !lhs.Before(rhs), nil
			}
		}

	case []float64:
		switch rhs := right.(type) {
		case []float64:
			return n.calculateVector(lhs, rhs)
		case float64:
			switch n.Operator {
			case "*":
				return mapVector(lhs, func(x float64) float64 { return x * rhs }), nil
			case "/":
				return mapVector(lhs, func(x float64) float64 { return x / rhs }), nil
			}
		}
	}
	return nil, n.invalid(left, right)
}

func (n *Binary) calculateInteger(lhs, rhs int64) (any, error) {
	switch n.Operator {
	case "=":
		return lhs == rhs, nil
	case "!=":
		return lhs != rhs, nil
	case "<":
		return lhs < rhs, nil
	case "<=":
		return lhs <= rhs, nil
	case ">":
		return lhs > rhs, nil
	case ">=":
		return lhs >= rhs, nil
	case "+":
		return lhs + rhs, nil
	case "-":
		return lhs - rhs, nil
	case "*":
		return lhs * rhs, nil
	case "%":
		if rhs == 0 {
			return nil, types.NewError(types.ZeroDivisionErrorTag, n.Offset(), "integer modulo by zero")
		}
		return lhs % rhs, nil
	}
	return nil, n.invalid(lhs, rhs)
}

func (n *Binary) calculateReal(lhs, rhs float64) (any, error) {
	switch n.Operator {
	case "=":
		return lhs == rhs, nil
	case "!=":
		return lhs != rhs, nil
	case "<":
		return lhs < rhs, nil
	case "<=":
		return lhs <= rhs, nil
	case ">":
		return lhs > rhs, nil
	case ">=":
		return lhs >= rhs, nil
	case "+":
		return lhs + rhs, nil
	case "-":
		return lhs - rhs, nil
	case "*":
		return lhs * rhs, nil
	case "/":
		return lhs / rhs, nil
	case "%":
		return math.Mod(lhs, rhs), nil
	case "^":
		return math.Pow(lhs, rhs), nil
	}
	return nil, n.invalid(lhs, rhs)
}

func (n *Binary) calculateComplex(lhs, rhs complex128) (any, error) {
	switch n.Operator {
	case "=":
		return lhs == rhs, nil
	case "!=":
		return lhs != rhs, nil
	case "+":
		return lhs + rhs, nil
	case "-":
		return lhs - rhs, nil
	case "*":
		return lhs * rhs, nil
	case "/":
		return lhs / rhs, nil
	case "^":
		return cmplx.Pow(lhs, rhs), nil
	}
	return nil, n.invalid(lhs, rhs)
}

func (n *Binary) calculateVector(lhs, rhs []float64) (any, error) {
	if len(lhs) != len(rhs) {
		return nil, types.NewError(types.ValueErrorTag, n.Offset(), "vector lengths differ: %d and %d", len(lhs), len(rhs))
	}

	var op func(x, y float64) float64
	switch n.Operator {
	case "+":
		op = func(x, y float64) float64 { return x + y }
	case "-":
		op = func(x, y float64) float64 { return x - y }
	case ".*":
		op = func(x, y float64) float64 { return x * y }
	case "./":
		op = func(x, y float64) float64 { return x / y }
	case "*":
		// dot product
		sum := 0.0
		for i := range lhs {
			sum += lhs[i] * rhs[i]
		}
		return sum, nil
	case "=", "!=":
		equal := true
		for i := range lhs {
			if lhs[i] != rhs[i] {
				equal = false
				break
			}
		}
		return equal == (n.Operator == "="), nil
	default:
		return nil, n.invalid(lhs, rhs)
	}

	ret := make([]float64, len(lhs))
	for i := range lhs {
		ret[i] = op(lhs[i], rhs[i])
	}
	return ret, nil
}

func mapVector(v []float64, f func(float64) float64) []float64 {
	ret := make([]float64, len(v))
	for i, x := range v {
		ret[i] = f(x)
	}
	return ret
}

type Conditional struct {
	position
	Condition Node
	Then      Node
	Else      Node
}

func NewConditional(cond, then, els Node, offset int) *Conditional {
	return &Conditional{position: position(offset), Condition: cond, Then: then, Else: els}
}

func (n *Conditional) Type() types.Type {
	return n.Then.Type()
}

func (n *Conditional) Eval(f *Frame) (any, error) {
	cond, err := n.Condition.Eval(f)
	if err != nil {
		return nil, err
	}
	b, ok := cond.(bool)
	if !ok {
		return nil, types.NewError(types.TypeErrorTag, n.Offset(), "condition is not a bool: %T", cond)
	}
	if b {
		return n.Then.Eval(f)
	}
	return n.Else.Eval(f)
}

type VectorLiteral struct {
	position
	Items []Node
}

func NewVectorLiteral(items []Node, offset int) *VectorLiteral {
	return &VectorLiteral{position: position(offset), Items: items}
}

func (n *VectorLiteral) Type() types.Type {
	return types.Vector
}

func (n *VectorLiteral) Eval(f *Frame) (any, error) {
	ret := make([]float64, len(n.Items))
	for i, item := range n.Items {
		v, err := item.Eval(f)
		if err != nil {
			return nil, fmt.Errorf("vector item[%d]: %w", i, err)
		}
		x, ok := convertValue(v, types.Real)
		if !ok {
			return nil, types.NewError(types.TypeErrorTag, item.Offset(), "vector item[%d] is not a real: %T", i, v)
		}
		ret[i] = x.(float64)
	}
	return ret, nil
}

type Index struct {
	position
	Target Node
	Index  Node
}

func NewIndex(target, index Node, offset int) *Index {
	return &Index{position: position(offset), Target: target, Index: index}
}

func (n *Index) Type() types.Type {
	return types.Real
}

func (n *Index) Eval(f *Frame) (any, error) {
	target, err := n.Target.Eval(f)
	if err != nil {
		return nil, err
	}
	index, err := n.Index.Eval(f)
	if err != nil {
		return nil, err
	}

	vec, ok := target.([]float64)
	if !ok {
		return nil, types.NewError(types.TypeErrorTag, n.Offset(), "indexed value is not a vector: %T", target)
	}
	i, ok := index.(int64)
	if !ok {
		return nil, types.NewError(types.TypeErrorTag, n.Offset(), "index is not an integer: %T", index)
	}
	if i < 0 || i >= int64(len(vec)) {
		return nil, types.NewError(types.IndexErrorTag, n.Offset(), "vector index %d out of bounds", i)
	}
	return vec[i], nil
}

// Call invokes a builtin function.
type Call struct {
	position
	Function types.Function
	Args     []Node
}

func NewCall(fn types.Function, args []Node, offset int) *Call {
	return &Call{position: position(offset), Function: fn, Args: args}
}

func (n *Call) Type() types.Type {
	return n.Function.Result()
}

func (n *Call) Eval(f *Frame) (any, error) {
	args := make([]any, len(n.Args))
	for i, arg := range n.Args {
		var err error
		args[i], err = arg.Eval(f)
		if err != nil {
			return nil, fmt.Errorf("%s args[%d]: %w", n.Function.Name(), i, err)
		}
	}

	ret, err := n.Function.Call(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.Function.Name(), err)
	}
	return Normalize(ret), nil
}

// Let binds locals sequentially, then evaluates the body.
type Let struct {
	position
	Locals []*Local
	Values []Node
	Body   Node
}

func NewLet(locals []*Local, values []Node, body Node, offset int) *Let {
	return &Let{position: position(offset), Locals: locals, Values: values, Body: body}
}

func (n *Let) Type() types.Type {
	return n.Body.Type()
}

func (n *Let) Eval(f *Frame) (any, error) {
	frame := f.Child()
	for i, local := range n.Locals {
		v, err := n.Values[i].Eval(frame)
		if err != nil {
			return nil, fmt.Errorf("let %s: %w", local.Name, err)
		}
		frame.Bind(local, v)
	}
	return n.Body.Eval(frame)
}

// Assign stores a value into the data source and yields it.
type Assign struct {
	position
	Name  string
	Value Node
}

func NewAssign(name string, value Node, offset int) *Assign {
	return &Assign{position: position(offset), Name: name, Value: value}
}

func (n *Assign) Type() types.Type {
	return n.Value.Type()
}

func (n *Assign) Eval(f *Frame) (any, error) {
	v, err := n.Value.Eval(f)
	if err != nil {
		return nil, err
	}
	if f.Symbols == nil {
		return nil, types.NewError(types.ValueErrorTag, n.Offset(), "no data source to set %s into", n.Name)
	}
	f.Symbols.Set(n.Name, v)
	return v, nil
}
