package ast

import (
	"fmt"

	"github.com/karupanerura/series-formula/internal/types"
)

// Node is a typed expression graph node.
type Node interface {
	Type() types.Type
	Offset() int
	Eval(*Frame) (any, error)
}

// Binding is a name a Frame can hold a value for.
type Binding interface {
	Node
	BindingName() string
}

// Frame binds lambda parameters and let locals. Lookups walk to the
// enclosing frame, which is how nested lambdas see outer parameters.
type Frame struct {
	parent  *Frame
	values  map[Binding]any
	Symbols *types.SymbolTable
}

func NewFrame(symbols *types.SymbolTable) *Frame {
	return &Frame{Symbols: symbols}
}

func (f *Frame) Child() *Frame {
	return &Frame{parent: f, Symbols: f.Symbols}
}

func (f *Frame) Bind(b Binding, value any) {
	if f.values == nil {
		f.values = make(map[Binding]any, 2)
	}
	f.values[b] = value
}

func (f *Frame) Lookup(b Binding) (any, bool) {
	for frame := f; frame != nil; frame = frame.parent {
		if v, ok := frame.values[b]; ok {
			return v, true
		}
	}
	return nil, false
}

type position int

func (p position) Offset() int {
	return int(p)
}

type Constant struct {
	position
	Value any
	typ   types.Type
}

func NewConstant(value any, offset int) *Constant {
	return &Constant{position: position(offset), Value: value, typ: types.TypeOf(value)}
}

func (n *Constant) Type() types.Type {
	return n.typ
}

func (n *Constant) Eval(*Frame) (any, error) {
	return n.Value, nil
}

func IsConstant(n Node) bool {
	_, ok := n.(*Constant)
	return ok
}

// Parameter is a lambda parameter symbol. Scopes own parameters; the graph
// only references them.
type Parameter struct {
	position
	Name string
	typ  types.Type
}

func NewParameter(name string, typ types.Type, offset int) *Parameter {
	return &Parameter{position: position(offset), Name: name, typ: typ}
}

func (n *Parameter) Type() types.Type {
	return n.typ
}

func (n *Parameter) BindingName() string {
	return n.Name
}

func (n *Parameter) Eval(f *Frame) (any, error) {
	if v, ok := f.Lookup(n); ok {
		return v, nil
	}
	return nil, types.NewError(types.KeyErrorTag, n.Offset(), "parameter %s is not bound", n.Name)
}

// Local is a let-bound name.
type Local struct {
	position
	Name string
	typ  types.Type
}

func NewLocal(name string, typ types.Type, offset int) *Local {
	return &Local{position: position(offset), Name: name, typ: typ}
}

func (n *Local) Type() types.Type {
	return n.typ
}

func (n *Local) BindingName() string {
	return n.Name
}

func (n *Local) Eval(f *Frame) (any, error) {
	if v, ok := f.Lookup(n); ok {
		return v, nil
	}
	return nil, types.NewError(types.KeyErrorTag, n.Offset(), "local %s is not bound", n.Name)
}

// Variable reads a named series or variable from the data source at
// evaluation time.
type Variable struct {
	position
	Name string
	typ  types.Type
}

func NewVariable(name string, typ types.Type, offset int) *Variable {
	return &Variable{position: position(offset), Name: name, typ: typ}
}

func (n *Variable) Type() types.Type {
	return n.typ
}

func (n *Variable) Eval(f *Frame) (any, error) {
	v, ok := f.Symbols.Get(n.Name)
	if !ok {
		return nil, types.NewError(types.KeyErrorTag, n.Offset(), "not found symbol: %s", n.Name)
	}
	v = Normalize(v)
	if actual := types.TypeOf(v); actual != n.typ {
		converted, ok := convertValue(v, n.typ)
		if !ok {
			return nil, types.NewError(types.TypeErrorTag, n.Offset(), "%s was compiled as %s but is %s now", n.Name, n.typ, actual)
		}
		v = converted
	}
	return v, nil
}

// Convert widens integer to real, or integer and real to complex.
type Convert struct {
	Operand Node
	To      types.Type
}

func (n *Convert) Type() types.Type {
	return n.To
}

func (n *Convert) Offset() int {
	return n.Operand.Offset()
}

func (n *Convert) Eval(f *Frame) (any, error) {
	v, err := n.Operand.Eval(f)
	if err != nil {
		return nil, err
	}
	converted, ok := convertValue(v, n.To)
	if !ok {
		return nil, types.NewError(types.TypeErrorTag, n.Offset(), "cannot convert %T to %s", v, n.To)
	}
	return converted, nil
}

func CanConvert(from, to types.Type) bool {
	switch to {
	case types.Real:
		return from == types.Integer
	case types.Complex:
		return from == types.Integer || from == types.Real
	default:
		return false
	}
}

// Coerce converts n to the given type, folding constants instead of
// emitting a runtime conversion.
func Coerce(n Node, to types.Type) (Node, bool) {
	if n.Type() == to {
		return n, true
	}
	if !CanConvert(n.Type(), to) {
		return nil, false
	}
	if c, ok := n.(*Constant); ok {
		v, _ := convertValue(c.Value, to)
		return &Constant{position: c.position, Value: v, typ: to}, true
	}
	return &Convert{Operand: n, To: to}, true
}

func convertValue(v any, to types.Type) (any, bool) {
	switch to {
	case types.Real:
		switch n := v.(type) {
		case int64:
			return float64(n), true
		case float64:
			return n, true
		}
	case types.Complex:
		switch n := v.(type) {
		case int64:
			return complex(float64(n), 0), true
		case float64:
			return complex(n, 0), true
		case complex128:
			return n, true
		}
	case types.Integer:
		if n, ok := v.(int64); ok {
			return n, true
		}
	}
	return nil, false
}

// Normalize maps Go values coming from a data source onto the runtime
// representation: int64, float64, complex128, bool, string, types.Date,
// []float64.
func Normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	case complex64:
		return complex128(n)
	case []int64:
		vec := make([]float64, len(n))
		for i, x := range n {
			vec[i] = float64(x)
		}
		return vec
	case []any:
		vec := make([]float64, len(n))
		for i, x := range n {
			switch x := Normalize(x).(type) {
			case int64:
				vec[i] = float64(x)
			case float64:
				vec[i] = x
			default:
				return v
			}
		}
		return vec
	default:
		return v
	}
}

// Format renders a runtime value for display.
func Format(v any) string {
	switch n := v.(type) {
	case complex128:
		if imag(n) < 0 {
			return fmt.Sprintf("%g - %gi", real(n), -imag(n))
		}
		return fmt.Sprintf("%g + %gi", real(n), imag(n))
	case float64:
		return fmt.Sprintf("%g", n)
	case *Closure:
		return n.String()
	default:
		return fmt.Sprint(v)
	}
}
