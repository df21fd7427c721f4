package ast

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/karupanerura/series-formula/internal/types"
)

// Lambda is a finalized anonymous function: its parameters, its body, and
// the return type the body was coerced to.
type Lambda struct {
	Params []*Parameter
	Body   Node
	result types.Type
}

func NewLambda(params []*Parameter, body Node, result types.Type) *Lambda {
	return &Lambda{Params: params, Body: body, result: result}
}

func (n *Lambda) Type() types.Type {
	return types.Lambda
}

// Result is the lambda's return type.
func (n *Lambda) Result() types.Type {
	return n.result
}

func (n *Lambda) Offset() int {
	if len(n.Params) != 0 {
		return n.Params[0].Offset()
	}
	return n.Body.Offset()
}

func (n *Lambda) Eval(f *Frame) (any, error) {
	return &Closure{Lambda: n, frame: f}, nil
}

func (n *Lambda) String() string {
	names := lo.Map(n.Params, func(p *Parameter, _ int) string {
		return p.Name + ": " + p.Type().String()
	})
	return fmt.Sprintf("(%s) => %s", strings.Join(names, ", "), n.result)
}

// Closure is a lambda together with the frame it was created in.
type Closure struct {
	*Lambda
	frame *Frame
}

func (c *Closure) Call(args ...any) (any, error) {
	if len(args) != len(c.Params) {
		return nil, types.NewRuntimeError(types.TypeErrorTag, "lambda %s expects %d arguments but got %d", c.Lambda, len(c.Params), len(args))
	}

	frame := c.frame.Child()
	for i, p := range c.Params {
		v, ok := convertValue(args[i], p.Type())
		if !ok {
			v = args[i]
		}
		frame.Bind(p, v)
	}
	return c.Body.Eval(frame)
}

// HigherOrderFunc implements a builtin taking a lambda as its last argument.
type HigherOrderFunc func(args []any, fn *Closure) (any, error)

// HigherOrder calls a builtin such as map or reduce with a lambda argument.
type HigherOrder struct {
	position
	Name   string
	Args   []Node
	Fn     *Lambda
	result types.Type
	impl   HigherOrderFunc
}

func NewHigherOrder(name string, args []Node, fn *Lambda, result types.Type, impl HigherOrderFunc, offset int) *HigherOrder {
	return &HigherOrder{position: position(offset), Name: name, Args: args, Fn: fn, result: result, impl: impl}
}

func (n *HigherOrder) Type() types.Type {
	return n.result
}

func (n *HigherOrder) Eval(f *Frame) (any, error) {
	args := make([]any, len(n.Args))
	for i, arg := range n.Args {
		var err error
		args[i], err = arg.Eval(f)
		if err != nil {
			return nil, fmt.Errorf("%s args[%d]: %w", n.Name, i, err)
		}
	}

	fn, err := n.Fn.Eval(f)
	if err != nil {
		return nil, err
	}

	ret, err := n.impl(args, fn.(*Closure))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.Name, err)
	}
	return ret, nil
}
