package types

import (
	"fmt"
	"strings"

	reflect "github.com/goccy/go-reflect"
	"github.com/samber/lo"
)

type Function interface {
	Name() string
	Args() []string
	Arity() (minimum, maximum int)
	Params() []Type
	Result() Type
	Call([]any) (any, error)
}

type reflectFunc struct {
	name        string
	args        []argDef
	minimumArgs int
	result      Type
	value       reflect.Value
}

type Argument struct {
	Name     string
	Default  any
	Optional bool
}

type argDef struct {
	name         string
	valueType    reflect.Type
	paramType    Type
	zeroValue    reflect.Value
	defaultValue reflect.Value
}

var errorInterfaceType = reflect.TypeOf((*error)(nil)).Elem()

func NewFunction(name string, args []Argument, f any) (Function, error) {
	v := reflect.ValueOf(f)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("must be function but got %T: %+v", f, f)
	}

	t := v.Type()
	if t.NumIn() != len(args) {
		return nil, fmt.Errorf("mis-match arguments count with args %+v: %+v", args, f)
	}
	if t.NumOut() != 2 {
		return nil, fmt.Errorf("builtin function must return 2 values: %+v", f)
	}
	if lastOut := t.Out(1); !lastOut.Implements(errorInterfaceType) {
		return nil, fmt.Errorf("last return value type must be error: %s", lastOut.String())
	}

	minimumArgs := 0
	defs := make([]argDef, len(args))
	for i, arg := range args {
		argType := t.In(i)

		defs[i].name = arg.Name
		defs[i].valueType = argType
		defs[i].paramType = TypeOfReflect(argType)
		defs[i].zeroValue = reflect.New(argType).Elem()
		if arg.Default != nil {
			defs[i].defaultValue = reflect.ValueOf(arg.Default)
		} else if arg.Optional {
			defs[i].defaultValue = reflect.Zero(argType)
		}

		// this is required
		if arg.Default == nil && !arg.Optional {
			if i == 0 || (i == minimumArgs && !defs[i-1].defaultValue.IsValid()) {
				minimumArgs++
			}
			continue
		}

		// must not set both
		if arg.Default != nil && arg.Optional {
			return nil, fmt.Errorf("argument[%d] %s's default value is must be nil to be optional", i, arg.Name)
		}
		if !defs[i].defaultValue.Type().AssignableTo(argType) {
			return nil, fmt.Errorf("argument[%d] %s's default value %+v(%T) is not assignable to %s", i, arg.Name, arg.Default, arg.Default, argType.String())
		}
	}

	return &reflectFunc{
		name:        name,
		args:        defs,
		minimumArgs: minimumArgs,
		result:      TypeOfReflect(t.Out(0)),
		value:       v,
	}, nil
}

func MustNewFunction(name string, args []Argument, f any) Function {
	fun, err := NewFunction(name, args, f)
	if err != nil {
		panic(err)
	}
	return fun
}

func (f *reflectFunc) Name() string {
	return f.name
}

func (f *reflectFunc) Args() []string {
	return lo.Map(f.args, func(def argDef, _ int) string {
		return def.name
	})
}

func (f *reflectFunc) Arity() (int, int) {
	return f.minimumArgs, len(f.args)
}

func (f *reflectFunc) Params() []Type {
	return lo.Map(f.args, func(def argDef, _ int) Type {
		return def.paramType
	})
}

func (f *reflectFunc) Result() Type {
	return f.result
}

func (f *reflectFunc) Call(args []any) (any, error) {
	if len(args) > len(f.args) {
		return nil, fmt.Errorf("too many arguments: %d arguments are allowed but got %d arguments, usage: %s(%s)", len(f.args), len(args), f.name, renderArgDefs(f.args))
	}
	if !(f.minimumArgs <= len(args) && len(args) <= len(f.args)) {
		return nil, fmt.Errorf("missing arguments: %d arguments are required but got %d arguments, usage: %s(%s)", f.minimumArgs, len(args), f.name, renderArgDefs(f.args))
	}

	argValues := make([]reflect.Value, len(f.args))
	for i, arg := range f.args {
		// fill default value for missing args
		if i >= len(args) {
			if !arg.defaultValue.IsValid() {
				return nil, fmt.Errorf("missing argument[%d] %s", i, arg.name)
			}
			argValues[i] = arg.defaultValue
			continue
		}

		argValues[i] = reflect.ValueOf(widenNumeric(args[i], arg.paramType))

		// fill zero value for explicit nil value
		if !argValues[i].IsValid() {
			argValues[i] = arg.zeroValue
			continue
		}

		// check assignable
		if argValues[i].Type().AssignableTo(arg.valueType) {
			continue // OK
		}

		return nil, &Error{
			Tag:    TypeErrorTag,
			Offset: NoOffset,
			Err:    fmt.Errorf("invalid argument[%d] %s of %s: expected type is %s but actual %s (%+v)", i, arg.name, f.name, arg.valueType.String(), argValues[i].Type().String(), args[i]),
		}
	}

	ret := f.value.Call(argValues)
	if !ret[1].IsZero() {
		err := ret[1].Interface().(error)
		return nil, err
	}

	return ret[0].Interface(), nil
}

// widenNumeric applies the implicit integer -> real -> complex promotions
// before the reflective assignability check.
func widenNumeric(v any, to Type) any {
	switch to {
	case Real:
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	case Complex:
		switch n := v.(type) {
		case int64:
			return complex(float64(n), 0)
		case float64:
			return complex(n, 0)
		}
	}
	return v
}

func renderArgDefs(args []argDef) string {
	var s strings.Builder
	for i, arg := range args {
		if i != 0 {
			s.WriteString(", ")
		}

		s.WriteString(arg.name)
		if !arg.defaultValue.IsValid() {
			continue
		} else if arg.defaultValue.IsZero() {
			s.WriteByte('?')
		} else {
			s.WriteString(" = ")
			fmt.Fprint(&s, arg.defaultValue.Interface())
		}
	}
	return s.String()
}
