package types

import (
	"fmt"

	reflect "github.com/goccy/go-reflect"
)

// Type is the static result type of an expression node.
type Type int

const (
	Undetermined Type = iota
	Bool
	Integer
	Real
	Complex
	DateType
	String
	Vector
	Lambda
)

var typeNames = [...]string{
	Undetermined: "undetermined",
	Bool:         "bool",
	Integer:      "integer",
	Real:         "real",
	Complex:      "complex",
	DateType:     "date",
	String:       "string",
	Vector:       "vector",
	Lambda:       "lambda",
}

func (t Type) String() string {
	if 0 <= int(t) && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func (t Type) IsNumeric() bool {
	return t == Integer || t == Real || t == Complex
}

// Widest returns the numeric type both operands promote to.
func Widest(a, b Type) Type {
	if a > b {
		return a
	}
	return b
}

// TypeOf classifies a runtime value.
func TypeOf(v any) Type {
	switch v.(type) {
	case bool:
		return Bool
	case int64:
		return Integer
	case float64:
		return Real
	case complex128:
		return Complex
	case Date:
		return DateType
	case string:
		return String
	case []float64:
		return Vector
	default:
		return Undetermined
	}
}

var dateType = reflect.TypeOf(Date{})

// TypeOfReflect classifies a Go type, used to type the result of reflected builtins.
func TypeOfReflect(t reflect.Type) Type {
	if t == dateType {
		return DateType
	}
	switch t.Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer
	case reflect.Float32, reflect.Float64:
		return Real
	case reflect.Complex64, reflect.Complex128:
		return Complex
	case reflect.String:
		return String
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Float64 {
			return Vector
		}
	}
	return Undetermined
}
