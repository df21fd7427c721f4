package token

import (
	"fmt"
	"strconv"

	"github.com/karupanerura/series-formula/internal/types"
)

type Kind int

const (
	EOF Kind = iota
	Error

	Identifier
	Functor   // identifier followed by "("
	ClassName // identifier followed by "::"

	// literals
	String
	Int
	Real
	Imaginary
	Date
	MultVarI // integer juxtaposed with an identifier: 3x
	MultVarR // real juxtaposed with an identifier: 1.5x

	// keywords
	And
	Def
	Elif
	Else
	False
	If
	In
	Let
	Not
	Or
	Set
	Then
	True
	Undef

	// quantifiers
	All
	Any

	// operators and punctuation
	Plus
	Minus
	Times
	Divide
	Mod
	Caret
	PointTimes  // .*
	PointDivide // ./
	Transpose   // '
	Eq
	Ne // != or <>
	Lt
	Le
	Gt
	Ge
	Arrow // =>
	LPar
	RPar
	LBra
	RBra
	LBrace
	RBrace
	Comma
	Semicolon
	Colon
	DoubleColon
	Dot
)

var kindNames = [...]string{
	EOF:         "EOF",
	Error:       "error",
	Identifier:  "identifier",
	Functor:     "functor",
	ClassName:   "class name",
	String:      "string",
	Int:         "integer",
	Real:        "real",
	Imaginary:   "imaginary",
	Date:        "date",
	MultVarI:    "integer*identifier",
	MultVarR:    "real*identifier",
	And:         "and",
	Def:         "def",
	Elif:        "elif",
	Else:        "else",
	False:       "false",
	If:          "if",
	In:          "in",
	Let:         "let",
	Not:         "not",
	Or:          "or",
	Set:         "set",
	Then:        "then",
	True:        "true",
	Undef:       "undef",
	All:         "all",
	Any:         "any",
	Plus:        "+",
	Minus:       "-",
	Times:       "*",
	Divide:      "/",
	Mod:         "%",
	Caret:       "^",
	PointTimes:  ".*",
	PointDivide: "./",
	Transpose:   "'",
	Eq:          "=",
	Ne:          "!=",
	Lt:          "<",
	Le:          "<=",
	Gt:          ">",
	Ge:          ">=",
	Arrow:       "=>",
	LPar:        "(",
	RPar:        ")",
	LBra:        "[",
	RBra:        "]",
	LBrace:      "{",
	RBrace:      "}",
	Comma:       ",",
	Semicolon:   ";",
	Colon:       ":",
	DoubleColon: "::",
	Dot:         ".",
}

func (k Kind) String() string {
	if 0 <= int(k) && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) IsKeyword() bool {
	return And <= k && k <= Any
}

func (k Kind) IsLiteral() bool {
	return String <= k && k <= MultVarR
}

// IsName reports identifier-like kinds, including the reclassified ones.
func (k Kind) IsName() bool {
	return Identifier <= k && k <= ClassName
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Literal is the payload of a literal token. Exactly one concrete type is
// carried, selected by the token kind.
type Literal interface {
	literal()
}

type IntValue int64

type RealValue float64

type DateValue types.Date

func (IntValue) literal()  {}
func (RealValue) literal() {}
func (DateValue) literal() {}

type Token struct {
	Kind   Kind
	Offset int
	// Text is the identifier text for names and multiplied variables, the
	// decoded contents for strings, or the message for errors.
	Text  string
	Value Literal
}

func (t Token) Int() (int64, bool) {
	v, ok := t.Value.(IntValue)
	return int64(v), ok
}

func (t Token) Real() (float64, bool) {
	v, ok := t.Value.(RealValue)
	return float64(v), ok
}

func (t Token) Date() (types.Date, bool) {
	v, ok := t.Value.(DateValue)
	return types.Date(v), ok
}

func (t Token) Is(kinds ...Kind) bool {
	for _, k := range kinds {
		if t.Kind == k {
			return true
		}
	}
	return false
}

func (t Token) String() string {
	switch v := t.Value.(type) {
	case IntValue:
		if t.Text != "" {
			return fmt.Sprintf("%s(%d %s) at %d", t.Kind, int64(v), t.Text, t.Offset)
		}
		return fmt.Sprintf("%s(%d) at %d", t.Kind, int64(v), t.Offset)
	case RealValue:
		if t.Text != "" {
			return fmt.Sprintf("%s(%g %s) at %d", t.Kind, float64(v), t.Text, t.Offset)
		}
		return fmt.Sprintf("%s(%g) at %d", t.Kind, float64(v), t.Offset)
	case DateValue:
		return fmt.Sprintf("%s(%s) at %d", t.Kind, types.Date(v), t.Offset)
	}
	if t.Text != "" {
		return fmt.Sprintf("%s(%q) at %d", t.Kind, t.Text, t.Offset)
	}
	return fmt.Sprintf("%s at %d", t.Kind, t.Offset)
}
