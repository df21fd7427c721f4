package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

type ErrorTag string

const (
	// compile time
	LexicalErrorTag       ErrorTag = "LexicalError"
	SyntaxErrorTag        ErrorTag = "SyntaxError"
	TypeMismatchErrorTag  ErrorTag = "TypeMismatchError"
	ResourceLimitErrorTag ErrorTag = "ResourceLimitError"

	// evaluation time
	IndexErrorTag        ErrorTag = "IndexError"
	KeyErrorTag          ErrorTag = "KeyError"
	TypeErrorTag         ErrorTag = "TypeError"
	ValueErrorTag        ErrorTag = "ValueError"
	ZeroDivisionErrorTag ErrorTag = "ZeroDivisionError"
)

// NoOffset marks errors that are not attached to a source position.
const NoOffset = -1

type Exception interface {
	error
	Exception() any
}

type Error struct {
	Tag    ErrorTag
	Offset int
	Err    error
	Extra  map[string]any
}

var _ Exception = (*Error)(nil)

func NewError(tag ErrorTag, offset int, format string, args ...any) *Error {
	return &Error{
		Tag:    tag,
		Offset: offset,
		Err:    fmt.Errorf(format, args...),
	}
}

func NewRuntimeError(tag ErrorTag, format string, args ...any) *Error {
	return NewError(tag, NoOffset, format, args...)
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Tag))
	if e.Offset >= 0 {
		b.WriteString(" at ")
		b.WriteString(strconv.Itoa(e.Offset))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the error text without tag and offset.
func (e *Error) Message() string {
	if e.Err == nil {
		return string(e.Tag)
	}
	return e.Err.Error()
}

func (e *Error) Exception() any {
	tags := []any{e.Tag}
	for err := errors.Unwrap(error(e)); err != nil; err = errors.Unwrap(err) {
		if e, ok := err.(*Error); ok {
			tags = append(tags, e.Tag)
		}
	}

	o := map[string]any{
		"tags":    tags,
		"message": e.Message(),
	}
	if e.Offset >= 0 {
		o["offset"] = e.Offset
	}
	if len(e.Extra) != 0 {
		o = lo.Assign(o, e.Extra)
	}
	return o
}

// IsTag reports whether any *Error in err's chain carries tag.
func IsTag(err error, tag ErrorTag) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if e, ok := err.(*Error); ok && e.Tag == tag {
			return true
		}
	}
	return false
}
