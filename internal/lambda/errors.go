package lambda

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/karupanerura/series-formula/internal/types"
)

// MismatchError is wrapped in a TypeMismatchError when a lambda body cannot
// be coerced to the declared return type. Accepted, when set, lists the
// return types an inferring caller takes instead of Expected.
type MismatchError struct {
	Expected types.Type
	Accepted []types.Type
	Actual   types.Type
}

func (e *MismatchError) Error() string {
	expected := e.Expected.String()
	if len(e.Accepted) != 0 {
		expected = strings.Join(lo.Map(e.Accepted, func(t types.Type, _ int) string {
			return t.String()
		}), " or ")
	}
	return fmt.Sprintf("lambda must return %s but the body is %s", expected, e.Actual)
}
