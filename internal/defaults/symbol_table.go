package defaults

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/karupanerura/series-formula/internal/types"
)

// Functions are the scalar builtins by lower case name, including the
// qualified "math::" members.
var Functions = mergeMaps(
	Math,
	Complex,
	Vector,
	Time,
	aggregateClassMembers("math", Math),
)

// DefaultSymbolTable holds the qualified constants. Data sources chain to
// it as their parent.
var DefaultSymbolTable = &types.SymbolTable{
	Symbols: lo.MapKeys(MathConstants, func(_ any, name string) string {
		return "math::" + name
	}),
	ReadOnly: true,
}

func LookupFunction(name string) (types.Function, bool) {
	f, ok := Functions[strings.ToLower(name)]
	return f, ok
}

func LookupHigherOrder(name string) (*HigherOrder, bool) {
	h, ok := HigherOrders[strings.ToLower(name)]
	return h, ok
}

// FunctionNames lists every callable name, for suggestions.
func FunctionNames() []string {
	names := append(lo.Keys(Functions), lo.Keys(HigherOrders)...)
	sort.Strings(names)
	return names
}
