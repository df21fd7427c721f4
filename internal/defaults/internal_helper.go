package defaults

import (
	"fmt"
	"strings"

	"github.com/karupanerura/series-formula/internal/types"
)

// aggregateFunctionsToMap indexes functions by lower case name.
func aggregateFunctionsToMap(funcs ...types.Function) map[string]types.Function {
	m := make(map[string]types.Function, len(funcs))
	for _, f := range funcs {
		name := strings.ToLower(f.Name())
		if _, duplicated := m[name]; duplicated {
			panic(fmt.Sprintf("duplicated function name: %s", name))
		}
		m[name] = f
	}
	return m
}

// aggregateClassMembers qualifies every function of a class as "class::name".
func aggregateClassMembers(class string, funcs map[string]types.Function) map[string]types.Function {
	prefix := class + "::"

	m := make(map[string]types.Function, len(funcs))
	for name, f := range funcs {
		if strings.Contains(name, "::") {
			panic(fmt.Sprintf("invalid class member name: %s", name))
		}
		m[prefix+name] = f
	}
	return m
}

func mergeMaps[V any](maps ...map[string]V) map[string]V {
	m := map[string]V{}
	for _, mm := range maps {
		for k, v := range mm {
			if _, duplicated := m[k]; duplicated {
				panic(fmt.Sprintf("duplicated name: %s", k))
			}
			m[k] = v
		}
	}
	return m
}
