package datasource

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/karupanerura/series-formula/internal/defaults"
	"github.com/karupanerura/series-formula/internal/types"
)

// typedEntry is a map entry that spells out its type: {re, im} for a
// complex, {date} for a date.
type typedEntry struct {
	Re   *float64 `mapstructure:"re"`
	Im   *float64 `mapstructure:"im"`
	Date string   `mapstructure:"date"`
}

func (e *typedEntry) compile() (any, error) {
	isComplex := e.Re != nil || e.Im != nil
	switch {
	case e.Date != "" && isComplex:
		return nil, fmt.Errorf("an entry cannot be both a date and a complex")
	case e.Date != "":
		d, err := types.ParseDate(e.Date)
		if err != nil {
			return nil, fmt.Errorf("date: %w", err)
		}
		return d, nil
	case isComplex:
		var re, im float64
		if e.Re != nil {
			re = *e.Re
		}
		if e.Im != nil {
			im = *e.Im
		}
		return complex(re, im), nil
	default:
		return nil, fmt.Errorf("empty typed entry")
	}
}

// Decode converts a decoded document into a symbol table whose parent holds
// the builtin constants.
func Decode(root map[string]any) (*types.SymbolTable, error) {
	decoded, err := decodeJSONNumberRecursive(root)
	if err != nil {
		return nil, err
	}

	symbols := make(map[string]any, len(root))
	for name, raw := range decoded.(map[string]any) {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, &types.Error{
				Tag:    types.ValueErrorTag,
				Offset: types.NoOffset,
				Err:    fmt.Errorf("%s: %w", name, err),
			}
		}
		symbols[name] = v
	}
	return types.NewSymbolTableWith(symbols, defaults.DefaultSymbolTable), nil
}

func decodeValue(raw any) (any, error) {
	switch v := raw.(type) {
	case int64, float64, bool, string:
		return v, nil

	case []any:
		vec := make([]float64, len(v))
		for i, item := range v {
			switch x := item.(type) {
			case int64:
				vec[i] = float64(x)
			case float64:
				vec[i] = x
			default:
				return nil, fmt.Errorf("[%d]: a series holds numbers but got %T", i, item)
			}
		}
		return vec, nil

	case map[string]any:
		var entry typedEntry
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			ErrorUnused: true,
			Result:      &entry,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(v); err != nil {
			return nil, err
		}
		return entry.compile()

	default:
		return nil, fmt.Errorf("unsupported value: %T", raw)
	}
}
