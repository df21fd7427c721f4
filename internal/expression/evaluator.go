package expression

import (
	"github.com/karupanerura/series-formula/internal/types"
)

// Evaluator evaluates compiled formulas against one data source.
type Evaluator struct {
	SymbolTable *types.SymbolTable
}

func (e *Evaluator) EvaluateValue(expr *Expr) (any, error) {
	return expr.Evaluate(e.SymbolTable)
}
