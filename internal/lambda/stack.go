package lambda

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"

	"github.com/karupanerura/series-formula/internal/ast"
	"github.com/karupanerura/series-formula/internal/types"
)

// MaxDepth is the maximum number of lambda scopes open at once.
const MaxDepth = 8

const maxParams = 2

type ParamSpec struct {
	Name   string
	Type   types.Type
	Offset int
}

type scope struct {
	params [maxParams]*ast.Parameter
	count  int
}

func (s *scope) parameters() []*ast.Parameter {
	return s.params[:s.count]
}

// Stack tracks the parameters of the lambdas being assembled, innermost on
// top. A Stack belongs to a single compilation.
type Stack struct {
	scopes [MaxDepth]scope
	depth  int
}

func (s *Stack) Depth() int {
	return s.depth
}

// Push opens a scope with one or two parameters.
func (s *Stack) Push(specs ...ParamSpec) ([]*ast.Parameter, error) {
	if len(specs) == 0 || len(specs) > maxParams {
		offset := types.NoOffset
		if len(specs) != 0 {
			offset = specs[0].Offset
		}
		return nil, types.NewError(types.SyntaxErrorTag, offset, "a lambda takes 1 or %d parameters but got %d", maxParams, len(specs))
	}
	if s.depth == MaxDepth {
		return nil, types.NewError(types.ResourceLimitErrorTag, specs[0].Offset, "lambdas cannot be nested more than %d levels deep", MaxDepth)
	}
	if len(specs) == 2 && strings.EqualFold(specs[0].Name, specs[1].Name) {
		return nil, types.NewError(types.SyntaxErrorTag, specs[1].Offset, "duplicated lambda parameter %s", specs[1].Name)
	}

	top := &s.scopes[s.depth]
	*top = scope{count: len(specs)}
	for i, spec := range specs {
		top.params[i] = ast.NewParameter(spec.Name, spec.Type, spec.Offset)
	}
	s.depth++
	return top.parameters(), nil
}

// Resolve finds a parameter by name, innermost scope first.
func (s *Stack) Resolve(name string) (*ast.Parameter, bool) {
	for i := s.depth - 1; i >= 0; i-- {
		for _, p := range s.scopes[i].parameters() {
			if strings.EqualFold(p.Name, name) {
				return p, true
			}
		}
	}
	return nil, false
}

// VisibleParameters lists every open parameter, innermost scope first and
// outermost last.
func (s *Stack) VisibleParameters() []*ast.Parameter {
	var params []*ast.Parameter
	for i := s.depth - 1; i >= 0; i-- {
		params = append(params, s.scopes[i].parameters()...)
	}
	return params
}

// Finalize closes the innermost scope, coercing the body to the declared
// return type. The scope is released whether or not the body fits.
func (s *Stack) Finalize(body ast.Node, declared types.Type) (*ast.Lambda, error) {
	fn, _, err := s.finalize(body, declared, false)
	return fn, err
}

// FinalizeUpgrade is Finalize for callers inferring the return type. The
// boolean reports that the declared type was upgraded and the caller must
// adjust it.
func (s *Stack) FinalizeUpgrade(body ast.Node, declared types.Type) (*ast.Lambda, bool, error) {
	return s.finalize(body, declared, true)
}

func (s *Stack) finalize(body ast.Node, declared types.Type, upgrade bool) (*ast.Lambda, bool, error) {
	if s.depth == 0 {
		return nil, false, types.NewError(types.SyntaxErrorTag, body.Offset(), "no open lambda scope to finalize")
	}
	top := &s.scopes[s.depth-1]
	params := append([]*ast.Parameter(nil), top.parameters()...)
	defer func() {
		*top = scope{}
		s.depth--
	}()

	bodyType := body.Type()
	if bodyType == declared {
		return ast.NewLambda(params, body, declared), false, nil
	}

	switch {
	case declared == types.Complex && (bodyType == types.Integer || bodyType == types.Real):
		converted, _ := ast.Coerce(body, types.Complex)
		return ast.NewLambda(params, converted, types.Complex), false, nil

	case declared == types.Real && bodyType == types.Integer:
		converted, _ := ast.Coerce(body, types.Real)
		return ast.NewLambda(params, converted, types.Real), false, nil

	case upgrade && bodyType == types.Real && (declared == types.Undetermined || declared == types.Integer):
		return ast.NewLambda(params, body, types.Real), true, nil

	case upgrade && declared == types.Undetermined && bodyType != types.Undetermined:
		return ast.NewLambda(params, body, bodyType), true, nil
	}

	return nil, false, &types.Error{
		Tag:    types.TypeMismatchErrorTag,
		Offset: body.Offset(),
		Err:    &MismatchError{Expected: declared, Actual: bodyType},
	}
}

// Suggest returns the closest visible parameter or extra name, or "".
func (s *Stack) Suggest(name string, extra ...string) string {
	candidates := lo.Uniq(append(lo.Map(s.VisibleParameters(), func(p *ast.Parameter, _ int) string {
		return p.Name
	}), extra...))
	return Closest(name, candidates)
}

// maxEditDistance bounds suggestions that are not fuzzy matches.
const maxEditDistance = 2

// Closest picks the candidate name is most likely a misspelling of: the
// best fuzzy match, or else the nearest candidate by edit distance.
func Closest(name string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	if ranks := fuzzy.RankFindFold(name, candidates); len(ranks) != 0 {
		best := ranks[0]
		for _, r := range ranks[1:] {
			if r.Distance < best.Distance {
				best = r
			}
		}
		return best.Target
	}

	best, bestDistance := "", maxEditDistance+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best
}
