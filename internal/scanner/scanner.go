package scanner

import (
	"log"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/karupanerura/series-formula/internal/token"
	"github.com/karupanerura/series-formula/internal/types"
)

type Option func(*Scanner)

// WithClock sets the date two-digit years are attributed against.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		s.now = now
	}
}

func WithKeywords(keywords *KeywordSet) Option {
	return func(s *Scanner) {
		s.keywords = keywords
	}
}

func WithPortableKeywordMatch() Option {
	return func(s *Scanner) {
		s.portable = true
	}
}

func WithDebug(debug bool) Option {
	return func(s *Scanner) {
		s.debug = debug
	}
}

// Scanner converts formula source into tokens, one token of lookahead at a
// time. It is not safe for concurrent use.
type Scanner struct {
	source   string
	index    int
	current  token.Token
	keywords *KeywordSet
	portable bool
	now      func() time.Time
	debug    bool
}

func New(source string, opts ...Option) (*Scanner, error) {
	s := &Scanner{
		source:   source,
		keywords: ExtendedKeywords,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Advance(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scanner) Source() string {
	return s.source
}

// Current returns the token under the cursor without consuming it.
func (s *Scanner) Current() token.Token {
	return s.current
}

// Offset is the cursor position past the current token.
func (s *Scanner) Offset() int {
	return s.index
}

// Advance consumes the current token and scans the next one. Errors are
// fatal: the current token becomes an error token and the cursor moves to
// the end of the input.
func (s *Scanner) Advance() error {
	tok, err := s.scan()
	if err != nil {
		s.index = len(s.source)
		s.current = token.Token{Kind: token.Error, Offset: err.Offset, Text: err.Message()}
		if s.debug {
			log.Println("scan error: ", err)
		}
		return err
	}

	s.current = tok
	if s.debug {
		log.Println("token: ", tok)
	}
	return nil
}

func (s *Scanner) scan() (token.Token, *types.Error) {
	s.skipBlanks()
	if s.index >= len(s.source) {
		return token.Token{Kind: token.EOF, Offset: len(s.source)}, nil
	}

	start := s.index
	switch c := s.source[start]; {
	case isLetter(c):
		return s.scanName(start)
	case isDigit(c):
		return s.scanNumber(start)
	case c == '"':
		return s.scanString(start)
	default:
		return s.scanSymbol(start)
	}
}

// skipBlanks skips white spaces and "--" line comments.
func (s *Scanner) skipBlanks() {
	for s.index < len(s.source) {
		switch c := s.source[s.index]; {
		case isSpace(c):
			s.index++
		case c == '-':
			if s.index+1 < len(s.source) && s.source[s.index+1] == '-' {
				if i := strings.IndexByte(s.source[s.index:], '\n'); i != -1 {
					s.index += i + 1
				} else {
					s.index = len(s.source)
				}
				continue
			}
			return
		default:
			return
		}
	}
}

func (s *Scanner) lookupKeyword(word string) (token.Kind, bool) {
	if s.portable {
		return s.keywords.LookupPortable(word)
	}
	return s.keywords.Lookup(word)
}

// wordEnd returns the index past the identifier run starting at i.
func (s *Scanner) wordEnd(i int) int {
	for i < len(s.source) && isAlnum(s.source[i]) {
		i++
	}
	return i
}

func (s *Scanner) scanName(start int) (token.Token, *types.Error) {
	end := s.wordEnd(start)
	word := s.source[start:end]
	s.index = end

	if kind, ok := s.lookupKeyword(word); ok {
		return token.Token{Kind: kind, Offset: start}, nil
	}
	if date, ok := s.resolveBareDate(word); ok {
		return token.Token{Kind: token.Date, Offset: start, Value: token.DateValue(date)}, nil
	}

	// peek past trailing white spaces to classify calls and qualified names
	kind := token.Identifier
	i := end
	for i < len(s.source) && isSpace(s.source[i]) {
		i++
	}
	if i < len(s.source) {
		switch s.source[i] {
		case '(':
			kind = token.Functor
		case ':':
			if i+1 < len(s.source) && s.source[i+1] == ':' {
				kind = token.ClassName
			}
		}
	}
	return token.Token{Kind: kind, Offset: start, Text: word}, nil
}

func (s *Scanner) scanNumber(start int) (token.Token, *types.Error) {
	src := s.source
	i := start
	for i < len(src) && isDigit(src[i]) {
		i++
	}

	if i < len(src) && src[i] == '@' {
		end := s.wordEnd(i + 1)
		s.index = end
		date, err := s.resolveDate(start, src[start:i], src[i+1:end])
		if err != nil {
			return token.Token{}, err
		}
		return token.Token{Kind: token.Date, Offset: start, Value: token.DateValue(date)}, nil
	}

	isReal := false
	if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
		i += 2
		for i < len(src) && isDigit(src[i]) {
			i++
		}
		isReal = true
	}
	if end, ok := s.exponentEnd(i); ok {
		i = end
		isReal = true
	}

	text := src[start:i]
	var value token.Literal
	if isReal {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token.Token{}, types.NewError(types.LexicalErrorTag, start, "malformed real literal %q: %v", text, err)
		}
		value = token.RealValue(v)
	} else {
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return token.Token{}, types.NewError(types.LexicalErrorTag, start, "malformed integer literal %q: %v", text, err)
		}
		value = token.IntValue(v)
	}
	s.index = i

	if i >= len(src) || !isLetter(src[i]) {
		kind := token.Int
		if isReal {
			kind = token.Real
		}
		return token.Token{Kind: kind, Offset: start, Value: value}, nil
	}

	// imaginary suffix
	if src[i] == 'i' && (i+1 >= len(src) || !isAlnum(src[i+1])) {
		s.index = i + 1
		return token.Token{Kind: token.Imaginary, Offset: start, Value: token.RealValue(realOf(value))}, nil
	}

	// juxtaposed identifier, unless the letters start a keyword: 3else
	end := s.wordEnd(i)
	word := src[i:end]
	if _, ok := s.lookupKeyword(word); ok {
		kind := token.Int
		if isReal {
			kind = token.Real
		}
		return token.Token{Kind: kind, Offset: start, Value: value}, nil
	}

	s.index = end
	kind := token.MultVarI
	if isReal {
		kind = token.MultVarR
	}
	return token.Token{Kind: kind, Offset: start, Text: word, Value: value}, nil
}

// exponentEnd recognises [eE][+-]?digits at i.
func (s *Scanner) exponentEnd(i int) (int, bool) {
	src := s.source
	if i >= len(src) || (src[i] != 'e' && src[i] != 'E') {
		return 0, false
	}
	j := i + 1
	if j < len(src) && (src[j] == '+' || src[j] == '-') {
		j++
	}
	if j >= len(src) || !isDigit(src[j]) {
		return 0, false
	}
	for j < len(src) && isDigit(src[j]) {
		j++
	}
	return j, true
}

func realOf(v token.Literal) float64 {
	switch v := v.(type) {
	case token.IntValue:
		return float64(v)
	case token.RealValue:
		return float64(v)
	default:
		return 0
	}
}

func (s *Scanner) scanString(start int) (token.Token, *types.Error) {
	src := s.source
	var b strings.Builder
	i := start + 1
	for {
		j := strings.IndexByte(src[i:], '"')
		if j == -1 {
			return token.Token{}, types.NewError(types.LexicalErrorTag, start, "unterminated string literal")
		}
		b.WriteString(src[i : i+j])
		i += j + 1

		// a doubled quote is an escaped quote
		if i < len(src) && src[i] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		break
	}

	s.index = i
	return token.Token{Kind: token.String, Offset: start, Text: b.String()}, nil
}

var singleCharKinds = map[byte]token.Kind{
	'+':  token.Plus,
	'-':  token.Minus,
	'*':  token.Times,
	'/':  token.Divide,
	'%':  token.Mod,
	'^':  token.Caret,
	'\'': token.Transpose,
	'(':  token.LPar,
	')':  token.RPar,
	'[':  token.LBra,
	']':  token.RBra,
	'{':  token.LBrace,
	'}':  token.RBrace,
	',':  token.Comma,
	';':  token.Semicolon,
	':':  token.Colon,
	'.':  token.Dot,
	'=':  token.Eq,
	'<':  token.Lt,
	'>':  token.Gt,
}

var doubleCharKinds = map[[2]byte]token.Kind{
	{'=', '>'}: token.Arrow,
	{'.', '*'}: token.PointTimes,
	{'.', '/'}: token.PointDivide,
	{':', ':'}: token.DoubleColon,
	{'!', '='}: token.Ne,
	{'<', '='}: token.Le,
	{'<', '>'}: token.Ne,
	{'>', '='}: token.Ge,
}

func (s *Scanner) scanSymbol(start int) (token.Token, *types.Error) {
	c := s.source[start]
	if start+1 < len(s.source) {
		if kind, ok := doubleCharKinds[[2]byte{c, s.source[start+1]}]; ok {
			s.index = start + 2
			return token.Token{Kind: kind, Offset: start}, nil
		}
	}
	if kind, ok := singleCharKinds[c]; ok {
		s.index = start + 1
		return token.Token{Kind: kind, Offset: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(s.source[start:])
	return token.Token{}, types.NewError(types.LexicalErrorTag, start, "unexpected character %q", r)
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isAlnum(c byte) bool {
	return isLetter(c) || isDigit(c)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
