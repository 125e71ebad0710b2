package jack

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TokenType distinguishes the five lexical categories of the Jack grammar.
type TokenType string

const (
	Keyword     TokenType = "keyword"
	Symbol      TokenType = "symbol"
	Identifier  TokenType = "identifier"
	IntConst    TokenType = "integerConstant"
	StringConst TokenType = "stringConstant"
)

// Token is the unit produced by the Tokenizer: a classified lexeme plus its source line, kept
// for diagnostics (grounded on libklein-jackcompiler/tokenizer.go's Token shape, simplified
// since the Parser never needs column information, only line).
type Token struct {
	Type  TokenType
	Value string
	Line  int
}

// The 21 reserved words of the Jack language.
var keywords = map[string]bool{
	"class": true, "constructor": true, "function": true, "method": true,
	"field": true, "static": true, "var": true, "int": true, "char": true,
	"boolean": true, "void": true, "true": true, "false": true, "null": true,
	"this": true, "let": true, "do": true, "if": true, "else": true,
	"while": true, "return": true,
}

// Punctuation symbols recognised as single-character tokens.
const symbolChars = "{}()[].,;+-*/&|<>=~"

// Tokenizer scans a whole .jack source into a token buffer up-front (rather than truly
// byte-at-a-time) so that 'Restart' can rewind the parser's cursor without re-reading or
// re-lexing the underlying stream; this is what the two-pass parser (pass 1 populates the
// class scope, pass 2 emits) relies on.
type Tokenizer struct {
	tokens []Token
	pos    int
}

// Reads the entirety of 'r', lexes it into tokens and returns a ready-to-use Tokenizer
// positioned before the first token (call Advance to move onto it).
func NewTokenizer(r io.Reader) (*Tokenizer, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read jack source: %w", err)
	}

	tokens, err := lex(string(content))
	if err != nil {
		return nil, err
	}
	return &Tokenizer{tokens: tokens, pos: -1}, nil
}

// Returns the token at the current cursor position, or the zero Token if nothing has been
// consumed yet (call Advance first) or the stream is exhausted.
func (t *Tokenizer) Current() (Token, bool) {
	if t.pos < 0 || t.pos >= len(t.tokens) {
		return Token{}, false
	}
	return t.tokens[t.pos], true
}

// Looks one token ahead of the cursor without consuming it, used by the Parser to
// disambiguate identifiers ('X[', 'X.', 'X(' vs bare 'X') without backtracking.
func (t *Tokenizer) PeekNext() (Token, bool) {
	if t.pos+1 >= len(t.tokens) {
		return Token{}, false
	}
	return t.tokens[t.pos+1], true
}

// Advances the cursor by one token and reports whether a token is now available.
func (t *Tokenizer) Advance() bool {
	if t.pos+1 >= len(t.tokens) {
		t.pos = len(t.tokens)
		return false
	}
	t.pos++
	return true
}

// Reports whether another token is available after the current one.
func (t *Tokenizer) HasNext() bool {
	return t.pos+1 < len(t.tokens)
}

// Rewinds the cursor to before the first token, used to run a second parsing pass over the
// same source without re-reading or re-lexing it.
func (t *Tokenizer) Restart() {
	t.pos = -1
}

// Lexes the full source into a token slice. Comments and whitespace are discarded as they're
// encountered; everything else becomes exactly one Token.
func lex(source string) ([]Token, error) {
	tokens := make([]Token, 0, len(source)/4)
	line := 1
	i, n := 0, len(source)

	for i < n {
		c := source[i]

		switch {
		case c == '\n':
			line++
			i++

		case c == ' ' || c == '\t' || c == '\r':
			i++

		case c == '/' && i+1 < n && source[i+1] == '/':
			for i < n && source[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && source[i+1] == '*':
			start := line
			i += 2
			closed := false
			for i+1 < n {
				if source[i] == '\n' {
					line++
				}
				if source[i] == '*' && source[i+1] == '/' {
					i += 2
					closed = true
					break
				}
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated block comment starting at line %d", start)
			}

		case c >= '0' && c <= '9':
			start := i
			for i < n && source[i] >= '0' && source[i] <= '9' {
				i++
			}
			literal := source[start:i]
			if value, err := strconv.Atoi(literal); err != nil || value > 32767 {
				return nil, fmt.Errorf("integer constant %q out of range (0..32767) at line %d", literal, line)
			}
			tokens = append(tokens, Token{Type: IntConst, Value: literal, Line: line})

		case c == '"':
			start := i + 1
			i++
			for i < n && source[i] != '"' {
				if source[i] == '\n' {
					return nil, fmt.Errorf("unterminated string constant starting at line %d", line)
				}
				i++
			}
			if i >= n {
				return nil, fmt.Errorf("unterminated string constant starting at line %d", line)
			}
			tokens = append(tokens, Token{Type: StringConst, Value: source[start:i], Line: line})
			i++ // consume closing quote

		case strings.IndexByte(symbolChars, c) >= 0:
			tokens = append(tokens, Token{Type: Symbol, Value: string(c), Line: line})
			i++

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(source[i]) {
				i++
			}
			literal := source[start:i]
			if keywords[literal] {
				tokens = append(tokens, Token{Type: Keyword, Value: literal, Line: line})
			} else {
				tokens = append(tokens, Token{Type: Identifier, Value: literal, Line: line})
			}

		default:
			return nil, fmt.Errorf("unexpected character %q at line %d", c, line)
		}
	}

	return tokens, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
