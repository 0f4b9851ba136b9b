package lexer

import (
	"fmt"

	"github.com/xplshn/mlex/pkg/config"
	"github.com/xplshn/mlex/pkg/symtab"
	"github.com/xplshn/mlex/pkg/token"
	"github.com/xplshn/mlex/pkg/util"
)

type ErrorKind int

const (
	InvalidCharacter ErrorKind = iota
	UnterminatedLiteral
)

// LexError is the single fatal error family the tokenizer produces. The
// pass halts at the first one; no tokens past it are authoritative.
type LexError struct {
	Kind    ErrorKind
	Ch      rune       // offending character, InvalidCharacter only
	Literal token.Type // Comment, StringLiteral or CharLiteral, UnterminatedLiteral only
	Line    int
	Column  int
}

func (e *LexError) Error() string {
	if e.Kind == UnterminatedLiteral {
		return fmt.Sprintf("Lexical Error: Unterminated %s at line %d, column %d", literalName(e.Literal), e.Line, e.Column)
	}
	return fmt.Sprintf("Lexical Error: Invalid character '%c' at line %d, column %d", e.Ch, e.Line, e.Column)
}

func literalName(t token.Type) string {
	switch t {
	case token.Comment:
		return "block comment"
	case token.CharLiteral:
		return "character literal"
	default:
		return "string literal"
	}
}

type Lexer struct {
	source  []rune
	pos     int
	line    int
	column  int
	cfg     *config.Config
	symbols *symtab.Table
}

func New(source []rune, cfg *config.Config) *Lexer {
	return &Lexer{
		source: source, line: 1, column: 1, cfg: cfg,
		symbols: symtab.New(cfg),
	}
}

// Symbols exposes the table built alongside the token stream. Meaningful
// only after a full pass that returned no error.
func (l *Lexer) Symbols() *symtab.Table { return l.symbols }

// Tokenize runs the whole pass and returns the complete sequence
// terminated by one EOF token, or nil and the first error.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) Next() (token.Token, error) {
	for {
		l.skipWhitespace()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.emit(token.Token{Type: token.EOF, Lexeme: "EOF", Line: startLine, Column: startCol}), nil
		}

		ch := l.peek()

		if ch == '/' && l.peekNext() == '*' && l.cfg.IsFeatureEnabled(config.FeatBlockComments) {
			if err := l.blockComment(startLine, startCol); err != nil {
				return token.Token{}, err
			}
			continue
		}
		if ch == '/' && l.peekNext() == '/' && l.cfg.IsFeatureEnabled(config.FeatLineComments) {
			l.lineComment()
			continue
		}

		switch {
		case ch == '"':
			return l.stringLiteral(startPos, startCol, startLine)
		case ch == '\'':
			return l.charLiteral(startPos, startCol, startLine)
		case isDigit(ch):
			return l.numberLiteral(startPos, startCol, startLine), nil
		case ch == '#':
			return l.directive(startPos, startCol, startLine)
		case isIdentStart(ch):
			return l.identifierOrKeyword(startPos, startCol, startLine), nil
		}

		l.advance()
		switch ch {
		case '=':
			return l.matchThen('=', token.Equal, token.Assign, startPos, startCol, startLine), nil
		case '<':
			return l.matchThen('=', token.LessEqual, token.LessThan, startPos, startCol, startLine), nil
		case '>':
			return l.matchThen('=', token.GreaterEqual, token.GreaterThan, startPos, startCol, startLine), nil
		case '+':
			return l.matchThen('+', token.Increment, token.Plus, startPos, startCol, startLine), nil
		case '-':
			return l.matchThen('-', token.Decrement, token.Minus, startPos, startCol, startLine), nil
		case '!':
			if l.match('=') {
				return l.makeToken(token.NotEqual, startPos, startCol, startLine), nil
			}
			return token.Token{}, l.invalidChar(ch, startLine, startCol)
		case '&':
			if l.match('&') {
				return l.makeToken(token.LogicalAnd, startPos, startCol, startLine), nil
			}
			return token.Token{}, l.invalidChar(ch, startLine, startCol)
		case '|':
			if l.match('|') {
				return l.makeToken(token.LogicalOr, startPos, startCol, startLine), nil
			}
			return token.Token{}, l.invalidChar(ch, startLine, startCol)
		case '*':
			return l.makeToken(token.Multiply, startPos, startCol, startLine), nil
		case '/':
			return l.makeToken(token.Divide, startPos, startCol, startLine), nil
		case '%':
			return l.makeToken(token.Modulo, startPos, startCol, startLine), nil
		case ';':
			return l.makeToken(token.Semicolon, startPos, startCol, startLine), nil
		case ',':
			return l.makeToken(token.Comma, startPos, startCol, startLine), nil
		case '(':
			return l.makeToken(token.LeftParen, startPos, startCol, startLine), nil
		case ')':
			return l.makeToken(token.RightParen, startPos, startCol, startLine), nil
		case '{':
			return l.makeToken(token.LeftBrace, startPos, startCol, startLine), nil
		case '}':
			return l.makeToken(token.RightBrace, startPos, startCol, startLine), nil
		case '[':
			return l.makeToken(token.LeftBracket, startPos, startCol, startLine), nil
		case ']':
			return l.makeToken(token.RightBracket, startPos, startCol, startLine), nil
		}

		return token.Token{}, l.invalidChar(ch, startLine, startCol)
	}
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, startPos, startCol, startLine int) token.Token {
	return l.emit(token.Token{
		Type: tokType, Lexeme: string(l.source[startPos:l.pos]),
		Line: startLine, Column: startCol,
	})
}

// emit hands every committed token to the symbol table before it reaches
// the caller, so the table always reflects exactly the emitted stream.
func (l *Lexer) emit(tok token.Token) token.Token {
	if l.cfg.IsFeatureEnabled(config.FeatSymbolTable) {
		l.symbols.Observe(tok)
	}
	return tok
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, sPos, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, sPos, sCol, sLine)
	}
	return l.makeToken(elseType, sPos, sCol, sLine)
}

func (l *Lexer) invalidChar(ch rune, line, col int) error {
	return &LexError{Kind: InvalidCharacter, Ch: ch, Line: line, Column: col}
}

func (l *Lexer) unterminated(lit token.Type, line, col int) error {
	return &LexError{Kind: UnterminatedLiteral, Literal: lit, Line: line, Column: col}
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) blockComment(startLine, startCol int) error {
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return l.unterminated(token.Comment, startLine, startCol)
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for isIdentPart(l.peek()) {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, startPos, startCol, startLine)
	}
	return l.makeToken(token.Identifier, startPos, startCol, startLine)
}

func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	for isDigit(l.peek()) {
		l.advance()
	}

	// The fractional part is required for a float, so "2e5" stays an
	// integer followed by an identifier.
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
		if l.cfg.IsFeatureEnabled(config.FeatFloatExponent) {
			l.matchExponent()
		}
		return l.makeToken(token.FloatLiteral, startPos, startCol, startLine)
	}

	return l.makeToken(token.IntegerLiteral, startPos, startCol, startLine)
}

// matchExponent consumes e/E, an optional sign and the digit run, but only
// when at least one digit follows; "2.5e" keeps the 'e' for the identifier
// rules.
func (l *Lexer) matchExponent() {
	if l.peek() != 'e' && l.peek() != 'E' {
		return
	}
	digitAt := l.pos + 1
	if digitAt < len(l.source) && (l.source[digitAt] == '+' || l.source[digitAt] == '-') {
		digitAt++
	}
	if digitAt >= len(l.source) || !isDigit(l.source[digitAt]) {
		return
	}
	for l.pos <= digitAt {
		l.advance()
	}
	for isDigit(l.peek()) {
		l.advance()
	}
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) (token.Token, error) {
	l.advance()
	for !l.isAtEnd() {
		switch l.peek() {
		case '"':
			l.advance()
			return l.makeToken(token.StringLiteral, startPos, startCol, startLine), nil
		case '\\':
			escLine, escCol := l.line, l.column
			l.advance()
			if l.isAtEnd() {
				break
			}
			c := l.advance()
			if !isKnownEscape(c) {
				util.Warn(l.cfg, config.WarnUnknownEscape,
					token.Token{Type: token.StringLiteral, Lexeme: "\\" + string(c), Line: escLine, Column: escCol},
					"Unrecognized escape sequence '\\%c'", c)
			}
		default:
			l.advance()
		}
	}
	return token.Token{}, l.unterminated(token.StringLiteral, startLine, startCol)
}

func (l *Lexer) charLiteral(startPos, startCol, startLine int) (token.Token, error) {
	l.advance()
	if l.isAtEnd() {
		return token.Token{}, l.unterminated(token.CharLiteral, startLine, startCol)
	}

	switch l.peek() {
	case '\'':
		// Empty literal, nothing matches the opening quote.
		return token.Token{}, l.invalidChar('\'', startLine, startCol)
	case '\\':
		escLine, escCol := l.line, l.column
		l.advance()
		if l.isAtEnd() {
			return token.Token{}, l.unterminated(token.CharLiteral, startLine, startCol)
		}
		c := l.advance()
		if !isKnownEscape(c) {
			util.Warn(l.cfg, config.WarnUnknownEscape,
				token.Token{Type: token.CharLiteral, Lexeme: "\\" + string(c), Line: escLine, Column: escCol},
				"Unrecognized escape sequence '\\%c'", c)
		}
	default:
		l.advance()
	}

	if l.isAtEnd() {
		return token.Token{}, l.unterminated(token.CharLiteral, startLine, startCol)
	}
	if l.peek() != '\'' {
		return token.Token{}, l.invalidChar(l.peek(), l.line, l.column)
	}
	l.advance()
	return l.makeToken(token.CharLiteral, startPos, startCol, startLine), nil
}

func (l *Lexer) directive(startPos, startCol, startLine int) (token.Token, error) {
	l.advance()
	if !l.cfg.IsFeatureEnabled(config.FeatPreprocessor) {
		return token.Token{}, l.invalidChar('#', startLine, startCol)
	}
	for isIdentPart(l.peek()) {
		l.advance()
	}
	switch string(l.source[startPos:l.pos]) {
	case "#include":
		return l.makeToken(token.Include, startPos, startCol, startLine), nil
	case "#define":
		return l.makeToken(token.Define, startPos, startCol, startLine), nil
	}
	return token.Token{}, l.invalidChar('#', startLine, startCol)
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch rune) bool { return isIdentStart(ch) || isDigit(ch) }

func isKnownEscape(ch rune) bool {
	switch ch {
	case 'n', 't', 'r', '0', '\\', '\'', '"':
		return true
	}
	return false
}
