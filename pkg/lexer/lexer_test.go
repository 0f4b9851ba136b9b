package lexer_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/mlex/pkg/config"
	"github.com/xplshn/mlex/pkg/lexer"
	"github.com/xplshn/mlex/pkg/token"
)

func tokenize(t *testing.T, input string) []token.Token {
	t.Helper()
	l := lexer.New([]rune(input), config.NewConfig())
	toks, err := l.Tokenize()
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", input, err)
	}
	return toks
}

func runCase(t *testing.T, input string, want []token.Token) {
	t.Helper()
	got := tokenize(t, input)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("token stream for %q mismatch (-want +got):\n%s", input, diff)
	}
}

func lexErrorFor(t *testing.T, input string, cfg *config.Config) *lexer.LexError {
	t.Helper()
	if cfg == nil {
		cfg = config.NewConfig()
	}
	_, err := lexer.New([]rune(input), cfg).Tokenize()
	if err == nil {
		t.Fatalf("Tokenize(%q) succeeded, want error", input)
	}
	var lexErr *lexer.LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("Tokenize(%q) returned %T, want *lexer.LexError", input, err)
	}
	return lexErr
}

func TestEmptyAndWhitespaceOnly(t *testing.T) {
	runCase(t, "", []token.Token{
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 1},
	})
	runCase(t, "   ", []token.Token{
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 4},
	})
	runCase(t, "  \n ", []token.Token{
		{Type: token.EOF, Lexeme: "EOF", Line: 2, Column: 2},
	})
}

func TestDeclarationPositions(t *testing.T) {
	runCase(t, "int x = 10;", []token.Token{
		{Type: token.Int, Lexeme: "int", Line: 1, Column: 1},
		{Type: token.Identifier, Lexeme: "x", Line: 1, Column: 5},
		{Type: token.Assign, Lexeme: "=", Line: 1, Column: 7},
		{Type: token.IntegerLiteral, Lexeme: "10", Line: 1, Column: 9},
		{Type: token.Semicolon, Lexeme: ";", Line: 1, Column: 11},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 12},
	})
}

func TestMultiCharBeforeSingleChar(t *testing.T) {
	runCase(t, "==", []token.Token{
		{Type: token.Equal, Lexeme: "==", Line: 1, Column: 1},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 3},
	})
	runCase(t, "++", []token.Token{
		{Type: token.Increment, Lexeme: "++", Line: 1, Column: 1},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 3},
	})
	runCase(t, "&& || == != <= >= ++ --", []token.Token{
		{Type: token.LogicalAnd, Lexeme: "&&", Line: 1, Column: 1},
		{Type: token.LogicalOr, Lexeme: "||", Line: 1, Column: 4},
		{Type: token.Equal, Lexeme: "==", Line: 1, Column: 7},
		{Type: token.NotEqual, Lexeme: "!=", Line: 1, Column: 10},
		{Type: token.LessEqual, Lexeme: "<=", Line: 1, Column: 13},
		{Type: token.GreaterEqual, Lexeme: ">=", Line: 1, Column: 16},
		{Type: token.Increment, Lexeme: "++", Line: 1, Column: 19},
		{Type: token.Decrement, Lexeme: "--", Line: 1, Column: 22},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 24},
	})
}

func TestSingleCharOperatorsAndDelimiters(t *testing.T) {
	runCase(t, "+ - * / % = < > ; , ( ) { } [ ]", []token.Token{
		{Type: token.Plus, Lexeme: "+", Line: 1, Column: 1},
		{Type: token.Minus, Lexeme: "-", Line: 1, Column: 3},
		{Type: token.Multiply, Lexeme: "*", Line: 1, Column: 5},
		{Type: token.Divide, Lexeme: "/", Line: 1, Column: 7},
		{Type: token.Modulo, Lexeme: "%", Line: 1, Column: 9},
		{Type: token.Assign, Lexeme: "=", Line: 1, Column: 11},
		{Type: token.LessThan, Lexeme: "<", Line: 1, Column: 13},
		{Type: token.GreaterThan, Lexeme: ">", Line: 1, Column: 15},
		{Type: token.Semicolon, Lexeme: ";", Line: 1, Column: 17},
		{Type: token.Comma, Lexeme: ",", Line: 1, Column: 19},
		{Type: token.LeftParen, Lexeme: "(", Line: 1, Column: 21},
		{Type: token.RightParen, Lexeme: ")", Line: 1, Column: 23},
		{Type: token.LeftBrace, Lexeme: "{", Line: 1, Column: 25},
		{Type: token.RightBrace, Lexeme: "}", Line: 1, Column: 27},
		{Type: token.LeftBracket, Lexeme: "[", Line: 1, Column: 29},
		{Type: token.RightBracket, Lexeme: "]", Line: 1, Column: 31},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 32},
	})
}

func TestKeywordsAreWholeWords(t *testing.T) {
	runCase(t, "int", []token.Token{
		{Type: token.Int, Lexeme: "int", Line: 1, Column: 1},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 4},
	})
	runCase(t, "integer", []token.Token{
		{Type: token.Identifier, Lexeme: "integer", Line: 1, Column: 1},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 8},
	})
	runCase(t, "if else while for return float char bool string", []token.Token{
		{Type: token.If, Lexeme: "if", Line: 1, Column: 1},
		{Type: token.Else, Lexeme: "else", Line: 1, Column: 4},
		{Type: token.While, Lexeme: "while", Line: 1, Column: 9},
		{Type: token.For, Lexeme: "for", Line: 1, Column: 15},
		{Type: token.Return, Lexeme: "return", Line: 1, Column: 19},
		{Type: token.Float, Lexeme: "float", Line: 1, Column: 26},
		{Type: token.Char, Lexeme: "char", Line: 1, Column: 32},
		{Type: token.Bool, Lexeme: "bool", Line: 1, Column: 37},
		{Type: token.String, Lexeme: "string", Line: 1, Column: 42},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 48},
	})
}

func TestBoolLiterals(t *testing.T) {
	runCase(t, "bool ok = true;", []token.Token{
		{Type: token.Bool, Lexeme: "bool", Line: 1, Column: 1},
		{Type: token.Identifier, Lexeme: "ok", Line: 1, Column: 6},
		{Type: token.Assign, Lexeme: "=", Line: 1, Column: 9},
		{Type: token.BoolLiteral, Lexeme: "true", Line: 1, Column: 11},
		{Type: token.Semicolon, Lexeme: ";", Line: 1, Column: 15},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 16},
	})
	runCase(t, "false", []token.Token{
		{Type: token.BoolLiteral, Lexeme: "false", Line: 1, Column: 1},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 6},
	})
}

func TestLineCommentStripping(t *testing.T) {
	withComment := tokenize(t, "// x\nint y;")
	plain := tokenize(t, "int y;")
	if len(withComment) != len(plain) {
		t.Fatalf("comment changed token count: %d vs %d", len(withComment), len(plain))
	}
	for i := range plain {
		got, want := withComment[i], plain[i]
		want.Line++
		if got != want {
			t.Errorf("token %d = %v, want %v", i, got, want)
		}
	}
}

func TestBlockComments(t *testing.T) {
	runCase(t, "/* hi */int y;", []token.Token{
		{Type: token.Int, Lexeme: "int", Line: 1, Column: 9},
		{Type: token.Identifier, Lexeme: "y", Line: 1, Column: 13},
		{Type: token.Semicolon, Lexeme: ";", Line: 1, Column: 14},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 15},
	})
	runCase(t, "/*\n*/x", []token.Token{
		{Type: token.Identifier, Lexeme: "x", Line: 2, Column: 3},
		{Type: token.EOF, Lexeme: "EOF", Line: 2, Column: 4},
	})
}

func TestFloatBeforeInteger(t *testing.T) {
	runCase(t, "3.14", []token.Token{
		{Type: token.FloatLiteral, Lexeme: "3.14", Line: 1, Column: 1},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 5},
	})
}

func TestFloatExponents(t *testing.T) {
	for _, input := range []string{"2.5e10", "2.5E+3", "2.5e-7"} {
		got := tokenize(t, input)
		want := []token.Token{
			{Type: token.FloatLiteral, Lexeme: input, Line: 1, Column: 1},
			{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 7},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("token stream for %q mismatch (-want +got):\n%s", input, diff)
		}
	}

	// An exponent without digits is not consumed.
	runCase(t, "2.5e", []token.Token{
		{Type: token.FloatLiteral, Lexeme: "2.5", Line: 1, Column: 1},
		{Type: token.Identifier, Lexeme: "e", Line: 1, Column: 4},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 5},
	})
	runCase(t, "2.5e+", []token.Token{
		{Type: token.FloatLiteral, Lexeme: "2.5", Line: 1, Column: 1},
		{Type: token.Identifier, Lexeme: "e", Line: 1, Column: 4},
		{Type: token.Plus, Lexeme: "+", Line: 1, Column: 5},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 6},
	})

	// The fractional part is required before an exponent counts.
	runCase(t, "2e5", []token.Token{
		{Type: token.IntegerLiteral, Lexeme: "2", Line: 1, Column: 1},
		{Type: token.Identifier, Lexeme: "e5", Line: 1, Column: 2},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 4},
	})
}

func TestIntegerFollowedByDot(t *testing.T) {
	lexErr := lexErrorFor(t, "1.", nil)
	if lexErr.Kind != lexer.InvalidCharacter || lexErr.Ch != '.' {
		t.Errorf("got %+v, want InvalidCharacter '.'", lexErr)
	}
	if lexErr.Line != 1 || lexErr.Column != 2 {
		t.Errorf("error at %d:%d, want 1:2", lexErr.Line, lexErr.Column)
	}
}

func TestStringLiterals(t *testing.T) {
	runCase(t, `s = "hello world";`, []token.Token{
		{Type: token.Identifier, Lexeme: "s", Line: 1, Column: 1},
		{Type: token.Assign, Lexeme: "=", Line: 1, Column: 3},
		{Type: token.StringLiteral, Lexeme: `"hello world"`, Line: 1, Column: 5},
		{Type: token.Semicolon, Lexeme: ";", Line: 1, Column: 18},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 19},
	})

	// An escaped quote does not close the literal.
	runCase(t, `"a\"b"`, []token.Token{
		{Type: token.StringLiteral, Lexeme: `"a\"b"`, Line: 1, Column: 1},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 7},
	})
}

func TestMultiLineString(t *testing.T) {
	runCase(t, "x = \"a\nb\";", []token.Token{
		{Type: token.Identifier, Lexeme: "x", Line: 1, Column: 1},
		{Type: token.Assign, Lexeme: "=", Line: 1, Column: 3},
		{Type: token.StringLiteral, Lexeme: "\"a\nb\"", Line: 1, Column: 5},
		{Type: token.Semicolon, Lexeme: ";", Line: 2, Column: 3},
		{Type: token.EOF, Lexeme: "EOF", Line: 2, Column: 4},
	})
}

func TestCharLiterals(t *testing.T) {
	runCase(t, `'a' '\n' '\''`, []token.Token{
		{Type: token.CharLiteral, Lexeme: `'a'`, Line: 1, Column: 1},
		{Type: token.CharLiteral, Lexeme: `'\n'`, Line: 1, Column: 5},
		{Type: token.CharLiteral, Lexeme: `'\''`, Line: 1, Column: 10},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 14},
	})
}

func TestCharLiteralErrors(t *testing.T) {
	lexErr := lexErrorFor(t, "'ab'", nil)
	if lexErr.Kind != lexer.InvalidCharacter || lexErr.Ch != 'b' {
		t.Errorf("'ab' gave %+v, want InvalidCharacter 'b'", lexErr)
	}
	if lexErr.Line != 1 || lexErr.Column != 3 {
		t.Errorf("'ab' error at %d:%d, want 1:3", lexErr.Line, lexErr.Column)
	}

	lexErr = lexErrorFor(t, "''", nil)
	if lexErr.Kind != lexer.InvalidCharacter || lexErr.Ch != '\'' {
		t.Errorf("'' gave %+v, want InvalidCharacter '''", lexErr)
	}
	if lexErr.Column != 1 {
		t.Errorf("'' error at column %d, want 1", lexErr.Column)
	}
}

func TestPreprocessorDirectives(t *testing.T) {
	runCase(t, "#include <iostream>", []token.Token{
		{Type: token.Include, Lexeme: "#include", Line: 1, Column: 1},
		{Type: token.LessThan, Lexeme: "<", Line: 1, Column: 10},
		{Type: token.Identifier, Lexeme: "iostream", Line: 1, Column: 11},
		{Type: token.GreaterThan, Lexeme: ">", Line: 1, Column: 19},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 20},
	})
	runCase(t, "#define MAX 100", []token.Token{
		{Type: token.Define, Lexeme: "#define", Line: 1, Column: 1},
		{Type: token.Identifier, Lexeme: "MAX", Line: 1, Column: 9},
		{Type: token.IntegerLiteral, Lexeme: "100", Line: 1, Column: 13},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 16},
	})

	lexErr := lexErrorFor(t, "#includex", nil)
	if lexErr.Kind != lexer.InvalidCharacter || lexErr.Ch != '#' || lexErr.Column != 1 {
		t.Errorf("#includex gave %+v, want InvalidCharacter '#' at column 1", lexErr)
	}
}

func TestErrorHalt(t *testing.T) {
	lexErr := lexErrorFor(t, "int x = 10 @ 5;", nil)
	if lexErr.Kind != lexer.InvalidCharacter {
		t.Fatalf("kind = %v, want InvalidCharacter", lexErr.Kind)
	}
	if lexErr.Ch != '@' {
		t.Errorf("ch = %q, want '@'", lexErr.Ch)
	}
	if lexErr.Line != 1 || lexErr.Column != 12 {
		t.Errorf("error at %d:%d, want 1:12", lexErr.Line, lexErr.Column)
	}
	if got, want := lexErr.Error(), "Lexical Error: Invalid character '@' at line 1, column 12"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLoneAmpPipeBang(t *testing.T) {
	for _, input := range []string{"&", "|", "!"} {
		lexErr := lexErrorFor(t, input, nil)
		if lexErr.Kind != lexer.InvalidCharacter || lexErr.Ch != rune(input[0]) {
			t.Errorf("%q gave %+v, want InvalidCharacter %q", input, lexErr, input)
		}
	}
}

func TestUnterminatedLiterals(t *testing.T) {
	cases := []struct {
		input   string
		literal token.Type
		line    int
		column  int
		message string
	}{
		{"/* never closed", token.Comment, 1, 1, "Lexical Error: Unterminated block comment at line 1, column 1"},
		{"int s = \"ab", token.StringLiteral, 1, 9, "Lexical Error: Unterminated string literal at line 1, column 9"},
		{"'a", token.CharLiteral, 1, 1, "Lexical Error: Unterminated character literal at line 1, column 1"},
		{`'\`, token.CharLiteral, 1, 1, "Lexical Error: Unterminated character literal at line 1, column 1"},
	}
	for _, c := range cases {
		lexErr := lexErrorFor(t, c.input, nil)
		if lexErr.Kind != lexer.UnterminatedLiteral {
			t.Errorf("%q: kind = %v, want UnterminatedLiteral", c.input, lexErr.Kind)
			continue
		}
		if lexErr.Literal != c.literal || lexErr.Line != c.line || lexErr.Column != c.column {
			t.Errorf("%q gave %+v, want literal %v at %d:%d", c.input, lexErr, c.literal, c.line, c.column)
		}
		if got := lexErr.Error(); got != c.message {
			t.Errorf("%q: Error() = %q, want %q", c.input, got, c.message)
		}
	}
}

func TestFeatureToggles(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatLineComments, false)
	got, err := lexer.New([]rune("// x"), cfg).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []token.Token{
		{Type: token.Divide, Lexeme: "/", Line: 1, Column: 1},
		{Type: token.Divide, Lexeme: "/", Line: 1, Column: 2},
		{Type: token.Identifier, Lexeme: "x", Line: 1, Column: 4},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("line comments disabled (-want +got):\n%s", diff)
	}

	cfg = config.NewConfig()
	cfg.SetFeature(config.FeatBlockComments, false)
	got, err = lexer.New([]rune("/**/"), cfg).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want = []token.Token{
		{Type: token.Divide, Lexeme: "/", Line: 1, Column: 1},
		{Type: token.Multiply, Lexeme: "*", Line: 1, Column: 2},
		{Type: token.Multiply, Lexeme: "*", Line: 1, Column: 3},
		{Type: token.Divide, Lexeme: "/", Line: 1, Column: 4},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("block comments disabled (-want +got):\n%s", diff)
	}

	cfg = config.NewConfig()
	cfg.SetFeature(config.FeatPreprocessor, false)
	lexErr := lexErrorFor(t, "#include", cfg)
	if lexErr.Kind != lexer.InvalidCharacter || lexErr.Ch != '#' {
		t.Errorf("preprocessor disabled gave %+v, want InvalidCharacter '#'", lexErr)
	}

	cfg = config.NewConfig()
	cfg.SetFeature(config.FeatFloatExponent, false)
	got, err = lexer.New([]rune("2.5e10"), cfg).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want = []token.Token{
		{Type: token.FloatLiteral, Lexeme: "2.5", Line: 1, Column: 1},
		{Type: token.Identifier, Lexeme: "e10", Line: 1, Column: 4},
		{Type: token.EOF, Lexeme: "EOF", Line: 1, Column: 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("float exponents disabled (-want +got):\n%s", diff)
	}
}

func TestSymbolTableDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatSymbolTable, false)
	l := lexer.New([]rune("int x;"), cfg)
	if _, err := l.Tokenize(); err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if l.Symbols().Len() != 0 {
		t.Errorf("symbol table has %d entries with symtab disabled, want 0", l.Symbols().Len())
	}
}

func TestUnknownEscapeIsNotAnError(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnUnknownEscape, false)
	got, err := lexer.New([]rune(`"\q"`), cfg).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if got[0].Type != token.StringLiteral || got[0].Lexeme != `"\q"` {
		t.Errorf("got %v, want StringLiteral with the escape preserved", got[0])
	}
}

func TestSymbolsThroughTokenizer(t *testing.T) {
	l := lexer.New([]rune("int x; x = 5;"), config.NewConfig())
	if _, err := l.Tokenize(); err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	symbols := l.Symbols().Snapshot()
	if len(symbols) != 1 {
		t.Fatalf("got %d symbols, want 1", len(symbols))
	}
	x := symbols[0]
	if x.Name != "x" || x.SymbolType != "variable" || x.DataType != "int" || x.Scope != "global" || x.Line != 1 {
		t.Errorf("symbol = %+v", x)
	}
}

func TestFunctionDetectionThroughTokenizer(t *testing.T) {
	l := lexer.New([]rune("int main() { }"), config.NewConfig())
	if _, err := l.Tokenize(); err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	symbols := l.Symbols().Snapshot()
	if len(symbols) != 1 {
		t.Fatalf("got %d symbols, want 1", len(symbols))
	}
	if symbols[0].Name != "main" || symbols[0].SymbolType != "function" {
		t.Errorf("symbol = %+v, want main as function", symbols[0])
	}
}

func TestNextStopsAtEOF(t *testing.T) {
	l := lexer.New([]rune("x"), config.NewConfig())
	tok, err := l.Next()
	if err != nil || tok.Type != token.Identifier {
		t.Fatalf("first Next() = %v, %v", tok, err)
	}
	for i := 0; i < 3; i++ {
		tok, err = l.Next()
		if err != nil || tok.Type != token.EOF {
			t.Fatalf("Next() after end = %v, %v, want EOF", tok, err)
		}
	}
}
