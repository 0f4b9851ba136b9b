package token

import (
	"encoding/json"
	"fmt"
)

type Type int

const (
	EOF Type = iota
	Comment

	// Type keywords
	Int
	Float
	Char
	Bool
	String

	// Control keywords
	If
	Else
	While
	For
	Return

	// Preprocessor directives
	Include
	Define

	// Operators
	Plus
	Minus
	Multiply
	Divide
	Modulo
	Assign
	Equal
	NotEqual
	LessThan
	GreaterThan
	LessEqual
	GreaterEqual
	LogicalAnd
	LogicalOr
	Increment
	Decrement

	// Delimiters
	Semicolon
	Comma
	LeftParen
	RightParen
	LeftBrace
	RightBrace
	LeftBracket
	RightBracket

	// Literals and names
	IntegerLiteral
	FloatLiteral
	CharLiteral
	StringLiteral
	BoolLiteral
	Identifier
)

var KeywordMap = map[string]Type{
	"int":    Int,
	"float":  Float,
	"char":   Char,
	"bool":   Bool,
	"string": String,
	"if":     If,
	"else":   Else,
	"while":  While,
	"for":    For,
	"return": Return,
	"true":   BoolLiteral,
	"false":  BoolLiteral,
}

// TypeStrings carries the canonical spelling of each token type. These
// names are a compatibility surface: they appear verbatim in the console
// token stream and in the token_type field of the JSON artifact.
var TypeStrings = map[Type]string{
	EOF:            "EOF",
	Comment:        "Comment",
	Int:            "Int",
	Float:          "Float",
	Char:           "Char",
	Bool:           "Bool",
	String:         "String",
	If:             "If",
	Else:           "Else",
	While:          "While",
	For:            "For",
	Return:         "Return",
	Include:        "Include",
	Define:         "Define",
	Plus:           "Plus",
	Minus:          "Minus",
	Multiply:       "Multiply",
	Divide:         "Divide",
	Modulo:         "Modulo",
	Assign:         "Assign",
	Equal:          "Equal",
	NotEqual:       "NotEqual",
	LessThan:       "LessThan",
	GreaterThan:    "GreaterThan",
	LessEqual:      "LessEqual",
	GreaterEqual:   "GreaterEqual",
	LogicalAnd:     "LogicalAnd",
	LogicalOr:      "LogicalOr",
	Increment:      "Increment",
	Decrement:      "Decrement",
	Semicolon:      "Semicolon",
	Comma:          "Comma",
	LeftParen:      "LeftParen",
	RightParen:     "RightParen",
	LeftBrace:      "LeftBrace",
	RightBrace:     "RightBrace",
	LeftBracket:    "LeftBracket",
	RightBracket:   "RightBracket",
	IntegerLiteral: "IntegerLiteral",
	FloatLiteral:   "FloatLiteral",
	CharLiteral:    "CharLiteral",
	StringLiteral:  "StringLiteral",
	BoolLiteral:    "BoolLiteral",
	Identifier:     "Identifier",
}

// Reverse mapping from the canonical spelling to the Type
var StringTypes = make(map[string]Type)

func init() {
	for typ, str := range TypeStrings {
		StringTypes[str] = typ
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsTypeKeyword reports whether t is one of the data type keywords that
// arms the symbol table's pending type.
func (t Type) IsTypeKeyword() bool {
	switch t {
	case Int, Float, Char, Bool, String:
		return true
	}
	return false
}

func (t Type) MarshalJSON() ([]byte, error) {
	s, ok := TypeStrings[t]
	if !ok {
		return nil, fmt.Errorf("token: cannot marshal unknown type %d", int(t))
	}
	return json.Marshal(s)
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	typ, ok := StringTypes[s]
	if !ok {
		return fmt.Errorf("token: unknown token type %q", s)
	}
	*t = typ
	return nil
}

type Token struct {
	Type   Type   `json:"token_type"`
	Lexeme string `json:"lexeme"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// String renders the console form of a token, <Type, lexeme, line, column>.
func (t Token) String() string {
	return fmt.Sprintf("<%s, %s, %d, %d>", t.Type, t.Lexeme, t.Line, t.Column)
}

// MarshalStream encodes a token sequence as the pretty-printed JSON
// artifact written next to analyzed source files.
func MarshalStream(toks []Token) ([]byte, error) {
	return json.MarshalIndent(toks, "", "  ")
}

// UnmarshalStream parses a JSON artifact back into a token sequence.
func UnmarshalStream(data []byte) ([]Token, error) {
	var toks []Token
	if err := json.Unmarshal(data, &toks); err != nil {
		return nil, err
	}
	return toks, nil
}
