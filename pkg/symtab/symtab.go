package symtab

import (
	"fmt"
	"io"
	"strings"

	"github.com/xplshn/mlex/pkg/config"
	"github.com/xplshn/mlex/pkg/token"
	"github.com/xplshn/mlex/pkg/util"
)

// Symbol is one identifier row. Keyed by Name, first occurrence wins; the
// only mutation after insertion is the function fix-up applied when the
// very next token is a '('.
type Symbol struct {
	Name       string `json:"name"`
	SymbolType string `json:"symbol_type"`
	DataType   string `json:"data_type"`
	Scope      string `json:"scope"`
	Line       int    `json:"line"`
}

// Table accumulates symbols while the tokenizer runs. It sees every
// committed token in emission order through Observe.
type Table struct {
	cfg     *config.Config
	symbols []Symbol
	index   map[string]int

	// pendingType holds the lexeme of the most recent type keyword. It is
	// consumed by the next identifier whether or not that identifier is
	// new; any other token leaves it armed.
	pendingType string
	pendingTok  token.Token

	// lastInserted points at a freshly inserted symbol until the token
	// after the identifier has been seen, so a '(' can flip it to a
	// function. -1 when disarmed.
	lastInserted int
}

func New(cfg *config.Config) *Table {
	return &Table{cfg: cfg, index: make(map[string]int), lastInserted: -1}
}

func (t *Table) Observe(tok token.Token) {
	switch {
	case tok.Type.IsTypeKeyword():
		if t.pendingType != "" {
			util.Warn(t.cfg, config.WarnStaleType, tok,
				"Type keyword '%s' from line %d was never applied to an identifier", t.pendingType, t.pendingTok.Line)
		}
		t.pendingType = tok.Lexeme
		t.pendingTok = tok
		t.lastInserted = -1

	case tok.Type == token.Identifier:
		dataType := t.pendingType
		if dataType == "" {
			dataType = "unknown"
		}
		hadPending := t.pendingType != ""
		t.pendingType = ""

		if at, exists := t.index[tok.Lexeme]; exists {
			if hadPending {
				util.Warn(t.cfg, config.WarnRedeclared, tok,
					"Redeclaration of '%s' ignored, first seen on line %d", tok.Lexeme, t.symbols[at].Line)
			}
			t.lastInserted = -1
			return
		}

		t.symbols = append(t.symbols, Symbol{
			Name:       tok.Lexeme,
			SymbolType: "variable",
			DataType:   dataType,
			Scope:      "global",
			Line:       tok.Line,
		})
		t.index[tok.Lexeme] = len(t.symbols) - 1
		t.lastInserted = len(t.symbols) - 1

	case tok.Type == token.LeftParen:
		if t.lastInserted >= 0 {
			t.symbols[t.lastInserted].SymbolType = "function"
		}
		t.lastInserted = -1

	default:
		t.lastInserted = -1
	}
}

func (t *Table) Len() int { return len(t.symbols) }

// Snapshot returns the symbols in insertion order, i.e. order of first
// occurrence.
func (t *Table) Snapshot() []Symbol {
	out := make([]Symbol, len(t.symbols))
	copy(out, t.symbols)
	return out
}

// Fprint renders the fixed-width console table. The layout is a
// compatibility surface and must not change.
func (t *Table) Fprint(w io.Writer) {
	fmt.Fprintln(w, "\n=== SYMBOL TABLE ===")
	fmt.Fprintf(w, "%-15s %-12s %-12s %-10s %-8s\n", "Name", "Type", "Data Type", "Scope", "Line")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, s := range t.symbols {
		fmt.Fprintf(w, "%-15s %-12s %-12s %-10s %-8d\n", s.Name, s.SymbolType, s.DataType, s.Scope, s.Line)
	}
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Total symbols: %d\n", len(t.symbols))
}
