package util

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/xplshn/mlex/pkg/config"
	"github.com/xplshn/mlex/pkg/token"
)

// SourceFileRecord tracks the name and content of the file under analysis.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var source SourceFileRecord

// SetSource stores the source text so diagnostics can echo the offending line.
func SetSource(name string, content []rune) {
	source = SourceFileRecord{Name: name, Content: content}
}

// PrintSourceLine prints one source line and a caret under the given column.
// width is the number of characters to underline; anything running past the
// end of the line is clipped.
func PrintSourceLine(stream *os.File, line, col, width int) {
	if line <= 0 || col <= 0 || len(source.Content) == 0 {
		return
	}

	content := source.Content
	lineNum := line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	lineLen := lineEnd - lineStart
	if col > lineLen+1 {
		col = lineLen + 1
	}
	if width < 1 {
		width = 1
	}
	if col+width-1 > lineLen+1 {
		width = lineLen + 2 - col
		if width < 1 {
			width = 1
		}
	}

	fmt.Fprintf(stream, "  %s\n", string(content[lineStart:lineEnd]))
	fmt.Fprintf(stream, "  %s\033[32m^", strings.Repeat(" ", col-1))
	if width > 1 {
		fmt.Fprintf(stream, "%s", strings.Repeat("~", width-1))
	}
	fmt.Fprintln(stream, "\033[0m")
}

func printTokenLine(stream *os.File, tok token.Token) {
	width := utf8.RuneCountInString(tok.Lexeme)
	PrintSourceLine(stream, tok.Line, tok.Column, width)
}

// Error prints a formatted error message and exits the program. A zero
// token renders without a source position.
func Error(tok token.Token, format string, args ...interface{}) {
	if tok.Line > 0 {
		fmt.Fprintf(os.Stderr, "%s:%d:%d: \033[31merror:\033[0m ", source.Name, tok.Line, tok.Column)
	} else {
		fmt.Fprintf(os.Stderr, "mlex: \033[31merror:\033[0m ")
	}
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	printTokenLine(os.Stderr, tok)
	os.Exit(1)
}

// Warn prints a formatted warning message if the warning is enabled in cfg.
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	fmt.Fprintf(os.Stderr, "%s:%d:%d: \033[33mwarning:\033[0m ", source.Name, tok.Line, tok.Column)
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintf(os.Stderr, " [-W%s]\n", cfg.Warnings[wt].Name)
	printTokenLine(os.Stderr, tok)
}
