package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xplshn/mlex/pkg/cli"
	"github.com/xplshn/mlex/pkg/config"
	"github.com/xplshn/mlex/pkg/lexer"
	"github.com/xplshn/mlex/pkg/token"
	"github.com/xplshn/mlex/pkg/util"
)

func main() {
	app := cli.NewApp("mlex")
	app.Synopsis = "[options] <input.mcpp>"
	app.Description = "A lexical analyzer for the MCPP language. Produces a classified token stream, a best-effort symbol table and a JSON artifact for the compiler stages that do not exist yet."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/mlex>"

	var (
		outFile string
		noJSON  bool
		quiet   bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the JSON token stream into <file>.", "file")
	fs.Bool(&noJSON, "no-json", "", false, "Skip writing the JSON token stream.")
	fs.Bool(&quiet, "quiet", "q", false, "Suppress the token stream and symbol table listing.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		// Apply warning and feature flags over the defaults
		for i, entry := range warningFlags {
			if entry.Enabled != nil && *entry.Enabled {
				cfg.SetWarning(config.Warning(i), true)
			}
			if entry.Disabled != nil && *entry.Disabled {
				cfg.SetWarning(config.Warning(i), false)
			}
		}
		for i, entry := range featureFlags {
			if entry.Enabled != nil && *entry.Enabled {
				cfg.SetFeature(config.Feature(i), true)
			}
			if entry.Disabled != nil && *entry.Disabled {
				cfg.SetFeature(config.Feature(i), false)
			}
		}

		if len(args) != 1 {
			util.Error(token.Token{}, "expected exactly one input file, got %d", len(args))
		}
		inputFile := args[0]

		content, err := os.ReadFile(inputFile)
		if err != nil {
			util.Error(token.Token{}, "could not read file '%s': %v", inputFile, err)
		}
		source := []rune(string(content))
		util.SetSource(inputFile, source)

		fmt.Println("=== MCPP Lexical Analyzer ===")
		fmt.Printf("Input file: %s\n\n", inputFile)

		l := lexer.New(source, cfg)
		toks, err := l.Tokenize()
		if err != nil {
			fmt.Fprintf(os.Stderr, "\n%v\n", err)
			var lexErr *lexer.LexError
			if errors.As(err, &lexErr) {
				util.PrintSourceLine(os.Stderr, lexErr.Line, lexErr.Column, 1)
			}
			return err
		}

		if !quiet {
			fmt.Println("\n=== TOKEN STREAM ===")
			for _, tok := range toks {
				fmt.Println(tok)
			}
			if cfg.IsFeatureEnabled(config.FeatSymbolTable) {
				l.Symbols().Fprint(os.Stdout)
			}
		}

		if !noJSON {
			jsonPath := outFile
			if jsonPath == "" {
				jsonPath = artifactPath(inputFile)
			}
			data, err := token.MarshalStream(toks)
			if err != nil {
				util.Error(token.Token{}, "could not encode token stream: %v", err)
			}
			if err := os.WriteFile(jsonPath, data, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Could not write JSON file: %v\n", err)
			} else {
				fmt.Printf("\nJSON output saved to: %s\n", jsonPath)
			}
		}

		fmt.Println("\n=== Lexical Analysis Complete ===")
		fmt.Printf("Total tokens: %d\n", len(toks))
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// artifactPath keeps the artifact next to its source: the input extension,
// whatever it is, is trimmed and replaced with _tokens.json.
func artifactPath(inputFile string) string {
	return strings.TrimSuffix(inputFile, filepath.Ext(inputFile)) + "_tokens.json"
}
