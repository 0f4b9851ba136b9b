package config

import (
	"github.com/xplshn/mlex/pkg/cli"
)

type Feature int

const (
	FeatLineComments Feature = iota
	FeatBlockComments
	FeatPreprocessor
	FeatFloatExponent
	FeatSymbolTable
	FeatCount
)

type Warning int

const (
	WarnUnknownEscape Warning = iota
	WarnStaleType
	WarnRedeclared
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
	}

	features := map[Feature]Info{
		FeatLineComments:  {"line-comments", true, "Recognize '//' line comments."},
		FeatBlockComments: {"block-comments", true, "Recognize '/* */' block comments."},
		FeatPreprocessor:  {"preprocessor", true, "Recognize the '#include' and '#define' directives."},
		FeatFloatExponent: {"float-exp", true, "Recognize scientific exponents on float literals."},
		FeatSymbolTable:   {"symtab", true, "Build the identifier symbol table during tokenization."},
	}

	warnings := map[Warning]Info{
		WarnUnknownEscape: {"unknown-escape", true, "Warn on unrecognized character escape sequences."},
		WarnStaleType:     {"stale-type", true, "Warn when a type keyword is never consumed by an identifier."},
		WarnRedeclared:    {"redeclared", true, "Warn when a typed declaration repeats an already recorded name."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetupFlagGroups registers the -W<warning> and -F<feature> flag families
// on fs and returns the group entries in enum order, so callers can map an
// entry index back to its Warning or Feature when applying overrides.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningEntries := make([]cli.FlagGroupEntry, WarnCount)
	for wt := Warning(0); wt < WarnCount; wt++ {
		info := c.Warnings[wt]
		enabled, disabled := info.Enabled, false
		warningEntries[wt] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  &enabled,
			Disabled: &disabled,
		}
	}
	fs.AddFlagGroup("Warnings", "Control which diagnostics are reported.", "warning", "Available Warnings", warningEntries)

	featureEntries := make([]cli.FlagGroupEntry, FeatCount)
	for ft := Feature(0); ft < FeatCount; ft++ {
		info := c.Features[ft]
		enabled, disabled := info.Enabled, false
		featureEntries[ft] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "F",
			Usage:    info.Description,
			Enabled:  &enabled,
			Disabled: &disabled,
		}
	}
	fs.AddFlagGroup("Features", "Toggle tokenizer capabilities.", "feature", "Available Features", featureEntries)

	return warningEntries, featureEntries
}
