package config

import (
	"fmt"
	"strings"

	"github.com/xplshn/layoutc/pkg/cli"
)

type Feature int

const (
	FeatUnroll Feature = iota
	FeatShareStructs
	FeatCount
)

type Warning int

const (
	WarnTruncation Warning = iota
	WarnWidening
	WarnExtra
	WarnCount
)

// DefaultUnrollThreshold is the largest fixed array length copied with unrolled code
const DefaultUnrollThreshold = 5

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features        map[Feature]Info
	Warnings        map[Warning]Info
	FeatureMap      map[string]Feature
	WarningMap      map[string]Warning
	UnrollThreshold int
}

func NewConfig() *Config {
	cfg := &Config{
		FeatureMap:      make(map[string]Feature),
		WarningMap:      make(map[string]Warning),
		UnrollThreshold: DefaultUnrollThreshold,
	}

	features := map[Feature]Info{
		FeatUnroll:       {"unroll", true, "Copy small fixed arrays with unrolled code instead of a recursive helper."},
		FeatShareStructs: {"share-structs", false, "Share identical struct elements by indirection during array conversions."},
	}

	warnings := map[Warning]Info{
		WarnTruncation: {"truncation", true, "Warn when a cast truncates an integer literal."},
		WarnWidening:   {"widening", false, "Report every synthesized array conversion."},
		WarnExtra:      {"extra", true, "Enable extra miscellaneous warnings."},
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

// Unrolled reports whether a fixed array of the given length gets unrolled copy code
func (c *Config) Unrolled(length int) bool {
	return c.IsFeatureEnabled(FeatUnroll) && length <= c.UnrollThreshold
}

// SetUnrollThreshold accepts the value of the --unroll flag
func (c *Config) SetUnrollThreshold(n int) error {
	if n < 0 {
		return fmt.Errorf("unroll threshold must not be negative, got %d", n)
	}
	c.UnrollThreshold = n
	return nil
}

// ApplyFlag handles a single "-Wname", "-Wno-name", "-Fname" or "-Fno-name" argument
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	var isWarning bool
	switch {
	case strings.HasPrefix(trimmed, "W"):
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
	default:
		return fmt.Errorf("unrecognized flag '%s'", flag)
	}
	name := trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	if isWarning {
		if name == "all" {
			for i := Warning(0); i < WarnCount; i++ {
				c.SetWarning(i, enable)
			}
			return nil
		}
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// SetupFlagGroups registers the -W/-F switches on fs. The returned entries are indexed
// by Warning and Feature and must be applied with ApplyFlagGroups after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "W", Usage: info.Description, Enabled: new(bool), Disabled: new(bool)}
	}
	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{Name: info.Name, Prefix: "F", Usage: info.Description, Enabled: new(bool), Disabled: new(bool)}
	}
	fs.AddFlagGroup("Warning Flags", "Toggle individual warnings.", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Toggle code generation features.", "feature", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies parsed -W/-F switches into the configuration
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}
