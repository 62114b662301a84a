package resolver

import (
	"strings"

	"github.com/perf-analysis/fieldaccess/pkg/config"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

// Mode selects how much of a container allocation is reconstructed.
type Mode string

const (
	// ModeSymbolServer synthesizes the full backing storage of type-erasing
	// containers around the element type.
	ModeSymbolServer Mode = "symbol_server"
	// ModeLocal returns the bare element type.
	ModeLocal Mode = "local"
)

// ModeInfo describes a mode for help output.
type ModeInfo struct {
	Mode        Mode
	Description string
}

var modeRegistry = map[Mode]*ModeInfo{
	ModeSymbolServer: {
		Mode:        ModeSymbolServer,
		Description: "Synthesize swiss table and btree backing storage",
	},
	ModeLocal: {
		Mode:        ModeLocal,
		Description: "Resolve container allocations to their element type",
	},
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := modeRegistry[mode]; ok {
		return mode, nil
	}
	return "", errors.InvalidArgumentf("unknown resolver mode: %q (valid: %s)", s, ValidModes())
}

// ValidModes returns a comma-separated list of valid mode names.
func ValidModes() string {
	modes := AllModes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m.Mode)
	}
	return strings.Join(names, ", ")
}

// AllModes returns all registered modes in a stable order.
func AllModes() []*ModeInfo {
	return []*ModeInfo{modeRegistry[ModeSymbolServer], modeRegistry[ModeLocal]}
}

func (m Mode) String() string {
	return string(m)
}

// ConfigOptions translates the resolver and synth sections of a
// configuration into resolver options.
func ConfigOptions(cfg *config.Config) ([]Option, error) {
	mode, err := ParseMode(cfg.Resolver.Mode)
	if err != nil {
		return nil, err
	}
	return []Option{WithMode(mode), WithSynthConfig(cfg.Synth)}, nil
}
