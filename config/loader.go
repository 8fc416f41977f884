package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Warnings accumulates the non-fatal issues a Load/Reload call produced:
// out-of-range fields that were clamped and malformed environment
// variables that were ignored. Callers log these through observe.Logger;
// config itself has no logger dependency.
type Warnings struct {
	ClampedFields   []string
	MalformedEnv    []string
	UnknownTOMLKeys []string
}

func (w Warnings) Empty() bool {
	return len(w.ClampedFields) == 0 && len(w.MalformedEnv) == 0 && len(w.UnknownTOMLKeys) == 0
}

// Load builds a Config from defaults, optionally overlaid by the TOML file
// at path, then overlaid by the process environment, per §4.1's
// low-to-high precedence (defaults -> file -> env).
//
// A missing file is not an error: the snapshot falls back to defaults+env,
// matching "file missing -> defaults + env". An unparseable file IS an
// error; the caller is expected to keep serving its previous snapshot
// rather than publish a broken one ("file unparseable -> keep previous
// snapshot, log error").
func Load(path string) (*Config, Warnings, error) {
	cfg := Defaults()
	var warn Warnings

	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		switch {
		case err == nil:
			undecoded := meta.Undecoded()
			for _, k := range undecoded {
				warn.UnknownTOMLKeys = append(warn.UnknownTOMLKeys, k.String())
			}
		case os.IsNotExist(err):
			// defaults + env, per the documented failure mode.
		default:
			return nil, warn, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	warn.MalformedEnv = applyEnv(cfg, osLookup)
	warn.ClampedFields = cfg.clamp()

	if !cfg.Server.Transport.valid() {
		cfg.Server.Transport = TransportStdio
	}

	return cfg, warn, nil
}
