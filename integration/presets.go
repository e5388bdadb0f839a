// Package integration provides storage presets and assembly helpers for
// building a light client runtime. Presets bundle the database settings
// (backend, cache size, file handles) into named profiles so operators can
// pick one with a single flag.
//
// Usage:
//
//	p := integration.MemoryPreset() // tests and throwaway fake networks
//	p := integration.LitePreset()   // laptops and CI
//	p := integration.FullPreset()   // long-running relayers
package integration

import "fmt"

// Database backends understood by OpenDB.
const (
	DBTypeLevelDB = "leveldb"
	DBTypeMemory  = "memory"
)

// PresetConfig captures the tunable parameters that vary across preset
// profiles.
type PresetConfig struct {
	Name          string // human-readable identifier (e.g., "lite", "full")
	DBType        string // storage backend: "leveldb" or "memory"
	CacheMB       int    // LevelDB block cache
	Handles       int    // LevelDB open file limit
	EnableMetrics bool   // whether meters are reported after each command
}

// DefaultPreset returns the balanced on-disk profile.
func DefaultPreset() PresetConfig {
	return PresetConfig{
		Name:          "default",
		DBType:        DBTypeLevelDB,
		CacheMB:       64,
		Handles:       256,
		EnableMetrics: false,
	}
}

// LitePreset keeps the database footprint small. The epoch registry of a
// client is a few megabytes at most, so the small cache costs little.
func LitePreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "lite"
	cfg.CacheMB = 16
	cfg.Handles = 64
	cfg.EnableMetrics = true
	return cfg
}

// FullPreset is meant for relayers that verify proofs continuously.
func FullPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "full"
	cfg.CacheMB = 256
	cfg.Handles = 1024
	cfg.EnableMetrics = true
	return cfg
}

// MemoryPreset keeps everything in memory. State is lost when the process
// exits.
func MemoryPreset() PresetConfig {
	return PresetConfig{
		Name:   "memory",
		DBType: DBTypeMemory,
	}
}

// GetPresetByName looks up a preset by its string identifier. This backs the
// --db.preset flag.
func GetPresetByName(name string) (PresetConfig, error) {
	switch name {
	case "lite":
		return LitePreset(), nil
	case "full":
		return FullPreset(), nil
	case "memory":
		return MemoryPreset(), nil
	case "default", "":
		return DefaultPreset(), nil
	default:
		return PresetConfig{}, fmt.Errorf("unknown preset: %q (valid: lite, full, memory, default)", name)
	}
}

// ApplyPreset merges a preset into an existing config. Zero-valued numeric
// and string fields of the preset leave the target untouched.
func ApplyPreset(target *PresetConfig, preset PresetConfig) {
	if preset.DBType != "" {
		target.DBType = preset.DBType
	}
	if preset.CacheMB > 0 {
		target.CacheMB = preset.CacheMB
	}
	if preset.Handles > 0 {
		target.Handles = preset.Handles
	}
	target.EnableMetrics = preset.EnableMetrics
	if preset.Name != "" {
		target.Name = preset.Name
	}
}
