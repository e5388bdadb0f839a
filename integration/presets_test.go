package integration_test

import (
	"testing"

	"github.com/rony4d/go-map-lightclient/integration"
)

// TestDefaultPreset_hasReasonableDefaults guards the baseline profile: if the
// defaults change, we want to know immediately.
func TestDefaultPreset_hasReasonableDefaults(t *testing.T) {
	cfg := integration.DefaultPreset()

	if cfg.Name != "default" {
		t.Fatalf("Name = %q, want 'default'", cfg.Name)
	}
	if cfg.DBType != integration.DBTypeLevelDB {
		t.Fatalf("DBType = %q, want %q", cfg.DBType, integration.DBTypeLevelDB)
	}
	if cfg.CacheMB <= 0 || cfg.CacheMB > 10000 {
		t.Fatalf("CacheMB = %d, want value between 1 and 10000", cfg.CacheMB)
	}
	if cfg.Handles <= 0 {
		t.Fatalf("Handles = %d, want positive", cfg.Handles)
	}
	if cfg.EnableMetrics {
		t.Fatal("EnableMetrics should be false by default")
	}
}

func TestLitePreset_overridesDefaults(t *testing.T) {
	defaultCfg := integration.DefaultPreset()
	liteCfg := integration.LitePreset()

	if liteCfg.Name != "lite" {
		t.Fatalf("Name = %q, want 'lite'", liteCfg.Name)
	}
	if liteCfg.CacheMB >= defaultCfg.CacheMB {
		t.Fatalf("Lite CacheMB (%d) should be smaller than default (%d)", liteCfg.CacheMB, defaultCfg.CacheMB)
	}
	if liteCfg.Handles >= defaultCfg.Handles {
		t.Fatalf("Lite Handles (%d) should be fewer than default (%d)", liteCfg.Handles, defaultCfg.Handles)
	}
	if !liteCfg.EnableMetrics {
		t.Fatal("EnableMetrics should be true for lite preset")
	}
}

func TestFullPreset_overridesDefaults(t *testing.T) {
	defaultCfg := integration.DefaultPreset()
	fullCfg := integration.FullPreset()

	if fullCfg.Name != "full" {
		t.Fatalf("Name = %q, want 'full'", fullCfg.Name)
	}
	if fullCfg.CacheMB <= defaultCfg.CacheMB {
		t.Fatalf("Full CacheMB (%d) should be larger than default (%d)", fullCfg.CacheMB, defaultCfg.CacheMB)
	}
	if fullCfg.DBType != integration.DBTypeLevelDB {
		t.Fatalf("DBType = %q, want leveldb for full preset", fullCfg.DBType)
	}
	if !fullCfg.EnableMetrics {
		t.Fatal("EnableMetrics should be true for full preset")
	}
}

func TestMemoryPreset(t *testing.T) {
	cfg := integration.MemoryPreset()
	if cfg.DBType != integration.DBTypeMemory {
		t.Fatalf("DBType = %q, want memory", cfg.DBType)
	}
	if cfg.Name != "memory" {
		t.Fatalf("Name = %q, want 'memory'", cfg.Name)
	}
}

// TestPresets_haveDistinctValues checks that presets are not redundant.
func TestPresets_haveDistinctValues(t *testing.T) {
	lite := integration.LitePreset()
	def := integration.DefaultPreset()
	full := integration.FullPreset()
	mem := integration.MemoryPreset()

	names := map[string]bool{
		lite.Name: true,
		def.Name:  true,
		full.Name: true,
		mem.Name:  true,
	}
	if len(names) != 4 {
		t.Fatalf("Presets should have unique names, got: %v", names)
	}

	// Cache sizes should be ordered: lite < default < full
	if lite.CacheMB >= def.CacheMB || def.CacheMB >= full.CacheMB {
		t.Fatalf("cache sizes not ordered: lite %d, default %d, full %d", lite.CacheMB, def.CacheMB, full.CacheMB)
	}
}

func TestGetPresetByName_validPresets(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
	}{
		{"lite", "lite"},
		{"full", "full"},
		{"memory", "memory"},
		{"default", "default"},
		{"", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := integration.GetPresetByName(tt.name)
			if err != nil {
				t.Fatalf("GetPresetByName(%q) returned error: %v", tt.name, err)
			}
			if cfg.Name != tt.wantName {
				t.Fatalf("Preset name = %q, want %q", cfg.Name, tt.wantName)
			}
			if cfg.DBType == "" {
				t.Fatalf("Preset %q has no database type", tt.name)
			}
		})
	}
}

func TestGetPresetByName_invalidPreset(t *testing.T) {
	for _, name := range []string{"unknown", "archive", "LITE", "Full"} {
		t.Run(name, func(t *testing.T) {
			cfg, err := integration.GetPresetByName(name)
			if err == nil {
				t.Fatalf("GetPresetByName(%q) should return error, got config: %+v", name, cfg)
			}
		})
	}
}

func TestApplyPreset_overridesTarget(t *testing.T) {
	target := integration.PresetConfig{
		Name:          "custom",
		DBType:        integration.DBTypeMemory,
		CacheMB:       512,
		Handles:       8,
		EnableMetrics: false,
	}

	preset := integration.FullPreset()
	integration.ApplyPreset(&target, preset)

	if target != preset {
		t.Fatalf("ApplyPreset = %+v, want %+v", target, preset)
	}
}

// TestApplyPreset_partialOverride checks that zero fields of a preset leave
// the target alone.
func TestApplyPreset_partialOverride(t *testing.T) {
	target := integration.DefaultPreset()
	originalName := target.Name
	originalType := target.DBType

	integration.ApplyPreset(&target, integration.PresetConfig{CacheMB: 2048})

	if target.CacheMB != 2048 {
		t.Fatalf("CacheMB should be overridden to 2048, got %d", target.CacheMB)
	}
	if target.Name != originalName {
		t.Fatalf("Name should remain %q when preset has empty name, got %q", originalName, target.Name)
	}
	if target.DBType != originalType {
		t.Fatalf("DBType should remain %q, got %q", originalType, target.DBType)
	}
}
