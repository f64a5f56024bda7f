package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalValidYAML = `
device_name: gpio-keys
hardware_map:
  114: VOL_DOWN
  115: VOL_UP
rules:
  - id: a
    trigger: VOL_UP
    rule_type: CLICK
    action:
      type: emit_key
      code: 100
settings:
  short_press_threshold_ms: 300
  long_press_threshold_ms: 800
  double_tap_interval_ms: 300
  combination_window_ms: 200
  tick_period_ms: 50
`

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, minimalValidYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DeviceName != "gpio-keys" {
		t.Errorf("device_name = %q, want gpio-keys", cfg.DeviceName)
	}
	if len(cfg.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(cfg.Rules))
	}
	if !cfg.Rules[0].Enabled {
		t.Error("expected rule.enabled to default to true")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	body := minimalValidYAML + "\nbogus_field: true\n"
	path := writeTestConfig(t, dir, body)

	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown top-level field, got nil")
	}
}

func TestLoadRejectsUnknownRuleField(t *testing.T) {
	dir := t.TempDir()
	body := `
device_name: gpio-keys
hardware_map:
  115: VOL_UP
rules:
  - id: a
    trigger: VOL_UP
    rule_type: CLICK
    bogus: 1
    action:
      type: emit_key
      code: 100
`
	path := writeTestConfig(t, dir, body)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown rule field, got nil")
	}
}

func TestLoadRejectsWrongExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	if err := os.WriteFile(path, []byte(minimalValidYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-yaml extension, got nil")
	}
}

func TestRuleEnabledExplicitFalsePreserved(t *testing.T) {
	dir := t.TempDir()
	body := `
device_name: gpio-keys
hardware_map:
  115: VOL_UP
rules:
  - id: a
    trigger: VOL_UP
    rule_type: CLICK
    enabled: false
    action:
      type: emit_key
      code: 100
`
	path := writeTestConfig(t, dir, body)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Rules[0].Enabled {
		t.Error("expected explicit enabled: false to be preserved")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := &Config{
		DeviceName:  "gpio-keys",
		HardwareMap: HardwareMap{114: "VOL_DOWN", 115: "VOL_UP"},
		Rules: []Rule{
			{ID: "a", Trigger: "VOL_UP", RuleType: Click, Enabled: true, Action: Action{Type: ActionEmitKey, Code: 100}},
		},
		Settings: DefaultSettings(),
	}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save failed: %v", err)
	}
	if loaded.DeviceName != cfg.DeviceName {
		t.Errorf("device_name = %q, want %q", loaded.DeviceName, cfg.DeviceName)
	}
	if len(loaded.Rules) != 1 || loaded.Rules[0].Action.Code != 100 {
		t.Errorf("round trip lost rule data: %+v", loaded.Rules)
	}
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	cfg := Default()
	cfg.DeviceName = "dev"
	cfg.HardwareMap = HardwareMap{115: "VOL_UP"}
	cfg.Rules = []Rule{
		{ID: "a", Trigger: "VOL_UP", RuleType: Click, Enabled: true, Action: Action{Type: ActionEmitKey, Code: 1}},
		{ID: "a", Trigger: "VOL_UP", RuleType: DoubleClick, Enabled: true, Action: Action{Type: ActionEmitKey, Code: 2}},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for duplicate rule ids, got nil")
	}
}

func TestValidateRejectsComboWithSameKeyTwice(t *testing.T) {
	cfg := Default()
	cfg.DeviceName = "dev"
	cfg.HardwareMap = HardwareMap{115: "VOL_UP"}
	cfg.Rules = []Rule{
		{ID: "a", Trigger: "VOL_UP+VOL_UP", RuleType: ComboClick, Enabled: true, Action: Action{Type: ActionEmitKey, Code: 1}},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for combo trigger using identical keys, got nil")
	}
}

func TestValidateRejectsBadThresholdOrdering(t *testing.T) {
	cfg := Default()
	cfg.DeviceName = "dev"
	cfg.Settings.ShortPressMs = 500
	cfg.Settings.LongPressMs = 300
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when long_press < short_press, got nil")
	}
}

func TestValidateRejectsNestedCompound(t *testing.T) {
	cfg := Default()
	cfg.DeviceName = "dev"
	cfg.HardwareMap = HardwareMap{115: "VOL_UP"}
	cfg.Rules = []Rule{
		{
			ID: "a", Trigger: "VOL_UP", RuleType: Click, Enabled: true,
			Action: Action{Type: ActionCompound, Actions: []Action{
				{Type: ActionCompound, Actions: []Action{{Type: ActionIntercept}}},
			}},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for nested compound action, got nil")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	cfg.Rules = []Rule{{ID: "a", Action: Action{Type: ActionMultiTap, Codes: []uint16{1, 2}}}}
	clone := cfg.Clone()
	clone.Rules[0].Action.Codes[0] = 99
	if cfg.Rules[0].Action.Codes[0] == 99 {
		t.Error("Clone should not share the Codes backing array")
	}
}
