package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the CLI's default config file location.
const DefaultPath = "/data/adb/modules/rust_keymapper/config/config.yaml"

// Load reads and validates the YAML config at path. Unknown top-level
// or nested fields are rejected, matching the original schema's
// deny_unknown_fields contract.
func Load(path string) (*Config, error) {
	if err := checkExtension(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnabledDefaults(data, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnabledDefaults makes a rule's `enabled` field default to true
// when omitted. The strict decode above already rejected any genuinely
// unknown field, so this second, loosely-typed pass only needs to
// notice which rules omitted `enabled` — it does not re-validate.
func applyEnabledDefaults(data []byte, cfg *Config) {
	var probe struct {
		Rules []struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return
	}
	for i := range cfg.Rules {
		if i < len(probe.Rules) && probe.Rules[i].Enabled == nil {
			cfg.Rules[i].Enabled = true
		}
	}
}

func checkExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config path %q must end in .yaml or .yml", path)
	}
	return nil
}

// Save writes cfg as YAML to path atomically: the document is written
// to a temp file in the same directory and renamed into place, so a
// crash mid-write cannot corrupt the existing config.
func Save(path string, cfg *Config) error {
	if err := checkExtension(path); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".keymapperd-config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()

	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("close encoder: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// AppendSaveLog appends one line to a ".log" file sibling to the
// config path recording a save event. Failures are returned to the
// caller, who (per spec §4.4/§7) logs and discards them for
// toggle-rule-triggered saves but may surface them for HTTP-triggered
// saves.
func AppendSaveLog(configPath, trigger string) error {
	logPath := strings.TrimSuffix(configPath, filepath.Ext(configPath)) + ".log"
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open save log: %w", err)
	}
	defer f.Close()
	line := fmt.Sprintf("%s save trigger=%s\n", time.Now().UTC().Format(time.RFC3339), trigger)
	_, err = f.WriteString(line)
	return err
}
