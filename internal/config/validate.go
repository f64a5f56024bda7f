package config

import (
	"fmt"
	"strings"

	"github.com/Danondso/keymapperd/internal/trigger"
)

// Validate checks the boot-time invariants spec.md §3/§7 require:
// non-empty device name, sane threshold ordering, injective hardware
// map, unique non-empty rule ids, and triggers that parse for their
// declared gesture kind. A rule whose trigger fails to parse is
// rejected here rather than silently left inert, since this is the
// loader's validation pass, not the engine's tolerant runtime parse.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DeviceName) == "" {
		return fmt.Errorf("device_name cannot be empty")
	}

	if c.Settings.ShortPressMs <= 0 {
		return fmt.Errorf("settings.short_press_threshold_ms must be > 0")
	}
	if c.Settings.LongPressMs < c.Settings.ShortPressMs {
		return fmt.Errorf("settings.long_press_threshold_ms must be >= short_press_threshold_ms")
	}
	if c.Settings.DoubleTapMs <= 0 {
		return fmt.Errorf("settings.double_tap_interval_ms must be > 0")
	}
	if c.Settings.CombinationMs <= 0 {
		return fmt.Errorf("settings.combination_window_ms must be > 0")
	}
	if c.Settings.TickMs <= 0 {
		return fmt.Errorf("settings.tick_period_ms must be > 0")
	}

	seenNames := make(map[string]uint16, len(c.HardwareMap))
	for code, name := range c.HardwareMap {
		if other, dup := seenNames[name]; dup {
			return fmt.Errorf("hardware_map name %q used by both codes %d and %d", name, other, code)
		}
		seenNames[name] = code
	}

	nameToCode := c.NameToCode()
	seenIDs := make(map[string]bool, len(c.Rules))
	for _, r := range c.Rules {
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("rule id cannot be empty")
		}
		if seenIDs[r.ID] {
			return fmt.Errorf("duplicate rule id: %s", r.ID)
		}
		seenIDs[r.ID] = true

		if strings.TrimSpace(r.Trigger) == "" {
			return fmt.Errorf("rule %q: trigger cannot be empty", r.ID)
		}
		if _, err := trigger.ParseStrict(r.Trigger, r.RuleType, nameToCode); err != nil {
			return fmt.Errorf("rule %q: %w", r.ID, err)
		}

		if err := validateAction(r.Action, r.ID); err != nil {
			return err
		}
	}

	return nil
}

func validateAction(a Action, ruleID string) error {
	switch a.Type {
	case ActionEmitKey, ActionVolume, ActionBrightness, ActionToggleDisplay, ActionIntercept:
		// no nested-action payload to check
	case ActionRunShell:
		if strings.TrimSpace(a.Command) == "" {
			return fmt.Errorf("rule %q: run_shell action needs a command", ruleID)
		}
	case ActionBuiltin:
		if strings.TrimSpace(a.Builtin) == "" {
			return fmt.Errorf("rule %q: builtin action needs a builtin id", ruleID)
		}
	case ActionLaunchApp:
		if strings.TrimSpace(a.Package) == "" {
			return fmt.Errorf("rule %q: launch_app action needs a package", ruleID)
		}
	case ActionLaunchIntent:
		if a.Intent == nil {
			return fmt.Errorf("rule %q: launch_intent action needs an intent payload", ruleID)
		}
	case ActionMultiTap:
		if len(a.Codes) == 0 {
			return fmt.Errorf("rule %q: multi_tap action needs at least one code", ruleID)
		}
	case ActionToggleRule:
		if strings.TrimSpace(a.RuleID) == "" {
			return fmt.Errorf("rule %q: toggle_rule action needs a rule_id", ruleID)
		}
	case ActionSwipe:
		// dx/dy/duration are free-form; nothing to reject
	case ActionCompound:
		for _, inner := range a.Actions {
			if inner.Type == ActionCompound {
				return fmt.Errorf("rule %q: compound action cannot nest another compound action", ruleID)
			}
			if err := validateAction(inner, ruleID); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("rule %q: unknown action type %q", ruleID, a.Type)
	}
	return nil
}
