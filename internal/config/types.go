// Package config holds the rule-set, hardware map, and settings
// document the engine is snapshotted from, plus its YAML file I/O.
package config

import "github.com/Danondso/keymapperd/internal/trigger"

// GestureKind classifies what shape of press/release sequence a rule
// fires on. The first four kinds are single-key; the combo kinds
// require exactly two distinct trigger keys.
type GestureKind = trigger.GestureKind

const (
	Click           = trigger.Click
	DoubleClick     = trigger.DoubleClick
	ShortPress      = trigger.ShortPress
	LongPress       = trigger.LongPress
	ComboClick      = trigger.ComboClick
	ComboShortPress = trigger.ComboShortPress
	ComboLongPress  = trigger.ComboLongPress
)

// ActionType discriminates the Action variant. Only the fields
// relevant to the given type are populated.
type ActionType string

const (
	ActionEmitKey       ActionType = "emit_key"
	ActionRunShell      ActionType = "run_shell"
	ActionBuiltin       ActionType = "builtin"
	ActionLaunchApp     ActionType = "launch_app"
	ActionLaunchIntent  ActionType = "launch_intent"
	ActionMultiTap      ActionType = "multi_tap"
	ActionToggleDisplay ActionType = "toggle_display"
	ActionToggleRule    ActionType = "toggle_rule"
	ActionVolume        ActionType = "volume"
	ActionBrightness    ActionType = "brightness"
	ActionSwipe         ActionType = "swipe"
	ActionIntercept     ActionType = "intercept"
	ActionCompound      ActionType = "compound"
)

// Direction is shared by volume and brightness actions.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Builtin command identifiers dispatched verbatim by the Action
// Dispatcher; the concrete shell command each maps to is the
// dispatcher's concern (spec §1, out of scope here).
const (
	BuiltinMuteToggle         = "mute_toggle"
	BuiltinOpenVoiceAssistant = "open_voice_assistant"
	BuiltinOpenCamera         = "open_camera"
	BuiltinToggleFlashlight   = "toggle_flashlight"
	BuiltinToggleDoNotDisturb = "toggle_do_not_disturb"
)

// IntentSpec is the structured payload of a launch-intent action.
type IntentSpec struct {
	Action    string            `yaml:"action,omitempty"`
	Package   string            `yaml:"package,omitempty"`
	ClassName string            `yaml:"class_name,omitempty"`
	Data      string            `yaml:"data,omitempty"`
	Category  []string          `yaml:"category,omitempty"`
	Extras    map[string]string `yaml:"extras,omitempty"`
}

// Action is a tagged variant: Type selects which of the remaining
// fields are meaningful. A compound action's Actions slice must be
// flat (no element of type ActionCompound); Validate enforces this.
type Action struct {
	Type ActionType `yaml:"type"`

	Code       uint16      `yaml:"code,omitempty"`
	Command    string      `yaml:"command,omitempty"`
	Builtin    string      `yaml:"builtin,omitempty"`
	Package    string      `yaml:"package,omitempty"`
	Activity   string      `yaml:"activity,omitempty"`
	Intent     *IntentSpec `yaml:"intent,omitempty"`
	Codes      []uint16    `yaml:"codes,omitempty"`
	IntervalMs int         `yaml:"interval_ms,omitempty"`
	RuleID     string      `yaml:"rule_id,omitempty"`
	Direction  Direction   `yaml:"direction,omitempty"`
	DX         int         `yaml:"dx,omitempty"`
	DY         int         `yaml:"dy,omitempty"`
	DurationMs int         `yaml:"duration_ms,omitempty"`
	Actions    []Action    `yaml:"actions,omitempty"`
}

// Rule binds a trigger and gesture kind to an action. It is immutable
// once part of a snapshot; only Enabled is ever flipped in place, by
// Store.ToggleRule under the store's exclusive lock (see toggle-rule in
// internal/dispatch).
type Rule struct {
	ID          string      `yaml:"id"`
	Trigger     string      `yaml:"trigger"`
	RuleType    GestureKind `yaml:"rule_type"`
	Action      Action      `yaml:"action"`
	Enabled     bool        `yaml:"enabled"`
	Description string      `yaml:"description,omitempty"`
}

// Settings holds the engine's configurable millisecond thresholds.
type Settings struct {
	ShortPressMs  int `yaml:"short_press_threshold_ms"`
	LongPressMs   int `yaml:"long_press_threshold_ms"`
	DoubleTapMs   int `yaml:"double_tap_interval_ms"`
	CombinationMs int `yaml:"combination_window_ms"`
	TickMs        int `yaml:"tick_period_ms"`
}

// DefaultSettings returns the spec's default thresholds.
func DefaultSettings() Settings {
	return Settings{
		ShortPressMs:  300,
		LongPressMs:   800,
		DoubleTapMs:   300,
		CombinationMs: 200,
		TickMs:        50,
	}
}

// HardwareMap maps a kernel key code to a symbolic name. It is
// injective by construction: Validate rejects duplicate names.
type HardwareMap map[uint16]string

// Config is the top-level document the engine snapshots from.
type Config struct {
	DeviceName  string      `yaml:"device_name"`
	HardwareMap HardwareMap `yaml:"hardware_map"`
	Rules       []Rule      `yaml:"rules"`
	Settings    Settings    `yaml:"settings"`
}

// Default returns a Config with an empty rule set and the spec's
// default settings; device_name is left blank since there is no
// universally correct guess and Validate requires it non-empty.
func Default() *Config {
	return &Config{
		HardwareMap: HardwareMap{},
		Rules:       nil,
		Settings:    DefaultSettings(),
	}
}

// NameToCode inverts the hardware map for trigger resolution.
func (c *Config) NameToCode() map[string]uint16 {
	out := make(map[string]uint16, len(c.HardwareMap))
	for code, name := range c.HardwareMap {
		out[name] = code
	}
	return out
}

// Clone returns a deep copy, suitable for safely handing a snapshot
// to the Processor/State Machine without sharing mutable state with
// the HTTP surface's writer.
func (c *Config) Clone() *Config {
	out := &Config{
		DeviceName: c.DeviceName,
		Settings:   c.Settings,
	}
	out.HardwareMap = make(HardwareMap, len(c.HardwareMap))
	for k, v := range c.HardwareMap {
		out.HardwareMap[k] = v
	}
	out.Rules = make([]Rule, len(c.Rules))
	copy(out.Rules, c.Rules)
	for i := range out.Rules {
		out.Rules[i].Action = cloneAction(c.Rules[i].Action)
	}
	return out
}

func cloneAction(a Action) Action {
	out := a
	if a.Intent != nil {
		intent := *a.Intent
		intent.Category = append([]string(nil), a.Intent.Category...)
		if a.Intent.Extras != nil {
			intent.Extras = make(map[string]string, len(a.Intent.Extras))
			for k, v := range a.Intent.Extras {
				intent.Extras[k] = v
			}
		}
		out.Intent = &intent
	}
	out.Codes = append([]uint16(nil), a.Codes...)
	if a.Actions != nil {
		out.Actions = make([]Action, len(a.Actions))
		for i, inner := range a.Actions {
			out.Actions[i] = cloneAction(inner)
		}
	}
	return out
}
