// Package trigger resolves a rule's trigger string into key codes.
//
// A single-key trigger is one token: a decimal key code or a symbolic
// name looked up in the hardware map. A combo trigger is two distinct
// tokens separated by '+'. No other separator is accepted.
package trigger

import (
	"fmt"
	"strconv"
	"strings"
)

// GestureKind is defined here and re-exported by config as an alias,
// so this package stays a leaf dependency for both config and engine.
type GestureKind string

const (
	Click           GestureKind = "CLICK"
	DoubleClick     GestureKind = "DOUBLE_CLICK"
	ShortPress      GestureKind = "SHORT_PRESS"
	LongPress       GestureKind = "LONG_PRESS"
	ComboClick      GestureKind = "COMBO_CLICK"
	ComboShortPress GestureKind = "COMBO_SHORT_PRESS"
	ComboLongPress  GestureKind = "COMBO_LONG_PRESS"
)

// IsCombo reports whether kind requires a two-key trigger.
func IsCombo(kind GestureKind) bool {
	switch kind {
	case ComboClick, ComboShortPress, ComboLongPress:
		return true
	default:
		return false
	}
}

func resolveToken(token string, nameToCode map[string]uint16) (uint16, bool) {
	t := strings.TrimSpace(token)
	if t == "" {
		return 0, false
	}
	if code, err := strconv.ParseUint(t, 10, 16); err == nil {
		return uint16(code), true
	}
	code, ok := nameToCode[t]
	return code, ok
}

// ParseLenient resolves trigger into key codes, returning nil if the
// trigger does not parse for the given gesture kind. It never errors:
// callers that need a malformed rule to be inert (rather than loud)
// use this.
func ParseLenient(triggerStr string, kind GestureKind, nameToCode map[string]uint16) []uint16 {
	if IsCombo(kind) {
		parts := splitNonEmpty(triggerStr, '+')
		if len(parts) != 2 {
			return nil
		}
		a, ok1 := resolveToken(parts[0], nameToCode)
		b, ok2 := resolveToken(parts[1], nameToCode)
		if !ok1 || !ok2 || a == b {
			return nil
		}
		return []uint16{a, b}
	}

	code, ok := resolveToken(triggerStr, nameToCode)
	if !ok {
		return nil
	}
	return []uint16{code}
}

// ParseStrict is the validating counterpart of ParseLenient: it
// returns a descriptive error instead of silently producing an empty
// list, for use at config-load time.
func ParseStrict(triggerStr string, kind GestureKind, nameToCode map[string]uint16) ([]uint16, error) {
	if strings.Contains(triggerStr, "->") {
		return nil, fmt.Errorf("trigger %q uses unsupported '->' separator", triggerStr)
	}

	if IsCombo(kind) {
		parts := splitNonEmpty(triggerStr, '+')
		if len(parts) != 2 {
			return nil, fmt.Errorf("combo trigger %q requires exactly 2 keys separated by '+'", triggerStr)
		}
		a, ok1 := resolveToken(parts[0], nameToCode)
		if !ok1 {
			return nil, fmt.Errorf("unknown combo token %q", parts[0])
		}
		b, ok2 := resolveToken(parts[1], nameToCode)
		if !ok2 {
			return nil, fmt.Errorf("unknown combo token %q", parts[1])
		}
		if a == b {
			return nil, fmt.Errorf("combo trigger %q cannot use identical keys", triggerStr)
		}
		return []uint16{a, b}, nil
	}

	if strings.Contains(triggerStr, "+") {
		return nil, fmt.Errorf("non-combo trigger %q cannot use '+'", triggerStr)
	}
	code, ok := resolveToken(triggerStr, nameToCode)
	if !ok {
		return nil, fmt.Errorf("unknown trigger token %q", triggerStr)
	}
	return []uint16{code}, nil
}

func splitNonEmpty(s string, sep byte) []string {
	raw := strings.Split(s, string(sep))
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
