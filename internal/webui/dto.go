package webui

import (
	"strconv"

	"github.com/Danondso/keymapperd/internal/config"
)

// codeKey/parseCodeKey render a hardware map's uint16 key codes as
// JSON object keys, since JSON maps require string keys.
func codeKey(code uint16) string {
	return strconv.FormatUint(uint64(code), 10)
}

func parseCodeKey(s string) (uint16, bool) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

// configVersion is the only config envelope version POST /api/config
// currently accepts; a mismatch is rejected before validation, ahead
// of the original's forward-compatible save contract.
const configVersion = 1

// configDTO is the UI-shaped view of config.Config: a flat JSON mirror
// with a version envelope rather than the original's condition-array
// schema, since this module's Rule is already a flat discriminated
// type.
type configDTO struct {
	Version     int              `json:"version"`
	DeviceName  string           `json:"deviceName"`
	HardwareMap map[string]string `json:"hardwareMap"`
	Rules       []ruleDTO        `json:"rules"`
	Settings    settingsDTO      `json:"settings"`
}

type settingsDTO struct {
	ShortPressMs  int `json:"shortPressMs"`
	LongPressMs   int `json:"longPressMs"`
	DoubleTapMs   int `json:"doubleTapMs"`
	CombinationMs int `json:"combinationMs"`
	TickMs        int `json:"tickMs"`
}

type ruleDTO struct {
	ID          string       `json:"id"`
	Trigger     string       `json:"trigger"`
	RuleType    string       `json:"ruleType"`
	Enabled     bool         `json:"enabled"`
	Description string       `json:"description,omitempty"`
	Action      actionDTO    `json:"action"`
}

type actionDTO struct {
	Type       string            `json:"type"`
	Code       uint16            `json:"code,omitempty"`
	Command    string            `json:"command,omitempty"`
	Builtin    string            `json:"builtin,omitempty"`
	Package    string            `json:"package,omitempty"`
	Activity   string            `json:"activity,omitempty"`
	Intent     *intentDTO        `json:"intent,omitempty"`
	Codes      []uint16          `json:"codes,omitempty"`
	IntervalMs int               `json:"intervalMs,omitempty"`
	RuleID     string            `json:"ruleId,omitempty"`
	Direction  string            `json:"direction,omitempty"`
	DX         int               `json:"dx,omitempty"`
	DY         int               `json:"dy,omitempty"`
	DurationMs int               `json:"durationMs,omitempty"`
	Actions    []actionDTO       `json:"actions,omitempty"`
}

type intentDTO struct {
	Action    string            `json:"action,omitempty"`
	Package   string            `json:"package,omitempty"`
	ClassName string            `json:"className,omitempty"`
	Data      string            `json:"data,omitempty"`
	Category  []string          `json:"category,omitempty"`
	Extras    map[string]string `json:"extras,omitempty"`
}

func configToDTO(cfg *config.Config) configDTO {
	hw := make(map[string]string, len(cfg.HardwareMap))
	for code, name := range cfg.HardwareMap {
		hw[codeKey(code)] = name
	}

	rules := make([]ruleDTO, len(cfg.Rules))
	for i, r := range cfg.Rules {
		rules[i] = ruleDTO{
			ID:          r.ID,
			Trigger:     r.Trigger,
			RuleType:    string(r.RuleType),
			Enabled:     r.Enabled,
			Description: r.Description,
			Action:      actionToDTO(r.Action),
		}
	}

	return configDTO{
		Version:     configVersion,
		DeviceName:  cfg.DeviceName,
		HardwareMap: hw,
		Rules:       rules,
		Settings: settingsDTO{
			ShortPressMs:  cfg.Settings.ShortPressMs,
			LongPressMs:   cfg.Settings.LongPressMs,
			DoubleTapMs:   cfg.Settings.DoubleTapMs,
			CombinationMs: cfg.Settings.CombinationMs,
			TickMs:        cfg.Settings.TickMs,
		},
	}
}

func actionToDTO(a config.Action) actionDTO {
	dto := actionDTO{
		Type:       string(a.Type),
		Code:       a.Code,
		Command:    a.Command,
		Builtin:    a.Builtin,
		Package:    a.Package,
		Activity:   a.Activity,
		Codes:      a.Codes,
		IntervalMs: a.IntervalMs,
		RuleID:     a.RuleID,
		Direction:  string(a.Direction),
		DX:         a.DX,
		DY:         a.DY,
		DurationMs: a.DurationMs,
	}
	if a.Intent != nil {
		dto.Intent = &intentDTO{
			Action:    a.Intent.Action,
			Package:   a.Intent.Package,
			ClassName: a.Intent.ClassName,
			Data:      a.Intent.Data,
			Category:  a.Intent.Category,
			Extras:    a.Intent.Extras,
		}
	}
	for _, inner := range a.Actions {
		dto.Actions = append(dto.Actions, actionToDTO(inner))
	}
	return dto
}

func dtoToConfig(dto configDTO) *config.Config {
	hw := make(config.HardwareMap, len(dto.HardwareMap))
	for codeStr, name := range dto.HardwareMap {
		if code, ok := parseCodeKey(codeStr); ok {
			hw[code] = name
		}
	}

	rules := make([]config.Rule, len(dto.Rules))
	for i, r := range dto.Rules {
		rules[i] = config.Rule{
			ID:          r.ID,
			Trigger:     r.Trigger,
			RuleType:    config.GestureKind(r.RuleType),
			Enabled:     r.Enabled,
			Description: r.Description,
			Action:      dtoToAction(r.Action),
		}
	}

	return &config.Config{
		DeviceName:  dto.DeviceName,
		HardwareMap: hw,
		Rules:       rules,
		Settings: config.Settings{
			ShortPressMs:  dto.Settings.ShortPressMs,
			LongPressMs:   dto.Settings.LongPressMs,
			DoubleTapMs:   dto.Settings.DoubleTapMs,
			CombinationMs: dto.Settings.CombinationMs,
			TickMs:        dto.Settings.TickMs,
		},
	}
}

func dtoToAction(dto actionDTO) config.Action {
	a := config.Action{
		Type:       config.ActionType(dto.Type),
		Code:       dto.Code,
		Command:    dto.Command,
		Builtin:    dto.Builtin,
		Package:    dto.Package,
		Activity:   dto.Activity,
		Codes:      dto.Codes,
		IntervalMs: dto.IntervalMs,
		RuleID:     dto.RuleID,
		Direction:  config.Direction(dto.Direction),
		DX:         dto.DX,
		DY:         dto.DY,
		DurationMs: dto.DurationMs,
	}
	if dto.Intent != nil {
		a.Intent = &config.IntentSpec{
			Action:    dto.Intent.Action,
			Package:   dto.Intent.Package,
			ClassName: dto.Intent.ClassName,
			Data:      dto.Intent.Data,
			Category:  dto.Intent.Category,
			Extras:    dto.Intent.Extras,
		}
	}
	for _, inner := range dto.Actions {
		a.Actions = append(a.Actions, dtoToAction(inner))
	}
	return a
}
