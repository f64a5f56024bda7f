// Package engine classifies raw key transitions into the gesture
// actions a rule set declares. An Engine is owned by exactly one
// goroutine (the Processor's select loop); it is not safe for
// concurrent use, matching the single-threaded state machine it is
// modeled on.
package engine

import (
	"reflect"
	"sort"
	"time"

	"github.com/Danondso/keymapperd/internal/config"
	"github.com/Danondso/keymapperd/internal/trigger"
)

// Value mirrors the evdev key event value: 0 release, 1 press, 2 repeat.
const (
	Release = 0
	Press   = 1
	Repeat  = 2
)

type keyState struct {
	pressedAt           time.Time
	triggeredShortPress bool
	triggeredLongPress  bool
}

type pendingClick struct {
	keyCode     uint16
	action      config.Action
	availableAt time.Time
}

type parsedRule struct {
	original    config.Rule
	triggerKeys []uint16
}

func (p parsedRule) equalTo(o parsedRule) bool {
	return reflect.DeepEqual(p.original, o.original) && reflect.DeepEqual(p.triggerKeys, o.triggerKeys)
}

// Engine is the gesture classifier: it consumes key transitions and a
// 50ms tick, and produces the Actions those transitions and elapsed
// holds resolve to.
type Engine struct {
	keyStates    map[uint16]keyState
	parsedRules  []parsedRule
	pendingClick []pendingClick

	shortPressThreshold time.Duration
	longPressThreshold  time.Duration
	doubleTapInterval   time.Duration
	combinationWindow   time.Duration

	tapHistory map[uint16]tapRecord

	triggeredRules map[string]bool
}

type tapRecord struct {
	count     int
	lastTapAt time.Time
}

// New builds an Engine from an initial rule set, hardware map, and
// settings snapshot.
func New(rules []config.Rule, hardwareMap config.HardwareMap, settings config.Settings) *Engine {
	e := &Engine{
		keyStates:      make(map[uint16]keyState),
		tapHistory:     make(map[uint16]tapRecord),
		triggeredRules: make(map[string]bool),
	}
	e.UpdateSettings(settings)
	e.UpdateRules(rules, hardwareMap)
	return e
}

// UpdateSettings applies new thresholds, taking effect for all future
// classification (in-flight holds are measured against the new
// thresholds on their next tick).
func (e *Engine) UpdateSettings(s config.Settings) {
	e.shortPressThreshold = time.Duration(s.ShortPressMs) * time.Millisecond
	e.longPressThreshold = time.Duration(s.LongPressMs) * time.Millisecond
	e.doubleTapInterval = time.Duration(s.DoubleTapMs) * time.Millisecond
	e.combinationWindow = time.Duration(s.CombinationMs) * time.Millisecond
}

// UpdateRules re-parses triggers against the hardware map and replaces
// the active rule set. If the parsed rule set is unchanged (same rules,
// same resolved trigger keys), in-flight state is left untouched;
// otherwise all transient state (held-key state, triggered-rule dedupe,
// pending double clicks, tap history) is cleared, since it may reference
// rules that no longer exist.
func (e *Engine) UpdateRules(rules []config.Rule, hardwareMap config.HardwareMap) {
	nameToCode := invertHardwareMap(hardwareMap)

	next := make([]parsedRule, len(rules))
	for i, r := range rules {
		next[i] = parsedRule{
			original:    r,
			triggerKeys: trigger.ParseLenient(r.Trigger, r.RuleType, nameToCode),
		}
	}

	if rulesEqual(e.parsedRules, next) {
		return
	}
	e.parsedRules = next
	e.keyStates = make(map[uint16]keyState)
	e.triggeredRules = make(map[string]bool)
	e.pendingClick = nil
	e.tapHistory = make(map[uint16]tapRecord)
}

func rulesEqual(a, b []parsedRule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equalTo(b[i]) {
			return false
		}
	}
	return true
}

func invertHardwareMap(m config.HardwareMap) map[string]uint16 {
	out := make(map[string]uint16, len(m))
	for code, name := range m {
		out[name] = code
	}
	return out
}

// IsMapped reports whether keyCode participates in any rule's trigger,
// single-key or combo.
func (e *Engine) IsMapped(keyCode uint16) bool {
	for _, pr := range e.parsedRules {
		for _, k := range pr.triggerKeys {
			if k == keyCode {
				return true
			}
		}
	}
	return false
}

// HandleKey consumes a press (value==Press) or release (value==Release)
// transition for keyCode and returns the Actions it resolves, if any.
// Repeats (value==Repeat) are ignored; holds are resolved by Tick.
func (e *Engine) HandleKey(keyCode uint16, value int, now time.Time) []config.Action {
	var actions []config.Action

	switch value {
	case Press:
		e.keyStates[keyCode] = keyState{pressedAt: now}
	case Release:
		state, ok := e.keyStates[keyCode]
		if !ok {
			return nil
		}
		delete(e.keyStates, keyCode)

		for _, pr := range e.parsedRules {
			if containsKey(pr.triggerKeys, keyCode) {
				delete(e.triggeredRules, pr.original.ID)
			}
		}

		holdDuration := now.Sub(state.pressedAt)
		holdHandled := state.triggeredShortPress || state.triggeredLongPress

		if !holdHandled && holdDuration < e.shortPressThreshold {
			comboClicks := e.checkComboRelease(keyCode, state.pressedAt, now)
			if len(comboClicks) > 0 {
				actions = append(actions, comboClicks...)
			} else {
				e.handleTap(keyCode, now, &actions)
			}
		}
	}

	return actions
}

func (e *Engine) handleTap(keyCode uint16, now time.Time, actions *[]config.Action) {
	rec, ok := e.tapHistory[keyCode]
	if !ok {
		rec = tapRecord{count: 0, lastTapAt: now}
	}

	newCount := 1
	if now.Sub(rec.lastTapAt) < e.doubleTapInterval {
		newCount = rec.count + 1
	}
	e.tapHistory[keyCode] = tapRecord{count: newCount, lastTapAt: now}

	var doubleClickRule *parsedRule
	var clickRules []*parsedRule
	for i := range e.parsedRules {
		pr := &e.parsedRules[i]
		if !pr.original.Enabled || len(pr.triggerKeys) != 1 || pr.triggerKeys[0] != keyCode {
			continue
		}
		switch pr.original.RuleType {
		case config.DoubleClick:
			if doubleClickRule == nil {
				doubleClickRule = pr
			}
		case config.Click:
			clickRules = append(clickRules, pr)
		}
	}

	if doubleClickRule != nil {
		if newCount == 2 {
			*actions = append(*actions, doubleClickRule.original.Action)
			e.removePendingClicksFor(keyCode)
			delete(e.tapHistory, keyCode)
		} else {
			for _, pr := range clickRules {
				e.pendingClick = append(e.pendingClick, pendingClick{
					keyCode:     keyCode,
					action:      pr.original.Action,
					availableAt: now.Add(e.doubleTapInterval),
				})
			}
		}
	} else {
		for _, pr := range clickRules {
			*actions = append(*actions, pr.original.Action)
		}
	}
}

func (e *Engine) removePendingClicksFor(keyCode uint16) {
	out := e.pendingClick[:0]
	for _, p := range e.pendingClick {
		if p.keyCode != keyCode {
			out = append(out, p)
		}
	}
	e.pendingClick = out
}

// Tick resolves hold-based gestures (short press, long press, their
// combo variants) and any pending double-click window that has
// elapsed. It should be called on a fixed period (spec default 50ms).
func (e *Engine) Tick(now time.Time) []config.Action {
	var actions []config.Action

	keyCodes := make([]uint16, 0, len(e.keyStates))
	for k := range e.keyStates {
		keyCodes = append(keyCodes, k)
	}
	sort.Slice(keyCodes, func(i, j int) bool { return keyCodes[i] < keyCodes[j] })

	for _, keyCode := range keyCodes {
		state := e.keyStates[keyCode]
		holdTime := now.Sub(state.pressedAt)

		for i := range e.parsedRules {
			pr := &e.parsedRules[i]
			if !pr.original.Enabled || len(pr.triggerKeys) != 1 || pr.triggerKeys[0] != keyCode {
				continue
			}
			if pr.original.RuleType == config.ShortPress &&
				!e.triggeredRules[pr.original.ID] && holdTime >= e.shortPressThreshold {
				actions = append(actions, pr.original.Action)
				e.triggeredRules[pr.original.ID] = true
				state.triggeredShortPress = true
			}
			if pr.original.RuleType == config.LongPress &&
				!e.triggeredRules[pr.original.ID] && holdTime >= e.longPressThreshold {
				actions = append(actions, pr.original.Action)
				e.triggeredRules[pr.original.ID] = true
				state.triggeredLongPress = true
			}
		}
		e.keyStates[keyCode] = state
	}

	actions = append(actions, e.checkComboHold(config.ComboShortPress, e.shortPressThreshold, now)...)
	actions = append(actions, e.checkComboHold(config.ComboLongPress, e.longPressThreshold, now)...)

	retained := e.pendingClick[:0]
	for _, p := range e.pendingClick {
		if !now.Before(p.availableAt) {
			actions = append(actions, p.action)
		} else {
			retained = append(retained, p)
		}
	}
	e.pendingClick = retained

	return actions
}

func (e *Engine) checkComboHold(ruleType config.GestureKind, threshold time.Duration, now time.Time) []config.Action {
	var actions []config.Action

	for i := range e.parsedRules {
		pr := &e.parsedRules[i]
		if !pr.original.Enabled || pr.original.RuleType != ruleType || len(pr.triggerKeys) != 2 {
			continue
		}
		if e.triggeredRules[pr.original.ID] {
			continue
		}

		allHeldLongEnough := true
		times := make([]time.Time, 0, 2)
		for _, k := range pr.triggerKeys {
			state, ok := e.keyStates[k]
			if !ok || now.Sub(state.pressedAt) < threshold {
				allHeldLongEnough = false
				break
			}
			times = append(times, state.pressedAt)
		}
		if !allHeldLongEnough {
			continue
		}

		if spread(times) <= e.combinationWindow {
			actions = append(actions, pr.original.Action)
			e.triggeredRules[pr.original.ID] = true
			for _, k := range pr.triggerKeys {
				state := e.keyStates[k]
				switch ruleType {
				case config.ComboShortPress:
					state.triggeredShortPress = true
				case config.ComboLongPress:
					state.triggeredLongPress = true
				}
				e.keyStates[k] = state
			}
		}
	}

	return actions
}

func (e *Engine) checkComboRelease(keyCode uint16, releasedPressedAt, now time.Time) []config.Action {
	var actions []config.Action

	for _, pr := range e.parsedRules {
		if !pr.original.Enabled || pr.original.RuleType != config.ComboClick ||
			len(pr.triggerKeys) != 2 || !containsKey(pr.triggerKeys, keyCode) {
			continue
		}

		times := make([]time.Time, 0, 2)
		valid := true
		for _, k := range pr.triggerKeys {
			if k == keyCode {
				if now.Sub(releasedPressedAt) >= e.shortPressThreshold {
					valid = false
					break
				}
				times = append(times, releasedPressedAt)
				continue
			}
			state, ok := e.keyStates[k]
			if !ok || now.Sub(state.pressedAt) >= e.shortPressThreshold {
				valid = false
				break
			}
			times = append(times, state.pressedAt)
		}
		if !valid {
			continue
		}

		if spread(times) <= e.combinationWindow {
			actions = append(actions, pr.original.Action)
		}
	}

	return actions
}

func spread(times []time.Time) time.Duration {
	if len(times) == 0 {
		return 0
	}
	min, max := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(min) {
			min = t
		}
		if t.After(max) {
			max = t
		}
	}
	return max.Sub(min)
}

func containsKey(keys []uint16, k uint16) bool {
	for _, x := range keys {
		if x == k {
			return true
		}
	}
	return false
}
