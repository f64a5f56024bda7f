package engine

import (
	"testing"
	"time"

	"github.com/Danondso/keymapperd/internal/config"
)

var baseSettings = config.Settings{
	ShortPressMs:  300,
	LongPressMs:   800,
	DoubleTapMs:   300,
	CombinationMs: 200,
	TickMs:        50,
}

var hwMap = config.HardwareMap{114: "VOL_DOWN", 115: "VOL_UP"}

func ms(n int) time.Time {
	return time.Unix(0, 0).Add(time.Duration(n) * time.Millisecond)
}

func emitKeyAction(code uint16) config.Action {
	return config.Action{Type: config.ActionEmitKey, Code: code}
}

func TestS1_SimpleClick(t *testing.T) {
	rules := []config.Rule{
		{ID: "a", Trigger: "VOL_UP", RuleType: config.Click, Enabled: true, Action: emitKeyAction(100)},
	}
	e := New(rules, hwMap, baseSettings)

	actions := e.HandleKey(115, Press, ms(0))
	if len(actions) != 0 {
		t.Fatalf("press should not emit, got %v", actions)
	}
	actions = e.HandleKey(115, Release, ms(50))
	if len(actions) != 1 || actions[0].Code != 100 {
		t.Fatalf("expected single emit(100), got %v", actions)
	}
}

func TestS2_DoubleClickSuppressesFirstClick(t *testing.T) {
	rules := []config.Rule{
		{ID: "a", Trigger: "VOL_UP", RuleType: config.Click, Enabled: true, Action: emitKeyAction(100)},
		{ID: "b", Trigger: "VOL_UP", RuleType: config.DoubleClick, Enabled: true, Action: emitKeyAction(200)},
	}
	e := New(rules, hwMap, baseSettings)

	e.HandleKey(115, Press, ms(0))
	actions := e.HandleKey(115, Release, ms(50))
	if len(actions) != 0 {
		t.Fatalf("first release should defer, got %v", actions)
	}

	e.HandleKey(115, Press, ms(100))
	actions = e.HandleKey(115, Release, ms(150))
	if len(actions) != 1 || actions[0].Code != 200 {
		t.Fatalf("expected single emit(200) on second tap, got %v", actions)
	}

	// The deferred click must never fire: simulate ticks well past the
	// double-tap window and confirm nothing further is emitted.
	actions = e.Tick(ms(500))
	if len(actions) != 0 {
		t.Fatalf("pending click should have been discarded, got %v", actions)
	}
}

func TestS3_IsolatedClickFiresAfterWindow(t *testing.T) {
	rules := []config.Rule{
		{ID: "a", Trigger: "VOL_UP", RuleType: config.Click, Enabled: true, Action: emitKeyAction(100)},
		{ID: "b", Trigger: "VOL_UP", RuleType: config.DoubleClick, Enabled: true, Action: emitKeyAction(200)},
	}
	e := New(rules, hwMap, baseSettings)

	e.HandleKey(115, Press, ms(0))
	actions := e.HandleKey(115, Release, ms(50))
	if len(actions) != 0 {
		t.Fatalf("expected deferral, got %v", actions)
	}

	actions = e.Tick(ms(349))
	if len(actions) != 0 {
		t.Fatalf("pending click should not fire before window elapses, got %v", actions)
	}
	actions = e.Tick(ms(350))
	if len(actions) != 1 || actions[0].Code != 100 {
		t.Fatalf("expected emit(100) once window elapsed, got %v", actions)
	}
}

func TestS4_LongPressFiresOnTickNotRelease(t *testing.T) {
	rules := []config.Rule{
		{ID: "c", Trigger: "116", RuleType: config.LongPress, Enabled: true, Action: config.Action{Type: config.ActionRunShell, Command: "x"}},
	}
	e := New(rules, config.HardwareMap{}, baseSettings)

	e.HandleKey(116, Press, ms(0))
	actions := e.Tick(ms(799))
	if len(actions) != 0 {
		t.Fatalf("should not fire before long press threshold, got %v", actions)
	}
	actions = e.Tick(ms(800))
	if len(actions) != 1 || actions[0].Command != "x" {
		t.Fatalf("expected run-shell(x) at threshold, got %v", actions)
	}

	actions = e.HandleKey(116, Release, ms(900))
	if len(actions) != 0 {
		t.Fatalf("release after hold-handled should emit nothing, got %v", actions)
	}
}

func TestS5_ComboClick(t *testing.T) {
	rules := []config.Rule{
		{ID: "d", Trigger: "VOL_UP+VOL_DOWN", RuleType: config.ComboClick, Enabled: true, Action: emitKeyAction(300)},
	}
	e := New(rules, hwMap, baseSettings)

	e.HandleKey(115, Press, ms(0))
	e.HandleKey(114, Press, ms(50))
	actions := e.HandleKey(114, Release, ms(150))
	if len(actions) != 1 || actions[0].Code != 300 {
		t.Fatalf("expected emit(300) on combo release, got %v", actions)
	}

	actions = e.HandleKey(115, Release, ms(160))
	if len(actions) != 0 {
		t.Fatalf("second release of an already-fired combo should emit nothing, got %v", actions)
	}
}

func TestS6_ComboLongPress(t *testing.T) {
	rules := []config.Rule{
		{ID: "e", Trigger: "VOL_UP+VOL_DOWN", RuleType: config.ComboLongPress, Enabled: true, Action: emitKeyAction(400)},
	}
	e := New(rules, hwMap, baseSettings)

	e.HandleKey(115, Press, ms(0))
	e.HandleKey(114, Press, ms(50))

	actions := e.Tick(ms(849))
	if len(actions) != 0 {
		t.Fatalf("should not fire before both keys held long_press_threshold from their own press, got %v", actions)
	}
	actions = e.Tick(ms(900))
	if len(actions) != 1 || actions[0].Code != 400 {
		t.Fatalf("expected emit(400) once both held past threshold within combo window, got %v", actions)
	}

	actions = e.HandleKey(114, Release, ms(950))
	if len(actions) != 0 {
		t.Fatalf("release after combo long press fired should emit nothing, got %v", actions)
	}
	actions = e.HandleKey(115, Release, ms(960))
	if len(actions) != 0 {
		t.Fatalf("release after combo long press fired should emit nothing, got %v", actions)
	}
}

func TestBoundary_ClickVsShortPress(t *testing.T) {
	rules := []config.Rule{
		{ID: "a", Trigger: "VOL_UP", RuleType: config.Click, Enabled: true, Action: emitKeyAction(1)},
		{ID: "b", Trigger: "VOL_UP", RuleType: config.ShortPress, Enabled: true, Action: emitKeyAction(2)},
	}

	t.Run("held for threshold-1 classifies as click", func(t *testing.T) {
		e := New(rules, hwMap, baseSettings)
		e.HandleKey(115, Press, ms(0))
		actions := e.Tick(ms(299))
		if len(actions) != 0 {
			t.Fatalf("expected no tick emission before threshold, got %v", actions)
		}
		actions = e.HandleKey(115, Release, ms(299))
		if len(actions) != 1 || actions[0].Code != 1 {
			t.Fatalf("expected click at just-under-threshold release, got %v", actions)
		}
	})

	t.Run("held for exactly threshold classifies as short press", func(t *testing.T) {
		e := New(rules, hwMap, baseSettings)
		e.HandleKey(115, Press, ms(0))
		actions := e.Tick(ms(300))
		if len(actions) != 1 || actions[0].Code != 2 {
			t.Fatalf("expected short press at exactly threshold, got %v", actions)
		}
		actions = e.HandleKey(115, Release, ms(310))
		if len(actions) != 0 {
			t.Fatalf("release after short press fired should suppress click, got %v", actions)
		}
	})
}

func TestBoundary_ComboWindow(t *testing.T) {
	rules := []config.Rule{
		{ID: "d", Trigger: "VOL_UP+VOL_DOWN", RuleType: config.ComboShortPress, Enabled: true, Action: emitKeyAction(1)},
	}

	t.Run("spread exceeds combination window", func(t *testing.T) {
		e := New(rules, hwMap, baseSettings)
		e.HandleKey(115, Press, ms(0))
		e.HandleKey(114, Press, ms(201))
		actions := e.Tick(ms(501))
		if len(actions) != 0 {
			t.Fatalf("spread of 201ms exceeds 200ms combination window, expected no fire, got %v", actions)
		}
	})

	t.Run("spread exactly at combination window fires", func(t *testing.T) {
		e := New(rules, hwMap, baseSettings)
		e.HandleKey(115, Press, ms(0))
		e.HandleKey(114, Press, ms(200))
		actions := e.Tick(ms(500))
		if len(actions) != 1 || actions[0].Code != 1 {
			t.Fatalf("spread of exactly 200ms should fire, got %v", actions)
		}
	})
}

func TestIsMapped(t *testing.T) {
	rules := []config.Rule{
		{ID: "a", Trigger: "VOL_UP", RuleType: config.Click, Enabled: true, Action: emitKeyAction(1)},
	}
	e := New(rules, hwMap, baseSettings)

	if !e.IsMapped(115) {
		t.Error("115 should be mapped")
	}
	if e.IsMapped(999) {
		t.Error("999 should not be mapped")
	}
}

func TestInertComboRuleNeverFires(t *testing.T) {
	// A combo rule whose trigger does not parse into two distinct codes
	// (here, an unresolvable symbolic name) must never emit.
	rules := []config.Rule{
		{ID: "bad", Trigger: "VOL_UP+NOT_A_KEY", RuleType: config.ComboClick, Enabled: true, Action: emitKeyAction(1)},
	}
	e := New(rules, hwMap, baseSettings)

	e.HandleKey(115, Press, ms(0))
	actions := e.HandleKey(115, Release, ms(50))
	if len(actions) != 0 {
		t.Fatalf("malformed combo rule should be inert, got %v", actions)
	}
	actions = e.Tick(ms(100))
	if len(actions) != 0 {
		t.Fatalf("malformed combo rule should be inert on tick too, got %v", actions)
	}
}

func TestUpdateRulesClearsStateOnChange(t *testing.T) {
	rules := []config.Rule{
		{ID: "a", Trigger: "VOL_UP", RuleType: config.Click, Enabled: true, Action: emitKeyAction(1)},
	}
	e := New(rules, hwMap, baseSettings)
	e.HandleKey(115, Press, ms(0))

	newRules := []config.Rule{
		{ID: "a", Trigger: "VOL_UP", RuleType: config.Click, Enabled: true, Action: emitKeyAction(2)},
	}
	e.UpdateRules(newRules, hwMap)

	// The held key state must have been wiped; releasing now should not
	// classify as a click under the stale pressedAt.
	actions := e.HandleKey(115, Release, ms(100000))
	if len(actions) != 0 {
		t.Fatalf("held-key state should have been cleared by update_rules, got %v", actions)
	}
}

func TestUpdateRulesLeavesStateOnNoChange(t *testing.T) {
	rules := []config.Rule{
		{ID: "a", Trigger: "VOL_UP", RuleType: config.Click, Enabled: true, Action: emitKeyAction(1)},
	}
	e := New(rules, hwMap, baseSettings)
	e.HandleKey(115, Press, ms(0))

	e.UpdateRules(rules, hwMap)

	actions := e.HandleKey(115, Release, ms(50))
	if len(actions) != 1 || actions[0].Code != 1 {
		t.Fatalf("in-flight press should survive a no-op update_rules, got %v", actions)
	}
}

func TestUnmappedKeyTransitionsProduceNoActions(t *testing.T) {
	// The engine itself does not act on repeats or unmapped keys; it is
	// the Processor's job to forward them. Confirm HandleKey on an
	// unmapped code is a pure no-op regardless of transition value.
	e := New(nil, hwMap, baseSettings)
	for _, v := range []int{Press, Repeat, Release} {
		if actions := e.HandleKey(999, v, ms(0)); len(actions) != 0 {
			t.Fatalf("unmapped key transition %d should produce no actions, got %v", v, actions)
		}
	}
}
