// Package dispatch executes a resolved Action against the Virtual
// Sink, the shared configuration store, and the outside world
// (subprocesses, app/intent launches). It is grounded on the
// executor in original_source/src/event/action.rs, reshaped around
// Go's synchronous os/exec and the package's own Action variants.
package dispatch

import (
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Danondso/keymapperd/internal/config"
	"github.com/Danondso/keymapperd/internal/virtualsink"
)

// Key codes for actions the spec resolves to direct emission rather
// than a shell fallback.
const (
	keyMute           = 113
	keyVolumeUp       = 115
	keyVolumeDown     = 114
	keyToggleDisplay  = 116
	keyBrightnessUp   = 225
	keyBrightnessDown = 224
)

// Dispatcher executes Actions. It holds no per-call state; every field
// is itself a shareable, thread-safe collaborator.
type Dispatcher struct {
	sink  *virtualsink.Sink
	store *config.Store
	log   *log.Logger
}

// New builds a Dispatcher writing to sink and reading/mutating store.
func New(sink *virtualsink.Sink, store *config.Store, logger *log.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, store: store, log: logger}
}

// Execute runs action to completion, except for subprocess spawns,
// which are fire-and-forget: it waits only until the process has
// started. Multi-tap sleeps for the inter-tap interval after each tap
// before Execute returns.
func (d *Dispatcher) Execute(action config.Action) error {
	switch action.Type {
	case config.ActionEmitKey:
		return d.sink.EmitClick(action.Code)

	case config.ActionVolume:
		code := uint16(keyVolumeUp)
		if action.Direction == config.DirectionDown {
			code = keyVolumeDown
		}
		return d.sink.EmitClick(code)

	case config.ActionBrightness:
		code := uint16(keyBrightnessUp)
		if action.Direction == config.DirectionDown {
			code = keyBrightnessDown
		}
		return d.sink.EmitClick(code)

	case config.ActionToggleDisplay:
		return d.sink.EmitClick(keyToggleDisplay)

	case config.ActionBuiltin:
		return d.dispatchBuiltin(action.Builtin)

	case config.ActionRunShell:
		d.spawnShell(action.Command)
		return nil

	case config.ActionLaunchApp:
		cmd := fmt.Sprintf("monkey -p %s -c android.intent.category.LAUNCHER 1", action.Package)
		if action.Activity != "" {
			cmd = fmt.Sprintf("am start -n %s/%s", action.Package, action.Activity)
		}
		d.spawnShell(cmd)
		return nil

	case config.ActionLaunchIntent:
		cmd, ok := buildIntentCommand(action.Intent)
		if !ok {
			d.log.Printf("WARNING: invalid intent spec, skipping launch")
			return nil
		}
		d.spawnShell(cmd)
		return nil

	case config.ActionMultiTap:
		for _, code := range action.Codes {
			if err := d.sink.EmitClick(code); err != nil {
				return fmt.Errorf("multi_tap emit %d: %w", code, err)
			}
			if action.IntervalMs > 0 {
				time.Sleep(time.Duration(action.IntervalMs) * time.Millisecond)
			}
		}
		return nil

	case config.ActionToggleRule:
		enabled, found := d.store.ToggleRule(action.RuleID)
		if !found {
			d.log.Printf("WARNING: toggle_rule: rule %q not found", action.RuleID)
			return nil
		}
		d.log.Printf("rule %s enabled: %v", action.RuleID, enabled)
		if err := config.AppendSaveLog(d.store.Path(), "toggle-rule"); err != nil {
			d.log.Printf("WARNING: save log append failed: %v", err)
		}
		if err := config.Save(d.store.Path(), d.store.Snapshot()); err != nil {
			d.log.Printf("WARNING: persist after toggle_rule failed: %v", err)
		}
		return nil

	case config.ActionSwipe:
		d.log.Printf("WARNING: swipe action declared but not executed (no touchscreen virtual device)")
		return nil

	case config.ActionIntercept:
		return nil

	case config.ActionCompound:
		for _, inner := range action.Actions {
			if inner.Type == config.ActionCompound {
				d.log.Printf("WARNING: compound action cannot nest another compound action, skipping")
				continue
			}
			if err := d.Execute(inner); err != nil {
				d.log.Printf("WARNING: compound inner action failed: %v", err)
			}
		}
		return nil

	default:
		d.log.Printf("WARNING: action type %q not implemented", action.Type)
		return nil
	}
}

func (d *Dispatcher) dispatchBuiltin(id string) error {
	switch id {
	case config.BuiltinMuteToggle:
		return d.sink.EmitClick(keyMute)
	case config.BuiltinOpenVoiceAssistant:
		d.spawnShell("am start -a android.intent.action.VOICE_ASSIST")
	case config.BuiltinOpenCamera:
		d.spawnShell("am start -a android.media.action.STILL_IMAGE_CAMERA")
	case config.BuiltinToggleFlashlight:
		d.spawnShell("cmd statusbar click-tile com.android.systemui/.qs.tiles.FlashlightTile")
	case config.BuiltinToggleDoNotDisturb:
		d.spawnShell(`mode=$(settings get global zen_mode 2>/dev/null); ` +
			`if [ "$mode" = "0" ] || [ -z "$mode" ]; then settings put global zen_mode 1; else settings put global zen_mode 0; fi`)
	default:
		d.log.Printf("WARNING: unknown builtin %q", id)
	}
	return nil
}

// spawnShell starts `sh -c cmdStr` and does not wait for it, aside
// from a background goroutine that reaps the exit status purely to
// log a non-zero exit or start failure.
func (d *Dispatcher) spawnShell(cmdStr string) {
	cmd := exec.Command("sh", "-c", cmdStr)
	if err := cmd.Start(); err != nil {
		d.log.Printf("WARNING: failed to start command %q: %v", cmdStr, err)
		return
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			d.log.Printf("WARNING: command %q failed: %v", cmdStr, err)
		}
	}()
}

// buildIntentCommand renders an `am start` invocation from intent.
// Extras whose value parses as a bool or base-10 int64 use typed
// flags (--ez / --ei); everything else falls back to --es (string).
func buildIntentCommand(intent *config.IntentSpec) (string, bool) {
	if intent == nil {
		return "", false
	}

	cmd := "am start"
	if intent.Action != "" {
		cmd += " -a " + intent.Action
	}
	if intent.Data != "" {
		cmd += " -d " + shellQuote(intent.Data)
	}
	if intent.Package != "" {
		if intent.ClassName != "" {
			cmd += fmt.Sprintf(" -n %s/%s", intent.Package, intent.ClassName)
		} else {
			cmd += " -p " + intent.Package
		}
	}
	for _, c := range intent.Category {
		cmd += " -c " + c
	}
	for k, v := range intent.Extras {
		if b, err := strconv.ParseBool(v); err == nil {
			cmd += fmt.Sprintf(" --ez %s %t", k, b)
			continue
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cmd += fmt.Sprintf(" --ei %s %d", k, n)
			continue
		}
		cmd += fmt.Sprintf(" --es %s %s", k, shellQuote(v))
	}

	return cmd, true
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
