// Package virtualsink owns the process-local virtual keyboard that
// every synthetic key and every passed-through raw event is written
// to. It is the single writer to that uinput device; all callers
// serialise through its mutex so that a synthetic click's
// press/sync/release/sync sequence is never interleaved with another
// emission.
package virtualsink

import (
	"fmt"
	"sync"

	evdev "github.com/holoplot/go-evdev"
)

// Transition mirrors the evdev key event value.
type Transition int32

const (
	Up     Transition = 0
	Down   Transition = 1
	Repeat Transition = 2
)

// Sink is the virtual keyboard. All methods are safe for concurrent
// use; a single internal mutex orders every write against the
// underlying uinput device.
type Sink struct {
	mu  sync.Mutex
	dev *evdev.InputDevice
}

// New creates a virtual keyboard device named name, capable of
// emitting every key code in [0, 767].
func New(name string) (*Sink, error) {
	codes := make([]evdev.EvCode, 768)
	for i := range codes {
		codes[i] = evdev.EvCode(i)
	}

	dev, err := evdev.CreateDevice(name, evdev.InputID{
		BusType: 0x03,
		Vendor:  0x4b4d, // "KM"
		Product: 0x0001,
		Version: 1,
	}, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: codes,
	})
	if err != nil {
		return nil, fmt.Errorf("create virtual sink device %q: %w", name, err)
	}
	return &Sink{dev: dev}, nil
}

// Close releases the underlying uinput device.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev.Close()
}

// Emit writes a single key event (code, transition) to the sink
// without an accompanying sync. Most callers want EmitClick instead;
// Emit is exposed for forwarding raw passthrough events, whose
// SYN_REPORT arrives as its own separate event and is flushed by a
// later call to Sync.
func (s *Sink) Emit(code uint16, transition Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitLocked(code, transition)
}

func (s *Sink) emitLocked(code uint16, transition Transition) error {
	return s.dev.WriteOne(&evdev.InputEvent{
		Type:  evdev.EV_KEY,
		Code:  evdev.EvCode(code),
		Value: int32(transition),
	})
}

// Sync emits a SYN_REPORT, flushing any pending event batch to
// listeners of the virtual device.
func (s *Sink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked()
}

func (s *Sink) syncLocked() error {
	return s.dev.WriteOne(&evdev.InputEvent{
		Type:  evdev.EV_SYN,
		Code:  evdev.EvCode(evdev.SYN_REPORT),
		Value: 0,
	})
}

// EmitClick writes the full press, sync, release, sync sequence for
// code under a single mutex acquisition, so it can never be
// interleaved with another emission from a concurrent caller.
func (s *Sink) EmitClick(code uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.emitLocked(code, Down); err != nil {
		return fmt.Errorf("emit press %d: %w", code, err)
	}
	if err := s.syncLocked(); err != nil {
		return fmt.Errorf("sync after press %d: %w", code, err)
	}
	if err := s.emitLocked(code, Up); err != nil {
		return fmt.Errorf("emit release %d: %w", code, err)
	}
	if err := s.syncLocked(); err != nil {
		return fmt.Errorf("sync after release %d: %w", code, err)
	}
	return nil
}
