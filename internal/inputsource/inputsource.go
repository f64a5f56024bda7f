// Package inputsource opens the evdev device the daemon intercepts
// events from, grabbing it for exclusive access and producing a
// channel of key and sync events for the Processor to consume.
package inputsource

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// Event is a single decoded evdev event relevant to the Processor: a
// key transition or a SYN_REPORT marker.
type Event struct {
	IsSync bool
	Code   uint16
	Value  int32
}

// Source reads events from one grabbed evdev device.
type Source struct {
	dev *evdev.InputDevice
	log *log.Logger
}

// Open opens devicePath directly if given, otherwise enumerates
// /dev/input/event* looking for a device whose reported name matches
// deviceName. Grab failure is logged and tolerated: events then leak
// through to the rest of the system rather than being exclusively
// captured here.
func Open(devicePath, deviceName string, logger *log.Logger) (*Source, error) {
	var dev *evdev.InputDevice
	var err error

	if devicePath != "" {
		dev, err = evdev.Open(devicePath)
		if err != nil {
			return nil, fmt.Errorf("open device %s: %w", devicePath, err)
		}
	} else {
		dev, err = findByName(deviceName)
		if err != nil {
			return nil, err
		}
	}

	if err := dev.Grab(); err != nil {
		logger.Printf("WARNING: failed to grab device: %v (events will not be intercepted)", err)
	}

	return &Source{dev: dev, log: logger}, nil
}

// findByName scans /dev/input/event* in numeric order for a device
// whose Name() equals deviceName.
func findByName(deviceName string) (*evdev.InputDevice, error) {
	matches, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("glob /dev/input/event*: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		ni, _ := strconv.Atoi(strings.TrimPrefix(matches[i], "/dev/input/event"))
		nj, _ := strconv.Atoi(strings.TrimPrefix(matches[j], "/dev/input/event"))
		return ni < nj
	})

	for _, path := range matches {
		dev, err := evdev.Open(path)
		if err != nil {
			continue
		}
		name, nameErr := dev.Name()
		if nameErr == nil && name == deviceName {
			return dev, nil
		}
		_ = dev.Close()
	}

	return nil, fmt.Errorf("no device named %q found under /dev/input", deviceName)
}

// Events launches a goroutine reading the device in a loop and
// returns a channel of decoded Events. The channel is closed, and one
// value sent to errCh, when the stream terminates: the read error on a
// device error, ctx.Err() on context cancellation, and nil when the
// device is gone or already closed. The Processor is expected to exit
// its select loop on either signal.
func (s *Source) Events(ctx context.Context) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errCh := make(chan error, 1)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			raw, err := s.dev.ReadOne()
			if err != nil {
				if os.IsNotExist(err) || strings.Contains(err.Error(), "file already closed") {
					errCh <- nil
					return
				}
				errCh <- fmt.Errorf("read event: %w", err)
				return
			}

			switch raw.Type {
			case evdev.EV_KEY:
				select {
				case events <- Event{Code: uint16(raw.Code), Value: raw.Value}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			case evdev.EV_SYN:
				if raw.Code == evdev.EvCode(evdev.SYN_REPORT) {
					select {
					case events <- Event{IsSync: true}:
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				}
			}
		}
	}()

	return events, errCh
}

// Close releases the underlying device.
func (s *Source) Close() error {
	return s.dev.Close()
}
