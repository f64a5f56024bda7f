// Package processor implements the cooperative event loop that owns
// the Input Source, the gesture Engine, and a Learn Filter handle,
// dispatching resolved Actions and forwarding unmapped/passthrough
// events to the Virtual Sink. It is grounded on
// original_source/src/event/processor.rs's tokio::select! loop,
// reshaped around a Go select over channels and time.Ticker.
package processor

import (
	"context"
	"log"
	"time"

	"github.com/Danondso/keymapperd/internal/config"
	"github.com/Danondso/keymapperd/internal/dispatch"
	"github.com/Danondso/keymapperd/internal/engine"
	"github.com/Danondso/keymapperd/internal/inputsource"
	"github.com/Danondso/keymapperd/internal/learn"
	"github.com/Danondso/keymapperd/internal/virtualsink"
)

const refreshInterval = 5 * time.Second

// Processor is the single-goroutine driver tying the daemon's
// components together. Run owns and never shares the Engine; all
// other collaborators are safe for the concurrent use the HTTP
// surface also makes of them.
type Processor struct {
	source     *inputsource.Source
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	sink       *virtualsink.Sink
	store      *config.Store
	learn      *learn.Filter
	log        *log.Logger
	tickPeriod time.Duration
}

// New builds a Processor. tickPeriod should come from the initial
// config snapshot's settings.tick_period_ms.
func New(
	source *inputsource.Source,
	eng *engine.Engine,
	dispatcher *dispatch.Dispatcher,
	sink *virtualsink.Sink,
	store *config.Store,
	learnFilter *learn.Filter,
	tickPeriod time.Duration,
	logger *log.Logger,
) *Processor {
	return &Processor{
		source:     source,
		engine:     eng,
		dispatcher: dispatcher,
		sink:       sink,
		store:      store,
		learn:      learnFilter,
		log:        logger,
		tickPeriod: tickPeriod,
	}
}

// Run drives the select loop until the context is cancelled or the
// event stream terminates, returning the terminal error
// (context.Canceled on cancellation, nil when the device is closed).
func (p *Processor) Run(ctx context.Context) error {
	events, streamErr := p.source.Events(ctx)

	tick := time.NewTicker(p.tickPeriod)
	defer tick.Stop()
	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return <-streamErr
			}
			p.handleEvent(ev)

		case now := <-tick.C:
			p.learn.RefreshTimeout()
			for _, action := range p.engine.Tick(now) {
				p.dispatchAndLog(action)
			}

		case <-refresh.C:
			snap := p.store.Snapshot()
			p.engine.UpdateRules(snap.Rules, snap.HardwareMap)
			p.engine.UpdateSettings(snap.Settings)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Processor) handleEvent(ev inputsource.Event) {
	if ev.IsSync {
		if err := p.sink.Sync(); err != nil {
			p.log.Printf("WARNING: sink sync failed: %v", err)
		}
		return
	}

	if p.learn.ConsumeEvent(ev.Code, int(ev.Value)) {
		return
	}

	if p.engine.IsMapped(ev.Code) {
		now := time.Now()
		for _, action := range p.engine.HandleKey(ev.Code, int(ev.Value), now) {
			p.dispatchAndLog(action)
		}
		return
	}

	if err := p.sink.Emit(ev.Code, virtualsink.Transition(ev.Value)); err != nil {
		p.log.Printf("WARNING: passthrough emit failed: %v", err)
	}
}

func (p *Processor) dispatchAndLog(action config.Action) {
	if err := p.dispatcher.Execute(action); err != nil {
		p.log.Printf("WARNING: action %s dispatch failed: %v", action.Type, err)
	}
}
