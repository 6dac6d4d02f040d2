package dispatch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// pumpInterval drives the pump at 100Hz (spec.md §4.8: the Pump must drain and tick at ≥100Hz
// so a held key's repeat cadence doesn't stutter).
const pumpInterval = 10 * time.Millisecond

// Sink is the external side effect boundary the Pump drives (spec.md §3 DispatchSink): a
// platform key/mouse simulator (such as keysim) or a test double.
type Sink interface {
	Dispatch(ev Event)
	Tick(nowTicks int64)
}

// Pump drains a Queue into a Sink on a dedicated goroutine, calling Sink.Tick on every cycle
// so the sink can drive key-repeat for FlagRepeatable holds even when no new event arrives.
type Pump struct {
	q    *Queue
	sink Sink
	log  *logrus.Entry
}

// NewPump constructs a Pump over q and sink.
func NewPump(q *Queue, sink Sink, log *logrus.Entry) *Pump {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pump{q: q, sink: sink, log: log.WithField("component", "dispatch.pump")}
}

// Run drives the pump loop until ctx is cancelled. nowTicks supplies the current tick value
// for Sink.Tick on every cycle (the daemon passes wall-clock nanoseconds).
func (p *Pump) Run(ctx context.Context, nowTicks func() int64) {
	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()

	p.log.Debug("dispatch pump started")
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("dispatch pump stopped")
			return
		case <-ticker.C:
			p.drain()
			p.sink.Tick(nowTicks())
		}
	}
}

// drain pops and dispatches every queued event without blocking; called once per pump cycle.
func (p *Pump) drain() {
	for {
		ev, ok := p.q.Pop()
		if !ok {
			return
		}
		p.sink.Dispatch(ev)
	}
}
