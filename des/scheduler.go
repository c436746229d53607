package des

// scheduler.go adapts the evtm event manager to the lifecycle of a simulation
// run.  Handlers have the evtm signature and offsets are vrtime values; evtm
// breaks ties between events scheduled for the same tick in the order they were
// scheduled, so a run is replayed identically for a fixed seed.
//
// On top of evtm the Scheduler adds what a run needs: offsets in the past are
// refused, a context is consulted before every event is served, events left
// when Run returns are discarded, and Destroy starts over with a fresh manager.

import (
	"context"
	"fmt"
	"time"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/evtq"
	"github.com/iti/evt/vrtime"
)

// TicksPerSecond is the resolution of virtual time.  MAC timing is expressed in
// fractions of a microsecond, so a tick is one nanosecond
const TicksPerSecond int64 = 1_000_000_000

func init() {
	vrtime.SetTicksPerSecond(TicksPerSecond)
}

// EventHandlerFunction is the signature of every function the scheduler calls.
// The context argument identifies the object the event concerns, data carries
// whatever the scheduling code wants handed back.
type EventHandlerFunction = evtm.EventHandlerFunction

// InvalidDelayError is returned by Schedule when asked to place an event in the past
type InvalidDelayError struct {
	Delay time.Duration
}

func (e *InvalidDelayError) Error() string {
	return fmt.Sprintf("invalid event delay %v: must not be negative", e.Delay)
}

// DurationToTime converts a duration into a vrtime offset
func DurationToTime(d time.Duration) vrtime.Time {
	return vrtime.CreateTime(int64(d)/vrtime.NanoSecPerTick, 0)
}

// TimeToDuration converts a vrtime value into a duration
func TimeToDuration(t vrtime.Time) time.Duration {
	return time.Duration(t.Ticks() * vrtime.NanoSecPerTick)
}

// Scheduler holds the event manager of one simulation run
type Scheduler struct {
	evtMgr    *evtm.EventManager
	ctx       context.Context // consulted between events while Run is active
	err       error           // why the last Run was cut short
	processed uint64          // number of handlers invoked since the last Destroy
	running   bool
}

// CreateScheduler is a constructor
func CreateScheduler() *Scheduler {
	sched := new(Scheduler)
	sched.evtMgr = evtm.New()
	return sched
}

// EventManager returns the underlying evtm manager
func (sched *Scheduler) EventManager() *evtm.EventManager {
	return sched.evtMgr
}

// Schedule inserts an event that fires offset after the current virtual time.
// The returned integer identifies the event.
func (sched *Scheduler) Schedule(context any, data any, handler EventHandlerFunction, offset vrtime.Time) (int, error) {
	if offset.Ticks() < 0 {
		return 0, &InvalidDelayError{Delay: TimeToDuration(offset)}
	}
	evtID, _ := sched.evtMgr.Schedule(context, data, sched.guard(handler), offset)
	return evtID, nil
}

// guard wraps a handler so that a cancelled run serves no further events
func (sched *Scheduler) guard(handler EventHandlerFunction) EventHandlerFunction {
	return func(evtMgr *evtm.EventManager, context any, data any) any {
		if sched.err != nil {
			return nil
		}
		if sched.ctx != nil {
			if err := sched.ctx.Err(); err != nil {
				sched.err = err
				sched.discard()
				return nil
			}
		}
		sched.processed += 1
		return handler(evtMgr, context, data)
	}
}

// Run serves events in time order until the event list empties or the next
// event would fire after stop.  Events left in the list at that point are discarded.
// ctx is consulted between events; if it is cancelled the remaining events are
// discarded and ctx.Err() is returned, leaving the state of the completed events intact.
func (sched *Scheduler) Run(ctx context.Context, stop time.Duration) error {
	if sched.running {
		return fmt.Errorf("scheduler is already running")
	}
	if err := ctx.Err(); err != nil {
		sched.discard()
		return err
	}
	sched.running = true
	sched.ctx = ctx
	sched.err = nil
	defer func() {
		sched.running = false
		sched.ctx = nil
	}()

	// an empty event list ends evtm's dispatch loop, so cancellation
	// empties the list rather than calling Stop
	limit := float64(stop) / float64(time.Second)
	limitTicks := vrtime.SecondsToTicks(limit)
	sched.evtMgr.Run(limit)

	// evtm returns once its clock reaches the limit, other events due at that tick remain
	for sched.err == nil && sched.Pending() > 0 && sched.evtMgr.EventList.MinTime().Ticks() <= limitTicks {
		sched.evtMgr.Run(limit)
	}
	sched.discard()
	return sched.err
}

// Destroy discards every pending event and rewinds the clock, leaving the
// scheduler ready to serve a new run
func (sched *Scheduler) Destroy() {
	sched.evtMgr = evtm.New()
	sched.processed = 0
	sched.err = nil
}

// discard drops every event still in the list
func (sched *Scheduler) discard() {
	sched.evtMgr.EventList = evtq.New()
}

// Now returns the current virtual time
func (sched *Scheduler) Now() time.Duration {
	return TimeToDuration(sched.evtMgr.CurrentTime())
}

// CurrentSeconds returns the current virtual time in seconds
func (sched *Scheduler) CurrentSeconds() float64 {
	return sched.evtMgr.CurrentSeconds()
}

// CurrentTime returns the current virtual time
func (sched *Scheduler) CurrentTime() vrtime.Time {
	return sched.evtMgr.CurrentTime()
}

// Pending returns the number of events waiting in the event list
func (sched *Scheduler) Pending() int {
	return sched.evtMgr.EventList.Len()
}

// Processed returns the number of handlers served since the last Destroy
func (sched *Scheduler) Processed() uint64 {
	return sched.processed
}
