package wlansweep

// simctx.go holds the state owned by exactly one simulation run: the event
// scheduler with its clock, the random number streams handed to devices,
// the object id counter and the logger.  A context is created when a run
// starts building and destroyed when it is torn down, so nothing of one run
// is visible to the next.

import (
	"log/slog"

	"github.com/iti/wlansweep/des"
	"golang.org/x/exp/rand"
)

// streamStride separates the seeds of consecutive device streams
const streamStride uint64 = 0x9E3779B97F4A7C15

// SimulationContext is passed by reference to every component of a run
type SimulationContext struct {
	Sched  *des.Scheduler
	Logger *slog.Logger

	seed      uint64
	nxtID     int
	streams   int
	destroyed bool
}

// CreateSimulationContext is a constructor.  All randomness of the run derives from seed
func CreateSimulationContext(seed uint64, logger *slog.Logger) *SimulationContext {
	if logger == nil {
		logger = slog.Default()
	}
	sctx := new(SimulationContext)
	sctx.Sched = des.CreateScheduler()
	sctx.Logger = logger
	sctx.seed = seed
	return sctx
}

// Seed returns the seed the context was created with
func (sctx *SimulationContext) Seed() uint64 {
	return sctx.seed
}

// NxtID returns the next unused object identifier of the run
func (sctx *SimulationContext) NxtID() int {
	sctx.nxtID += 1
	return sctx.nxtID
}

// NewStream returns an independent random stream.  Streams are numbered in the
// order they are requested, so building the same topology twice from the same
// seed hands out identical streams
func (sctx *SimulationContext) NewStream() *rand.Rand {
	sctx.streams += 1
	return rand.New(rand.NewSource(sctx.seed + uint64(sctx.streams)*streamStride))
}

// Destroyed reports whether Destroy has been called
func (sctx *SimulationContext) Destroyed() bool {
	return sctx.destroyed
}

// Destroy discards every pending event and resets the clock
func (sctx *SimulationContext) Destroy() {
	if sctx.destroyed {
		return
	}
	sctx.Sched.Destroy()
	sctx.destroyed = true
}
