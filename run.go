package wlansweep

// run.go holds one iteration of a sweep.  A SimulationRun owns its
// SimulationContext, topology, applications and counter from the moment it is
// built until it is torn down.

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/iti/wlansweep/wifi"
)

// RunParams are everything needed to build one run
type RunParams struct {
	Stations int
	Phy      wifi.PhyParams
	Mode     TrafficMode
	Distance float64
	Duration time.Duration // measured period
	Seed     uint64
	Metric   GoodputMetric
	Prefix   netip.Prefix      // DefaultPrefix when invalid
	Attrs    *wifi.ChannelAttrs // default radio attributes when nil
}

// SimulationRun is one sweep iteration
type SimulationRun struct {
	params  RunParams
	sctx    *SimulationContext
	topo    *Topology
	addrs   map[*NetDevice]netip.Addr
	traffic *Traffic
	counter *ReceptionCounter

	executed bool
	torn     bool
	sample   *GoodputSample
	share    ShareStats
}

// BuildRun creates a fresh network for params: topology, addresses, routes,
// applications and a reception counter subscribed to the receiver, followed by
// any extra sinks.  Nothing survives a failed build
func BuildRun(params RunParams, logger *slog.Logger, sinks ...func(*SimulationRun) ReceptionSink) (*SimulationRun, error) {
	// reject what cannot be generated before anything is allocated
	if params.Mode != UDP {
		return nil, &UnsupportedModeError{Mode: params.Mode}
	}
	if !(params.Duration > 0) {
		return nil, &ConfigurationError{Param: "simulationTime", Value: params.Duration.Seconds(), Reason: "must be positive"}
	}
	if !params.Prefix.IsValid() {
		params.Prefix = DefaultPrefix
	}
	attrs := wifi.DefaultChannelAttrs()
	if params.Attrs != nil {
		attrs = *params.Attrs
	}

	sr := new(SimulationRun)
	sr.params = params
	sr.sctx = CreateSimulationContext(params.Seed, logger)

	var err error
	sr.topo, err = BuildTopologyWithAttrs(sr.sctx, params.Stations, params.Phy, params.Distance, attrs)
	if err != nil {
		sr.Teardown()
		return nil, err
	}

	sr.addrs, err = AssignAddresses(params.Prefix, sr.topo.Devices())
	if err != nil {
		sr.Teardown()
		return nil, err
	}
	if err = PopulateRoutingTables(sr.topo.Nodes()); err != nil {
		sr.Teardown()
		return nil, err
	}

	sr.traffic, err = InstallTraffic(sr.sctx, sr.topo.AP, sr.topo.Stations, sr.addrs,
		DefaultTrafficParams(params.Mode, params.Duration))
	if err != nil {
		sr.Teardown()
		return nil, err
	}

	sr.counter = NewReceptionCounter()
	sr.traffic.Receiver.Subscribe(sr.counter)
	for _, mkSink := range sinks {
		if sink := mkSink(sr); sink != nil {
			sr.traffic.Receiver.Subscribe(sink)
		}
	}
	return sr, nil
}

// Stations returns the number of stations of the run
func (sr *SimulationRun) Stations() int {
	return sr.params.Stations
}

// Params returns the parameters the run was built from
func (sr *SimulationRun) Params() RunParams {
	return sr.params
}

// Context returns the run's simulation context
func (sr *SimulationRun) Context() *SimulationContext {
	return sr.sctx
}

// Topology returns the nodes of the run, nil after teardown
func (sr *SimulationRun) Topology() *Topology {
	return sr.topo
}

// Traffic returns the applications of the run, nil after teardown
func (sr *SimulationRun) Traffic() *Traffic {
	return sr.traffic
}

// Counter returns the run's reception counter
func (sr *SimulationRun) Counter() *ReceptionCounter {
	return sr.counter
}

// StopTime is when the scheduler stops: the measured period plus the start margin
func (sr *SimulationRun) StopTime() time.Duration {
	return sr.params.Duration + trafficMargin
}

// Execute runs the scheduler until the stop time or until ctx is cancelled
func (sr *SimulationRun) Execute(ctx context.Context) error {
	if sr.torn {
		return fmt.Errorf("run with %d stations already torn down", sr.params.Stations)
	}
	if sr.executed {
		return fmt.Errorf("run with %d stations already executed", sr.params.Stations)
	}
	sr.executed = true
	return sr.sctx.Sched.Run(ctx, sr.StopTime())
}

// Goodput computes Mbit/s over the measured period from a counter snapshot
func Goodput(snap CounterSnapshot, metric GoodputMetric, payloadSize int, duration time.Duration) float64 {
	secs := duration.Seconds()
	if !(secs > 0) {
		return 0
	}
	if metric == PacketsMetric {
		return float64(snap.Packets) * float64(payloadSize) * 8 / (secs * 1e6)
	}
	return snap.Bytes * 8 / (secs * 1e6)
}

// Collect reads the counter and computes the run's goodput sample.
// The counter is read once; later calls return the same sample
func (sr *SimulationRun) Collect() GoodputSample {
	if sr.sample != nil {
		return *sr.sample
	}
	snap := sr.counter.Read()
	gs := GoodputSample{
		StationCount:   sr.params.Stations,
		ThroughputMbps: Goodput(snap, sr.params.Metric, sr.params.Mode.PayloadSize(), sr.params.Duration),
	}
	sr.sample = &gs

	if sr.topo != nil {
		stations := make([]netip.Addr, 0, len(sr.topo.Stations))
		for _, sta := range sr.topo.Stations {
			stations = append(stations, sta.Addr())
		}
		sr.share = shareStats(snap.BySource, stations, sr.params.Duration.Seconds())
	}
	return gs
}

// Share returns how goodput was split between stations, valid after Collect
func (sr *SimulationRun) Share() ShareStats {
	return sr.share
}

// MacStats sums the MAC counters of every device of the run
func (sr *SimulationRun) MacStats() wifi.DeviceStats {
	var total wifi.DeviceStats
	if sr.topo == nil {
		return total
	}
	for _, ndev := range sr.topo.Devices() {
		st := ndev.Wifi().Stats()
		total.Enqueued += st.Enqueued
		total.QueueDrops += st.QueueDrops
		total.RetryDrops += st.RetryDrops
		total.TxPpdus += st.TxPpdus
		total.TxMpdus += st.TxMpdus
		total.Collisions += st.Collisions
		total.MpduErrors += st.MpduErrors
		total.RxMpdus += st.RxMpdus
	}
	return total
}

// TornDown reports whether Teardown has been called
func (sr *SimulationRun) TornDown() bool {
	return sr.torn
}

// Teardown destroys the scheduler state, the applications and the topology.
// Calling it again does nothing
func (sr *SimulationRun) Teardown() {
	if sr.torn {
		return
	}
	sr.torn = true
	if sr.traffic != nil {
		sr.traffic.stopAll()
	}
	if sr.sctx != nil {
		sr.sctx.Destroy()
	}
	if sr.topo != nil {
		sr.topo.Dispose()
	}
	sr.traffic = nil
	sr.topo = nil
	sr.addrs = nil
}
