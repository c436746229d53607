package wlansweep

// campaign.go drives a sweep.  For every station count from 1 to the
// configured maximum it builds a fresh run, executes it, collects its goodput,
// emits the sample and tears the run down before the next one starts:
//
//	Idle -> Building -> Running -> Collecting -> TearingDown -> (Building | Done)
//
// Any error while building aborts the whole campaign.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/google/uuid"
	"github.com/iti/rngstream"
	"github.com/iti/wlansweep/internal/logging"
	"github.com/iti/wlansweep/wifi"
)

// CampaignState is the phase a campaign is in
type CampaignState int

const (
	Idle CampaignState = iota
	Building
	Running
	Collecting
	TearingDown
	Done
)

var campaignStateToStr = map[CampaignState]string{
	Idle:        "idle",
	Building:    "building",
	Running:     "running",
	Collecting:  "collecting",
	TearingDown: "tearing-down",
	Done:        "done",
}

func (cs CampaignState) String() string {
	if str, present := campaignStateToStr[cs]; present {
		return str
	}
	return fmt.Sprintf("state(%d)", int(cs))
}

// Campaign is a sweep over station counts at fixed PHY configuration
type Campaign struct {
	ID uuid.UUID

	cfg      CampaignCfg
	phy      wifi.PhyParams
	mode     TrafficMode
	metric   GoodputMetric
	rootSeed uint64
	attrs    *wifi.ChannelAttrs
	prefix   netip.Prefix

	writer   SampleWriter
	trace    *TraceManager
	capture  *PcapCapture
	observer func(from, to CampaignState)

	state   CampaignState
	current *SimulationRun
	samples []GoodputSample
}

// CampaignOption customizes a campaign
type CampaignOption func(*Campaign)

// WithTrace records every reception into tm
func WithTrace(tm *TraceManager) CampaignOption {
	return func(c *Campaign) { c.trace = tm }
}

// WithCapture writes every reception to pc
func WithCapture(pc *PcapCapture) CampaignOption {
	return func(c *Campaign) { c.capture = pc }
}

// WithObserver calls fn on every state transition
func WithObserver(fn func(from, to CampaignState)) CampaignOption {
	return func(c *Campaign) { c.observer = fn }
}

// WithChannelAttrs replaces the default radio attributes
func WithChannelAttrs(attrs wifi.ChannelAttrs) CampaignOption {
	return func(c *Campaign) { c.attrs = &attrs }
}

// WithPrefix draws addresses from prefix instead of DefaultPrefix
func WithPrefix(prefix netip.Prefix) CampaignOption {
	return func(c *Campaign) { c.prefix = prefix }
}

// CreateCampaign validates cfg and prepares a campaign emitting its samples to writer.
// A traffic mode that cannot be generated is refused here, before any run is built
func CreateCampaign(cfg CampaignCfg, writer SampleWriter, opts ...CampaignOption) (*Campaign, error) {
	if err := ValidateCampaignCfg(&cfg); err != nil {
		return nil, err
	}
	mode, _ := cfg.TrafficMode()
	if mode != UDP {
		return nil, &UnsupportedModeError{Mode: mode}
	}
	metric, _ := cfg.GoodputMetric()

	c := new(Campaign)
	c.ID = uuid.New()
	c.cfg = cfg
	c.phy = cfg.Phy()
	c.mode = mode
	c.metric = metric
	c.rootSeed = RootSeed(cfg.Seed, cfg.Name)
	c.prefix = DefaultPrefix
	c.writer = writer
	c.state = Idle
	c.samples = make([]GoodputSample, 0, cfg.Stations)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RootSeed returns seed when it is positive.  Otherwise a seed is drawn from a
// new random number stream named after the campaign.  Streams are handed out in a
// fixed sequence, so the first unseeded campaign of a process always draws the same seed
func RootSeed(seed int64, name string) uint64 {
	if seed > 0 {
		return uint64(seed)
	}
	rng := rngstream.New(name)
	return uint64(rng.RandU01()*(1<<53)) + 1
}

// runSeed derives the seed of the run with the given station count
func runSeed(root uint64, stations int) uint64 {
	z := root + uint64(stations)*streamStride
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// State returns the current phase
func (c *Campaign) State() CampaignState {
	return c.state
}

// Samples returns the samples emitted so far
func (c *Campaign) Samples() []GoodputSample {
	return c.samples
}

// Config returns the validated configuration
func (c *Campaign) Config() CampaignCfg {
	return c.cfg
}

// RootSeed returns the seed every run's seed derives from
func (c *Campaign) RootSeed() uint64 {
	return c.rootSeed
}

func (c *Campaign) transition(logger *slog.Logger, to CampaignState) {
	from := c.state
	c.state = to
	logger.Debug("campaign state", "from", from.String(), "to", to.String())
	if c.observer != nil {
		c.observer(from, to)
	}
}

// runParams builds the parameters of the run with the given station count
func (c *Campaign) runParams(stations int) RunParams {
	return RunParams{
		Stations: stations,
		Phy:      c.phy,
		Mode:     c.mode,
		Distance: c.cfg.Distance,
		Duration: c.cfg.Duration(),
		Seed:     runSeed(c.rootSeed, stations),
		Metric:   c.metric,
		Prefix:   c.prefix,
		Attrs:    c.attrs,
	}
}

// sinks returns the observers subscribed to each run's receiver besides its counter
func (c *Campaign) sinks(stations int) []func(*SimulationRun) ReceptionSink {
	sinks := make([]func(*SimulationRun) ReceptionSink, 0, 2)
	if c.trace.Active() {
		sinks = append(sinks, func(sr *SimulationRun) ReceptionSink {
			if err := c.trace.RecordNodes(stations, sr.Topology()); err != nil {
				sr.Context().Logger.Warn("trace names", "err", err)
			}
			return c.trace.Sink(stations)
		})
	}
	if c.capture != nil {
		sinks = append(sinks, func(sr *SimulationRun) ReceptionSink {
			return c.capture.Sink(stations, sr.Topology().AP.Devices[0].Mac().HardwareAddr())
		})
	}
	return sinks
}

// Run executes the sweep.  It returns the samples of the iterations that
// completed, and an error if the campaign was aborted or cancelled
func (c *Campaign) Run(ctx context.Context) ([]GoodputSample, error) {
	if c.state != Idle {
		return c.samples, fmt.Errorf("campaign %s already started", c.ID)
	}
	logger := logging.FromContext(ctx).With("campaign", c.ID.String())
	logger.Info("campaign start", "stations", c.cfg.Stations, "mode", c.phy.ModeName(),
		"width", c.phy.ChannelWidth, "shortGuard", c.phy.ShortGuard, "seed", c.rootSeed, "metric", string(c.metric))

	var err error
	for stations := 1; stations <= c.cfg.Stations && err == nil; stations++ {
		err = c.iterate(ctx, logger, stations)
	}
	c.transition(logger, Done)

	// an aborted campaign still writes the traces of the iterations that completed
	if c.trace.Active() && c.cfg.Trace != "" {
		err = errors.Join(err, c.trace.WriteToFile(c.cfg.Trace))
	}
	return c.samples, err
}

// iterate carries one station count through Building, Running, Collecting and TearingDown
func (c *Campaign) iterate(ctx context.Context, logger *slog.Logger, stations int) error {
	c.transition(logger, Building)
	runLogger := logger.With("stations", stations)
	sr, err := BuildRun(c.runParams(stations), runLogger, c.sinks(stations)...)
	if err != nil {
		return fmt.Errorf("building run with %d stations: %w", stations, err)
	}
	c.current = sr
	defer func() {
		sr.Teardown()
		c.current = nil
	}()

	c.transition(logger, Running)
	if err := sr.Execute(ctx); err != nil {
		return fmt.Errorf("run with %d stations: %w", stations, err)
	}

	c.transition(logger, Collecting)
	gs := sr.Collect()
	share := sr.Share()
	mac := sr.MacStats()
	runLogger.Info("goodput", "mbps", gs.ThroughputMbps, "jain", share.Jain,
		"collisions", mac.Collisions, "queueDrops", mac.QueueDrops, "events", sr.Context().Sched.Processed())

	if c.capture != nil {
		if err := c.capture.Flush(); err != nil {
			return fmt.Errorf("pcap capture: %w", err)
		}
	}
	c.samples = append(c.samples, gs)
	if c.writer != nil {
		if err := c.writer.Write(gs); err != nil {
			return fmt.Errorf("writing result of run with %d stations: %w", stations, err)
		}
	}

	c.transition(logger, TearingDown)
	sr.Teardown()
	return nil
}
