package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iti/wlansweep"
	"github.com/iti/wlansweep/internal/logging"
)

var (
	runConfigPath     string
	runPreset         string
	runChannelWidth   int
	runMcs            int
	runSeed           int64
	runStations       int
	runDistance       float64
	runSimulationTime float64
	runUDP            bool
	runShortGuard     bool
	runResults        string
	runMetric         string
	runTrace          string
	runPcap           string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a goodput sweep",
	Long:  "run simulates 1..stations stations in turn and prints '<stations> <Mbit/s>' for each.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger := logging.New(level)

		cfg, err := loadCampaignCfg(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, logger)

		return runCampaign(ctx, cfg, cmd.OutOrStdout())
	},
}

// runCampaign executes the campaign cfg describes, printing its rows to out
func runCampaign(ctx context.Context, cfg *wlansweep.CampaignCfg, out io.Writer) (err error) {
	writer, err := newWriters(out, cfg.Results)
	if err != nil {
		return err
	}

	opts := make([]wlansweep.CampaignOption, 0)
	if cfg.Trace != "" {
		opts = append(opts, wlansweep.WithTrace(wlansweep.CreateTraceManager(cfg.Name, true)))
	}
	if cfg.Pcap != "" {
		pc, perr := wlansweep.CreatePcapCapture(cfg.Pcap)
		if perr != nil {
			return perr
		}
		defer closeInto(pc, &err)
		opts = append(opts, wlansweep.WithCapture(pc))
	}

	campaign, err := wlansweep.CreateCampaign(*cfg, writer, opts...)
	if err != nil {
		return err
	}
	_, err = campaign.Run(ctx)
	return err
}

// closeInto closes c, reporting its error through err unless err already holds one
func closeInto(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// loadCampaignCfg starts from a preset, a configuration file or the defaults,
// then applies every flag given on the command line
func loadCampaignCfg(cmd *cobra.Command) (*wlansweep.CampaignCfg, error) {
	cfg := wlansweep.DefaultCampaignCfg()
	switch {
	case runPreset != "":
		preset, err := wlansweep.Preset(runPreset)
		if err != nil {
			return nil, err
		}
		cfg = preset
	case runConfigPath != "":
		read, err := wlansweep.ReadCampaignCfg(runConfigPath, wlansweep.UseYAML(runConfigPath), nil)
		if err != nil {
			return nil, err
		}
		cfg = *read
	}

	flags := cmd.Flags()
	if flags.Changed("channelWidth") {
		cfg.ChannelWidth = runChannelWidth
	}
	if flags.Changed("mcs") {
		cfg.Mcs = runMcs
	}
	if flags.Changed("seed") {
		cfg.Seed = runSeed
	}
	if flags.Changed("stations") {
		cfg.Stations = runStations
	}
	if flags.Changed("distance") {
		cfg.Distance = runDistance
	}
	if flags.Changed("simulationTime") {
		cfg.SimulationTime = runSimulationTime
	}
	if flags.Changed("udp") {
		cfg.Traffic = string(wlansweep.UDP)
		if !runUDP {
			cfg.Traffic = string(wlansweep.TCP)
		}
	}
	if flags.Changed("gi") {
		cfg.ShortGuard = runShortGuard
	}
	if flags.Changed("results") {
		cfg.Results = runResults
	}
	if flags.Changed("metric") {
		cfg.Metric = runMetric
	}
	if flags.Changed("trace") {
		cfg.Trace = runTrace
	}
	if flags.Changed("pcap") {
		cfg.Pcap = runPcap
	}
	return &cfg, nil
}

func init() {
	def := wlansweep.DefaultCampaignCfg()
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to campaign configuration (YAML or JSON)")
	runCmd.Flags().StringVar(&runPreset, "preset", "", "Named campaign preset")
	runCmd.Flags().IntVar(&runChannelWidth, "channelWidth", def.ChannelWidth, "WiFi channel width in MHz (20, 40, 80, 160)")
	runCmd.Flags().IntVar(&runMcs, "mcs", def.Mcs, "Modulation and coding scheme (0-9)")
	runCmd.Flags().Int64Var(&runSeed, "seed", def.Seed, "Random number seed, drawn when not positive")
	runCmd.Flags().IntVar(&runStations, "stations", def.Stations, "Largest number of stations per AP")
	runCmd.Flags().Float64Var(&runDistance, "distance", def.Distance, "Distance in meters between the stations and the access point")
	runCmd.Flags().Float64Var(&runSimulationTime, "simulationTime", def.SimulationTime, "Measured simulation time in seconds")
	runCmd.Flags().BoolVar(&runUDP, "udp", true, "UDP if set, TCP otherwise")
	runCmd.Flags().BoolVar(&runShortGuard, "gi", def.ShortGuard, "Use the short (400ns) guard interval")
	runCmd.Flags().StringVar(&runResults, "results", "", "File the result rows are appended to")
	runCmd.Flags().StringVar(&runMetric, "metric", def.Metric, "Goodput computed from received bytes or packets")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Write a reception trace (.yaml or .json)")
	runCmd.Flags().StringVar(&runPcap, "pcap", "", "Write the receptions at the access point to a pcap file")
	runCmd.MarkFlagsMutuallyExclusive("config", "preset")
}
