package wlansweep

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestCampaignCfgRoundTrip(t *testing.T) {
	cfg := DefaultCampaignCfg()
	cfg.Name = "wide"
	cfg.ChannelWidth = 80
	cfg.Mcs = 9
	cfg.ShortGuard = true
	cfg.Stations = 4
	cfg.Distance = 3.5
	cfg.SimulationTime = 1.25
	cfg.Seed = 123
	cfg.Metric = string(PacketsMetric)

	for _, name := range []string{"campaign.yaml", "campaign.json"} {
		t.Run(name, func(t *testing.T) {
			filename := filepath.Join(t.TempDir(), name)
			if err := cfg.WriteToFile(filename); err != nil {
				t.Fatalf("WriteToFile: %v", err)
			}
			read, err := ReadCampaignCfg(filename, UseYAML(filename), nil)
			if err != nil {
				t.Fatalf("ReadCampaignCfg: %v", err)
			}
			if *read != cfg {
				t.Errorf("read %+v, wrote %+v", *read, cfg)
			}
		})
	}

	if err := cfg.WriteToFile(filepath.Join(t.TempDir(), "campaign.txt")); err == nil {
		t.Error("expected an unknown extension to be refused")
	}
}

func TestReadCampaignCfgDefaults(t *testing.T) {
	read, err := ReadCampaignCfg("", true, []byte("stations: 3\nmcs: 7\n"))
	if err != nil {
		t.Fatalf("ReadCampaignCfg: %v", err)
	}
	want := DefaultCampaignCfg()
	want.Stations = 3
	want.Mcs = 7
	if *read != want {
		t.Errorf("read %+v, want %+v", *read, want)
	}
}

func TestPresets(t *testing.T) {
	zero, err := Preset("0")
	if err != nil {
		t.Fatalf("Preset: %v", err)
	}
	if zero.Stations != 1 || zero.SimulationTime != 2 || zero.Mcs != 0 {
		t.Errorf("preset 0 = %+v", zero)
	}
	one, err := Preset("1")
	if err != nil {
		t.Fatalf("Preset: %v", err)
	}
	if one.Stations != 1 || one.Mcs != 7 || one.SimulationTime != 10 {
		t.Errorf("preset 1 = %+v", one)
	}
	if _, err := Preset("7"); err == nil {
		t.Error("unknown preset accepted")
	}
	if names := PresetNames(); len(names) != 2 || names[0] != "0" || names[1] != "1" {
		t.Errorf("PresetNames = %v", names)
	}
}

func TestCampaignCfgDerived(t *testing.T) {
	cfg := DefaultCampaignCfg()
	if cfg.Duration() != 10*time.Second {
		t.Errorf("Duration = %v", cfg.Duration())
	}
	cfg.SimulationTime = 0.1
	if cfg.Duration() != 100*time.Millisecond {
		t.Errorf("Duration = %v", cfg.Duration())
	}
	if metric, err := cfg.GoodputMetric(); err != nil || metric != BytesMetric {
		t.Errorf("default metric %q, %v", metric, err)
	}
	cfg.Metric = ""
	if metric, _ := cfg.GoodputMetric(); metric != BytesMetric {
		t.Errorf("empty metric gave %q", metric)
	}
	cfg.Metric = "frames"
	if _, err := cfg.GoodputMetric(); err == nil {
		t.Error("unknown metric accepted")
	}
}

func TestValidateCampaignCfg(t *testing.T) {
	if err := func() error { cfg := DefaultCampaignCfg(); return ValidateCampaignCfg(&cfg) }(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*CampaignCfg)
		params []string
	}{
		{"stations", func(c *CampaignCfg) { c.Stations = 0 }, []string{"stations"}},
		{"distance", func(c *CampaignCfg) { c.Distance = -1 }, []string{"distance"}},
		{"time", func(c *CampaignCfg) { c.SimulationTime = 0 }, []string{"simulationTime"}},
		{"infinite distance", func(c *CampaignCfg) { c.Distance = math.Inf(1) }, []string{"distance"}},
		{"nan distance", func(c *CampaignCfg) { c.Distance = math.NaN() }, []string{"distance"}},
		{"infinite time", func(c *CampaignCfg) { c.SimulationTime = math.Inf(1) }, []string{"simulationTime"}},
		{"nan time", func(c *CampaignCfg) { c.SimulationTime = math.NaN() }, []string{"simulationTime"}},
		{"time overflows duration", func(c *CampaignCfg) { c.SimulationTime = 1e12 }, []string{"simulationTime"}},
		{"width", func(c *CampaignCfg) { c.ChannelWidth = 60 }, []string{"channelWidth"}},
		{"mcs 9 at 20", func(c *CampaignCfg) { c.Mcs = 9 }, []string{"mcs"}},
		{"traffic", func(c *CampaignCfg) { c.Traffic = "quic" }, []string{"traffic"}},
		{"several", func(c *CampaignCfg) { c.Stations = -1; c.Metric = "frames" }, []string{"stations", "metric"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultCampaignCfg()
			test.modify(&cfg)
			err := ValidateCampaignCfg(&cfg)
			if err == nil {
				t.Fatal("expected an error")
			}
			joined, ok := err.(interface{ Unwrap() []error })
			if !ok {
				t.Fatalf("expected joined errors, got %T", err)
			}
			errs := joined.Unwrap()
			if len(errs) != len(test.params) {
				t.Fatalf("%d errors: %v", len(errs), err)
			}
			for idx, e := range errs {
				var cerr *ConfigurationError
				if !errors.As(e, &cerr) || cerr.Param != test.params[idx] {
					t.Errorf("error %d: %v, want param %s", idx, e, test.params[idx])
				}
			}
		})
	}
}

func TestValidateLongestSimulationTime(t *testing.T) {
	cfg := DefaultCampaignCfg()
	cfg.SimulationTime = maxSimulationTime
	if err := ValidateCampaignCfg(&cfg); err != nil {
		t.Fatalf("longest simulation time rejected: %v", err)
	}
	if cfg.Duration() <= 0 || cfg.Duration()+2*trafficMargin <= 0 {
		t.Errorf("duration %v overflows", cfg.Duration())
	}
}

func TestValidateTraceExtension(t *testing.T) {
	for _, trace := range []string{"", "trace.yaml", "trace.yml", "trace.json"} {
		cfg := DefaultCampaignCfg()
		cfg.Trace = trace
		if err := ValidateCampaignCfg(&cfg); err != nil {
			t.Errorf("trace %q rejected: %v", trace, err)
		}
	}

	// the Go checks pass, only the schema objects
	cfg := DefaultCampaignCfg()
	cfg.Trace = "trace.txt"
	err := ValidateCampaignCfg(&cfg)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) || cerr.Param != "config" {
		t.Fatalf("expected the schema to refuse trace.txt, got %v", err)
	}
}

func TestReadCampaignCfgRejects(t *testing.T) {
	tests := []struct {
		name    string
		useYAML bool
		doc     string
	}{
		{"unknown key", true, "station: 3\n"},
		{"mistyped", true, "stations: three\n"},
		{"fractional stations", true, "stations: 2.5\n"},
		{"negative distance", true, "distance: -1\n"},
		{"width", true, "channel_width: 60\n"},
		{"trace extension", true, "trace: out.csv\n"},
		{"json unknown key", false, `{"stations": 3, "mcs_index": 7}`},
		{"json too long", false, `{"simulation_time": 1e12}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			read, err := ReadCampaignCfg("", test.useYAML, []byte(test.doc))
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if read != nil {
				t.Errorf("decoded %+v despite the error", *read)
			}
		})
	}

	read, err := ReadCampaignCfg("", false, []byte(`{"stations": 3, "mcs": 7}`))
	if err != nil || read.Stations != 3 || read.Mcs != 7 {
		t.Errorf("json document: %+v, %v", read, err)
	}
}

func TestValidateWithCue(t *testing.T) {
	cfg := DefaultCampaignCfg()
	if err := validateWithCue(&cfg); err != nil {
		t.Fatalf("defaults rejected by schema: %v", err)
	}
	cfg.Traffic = "TCP"
	if err := validateWithCue(&cfg); err != nil {
		t.Errorf("upper case traffic rejected: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*CampaignCfg)
	}{
		{"width", func(c *CampaignCfg) { c.ChannelWidth = 30 }},
		{"mcs", func(c *CampaignCfg) { c.Mcs = 12 }},
		{"stations", func(c *CampaignCfg) { c.Stations = 0 }},
		{"traffic", func(c *CampaignCfg) { c.Traffic = "sctp" }},
		{"metric", func(c *CampaignCfg) { c.Metric = "frames" }},
		{"time", func(c *CampaignCfg) { c.SimulationTime = 1e10 }},
		{"trace", func(c *CampaignCfg) { c.Trace = "trace" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultCampaignCfg()
			test.modify(&cfg)
			err := validateWithCue(&cfg)
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}
