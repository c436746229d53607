package wlansweep

// desc-campaign.go holds the serializable description of a campaign.  A
// description can be written to and read from yaml or json, the format being
// chosen by the file extension on write and by a flag on read.

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path"
	"sort"
	"time"

	"github.com/iti/wlansweep/wifi"
	"gopkg.in/yaml.v3"
)

// GoodputMetric selects what the goodput of a run is computed from
type GoodputMetric string

const (
	// BytesMetric uses the payload bytes counted at the receiver
	BytesMetric GoodputMetric = "bytes"

	// PacketsMetric multiplies the packets counted at the receiver by the payload size
	PacketsMetric GoodputMetric = "packets"
)

// CampaignCfg describes a sweep over station counts 1..Stations
type CampaignCfg struct {
	Name           string  `json:"name,omitempty" yaml:"name,omitempty"`
	ChannelWidth   int     `json:"channel_width" yaml:"channel_width"`
	Mcs            int     `json:"mcs" yaml:"mcs"`
	ShortGuard     bool    `json:"short_guard" yaml:"short_guard"`
	Stations       int     `json:"stations" yaml:"stations"`
	Distance       float64 `json:"distance" yaml:"distance"`
	SimulationTime float64 `json:"simulation_time" yaml:"simulation_time"` // seconds
	Traffic        string  `json:"traffic" yaml:"traffic"`
	Seed           int64   `json:"seed" yaml:"seed"` // 0 or less draws the seed
	Metric         string  `json:"metric,omitempty" yaml:"metric,omitempty"`
	Results        string  `json:"results,omitempty" yaml:"results,omitempty"`
	Trace          string  `json:"trace,omitempty" yaml:"trace,omitempty"`
	Pcap           string  `json:"pcap,omitempty" yaml:"pcap,omitempty"`
}

// DefaultCampaignCfg returns the configuration used when nothing is specified
func DefaultCampaignCfg() CampaignCfg {
	return CampaignCfg{
		Name:           "quick-vht-wifi",
		ChannelWidth:   20,
		Mcs:            0,
		ShortGuard:     false,
		Stations:       10,
		Distance:       1.0,
		SimulationTime: 10,
		Traffic:        string(UDP),
		Metric:         string(BytesMetric),
	}
}

// presets are named configurations of regularly repeated experiments
var presets = map[string]func() CampaignCfg{
	// a single station at MCS 0 for two seconds
	"0": func() CampaignCfg {
		cfg := DefaultCampaignCfg()
		cfg.Stations = 1
		cfg.SimulationTime = 2
		return cfg
	},
	// a single station at MCS 7
	"1": func() CampaignCfg {
		cfg := DefaultCampaignCfg()
		cfg.Stations = 1
		cfg.Mcs = 7
		return cfg
	},
}

// Preset returns the named preset configuration
func Preset(name string) (CampaignCfg, error) {
	build, present := presets[name]
	if !present {
		return CampaignCfg{}, &ConfigurationError{Param: "preset", Value: name,
			Reason: fmt.Sprintf("known presets are %v", PresetNames())}
	}
	return build(), nil
}

// PresetNames lists the preset names in order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Phy returns the PHY parameters of the campaign
func (cfg *CampaignCfg) Phy() wifi.PhyParams {
	return wifi.PhyParams{MCS: cfg.Mcs, ChannelWidth: cfg.ChannelWidth, ShortGuard: cfg.ShortGuard}
}

// Duration returns the measured period of each run
func (cfg *CampaignCfg) Duration() time.Duration {
	return time.Duration(math.Round(cfg.SimulationTime * float64(time.Second)))
}

// TrafficMode returns the parsed traffic mode
func (cfg *CampaignCfg) TrafficMode() (TrafficMode, error) {
	return ParseTrafficMode(cfg.Traffic)
}

// GoodputMetric returns the parsed metric, bytes when empty
func (cfg *CampaignCfg) GoodputMetric() (GoodputMetric, error) {
	switch GoodputMetric(cfg.Metric) {
	case "", BytesMetric:
		return BytesMetric, nil
	case PacketsMetric:
		return PacketsMetric, nil
	}
	return "", &ConfigurationError{Param: "metric", Value: cfg.Metric, Reason: "expected bytes or packets"}
}

// WriteToFile stores the CampaignCfg struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (cfg *CampaignCfg) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	switch pathExt {
	case ".yaml", ".YAML", ".yml":
		bytes, merr = yaml.Marshal(*cfg)
	case ".json", ".JSON":
		bytes, merr = json.MarshalIndent(*cfg, "", "\t")
	default:
		return fmt.Errorf("campaign file %s: extension must be .yaml, .yml or .json", filename)
	}
	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0644)
}

// ReadCampaignCfg deserializes a byte slice holding a representation of a CampaignCfg struct.
// If the input argument of dict (those bytes) is empty, the file whose name is given is read
// to acquire them.  The representation must match the campaign schema before it is decoded;
// fields it does not mention keep their default values.
// A deserialized representation is returned, or an error if one is generated
// from a file read or the deserialization.
func ReadCampaignCfg(filename string, useYAML bool, dict []byte) (*CampaignCfg, error) {
	var err error

	// if the dict slice of bytes is empty we get them from the file whose name is an argument
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	if err := validateDocument(filename, dict, useYAML); err != nil {
		return nil, err
	}

	example := DefaultCampaignCfg()
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}
	if err != nil {
		return nil, err
	}
	return &example, nil
}

// UseYAML reports whether filename names a yaml file
func UseYAML(filename string) bool {
	switch path.Ext(filename) {
	case ".yaml", ".YAML", ".yml":
		return true
	}
	return false
}
