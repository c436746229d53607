package wlansweep

// validate.go checks campaign descriptions.  A document read from a file is
// first matched against a closed CUE definition, so unknown keys and mistyped
// values are refused before anything is decoded.  A decoded CampaignCfg gets
// Go checks on every parameter, then the CUE constraints the Go checks leave
// out, such as the extension of the trace file.

import (
	"errors"
	"fmt"
	"math"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// maxSimulationTime is the longest measured period, in seconds, for which a
// run and its traffic margins still fit a time.Duration
const maxSimulationTime = float64(math.MaxInt64/int64(time.Second)) - 2*float64(trafficMargin/time.Second)

// campaignSchema constrains campaign descriptions.  #Document applies to a file,
// which may leave fields at their defaults, #Campaign to a complete CampaignCfg
const campaignSchema = `
#Document: {
	name?:            string
	channel_width?:   20 | 40 | 80 | 160
	mcs?:             int & >=0 & <=9
	short_guard?:     bool
	stations?:        int & >=1
	distance?:        number & >0
	simulation_time?: number & >0 & <=9223372034
	traffic?:         =~"^(?i)(udp|tcp)?$"
	seed?:            int
	metric?:          "" | "bytes" | "packets"
	results?:         string
	trace?:           "" | =~"\\.(yaml|YAML|yml|json|JSON)$"
	pcap?:            string
}

#Campaign: #Document & {
	channel_width:   _
	mcs:             _
	short_guard:     _
	stations:        _
	distance:        _
	simulation_time: _
	seed:            _
}
`

// ValidateCampaignCfg checks every parameter of cfg.  All problems found are
// reported together, each as a *ConfigurationError
func ValidateCampaignCfg(cfg *CampaignCfg) error {
	errs := make([]error, 0)

	if cfg.Stations < 1 {
		errs = append(errs, &ConfigurationError{Param: "stations", Value: cfg.Stations, Reason: "at least one station is required"})
	}
	if math.IsInf(cfg.Distance, 0) || !(cfg.Distance > 0) {
		errs = append(errs, &ConfigurationError{Param: "distance", Value: cfg.Distance, Reason: "must be positive and finite"})
	}
	switch {
	case math.IsInf(cfg.SimulationTime, 0) || !(cfg.SimulationTime > 0):
		errs = append(errs, &ConfigurationError{Param: "simulationTime", Value: cfg.SimulationTime, Reason: "must be positive and finite"})
	case cfg.SimulationTime > maxSimulationTime:
		errs = append(errs, &ConfigurationError{Param: "simulationTime", Value: cfg.SimulationTime,
			Reason: fmt.Sprintf("must not exceed %.0f seconds", maxSimulationTime)})
	}
	if err := checkPhy(cfg.Phy()); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.TrafficMode(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.GoodputMetric(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return validateWithCue(cfg)
}

// schemaDefinition compiles the campaign schema and returns the named definition
func schemaDefinition(ctx *cue.Context, name string) (cue.Value, error) {
	schemaVal := ctx.CompileString(campaignSchema)
	if schemaVal.Err() != nil {
		return cue.Value{}, schemaVal.Err()
	}
	def := schemaVal.LookupPath(cue.ParsePath(name))
	return def, def.Err()
}

// validateWithCue unifies the encoded configuration with the campaign schema
func validateWithCue(cfg *CampaignCfg) error {
	ctx := cuecontext.New()
	def, err := schemaDefinition(ctx, "#Campaign")
	if err != nil {
		return err
	}

	configVal := ctx.Encode(*cfg)
	if configVal.Err() != nil {
		return &ConfigurationError{Param: "config", Value: cfg.Name, Reason: configVal.Err().Error()}
	}

	// Merge values with schema
	final := def.Unify(configVal)
	if final.Err() != nil {
		return &ConfigurationError{Param: "config", Value: cfg.Name, Reason: "schema unify failed: " + final.Err().Error()}
	}
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return &ConfigurationError{Param: "config", Value: cfg.Name, Reason: "schema validation failed: " + err.Error()}
	}
	return nil
}

// validateDocument matches a yaml or json campaign document against the schema
// before it is decoded.  filename only labels positions in error messages
func validateDocument(filename string, dict []byte, useYAML bool) error {
	ctx := cuecontext.New()
	def, err := schemaDefinition(ctx, "#Document")
	if err != nil {
		return err
	}

	var docVal cue.Value
	if useYAML {
		file, err := cueyaml.Extract(filename, dict)
		if err != nil {
			return &ConfigurationError{Param: "config", Value: filename, Reason: err.Error()}
		}
		docVal = ctx.BuildFile(file)
	} else {
		expr, err := cuejson.Extract(filename, dict)
		if err != nil {
			return &ConfigurationError{Param: "config", Value: filename, Reason: err.Error()}
		}
		docVal = ctx.BuildExpr(expr)
	}
	if docVal.Err() != nil {
		return &ConfigurationError{Param: "config", Value: filename, Reason: docVal.Err().Error()}
	}

	final := def.Unify(docVal)
	if final.Err() != nil {
		return &ConfigurationError{Param: "config", Value: filename, Reason: "schema unify failed: " + final.Err().Error()}
	}
	if err := final.Validate(); err != nil {
		return &ConfigurationError{Param: "config", Value: filename, Reason: "schema validation failed: " + err.Error()}
	}
	return nil
}
