package wlansweep

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/iti/evt/vrtime"
	"gopkg.in/yaml.v3"
)

type TraceInst struct {
	TraceTime string `json:"tracetime" yaml:"tracetime"`
	TraceType string `json:"tracetype" yaml:"tracetype"`
	TraceStr  string `json:"tracestr" yaml:"tracestr"`
}

// NameType labels a node id appearing in a run's trace
type NameType struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// TraceManager gathers the receptions of every run of a campaign.  Records are
// kept in memory while the scheduler runs and written out once the campaign ends
type TraceManager struct {
	InUse   bool   `json:"inuse" yaml:"inuse"`
	ExpName string `json:"expname" yaml:"expname"` // campaign name

	// text name associated with each objID, per run
	NameByID map[int]map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records, indexed by the station count of the run that produced them
	Traces map[int][]TraceInst `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  An inactive manager accepts every call
// and records nothing
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]map[int]NameType)
	tm.Traces = make(map[int][]TraceInst)
	return tm
}

// Active is false for a nil or disabled manager
func (tm *TraceManager) Active() bool {
	return tm != nil && tm.InUse
}

// AddTrace stores a trace record for run
func (tm *TraceManager) AddTrace(run int, trace TraceInst) {
	if !tm.Active() {
		return
	}
	tm.Traces[run] = append(tm.Traces[run], trace)
}

// AddName is used to add an element to the id -> (name,type) dictionary of a run
func (tm *TraceManager) AddName(run, id int, name string, objDesc string) error {
	if !tm.Active() {
		return nil
	}
	names, present := tm.NameByID[run]
	if !present {
		names = make(map[int]NameType)
		tm.NameByID[run] = names
	}
	if _, present := names[id]; present {
		return fmt.Errorf("duplicated id %d in trace names of run %d", id, run)
	}
	names[id] = NameType{Name: name, Type: objDesc}
	return nil
}

// RecordNodes enters the nodes of a topology into the name dictionary of run
func (tm *TraceManager) RecordNodes(run int, topo *Topology) error {
	for _, node := range topo.Nodes() {
		if err := tm.AddName(run, node.ID, node.Name, node.Kind()); err != nil {
			return err
		}
	}
	return nil
}

// WriteToFile stores the TraceManager struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
// Nothing is written if the manager is inactive
func (tm *TraceManager) WriteToFile(filename string) error {
	if !tm.Active() {
		return nil
	}
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	switch pathExt {
	case ".yaml", ".YAML", ".yml":
		bytes, merr = yaml.Marshal(*tm)
	case ".json", ".JSON":
		bytes, merr = json.MarshalIndent(*tm, "", "\t")
	default:
		return fmt.Errorf("trace file %s: extension must be .yaml, .yml or .json", filename)
	}
	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0644)
}

// ReadTraceManager deserializes a trace file written by WriteToFile
func ReadTraceManager(filename string, useYAML bool, dict []byte) (*TraceManager, error) {
	var err error
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}
	tm := CreateTraceManager("", false)
	if useYAML {
		err = yaml.Unmarshal(dict, tm)
	} else {
		err = json.Unmarshal(dict, tm)
	}
	if err != nil {
		return nil, err
	}
	return tm, nil
}

// RxTrace saves information about a datagram accepted by the receiver
type RxTrace struct {
	Time     float64 `yaml:"time"`     // time in float64
	Ticks    int64   `yaml:"ticks"`    // ticks variable of time
	Priority int64   `yaml:"priority"` // priority field of time-stamp
	Source   string  `yaml:"source"`
	Port     uint16  `yaml:"port"`
	Seq      uint32  `yaml:"seq"`
	Bytes    int     `yaml:"bytes"`
}

func (rxt *RxTrace) Serialize() string {
	bytes, merr := yaml.Marshal(*rxt)
	if merr != nil {
		return ""
	}
	return string(bytes[:])
}

// AddRxTrace creates a record of a reception and stores it
func AddRxTrace(tm *TraceManager, run int, ev ReceptionEvent) {
	if !tm.Active() {
		return
	}
	vrt := ev.Timestamp
	rxt := RxTrace{Time: vrt.Seconds(), Ticks: vrt.Ticks(), Priority: vrt.Pri(),
		Source: ev.Source.String(), Port: ev.SourcePort, Seq: ev.Seq, Bytes: ev.PacketSize}

	traceTime := strconv.FormatFloat(vrt.Seconds(), 'f', -1, 64)
	tm.AddTrace(run, TraceInst{TraceTime: traceTime, TraceType: "rx", TraceStr: rxt.Serialize()})
}

// Sink returns a ReceptionSink recording into run
func (tm *TraceManager) Sink(run int) ReceptionSink {
	return ReceptionSinkFunc(func(ev ReceptionEvent) {
		AddRxTrace(tm, run, ev)
	})
}

// Time rebuilds the virtual time of a trace record
func (ti TraceInst) Time() (vrtime.Time, error) {
	secs, err := strconv.ParseFloat(ti.TraceTime, 64)
	if err != nil {
		return vrtime.SecondsToTime(0), err
	}
	return vrtime.SecondsToTime(secs), nil
}
