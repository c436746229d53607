package wlansweep

import (
	"math"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iti/evt/vrtime"
)

func TestTraceManagerInactive(t *testing.T) {
	var nilTm *TraceManager
	if nilTm.Active() {
		t.Fatal("nil manager active")
	}
	tm := CreateTraceManager("off", false)
	AddRxTrace(tm, 1, ReceptionEvent{PacketSize: 10})
	if len(tm.Traces) != 0 {
		t.Error("inactive manager recorded a trace")
	}
	filename := filepath.Join(t.TempDir(), "trace.yaml")
	if err := tm.WriteToFile(filename); err != nil {
		t.Errorf("WriteToFile: %v", err)
	}
}

func TestTraceManagerRoundTrip(t *testing.T) {
	tm := CreateTraceManager("sweep", true)
	if err := tm.AddName(1, 1, "sta0", "station"); err != nil {
		t.Fatalf("AddName: %v", err)
	}
	if err := tm.AddName(1, 1, "ap", "access-point"); err == nil {
		t.Error("duplicate id accepted")
	}
	ev := ReceptionEvent{
		PacketSize: 1472,
		Source:     netip.MustParseAddr("192.168.1.1"),
		SourcePort: 49153,
		Seq:        12,
		Timestamp:  vrtime.SecondsToTime(1.5),
	}
	sink := tm.Sink(1)
	sink.OnReceive(ev)
	sink.OnReceive(ev)
	AddRxTrace(tm, 2, ev)

	for _, name := range []string{"trace.yaml", "trace.json"} {
		t.Run(name, func(t *testing.T) {
			filename := filepath.Join(t.TempDir(), name)
			if err := tm.WriteToFile(filename); err != nil {
				t.Fatalf("WriteToFile: %v", err)
			}
			read, err := ReadTraceManager(filename, UseYAML(filename), nil)
			if err != nil {
				t.Fatalf("ReadTraceManager: %v", err)
			}
			if read.ExpName != "sweep" || !read.InUse {
				t.Errorf("header %q %v", read.ExpName, read.InUse)
			}
			if len(read.Traces[1]) != 2 || len(read.Traces[2]) != 1 {
				t.Fatalf("traces %v", read.Traces)
			}
			if read.NameByID[1][1].Name != "sta0" {
				t.Errorf("names %v", read.NameByID)
			}
			rec := read.Traces[1][0]
			if rec.TraceType != "rx" || !strings.Contains(rec.TraceStr, "192.168.1.1") {
				t.Errorf("record %+v", rec)
			}
			at, err := rec.Time()
			if err != nil || math.Abs(at.Seconds()-1.5) > 1e-6 {
				t.Errorf("record time %v, %v", at.Seconds(), err)
			}
		})
	}
}
