package wlansweep

import (
	"net/netip"

	"github.com/iti/evt/vrtime"
	"github.com/iti/wlansweep/wifi"
)

// ReceptionEvent describes one datagram accepted by a receiver
type ReceptionEvent struct {
	PacketSize int // payload bytes
	Source     netip.Addr
	SourcePort uint16
	Dest       netip.Addr
	DestPort   uint16
	Seq        uint32
	From       wifi.MacAddr // transmitter of the last hop
	Timestamp  vrtime.Time
}

// CounterSnapshot is a copy of a ReceptionCounter's state
type CounterSnapshot struct {
	Bytes    float64
	Packets  uint64
	Dropped  uint64                 // events lost to a fault in the counter
	BySource map[netip.Addr]float64 // bytes per source address
}

// ReceptionCounter accumulates received bytes and packets.  One is
// created for each run and subscribed to the run's receiver
type ReceptionCounter struct {
	bytes    float64
	packets  uint64
	dropped  uint64
	bySource map[netip.Addr]float64
}

// NewReceptionCounter is a constructor
func NewReceptionCounter() *ReceptionCounter {
	rc := new(ReceptionCounter)
	rc.bySource = make(map[netip.Addr]float64)
	return rc
}

// OnReceive tallies one reception.  It never panics; an event that cannot be
// counted is dropped and the drop is recorded
func (rc *ReceptionCounter) OnReceive(ev ReceptionEvent) {
	if ev.PacketSize < 0 {
		rc.dropped += 1
		return
	}
	defer func() {
		if r := recover(); r != nil {
			rc.dropped += 1
		}
	}()
	if rc.bySource == nil {
		rc.bySource = make(map[netip.Addr]float64)
	}
	rc.bySource[ev.Source] += float64(ev.PacketSize)
	rc.bytes += float64(ev.PacketSize)
	rc.packets += 1
}

// Read returns a snapshot of the counter
func (rc *ReceptionCounter) Read() CounterSnapshot {
	snap := CounterSnapshot{Bytes: rc.bytes, Packets: rc.packets, Dropped: rc.dropped}
	snap.BySource = make(map[netip.Addr]float64, len(rc.bySource))
	for addr, bytes := range rc.bySource {
		snap.BySource[addr] = bytes
	}
	return snap
}

// Reset zeroes the counter in place
func (rc *ReceptionCounter) Reset() {
	rc.bytes = 0
	rc.packets = 0
	rc.dropped = 0
	rc.bySource = make(map[netip.Addr]float64)
}
