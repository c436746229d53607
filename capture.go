package wlansweep

// capture.go writes the datagrams accepted by the receiver to a pcap file.
// Frames are rebuilt as Ethernet/IPv4/UDP from the reception events and
// truncated to the snapshot length, so that a capture of a saturated run
// stays small.  Events are buffered while the scheduler runs; Flush writes
// them once the run is over.

import (
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const defaultSnapLen = 128

// captured is a buffered reception, stamped with the run it belongs to
type captured struct {
	run   int
	ev    ReceptionEvent
	apMac net.HardwareAddr
}

// PcapCapture records receptions at the access point
type PcapCapture struct {
	file    *os.File
	writer  *pcapgo.Writer
	snapLen uint32
	epoch   time.Time // wall-clock time written for virtual time zero
	pending []captured
	written uint64
	payload []byte
}

// CreatePcapCapture creates filename and writes the pcap file header
func CreatePcapCapture(filename string) (*PcapCapture, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	pc := new(PcapCapture)
	pc.file = f
	pc.writer = pcapgo.NewWriter(f)
	pc.snapLen = defaultSnapLen
	pc.epoch = time.Unix(0, 0).UTC()
	if err := pc.writer.WriteFileHeader(pc.snapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, err
	}
	return pc, nil
}

// Sink returns a ReceptionSink buffering the receptions of run, made at the device with address apMac
func (pc *PcapCapture) Sink(run int, apMac net.HardwareAddr) ReceptionSink {
	return ReceptionSinkFunc(func(ev ReceptionEvent) {
		pc.pending = append(pc.pending, captured{run: run, ev: ev, apMac: apMac})
	})
}

// Pending returns the number of buffered receptions
func (pc *PcapCapture) Pending() int {
	return len(pc.pending)
}

// Written returns the number of frames written so far
func (pc *PcapCapture) Written() uint64 {
	return pc.written
}

// Flush serializes and writes every buffered reception.  Runs follow one another
// in the file, each offset by an hour so that their timestamps do not overlap
func (pc *PcapCapture) Flush() error {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	for _, rec := range pc.pending {
		ev := rec.ev
		if cap(pc.payload) < ev.PacketSize {
			pc.payload = make([]byte, ev.PacketSize)
		}
		payload := pc.payload[:ev.PacketSize]

		eth := layers.Ethernet{
			SrcMAC:       ev.From.HardwareAddr(),
			DstMAC:       rec.apMac,
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IP(ev.Source.AsSlice()),
			DstIP:    net.IP(ev.Dest.AsSlice()),
		}
		udp := layers.UDP{
			SrcPort: layers.UDPPort(ev.SourcePort),
			DstPort: layers.UDPPort(ev.DestPort),
		}
		if err := udp.SetNetworkLayerForChecksum(&ip); err != nil {
			return err
		}
		if err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp, gopacket.Payload(payload)); err != nil {
			return err
		}

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{
			Timestamp:     pc.epoch.Add(time.Duration(rec.run)*time.Hour + time.Duration(ev.Timestamp.Seconds()*1e9)),
			Length:        len(data),
			CaptureLength: min(len(data), int(pc.snapLen)),
		}
		if err := pc.writer.WritePacket(ci, data[:ci.CaptureLength]); err != nil {
			return err
		}
		pc.written += 1
	}
	pc.pending = pc.pending[:0]
	return nil
}

// Close flushes what is buffered and closes the file
func (pc *PcapCapture) Close() error {
	ferr := pc.Flush()
	cerr := pc.file.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}
