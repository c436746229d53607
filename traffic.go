package wlansweep

// traffic.go holds the applications of a run: a UDP receiver on the access
// point and one saturating UDP sender per station.  A sender is driven by a
// self-rescheduling event that emits one datagram each time it fires.

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/iti/evt/evtm"
	"github.com/iti/wlansweep/des"
	"github.com/iti/wlansweep/wifi"
)

// TrafficMode selects the transport used by the senders
type TrafficMode string

const (
	UDP TrafficMode = "udp"
	TCP TrafficMode = "tcp"
)

// ParseTrafficMode accepts "udp" or "tcp" in any case
func ParseTrafficMode(mode string) (TrafficMode, error) {
	switch strings.ToLower(mode) {
	case "udp", "":
		return UDP, nil
	case "tcp":
		return TCP, nil
	}
	return "", &ConfigurationError{Param: "traffic", Value: mode, Reason: "expected udp or tcp"}
}

// PayloadSize is the application payload that fills a 1500 byte IP packet
func (mode TrafficMode) PayloadSize() int {
	if mode == TCP {
		return 1448
	}
	return 1472
}

const (
	// ServerPort is the port the receiver listens on
	ServerPort uint16 = 9

	// clientPort is the source port of every sender
	clientPort uint16 = 49153

	defaultInterval   = 10 * time.Microsecond
	defaultMaxPackets = 4294967295

	// senders start this long after the run begins and stop this long after the measured period
	trafficMargin = time.Second
)

// TrafficParams configure the applications installed by InstallTraffic
type TrafficParams struct {
	Mode        TrafficMode
	PayloadSize int
	Interval    time.Duration
	MaxPackets  uint32
	Port        uint16
	Duration    time.Duration // measured period
}

// DefaultTrafficParams returns the saturating load used by the sweep
func DefaultTrafficParams(mode TrafficMode, duration time.Duration) TrafficParams {
	return TrafficParams{
		Mode:        mode,
		PayloadSize: mode.PayloadSize(),
		Interval:    defaultInterval,
		MaxPackets:  defaultMaxPackets,
		Port:        ServerPort,
		Duration:    duration,
	}
}

// Traffic holds the applications installed for one run
type Traffic struct {
	Receiver *UdpReceiver
	Senders  []*UdpSender
}

// InstallTraffic puts one receiver on the access point and one sender on each station,
// targeting the access point's address.  Only UDP is generated; asking for TCP fails
// before anything is created
func InstallTraffic(sctx *SimulationContext, ap *Node, stations []*Node, addrs map[*NetDevice]netip.Addr,
	params TrafficParams) (*Traffic, error) {

	if params.Mode != UDP {
		return nil, &UnsupportedModeError{Mode: params.Mode}
	}
	if ap == nil || len(ap.Devices) == 0 {
		return nil, fmt.Errorf("access point has no network device")
	}
	apAddr, present := addrs[ap.Devices[0]]
	if !present {
		return nil, fmt.Errorf("access point %s has no address", ap.Name)
	}
	if params.PayloadSize <= 0 || params.Interval <= 0 {
		return nil, &ConfigurationError{Param: "traffic", Value: params, Reason: "payload and interval must be positive"}
	}

	trfc := new(Traffic)
	trfc.Receiver = createUdpReceiver(ap, params.Port, 0, params.Duration+trafficMargin)
	ap.addApp(trfc.Receiver)

	trfc.Senders = make([]*UdpSender, 0, len(stations))
	for _, sta := range stations {
		if len(sta.Devices) == 0 {
			return nil, fmt.Errorf("station %s has no network device", sta.Name)
		}
		staAddr, present := addrs[sta.Devices[0]]
		if !present {
			return nil, fmt.Errorf("station %s has no address", sta.Name)
		}
		sender := createUdpSender(sta, staAddr, apAddr, params, trafficMargin, params.Duration+trafficMargin)
		sta.addApp(sender)
		trfc.Senders = append(trfc.Senders, sender)
	}

	// the receiver is live from the start, senders begin after the margin
	for _, sender := range trfc.Senders {
		if _, err := sctx.Sched.Schedule(sender, nil, udpSend, des.DurationToTime(sender.start)); err != nil {
			return nil, err
		}
	}
	return trfc, nil
}

// UdpSender emits datagrams of a fixed size at a fixed interval between its start and stop times
type UdpSender struct {
	node       *Node
	src        netip.Addr
	dst        netip.Addr
	dstPort    uint16
	size       int
	interval   time.Duration
	maxPackets uint32
	start      time.Duration
	stop       time.Duration

	sent    uint32
	dropped uint64 // refused by a full MAC queue
}

// createUdpSender is a constructor
func createUdpSender(node *Node, src, dst netip.Addr, params TrafficParams, start, stop time.Duration) *UdpSender {
	us := new(UdpSender)
	us.node = node
	us.src = src
	us.dst = dst
	us.dstPort = params.Port
	us.size = params.PayloadSize
	us.interval = params.Interval
	us.maxPackets = params.MaxPackets
	us.start = start
	us.stop = stop
	return us
}

func (us *UdpSender) AppName() string {
	return us.node.Name + "/udp-client"
}

func (us *UdpSender) Node() *Node {
	return us.node
}

// Destination returns the address and port datagrams are sent to
func (us *UdpSender) Destination() (netip.Addr, uint16) {
	return us.dst, us.dstPort
}

// Interval returns the time between datagrams
func (us *UdpSender) Interval() time.Duration {
	return us.interval
}

// PacketSize returns the payload of every datagram
func (us *UdpSender) PacketSize() int {
	return us.size
}

// Window returns the start and stop times
func (us *UdpSender) Window() (time.Duration, time.Duration) {
	return us.start, us.stop
}

// Sent returns the number of datagrams emitted
func (us *UdpSender) Sent() uint32 {
	return us.sent
}

// Dropped returns the number of datagrams the MAC queue refused
func (us *UdpSender) Dropped() uint64 {
	return us.dropped
}

// udpSend emits one datagram and schedules the next
func udpSend(evtMgr *evtm.EventManager, context any, data any) any {
	us := context.(*UdpSender)
	now := des.TimeToDuration(evtMgr.CurrentTime())
	if now >= us.stop || us.sent >= us.maxPackets || us.node.Devices == nil {
		return nil
	}

	dg := &Datagram{Src: us.src, Dst: us.dst, SrcPort: clientPort, DstPort: us.dstPort,
		Payload: us.size, Seq: us.sent, SentAt: now}
	us.sent += 1
	if !us.node.send(dg) {
		us.dropped += 1
	}

	if now+us.interval < us.stop {
		sctx := us.node.sctx
		if _, err := sctx.Sched.Schedule(context, data, udpSend, des.DurationToTime(us.interval)); err != nil {
			sctx.Logger.Error("udp sender stopped", "app", us.AppName(), "sent", us.sent, "err", err)
		}
	}
	return nil
}

// ReceptionSink is notified of every datagram a receiver accepts
type ReceptionSink interface {
	OnReceive(ev ReceptionEvent)
}

// ReceptionSinkFunc adapts a function to the ReceptionSink interface
type ReceptionSinkFunc func(ev ReceptionEvent)

func (f ReceptionSinkFunc) OnReceive(ev ReceptionEvent) {
	f(ev)
}

// UdpReceiver accepts datagrams on one port while the current time lies in [start, stop)
type UdpReceiver struct {
	node  *Node
	port  uint16
	start time.Duration
	stop  time.Duration
	sinks []ReceptionSink

	received uint64
	bytes    uint64
}

// createUdpReceiver is a constructor
func createUdpReceiver(node *Node, port uint16, start, stop time.Duration) *UdpReceiver {
	ur := new(UdpReceiver)
	ur.node = node
	ur.port = port
	ur.start = start
	ur.stop = stop
	ur.sinks = make([]ReceptionSink, 0)
	return ur
}

func (ur *UdpReceiver) AppName() string {
	return ur.node.Name + "/udp-server"
}

func (ur *UdpReceiver) Node() *Node {
	return ur.node
}

// Port returns the port the receiver listens on
func (ur *UdpReceiver) Port() uint16 {
	return ur.port
}

// Window returns the start and stop times
func (ur *UdpReceiver) Window() (time.Duration, time.Duration) {
	return ur.start, ur.stop
}

// Subscribe adds a sink to be notified of every accepted datagram, in subscription order
func (ur *UdpReceiver) Subscribe(sink ReceptionSink) {
	ur.sinks = append(ur.sinks, sink)
}

// Received returns the number of datagrams accepted
func (ur *UdpReceiver) Received() uint64 {
	return ur.received
}

// ReceivedBytes returns the payload bytes accepted
func (ur *UdpReceiver) ReceivedBytes() uint64 {
	return ur.bytes
}

// handleDatagram is called by the node for datagrams addressed to the receiver's port
func (ur *UdpReceiver) handleDatagram(sctx *SimulationContext, dg *Datagram, from wifi.MacAddr) {
	now := sctx.Sched.Now()
	if now < ur.start || now >= ur.stop {
		return
	}
	ur.received += 1
	ur.bytes += uint64(dg.Payload)

	ev := ReceptionEvent{
		PacketSize: dg.Payload,
		Source:     dg.Src,
		SourcePort: dg.SrcPort,
		Dest:       dg.Dst,
		DestPort:   dg.DstPort,
		Seq:        dg.Seq,
		From:       from,
		Timestamp:  sctx.Sched.CurrentTime(),
	}
	for _, sink := range ur.sinks {
		sink.OnReceive(ev)
	}
}

// stopAll keeps every application from acting on events still queued
func (trfc *Traffic) stopAll() {
	for _, us := range trfc.Senders {
		us.stop = 0
	}
	trfc.Receiver.stop = 0
	trfc.Receiver.sinks = nil
}
