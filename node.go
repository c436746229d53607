package wlansweep

// node.go contains the network-layer view of a simulation run: nodes,
// the network devices they own, the datagrams passed between them, and the
// forwarding step that hands a datagram to the wireless MAC.

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/iti/wlansweep/wifi"
)

type nodeKind int

const (
	accessPointNode nodeKind = iota
	stationNode
)

func nodeKindToStr(kind nodeKind) string {
	switch kind {
	case accessPointNode:
		return "AccessPoint"
	case stationNode:
		return "Station"
	}
	return "unknown"
}

const (
	ipv4HeaderBytes = 20
	udpHeaderBytes  = 8
)

// Datagram is a UDP/IPv4 packet in flight between applications
type Datagram struct {
	Src     netip.Addr
	Dst     netip.Addr
	SrcPort uint16
	DstPort uint16
	Payload int    // application bytes
	Seq     uint32 // sender's sequence number
	SentAt  time.Duration
}

// WireSize is the size of the IP datagram handed to the MAC
func (dg *Datagram) WireSize() int {
	return dg.Payload + udpHeaderBytes + ipv4HeaderBytes
}

// Application is anything installed on a node that takes part in the run
type Application interface {
	AppName() string
	Node() *Node
}

// datagramHandler is implemented by applications bound to a port
type datagramHandler interface {
	Port() uint16
	handleDatagram(sctx *SimulationContext, dg *Datagram, from wifi.MacAddr)
}

// Node is the access point or one of the stations
type Node struct {
	ID       int
	Name     string
	kind     nodeKind
	Position wifi.Vector
	Devices  []*NetDevice
	Apps     []Application

	sctx *SimulationContext

	// routes maps destination address to next hop address, arp the next hop to its MAC
	routes map[netip.Addr]netip.Addr
	arp    map[netip.Addr]wifi.MacAddr

	// datagrams the node could not forward or deliver
	unroutable uint64
	noListener uint64
}

// createNode is a constructor
func createNode(sctx *SimulationContext, name string, kind nodeKind, pos wifi.Vector) *Node {
	node := new(Node)
	node.ID = sctx.NxtID()
	node.Name = name
	node.kind = kind
	node.Position = pos
	node.Devices = make([]*NetDevice, 0, 1)
	node.Apps = make([]Application, 0, 1)
	node.sctx = sctx
	node.routes = make(map[netip.Addr]netip.Addr)
	node.arp = make(map[netip.Addr]wifi.MacAddr)
	return node
}

// IsAccessPoint is true for the node hosting the receiver
func (node *Node) IsAccessPoint() bool {
	return node.kind == accessPointNode
}

// Kind names the role of the node, "AccessPoint" or "Station"
func (node *Node) Kind() string {
	return nodeKindToStr(node.kind)
}

func (node *Node) String() string {
	return fmt.Sprintf("%s(%s)", node.Name, node.Kind())
}

// Unroutable counts datagrams dropped for lack of a route or a neighbor
func (node *Node) Unroutable() uint64 {
	return node.unroutable
}

// NoListener counts datagrams delivered to a port nobody was bound to
func (node *Node) NoListener() uint64 {
	return node.noListener
}

func (node *Node) addApp(app Application) {
	node.Apps = append(node.Apps, app)
}

// Addr returns the address of the node's first device
func (node *Node) Addr() netip.Addr {
	if len(node.Devices) == 0 {
		return netip.Addr{}
	}
	return node.Devices[0].addr
}

// ownsAddr is true when one of the node's devices carries addr
func (node *Node) ownsAddr(addr netip.Addr) bool {
	for _, ndev := range node.Devices {
		if ndev.addr == addr {
			return true
		}
	}
	return false
}

// NextHop returns the forwarding entry for dst
func (node *Node) NextHop(dst netip.Addr) (netip.Addr, bool) {
	hop, present := node.routes[dst]
	return hop, present
}

// send forwards a datagram towards its destination.  False means it was dropped
func (node *Node) send(dg *Datagram) bool {
	hop, present := node.routes[dg.Dst]
	if !present {
		node.unroutable += 1
		return false
	}
	mac, present := node.arp[hop]
	if !present {
		node.unroutable += 1
		return false
	}
	ndev := node.deviceTowards(hop)
	if ndev == nil {
		node.unroutable += 1
		return false
	}
	return ndev.dev.Enqueue(&wifi.Msdu{Packet: dg, Size: dg.WireSize(), To: mac})
}

// deviceTowards picks the device on the same subnet as the next hop
func (node *Node) deviceTowards(hop netip.Addr) *NetDevice {
	for _, ndev := range node.Devices {
		if ndev.prefix.IsValid() && ndev.prefix.Contains(hop) {
			return ndev
		}
	}
	if len(node.Devices) > 0 {
		return node.Devices[0]
	}
	return nil
}

// receive is called by a device for every MSDU it accepts.  Datagrams for the
// node go up to the application bound to the destination port, others are forwarded
func (node *Node) receive(dg *Datagram, from wifi.MacAddr) {
	if !node.ownsAddr(dg.Dst) {
		node.send(dg)
		return
	}
	for _, app := range node.Apps {
		if hdlr, ok := app.(datagramHandler); ok && hdlr.Port() == dg.DstPort {
			hdlr.handleDatagram(node.sctx, dg, from)
			return
		}
	}
	node.noListener += 1
}

// NetDevice is the network-layer face of a wireless interface
type NetDevice struct {
	node     *Node
	dev      *wifi.Device
	addr     netip.Addr
	prefix   netip.Prefix
	RateMode string // constant rate control mode, e.g. "VhtMcs7"
}

// createNetDevice wraps a wireless device and hooks its receive path to the node
func createNetDevice(node *Node, dev *wifi.Device) *NetDevice {
	ndev := new(NetDevice)
	ndev.node = node
	ndev.dev = dev
	ndev.RateMode = dev.Phy().ModeName()
	dev.SetReceiveCallback(func(msdu *wifi.Msdu, from wifi.MacAddr) {
		dg, ok := msdu.Packet.(*Datagram)
		if !ok {
			return
		}
		node.receive(dg, from)
	})
	node.Devices = append(node.Devices, ndev)
	return ndev
}

// Node returns the node owning the device
func (ndev *NetDevice) Node() *Node {
	return ndev.node
}

// Wifi returns the wireless interface
func (ndev *NetDevice) Wifi() *wifi.Device {
	return ndev.dev
}

// Addr returns the assigned IPv4 address, invalid until AssignAddresses
func (ndev *NetDevice) Addr() netip.Addr {
	return ndev.addr
}

// Mac returns the hardware address of the interface
func (ndev *NetDevice) Mac() wifi.MacAddr {
	return ndev.dev.Mac()
}

// Phy returns the PHY attributes of the interface
func (ndev *NetDevice) Phy() wifi.PhyParams {
	return ndev.dev.Phy()
}

func (ndev *NetDevice) String() string {
	return fmt.Sprintf("%s/%s", ndev.node.Name, ndev.addr)
}
