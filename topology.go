package wlansweep

// topology.go builds the network of one simulation run: an access point at
// the origin and the requested number of stations, all attached to one
// shared channel with identical PHY attributes.

import (
	"errors"
	"fmt"

	"github.com/iti/wlansweep/wifi"
)

// Topology holds handles to everything BuildTopology created
type Topology struct {
	AP       *Node
	Stations []*Node
	Channel  *wifi.Channel
	Phy      wifi.PhyParams
}

// BuildTopology creates one access point and stations stations placed distance
// meters away from it, on a channel with the default radio attributes
func BuildTopology(sctx *SimulationContext, stations int, phy wifi.PhyParams, distance float64) (*Topology, error) {
	return BuildTopologyWithAttrs(sctx, stations, phy, distance, wifi.DefaultChannelAttrs())
}

// BuildTopologyWithAttrs is BuildTopology with explicit radio attributes
func BuildTopologyWithAttrs(sctx *SimulationContext, stations int, phy wifi.PhyParams, distance float64,
	attrs wifi.ChannelAttrs) (*Topology, error) {

	if stations < 1 {
		return nil, &ConfigurationError{Param: "stations", Value: stations, Reason: "at least one station is required"}
	}
	if !(distance > 0) {
		return nil, &ConfigurationError{Param: "distance", Value: distance, Reason: "must be positive"}
	}
	if err := checkPhy(phy); err != nil {
		return nil, err
	}

	topo := new(Topology)
	topo.Phy = phy
	topo.Channel = wifi.CreateChannel(sctx.Sched, attrs)
	topo.Stations = make([]*Node, 0, stations)

	// stations are created first so that they number ahead of the access point
	macIdx := 0
	for idx := 0; idx < stations; idx++ {
		pos := wifi.Vector{X: distance}
		sta := createNode(sctx, fmt.Sprintf("sta%d", idx), stationNode, pos)
		macIdx += 1
		dev, err := topo.Channel.Install(sta.Name, wifi.StationRole, wifi.MacFromIndex(macIdx), pos, phy, sctx.NewStream())
		if err != nil {
			return nil, err
		}
		createNetDevice(sta, dev)
		topo.Stations = append(topo.Stations, sta)
	}

	ap := createNode(sctx, "ap", accessPointNode, wifi.Vector{})
	macIdx += 1
	dev, err := topo.Channel.Install(ap.Name, wifi.AccessPointRole, wifi.MacFromIndex(macIdx), ap.Position, phy, sctx.NewStream())
	if err != nil {
		return nil, err
	}
	createNetDevice(ap, dev)
	topo.AP = ap

	sctx.Logger.Debug("topology built", "stations", stations, "mode", phy.ModeName(),
		"width", phy.ChannelWidth, "shortGuard", phy.ShortGuard, "distance", distance)
	return topo, nil
}

// checkPhy converts a rejected PHY configuration into a ConfigurationError
func checkPhy(phy wifi.PhyParams) error {
	err := phy.Validate()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, wifi.ErrChannelWidth):
		return &ConfigurationError{Param: "channelWidth", Value: phy.ChannelWidth, Reason: err.Error()}
	case errors.Is(err, wifi.ErrMcs):
		return &ConfigurationError{Param: "mcs", Value: phy.MCS, Reason: err.Error()}
	case errors.Is(err, wifi.ErrMcsWidth):
		return &ConfigurationError{Param: "mcs", Value: phy.MCS, Reason: err.Error()}
	}
	return &ConfigurationError{Param: "phy", Value: phy, Reason: err.Error()}
}

// Nodes lists the stations followed by the access point
func (topo *Topology) Nodes() []*Node {
	nodes := make([]*Node, 0, len(topo.Stations)+1)
	nodes = append(nodes, topo.Stations...)
	if topo.AP != nil {
		nodes = append(nodes, topo.AP)
	}
	return nodes
}

// Devices lists every network device, stations first
func (topo *Topology) Devices() []*NetDevice {
	devs := make([]*NetDevice, 0, len(topo.Stations)+1)
	for _, node := range topo.Nodes() {
		devs = append(devs, node.Devices...)
	}
	return devs
}

// Dispose detaches every device from the channel and drops the node graph
func (topo *Topology) Dispose() {
	if topo.Channel != nil {
		topo.Channel.Dispose()
	}
	for _, node := range topo.Nodes() {
		node.Apps = nil
		node.Devices = nil
		node.routes = nil
		node.arp = nil
	}
	topo.Stations = nil
	topo.AP = nil
	topo.Channel = nil
}
