package wlansweep

// routes.go computes the forwarding tables of a simulation run.
//
// The nodes of the run are converted into the data structures used by the
// gonum graph package, which has built-in path discovery.  Two nodes are
// joined by an edge of weight 1 when they have devices on the same subnet, so
// a shortest path minimizes the number of hops.  The Dijkstra algorithm we
// call computes a tree of shortest paths from a named node; the route from src
// to dst is read from a cached tree rooted in src or, failing that, as the
// reversal of the path in a cached tree rooted in dst.

import (
	"fmt"
	"math"
	"net/netip"
	"strings"

	"github.com/iti/wlansweep/wifi"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// routePlanner holds the graph form of one run's nodes and the shortest path trees computed on it
type routePlanner struct {
	nodes    []*Node
	byID     map[int64]*Node
	gNodes   map[int64]simple.Node
	conn     graph.Graph
	cachedSP map[int64]path.Shortest
}

// createRoutePlanner builds the connection graph of nodes
func createRoutePlanner(nodes []*Node) *routePlanner {
	rp := new(routePlanner)
	rp.nodes = nodes
	rp.byID = make(map[int64]*Node)
	rp.gNodes = make(map[int64]simple.Node)
	rp.cachedSP = make(map[int64]path.Shortest)

	connGraph := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, node := range nodes {
		id := int64(node.ID)
		rp.byID[id] = node
		rp.gNodes[id] = simple.Node(id)
		connGraph.AddNode(rp.gNodes[id])
	}

	// represent every shared subnet as edges of weight 1
	for idx, nodeA := range nodes {
		for _, nodeB := range nodes[idx+1:] {
			if _, _, shared := sharedSubnet(nodeA, nodeB); !shared {
				continue
			}
			weightedEdge := simple.WeightedEdge{F: rp.gNodes[int64(nodeA.ID)], T: rp.gNodes[int64(nodeB.ID)], W: 1.0}
			connGraph.SetWeightedEdge(weightedEdge)
		}
	}
	rp.conn = connGraph
	return rp
}

// sharedSubnet returns the devices through which nodeA and nodeB reach each other directly
func sharedSubnet(nodeA, nodeB *Node) (*NetDevice, *NetDevice, bool) {
	for _, devA := range nodeA.Devices {
		if !devA.prefix.IsValid() {
			continue
		}
		for _, devB := range nodeB.Devices {
			if devB.prefix == devA.prefix {
				return devA, devB, true
			}
		}
	}
	return nil, nil, false
}

// getSPTree returns the shortest path tree rooted in from, computing and caching it if needed
func (rp *routePlanner) getSPTree(from int64) path.Shortest {
	spTree, present := rp.cachedSP[from]
	if present {
		return spTree
	}
	spTree = path.DijkstraFrom(rp.gNodes[from], rp.conn)
	rp.cachedSP[from] = spTree
	return spTree
}

// convertNodeSeq extracts the node ids from a sequence of graph nodes
func convertNodeSeq(nsQ []graph.Node) []int64 {
	rtn := make([]int64, 0, len(nsQ))
	for _, node := range nsQ {
		rtn = append(rtn, node.ID())
	}
	return rtn
}

// routeFrom returns the shortest path from srcID to dstID as a sequence of node ids, ends included.
// The result is empty when dstID cannot be reached
func (rp *routePlanner) routeFrom(srcID, dstID int64) []int64 {
	// if we have already an spTree rooted in srcID we can use it
	if spTree, present := rp.cachedSP[srcID]; present {
		nodeSeq, _ := spTree.To(dstID)
		return convertNodeSeq(nodeSeq)
	}

	// by symmetry a tree rooted in the destination holds the reversed path
	if spTree, present := rp.cachedSP[dstID]; present {
		revNodeSeq, _ := spTree.To(srcID)
		route := convertNodeSeq(revNodeSeq)
		slices.Reverse(route)
		return route
	}

	nodeSeq, _ := rp.getSPTree(srcID).To(dstID)
	return convertNodeSeq(nodeSeq)
}

// showPath lists the names of the nodes on the route from src to dst
func (rp *routePlanner) showPath(src, dst *Node) string {
	route := rp.routeFrom(int64(src.ID), int64(dst.ID))
	names := make([]string, 0, len(route))
	for _, id := range route {
		names = append(names, rp.byID[id].Name)
	}
	return strings.Join(names, ",")
}

// PopulateRoutingTables fills in the forwarding state of every node so that each
// node reaches every address carried by the others.  Addresses must have been assigned
func PopulateRoutingTables(nodes []*Node) error {
	rp := createRoutePlanner(nodes)

	for _, src := range nodes {
		src.routes = make(map[netip.Addr]netip.Addr)
		src.arp = make(map[netip.Addr]wifi.MacAddr)
		for _, dst := range nodes {
			if dst == src {
				continue
			}
			route := rp.routeFrom(int64(src.ID), int64(dst.ID))
			if len(route) < 2 {
				return fmt.Errorf("no route from %s to %s", src.Name, dst.Name)
			}
			hop := rp.byID[route[1]]
			_, hopDev, _ := sharedSubnet(src, hop)

			for _, dstDev := range dst.Devices {
				src.routes[dstDev.addr] = hopDev.addr
			}
			src.arp[hopDev.addr] = hopDev.Mac()

			if src.sctx != nil && len(route) > 2 {
				src.sctx.Logger.Debug("multi-hop route", "path", rp.showPath(src, dst))
			}
		}
	}
	return nil
}
