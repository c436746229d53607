package wlansweep

import (
	"errors"
	"net/netip"
	"testing"
)

func TestAssignAddressesSequential(t *testing.T) {
	topo, err := BuildTopology(testContext(1), 4, testPhy, 1)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	addrs, err := AssignAddresses(DefaultPrefix, topo.Devices())
	if err != nil {
		t.Fatalf("AssignAddresses: %v", err)
	}
	want := []string{"192.168.1.1", "192.168.1.2", "192.168.1.3", "192.168.1.4", "192.168.1.5"}
	for idx, ndev := range topo.Devices() {
		if got := addrs[ndev].String(); got != want[idx] {
			t.Errorf("device %d: %s, want %s", idx, got, want[idx])
		}
		if ndev.Addr() != addrs[ndev] {
			t.Errorf("device %d records %s", idx, ndev.Addr())
		}
	}
	if topo.AP.Addr().String() != "192.168.1.5" {
		t.Errorf("access point numbered %s", topo.AP.Addr())
	}

	// the mapping is injective
	seen := map[netip.Addr]bool{}
	for _, addr := range addrs {
		if seen[addr] {
			t.Fatalf("%s assigned twice", addr)
		}
		seen[addr] = true
	}
}

func TestAssignAddressesExhausted(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		stations int
		avail    int
	}{
		{"slash 29", "10.0.0.0/29", 6, 6},
		{"slash 30", "10.0.0.4/30", 2, 2},
		{"slash 24", "192.168.1.0/24", 254, 254},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			topo, err := BuildTopology(testContext(1), test.stations, testPhy, 1)
			if err != nil {
				t.Fatalf("BuildTopology: %v", err)
			}
			_, err = AssignAddresses(netip.MustParsePrefix(test.prefix), topo.Devices())
			var aerr *AddressSpaceExhaustedError
			if !errors.As(err, &aerr) {
				t.Fatalf("expected AddressSpaceExhaustedError, got %v", err)
			}
			if aerr.Requested != test.stations+1 || aerr.Available != test.avail {
				t.Errorf("requested %d available %d", aerr.Requested, aerr.Available)
			}
		})
	}
}

func TestAssignAddressesFits(t *testing.T) {
	// 253 stations plus the access point use the whole /24
	topo, err := BuildTopology(testContext(1), 253, testPhy, 1)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	addrs, err := AssignAddresses(DefaultPrefix, topo.Devices())
	if err != nil {
		t.Fatalf("AssignAddresses: %v", err)
	}
	if got := addrs[topo.AP.Devices[0]].String(); got != "192.168.1.254" {
		t.Errorf("last address %s", got)
	}
}

func TestAssignAddressesRejectsIPv6(t *testing.T) {
	topo, err := BuildTopology(testContext(1), 1, testPhy, 1)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	_, err = AssignAddresses(netip.MustParsePrefix("fd00::/64"), topo.Devices())
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestPopulateRoutingTables(t *testing.T) {
	topo, _ := testNetwork(t, testContext(1), 3)
	apAddr := topo.AP.Addr()
	for _, sta := range topo.Stations {
		hop, present := sta.NextHop(apAddr)
		if !present || hop != apAddr {
			t.Errorf("%s reaches the access point through %v", sta, hop)
		}
		back, present := topo.AP.NextHop(sta.Addr())
		if !present || back != sta.Addr() {
			t.Errorf("access point reaches %s through %v", sta, back)
		}
	}
	if _, present := topo.Stations[0].NextHop(netip.MustParseAddr("10.9.9.9")); present {
		t.Error("route to an unknown address")
	}
}
