package wlansweep

import (
	"net/netip"
)

// DefaultPrefix is the block addresses are drawn from
var DefaultPrefix = netip.MustParsePrefix("192.168.1.0/24")

// usableHosts is the number of assignable host addresses in an IPv4 prefix.
// The network and broadcast addresses are excluded except on /31 and /32
func usableHosts(prefix netip.Prefix) int {
	hostBits := 32 - prefix.Bits()
	if hostBits <= 1 {
		return 1 << hostBits
	}
	return 1<<hostBits - 2
}

// AssignAddresses numbers the devices sequentially from the first host address
// of prefix, in the order given.  The mapping is also recorded on each device
func AssignAddresses(prefix netip.Prefix, devices []*NetDevice) (map[*NetDevice]netip.Addr, error) {
	if !prefix.IsValid() || !prefix.Addr().Is4() {
		return nil, &ConfigurationError{Param: "prefix", Value: prefix, Reason: "an IPv4 prefix is required"}
	}
	prefix = prefix.Masked()

	avail := usableHosts(prefix)
	if len(devices) > avail {
		return nil, &AddressSpaceExhaustedError{Prefix: prefix, Requested: len(devices), Available: avail}
	}

	addrs := make(map[*NetDevice]netip.Addr, len(devices))
	addr := prefix.Addr()
	if prefix.Bits() < 31 {
		addr = addr.Next()
	}
	for _, ndev := range devices {
		ndev.addr = addr
		ndev.prefix = prefix
		addrs[ndev] = addr
		addr = addr.Next()
	}
	return addrs, nil
}
