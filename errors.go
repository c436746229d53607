package wlansweep

import (
	"fmt"
	"net/netip"
)

// ConfigurationError reports a campaign or run parameter that cannot be simulated
type ConfigurationError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s=%v: %s", e.Param, e.Value, e.Reason)
}

// AddressSpaceExhaustedError is returned when a prefix has fewer host addresses than devices to number
type AddressSpaceExhaustedError struct {
	Prefix    netip.Prefix
	Requested int
	Available int
}

func (e *AddressSpaceExhaustedError) Error() string {
	return fmt.Sprintf("address space %s exhausted: %d devices, %d host addresses", e.Prefix, e.Requested, e.Available)
}

// UnsupportedModeError is returned for traffic modes the harness does not generate
type UnsupportedModeError struct {
	Mode TrafficMode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("traffic mode %q is not implemented", string(e.Mode))
}
