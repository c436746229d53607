package wifi

// device.go holds the wireless network device: the PHY attributes and
// MAC state of one interface attached to a Channel

import (
	"fmt"
	"net"

	"golang.org/x/exp/rand"
)

// MacAddr is a 48 bit MAC address
type MacAddr [6]byte

// MacFromIndex allocates addresses the way simulators usually do, 00:00:00:00:00:01 onwards
func MacFromIndex(idx int) MacAddr {
	var mac MacAddr
	mac[2] = byte(idx >> 24)
	mac[3] = byte(idx >> 16)
	mac[4] = byte(idx >> 8)
	mac[5] = byte(idx)
	return mac
}

func (mac MacAddr) String() string {
	return net.HardwareAddr(mac[:]).String()
}

// HardwareAddr converts to the net package representation
func (mac MacAddr) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(append([]byte(nil), mac[:]...))
}

// Role distinguishes the access point from its associated stations
type Role int

const (
	StationRole Role = iota
	AccessPointRole
)

func (r Role) String() string {
	if r == AccessPointRole {
		return "ap"
	}
	return "sta"
}

// RxCallback is called once for every MSDU a device receives
type RxCallback func(msdu *Msdu, from MacAddr)

// DeviceStats counts MAC layer activity of a device
type DeviceStats struct {
	Enqueued   uint64 // MSDUs accepted into the transmit queue
	QueueDrops uint64 // MSDUs refused because the queue was full
	RetryDrops uint64 // MSDUs abandoned after the retry limit
	TxPpdus    uint64 // PPDUs put on the air
	TxMpdus    uint64 // MPDUs put on the air, counting retransmissions
	Collisions uint64 // PPDUs that overlapped another transmission
	MpduErrors uint64 // MPDUs lost to the error model
	RxMpdus    uint64 // MPDUs received intact
}

// Device is a VHT interface.  All devices attached to one channel share its PhyParams
type Device struct {
	name     string
	role     Role
	mac      MacAddr
	phy      PhyParams
	position Vector

	txPowerDbm float64
	noiseFigDb float64
	rxSensDbm  float64

	channel *Channel
	queue   *msduQueue
	rng     *rand.Rand

	cw           int  // current contention window
	backoff      int  // slots left before the device may transmit
	contending   bool // true while the device holds a backoff counter
	transmitting bool // true while a PPDU of the device is on the air
	inFlight     int  // number of MSDUs at the queue head carried by the PPDU on the air

	rxCallback RxCallback
	stats      DeviceStats
}

// Name returns the device name
func (dev *Device) Name() string {
	return dev.name
}

// Role returns whether the device is an access point or a station
func (dev *Device) Role() Role {
	return dev.role
}

// Mac returns the device MAC address
func (dev *Device) Mac() MacAddr {
	return dev.mac
}

// Phy returns the PHY attributes the device was configured with
func (dev *Device) Phy() PhyParams {
	return dev.phy
}

// Position returns where the device sits
func (dev *Device) Position() Vector {
	return dev.position
}

// Stats returns a copy of the device counters
func (dev *Device) Stats() DeviceStats {
	return dev.stats
}

// QueueLen returns the number of MSDUs waiting at the device, including any in flight
func (dev *Device) QueueLen() int {
	return dev.queue.qlen()
}

// SetReceiveCallback names the function to call when an MSDU addressed to the device arrives
func (dev *Device) SetReceiveCallback(cb RxCallback) {
	dev.rxCallback = cb
}

// Enqueue hands an MSDU to the MAC for transmission to msdu.To.
// It returns false if the MSDU was dropped because the queue is full
func (dev *Device) Enqueue(msdu *Msdu) bool {
	if dev.channel == nil {
		return false
	}
	if !dev.queue.appendQ(msdu) {
		dev.stats.QueueDrops += 1
		return false
	}
	dev.stats.Enqueued += 1

	// an idle device with something to send starts contending for the medium
	if !dev.contending && !dev.transmitting {
		dev.channel.join(dev)
	}
	return true
}

func (dev *Device) String() string {
	return fmt.Sprintf("%s[%s %s]", dev.name, dev.role, dev.mac)
}

// doubleCW applies the binary exponential backoff after a failed exchange
func (dev *Device) doubleCW(maxCW int) {
	dev.cw = min(2*(dev.cw+1)-1, maxCW)
}
