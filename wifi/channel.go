package wifi

// channel.go holds the shared wireless medium and the EDCA (best effort)
// contention it arbitrates.
//
// Rather than ticking every backoff slot, the channel keeps the backoff
// counters of all contending devices and schedules a single event for the
// slot on which the smallest counter expires.  Every device whose counter
// reaches zero on that slot transmits; more than one such device is a
// collision.  A device that joins while the countdown is under way has the
// elapsed slots charged to the others before the event is moved.

import (
	"fmt"
	"time"

	"github.com/iti/evt/evtm"
	"github.com/iti/wlansweep/des"
	"golang.org/x/exp/rand"
)

// MacParams are the EDCA and aggregation parameters of the best effort access category
type MacParams struct {
	Slot          time.Duration
	Sifs          time.Duration
	Aifsn         int
	CWMin         int
	CWMax         int
	RetryLimit    int
	MaxAmpduBytes int
	MaxAmpduMpdus int
	MaxPpdu       time.Duration
	QueueSize     int
}

// DefaultMacParams returns the 5 GHz VHT best effort parameters
func DefaultMacParams() MacParams {
	return MacParams{
		Slot:          9 * time.Microsecond,
		Sifs:          16 * time.Microsecond,
		Aifsn:         3,
		CWMin:         15,
		CWMax:         1023,
		RetryLimit:    7,
		MaxAmpduBytes: 65535,
		MaxAmpduMpdus: 64,
		MaxPpdu:       5484 * time.Microsecond,
		QueueSize:     500,
	}
}

// ChannelAttrs are the radio attributes applied to every device on the channel
type ChannelAttrs struct {
	Loss          LogDistanceLoss
	TxPowerDbm    float64
	NoiseFigureDb float64
	RxSensDbm     float64
	Mac           MacParams
}

// DefaultChannelAttrs returns the default radio configuration
func DefaultChannelAttrs() ChannelAttrs {
	return ChannelAttrs{
		Loss:          DefaultLogDistanceLoss(),
		TxPowerDbm:    defaultTxPowerDbm,
		NoiseFigureDb: defaultNoiseFigDb,
		RxSensDbm:     defaultRxSensDbm,
		Mac:           DefaultMacParams(),
	}
}

const (
	macHeaderBytes = 26 // QoS data header
	llcBytes       = 8
	fcsBytes       = 4
	delimiterBytes = 4
	blockAckBytes  = 32
	ackBytes       = 14
)

// MpduSize gives the MPDU length carrying an upper-layer packet of msduBytes
func MpduSize(msduBytes int) int {
	return msduBytes + macHeaderBytes + llcBytes + fcsBytes
}

// Channel is the medium shared by an access point and its stations
type Channel struct {
	sched   *des.Scheduler
	attrs   ChannelAttrs
	devices []*Device
	byMac   map[MacAddr]*Device

	busyUntil  time.Duration // medium is busy until then
	cdStart    time.Duration // slot boundary the running countdown is aligned on
	contenders []*Device     // in the order they joined
	txing      []*Device     // devices whose PPDU is on the air
	epoch      uint64        // generation of the pending contention event
}

// CreateChannel is a constructor
func CreateChannel(sched *des.Scheduler, attrs ChannelAttrs) *Channel {
	ch := new(Channel)
	ch.sched = sched
	ch.attrs = attrs
	ch.devices = make([]*Device, 0)
	ch.byMac = make(map[MacAddr]*Device)
	ch.contenders = make([]*Device, 0)
	return ch
}

// Attrs returns the radio attributes of the channel
func (ch *Channel) Attrs() ChannelAttrs {
	return ch.attrs
}

// Devices returns the devices attached, in installation order
func (ch *Channel) Devices() []*Device {
	return ch.devices
}

// Install creates a device attached to the channel
func (ch *Channel) Install(name string, role Role, mac MacAddr, pos Vector, phy PhyParams, rng *rand.Rand) (*Device, error) {
	if err := phy.Validate(); err != nil {
		return nil, err
	}
	if _, present := ch.byMac[mac]; present {
		return nil, fmt.Errorf("mac address %s already on channel", mac)
	}
	dev := new(Device)
	dev.name = name
	dev.role = role
	dev.mac = mac
	dev.phy = phy
	dev.position = pos
	dev.txPowerDbm = ch.attrs.TxPowerDbm
	dev.noiseFigDb = ch.attrs.NoiseFigureDb
	dev.rxSensDbm = ch.attrs.RxSensDbm
	dev.channel = ch
	dev.queue = createMsduQueue(ch.attrs.Mac.QueueSize)
	dev.rng = rng
	dev.cw = ch.attrs.Mac.CWMin

	ch.devices = append(ch.devices, dev)
	ch.byMac[mac] = dev
	return dev, nil
}

// Dispose detaches every device and forgets all medium state
func (ch *Channel) Dispose() {
	for _, dev := range ch.devices {
		dev.queue.clear()
		dev.rxCallback = nil
		dev.channel = nil
	}
	ch.devices = nil
	ch.byMac = make(map[MacAddr]*Device)
	ch.contenders = nil
	ch.txing = nil
	ch.epoch += 1
}

// aifs is the idle time the medium must show before backoff counting resumes
func (ch *Channel) aifs() time.Duration {
	return ch.attrs.Mac.Sifs + time.Duration(ch.attrs.Mac.Aifsn)*ch.attrs.Mac.Slot
}

// idleFrom is the time backoff counting may resume after the current busy period
func (ch *Channel) idleFrom() time.Duration {
	return ch.busyUntil + ch.aifs()
}

// join puts a device holding frames into contention
func (ch *Channel) join(dev *Device) {
	now := ch.sched.Now()
	if len(ch.txing) == 0 && now >= ch.idleFrom() {
		ch.advanceCountdown(now)
	}
	ch.addContender(dev)
	ch.scheduleResolve()
}

// addContender draws a fresh backoff for the device
func (ch *Channel) addContender(dev *Device) {
	dev.backoff = dev.rng.Intn(dev.cw + 1)
	dev.contending = true
	ch.contenders = append(ch.contenders, dev)
}

// advanceCountdown charges the whole slots elapsed since cdStart to every contender
func (ch *Channel) advanceCountdown(now time.Duration) {
	if ch.cdStart < ch.idleFrom() {
		ch.cdStart = ch.idleFrom()
	}
	slot := ch.attrs.Mac.Slot
	elapsed := int((now - ch.cdStart) / slot)
	if elapsed <= 0 {
		return
	}
	for _, dev := range ch.contenders {
		dev.backoff = max(dev.backoff-elapsed, 0)
	}
	ch.cdStart += time.Duration(elapsed) * slot
}

// scheduleResolve (re)places the event for the slot on which the smallest backoff expires.
// Any previously scheduled contention event becomes stale
func (ch *Channel) scheduleResolve() {
	ch.epoch += 1
	if len(ch.txing) > 0 || len(ch.contenders) == 0 {
		// the end of the transmission on the air reschedules
		return
	}
	now := ch.sched.Now()
	if now < ch.idleFrom() {
		ch.cdStart = ch.idleFrom()
	}
	least := ch.contenders[0].backoff
	for _, dev := range ch.contenders[1:] {
		least = min(least, dev.backoff)
	}
	target := ch.cdStart + time.Duration(least)*ch.attrs.Mac.Slot
	delay := max(target-now, 0)
	// a non-negative offset cannot be refused
	_, _ = ch.sched.Schedule(ch, ch.epoch, resolveContention, des.DurationToTime(delay))
}

// txRecord describes the PPDUs put on the air at one contention slot
type txRecord struct {
	senders []*Device
	start   time.Duration
}

// resolveContention is called when the smallest backoff counter expires
func resolveContention(evtMgr *evtm.EventManager, context any, data any) any {
	ch := context.(*Channel)

	// a later join or transmission superseded this event
	if data.(uint64) != ch.epoch {
		return nil
	}
	now := des.TimeToDuration(evtMgr.CurrentTime())
	ch.advanceCountdown(now)

	// devices whose counter reached zero transmit, the rest freeze their counters
	winners := make([]*Device, 0, 1)
	remaining := ch.contenders[:0]
	for _, dev := range ch.contenders {
		if dev.backoff == 0 {
			winners = append(winners, dev)
		} else {
			remaining = append(remaining, dev)
		}
	}
	ch.contenders = remaining
	if len(winners) == 0 {
		ch.scheduleResolve()
		return nil
	}

	var onAir time.Duration
	for _, dev := range winners {
		dev.contending = false
		dev.transmitting = true
		dur := ch.startPpdu(dev)
		onAir = max(onAir, dur)
	}
	ch.txing = winners
	ch.busyUntil = now + onAir
	ch.epoch += 1

	_, _ = ch.sched.Schedule(ch, &txRecord{senders: winners, start: now}, endTransmission, des.DurationToTime(onAir))
	return nil
}

// startPpdu aggregates MSDUs from the head of the device queue into an A-MPDU
// and returns the airtime of the PPDU carrying it, propagation included
func (ch *Channel) startPpdu(dev *Device) time.Duration {
	mac := ch.attrs.Mac
	first := dev.queue.peek(0)

	psdu := 0
	count := 0
	for count < dev.queue.qlen() && count < mac.MaxAmpduMpdus {
		msdu := dev.queue.peek(count)
		if msdu.To != first.To {
			break
		}
		subframe := delimiterBytes + MpduSize(msdu.Size)
		padded := psdu
		if count > 0 {
			// previous subframe is padded to a 4 byte boundary
			padded = (psdu + 3) &^ 3
		}
		if count > 0 && (padded+subframe > mac.MaxAmpduBytes || dev.phy.PpduDuration(padded+subframe) > mac.MaxPpdu) {
			break
		}
		psdu = padded + subframe
		count += 1
	}
	dev.inFlight = count
	dev.stats.TxPpdus += 1
	dev.stats.TxMpdus += uint64(count)

	dur := dev.phy.PpduDuration(psdu)
	if rcvr, present := ch.byMac[first.To]; present {
		dur += propagationDelay(dev.position.DistanceTo(rcvr.position))
	}
	return dur
}

// responseDuration is the airtime of the acknowledgement to an A-MPDU of count MPDUs
func responseDuration(phy PhyParams, count int) time.Duration {
	if count > 1 {
		return phy.PpduDuration(blockAckBytes)
	}
	return phy.PpduDuration(ackBytes)
}

// endTransmission is called when the last PPDU of a contention slot leaves the air
func endTransmission(evtMgr *evtm.EventManager, context any, data any) any {
	ch := context.(*Channel)
	rec := data.(*txRecord)
	now := des.TimeToDuration(evtMgr.CurrentTime())
	mac := ch.attrs.Mac

	// the channel was disposed while the PPDU was on the air
	if ch.devices == nil {
		return nil
	}

	if len(rec.senders) > 1 {
		// collision: nobody decodes anything, every sender waits out its ack timeout
		var timeout time.Duration
		for _, dev := range rec.senders {
			dev.stats.Collisions += 1
			timeout = max(timeout, mac.Sifs+mac.Slot+responseDuration(dev.phy, dev.inFlight))
			ch.failInFlight(dev)
			dev.doubleCW(mac.CWMax)
		}
		ch.busyUntil = now + timeout
	} else {
		dev := rec.senders[0]
		ch.busyUntil = now + ch.deliver(dev)
	}

	ch.txing = nil
	for _, dev := range rec.senders {
		dev.transmitting = false
		dev.inFlight = 0
		if dev.queue.qlen() > 0 {
			ch.addContender(dev)
		}
	}
	ch.scheduleResolve()
	return nil
}

// deliver evaluates a collision-free A-MPDU at its receiver, hands the intact
// MSDUs up, and returns how long the medium stays busy for the response
func (ch *Channel) deliver(dev *Device) time.Duration {
	mac := ch.attrs.Mac
	count := dev.inFlight
	first := dev.queue.peek(0)
	rcvr, present := ch.byMac[first.To]

	// snr of the link, or a flag that the receiver does not hear the PPDU at all
	heard := false
	snrDb := 0.0
	if present {
		dist := dev.position.DistanceTo(rcvr.position)
		rxDbm := ch.attrs.Loss.RxPowerDbm(dev.txPowerDbm, dist)
		if rxDbm >= rcvr.rxSensDbm {
			heard = true
			snrDb = rxDbm - noiseFloorDbm(dev.phy.ChannelWidth, rcvr.noiseFigDb)
		}
	}

	// decide the fate of every MPDU before touching the queue
	ok := make([]bool, count)
	delivered := 0
	if heard {
		for idx := 0; idx < count; idx++ {
			msdu := dev.queue.peek(idx)
			per := mpduErrorRate(dev.phy, snrDb, MpduSize(msdu.Size))
			if per > 0 && rcvr.rng.Float64() < per {
				dev.stats.MpduErrors += 1
				continue
			}
			ok[idx] = true
			delivered += 1
		}
	}

	if delivered == 0 {
		ch.failInFlight(dev)
		dev.doubleCW(mac.CWMax)
		return mac.Sifs + mac.Slot + responseDuration(dev.phy, count)
	}

	// remove the in-flight MSDUs from the queue; failed ones go back to the head
	// in their original order for retransmission
	retry := make([]*Msdu, 0)
	for idx := 0; idx < count; idx++ {
		msdu := dev.queue.popQ()
		if ok[idx] {
			rcvr.stats.RxMpdus += 1
			if rcvr.rxCallback != nil {
				rcvr.rxCallback(msdu, dev.mac)
			}
			continue
		}
		msdu.retries += 1
		if msdu.retries > mac.RetryLimit {
			dev.stats.RetryDrops += 1
			continue
		}
		retry = append(retry, msdu)
	}
	dev.requeueHead(retry)
	dev.cw = mac.CWMin
	return mac.Sifs + responseDuration(dev.phy, count)
}

// failInFlight charges a retry to every MSDU carried by the failed PPDU
func (ch *Channel) failInFlight(dev *Device) {
	limit := ch.attrs.Mac.RetryLimit
	for idx := dev.inFlight - 1; idx >= 0; idx-- {
		msdu := dev.queue.peek(idx)
		msdu.retries += 1
		if msdu.retries > limit {
			dev.queue.removeAt(idx)
			dev.stats.RetryDrops += 1
		}
	}
}

// requeueHead puts MSDUs back in front of the queue, preserving their order
func (dev *Device) requeueHead(msdus []*Msdu) {
	mq := dev.queue
	for idx := len(msdus) - 1; idx >= 0; idx-- {
		mq.head = (mq.head - 1 + len(mq.ring)) % len(mq.ring)
		mq.ring[mq.head] = msdus[idx]
		mq.count += 1
	}
}
