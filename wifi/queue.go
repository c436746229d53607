package wifi

// queue.go holds the per-device MAC transmit queue.  It is a fixed
// capacity ring of MSDUs; arrivals to a full queue are dropped at the tail.
// MSDUs stay in the queue while they are in flight and are removed only once
// acknowledged, or when their retry budget is spent.

// Msdu is a unit of upper-layer data handed to a device for transmission
type Msdu struct {
	Packet  any // upper-layer packet, returned untouched on delivery
	Size    int // bytes of the upper-layer packet
	To      MacAddr
	retries int
}

// msduQueue is the central data structure for buffering frames at a device
type msduQueue struct {
	ring  []*Msdu
	head  int // index of the oldest entry
	count int
}

// createMsduQueue is a constructor
func createMsduQueue(capacity int) *msduQueue {
	mq := new(msduQueue)
	mq.ring = make([]*Msdu, capacity)
	return mq
}

// qlen returns the number of MSDUs held, including those in flight
func (mq *msduQueue) qlen() int {
	return mq.count
}

// full is true when an arrival would be dropped
func (mq *msduQueue) full() bool {
	return mq.count == len(mq.ring)
}

// appendQ adds an MSDU at the tail, reporting false if there was no room
func (mq *msduQueue) appendQ(msdu *Msdu) bool {
	if mq.full() {
		return false
	}
	mq.ring[(mq.head+mq.count)%len(mq.ring)] = msdu
	mq.count += 1
	return true
}

// peek returns the idx-th MSDU counted from the head
func (mq *msduQueue) peek(idx int) *Msdu {
	return mq.ring[(mq.head+idx)%len(mq.ring)]
}

// popQ removes (and returns) the MSDU at the head
func (mq *msduQueue) popQ() *Msdu {
	if mq.count == 0 {
		return nil
	}
	msdu := mq.ring[mq.head]
	mq.ring[mq.head] = nil
	mq.head = (mq.head + 1) % len(mq.ring)
	mq.count -= 1
	return msdu
}

// removeAt drops the idx-th MSDU counted from the head, closing the gap
func (mq *msduQueue) removeAt(idx int) {
	if idx == 0 {
		mq.popQ()
		return
	}
	for jdx := idx; jdx < mq.count-1; jdx++ {
		mq.ring[(mq.head+jdx)%len(mq.ring)] = mq.ring[(mq.head+jdx+1)%len(mq.ring)]
	}
	mq.ring[(mq.head+mq.count-1)%len(mq.ring)] = nil
	mq.count -= 1
}

// clear empties the queue
func (mq *msduQueue) clear() {
	for idx := range mq.ring {
		mq.ring[idx] = nil
	}
	mq.head = 0
	mq.count = 0
}
