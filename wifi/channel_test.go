package wifi

import (
	"context"
	"testing"
	"time"

	"github.com/iti/wlansweep/des"
	"golang.org/x/exp/rand"
)

type delivery struct {
	at   time.Duration
	from MacAddr
	seq  int
}

// testBss builds an access point at the origin and stations at distance meters
func testBss(t *testing.T, sched *des.Scheduler, phy PhyParams, stations int, distance float64) (*Device, []*Device, *[]delivery) {
	t.Helper()
	ch := CreateChannel(sched, DefaultChannelAttrs())
	stas := make([]*Device, 0, stations)
	for idx := 0; idx < stations; idx++ {
		sta, err := ch.Install("sta", StationRole, MacFromIndex(idx+1), Vector{X: distance}, phy, rand.New(rand.NewSource(uint64(idx+1))))
		if err != nil {
			t.Fatalf("Install station: %v", err)
		}
		stas = append(stas, sta)
	}
	ap, err := ch.Install("ap", AccessPointRole, MacFromIndex(stations+1), Vector{}, phy, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatalf("Install ap: %v", err)
	}
	var got []delivery
	ap.SetReceiveCallback(func(msdu *Msdu, from MacAddr) {
		got = append(got, delivery{at: sched.Now(), from: from, seq: msdu.Packet.(int)})
	})
	return ap, stas, &got
}

func TestChannelSingleStationDelivery(t *testing.T) {
	sched := des.CreateScheduler()
	phy := PhyParams{MCS: 0, ChannelWidth: 20}
	ap, stas, got := testBss(t, sched, phy, 1, 1.0)

	const count = 400
	const size = 1500
	for idx := 0; idx < count; idx++ {
		if !stas[0].Enqueue(&Msdu{Packet: idx, Size: size, To: ap.Mac()}) {
			t.Fatalf("enqueue %d refused", idx)
		}
	}
	if err := sched.Run(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(*got) != count {
		t.Fatalf("delivered %d of %d", len(*got), count)
	}
	for idx, d := range *got {
		if d.seq != idx {
			t.Fatalf("delivery %d carried MSDU %d, order lost", idx, d.seq)
		}
		if d.from != stas[0].Mac() {
			t.Fatalf("delivery %d from %s", idx, d.from)
		}
	}

	// the MAC can never beat the PHY rate
	last := (*got)[count-1].at
	goodput := float64(count*size*8) / last.Seconds()
	if goodput > phy.DataRate() {
		t.Fatalf("goodput %.0f bit/s above PHY rate %.0f", goodput, phy.DataRate())
	}
	if goodput < 0.75*phy.DataRate() {
		t.Fatalf("goodput %.0f bit/s implausibly low for an uncontended link", goodput)
	}
	st := stas[0].Stats()
	if st.TxMpdus <= st.TxPpdus {
		t.Fatalf("expected aggregation: %d MPDUs in %d PPDUs", st.TxMpdus, st.TxPpdus)
	}
	if stas[0].QueueLen() != 0 {
		t.Fatalf("queue not drained: %d left", stas[0].QueueLen())
	}
}

func TestChannelContention(t *testing.T) {
	sched := des.CreateScheduler()
	phy := PhyParams{MCS: 7, ChannelWidth: 40}
	ap, stas, got := testBss(t, sched, phy, 3, 1.0)

	const perStation = 100
	for idx := 0; idx < perStation; idx++ {
		for _, sta := range stas {
			sta.Enqueue(&Msdu{Packet: idx, Size: 1000, To: ap.Mac()})
		}
	}
	if err := sched.Run(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var drops uint64
	for _, sta := range stas {
		drops += sta.Stats().RetryDrops
	}
	if uint64(len(*got))+drops != 3*perStation {
		t.Fatalf("%d delivered + %d dropped != %d sent", len(*got), drops, 3*perStation)
	}
	if len(*got) < 3*perStation-10 {
		t.Fatalf("only %d of %d delivered", len(*got), 3*perStation)
	}

	// MSDUs of one station arrive in order even when retransmitted
	lastSeq := map[MacAddr]int{}
	for _, d := range *got {
		if prev, seen := lastSeq[d.from]; seen && d.seq <= prev {
			t.Fatalf("station %s delivered %d after %d", d.from, d.seq, prev)
		}
		lastSeq[d.from] = d.seq
	}
}

func TestChannelOutOfRange(t *testing.T) {
	sched := des.CreateScheduler()
	phy := PhyParams{MCS: 0, ChannelWidth: 20}
	ap, stas, got := testBss(t, sched, phy, 1, 10000)

	for idx := 0; idx < 5; idx++ {
		stas[0].Enqueue(&Msdu{Packet: idx, Size: 1500, To: ap.Mac()})
	}
	if err := sched.Run(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(*got) != 0 {
		t.Fatalf("delivered %d MSDUs over 10 km", len(*got))
	}
	if drops := stas[0].Stats().RetryDrops; drops != 5 {
		t.Fatalf("retry drops = %d, want 5", drops)
	}
}

func TestChannelDeterminism(t *testing.T) {
	run := func() []delivery {
		sched := des.CreateScheduler()
		ap, stas, got := testBss(t, sched, PhyParams{MCS: 3, ChannelWidth: 20}, 4, 5)
		for idx := 0; idx < 50; idx++ {
			for _, sta := range stas {
				sta.Enqueue(&Msdu{Packet: idx, Size: 1200, To: ap.Mac()})
			}
		}
		sched.Run(context.Background(), 5*time.Second)
		return *got
	}
	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("runs delivered %d and %d", len(first), len(second))
	}
	for idx := range first {
		if first[idx] != second[idx] {
			t.Fatalf("runs diverge at delivery %d: %+v vs %+v", idx, first[idx], second[idx])
		}
	}
}

func TestChannelInstallRejects(t *testing.T) {
	sched := des.CreateScheduler()
	ch := CreateChannel(sched, DefaultChannelAttrs())
	rng := rand.New(rand.NewSource(1))
	if _, err := ch.Install("x", StationRole, MacFromIndex(1), Vector{}, PhyParams{MCS: 9, ChannelWidth: 20}, rng); err == nil {
		t.Fatal("expected MCS 9 at 20 MHz to be refused")
	}
	if _, err := ch.Install("a", StationRole, MacFromIndex(1), Vector{}, PhyParams{MCS: 0, ChannelWidth: 20}, rng); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if _, err := ch.Install("b", StationRole, MacFromIndex(1), Vector{}, PhyParams{MCS: 0, ChannelWidth: 20}, rng); err == nil {
		t.Fatal("expected a duplicate MAC address to be refused")
	}
}

func TestDisposeStopsDevices(t *testing.T) {
	sched := des.CreateScheduler()
	ap, stas, _ := testBss(t, sched, PhyParams{MCS: 0, ChannelWidth: 20}, 1, 1)
	stas[0].channel.Dispose()
	if stas[0].Enqueue(&Msdu{Packet: 0, Size: 100, To: ap.Mac()}) {
		t.Fatal("a disposed device accepted an MSDU")
	}
}
