package wifi

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestPhyValidateGrid(t *testing.T) {
	for _, width := range []int{20, 40, 80, 160} {
		for mcs := 0; mcs <= 9; mcs++ {
			err := PhyParams{MCS: mcs, ChannelWidth: width}.Validate()
			if mcs == 9 && width == 20 {
				if !errors.Is(err, ErrMcsWidth) {
					t.Errorf("mcs 9 at 20 MHz: got %v, want ErrMcsWidth", err)
				}
				continue
			}
			if err != nil {
				t.Errorf("mcs %d at %d MHz: unexpected error %v", mcs, width, err)
			}
		}
	}
}

func TestPhyValidateOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		phy  PhyParams
		want error
	}{
		{"width", PhyParams{MCS: 0, ChannelWidth: 30}, ErrChannelWidth},
		{"mcs high", PhyParams{MCS: 10, ChannelWidth: 20}, ErrMcs},
		{"mcs negative", PhyParams{MCS: -1, ChannelWidth: 80}, ErrMcs},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.phy.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestPhyDataRate(t *testing.T) {
	cases := []struct {
		phy  PhyParams
		mbps float64
	}{
		{PhyParams{MCS: 0, ChannelWidth: 20}, 6.5},
		{PhyParams{MCS: 0, ChannelWidth: 20, ShortGuard: true}, 7.2222},
		{PhyParams{MCS: 7, ChannelWidth: 20}, 65},
		{PhyParams{MCS: 9, ChannelWidth: 40}, 180},
		{PhyParams{MCS: 9, ChannelWidth: 80, ShortGuard: true}, 433.3333},
		{PhyParams{MCS: 9, ChannelWidth: 160, ShortGuard: true}, 866.6667},
	}
	for _, tc := range cases {
		t.Run(tc.phy.ModeName(), func(t *testing.T) {
			if got := tc.phy.DataRateMbps(); math.Abs(got-tc.mbps) > 1e-3 {
				t.Fatalf("%+v: got %.4f Mbps, want %.4f", tc.phy, got, tc.mbps)
			}
		})
	}
}

func TestPpduDuration(t *testing.T) {
	phy := PhyParams{MCS: 0, ChannelWidth: 20}
	// 16 + 12000 + 6 bits over 26 bits per symbol -> 463 symbols
	if got, want := phy.PpduDuration(1500), 40*time.Microsecond+463*4*time.Microsecond; got != want {
		t.Fatalf("PpduDuration(1500) = %v, want %v", got, want)
	}
	if phy.PpduDuration(0) != 40*time.Microsecond+4*time.Microsecond {
		t.Fatalf("an empty PSDU still takes one symbol, got %v", phy.PpduDuration(0))
	}
	sgi := PhyParams{MCS: 0, ChannelWidth: 20, ShortGuard: true}
	if sgi.PpduDuration(1500) >= phy.PpduDuration(1500) {
		t.Fatal("short guard interval should shorten the PPDU")
	}
}

func TestModeName(t *testing.T) {
	if got := (PhyParams{MCS: 7}).ModeName(); got != "VhtMcs7" {
		t.Fatalf("ModeName = %q", got)
	}
}

func TestLogDistanceLoss(t *testing.T) {
	ld := DefaultLogDistanceLoss()
	if got := ld.RxPowerDbm(16.0206, 1); math.Abs(got-(16.0206-46.6777)) > 1e-9 {
		t.Fatalf("loss at reference distance: got %f", got)
	}
	// each decade of distance costs 10 * exponent dB
	if got := ld.RxPowerDbm(0, 1) - ld.RxPowerDbm(0, 10); math.Abs(got-30) > 1e-9 {
		t.Fatalf("decade loss = %f, want 30", got)
	}
}

func TestMpduErrorRate(t *testing.T) {
	phy := PhyParams{MCS: 0, ChannelWidth: 20}
	if per := mpduErrorRate(phy, 60, 1538); per != 0 {
		t.Fatalf("high SNR should be error free, got %g", per)
	}
	if per := mpduErrorRate(phy, -20, 1538); per < 0.999 {
		t.Fatalf("very low SNR should lose nearly everything, got %g", per)
	}
	if mpduErrorRate(phy, 2, 3000) <= mpduErrorRate(phy, 2, 500) {
		t.Fatal("longer frames should be more likely lost")
	}
}
