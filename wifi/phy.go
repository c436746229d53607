package wifi

// phy.go holds the 802.11ac (VHT) single spatial stream rate table and
// the PPDU airtime computation derived from it

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrChannelWidth = errors.New("channel width must be one of 20, 40, 80, 160 MHz")
	ErrMcs          = errors.New("mcs must be in 0..9")
	ErrMcsWidth     = errors.New("mcs is not allowed at this channel width")
)

// PhyParams are the PHY attributes applied identically to every device of a run
type PhyParams struct {
	MCS          int  // VHT modulation and coding scheme, 0..9
	ChannelWidth int  // MHz
	ShortGuard   bool // 400ns guard interval when true, 800ns otherwise
}

// vhtMcs describes the modulation and coding of one VHT MCS
type vhtMcs struct {
	modulation string
	nbpscs     int // coded bits per subcarrier per stream
	rateNum    int // coding rate numerator
	rateDen    int // coding rate denominator
	minSnrDb   float64
}

// minSnrDb is the SNR at which roughly half of the 1500 byte MPDUs sent at
// the MCS are lost; the error model centres its curve on it
var vhtMcsTbl = [10]vhtMcs{
	{"BPSK", 1, 1, 2, 2.0},
	{"QPSK", 2, 1, 2, 5.0},
	{"QPSK", 2, 3, 4, 9.0},
	{"16-QAM", 4, 1, 2, 11.0},
	{"16-QAM", 4, 3, 4, 15.0},
	{"64-QAM", 6, 2, 3, 18.0},
	{"64-QAM", 6, 3, 4, 20.0},
	{"64-QAM", 6, 5, 6, 25.0},
	{"256-QAM", 8, 3, 4, 29.0},
	{"256-QAM", 8, 5, 6, 31.0},
}

// number of data subcarriers, by channel width
var dataSubcarriers = map[int]int{20: 52, 40: 108, 80: 234, 160: 468}

const (
	symbolLongGI  = 4000 * time.Nanosecond
	symbolShortGI = 3600 * time.Nanosecond

	// L-STF, L-LTF, L-SIG, VHT-SIG-A, VHT-STF, one VHT-LTF, VHT-SIG-B
	vhtPreamble = 40 * time.Microsecond

	serviceBits = 16
	tailBits    = 6
)

// Validate reports whether the parameters describe a legal VHT mode
func (p PhyParams) Validate() error {
	if _, present := dataSubcarriers[p.ChannelWidth]; !present {
		return fmt.Errorf("%w: got %d", ErrChannelWidth, p.ChannelWidth)
	}
	if p.MCS < 0 || p.MCS >= len(vhtMcsTbl) {
		return fmt.Errorf("%w: got %d", ErrMcs, p.MCS)
	}

	// a mode is only defined when every OFDM symbol carries a whole number of data bits.
	// For one spatial stream that rules out MCS 9 at 20 MHz
	mcs := vhtMcsTbl[p.MCS]
	if (dataSubcarriers[p.ChannelWidth]*mcs.nbpscs*mcs.rateNum)%mcs.rateDen != 0 {
		return fmt.Errorf("%w: VhtMcs%d at %d MHz", ErrMcsWidth, p.MCS, p.ChannelWidth)
	}
	return nil
}

// ModeName is the rate-control mode string for the MCS, e.g. "VhtMcs7"
func (p PhyParams) ModeName() string {
	return fmt.Sprintf("VhtMcs%d", p.MCS)
}

// Modulation names the constellation used by the MCS
func (p PhyParams) Modulation() string {
	return vhtMcsTbl[p.MCS].modulation
}

// symbolDuration gives the OFDM symbol length including the guard interval
func (p PhyParams) symbolDuration() time.Duration {
	if p.ShortGuard {
		return symbolShortGI
	}
	return symbolLongGI
}

// dataBitsPerSymbol is N_DBPS for one spatial stream. Only meaningful for valid parameters
func (p PhyParams) dataBitsPerSymbol() int {
	mcs := vhtMcsTbl[p.MCS]
	return dataSubcarriers[p.ChannelWidth] * mcs.nbpscs * mcs.rateNum / mcs.rateDen
}

// DataRate returns the PHY bit rate in bits per second
func (p PhyParams) DataRate() float64 {
	return float64(p.dataBitsPerSymbol()) / p.symbolDuration().Seconds()
}

// DataRateMbps returns the PHY bit rate in Mbit/s
func (p PhyParams) DataRateMbps() float64 {
	return p.DataRate() / 1e6
}

// PpduDuration gives the airtime of a VHT PPDU carrying a PSDU of psduBytes
func (p PhyParams) PpduDuration(psduBytes int) time.Duration {
	ndbps := p.dataBitsPerSymbol()
	bits := serviceBits + 8*psduBytes + tailBits
	nsym := (bits + ndbps - 1) / ndbps
	return vhtPreamble + time.Duration(nsym)*p.symbolDuration()
}

// minSnrDb returns the centre of the error curve for the MCS
func (p PhyParams) minSnrDb() float64 {
	return vhtMcsTbl[p.MCS].minSnrDb
}
