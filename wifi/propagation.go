package wifi

// propagation.go holds the channel models: path loss as a function of
// distance, the propagation delay, thermal noise and the MPDU error curve

import (
	"math"
	"time"
)

// Vector is a position in meters
type Vector struct {
	X, Y, Z float64
}

// DistanceTo returns the euclidean distance between two positions
func (v Vector) DistanceTo(o Vector) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// LogDistanceLoss computes path loss with a log-distance law referenced at RefDistance
type LogDistanceLoss struct {
	Exponent    float64
	RefDistance float64 // meters
	RefLossDb   float64 // loss at RefDistance
}

// DefaultLogDistanceLoss returns the 5 GHz model parameters
func DefaultLogDistanceLoss() LogDistanceLoss {
	return LogDistanceLoss{Exponent: 3.0, RefDistance: 1.0, RefLossDb: 46.6777}
}

// RxPowerDbm returns the power received at distance meters from a transmitter emitting txDbm.
// Below the reference distance no extra loss beyond the reference loss is applied
func (ld LogDistanceLoss) RxPowerDbm(txDbm, distance float64) float64 {
	if distance <= ld.RefDistance {
		return txDbm - ld.RefLossDb
	}
	return txDbm - ld.RefLossDb - 10*ld.Exponent*math.Log10(distance/ld.RefDistance)
}

// speed of light, m/s
const lightSpeed = 299792458.0

// propagationDelay is the constant-speed delay over distance meters, rounded to the nanosecond
func propagationDelay(distance float64) time.Duration {
	return time.Duration(math.Round(distance / lightSpeed * 1e9))
}

const (
	thermalNoiseDbmHz = -174.0
	defaultNoiseFigDb = 7.0
	defaultTxPowerDbm = 16.0206
	defaultRxSensDbm  = -101.0
)

// noiseFloorDbm is the thermal noise over the channel bandwidth plus the receiver noise figure
func noiseFloorDbm(widthMHz int, noiseFigDb float64) float64 {
	return thermalNoiseDbmHz + 10*math.Log10(float64(widthMHz)*1e6) + noiseFigDb
}

// mpduErrorRate returns the probability an MPDU of mpduBytes is lost at the given SNR.
// A logistic curve centred on the MCS threshold gives the loss for a 1500 byte frame,
// which is then scaled to the frame length
func mpduErrorRate(phy PhyParams, snrDb float64, mpduBytes int) float64 {
	per1500 := 1.0 / (1.0 + math.Exp(2.0*(snrDb-phy.minSnrDb())))
	if per1500 < 1e-12 {
		return 0.0
	}
	if per1500 >= 1.0 {
		return 1.0
	}
	return 1.0 - math.Pow(1.0-per1500, float64(mpduBytes)/1500.0)
}
