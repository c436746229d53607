package wlansweep

// stats.go summarizes how received traffic is shared between stations and
// how goodput evolves over a sweep

import (
	"net/netip"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ShareStats describes how evenly the receiver's bytes came from the stations
type ShareStats struct {
	Sources  int
	MeanMbps float64
	StdMbps  float64
	Jain     float64 // 1 when every station gets the same goodput, 1/n when one gets everything
}

// shareStats computes per-station goodput statistics.  stations includes silent ones,
// which count as zero
func shareStats(bySource map[netip.Addr]float64, stations []netip.Addr, seconds float64) ShareStats {
	ss := ShareStats{Sources: len(stations)}
	if len(stations) == 0 || !(seconds > 0) {
		return ss
	}
	addrs := append([]netip.Addr(nil), stations...)
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })

	mbps := make([]float64, len(addrs))
	for idx, addr := range addrs {
		mbps[idx] = bySource[addr] * 8 / (seconds * 1e6)
	}
	ss.MeanMbps = stat.Mean(mbps, nil)
	if len(mbps) > 1 {
		ss.StdMbps = stat.StdDev(mbps, nil)
	}
	ss.Jain = jainIndex(mbps)
	return ss
}

// jainIndex is Jain's fairness index of xs
func jainIndex(xs []float64) float64 {
	sq := floats.Dot(xs, xs)
	if sq == 0 {
		return 0
	}
	sum := floats.Sum(xs)
	return sum * sum / (float64(len(xs)) * sq)
}

// SweepSummary describes the goodput samples of a campaign
type SweepSummary struct {
	Samples  int
	MeanMbps float64
	StdMbps  float64
	MinMbps  float64
	MaxMbps  float64
	PeakAt   int // station count of the highest goodput
}

// SummarizeSamples computes a SweepSummary
func SummarizeSamples(samples []GoodputSample) SweepSummary {
	sum := SweepSummary{Samples: len(samples)}
	if len(samples) == 0 {
		return sum
	}
	tput := make([]float64, len(samples))
	for idx, gs := range samples {
		tput[idx] = gs.ThroughputMbps
	}
	sum.MeanMbps = stat.Mean(tput, nil)
	if len(tput) > 1 {
		sum.StdMbps = stat.StdDev(tput, nil)
	}
	sum.MinMbps = floats.Min(tput)
	sum.MaxMbps = floats.Max(tput)
	sum.PeakAt = samples[floats.MaxIdx(tput)].StationCount
	return sum
}
