package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/broth/particles"
)

// StepStats holds aggregated statistics for one step, sampled at the
// stats window cadence.
type StepStats struct {
	Step       int64   `csv:"step"`
	SimTime    float64 `csv:"sim_time"`
	Population int     `csv:"population"`

	// Speed distribution
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Net force distribution (post-cap)
	ForceMean float64 `csv:"force_mean"`
	ForceMax  float64 `csv:"force_max"`

	// Residual interpenetration after the collision passes
	OverlapSum float64 `csv:"overlap_sum"`
}

// ComputeStepStats aggregates distribution statistics over the store.
// overlapSum is passed in because the pairwise metric is computed by the
// collision system, not here.
func ComputeStepStats(step int64, simTime float64, store *particles.Store, overlapSum float64) StepStats {
	n := store.Len()
	s := StepStats{
		Step:       step,
		SimTime:    simTime,
		Population: n,
		OverlapSum: overlapSum,
	}
	if n == 0 {
		return s
	}

	speeds := make([]float64, n)
	forces := make([]float64, n)
	for i := 0; i < n; i++ {
		speeds[i] = float64(store.Vel[i].Length())
		forces[i] = float64(store.Force[i].Length())
	}

	s.SpeedMean = stat.Mean(speeds, nil)
	s.SpeedStd = stat.StdDev(speeds, nil)
	s.ForceMean = stat.Mean(forces, nil)

	sort.Float64s(speeds)
	s.SpeedP50 = stat.Quantile(0.50, stat.Empirical, speeds, nil)
	s.SpeedP90 = stat.Quantile(0.90, stat.Empirical, speeds, nil)
	s.SpeedMax = speeds[n-1]

	sort.Float64s(forces)
	s.ForceMax = forces[n-1]

	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s StepStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("step", s.Step),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("population", s.Population),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("force_mean", s.ForceMean),
		slog.Float64("force_max", s.ForceMax),
		slog.Float64("overlap_sum", s.OverlapSum),
	)
}

// LogStats logs the step stats together with per-species populations.
func (s StepStats) LogStats(names []string, counts []int32) {
	attrs := []any{
		"step", s.Step,
		"sim_time", s.SimTime,
		"population", s.Population,
		"speed_mean", s.SpeedMean,
		"speed_p50", s.SpeedP50,
		"speed_p90", s.SpeedP90,
		"speed_max", s.SpeedMax,
		"force_mean", s.ForceMean,
		"force_max", s.ForceMax,
		"overlap_sum", s.OverlapSum,
	}
	for i, name := range names {
		if i < len(counts) {
			attrs = append(attrs, "count_"+name, counts[i])
		}
	}
	slog.Info("stats", attrs...)
}
