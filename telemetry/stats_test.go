package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/broth/particles"
)

func TestComputeStepStats(t *testing.T) {
	store := particles.NewStore(4)
	for i, speed := range []float32{1, 2, 3, 4} {
		store.Vel[i] = particles.Vec3{X: speed}
	}
	store.Force[3] = particles.Vec3{Y: 6}

	stats := ComputeStepStats(10, 0.16, store, 1.25)

	if stats.Step != 10 {
		t.Errorf("Step = %d, want 10", stats.Step)
	}
	if stats.SimTime != 0.16 {
		t.Errorf("SimTime = %v, want 0.16", stats.SimTime)
	}
	if stats.Population != 4 {
		t.Errorf("Population = %d, want 4", stats.Population)
	}
	if stats.OverlapSum != 1.25 {
		t.Errorf("OverlapSum = %v, want 1.25", stats.OverlapSum)
	}

	if math.Abs(stats.SpeedMean-2.5) > 1e-6 {
		t.Errorf("SpeedMean = %v, want 2.5", stats.SpeedMean)
	}
	if stats.SpeedMax != 4 {
		t.Errorf("SpeedMax = %v, want 4", stats.SpeedMax)
	}
	if stats.SpeedStd <= 0 {
		t.Errorf("SpeedStd = %v, want positive", stats.SpeedStd)
	}
	if stats.SpeedP50 < 1 || stats.SpeedP50 > 4 {
		t.Errorf("SpeedP50 = %v, out of sample range", stats.SpeedP50)
	}
	if stats.SpeedP90 < stats.SpeedP50 {
		t.Errorf("SpeedP90 %v below SpeedP50 %v", stats.SpeedP90, stats.SpeedP50)
	}

	if math.Abs(stats.ForceMean-1.5) > 1e-6 {
		t.Errorf("ForceMean = %v, want 1.5", stats.ForceMean)
	}
	if stats.ForceMax != 6 {
		t.Errorf("ForceMax = %v, want 6", stats.ForceMax)
	}
}

func TestComputeStepStats_EmptyStore(t *testing.T) {
	store := particles.NewStore(0)

	// Must not panic or emit NaNs on an empty population
	stats := ComputeStepStats(0, 0, store, 0)

	if stats.Population != 0 {
		t.Errorf("Population = %d, want 0", stats.Population)
	}
	if stats.SpeedMean != 0 || stats.SpeedMax != 0 || stats.ForceMax != 0 {
		t.Errorf("expected zero stats for empty store: %+v", stats)
	}
}
