package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/broth/particles"
)

func defaultIntegrate() IntegrateParams {
	return IntegrateParams{
		MaxAcceleration: 1000,
		MaxVelocity:     1000,
		Dampening:       1,
		BounceForce:     0.8,
		Half:            particles.Vec3{X: 5, Y: 5, Z: 5},
	}
}

func singleStore(pos, vel, force particles.Vec3, mass, radius float32) *particles.Store {
	store := particles.NewStore(1)
	store.Pos[0] = pos
	store.Vel[0] = vel
	store.Force[0] = force
	store.Mass[0] = mass
	store.Radius[0] = radius
	return store
}

func TestIntegrate_FreeMotion(t *testing.T) {
	store := singleStore(particles.Vec3{}, particles.Vec3{X: 2}, particles.Vec3{}, 1, 0.5)
	IntegrateChunk(store, defaultIntegrate(), 0.5, 0, 1)

	if got := store.Pos[0]; got != (particles.Vec3{X: 1}) {
		t.Errorf("pos = %v, want {1 0 0}", got)
	}
	if got := store.Vel[0]; got != (particles.Vec3{X: 2}) {
		t.Errorf("vel = %v, want unchanged {2 0 0}", got)
	}
}

func TestIntegrate_ForceAcceleratesByMass(t *testing.T) {
	// Same force, double mass, half the velocity gain
	light := singleStore(particles.Vec3{}, particles.Vec3{}, particles.Vec3{X: 4}, 1, 0.5)
	heavy := singleStore(particles.Vec3{}, particles.Vec3{}, particles.Vec3{X: 4}, 2, 0.5)

	IntegrateChunk(light, defaultIntegrate(), 0.5, 0, 1)
	IntegrateChunk(heavy, defaultIntegrate(), 0.5, 0, 1)

	if got := light.Vel[0].X; got != 2 {
		t.Errorf("light vel = %v, want 2", got)
	}
	if got := heavy.Vel[0].X; got != 1 {
		t.Errorf("heavy vel = %v, want 1", got)
	}
}

func TestIntegrate_Caps(t *testing.T) {
	t.Run("acceleration cap", func(t *testing.T) {
		p := defaultIntegrate()
		p.MaxAcceleration = 10
		store := singleStore(particles.Vec3{}, particles.Vec3{}, particles.Vec3{X: 1e6}, 1, 0.5)
		IntegrateChunk(store, p, 1, 0, 1)
		if got := store.Vel[0].X; got != 10 {
			t.Errorf("vel after capped acceleration = %v, want 10", got)
		}
	})

	t.Run("velocity cap", func(t *testing.T) {
		p := defaultIntegrate()
		p.MaxVelocity = 3
		store := singleStore(particles.Vec3{}, particles.Vec3{X: 100}, particles.Vec3{}, 1, 0.5)
		IntegrateChunk(store, p, 0.001, 0, 1)
		if got := store.Vel[0].Length(); math.Abs(float64(got-3)) > 1e-4 {
			t.Errorf("vel magnitude = %v, want 3", got)
		}
	})
}

func TestIntegrate_Dampening(t *testing.T) {
	p := defaultIntegrate()
	p.Dampening = 0.5
	store := singleStore(particles.Vec3{}, particles.Vec3{X: 10}, particles.Vec3{}, 1, 0.5)
	IntegrateChunk(store, p, 0.1, 0, 1)

	if got := store.Vel[0].X; got != 5 {
		t.Errorf("damped vel = %v, want 5", got)
	}
	// Position moves with the damped velocity
	if got := store.Pos[0].X; math.Abs(float64(got-0.5)) > 1e-5 {
		t.Errorf("pos = %v, want 0.5", got)
	}
}

func TestIntegrate_BoundaryReflection(t *testing.T) {
	// Crossing the +x wall: position clamps flush to the wall and the
	// x velocity reverses scaled by the bounce coefficient.
	store := singleStore(particles.Vec3{X: 4.6}, particles.Vec3{X: 10}, particles.Vec3{}, 1, 0.5)
	IntegrateChunk(store, defaultIntegrate(), 0.1, 0, 1)

	if got := store.Pos[0].X; math.Abs(float64(got-4.5)) > 1e-4 {
		t.Errorf("pos.X = %v, want 4.5 (half extent minus radius)", got)
	}
	if got := store.Vel[0].X; math.Abs(float64(got+8)) > 1e-4 {
		t.Errorf("vel.X = %v, want -8 (reversed and scaled by 0.8)", got)
	}
	// Untouched axes pass through
	if store.Vel[0].Y != 0 || store.Vel[0].Z != 0 {
		t.Errorf("vel = %v, y/z should be untouched", store.Vel[0])
	}
}

func TestIntegrate_CornerReflectsBothAxes(t *testing.T) {
	store := singleStore(
		particles.Vec3{X: 4.6, Y: -4.6},
		particles.Vec3{X: 10, Y: -10, Z: 1},
		particles.Vec3{}, 1, 0.5,
	)
	IntegrateChunk(store, defaultIntegrate(), 0.1, 0, 1)

	vel := store.Vel[0]
	if vel.X >= 0 {
		t.Errorf("vel.X = %v, want reversed", vel.X)
	}
	if vel.Y <= 0 {
		t.Errorf("vel.Y = %v, want reversed", vel.Y)
	}
	if vel.Z != 1 {
		t.Errorf("vel.Z = %v, want unchanged", vel.Z)
	}

	pos := store.Pos[0]
	if math.Abs(float64(pos.X-4.5)) > 1e-4 || math.Abs(float64(pos.Y+4.5)) > 1e-4 {
		t.Errorf("pos = %v, want clamped to both walls", pos)
	}
}
