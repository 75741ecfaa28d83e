package systems

import "github.com/pthm-cable/broth/particles"

// IntegrateParams holds the integration and boundary tunables.
type IntegrateParams struct {
	MaxAcceleration float32
	MaxVelocity     float32
	Dampening       float32        // Multiplicative per-step velocity decay
	BounceForce     float32        // Boundary reflection coefficient in [0,1]
	Half            particles.Vec3 // Boundary half extents
}

// IntegrateChunk advances particles [start, end) by dt: acceleration from
// the accumulated force (capped), velocity update with damping and cap,
// position update, then boundary reflection.
//
// Reflection is evaluated independently per axis, not as one combined
// test, so a corner hit reflects on each involved axis.
func IntegrateChunk(store *particles.Store, p IntegrateParams, dt float32, start, end int) {
	for i := start; i < end; i++ {
		acc := store.Force[i].Scale(1 / store.Mass[i]).ClampLength(p.MaxAcceleration)
		vel := store.Vel[i].Add(acc.Scale(dt)).Scale(p.Dampening).ClampLength(p.MaxVelocity)
		pos := store.Pos[i].Add(vel.Scale(dt))

		radius := store.Radius[i]
		for axis := 0; axis < 3; axis++ {
			half := p.Half.Axis(axis)
			x := pos.Axis(axis)
			if x-radius < -half {
				pos.SetAxis(axis, -half+radius)
				vel.SetAxis(axis, -vel.Axis(axis)*p.BounceForce)
			} else if x+radius > half {
				pos.SetAxis(axis, half-radius)
				vel.SetAxis(axis, -vel.Axis(axis)*p.BounceForce)
			}
		}

		store.Vel[i] = vel
		store.Pos[i] = pos
	}
}
