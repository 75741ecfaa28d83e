package sim

import (
	"math/rand"

	"github.com/pthm-cable/broth/particles"
)

// populate fills the store with each species' initial population. Mass,
// radius and species index are copied into the particle slots at creation
// and never read back from the table at runtime. Positions are uniform
// inside the boundary box shrunk by the particle radius; velocities start
// at zero.
func populate(store *particles.Store, table *particles.Table, half particles.Vec3, rng *rand.Rand) {
	slot := 0
	for si := 0; si < table.Len(); si++ {
		sp := table.Species(si)
		for n := 0; n < sp.Count; n++ {
			store.Set(slot, particles.Particle{
				Pos: particles.Vec3{
					X: spawnAxis(rng, half.X, sp.Radius),
					Y: spawnAxis(rng, half.Y, sp.Radius),
					Z: spawnAxis(rng, half.Z, sp.Radius),
				},
				Species: int32(si),
				Mass:    sp.Mass,
				Radius:  sp.Radius,
			})
			slot++
		}
	}
}

// spawnAxis draws a coordinate in [-(half-radius), half-radius].
func spawnAxis(rng *rand.Rand, half, radius float32) float32 {
	span := half - radius
	if span <= 0 {
		return 0
	}
	return (rng.Float32()*2 - 1) * span
}
