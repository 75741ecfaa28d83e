package systems

import "github.com/pthm-cable/broth/particles"

// CollisionResolver pushes overlapping particles apart over a fixed number
// of relaxation passes per step. The pass count trades convergence for
// bounded per-step cost: separating one pair can open a new overlap with a
// third particle, which the next pass picks up.
//
// Each pass reads the previous pass's positions and writes its own slot
// into a separate buffer that is swapped in at the barrier, so lanes never
// observe half-written positions within a pass.
type CollisionResolver struct {
	elasticity float32
	grid       *UniformGrid
	nextPos    []particles.Vec3
	nextVel    []particles.Vec3
}

// NewCollisionResolver builds a resolver sized for capacity particles.
func NewCollisionResolver(grid *UniformGrid, elasticity float32, capacity int) *CollisionResolver {
	return &CollisionResolver{
		elasticity: elasticity,
		grid:       grid,
		nextPos:    make([]particles.Vec3, capacity),
		nextVel:    make([]particles.Vec3, capacity),
	}
}

// PassChunk computes one pass's corrected state for particles [start, end).
// For each neighbor closer than the radius sum, the particle moves half the
// overlap away scaled by elasticity and loses its approaching velocity
// component along the contact normal. The symmetric half applied by the
// neighbor's own lane completes the separation.
func (r *CollisionResolver) PassChunk(store *particles.Store, usePartitioning bool, start, end int, cellBuf []int32) {
	for i := start; i < end; i++ {
		pos := store.Pos[i]
		vel := store.Vel[i]
		radius := store.Radius[i]

		if usePartitioning {
			cells := r.grid.NeighborCells(r.grid.CellOf(i), cellBuf[:0])
			bucket := r.grid.Bucket()
			for _, c := range cells {
				cs, cn := r.grid.CellRange(c)
				for _, j := range bucket[cs : cs+cn] {
					if int(j) == i {
						continue
					}
					pos, vel = r.separate(store, pos, vel, radius, int(j))
				}
			}
		} else {
			for j := 0; j < store.Len(); j++ {
				if j == i {
					continue
				}
				pos, vel = r.separate(store, pos, vel, radius, j)
			}
		}

		r.nextPos[i] = pos
		r.nextVel[i] = vel
	}
}

func (r *CollisionResolver) separate(store *particles.Store, pos, vel particles.Vec3, radius float32, j int) (particles.Vec3, particles.Vec3) {
	delta := pos.Sub(store.Pos[j]) // away from the neighbor
	distSq := delta.LengthSq()
	radiusSum := radius + store.Radius[j]
	if distSq == 0 || distSq >= radiusSum*radiusSum {
		return pos, vel
	}

	dist := sqrt32(distSq)
	overlap := radiusSum - dist
	normal := delta.Scale(1 / dist)

	pos = pos.Add(normal.Scale(0.5 * r.elasticity * overlap))

	// Kill the approaching component so the pair does not re-penetrate
	// on the next integration step.
	approach := vel.Dot(normal)
	if approach < 0 {
		vel = vel.Sub(normal.Scale(approach * r.elasticity))
	}
	return pos, vel
}

// Commit publishes a completed pass by swapping the write buffers into the
// store. Must run after every PassChunk of the pass has finished, so every
// slot of the write buffers carries this pass's state.
func (r *CollisionResolver) Commit(store *particles.Store) {
	store.Pos, r.nextPos = r.nextPos, store.Pos
	store.Vel, r.nextVel = r.nextVel, store.Vel
}

// TotalOverlap sums max(0, radiusSum - distance) over all particle pairs,
// counting each pair once. Used by telemetry and tests to check that the
// resolver strictly reduces interpenetration.
func TotalOverlap(store *particles.Store) float64 {
	var total float64
	n := store.Len()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist := store.Pos[i].Sub(store.Pos[j]).Length()
			if pen := store.Radius[i] + store.Radius[j] - dist; pen > 0 {
				total += float64(pen)
			}
		}
	}
	return total
}
