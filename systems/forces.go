package systems

import "github.com/pthm-cable/broth/particles"

// ForceParams holds the tunables read by the force kernel.
type ForceParams struct {
	InteractionRadius   float32
	InteractionStrength float32
	MinDistance         float32 // Distance clamp before computing magnitude
	MaxForce            float32 // Net force cap after accumulation
	Partitioning        bool    // false = evaluate against the full particle set
}

// ForceKernel accumulates pairwise species-rule forces. For particle p and
// neighbor q the contribution points from p toward q with magnitude
// strength * coeff / max(d, minDistance), so a positive coefficient
// attracts and a negative one repels, falling off with inverse distance.
//
// The kernel reads positions and species and writes only the force buffer,
// keeping a clean read-position/write-force separation within the step.
type ForceKernel struct {
	params ForceParams
	table  *particles.Table
	grid   *UniformGrid
}

// NewForceKernel builds a force kernel over the given table and grid.
func NewForceKernel(table *particles.Table, grid *UniformGrid, params ForceParams) *ForceKernel {
	return &ForceKernel{params: params, table: table, grid: grid}
}

// RunChunk evaluates the net force for particles [start, end). cellBuf is
// per-worker scratch for candidate cell indices.
func (k *ForceKernel) RunChunk(store *particles.Store, start, end int, cellBuf []int32) {
	radiusSq := k.params.InteractionRadius * k.params.InteractionRadius

	for i := start; i < end; i++ {
		pos := store.Pos[i]
		sp := store.Species[i]
		var force particles.Vec3

		if k.params.Partitioning {
			cells := k.grid.NeighborCells(k.grid.CellOf(i), cellBuf[:0])
			bucket := k.grid.Bucket()
			for _, c := range cells {
				cs, cn := k.grid.CellRange(c)
				for _, j := range bucket[cs : cs+cn] {
					if int(j) == i {
						continue
					}
					force = k.accumulate(force, pos, sp, store, int(j), radiusSq)
				}
			}
		} else {
			for j := 0; j < store.Len(); j++ {
				if j == i {
					continue
				}
				force = k.accumulate(force, pos, sp, store, j, radiusSq)
			}
		}

		store.Force[i] = force.ClampLength(k.params.MaxForce)
	}
}

func (k *ForceKernel) accumulate(force, pos particles.Vec3, sp int32, store *particles.Store, j int, radiusSq float32) particles.Vec3 {
	delta := store.Pos[j].Sub(pos) // toward the neighbor
	distSq := delta.LengthSq()
	if distSq == 0 || distSq > radiusSq {
		return force
	}

	coeff := k.table.Coefficient(sp, store.Species[j])
	if coeff == 0 {
		return force
	}

	dist := sqrt32(distSq)
	eff := dist
	if eff < k.params.MinDistance {
		eff = k.params.MinDistance
	}
	mag := k.params.InteractionStrength * coeff / eff
	return force.Add(delta.Scale(mag / dist))
}
