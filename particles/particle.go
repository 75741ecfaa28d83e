package particles

// Particle is a copy of one slot's state. Kernels never use this form; it
// exists for spawning, snapshots and tests.
type Particle struct {
	Pos     Vec3
	Vel     Vec3
	Force   Vec3
	Species int32
	Mass    float32
	Radius  float32
}

// Store is the flat simulation buffer, laid out as parallel arrays and
// addressed by slot index. A particle has no identity beyond its slot.
//
// Ownership: the simulation step has exclusive write access while it runs.
// Within a parallel kernel each lane writes only its own slot, so the only
// cross-lane contention lives in the grid and counter atomics, never here.
// External readers must go through Snapshot between steps.
type Store struct {
	Pos     []Vec3
	Vel     []Vec3
	Force   []Vec3
	Species []int32
	Mass    []float32
	Radius  []float32
}

// NewStore allocates a store for n particles, all zeroed.
func NewStore(n int) *Store {
	return &Store{
		Pos:     make([]Vec3, n),
		Vel:     make([]Vec3, n),
		Force:   make([]Vec3, n),
		Species: make([]int32, n),
		Mass:    make([]float32, n),
		Radius:  make([]float32, n),
	}
}

// Len returns the number of particle slots.
func (s *Store) Len() int {
	return len(s.Pos)
}

// At returns a copy of slot i.
func (s *Store) At(i int) Particle {
	return Particle{
		Pos:     s.Pos[i],
		Vel:     s.Vel[i],
		Force:   s.Force[i],
		Species: s.Species[i],
		Mass:    s.Mass[i],
		Radius:  s.Radius[i],
	}
}

// Set overwrites slot i with p.
func (s *Store) Set(i int, p Particle) {
	s.Pos[i] = p.Pos
	s.Vel[i] = p.Vel
	s.Force[i] = p.Force
	s.Species[i] = p.Species
	s.Mass[i] = p.Mass
	s.Radius[i] = p.Radius
}

// Snapshot is a read-only copy of the particle buffer taken between steps.
// It shares no memory with the live store, so the renderer or diagnostics
// can hold it while the next step mutates the buffer.
type Snapshot struct {
	Step      int64
	Particles []Particle
}

// Snapshot deep-copies the current particle state.
func (s *Store) Snapshot(step int64) Snapshot {
	out := Snapshot{
		Step:      step,
		Particles: make([]Particle, s.Len()),
	}
	for i := range out.Particles {
		out.Particles[i] = s.At(i)
	}
	return out
}
