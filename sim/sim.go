// Package sim wires the per-step kernels into the fixed simulation
// pipeline: spatial grid build, force evaluation, integration, collision
// relaxation, type counting. The worker pool's dispatch join is the
// barrier between kernels, so no kernel begins before the previous one is
// globally visible.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/pthm-cable/broth/config"
	"github.com/pthm-cable/broth/particles"
	"github.com/pthm-cable/broth/systems"
	"github.com/pthm-cable/broth/telemetry"
)

// Options holds construction-time knobs not covered by config.
type Options struct {
	Seed int64 // RNG seed for initial placement
}

// Simulation owns the particle store and all per-step kernels. While Step
// runs it has exclusive write access to the store and grid; external
// readers consume Snapshot and Counts between steps.
//
// A step is atomic from the caller's point of view: there is no per-step
// recoverable error and no partial-step rollback. If the process dies
// mid-step the buffers are undefined and the simulation must be rebuilt.
type Simulation struct {
	cfg   *config.Config
	table *particles.Table
	store *particles.Store

	grid      *systems.UniformGrid
	forces    *systems.ForceKernel
	integrate systems.IntegrateParams
	collide   *systems.CollisionResolver
	counter   *systems.TypeCounter

	iterations   int
	partitioning bool

	pool *workerPool
	perf *telemetry.PerfCollector
	rng  *rand.Rand

	step    int64
	simTime float64
}

// New validates the configuration, allocates every buffer and spawns the
// initial populations. Configuration errors (config.ErrInvalid) and
// resource errors (systems.ErrGridTooLarge) both surface here, before any
// step runs; the simulation must not start on either.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ComputeDerived()

	table, err := cfg.SpeciesTable()
	if err != nil {
		return nil, err
	}

	capacity := cfg.Derived.TotalParticles
	grid, err := systems.NewUniformGrid(cfg.Derived.Bounds, float32(cfg.Physics.CellSize), capacity)
	if err != nil {
		return nil, fmt.Errorf("allocating spatial grid: %w", err)
	}

	s := &Simulation{
		cfg:   cfg,
		table: table,
		store: particles.NewStore(capacity),
		grid:  grid,
		forces: systems.NewForceKernel(table, grid, systems.ForceParams{
			InteractionRadius:   float32(cfg.Physics.InteractionRadius),
			InteractionStrength: float32(cfg.Physics.InteractionStrength),
			MinDistance:         float32(cfg.Physics.MinDistance),
			MaxForce:            float32(cfg.Physics.MaxForce),
			Partitioning:        cfg.Physics.Partitioning,
		}),
		integrate: systems.IntegrateParams{
			MaxAcceleration: float32(cfg.Physics.MaxAcceleration),
			MaxVelocity:     float32(cfg.Physics.MaxVelocity),
			Dampening:       float32(cfg.Physics.Dampening),
			BounceForce:     float32(cfg.Physics.BounceForce),
			Half:            cfg.Derived.Half,
		},
		collide:      systems.NewCollisionResolver(grid, float32(cfg.Collision.Elasticity), capacity),
		counter:      systems.NewTypeCounter(table.Len(), capacity),
		iterations:   cfg.Collision.Iterations,
		partitioning: cfg.Physics.Partitioning,
		pool:         newWorkerPool(),
		perf:         telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		rng:          rand.New(rand.NewSource(opts.Seed)),
	}

	populate(s.store, s.table, cfg.Derived.Half, s.rng)
	return s, nil
}

// Step advances the simulation by dt. Kernels run in fixed order with a
// full barrier between them; each collision pass is itself barriered
// because it consumes the positions the previous pass wrote.
func (s *Simulation) Step(dt float32) {
	n := s.store.Len()
	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseSpatialGrid)
	s.grid.Reset(n)
	s.pool.run(n, func(start, end int, _ *workerScratch) {
		s.grid.CountChunk(s.store, start, end)
	})
	s.grid.ScanStarts()
	s.pool.run(n, func(start, end int, _ *workerScratch) {
		s.grid.ScatterChunk(start, end)
	})

	s.perf.StartPhase(telemetry.PhaseForces)
	s.pool.run(n, func(start, end int, scratch *workerScratch) {
		s.forces.RunChunk(s.store, start, end, scratch.cells)
	})

	s.perf.StartPhase(telemetry.PhaseIntegrate)
	s.pool.run(n, func(start, end int, _ *workerScratch) {
		systems.IntegrateChunk(s.store, s.integrate, dt, start, end)
	})

	s.perf.StartPhase(telemetry.PhaseCollide)
	for it := 0; it < s.iterations; it++ {
		s.pool.run(n, func(start, end int, scratch *workerScratch) {
			s.collide.PassChunk(s.store, s.partitioning, start, end, scratch.cells)
		})
		s.collide.Commit(s.store)
	}

	s.perf.StartPhase(telemetry.PhaseTypeCount)
	s.counter.Reset()
	s.pool.run(n, func(start, end int, _ *workerScratch) {
		s.counter.CountChunk(s.store, start, end)
	})
	s.counter.BuildArgs()
	s.pool.run(n, func(start, end int, _ *workerScratch) {
		s.counter.CompactChunk(s.store, start, end)
	})

	s.perf.EndTick()
	s.step++
	s.simTime += float64(dt)
}

// Close stops the worker pool.
func (s *Simulation) Close() {
	s.pool.stop()
}

// StepCount returns the number of completed steps.
func (s *Simulation) StepCount() int64 {
	return s.step
}

// SimTime returns the accumulated simulated time in seconds.
func (s *Simulation) SimTime() float64 {
	return s.simTime
}

// Store returns the live particle buffer. The simulation owns it
// exclusively while Step runs; use Snapshot for anything that outlives
// the current gap between steps.
func (s *Simulation) Store() *particles.Store {
	return s.store
}

// Snapshot returns a read-only copy of the particle state.
func (s *Simulation) Snapshot() particles.Snapshot {
	return s.store.Snapshot(s.step)
}

// Table returns the species table.
func (s *Simulation) Table() *particles.Table {
	return s.table
}

// Counts returns the per-species populations from the last step.
func (s *Simulation) Counts() []int32 {
	return s.counter.Counts()
}

// DrawArgs returns the per-species indirect draw arguments from the last
// step.
func (s *Simulation) DrawArgs() []systems.DrawIndexedArgs {
	return s.counter.DrawArgs()
}

// SpeciesIndices returns the compacted particle indices for one species
// from the last step.
func (s *Simulation) SpeciesIndices(species int) []int32 {
	return s.counter.SpeciesIndices(species)
}

// Perf returns the per-phase timing collector.
func (s *Simulation) Perf() *telemetry.PerfCollector {
	return s.perf
}

// Stats computes step statistics from the current state. The pairwise
// overlap metric is quadratic, so call this at the stats window cadence,
// not every step.
func (s *Simulation) Stats() telemetry.StepStats {
	return telemetry.ComputeStepStats(s.step, s.simTime, s.store, systems.TotalOverlap(s.store))
}
