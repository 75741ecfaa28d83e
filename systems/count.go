package systems

import (
	"sync/atomic"

	"github.com/pthm-cable/broth/particles"
)

// DrawIndexedArgs mirrors the indexed indirect-draw argument layout the
// external renderer dispatches from. The simulation owns InstanceCount and
// FirstInstance; the renderer fills the mesh fields via SetMesh.
type DrawIndexedArgs struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// TypeCounter recomputes per-species populations each step and compacts
// particle indices by species, so the renderer resolves "instance N of
// species K" with one lookup instead of scanning the particle buffer.
// This is a reduction over the store; it never touches physical state.
type TypeCounter struct {
	counts  []int32
	starts  []int32
	fill    []int32
	indices []int32
	draws   []DrawIndexedArgs
}

// NewTypeCounter builds a counter for numSpecies species over capacity
// particles.
func NewTypeCounter(numSpecies, capacity int) *TypeCounter {
	return &TypeCounter{
		counts:  make([]int32, numSpecies),
		starts:  make([]int32, numSpecies),
		fill:    make([]int32, numSpecies),
		indices: make([]int32, capacity),
		draws:   make([]DrawIndexedArgs, numSpecies),
	}
}

// Reset clears the counts for a fresh reduction.
func (t *TypeCounter) Reset() {
	clear(t.counts)
	clear(t.fill)
}

// CountChunk tallies species for particles [start, end).
func (t *TypeCounter) CountChunk(store *particles.Store, start, end int) {
	for i := start; i < end; i++ {
		atomic.AddInt32(&t.counts[store.Species[i]], 1)
	}
}

// BuildArgs prefix-sums the counts into compaction offsets and publishes
// instance counts into the draw argument structs. Runs single-threaded
// after every CountChunk has completed.
func (t *TypeCounter) BuildArgs() {
	var sum int32
	for i := range t.counts {
		t.starts[i] = sum
		sum += t.counts[i]

		t.draws[i].InstanceCount = uint32(t.counts[i])
		t.draws[i].FirstInstance = uint32(t.starts[i])
	}
}

// CompactChunk scatters particles [start, end) into the per-species index
// list. Order within a species is unspecified.
func (t *TypeCounter) CompactChunk(store *particles.Store, start, end int) {
	for i := start; i < end; i++ {
		sp := store.Species[i]
		slot := atomic.AddInt32(&t.fill[sp], 1) - 1
		t.indices[t.starts[sp]+slot] = int32(i)
	}
}

// Count returns the current population of a species.
func (t *TypeCounter) Count(species int) int {
	return int(t.counts[species])
}

// Counts returns a copy of the per-species populations.
func (t *TypeCounter) Counts() []int32 {
	out := make([]int32, len(t.counts))
	copy(out, t.counts)
	return out
}

// DrawArgs returns the indirect draw arguments, one per species.
func (t *TypeCounter) DrawArgs() []DrawIndexedArgs {
	return t.draws
}

// SpeciesIndices returns the compacted particle indices for one species,
// valid until the next Reset.
func (t *TypeCounter) SpeciesIndices(species int) []int32 {
	start := t.starts[species]
	return t.indices[start : start+t.counts[species]]
}

// SetMesh lets the renderer bind its mesh geometry for a species without
// touching the fields the counter owns.
func (t *TypeCounter) SetMesh(species int, indexCount, firstIndex uint32, baseVertex int32) {
	t.draws[species].IndexCount = indexCount
	t.draws[species].FirstIndex = firstIndex
	t.draws[species].BaseVertex = baseVertex
}
