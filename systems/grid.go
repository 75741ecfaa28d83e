// Package systems implements the per-step simulation kernels: spatial grid
// construction, force evaluation, integration, collision relaxation and
// type counting. Each kernel exposes a chunk method processing a particle
// index range, so the caller can dispatch chunks across workers and use
// the dispatch join as the barrier between kernels.
package systems

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/pthm-cable/broth/particles"
)

// MaxGridCells bounds the cell table allocation. Construction fails up
// front instead of attempting a multi-gigabyte grid.
const MaxGridCells = 1 << 24

// ErrGridTooLarge is a resource error: the requested bounds/cell size would
// allocate more cells than MaxGridCells. Surfaced before any step runs.
var ErrGridTooLarge = errors.New("grid cell count exceeds limit")

// UniformGrid partitions the bounded volume into fixed-size cells and maps
// each cell to the contiguous range of its particles in an occupancy list.
//
// The grid is a pure index into the particle store, never an owner of
// particle data. It is cleared and fully rebuilt once per step; particles
// may cross any number of cells between steps, so incremental updates are
// never valid.
//
// Rebuild protocol (count, scan, scatter):
//  1. Reset zeroes the per-cell counts.
//  2. CountChunk lanes record each particle's cell and atomically bump the
//     cell's count. In-cell insertion order is deliberately unspecified.
//  3. ScanStarts prefix-sums the counts into start offsets. It must run
//     after every CountChunk of the same rebuild; offsets derived from a
//     previous step's counts would corrupt the grid.
//  4. ScatterChunk lanes claim a slot in their cell's range through a
//     per-cell atomic cursor and write the particle index into the bucket.
type UniformGrid struct {
	cellSize         float32
	half             particles.Vec3
	dimX, dimY, dimZ int32
	cells            int32

	counts []int32 // per-cell occupancy, atomically incremented
	starts []int32 // per-cell bucket offsets, valid after ScanStarts
	fill   []int32 // per-cell scatter cursors
	cellOf []int32 // cell index per particle
	bucket []int32 // particle indices grouped by cell
	n      int
}

// NewUniformGrid builds a grid covering an axis-aligned box of the given
// full extents centered at the origin, sized for capacity particles.
func NewUniformGrid(bounds particles.Vec3, cellSize float32, capacity int) (*UniformGrid, error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("uniform grid: cell size must be positive, got %v", cellSize)
	}
	dimX := cellsPerAxis(bounds.X, cellSize)
	dimY := cellsPerAxis(bounds.Y, cellSize)
	dimZ := cellsPerAxis(bounds.Z, cellSize)

	total := int64(dimX) * int64(dimY) * int64(dimZ)
	if total > MaxGridCells {
		return nil, fmt.Errorf("%w: %dx%dx%d = %d cells (max %d)", ErrGridTooLarge, dimX, dimY, dimZ, total, MaxGridCells)
	}

	return &UniformGrid{
		cellSize: cellSize,
		half:     bounds.Scale(0.5),
		dimX:     dimX,
		dimY:     dimY,
		dimZ:     dimZ,
		cells:    int32(total),
		counts:   make([]int32, total),
		starts:   make([]int32, total),
		fill:     make([]int32, total),
		cellOf:   make([]int32, capacity),
		bucket:   make([]int32, capacity),
	}, nil
}

func cellsPerAxis(extent, cellSize float32) int32 {
	d := int32(math.Ceil(float64(extent / cellSize)))
	if d < 1 {
		d = 1
	}
	return d
}

// Dim returns the grid dimensions per axis.
func (g *UniformGrid) Dim() (x, y, z int32) {
	return g.dimX, g.dimY, g.dimZ
}

// Cells returns the total cell count.
func (g *UniformGrid) Cells() int32 {
	return g.cells
}

// CellIndex returns the flat cell index for a world position, clamped into
// the grid so out-of-bounds particles land in a boundary cell.
func (g *UniformGrid) CellIndex(p particles.Vec3) int32 {
	cx := g.axisCell(p.X, g.half.X, g.dimX)
	cy := g.axisCell(p.Y, g.half.Y, g.dimY)
	cz := g.axisCell(p.Z, g.half.Z, g.dimZ)
	return cx + cy*g.dimX + cz*g.dimX*g.dimY
}

func (g *UniformGrid) axisCell(x, half float32, dim int32) int32 {
	c := int32(math.Floor(float64((x + half) / g.cellSize)))
	if c < 0 {
		return 0
	}
	if c >= dim {
		return dim - 1
	}
	return c
}

// Reset prepares the grid for a rebuild over n particles.
func (g *UniformGrid) Reset(n int) {
	clear(g.counts)
	clear(g.fill)
	g.n = n
}

// CountChunk assigns cells for particles [start, end) and accumulates
// per-cell counts. Chunks run concurrently; the counts are the only shared
// writes and go through atomic increments.
func (g *UniformGrid) CountChunk(store *particles.Store, start, end int) {
	for i := start; i < end; i++ {
		c := g.CellIndex(store.Pos[i])
		g.cellOf[i] = c
		atomic.AddInt32(&g.counts[c], 1)
	}
}

// ScanStarts computes bucket offsets from the counts gathered in the same
// rebuild. Runs single-threaded between the count and scatter dispatches.
func (g *UniformGrid) ScanStarts() {
	var sum int32
	for i := range g.counts {
		g.starts[i] = sum
		sum += g.counts[i]
	}
}

// ScatterChunk writes particles [start, end) into their cell's bucket
// range. Slots within a cell are claimed by atomic cursor, so in-cell
// order depends on scheduling; any permutation is valid.
func (g *UniformGrid) ScatterChunk(start, end int) {
	for i := start; i < end; i++ {
		c := g.cellOf[i]
		slot := atomic.AddInt32(&g.fill[c], 1) - 1
		g.bucket[g.starts[c]+slot] = int32(i)
	}
}

// CellRange returns the bucket offset and particle count for a cell.
func (g *UniformGrid) CellRange(cell int32) (start, count int32) {
	return g.starts[cell], g.counts[cell]
}

// CellOf returns the cell assigned to particle i in the current rebuild.
func (g *UniformGrid) CellOf(i int) int32 {
	return g.cellOf[i]
}

// Bucket returns the occupancy list: particle indices grouped by cell,
// sliceable with CellRange.
func (g *UniformGrid) Bucket() []int32 {
	return g.bucket[:g.n]
}

// NeighborCells appends cell's candidate neighbor cells (itself plus up to
// 26 adjacent) to buf and returns the slice. Cells outside the grid are
// skipped, not wrapped: the boundary reflects.
func (g *UniformGrid) NeighborCells(cell int32, buf []int32) []int32 {
	cx := cell % g.dimX
	cy := (cell / g.dimX) % g.dimY
	cz := cell / (g.dimX * g.dimY)

	for dz := int32(-1); dz <= 1; dz++ {
		z := cz + dz
		if z < 0 || z >= g.dimZ {
			continue
		}
		for dy := int32(-1); dy <= 1; dy++ {
			y := cy + dy
			if y < 0 || y >= g.dimY {
				continue
			}
			for dx := int32(-1); dx <= 1; dx++ {
				x := cx + dx
				if x < 0 || x >= g.dimX {
					continue
				}
				buf = append(buf, x+y*g.dimX+z*g.dimX*g.dimY)
			}
		}
	}
	return buf
}
