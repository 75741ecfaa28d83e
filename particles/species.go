package particles

import "fmt"

// Color is an RGBA display color. It is cosmetic: the renderer reads it
// from the table, the simulation never does.
type Color struct {
	R, G, B, A uint8
}

// Species describes one particle category. Mass and radius are copied into
// every particle spawned for the species and not consulted again, so the
// table can be queried by the renderer without touching simulation state.
type Species struct {
	Name   string
	Color  Color
	Mass   float32
	Radius float32
	Count  int
}

// Table holds the species entries plus the signed interaction coefficient
// matrix. Entry (a, b) is the coefficient species a feels from a neighbor
// of species b. The matrix is not required to be symmetric: (a, b) and
// (b, a) are independent, which models one-directional attraction.
type Table struct {
	species []Species
	coeff   []float32 // n*n, row-major by observing species
}

// NewTable builds a table from the given species. All coefficients start
// at zero (no interaction) until SetRule overrides them.
func NewTable(species []Species) (*Table, error) {
	if len(species) == 0 {
		return nil, fmt.Errorf("species table: at least one species required")
	}
	for i, sp := range species {
		if sp.Mass <= 0 {
			return nil, fmt.Errorf("species table: species %q (index %d) mass must be positive, got %v", sp.Name, i, sp.Mass)
		}
		if sp.Radius <= 0 {
			return nil, fmt.Errorf("species table: species %q (index %d) radius must be positive, got %v", sp.Name, i, sp.Radius)
		}
		if sp.Count < 0 {
			return nil, fmt.Errorf("species table: species %q (index %d) count must not be negative, got %d", sp.Name, i, sp.Count)
		}
	}
	n := len(species)
	t := &Table{
		species: make([]Species, n),
		coeff:   make([]float32, n*n),
	}
	copy(t.species, species)
	return t, nil
}

// Len returns the number of species.
func (t *Table) Len() int {
	return len(t.species)
}

// Species returns the entry at index i.
func (t *Table) Species(i int) Species {
	return t.species[i]
}

// TotalCount returns the configured population summed over all species.
func (t *Table) TotalCount() int {
	total := 0
	for _, sp := range t.species {
		total += sp.Count
	}
	return total
}

// SetRule sets the coefficient species a feels from species b.
func (t *Table) SetRule(a, b int, coeff float32) error {
	n := len(t.species)
	if a < 0 || a >= n {
		return fmt.Errorf("species table: rule species index %d out of range [0,%d)", a, n)
	}
	if b < 0 || b >= n {
		return fmt.Errorf("species table: rule species index %d out of range [0,%d)", b, n)
	}
	t.coeff[a*n+b] = coeff
	return nil
}

// Coefficient returns the interaction coefficient species a feels from
// species b. Indices come straight from the particle buffer; callers
// guarantee validity (config validation rejects out-of-range species).
func (t *Table) Coefficient(a, b int32) float32 {
	return t.coeff[int(a)*len(t.species)+int(b)]
}
