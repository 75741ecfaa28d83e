package systems

import "math"

// sqrt32 is a float32 sqrt helper for the hot kernel paths.
func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
