package catalog

import "math/rand/v2"

// Shuffle permutes items in place with Fisher-Yates and returns the slice.
// A nil rng uses the process-wide source.
func Shuffle[T any](rng *rand.Rand, items []T) []T {
	for i := len(items) - 1; i > 0; i-- {
		var j int
		if rng != nil {
			j = rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		items[i], items[j] = items[j], items[i]
	}
	return items
}
