package preload

import (
	"cmp"
	"slices"
)

// Rank returns the priority of an asset; lower ranks are emitted first.
func Rank(a Asset) int {
	switch a.Kind {
	case KindStylesheet:
		return 0
	case KindPreload:
		if a.IsFont() {
			return 1
		}
		return 4
	case KindEntryModule:
		return 2
	case KindModulePreload:
		return 3
	}
	return 5
}

// Sort returns a copy of assets ordered by [Rank]. The sort is stable, so
// assets of equal rank keep their relative order and Sort(Sort(x)) == Sort(x).
func Sort(assets []Asset) []Asset {
	out := slices.Clone(assets)
	slices.SortStableFunc(out, func(a, b Asset) int {
		return cmp.Compare(Rank(a), Rank(b))
	})
	return out
}
