// Package rank turns raw match scores into the final result order.
package rank

import (
	"cmp"
	"slices"
	"strings"

	"github.com/starford/sowilo/internal/match"
)

const (
	// MaxResults caps the number of ranked candidates turned into items.
	MaxResults = 100
	// MaxDepthBonus is the number of levels that still earn a depth bonus.
	MaxDepthBonus = 5
	// DepthStep is the bonus per level above MaxDepthBonus.
	DepthStep = 10
)

const sep = "/"

// Depth counts every separator in path, including the trailing one that
// marks a directory.
func Depth(path string) int {
	return strings.Count(path, sep)
}

// Adjust applies the directory and depth bonuses to a raw score.
// Directories get +1 and then the whole score times 1.1; every level
// shallower than MaxDepthBonus is worth DepthStep more.
func Adjust(path string, score int) int {
	if strings.HasSuffix(path, sep) {
		score++
		score = int(float64(score) * 1.1)
	}
	return score + DepthStep*max(0, MaxDepthBonus-Depth(path))
}

// Rank adjusts every candidate in place and sorts by descending score, then
// ascending path.
func Rank(cs []match.Candidate) {
	for i := range cs {
		cs[i].Score = Adjust(cs[i].Path, cs[i].Score)
	}
	slices.SortFunc(cs, Compare)
}

// Compare orders candidates by descending score, then ascending path.
func Compare(a, b match.Candidate) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return strings.Compare(a.Path, b.Path)
}

// Top returns at most MaxResults leading candidates.
func Top(cs []match.Candidate) []match.Candidate {
	if len(cs) > MaxResults {
		return cs[:MaxResults]
	}
	return cs
}
