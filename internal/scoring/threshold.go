package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/RichardMN/mastodon-digest/internal/digest"
)

// Threshold is the percentile a post's score must reach to make the
// digest.
type Threshold int

const (
	ThresholdLax    Threshold = 90
	ThresholdNormal Threshold = 95
	ThresholdStrict Threshold = 98
)

var thresholdsByName = map[string]Threshold{
	"lax":    ThresholdLax,
	"normal": ThresholdNormal,
	"strict": ThresholdStrict,
}

// ThresholdNames lists the recognized threshold names, mildest first.
func ThresholdNames() []string {
	return []string{"lax", "normal", "strict"}
}

// ThresholdFromName maps lax/normal/strict onto its percentile.
func ThresholdFromName(name string) (Threshold, error) {
	t, ok := thresholdsByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown threshold %q, must be one of %v", name, ThresholdNames())
	}

	return t, nil
}

// Name returns the threshold's config-file name.
func (t Threshold) Name() string {
	switch t {
	case ThresholdLax:
		return "lax"
	case ThresholdNormal:
		return "normal"
	case ThresholdStrict:
		return "strict"
	default:
		return fmt.Sprintf("p%d", int(t))
	}
}

// Rank scores every post, drops those excluded by the scorer or below the
// threshold percentile, and returns the survivors sorted by descending
// score.
func (t Threshold) Rank(posts []*digest.Post, scorer Scorer) []digest.ScoredPost {
	eligible := make([]digest.ScoredPost, 0, len(posts))
	for _, p := range posts {
		score := scorer.Score(p)
		if score < 0 {
			// Negative means the scorer vetoed the post outright
			continue
		}
		eligible = append(eligible, digest.ScoredPost{Post: p, Score: score})
	}
	if len(eligible) == 0 {
		return nil
	}

	scores := make([]float64, len(eligible))
	for i, sp := range eligible {
		scores[i] = sp.Score
	}
	minScore := percentile(scores, float64(t))

	kept := eligible[:0]
	for _, sp := range eligible {
		if sp.Score >= minScore {
			kept = append(kept, sp)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	return kept
}

// percentile computes the per-th percentile of values with linear
// interpolation between the two nearest ranks.
func percentile(values []float64, per float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	idx := per / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + (sorted[lower+1]-sorted[lower])*frac
}
