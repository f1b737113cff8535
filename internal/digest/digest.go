package digest

import "time"

type (
	// ScoredPost is a post together with the score the run's scorer gave it.
	ScoredPost struct {
		*Post
		Score float64
	}

	// Digest is the assembled result of a run: the posts and boosts that
	// made the cut, sorted by score, plus the parameters that produced
	// them for display.
	Digest struct {
		Hours     int
		Timeline  string
		Scorer    string
		Threshold string
		BaseURL   string
		CreatedAt time.Time

		Posts  []ScoredPost
		Boosts []ScoredPost

		// Optional intro paragraph, present when summarization is on
		Summary string
	}
)

// Empty reports whether nothing met the threshold.
func (d Digest) Empty() bool {
	return len(d.Posts) == 0 && len(d.Boosts) == 0
}
