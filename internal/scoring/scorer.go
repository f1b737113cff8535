// Package scoring ranks posts by engagement. The base scorers take a
// geometric mean of a post's interaction counts, optionally damped by the
// author's follower count so megaphone accounts don't drown out everyone
// else. Wrappers layer per-account amplification and keyword gating on top.
package scoring

import (
	"fmt"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/RichardMN/mastodon-digest/internal/digest"
)

// Scorer assigns a score to a post. Higher is better; a negative score
// marks the post as excluded.
type Scorer interface {
	Name() string
	Score(p *digest.Post) float64
}

type weightFunc func(p *digest.Post) float64

func uniformWeight(*digest.Post) float64 { return 1 }

// Posts from accounts with zero followers score zero: the count is -1
// when the author hides it, and it genuinely happens to be 0.
func inverseFollowerWeight(p *digest.Post) float64 {
	followers := p.Status.Account.FollowersCount
	if followers <= 0 {
		return 0
	}

	return 1 / math.Sqrt(float64(followers))
}

// BaseScorer is one of the four named scoring strategies.
type BaseScorer struct {
	name     string
	extended bool
	weight   weightFunc
}

func (s BaseScorer) Name() string { return s.name }

// Weight is the follower damping factor for the post's author.
func (s BaseScorer) Weight(p *digest.Post) float64 { return s.weight(p) }

// Engagement is the geometric mean of the post's interaction counts.
// Every count is inflated by one so that a zero in one metric doesn't
// wipe out the others, but a post with no interactions at all stays at 0.
func (s BaseScorer) Engagement(p *digest.Post) float64 {
	var (
		reblogs = float64(p.Status.ReblogsCount)
		favs    = float64(p.Status.FavouritesCount)
		replies = float64(p.Status.RepliesCount)
	)

	if s.extended {
		if reblogs == 0 && favs == 0 && replies == 0 {
			return 0
		}
		return gmean(reblogs+1, favs+1, replies+1)
	}

	if reblogs == 0 && favs == 0 {
		return 0
	}
	return gmean(reblogs+1, favs+1)
}

func (s BaseScorer) Score(p *digest.Post) float64 {
	return s.Engagement(p) * s.Weight(p)
}

var baseScorers = map[string]BaseScorer{
	"Simple":                 {name: "Simple", weight: uniformWeight},
	"SimpleWeighted":         {name: "SimpleWeighted", weight: inverseFollowerWeight},
	"ExtendedSimple":         {name: "ExtendedSimple", extended: true, weight: uniformWeight},
	"ExtendedSimpleWeighted": {name: "ExtendedSimpleWeighted", extended: true, weight: inverseFollowerWeight},
}

// Names lists the available base scorer names, sorted.
func Names() []string {
	names := make([]string, 0, len(baseScorers))
	for name := range baseScorers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// ByName looks up a base scorer.
func ByName(name string) (BaseScorer, error) {
	s, ok := baseScorers[name]
	if !ok {
		return BaseScorer{}, fmt.Errorf("unknown scorer %q, must be one of %v", name, Names())
	}

	return s, nil
}

// Configured multiplies a base scorer's output by a per-account weight,
// letting a config amplify (or mute) specific accounts.
type Configured struct {
	base    BaseScorer
	host    string
	amplify map[string]float64
}

// NewConfigured wraps base with the amplify_accounts weights. Account keys
// are expected in user@host form; the post author's acct is expanded with
// host before lookup since the local server reports its own users bare.
func NewConfigured(base BaseScorer, host string, amplify map[string]float64) Configured {
	return Configured{base: base, host: host, amplify: amplify}
}

func (s Configured) Name() string { return "Configured" + s.base.Name() }

func (s Configured) Score(p *digest.Post) float64 {
	weight := s.base.Weight(p)
	acct := digest.FullAcct(p.Status.Account.Acct, s.host)
	if amp, ok := s.amplify[acct]; ok {
		weight *= amp
	}

	return s.base.Engagement(p) * weight
}

// filteredNudge slightly deflates posts from filtered accounts so the
// keyword boost doesn't let them crowd out everything else.
const filteredNudge = -0.05

// Filtered gates posts from the configured accounts behind a keyword
// match: a filtered account's post only survives when it mentions one of
// the keywords, and then with a weight bump. Everyone else passes through
// to the base scorer untouched.
type Filtered struct {
	base     BaseScorer
	host     string
	accounts map[string]struct{}
	keywords []string
}

func NewFiltered(base BaseScorer, host string, accounts []string, keywords []string) Filtered {
	set := make(map[string]struct{}, len(accounts))
	for _, acct := range accounts {
		set[acct] = struct{}{}
	}

	return Filtered{base: base, host: host, accounts: set, keywords: keywords}
}

func (s Filtered) Name() string { return "Filtered" + s.base.Name() }

// IsFiltered reports whether the post's author is keyword-gated.
func (s Filtered) IsFiltered(p *digest.Post) bool {
	acct := digest.FullAcct(p.Status.Account.Acct, s.host)
	_, ok := s.accounts[acct]

	return ok
}

func (s Filtered) Score(p *digest.Post) float64 {
	if !s.IsFiltered(p) {
		return s.base.Score(p)
	}
	if !p.MatchesKeywords(s.keywords) {
		return -1
	}

	return s.base.Engagement(p)*(s.base.Weight(p)+1) + filteredNudge
}

// Memoized caches scores by status ID. Thresholding and sorting both
// re-score the same posts, and the wrapped scorers re-walk post content
// each time, so this saves real work on big timelines.
func Memoized(s Scorer) Scorer {
	cache, _ := lru.New[string, float64](4096)
	return &memoScorer{inner: s, cache: cache}
}

type memoScorer struct {
	inner Scorer
	cache *lru.Cache[string, float64]
}

func (m *memoScorer) Name() string { return m.inner.Name() }

func (m *memoScorer) Score(p *digest.Post) float64 {
	if score, ok := m.cache.Get(p.Status.ID); ok {
		return score
	}

	score := m.inner.Score(p)
	m.cache.Add(p.Status.ID, score)

	return score
}

func gmean(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += math.Log(v)
	}

	return math.Exp(sum / float64(len(values)))
}
