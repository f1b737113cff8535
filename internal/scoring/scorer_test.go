package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RichardMN/mastodon-digest/internal/digest"
	"github.com/RichardMN/mastodon-digest/internal/mastodon"
)

func post(reblogs, favs, replies, followers int64) *digest.Post {
	return digest.NewPost(mastodon.Status{
		ID:              "id",
		ReblogsCount:    reblogs,
		FavouritesCount: favs,
		RepliesCount:    replies,
		Account:         mastodon.Account{Acct: "author", FollowersCount: followers},
	})
}

func TestSimpleScorer(t *testing.T) {
	s, err := ByName("Simple")
	require.NoError(t, err)

	// Geometric mean of (4+1) and (19+1)
	assert.InDelta(t, math.Sqrt(5*20), s.Score(post(4, 19, 100, 10)), 0.0001)

	// Replies don't count for the plain scorer
	assert.Equal(t, 0.0, s.Score(post(0, 0, 7, 10)))
}

func TestExtendedSimpleScorer(t *testing.T) {
	s, err := ByName("ExtendedSimple")
	require.NoError(t, err)

	expected := math.Cbrt(3 * 5 * 9) // (2+1)(4+1)(8+1)
	assert.InDelta(t, expected, s.Score(post(2, 4, 8, 10)), 0.0001)

	// Replies alone are enough here
	assert.Greater(t, s.Score(post(0, 0, 7, 10)), 0.0)
}

func TestWeightedScorers_DampenByFollowers(t *testing.T) {
	s, err := ByName("SimpleWeighted")
	require.NoError(t, err)

	small := s.Score(post(4, 19, 0, 100))
	big := s.Score(post(4, 19, 0, 10000))
	assert.Greater(t, small, big)

	assert.InDelta(t, math.Sqrt(5*20)/math.Sqrt(100), small, 0.0001)
}

func TestWeightedScorers_ZeroOrHiddenFollowers(t *testing.T) {
	s, err := ByName("ExtendedSimpleWeighted")
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.Score(post(5, 5, 5, 0)))
	assert.Equal(t, 0.0, s.Score(post(5, 5, 5, -1))) // hidden count
}

func TestByName_Unknown(t *testing.T) {
	_, err := ByName("Fancy")
	require.Error(t, err)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"ExtendedSimple", "ExtendedSimpleWeighted", "Simple", "SimpleWeighted"}, Names())
}

func TestConfiguredScorer(t *testing.T) {
	base, err := ByName("Simple")
	require.NoError(t, err)

	s := NewConfigured(base, "example.social", map[string]float64{
		"author@example.social": 3.0,
	})
	assert.Equal(t, "ConfiguredSimple", s.Name())

	// The author's bare acct should be expanded with the host before lookup
	amplified := s.Score(post(4, 19, 0, 10))
	assert.InDelta(t, 3*math.Sqrt(5*20), amplified, 0.0001)

	other := NewConfigured(base, "elsewhere.social", map[string]float64{
		"author@example.social": 3.0,
	})
	assert.InDelta(t, math.Sqrt(5*20), other.Score(post(4, 19, 0, 10)), 0.0001)
}

func TestFilteredScorer(t *testing.T) {
	base, err := ByName("Simple")
	require.NoError(t, err)

	s := NewFiltered(base, "example.social", []string{"author@example.social"}, []string{"climate"})
	assert.Equal(t, "FilteredSimple", s.Name())

	onTopic := digest.NewPost(mastodon.Status{
		ID:              "1",
		Content:         "<p>New climate report out today</p>",
		ReblogsCount:    4,
		FavouritesCount: 19,
		Account:         mastodon.Account{Acct: "author", FollowersCount: 10},
	})
	offTopic := digest.NewPost(mastodon.Status{
		ID:              "2",
		Content:         "<p>What I had for lunch</p>",
		ReblogsCount:    4,
		FavouritesCount: 19,
		Account:         mastodon.Account{Acct: "author", FollowersCount: 10},
	})
	unfiltered := digest.NewPost(mastodon.Status{
		ID:              "3",
		Content:         "<p>What I had for lunch</p>",
		ReblogsCount:    4,
		FavouritesCount: 19,
		Account:         mastodon.Account{Acct: "someone-else", FollowersCount: 10},
	})

	assert.True(t, s.IsFiltered(onTopic))
	assert.False(t, s.IsFiltered(unfiltered))

	// Off-topic posts from a filtered account are vetoed
	assert.Equal(t, -1.0, s.Score(offTopic))

	// On-topic posts get the weight bump and the small nudge
	assert.InDelta(t, math.Sqrt(5*20)*2+filteredNudge, s.Score(onTopic), 0.0001)

	// Everyone else scores as normal
	assert.InDelta(t, math.Sqrt(5*20), s.Score(unfiltered), 0.0001)
}

type countingScorer struct {
	calls int
}

func (c *countingScorer) Name() string { return "Counting" }
func (c *countingScorer) Score(p *digest.Post) float64 {
	c.calls++
	return 42
}

func TestMemoized(t *testing.T) {
	inner := &countingScorer{}
	s := Memoized(inner)

	p := post(1, 1, 1, 10)
	assert.Equal(t, 42.0, s.Score(p))
	assert.Equal(t, 42.0, s.Score(p))
	assert.Equal(t, 42.0, s.Score(p))

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "Counting", s.Name())
}

func TestGmean(t *testing.T) {
	assert.InDelta(t, 4.0, gmean(2, 8), 0.0001)
	assert.InDelta(t, 3.0, gmean(3, 3, 3), 0.0001)
	assert.Equal(t, 0.0, gmean())
}
