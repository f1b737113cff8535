package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RichardMN/mastodon-digest/internal/digest"
	"github.com/RichardMN/mastodon-digest/internal/mastodon"
)

func TestThresholdFromName(t *testing.T) {
	tests := []struct {
		name     string
		expected Threshold
	}{
		{name: "lax", expected: ThresholdLax},
		{name: "normal", expected: ThresholdNormal},
		{name: "strict", expected: ThresholdStrict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ThresholdFromName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.name, got.Name())
		})
	}

	_, err := ThresholdFromName("mid")
	require.Error(t, err)
}

func TestPercentile(t *testing.T) {
	values := []float64{15, 20, 35, 40, 50}

	assert.InDelta(t, 46, percentile(values, 90), 0.0001)
	assert.InDelta(t, 35, percentile(values, 50), 0.0001)
	assert.InDelta(t, 50, percentile(values, 100), 0.0001)
	assert.InDelta(t, 15, percentile(values, 0), 0.0001)

	assert.Equal(t, 0.0, percentile(nil, 95))
	assert.Equal(t, 7.0, percentile([]float64{7}, 95))
}

func TestRank_KeepsTopPercentile(t *testing.T) {
	// 100 posts with favourite counts 1..100, uniform weight
	posts := make([]*digest.Post, 0, 100)
	for i := 1; i <= 100; i++ {
		posts = append(posts, digest.NewPost(mastodon.Status{
			ID:              fmt.Sprintf("%d", i),
			ReblogsCount:    int64(i),
			FavouritesCount: int64(i),
			Account:         mastodon.Account{FollowersCount: 100},
		}))
	}

	scorer, err := ByName("Simple")
	require.NoError(t, err)

	kept := ThresholdNormal.Rank(posts, scorer)
	require.NotEmpty(t, kept)
	assert.LessOrEqual(t, len(kept), 6)

	// Sorted by descending score, best post first
	assert.Equal(t, "100", kept[0].Status.ID)
	for i := 1; i < len(kept); i++ {
		assert.GreaterOrEqual(t, kept[i-1].Score, kept[i].Score)
	}

	// A laxer threshold keeps at least as many posts
	lax := ThresholdLax.Rank(posts, scorer)
	assert.GreaterOrEqual(t, len(lax), len(kept))
}

func TestRank_DropsVetoedPosts(t *testing.T) {
	base, err := ByName("Simple")
	require.NoError(t, err)
	scorer := NewFiltered(base, "example.social", []string{"noisy@example.social"}, []string{"golang"})

	posts := []*digest.Post{
		digest.NewPost(mastodon.Status{
			ID:              "vetoed",
			Content:         "<p>lunch again</p>",
			ReblogsCount:    1000,
			FavouritesCount: 1000,
			Account:         mastodon.Account{Acct: "noisy", FollowersCount: 10},
		}),
		digest.NewPost(mastodon.Status{
			ID:              "kept",
			Content:         "<p>a fine post</p>",
			ReblogsCount:    3,
			FavouritesCount: 3,
			Account:         mastodon.Account{Acct: "quiet", FollowersCount: 10},
		}),
	}

	kept := ThresholdLax.Rank(posts, scorer)
	require.Len(t, kept, 1)
	assert.Equal(t, "kept", kept[0].Status.ID)
}

func TestRank_Empty(t *testing.T) {
	scorer, err := ByName("Simple")
	require.NoError(t, err)
	assert.Empty(t, ThresholdNormal.Rank(nil, scorer))
}
