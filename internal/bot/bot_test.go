package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RichardMN/mastodon-digest/internal/digest"
	"github.com/RichardMN/mastodon-digest/internal/mastodon"
)

type fakeReblogger struct {
	boosted    []string
	visibility string
	failOn     string
}

func (f *fakeReblogger) Reblog(_ context.Context, statusID, visibility string) error {
	if statusID == f.failOn {
		return errors.New("boom")
	}
	f.boosted = append(f.boosted, statusID)
	f.visibility = visibility
	return nil
}

type fakeHistory struct {
	seen     map[string]bool
	recent   []string
	recorded []string
}

func (f *fakeHistory) HasBoosted(_ context.Context, statusID string) (bool, error) {
	return f.seen[statusID], nil
}

func (f *fakeHistory) RecentBoostAccts(_ context.Context, n int) ([]string, error) {
	if len(f.recent) > n {
		return f.recent[:n], nil
	}
	return f.recent, nil
}

func (f *fakeHistory) RecordBoost(_ context.Context, _, statusID, _, _ string) error {
	f.recorded = append(f.recorded, statusID)
	return nil
}

func scoredPost(id, acct string, score float64) digest.ScoredPost {
	return digest.ScoredPost{
		Post: digest.NewPost(mastodon.Status{
			ID:      id,
			URL:     "https://example.social/@" + acct + "/" + id,
			Account: mastodon.Account{Acct: acct},
		}),
		Score: score,
	}
}

func TestRun_BoostsInOrder(t *testing.T) {
	client := &fakeReblogger{}
	history := &fakeHistory{seen: map[string]bool{}}
	b := New(client, history)

	d := digest.Digest{Posts: []digest.ScoredPost{
		scoredPost("1", "alice", 3),
		scoredPost("2", "bob", 2),
		scoredPost("3", "carol", 1),
	}}

	n, err := b.Run(context.Background(), "run-1", d)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"1", "2", "3"}, client.boosted)
	assert.Equal(t, []string{"1", "2", "3"}, history.recorded)
	assert.Equal(t, "unlisted", client.visibility)
}

func TestRun_SkipsAlreadyBoosted(t *testing.T) {
	client := &fakeReblogger{}
	history := &fakeHistory{seen: map[string]bool{"1": true}}
	b := New(client, history)

	d := digest.Digest{Posts: []digest.ScoredPost{
		scoredPost("1", "alice", 3),
		scoredPost("2", "bob", 2),
	}}

	n, err := b.Run(context.Background(), "run-1", d)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"2"}, client.boosted)
}

func TestRun_RestsRecentAuthors(t *testing.T) {
	client := &fakeReblogger{}
	history := &fakeHistory{
		seen:   map[string]bool{},
		recent: []string{"Alice@other.social"},
	}
	b := New(client, history)

	d := digest.Digest{Posts: []digest.ScoredPost{
		scoredPost("1", "alice@other.social", 3),
		scoredPost("2", "bob", 2),
	}}

	n, err := b.Run(context.Background(), "run-1", d)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"2"}, client.boosted)
}

func TestRun_CapsPerRun(t *testing.T) {
	client := &fakeReblogger{}
	history := &fakeHistory{seen: map[string]bool{}}
	b := New(client, history)

	var posts []digest.ScoredPost
	for i := range 30 {
		posts = append(posts, scoredPost(fmt.Sprintf("%d", i), fmt.Sprintf("acct%d", i), float64(30-i)))
	}

	n, err := b.Run(context.Background(), "run-1", digest.Digest{Posts: posts})
	require.NoError(t, err)

	assert.Equal(t, 20, n)
	assert.Len(t, client.boosted, 20)
}

func TestRun_StopsOnReblogError(t *testing.T) {
	client := &fakeReblogger{failOn: "2"}
	history := &fakeHistory{seen: map[string]bool{}}
	b := New(client, history)

	d := digest.Digest{Posts: []digest.ScoredPost{
		scoredPost("1", "alice", 3),
		scoredPost("2", "bob", 2),
		scoredPost("3", "carol", 1),
	}}

	n, err := b.Run(context.Background(), "run-1", d)
	require.Error(t, err)

	// The first boost landed and stayed recorded
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"1"}, history.recorded)
}
