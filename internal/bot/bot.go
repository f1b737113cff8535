// Package bot reblogs the top posts of a digest instead of rendering them.
// Boost history lives in the store so repeated runs stay polite: a status is
// never boosted twice, and authors boosted recently get a rest.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/RichardMN/mastodon-digest/internal/digest"
)

const (
	// Reblogs are unlisted so the bot does not flood public timelines.
	boostVisibility = "unlisted"

	// At most this many reblogs per run.
	maxBoostsPerRun = 20

	// Authors appearing in the last restWindow boosts are skipped.
	restWindow = 40
)

// Reblogger is the slice of the Mastodon client the bot needs.
type Reblogger interface {
	Reblog(ctx context.Context, statusID, visibility string) error
}

// History tracks what the bot has already boosted.
type History interface {
	HasBoosted(ctx context.Context, statusID string) (bool, error)
	RecentBoostAccts(ctx context.Context, n int) ([]string, error)
	RecordBoost(ctx context.Context, runID, statusID, acct, url string) error
}

type Bot struct {
	client  Reblogger
	history History
}

func New(client Reblogger, history History) *Bot {
	return &Bot{client: client, history: history}
}

// Run reblogs the digest's posts in score order and returns how many were
// boosted. A failed reblog ends the run early; everything boosted before it
// is already recorded.
func (b *Bot) Run(ctx context.Context, runID string, d digest.Digest) (int, error) {
	resting, err := b.restingAccts(ctx)
	if err != nil {
		return 0, err
	}

	boosted := 0
	for _, sp := range d.Posts {
		if boosted >= maxBoostsPerRun {
			break
		}

		acct := strings.ToLower(sp.Status.Account.Acct)
		if resting[acct] {
			slog.DebugContext(ctx, "skipping recently boosted author", "acct", acct)
			continue
		}

		seen, err := b.history.HasBoosted(ctx, sp.Status.ID)
		if err != nil {
			return boosted, fmt.Errorf("error checking boost history: %s", err)
		}
		if seen {
			continue
		}

		if err := b.client.Reblog(ctx, sp.Status.ID, boostVisibility); err != nil {
			return boosted, fmt.Errorf("error reblogging %s: %s", sp.Status.ID, err)
		}
		if err := b.history.RecordBoost(ctx, runID, sp.Status.ID, acct, sp.URL()); err != nil {
			return boosted, fmt.Errorf("error recording boost: %s", err)
		}

		slog.InfoContext(ctx, "boosted post", "status_id", sp.Status.ID, "acct", acct, "score", sp.Score)
		boosted++
	}

	return boosted, nil
}

func (b *Bot) restingAccts(ctx context.Context) (map[string]bool, error) {
	accts, err := b.history.RecentBoostAccts(ctx, restWindow)
	if err != nil {
		return nil, fmt.Errorf("error fetching recent boost authors: %s", err)
	}

	resting := make(map[string]bool, len(accts))
	for _, acct := range accts {
		resting[strings.ToLower(acct)] = true
	}

	return resting, nil
}
