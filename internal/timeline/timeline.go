// Package timeline turns a raw Mastodon timeline into the candidate posts
// and boosts for a digest, applying the account's server-side filters and
// our own local ones.
package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"

	"github.com/RichardMN/mastodon-digest/internal/digest"
	"github.com/RichardMN/mastodon-digest/internal/mastodon"
)

// Client is the part of the Mastodon API the reader needs.
type Client interface {
	VerifyCredentials(ctx context.Context) (mastodon.Account, error)
	Filters(ctx context.Context) ([]mastodon.Filter, error)
	Timeline(ctx context.Context, sel mastodon.Selector, since time.Time, max int) ([]mastodon.Status, error)
}

// Hard cap on statuses pulled in one run, no matter the window.
const statusLimit = 1000

// Options tweak what gets dropped while reading.
type Options struct {
	// Drop posts whose text trips the profanity detector
	SkipProfane bool
}

// Fetch reads the selected timeline over the past `hours` hours and splits
// it into original posts and boosts, both deduplicated and filtered.
//
// Locally we drop anything we've already interacted with (reblogged,
// favourited, bookmarked), our own posts, and posts from accounts that
// opted out with #noindex or #nobot in their bio.
func Fetch(ctx context.Context, cli Client, sel mastodon.Selector, hours int, opts Options) (posts, boosts []*digest.Post, err error) {
	me, err := cli.VerifyCredentials(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching own account: %w", err)
	}
	myAcct := strings.ToLower(strings.TrimSpace(me.Acct))

	filters, err := cli.Filters(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching filters: %w", err)
	}
	matchers := filterMatchers(filters, "home")

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	statuses, err := cli.Timeline(ctx, sel, since, statusLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching timeline: %w", err)
	}

	seenURLs := make(map[string]struct{})
	for _, status := range statuses {
		boost := false
		if status.Reblog != nil {
			// Look at the boosted post instead of the wrapper
			status = *status.Reblog
			boost = true
		}

		post := digest.NewPost(status)
		if _, ok := seenURLs[post.URL()]; ok {
			continue
		}

		if !keep(post, myAcct, matchers, opts) {
			continue
		}
		seenURLs[post.URL()] = struct{}{}

		if boost {
			boosts = append(boosts, post)
		} else {
			posts = append(posts, post)
		}
	}

	slog.InfoContext(ctx, "timeline read",
		"timeline", sel.String(),
		"fetched", len(statuses),
		"posts", len(posts),
		"boosts", len(boosts),
	)

	return posts, boosts, nil
}

func keep(post *digest.Post, myAcct string, matchers []*regexp.Regexp, opts Options) bool {
	status := post.Status

	// Skip our own posts and anything we've interacted with already
	if status.Reblogged || status.Favourited || status.Bookmarked {
		return false
	}
	if strings.ToLower(strings.TrimSpace(status.Account.Acct)) == myAcct {
		return false
	}

	// Honor opt-outs in the author's bio
	note := strings.ToLower(status.Account.Note)
	if strings.Contains(note, "#noindex") || strings.Contains(note, "#nobot") {
		return false
	}

	text := post.ContentText()
	for _, m := range matchers {
		if m.MatchString(text) {
			return false
		}
	}

	if opts.SkipProfane && goaway.IsProfane(text) {
		return false
	}

	return true
}

// filterMatchers compiles the account's v1 filters for the given context.
// Servers leave applying these to the client.
func filterMatchers(filters []mastodon.Filter, context string) []*regexp.Regexp {
	var matchers []*regexp.Regexp
	for _, f := range filters {
		if !containsContext(f.Context, context) || f.Phrase == "" {
			continue
		}

		phrase := regexp.QuoteMeta(f.Phrase)
		if f.WholeWord {
			phrase = `\b` + phrase + `\b`
		}

		m, err := regexp.Compile(`(?i)` + phrase)
		if err != nil {
			slog.Warn("skipping unusable filter", "phrase", f.Phrase, "error", err)
			continue
		}
		matchers = append(matchers, m)
	}

	return matchers
}

func containsContext(contexts []string, want string) bool {
	for _, c := range contexts {
		if c == want {
			return true
		}
	}

	return false
}
