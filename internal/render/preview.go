package render

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/RichardMN/mastodon-digest/internal/digest"
)

// Preview is a small card for a link found in a post.
type Preview struct {
	URL      string
	Title    string
	Excerpt  string
	SiteName string
}

// Previewer fetches readable previews for linked pages. Results are
// cached so a link shared by several posts is only fetched once, and a
// failed fetch just means no card.
type Previewer struct {
	client *http.Client
	cache  *lru.Cache[string, *Preview]
}

func NewPreviewer() *Previewer {
	cache, _ := lru.New[string, *Preview](256)
	return &Previewer{
		client: &http.Client{Timeout: 5 * time.Second},
		cache:  cache,
	}
}

const maxExcerptLen = 280

// Warm fetches previews for each post's first link, a few at a time.
func (p *Previewer) Warm(ctx context.Context, posts []digest.ScoredPost) {
	var (
		g, gCtx = errgroup.WithContext(ctx)
		seen    = make(map[string]struct{})
	)
	g.SetLimit(4)

	for _, sp := range posts {
		links := sp.LinkURLs()
		if len(links) == 0 {
			continue
		}
		link := links[0]
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}

		g.Go(func() error {
			p.fetch(gCtx, link)
			return nil
		})
	}

	g.Wait()
}

// Get returns the cached preview for a link, or nil when there isn't one.
func (p *Previewer) Get(link string) *Preview {
	preview, _ := p.cache.Get(link)
	return preview
}

func (p *Previewer) fetch(ctx context.Context, link string) {
	if _, ok := p.cache.Get(link); ok {
		return
	}

	parsed, err := url.Parse(link)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Debug("skipping link preview", "url", link, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		slog.Debug("skipping unreadable link", "url", link, "error", err)
		return
	}

	p.cache.Add(link, &Preview{
		URL:      link,
		Title:    article.Title,
		Excerpt:  truncateExcerpt(article.Excerpt),
		SiteName: article.SiteName,
	})
}

// truncateExcerpt bounds the excerpt, cutting on a rune boundary so a
// multi-byte character is never split.
func truncateExcerpt(s string) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > maxExcerptLen {
		return string(runes[:maxExcerptLen])
	}

	return s
}
