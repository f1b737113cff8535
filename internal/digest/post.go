// Package digest holds the domain model for a digest run: posts wrapped
// with derived content helpers and the parameters that produced them.
package digest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/RichardMN/mastodon-digest/internal/mastodon"
)

// Post wraps a status with the helpers scoring and rendering need. The
// derived text and links are computed once since both get consulted
// repeatedly while filtering and scoring.
type Post struct {
	Status mastodon.Status

	text  string
	links []string
}

var stripPolicy = bluemonday.StrictPolicy()

// NewPost wraps a status, pre-extracting its plain text and link URLs.
func NewPost(status mastodon.Status) *Post {
	return &Post{
		Status: status,
		text:   strings.TrimSpace(stripPolicy.Sanitize(status.Content)),
		links:  extractLinks(status.Content),
	}
}

// URL is the canonical URL of the post on its author's server.
func (p *Post) URL() string {
	return p.Status.URL
}

// HomeURL is the post's URL on our own server, which keeps follow and
// boost buttons working for the digest reader.
func (p *Post) HomeURL(baseURL string) string {
	return fmt.Sprintf("%s/@%s/%s", baseURL, p.Status.Account.Acct, p.Status.ID)
}

// ContentText is the post content with all markup stripped.
func (p *Post) ContentText() string {
	return p.text
}

// LinkURLs returns the href of every plain anchor in the post content.
// Anchors with a class are skipped: Mastodon marks up mentions and
// hashtags with classes, and those aren't outbound links.
func (p *Post) LinkURLs() []string {
	return p.links
}

var twitterMirrorStubs = []*regexp.Regexp{
	regexp.MustCompile(`.*nitter`),
	regexp.MustCompile(`.*/n\.respublicae\.eu`),
	regexp.MustCompile(`.*/t\.co`),
}

// FromTwitter estimates, between 0 and 1, how likely the post is a
// cross-post from Twitter by counting links to known mirror hosts.
func (p *Post) FromTwitter() float64 {
	score := 0.0
	for _, link := range p.links {
		for _, stub := range twitterMirrorStubs {
			if stub.MatchString(link) {
				score += 0.4
			}
		}
	}

	return min(score, 1.0)
}

var wordPattern = regexp.MustCompile(`\w+`)

// words returns the set of lowercased words in the post text.
func (p *Post) words() map[string]struct{} {
	found := wordPattern.FindAllString(strings.ToLower(p.text), -1)
	set := make(map[string]struct{}, len(found))
	for _, w := range found {
		set[w] = struct{}{}
	}

	return set
}

// MatchesKeywords reports whether any of the given lowercase keywords
// appears as a whole word in the post text.
func (p *Post) MatchesKeywords(keywords []string) bool {
	words := p.words()
	for _, kw := range keywords {
		if _, ok := words[strings.ToLower(kw)]; ok {
			return true
		}
	}

	return false
}

// CountKeywords counts how many of the given keywords appear in the post.
func (p *Post) CountKeywords(keywords []string) int {
	var (
		words = p.words()
		n     int
	)
	for _, kw := range keywords {
		if _, ok := words[strings.ToLower(kw)]; ok {
			n++
		}
	}

	return n
}

// FullAcct expands a bare account name with the given host, so "user"
// becomes "user@host" while "user@elsewhere.social" is left alone.
func FullAcct(acct, defaultHost string) string {
	if acct == "" {
		return ""
	}
	if strings.Contains(acct, "@") {
		return acct
	}

	return acct + "@" + defaultHost
}

func extractLinks(content string) []string {
	node, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var links []string
	for n := range node.Descendants() {
		if n.Type != html.ElementNode || n.Data != "a" {
			continue
		}

		var href, class string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "href":
				href = attr.Val
			case "class":
				class = attr.Val
			}
		}
		if href != "" && class == "" {
			links = append(links, href)
		}
	}

	return links
}
