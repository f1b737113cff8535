// Package summary asks Claude for a one-paragraph introduction to a digest.
// It is strictly optional: the digest renders fine without it, so callers
// should treat an error here as a degraded run, not a failed one.
package summary

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/RichardMN/mastodon-digest/internal/digest"
)

//go:embed system_prompt.txt
var systemPrompt string

// Keep the prompt bounded no matter how busy the timeline was.
const (
	maxPosts     = 15
	maxPostRunes = 500
)

// Summarizer wraps a Claude client for digest introductions.
type Summarizer struct {
	client anthropic.Client
}

func New(apiKey string) *Summarizer {
	return &Summarizer{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Summarize produces the introduction paragraph for the digest.
func (s *Summarizer) Summarize(ctx context.Context, d digest.Digest) (string, error) {
	posts := d.Posts
	if len(posts) > maxPosts {
		posts = posts[:maxPosts]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top posts from the last %d hours of the %s timeline:\n\n", d.Hours, d.Timeline)
	for _, sp := range posts {
		text := sp.ContentText()
		if runes := []rune(text); len(runes) > maxPostRunes {
			text = string(runes[:maxPostRunes])
		}
		fmt.Fprintf(&b, "- @%s: %s\n", sp.Status.Account.Acct, text)
	}

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaudeHaiku4_5,
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{{
			Text: systemPrompt,
		}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(b.String())),
		},
	})
	if err != nil {
		return "", fmt.Errorf("error summarizing digest: %s", err)
	}

	var out strings.Builder
	for _, content := range resp.Content {
		out.WriteString(content.Text)
	}

	return strings.TrimSpace(out.String()), nil
}
