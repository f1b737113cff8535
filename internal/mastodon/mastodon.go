// Package mastodon is a small REST client for the handful of Mastodon
// endpoints the digest needs: reading timelines, checking who we are,
// fetching filters, and boosting statuses.
package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"
)

// Selector names a timeline to read. Kind is one of "home", "local",
// "federated", "list" or "hashtag"; Arg carries the list ID or tag name.
type Selector struct {
	Kind string
	Arg  string
}

// String renders the selector back into its config form, e.g. "list:4".
func (s Selector) String() string {
	if s.Arg == "" {
		return s.Kind
	}
	return s.Kind + ":" + s.Arg
}

var listIDPattern = regexp.MustCompile(`^[0-9]+$`)

// ParseSelector interprets a timeline string from the config or command
// line. Unrecognized kinds fall back to the home timeline, which keeps the
// rendered output sane when someone typos the value.
func ParseSelector(timeline string) (Selector, error) {
	timeline = strings.ToLower(strings.TrimSpace(timeline))

	kind, arg, _ := strings.Cut(timeline, ":")
	switch kind {
	case "home", "local", "federated":
		return Selector{Kind: kind}, nil
	case "hashtag":
		if arg == "" {
			return Selector{}, fmt.Errorf("hashtag timeline needs a tag, e.g. hashtag:golang")
		}
		return Selector{Kind: kind, Arg: strings.TrimPrefix(arg, "#")}, nil
	case "list":
		if !listIDPattern.MatchString(arg) {
			return Selector{}, fmt.Errorf("list timeline ID must be numeric, e.g. https://example.social/lists/4 would be list:4")
		}
		return Selector{Kind: kind, Arg: arg}, nil
	default:
		return Selector{Kind: "home"}, nil
	}
}

// Client talks to a single Mastodon server on behalf of one account.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the server at baseURL, authenticating every
// request with the given access token.
func New(ctx context.Context, baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
		})),
	}
}

// BaseURL is the normalized server URL, without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Host is the server's hostname, used to expand bare account names into
// the user@host form.
func (c *Client) Host() string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// SnowflakeID converts a point in time into a Mastodon status ID, which
// embeds the timestamp in its upper bits. Timelines are paged with status
// IDs, so this is how "everything after 8am" becomes a min_id.
func SnowflakeID(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixMilli()<<16)
}

// get performs a GET with retries on transient failures. The response body
// is decoded into out, and the Link header is returned for pagination.
func (c *Client) get(ctx context.Context, rawURL string, out any) (http.Header, error) {
	var header http.Header

	backoff := retry.WithMaxRetries(4, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// Network errors are worth another attempt
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		header = resp.Header
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return header, nil
}

// VerifyCredentials returns the account the token belongs to.
func (c *Client) VerifyCredentials(ctx context.Context) (Account, error) {
	var acct Account
	if _, err := c.get(ctx, c.baseURL+"/api/v1/accounts/verify_credentials", &acct); err != nil {
		return Account{}, fmt.Errorf("error verifying credentials: %w", err)
	}

	return acct, nil
}

// Filters fetches the account's v1 filters so they can be applied locally.
func (c *Client) Filters(ctx context.Context) ([]Filter, error) {
	var filters []Filter
	if _, err := c.get(ctx, c.baseURL+"/api/v1/filters", &filters); err != nil {
		return nil, fmt.Errorf("error fetching filters: %w", err)
	}

	return filters, nil
}

// FollowedTags fetches the hashtags the account follows.
func (c *Client) FollowedTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if _, err := c.get(ctx, c.baseURL+"/api/v1/followed_tags", &tags); err != nil {
		return nil, fmt.Errorf("error fetching followed tags: %w", err)
	}

	return tags, nil
}

func (c *Client) timelineURL(sel Selector) (string, error) {
	switch sel.Kind {
	case "home":
		return c.baseURL + "/api/v1/timelines/home", nil
	case "local":
		return c.baseURL + "/api/v1/timelines/public?local=true", nil
	case "federated":
		return c.baseURL + "/api/v1/timelines/public", nil
	case "hashtag":
		return c.baseURL + "/api/v1/timelines/tag/" + url.PathEscape(sel.Arg), nil
	case "list":
		return c.baseURL + "/api/v1/timelines/list/" + url.PathEscape(sel.Arg), nil
	default:
		return "", fmt.Errorf("unknown timeline kind %q", sel.Kind)
	}
}

// Timeline reads the selected timeline from `since` forward, walking the
// Link header's rel="prev" pages until the server runs out of newer
// statuses or max statuses have been seen.
func (c *Client) Timeline(ctx context.Context, sel Selector, since time.Time, max int) ([]Status, error) {
	base, err := c.timelineURL(sel)
	if err != nil {
		return nil, err
	}

	pageURL := base
	if strings.Contains(pageURL, "?") {
		pageURL += "&min_id=" + SnowflakeID(since)
	} else {
		pageURL += "?min_id=" + SnowflakeID(since)
	}

	var all []Status
	for pageURL != "" && len(all) < max {
		var page []Status
		header, err := c.get(ctx, pageURL, &page)
		if err != nil {
			return nil, fmt.Errorf("error fetching timeline page: %w", err)
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		pageURL = linkByRel(header.Get("Link"), "prev")
	}

	if len(all) > max {
		all = all[:max]
	}

	return all, nil
}

// Reblog boosts a status from the authenticated account.
func (c *Client) Reblog(ctx context.Context, statusID, visibility string) error {
	form := url.Values{"visibility": {visibility}}
	endpoint := fmt.Sprintf("%s/api/v1/statuses/%s/reblog", c.baseURL, url.PathEscape(statusID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error boosting status %s: %w", statusID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("error boosting status %s: unexpected status code %d", statusID, resp.StatusCode)
	}

	return nil
}

// linkByRel pulls the URL for the given rel out of an RFC 5988 Link
// header. Returns "" when the rel isn't present.
func linkByRel(header, rel string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}

		linkURL := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		for _, seg := range segments[1:] {
			seg = strings.TrimSpace(seg)
			if seg == fmt.Sprintf(`rel="%s"`, rel) || seg == "rel="+rel {
				return linkURL
			}
		}
	}

	return ""
}
