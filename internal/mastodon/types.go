package mastodon

import "time"

type (
	// Account is a Mastodon account as returned by the REST API.
	Account struct {
		ID             string `json:"id"`
		Acct           string `json:"acct"`
		Username       string `json:"username"`
		DisplayName    string `json:"display_name"`
		URL            string `json:"url"`
		Avatar         string `json:"avatar"`
		Note           string `json:"note"`
		FollowersCount int64  `json:"followers_count"`
	}

	// Status is a single post, possibly wrapping another one when it's
	// a boost.
	Status struct {
		ID        string    `json:"id"`
		URI       string    `json:"uri"`
		URL       string    `json:"url"`
		CreatedAt time.Time `json:"created_at"`
		Content   string    `json:"content"`
		Account   Account   `json:"account"`
		Reblog    *Status   `json:"reblog"`

		ReblogsCount    int64 `json:"reblogs_count"`
		FavouritesCount int64 `json:"favourites_count"`
		RepliesCount    int64 `json:"replies_count"`

		// Our own relationship to the status
		Reblogged  bool `json:"reblogged"`
		Favourited bool `json:"favourited"`
		Bookmarked bool `json:"bookmarked"`
	}

	// Filter is a v1 server-side filter that clients are expected to
	// apply themselves.
	Filter struct {
		ID        string   `json:"id"`
		Phrase    string   `json:"phrase"`
		Context   []string `json:"context"`
		WholeWord bool     `json:"whole_word"`
	}

	// Tag is a hashtag the account follows.
	Tag struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
)
