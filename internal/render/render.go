// Package render writes a digest out as themed HTML. Themes are embedded
// template directories; a theme provides the page and shares the post
// partials in templates/common.
package render

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sym01/htmlsanitizer"

	"github.com/RichardMN/mastodon-digest/internal/digest"
)

//go:embed templates
var templatesFS embed.FS

// Options control where and how the digest is written.
type Options struct {
	Theme     string
	OutputDir string

	// Fetch a readable preview card for each post's first external link
	LinkPreviews bool
}

type (
	// viewPost is a post shaped for the templates.
	viewPost struct {
		Score       float64
		URL         string
		HomeURL     string
		DisplayName string
		Acct        string
		Avatar      string
		CreatedAt   time.Time
		Content     template.HTML
		Preview     *Preview
	}

	viewContext struct {
		Hours        int
		TimelineName string
		Scorer       string
		Threshold    string
		RenderedAt   string
		Summary      string
		Posts        []viewPost
		Boosts       []viewPost
	}
)

// Themes lists the embedded theme names, sorted. A directory counts as a
// theme when it carries an index template.
func Themes() []string {
	entries, err := fs.ReadDir(templatesFS, "templates/themes")
	if err != nil {
		return nil
	}

	var themes []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fs.Stat(templatesFS, "templates/themes/"+e.Name()+"/index.html.tmpl"); err == nil {
			themes = append(themes, e.Name())
		}
	}
	sort.Strings(themes)

	return themes
}

// HasTheme reports whether the named theme exists.
func HasTheme(name string) bool {
	for _, t := range Themes() {
		if t == name {
			return true
		}
	}

	return false
}

// CheckOutputDir verifies the output directory exists. Callers run this
// before fetching anything so a typo'd path fails fast.
func CheckOutputDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("output directory not found: %s", dir)
	}

	return nil
}

// Render writes the digest to <output dir>/index.html with the given
// theme. The output directory must already exist.
func Render(ctx context.Context, d digest.Digest, opts Options) error {
	if err := CheckOutputDir(opts.OutputDir); err != nil {
		return err
	}
	if !HasTheme(opts.Theme) {
		return fmt.Errorf("unknown theme %q, must be one of %v", opts.Theme, Themes())
	}

	tmpl, err := template.ParseFS(templatesFS,
		"templates/common/*.tmpl",
		"templates/themes/"+opts.Theme+"/*.tmpl",
	)
	if err != nil {
		return fmt.Errorf("error parsing theme %q: %s", opts.Theme, err)
	}

	view, err := buildView(ctx, d, opts)
	if err != nil {
		return err
	}

	out, err := os.Create(filepath.Join(opts.OutputDir, "index.html"))
	if err != nil {
		return fmt.Errorf("error creating output file: %s", err)
	}
	defer out.Close()

	if err := tmpl.ExecuteTemplate(out, "index.html.tmpl", view); err != nil {
		return fmt.Errorf("error rendering digest: %s", err)
	}

	return nil
}

func buildView(ctx context.Context, d digest.Digest, opts Options) (viewContext, error) {
	var previewer *Previewer
	if opts.LinkPreviews {
		previewer = NewPreviewer()
		previewer.Warm(ctx, append(d.Posts, d.Boosts...))
	}

	view := viewContext{
		Hours:        d.Hours,
		TimelineName: d.Timeline,
		Scorer:       d.Scorer,
		Threshold:    d.Threshold,
		RenderedAt:   d.CreatedAt.UTC().Format("January 2, 2006 at 15:04:05 UTC"),
		Summary:      d.Summary,
	}

	var err error
	if view.Posts, err = viewPosts(d.Posts, d.BaseURL, previewer); err != nil {
		return viewContext{}, err
	}
	if view.Boosts, err = viewPosts(d.Boosts, d.BaseURL, previewer); err != nil {
		return viewContext{}, err
	}

	return view, nil
}

func viewPosts(posts []digest.ScoredPost, baseURL string, previewer *Previewer) ([]viewPost, error) {
	out := make([]viewPost, 0, len(posts))
	for _, sp := range posts {
		// Posts carry markup from arbitrary servers, so only a safe
		// subset of it goes into our own page
		safe, err := htmlsanitizer.SanitizeString(sp.Status.Content)
		if err != nil {
			return nil, fmt.Errorf("error sanitizing post %s: %s", sp.Status.ID, err)
		}

		vp := viewPost{
			Score:       sp.Score,
			URL:         sp.URL(),
			HomeURL:     sp.HomeURL(baseURL),
			DisplayName: sp.Status.Account.DisplayName,
			Acct:        sp.Status.Account.Acct,
			Avatar:      sp.Status.Account.Avatar,
			CreatedAt:   sp.Status.CreatedAt,
			Content:     template.HTML(safe),
		}
		if previewer != nil {
			if links := sp.LinkURLs(); len(links) > 0 {
				vp.Preview = previewer.Get(links[0])
			}
		}

		out = append(out, vp)
	}

	return out, nil
}
