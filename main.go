// Mastodon-digest builds a digest of the most interesting posts on your
// timeline.
//
// It reads a window of your home (or another) timeline, scores every post
// by engagement, keeps the ones above a percentile threshold, and either
// renders them as a themed HTML page or boosts them from the logged-in
// account.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/RichardMN/mastodon-digest/internal/bot"
	"github.com/RichardMN/mastodon-digest/internal/config"
	"github.com/RichardMN/mastodon-digest/internal/digest"
	"github.com/RichardMN/mastodon-digest/internal/mastodon"
	"github.com/RichardMN/mastodon-digest/internal/render"
	"github.com/RichardMN/mastodon-digest/internal/scoring"
	"github.com/RichardMN/mastodon-digest/internal/store"
	"github.com/RichardMN/mastodon-digest/internal/summary"
	"github.com/RichardMN/mastodon-digest/internal/timeline"
	"github.com/RichardMN/mastodon-digest/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Secrets can live in a .env next to the binary
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("error loading .env: %s", err)
	}

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags config.Flags
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "mastodon-digest",
		Short:         "Build a digest of the most interesting posts on your timeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.Changed = cmd.Flags().Changed
			return runDigest(cmd.Context(), cfgPath, cmd.Flags().Changed("config"), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Timeline, "timeline", "f", "home",
		"timeline to read: home, local, federated, hashtag:<tag> or list:<id>")
	cmd.Flags().IntVarP(&flags.Hours, "hours", "n", 12, "hours of timeline to read, 1 to 24")
	cmd.Flags().StringVarP(&flags.Scorer, "scorer", "s", "ExtendedSimpleWeighted",
		fmt.Sprintf("scoring method, one of %v", scoring.Names()))
	cmd.Flags().StringVarP(&flags.Threshold, "threshold", "t", "normal",
		fmt.Sprintf("how picky the digest is, one of %v", scoring.ThresholdNames()))
	cmd.Flags().StringVarP(&flags.OutputDir, "output-dir", "o", "./render/", "existing directory to write the digest into")
	cmd.Flags().StringVar(&flags.Theme, "theme", "default", "theme to render with; see the themes subcommand")
	cmd.Flags().StringVar(&flags.OutputType, "output", "html", "what to do with the digest: html or bot")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "path to the YAML config file")

	cmd.AddCommand(newThemesCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func newThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List the available themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range render.Themes() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func runDigest(ctx context.Context, cfgPath string, explicitCfg bool, flags config.Flags) error {
	env, err := config.LoadEnv(ctx)
	if err != nil {
		return fmt.Errorf("error parsing environment: %s", err)
	}
	slog.SetDefault(logger.New(env.LoggerFormat))

	cfg, err := config.Resolve(cfgPath, explicitCfg, flags)
	if err != nil {
		return err
	}

	sel, err := mastodon.ParseSelector(cfg.Timeline)
	if err != nil {
		return err
	}
	threshold, err := scoring.ThresholdFromName(cfg.Threshold)
	if err != nil {
		return err
	}
	base, err := scoring.ByName(cfg.Scorer)
	if err != nil {
		return err
	}
	if cfg.OutputType == "html" {
		if !render.HasTheme(cfg.Theme) {
			return fmt.Errorf("unknown theme %q, must be one of %v", cfg.Theme, render.Themes())
		}
		// Fail on a bad output path before any network work happens
		if err := render.CheckOutputDir(cfg.OutputDir); err != nil {
			return err
		}
	}

	// Every record from here on carries the run parameters
	ctx = logger.Ctx(ctx,
		slog.String("timeline", sel.String()),
		slog.Int("hours", cfg.Hours),
	)

	st, err := store.Open(env.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	cli := mastodon.New(ctx, env.MastodonBaseURL, env.MastodonToken)

	posts, boosts, err := timeline.Fetch(ctx, cli, sel, cfg.Hours, timeline.Options{
		SkipProfane: cfg.SkipProfane,
	})
	if err != nil {
		return err
	}

	// Filtered accounts get through on keyword matches, and the hashtags
	// the account follows count as keywords too
	if len(cfg.AmplifyAccounts) == 0 && len(cfg.FilteredAccounts) > 0 {
		tags, err := cli.FollowedTags(ctx)
		if err != nil {
			return err
		}
		for _, tag := range tags {
			cfg.Keywords = append(cfg.Keywords, tag.Name)
		}
	}

	scorer := buildScorer(base, cli.Host(), cfg)
	d := digest.Digest{
		Hours:     cfg.Hours,
		Timeline:  sel.String(),
		Scorer:    scorer.Name(),
		Threshold: threshold.Name(),
		BaseURL:   cli.BaseURL(),
		CreatedAt: time.Now().UTC(),
		Posts:     threshold.Rank(posts, scorer),
		Boosts:    threshold.Rank(boosts, scorer),
	}
	if d.Empty() {
		return fmt.Errorf("no posts in the last %d hours made the cut, try a wider window or a lower threshold", cfg.Hours)
	}

	if cfg.Summarize {
		d.Summary = summarize(ctx, env, d)
	}

	run, err := st.RecordRun(ctx, store.Run{
		Timeline:   d.Timeline,
		Scorer:     d.Scorer,
		Threshold:  d.Threshold,
		Hours:      d.Hours,
		OutputType: cfg.OutputType,
		PostCount:  len(d.Posts),
		BoostCount: len(d.Boosts),
	})
	if err != nil {
		return err
	}

	if cfg.OutputType == "bot" {
		boosted, err := bot.New(cli, st).Run(ctx, run.ID, d)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "bot run finished", "boosted", boosted, "candidates", len(d.Posts))
		return nil
	}

	if err := render.Render(ctx, d, render.Options{
		Theme:        cfg.Theme,
		OutputDir:    cfg.OutputDir,
		LinkPreviews: cfg.LinkPreviews,
	}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "digest rendered", "dir", cfg.OutputDir, "posts", len(d.Posts), "boosts", len(d.Boosts))

	return nil
}

// buildScorer wraps the base scorer with per-account tweaks from the
// config, then memoizes it since ranking scores each post more than once.
func buildScorer(base scoring.BaseScorer, host string, cfg config.Config) scoring.Scorer {
	var scorer scoring.Scorer = base
	switch {
	case len(cfg.AmplifyAccounts) > 0:
		scorer = scoring.NewConfigured(base, host, cfg.AmplifyAccounts)
	case len(cfg.FilteredAccounts) > 0:
		scorer = scoring.NewFiltered(base, host, cfg.FilteredAccounts, cfg.Keywords)
	}

	return scoring.Memoized(scorer)
}

// summarize asks Claude for the intro paragraph. The digest goes out with
// or without it, so a failure only logs.
func summarize(ctx context.Context, env config.Env, d digest.Digest) string {
	if env.AnthropicAPIKey == "" {
		slog.Warn("summarize is on but ANTHROPIC_API_KEY isn't set, skipping summary")
		return ""
	}

	sum, err := summary.New(env.AnthropicAPIKey).Summarize(ctx, d)
	if err != nil {
		slog.Warn("error summarizing digest, continuing without", "error", err)
		return ""
	}

	return sum
}
