// Package config resolves the digest's settings from three layers:
// built-in defaults, an optional YAML config file, and command-line flags,
// in increasing order of precedence. Credentials come from the environment
// and never from the file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the config file is looked for when -c isn't given.
const DefaultPath = "./cfg.yaml"

// Env holds everything sourced from the environment.
type Env struct {
	MastodonToken   string `env:"MASTODON_TOKEN, required"`
	MastodonBaseURL string `env:"MASTODON_BASE_URL, required"`

	// Where boost history and past runs are kept
	Database string `env:"DATABASE, default=./mastodon-digest.db"`

	// Only needed when the summarize option is on
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

// LoadEnv parses the environment.
func LoadEnv(ctx context.Context) (Env, error) {
	var e Env
	if err := envconfig.Process(ctx, &e); err != nil {
		return Env{}, err
	}
	e.MastodonBaseURL = strings.TrimRight(strings.TrimSpace(e.MastodonBaseURL), "/")

	return e, nil
}

// ServeEnv is the smaller environment the serve subcommand needs. Hosting
// the archive takes no Mastodon credentials.
type ServeEnv struct {
	Database     string `env:"DATABASE, default=./mastodon-digest.db"`
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

// LoadServeEnv parses the environment for the serve subcommand.
func LoadServeEnv(ctx context.Context) (ServeEnv, error) {
	var e ServeEnv
	if err := envconfig.Process(ctx, &e); err != nil {
		return ServeEnv{}, err
	}

	return e, nil
}

// Config is a fully resolved set of digest options.
type Config struct {
	Timeline   string
	Scorer     string
	Hours      int
	Threshold  string
	OutputDir  string
	Theme      string
	OutputType string

	AmplifyAccounts  map[string]float64
	FilteredAccounts []string
	Keywords         []string

	SkipProfane  bool
	LinkPreviews bool
	Summarize    bool
}

// Default returns the built-in options, before any file or flag is
// applied.
func Default() Config {
	return Config{
		Timeline:   "home",
		Scorer:     "ExtendedSimpleWeighted",
		Hours:      12,
		Threshold:  "normal",
		OutputDir:  "./render/",
		Theme:      "default",
		OutputType: "html",
	}
}

// fileConfig mirrors Config with pointer fields so an omitted key can be
// told apart from a zero value.
type fileConfig struct {
	Timeline   *string `yaml:"timeline"`
	Scorer     *string `yaml:"scorer"`
	Hours      *int    `yaml:"hours"`
	Threshold  *string `yaml:"threshold"`
	OutputDir  *string `yaml:"output_dir"`
	Theme      *string `yaml:"theme"`
	OutputType *string `yaml:"output_type"`

	AmplifyAccounts  map[string]float64 `yaml:"amplify_accounts"`
	FilteredAccounts []string           `yaml:"filtered_accounts"`
	Keywords         []string           `yaml:"keywords"`

	SkipProfane  *bool `yaml:"skip_profane"`
	LinkPreviews *bool `yaml:"link_previews"`
	Summarize    *bool `yaml:"summarize"`
}

// Flags carries the values parsed from the command line, along with a way
// to ask whether a given flag was explicitly set. Only explicitly set
// flags override the config file.
type Flags struct {
	Timeline   string
	Scorer     string
	Hours      int
	Threshold  string
	OutputDir  string
	Theme      string
	OutputType string

	Changed func(name string) bool
}

// Resolve layers the config file (when present) and the explicit flags
// over the defaults.
//
// A missing file at the default path is fine; a missing file that was
// asked for with -c is an error. Unknown keys in the file are an error
// too, so a typo doesn't silently fall back to a default.
func Resolve(path string, explicitPath bool, flags Flags) (Config, error) {
	cfg := Default()

	if err := applyFile(&cfg, path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
		if explicitPath {
			return Config{}, fmt.Errorf("couldn't load config file %q: %w", path, err)
		}
	}

	if err := applyFlags(&cfg, flags); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var fc fileConfig
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("error parsing config file %q: %w", path, err)
	}

	slog.Info("loaded config file", "path", path)

	if fc.Timeline != nil {
		cfg.Timeline = *fc.Timeline
	}
	if fc.Scorer != nil {
		cfg.Scorer = *fc.Scorer
	}
	if fc.Hours != nil {
		// Unlike the CLI flag, the file accepts any positive window
		if *fc.Hours <= 0 {
			return fmt.Errorf("hours must be positive, got %d", *fc.Hours)
		}
		cfg.Hours = *fc.Hours
	}
	if fc.Threshold != nil {
		cfg.Threshold = *fc.Threshold
	}
	if fc.OutputDir != nil {
		cfg.OutputDir = *fc.OutputDir
	}
	if fc.Theme != nil {
		cfg.Theme = *fc.Theme
	}
	if fc.OutputType != nil {
		cfg.OutputType = *fc.OutputType
	}
	if fc.AmplifyAccounts != nil {
		cfg.AmplifyAccounts = fc.AmplifyAccounts
	}
	if fc.FilteredAccounts != nil {
		cfg.FilteredAccounts = fc.FilteredAccounts
	}
	if fc.Keywords != nil {
		cfg.Keywords = fc.Keywords
	}
	if fc.SkipProfane != nil {
		cfg.SkipProfane = *fc.SkipProfane
	}
	if fc.LinkPreviews != nil {
		cfg.LinkPreviews = *fc.LinkPreviews
	}
	if fc.Summarize != nil {
		cfg.Summarize = *fc.Summarize
	}

	return nil
}

func applyFlags(cfg *Config, flags Flags) error {
	if flags.Changed == nil {
		return nil
	}

	if flags.Changed("timeline") {
		cfg.Timeline = flags.Timeline
	}
	if flags.Changed("hours") {
		// The CLI keeps the window tight; bigger windows go in the file
		if flags.Hours < 1 || flags.Hours > 24 {
			return fmt.Errorf("hours must be between 1 and 24 when set on the command line, got %d", flags.Hours)
		}
		cfg.Hours = flags.Hours
	}
	if flags.Changed("scorer") {
		cfg.Scorer = flags.Scorer
	}
	if flags.Changed("threshold") {
		cfg.Threshold = flags.Threshold
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = flags.OutputDir
	}
	if flags.Changed("theme") {
		cfg.Theme = flags.Theme
	}
	if flags.Changed("output") {
		cfg.OutputType = flags.OutputType
	}

	return nil
}

func (c Config) validate() error {
	if c.OutputType != "html" && c.OutputType != "bot" {
		return fmt.Errorf("output_type must be html or bot, got %q", c.OutputType)
	}

	for acct := range c.AmplifyAccounts {
		if err := checkAcct(acct, "amplify_accounts"); err != nil {
			return err
		}
	}
	for _, acct := range c.FilteredAccounts {
		if err := checkAcct(acct, "filtered_accounts"); err != nil {
			return err
		}
	}

	return nil
}

func checkAcct(acct, list string) error {
	if len(strings.Split(acct, "@")) != 2 || strings.HasPrefix(acct, "@") || strings.HasSuffix(acct, "@") {
		return fmt.Errorf("accounts must be in the form 'user@host' (check failed for %q in %s)", acct, list)
	}

	return nil
}
