// Package models defines the shared data structures: configuration, the
// search payload shape, the normalized stock summary, and the persisted
// gate state.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// TargetURL is the canonical product-listing page this checker watches.
const TargetURL = "https://www.costco.com/precious-metals.html"

// Config holds the full runtime configuration. It is built once at startup
// and passed to every component; nothing below main reads the environment.
type Config struct {
	Bluesky BlueskyConfig
	X       XConfig
	Check   CheckConfig
	Browser BrowserConfig
	Paths   PathsConfig
}

// BlueskyConfig is the primary publish destination. Handle and app password
// are required; their absence is a fatal startup error.
type BlueskyConfig struct {
	Handle      string `envconfig:"BLSKY_HANDLE"`
	AppPassword string `envconfig:"BLSKY_APP_PW"`
	ServiceURL  string `envconfig:"BLSKY_SERVICE" default:"https://bsky.social"`
}

// XConfig is the secondary publish destination, gated by the monthly cap,
// cooldown, and change detection. Disabled unless all four credentials are set.
type XConfig struct {
	Enabled         bool   `envconfig:"X_ENABLED" default:"false"`
	APIKey          string `envconfig:"X_API_KEY"`
	APISecret       string `envconfig:"X_API_SECRET"`
	AccessToken     string `envconfig:"X_ACCESS_TOKEN"`
	AccessSecret    string `envconfig:"X_ACCESS_SECRET"`
	MonthlyCap      int    `envconfig:"X_MONTHLY_CAP" default:"450"`
	CooldownSeconds int    `envconfig:"X_COOLDOWN_SECONDS" default:"21600"`
}

// CheckConfig controls the decision policy and run modes.
type CheckConfig struct {
	PostStatusUpdates          bool     `envconfig:"POST_STATUS_UPDATES" default:"false"`
	AlwaysPostWhenInconclusive bool     `envconfig:"ALWAYS_POST_WHEN_INCONCLUSIVE" default:"false"`
	DryRun                     bool     `envconfig:"DRY_RUN" default:"false"`
	SelfTest                   bool     `envconfig:"TEST_OOS" default:"false"`
	PostPrefix                 string   `envconfig:"POST_PREFIX" default:"ALERT:"`
	TestPrefix                 string   `envconfig:"TEST_PREFIX" default:"[TEST-OOS]"`
	Keywords                   []string `envconfig:"ITEM_KEYWORDS"`
}

// BrowserConfig selects how the page session is constructed. The session is
// an external collaborator; these options parameterize its factory.
type BrowserConfig struct {
	Engine    string `envconfig:"BROWSER_ENGINE" default:"webkit"`
	Headless  bool   `envconfig:"HEADLESS" default:"true"`
	CIMode    bool   `envconfig:"CI" default:"false"`
	ForceHTTP bool   `envconfig:"FORCE_REQUESTS" default:"false"`
	UserAgent string `envconfig:"USER_AGENT" default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"`
	TimeoutMS int    `envconfig:"TIMEOUT_MS" default:"20000"`
}

// PathsConfig locates the on-disk collaborator artifacts.
type PathsConfig struct {
	StateFile   string `envconfig:"STATE_FILE" default:"x_post_state.json"`
	ArtifactDir string `envconfig:"ARTIFACT_DIR" default:"artifacts"`
	HARFile     string `envconfig:"HAR_FILE" default:""`
	HistoryDB   string `envconfig:"HISTORY_DB" default:"pmalert.db"`
}

var validEngines = map[string]bool{
	"webkit": true, "firefox": true, "chrome": true, "chromium": true,
}

// LoadConfig reads .env (if present) and the environment into a Config.
// Missing Bluesky credentials or an unknown engine are configuration errors.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	cfg.Bluesky.Handle = strings.TrimSpace(cfg.Bluesky.Handle)
	cfg.Bluesky.AppPassword = strings.TrimSpace(cfg.Bluesky.AppPassword)
	if cfg.Bluesky.Handle == "" || cfg.Bluesky.AppPassword == "" {
		return nil, fmt.Errorf("missing BLSKY_HANDLE or BLSKY_APP_PW in environment")
	}

	cfg.Browser.Engine = strings.ToLower(strings.TrimSpace(cfg.Browser.Engine))
	if !validEngines[cfg.Browser.Engine] {
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Browser.Engine)
	}
	// CI runners have no webkit deps installed; chromium is the only engine
	// that launches reliably there.
	if cfg.Browser.CIMode && cfg.Browser.Engine == "webkit" {
		cfg.Browser.Engine = "chromium"
	}

	for i, k := range cfg.Check.Keywords {
		cfg.Check.Keywords[i] = strings.ToLower(strings.TrimSpace(k))
	}
	cfg.Check.Keywords = dropEmpty(cfg.Check.Keywords)

	// X publishing needs the full 4-part credential set; anything less just
	// disables the secondary destination rather than failing the run.
	if cfg.X.Enabled {
		if cfg.X.APIKey == "" || cfg.X.APISecret == "" || cfg.X.AccessToken == "" || cfg.X.AccessSecret == "" {
			cfg.X.Enabled = false
		}
	}

	return &cfg, nil
}

// Timeout converts the millisecond setting into a time.Duration.
func (b BrowserConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMS) * time.Millisecond
}

// Cooldown converts the cooldown setting into a time.Duration.
func (x XConfig) Cooldown() time.Duration {
	return time.Duration(x.CooldownSeconds) * time.Second
}

func dropEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
