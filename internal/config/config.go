package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/qepting91/wikisync/internal/domain"
)

const (
	DefaultAPIURL  = "https://oldschool.runescape.wiki/api.php"
	DefaultCutoff  = "2019-01-29T00:00:00Z"
	DefaultTimeout = 30 * time.Second
	DefaultRate    = 500 * time.Millisecond
	DefaultOutDir  = "extraction_tools_wiki"
	DefaultPort    = "8080"
)

// Config is built once at startup and passed by value to every component.
type Config struct {
	APIURL       string
	UserAgent    string
	ContactEmail string
	Cutoff       time.Time
	Mode         string
	Timeout      time.Duration
	RateInterval time.Duration
	OutDir       string
	LedgerPath   string
	Port         string
}

// Load reads an optional .env file and then the WIKISYNC_* environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		APIURL:       getenv("WIKISYNC_API_URL"),
		UserAgent:    getenv("WIKISYNC_USER_AGENT"),
		ContactEmail: getenv("WIKISYNC_CONTACT_EMAIL"),
		Mode:         strings.ToLower(getenv("WIKISYNC_MODE")),
		OutDir:       getenv("WIKISYNC_OUT_DIR"),
		LedgerPath:   getenv("WIKISYNC_LEDGER"),
		Port:         getenv("PORT"),
	}

	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Mode == "" {
		cfg.Mode = "api"
	}
	if cfg.OutDir == "" {
		cfg.OutDir = DefaultOutDir
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}

	cutoff := getenv("WIKISYNC_CUTOFF")
	if cutoff == "" {
		cutoff = DefaultCutoff
	}
	ts, err := domain.ParseTimestamp(cutoff)
	if err != nil {
		return nil, fmt.Errorf("WIKISYNC_CUTOFF must look like %s: %w", domain.TimestampLayout, err)
	}
	cfg.Cutoff = ts

	if cfg.Timeout, err = durationOr(getenv("WIKISYNC_TIMEOUT"), DefaultTimeout); err != nil {
		return nil, fmt.Errorf("WIKISYNC_TIMEOUT: %w", err)
	}
	if cfg.RateInterval, err = durationOr(getenv("WIKISYNC_RATE"), DefaultRate); err != nil {
		return nil, fmt.Errorf("WIKISYNC_RATE: %w", err)
	}

	if cfg.Mode == "api" {
		if cfg.UserAgent == "" {
			return nil, fmt.Errorf("WIKISYNC_USER_AGENT is required for api mode")
		}
		if cfg.ContactEmail == "" {
			return nil, fmt.Errorf("WIKISYNC_CONTACT_EMAIL is required for api mode")
		}
	}

	return cfg, nil
}

// ClientIdentifier is the User-Agent value sent with every request.
func (c Config) ClientIdentifier() string {
	if c.ContactEmail == "" {
		return c.UserAgent
	}
	return fmt.Sprintf("%s (%s)", c.UserAgent, c.ContactEmail)
}

func durationOr(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative, got %s", d)
	}
	return d, nil
}
