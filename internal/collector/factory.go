package collector

import (
	"fmt"

	"github.com/qepting91/wikisync/internal/config"
	"github.com/qepting91/wikisync/internal/domain"
)

// NewCollector selects the WikiClient implementation based on cfg.Mode.
func NewCollector(cfg config.Config) (domain.WikiClient, error) {
	switch cfg.Mode {
	case "api":
		return NewAPIClient(cfg.APIURL, cfg.ClientIdentifier(), cfg.Timeout, cfg.RateInterval)
	case "mock":
		return NewDemoClient(), nil
	default:
		return nil, fmt.Errorf("unknown WIKISYNC_MODE: %s (use 'api' or 'mock')", cfg.Mode)
	}
}
