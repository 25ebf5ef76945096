package analytics

import (
	"strings"

	"github.com/bitrise-io/go-utapi/config"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/google/uuid"
)

type TrackerFactory func(...analytics.Properties) analytics.Tracker

const (
	EnabledEnvKey = "UTAPI_ANALYTICS"
	SessionID     = "session_id"
	Host          = "host"
	ClientVersion = "client_version"
)

// NewCLITracker returns nil unless analytics is enabled in the environment.
func NewCLITracker(repository env.Repository, cfg config.Config, trackerFactory TrackerFactory) analytics.Tracker {
	if !isEnabled(repository.Get(EnabledEnvKey)) {
		return nil
	}
	return trackerFactory(analytics.Properties{
		SessionID:     uuid.NewString(),
		Host:          cfg.Host,
		ClientVersion: cfg.Version,
	})
}

func NewDefaultCLITracker(repository env.Repository, cfg config.Config, logger log.Logger) analytics.Tracker {
	return NewCLITracker(repository, cfg, func(properties ...analytics.Properties) analytics.Tracker {
		return analytics.NewDefaultTracker(logger, properties...)
	})
}

func isEnabled(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}
