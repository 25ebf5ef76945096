// Package config holds the immutable client configuration shared by every
// request the UploadThing client makes.
package config

import (
	"fmt"
	"strings"

	"github.com/bitrise-io/go-utils/v2/env"
)

// Version is sent in the x-uploadthing-version header and in the default user agent.
const Version = "6.4.0"

// DefaultHost ...
const DefaultHost = "https://uploadthing.com"

// Env keys read by FromEnv.
const (
	APIKeyEnvKey    = "UPLOADTHING_SECRET"
	HostEnvKey      = "UPLOADTHING_HOST"
	UserAgentEnvKey = "UPLOADTHING_USER_AGENT"
)

// Secret is a string that is never printed in clear text.
type Secret string

// String ...
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", 5)
}

// Config is built once and then only read. Copies are cheap, the With*
// methods return modified copies.
type Config struct {
	Host      string
	UserAgent string
	APIKey    Secret
	Version   string
}

// Default returns the configuration without an API key.
func Default() Config {
	return Config{
		Host:      DefaultHost,
		UserAgent: fmt.Sprintf("go-utapi/%s/go", Version),
		Version:   Version,
	}
}

// New returns the default configuration with the given API key.
func New(apiKey string) Config {
	return Default().WithAPIKey(apiKey)
}

// FromEnv reads the API key (required), host and user agent from the environment.
func FromEnv(envRepo env.Repository) (Config, error) {
	apiKey := strings.TrimSpace(envRepo.Get(APIKeyEnvKey))
	if apiKey == "" {
		return Config{}, fmt.Errorf("the secret '%s' is not defined", APIKeyEnvKey)
	}

	cfg := New(apiKey)
	if host := strings.TrimSpace(envRepo.Get(HostEnvKey)); host != "" {
		cfg = cfg.WithHost(host)
	}
	if userAgent := strings.TrimSpace(envRepo.Get(UserAgentEnvKey)); userAgent != "" {
		cfg = cfg.WithUserAgent(userAgent)
	}

	return cfg, cfg.Validate()
}

// WithHost ...
func (c Config) WithHost(host string) Config {
	c.Host = strings.TrimSuffix(host, "/")
	return c
}

// WithUserAgent ...
func (c Config) WithUserAgent(userAgent string) Config {
	c.UserAgent = userAgent
	return c
}

// WithAPIKey ...
func (c Config) WithAPIKey(apiKey string) Config {
	c.APIKey = Secret(apiKey)
	return c
}

// WithVersion ...
func (c Config) WithVersion(version string) Config {
	c.Version = version
	return c
}

// Validate checks that every field the request envelope needs is set.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if !strings.HasPrefix(c.Host, "http://") && !strings.HasPrefix(c.Host, "https://") {
		return fmt.Errorf("host must be an http(s) URL: %s", c.Host)
	}
	if c.APIKey == "" {
		return fmt.Errorf("API key must not be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent must not be empty")
	}
	if c.Version == "" {
		return fmt.Errorf("version must not be empty")
	}
	return nil
}
