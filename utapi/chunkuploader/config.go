package chunkuploader

import (
	"net/http"
	"runtime"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
)

// Config ...
type Config struct {
	// Concurrency is the number of parts in flight. Default: NumCPU*3 clamped to [2, 20].
	Concurrency int

	// MaxRetryPerChunk is the number of attempts per part. Default: 3.
	MaxRetryPerChunk int

	// HungThreshold cancels an attempt that runs this much longer than the
	// average finished part. Zero disables hung detection. Default: 30s.
	HungThreshold time.Duration

	// RetryWait is multiplied by the attempt number between attempts. Default: 2s.
	RetryWait time.Duration

	// HTTPClient sends the part requests. Default: DefaultHTTPClient().
	HTTPClient *http.Client

	Logger log.Logger
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		Concurrency:      DefaultConcurrency(),
		MaxRetryPerChunk: 3,
		HungThreshold:    30 * time.Second,
		RetryWait:        2 * time.Second,
	}
}

// DefaultConcurrency ...
func DefaultConcurrency() int {
	c := runtime.NumCPU() * 3
	if c > 20 {
		c = 20
	}
	if c < 2 {
		c = 2
	}
	return c
}

// DefaultHTTPClient has no overall timeout, attempts are bounded by their context.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     10 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.MaxRetryPerChunk <= 0 {
		c.MaxRetryPerChunk = defaults.MaxRetryPerChunk
	}
	if c.RetryWait < 0 {
		c.RetryWait = 0
	}
	if c.HTTPClient == nil {
		c.HTTPClient = DefaultHTTPClient()
	}
	if c.Logger == nil {
		c.Logger = log.NewLogger()
	}
	return c
}
