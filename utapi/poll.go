package utapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	maxPollRetries   = 20
	pollBaseDelay    = 500 * time.Millisecond
	pollMaximumDelay = 64 * time.Second
	pollMaxJitter    = 500 * time.Millisecond
	pollStatusDone   = "done"
)

// PollOutcome ...
type PollOutcome int

// PollOutcome values.
const (
	// PollIncomplete means the retry budget ran out before the service reported the file done.
	PollIncomplete PollOutcome = iota
	PollDone
)

func (o PollOutcome) String() string {
	if o == PollDone {
		return "done"
	}
	return "incomplete"
}

type pollPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxJitter  time.Duration
	jitter     func(max time.Duration) time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func defaultPollPolicy() pollPolicy {
	return pollPolicy{
		maxRetries: maxPollRetries,
		baseDelay:  pollBaseDelay,
		maxDelay:   pollMaximumDelay,
		maxJitter:  pollMaxJitter,
		jitter:     randomJitter,
		sleep:      sleepContext,
	}
}

// delay is the wait before retry number retry (0 for the first retry).
func (p pollPolicy) delay(retry int) time.Duration {
	return backoffDelay(retry, p.baseDelay, p.maxDelay) + p.jitter(p.maxJitter)
}

// backoffDelay is min(max, base*2^retry). The cap does not apply to jitter.
func backoffDelay(retry int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < retry && d < max; i++ {
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return cancelledOr(ctx, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// pollUntilDone asks the service whether the file has been processed until it
// is, or until the retry budget is spent. Failed attempts only cost budget;
// the only error is ErrCancelled.
func (c *Client) pollUntilDone(ctx context.Context, key string) (PollOutcome, error) {
	pollURL := c.endpoint("/api/pollUpload/" + url.PathEscape(key))

	tries := 0
	for {
		done, err := c.pollOnce(ctx, pollURL, key)
		switch {
		case err != nil && ctx.Err() != nil:
			return PollIncomplete, cancelledOr(ctx, err)
		case err != nil:
			c.logger.Warnf("%s", err)
		case done:
			return PollDone, nil
		}

		tries++
		if tries > c.poll.maxRetries {
			return PollIncomplete, nil
		}

		// The first retry waits the base delay.
		delay := c.poll.delay(tries - 1)
		if tries > 3 {
			c.logger.Infof("Upload %s not confirmed after %d tries. Retrying in %.1f seconds...", key, tries, delay.Seconds())
		}

		if err := ctx.Err(); err != nil {
			return PollIncomplete, cancelledOr(ctx, err)
		}
		if err := c.poll.sleep(ctx, delay); err != nil {
			return PollIncomplete, err
		}
	}
}

// pollOnce returns a *PollTransportError for connection failures and bodies that are not JSON.
func (c *Client) pollOnce(ctx context.Context, pollURL, key string) (bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return false, &PollTransportError{Key: key, Err: err}
	}
	c.setAPIKey(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &PollTransportError{Key: key, Err: err}
	}
	defer c.closeBody(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &PollTransportError{Key: key, Err: fmt.Errorf("read response: %w", err)}
	}

	var status pollUploadResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return false, &PollTransportError{Key: key, Err: fmt.Errorf("HTTP %d: invalid JSON: %w", resp.StatusCode, err)}
	}

	c.logger.Debugf("Poll %s: status=%q", key, status.Status)
	return status.Status == pollStatusDone, nil
}
