package chunkuploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Uploader ...
type Uploader struct {
	config Config
	stats  *Stats
}

// New ...
func New(config Config) *Uploader {
	return &Uploader{
		config: config.withDefaults(),
		stats:  NewStats(),
	}
}

// Upload PUTs every part to its URL (urls[i] receives part i) and returns the
// parts in order. The first part that runs out of attempts cancels the others.
func (u *Uploader) Upload(ctx context.Context, provider ChunkProvider, urls []string) ([]Part, error) {
	numChunks := provider.NumChunks()
	if numChunks != len(urls) {
		return nil, fmt.Errorf("chunk count mismatch: provider has %d chunks, but %d URLs provided", numChunks, len(urls))
	}
	if numChunks == 0 {
		return []Part{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan partResult, numChunks)
	semaphore := make(chan struct{}, u.config.Concurrency)

	for i := 0; i < numChunks; i++ {
		go func(index int, url string) {
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				results <- partResult{index: index, err: ctx.Err()}
				return
			}
			defer func() { <-semaphore }()

			etag, err := u.uploadWithRetry(ctx, provider, url, index, numChunks)
			results <- partResult{index: index, etag: etag, err: err}
		}(i, urls[i])
	}

	parts := make([]Part, numChunks)
	var firstErr error
	for received := 0; received < numChunks; received++ {
		result := <-results
		if result.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("part %d: %w", result.index+1, result.err)
				cancel()
			}
			continue
		}
		parts[result.index] = Part{Number: result.index + 1, ETag: result.etag}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return parts, nil
}

// Stats ...
func (u *Uploader) Stats() *Stats {
	return u.stats
}

func (u *Uploader) uploadWithRetry(ctx context.Context, provider ChunkProvider, url string, index, total int) (string, error) {
	logger := u.config.Logger
	var lastErr error

	for attempt := 1; attempt <= u.config.MaxRetryPerChunk; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		logger.Debugf("Uploading part %d/%d (attempt %d/%d)", index+1, total, attempt, u.config.MaxRetryPerChunk)
		start := time.Now()

		attemptCtx, cancelAttempt := context.WithCancel(ctx)
		if attempt < u.config.MaxRetryPerChunk && u.config.HungThreshold > 0 {
			go u.watchHung(attemptCtx, cancelAttempt, start, index)
		}
		etag, err := u.uploadPart(attemptCtx, provider, url, index)
		hung := attemptCtx.Err() != nil && ctx.Err() == nil
		cancelAttempt()

		if err == nil {
			took := time.Since(start)
			u.stats.Update(took)
			logger.Debugf("Part %d uploaded in %s", index+1, took.Round(time.Millisecond))
			return etag, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		if hung {
			logger.Warnf("Part %d attempt %d was cancelled as hung", index+1, attempt)
		} else {
			logger.Warnf("Part %d attempt %d failed: %s", index+1, attempt, err)
		}

		if attempt < u.config.MaxRetryPerChunk {
			if err := wait(ctx, time.Duration(attempt)*u.config.RetryWait); err != nil {
				return "", err
			}
		}
	}

	return "", lastErr
}

func (u *Uploader) watchHung(ctx context.Context, cancel context.CancelFunc, start time.Time, index int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if u.stats.FinishedCount() == 0 {
				continue
			}
			elapsed, avg := time.Since(start), u.stats.Average()
			if elapsed-avg > u.config.HungThreshold {
				u.config.Logger.Warnf("Part %d looks hung after %s (average: %s), cancelling the attempt",
					index+1, elapsed.Round(time.Second), avg.Round(time.Second))
				cancel()
				return
			}
		}
	}
}

func (u *Uploader) uploadPart(ctx context.Context, provider ChunkProvider, url string, index int) (string, error) {
	body, err := provider.GetChunk(index)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = provider.ChunkSize(index)

	resp, err := u.config.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		return "", errors.New("no ETag in response")
	}
	return etag, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
