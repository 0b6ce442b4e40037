package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tessro/weradio/internal/config"
)

// ExhaustedError is returned when a fetch used up its retry budget.
type ExhaustedError struct {
	Resource Resource
	URL      string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s fetch failed after %d attempts: %v", e.Resource, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// fetcher retrieves playlists and segments under a per-class retry policy.
type fetcher struct {
	client *http.Client
	// onRetry is called after each failed attempt that will be retried.
	onRetry func(res Resource, attempt int, err error)
}

// fetch makes one attempt plus policy.MaxRetries retries, spaced by
// policy.RetryDelayMs. accept may reject a body, which counts as a failure.
func (f *fetcher) fetch(ctx context.Context, res Resource, policy config.RetryPolicy, url string, accept func([]byte) error) ([]byte, error) {
	attempts := policy.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := f.get(ctx, policy.Timeout(), url)
		if err == nil && accept != nil {
			err = accept(body)
		}
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if f.onRetry != nil {
			f.onRetry(res, attempt, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.Delay()):
		}
	}

	return nil, &ExhaustedError{Resource: res, URL: url, Attempts: attempts, Err: lastErr}
}

func (f *fetcher) get(ctx context.Context, timeout time.Duration, url string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("empty response")
	}
	return body, nil
}
