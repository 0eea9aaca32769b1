package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxDocumentBytes caps a fetched source document at 32 MiB.
const maxDocumentBytes = 32 << 20

// Fetch retrieves url with retry and caching and returns the response
// body. A nil cache disables caching; a nil client uses a default with
// a 30 second timeout.
func Fetch(ctx context.Context, client *http.Client, cache *Cache, url string) ([]byte, error) {
	if cache != nil {
		var cached []byte
		if ok, err := cache.Get(url, &cached); ok && err == nil {
			return cached, nil
		}
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	var body []byte
	err := RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return &RetryableError{Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &RetryableError{Err: fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)}
		default:
			return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
		if err != nil {
			return &RetryableError{Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cache != nil {
		_ = cache.Set(url, body)
	}
	return body, nil
}
