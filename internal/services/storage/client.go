// Package storage fetches audio artifacts from the object store by URL.
// The store itself (uploads, signed URLs, retention) belongs to the hosting
// layer; this side only ever reads.
package storage

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const (
	// maxAudioBytes caps downloads; anything above it is rejected rather
	// than buffered.
	maxAudioBytes = 200 << 20

	defaultFetchRetries = 2
	retryDelay          = 500 * time.Millisecond
)

// ClientConfig holds transport tuning for the audio fetcher.
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	TLSHandshakeTimeout time.Duration
}

// DefaultClientConfig returns pooled-transport defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:             120 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// Client downloads audio with connection pooling and bounded retries.
type Client struct {
	httpClient *http.Client
	retries    int
}

func NewClient() *Client {
	return NewClientWithConfig(DefaultClientConfig())
}

func NewClientWithConfig(config *ClientConfig) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		retries: defaultFetchRetries,
	}
}

// FetchAudio downloads the artifact at url and returns its bytes and content
// type. 5xx responses and transport errors are retried; 4xx are not.
func (c *Client) FetchAudio(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", models.NewValidationError("audio url is required", nil)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			fiberlog.Warnf("retrying audio fetch (attempt %d/%d): %v", attempt+1, c.retries+1, lastErr)
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		data, contentType, retryable, err := c.fetchOnce(ctx, url)
		if err == nil {
			return data, contentType, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, "", fmt.Errorf("failed to fetch audio: %w", lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", true, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			fiberlog.Warnf("failed to close response body: %v", closeErr)
		}
	}()

	if resp.StatusCode >= 500 {
		return nil, "", true, fmt.Errorf("storage returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", false, fmt.Errorf("storage returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, "", true, err
	}
	if len(data) > maxAudioBytes {
		return nil, "", false, fmt.Errorf("audio exceeds %d byte limit", maxAudioBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/webm"
	}

	return data, contentType, false, nil
}
