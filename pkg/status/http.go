package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ship-status-dash/pkg/types"
)

// HTTPSourceOptions tunes an HTTPSource.
type HTTPSourceOptions struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// MaxRetries is the number of additional attempts after a transient failure. Zero disables retries.
	MaxRetries uint64
	// InitialBackoff is the first retry delay; later delays grow exponentially.
	InitialBackoff time.Duration
}

// HTTPSource reads statuses from a dashboard's /api/status endpoints.
type HTTPSource struct {
	baseURL string
	opts    HTTPSourceOptions
}

// NewHTTPSource creates a source for the dashboard at baseURL.
func NewHTTPSource(baseURL string, opts HTTPSourceOptions) *HTTPSource {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
	}
}

func (s *HTTPSource) GetComponentStatus(ctx context.Context, componentName string) (types.ComponentStatus, error) {
	return s.get(ctx, "/api/status/"+url.PathEscape(componentName))
}

func (s *HTTPSource) GetSubComponentStatus(ctx context.Context, componentName, subComponentName string) (types.ComponentStatus, error) {
	return s.get(ctx, "/api/status/"+url.PathEscape(componentName)+"/"+url.PathEscape(subComponentName))
}

func (s *HTTPSource) get(ctx context.Context, path string) (types.ComponentStatus, error) {
	var result types.ComponentStatus
	operation := func() error {
		status, err := s.fetch(ctx, path)
		if err != nil {
			return err
		}
		result = status
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.InitialBackoff
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, s.opts.MaxRetries), ctx))
	return result, err
}

func (s *HTTPSource) fetch(ctx context.Context, path string) (types.ComponentStatus, error) {
	var status types.ComponentStatus

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return status, backoff.Permanent(err)
	}
	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return status, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return status, backoff.Permanent(fmt.Errorf("%w: %s", ErrUnknownTarget, path))
	case resp.StatusCode >= 500:
		return status, fmt.Errorf("%w: %s returned %d", ErrUnexpectedResponse, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return status, backoff.Permanent(fmt.Errorf("%w: %s returned %d", ErrUnexpectedResponse, path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, backoff.Permanent(fmt.Errorf("%w: %s: %v", ErrUnexpectedResponse, path, err))
	}
	if !status.Status.IsValid() {
		return status, backoff.Permanent(fmt.Errorf("%w: %s reported status %q", ErrUnexpectedResponse, path, status.Status))
	}
	return status, nil
}
