package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	log "github.com/go-pkgz/lgr"
)

const maxRemoteBody = 10 * 1024 * 1024 // 10MB limit for collection responses

// Remote implements Interface against the managed backend service.
// The backend exposes a REST collection endpoint; ordering is requested
// server-side so the initial load arrives newest-first. Failures are
// terminal for the calling operation, the client never retries.
type Remote struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemote creates a remote store client. baseURL is the collection root,
// e.g. https://backend.example.com/rest/v1. apiKey may be empty for
// unauthenticated backends.
func NewRemote(baseURL, apiKey string, client *http.Client) (*Remote, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme in backend URL: %q", u.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{baseURL: baseURL, apiKey: apiKey, client: client}, nil
}

// ListModules fetches the full collection ordered by created_at descending
func (r *Remote) ListModules(ctx context.Context) ([]Module, error) {
	reqURL := r.baseURL + "/modules?order=created_at.desc"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	r.setHeaders(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch modules: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("[WARN] failed to close response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var modules []Module
	if err := json.Unmarshal(body, &modules); err != nil {
		return nil, fmt.Errorf("failed to parse modules JSON: %w", err)
	}
	return modules, nil
}

// ArchiveModule issues the single-field update setting archived=true
func (r *Remote) ArchiveModule(ctx context.Context, id string) error {
	payload, err := json.Marshal(map[string]bool{"archived": true})
	if err != nil {
		return fmt.Errorf("failed to marshal archive payload: %w", err)
	}

	reqURL := r.baseURL + "/modules/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	r.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to archive module %s: %w", id, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("[WARN] failed to close response body: %v", closeErr)
		}
	}()

	// drain to allow connection reuse
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxRemoteBody)); err != nil {
		log.Printf("[WARN] failed to drain response body: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// Close is a no-op for the remote store
func (r *Remote) Close() error { return nil }

func (r *Remote) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
		req.Header.Set("apikey", r.apiKey)
	}
}
