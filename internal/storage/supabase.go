package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// SupabaseConfig configures the Supabase Storage backend.
type SupabaseConfig struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// Supabase implements ObjectStorage against {URL}/storage/v1.
type Supabase struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabase creates a Supabase Storage client.
func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("storage: URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("storage: API key is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Supabase{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// Upload implements ObjectStorage.
func (s *Supabase) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if err := validateKey(bucket, path); err != nil {
		return err
	}
	req, err := s.newRequest(ctx, http.MethodPost, "/storage/v1/object/"+bucket+"/"+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	_, err = s.do(req)
	return err
}

// Download implements ObjectStorage.
func (s *Supabase) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	if err := validateKey(bucket, path); err != nil {
		return nil, err
	}
	req, err := s.newRequest(ctx, http.MethodGet, "/storage/v1/object/"+bucket+"/"+path, nil)
	if err != nil {
		return nil, err
	}
	return s.do(req)
}

// Delete implements ObjectStorage.
func (s *Supabase) Delete(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	for _, p := range paths {
		if err := validateKey(bucket, p); err != nil {
			return err
		}
	}
	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return fmt.Errorf("marshal delete: %w", err)
	}
	req, err := s.newRequest(ctx, http.MethodDelete, "/storage/v1/object/"+bucket, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = s.do(req)
	return err
}

// PublicURL implements ObjectStorage.
func (s *Supabase) PublicURL(bucket, path string) string {
	return publicURL(s.baseURL, bucket, path)
}

func (s *Supabase) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	return req, nil
}

func (s *Supabase) do(req *http.Request) ([]byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", req.Method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", req.URL.Path, ErrObjectNotFound)
	case resp.StatusCode >= http.StatusBadRequest:
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(data, &e) //nolint:errcheck // body may not be JSON
		msg := e.Message
		if msg == "" {
			msg = e.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("storage error %d: %s", resp.StatusCode, msg)
	}
	return data, nil
}
