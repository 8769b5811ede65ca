package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/pkg/config"
)

const internalTokenHeader = "X-Internal-Token"

// httpClient is the shared JSON transport for collaborator services. All
// collaborators authenticate with a static internal token and speak plain
// JSON bodies, no envelope.
type httpClient struct {
	base   string
	token  string
	client *http.Client
	logger *zap.Logger
}

func newHTTPClient(baseURL string, cfg config.ClientsConfig, logger *zap.Logger) *httpClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &httpClient{
		base:   strings.TrimRight(baseURL, "/"),
		token:  cfg.InternalToken,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// get issues a GET and decodes the body into dest. A 404 reports found=false
// with a nil error so callers can treat missing records as domain state.
func (c *httpClient) get(ctx context.Context, path string, dest interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, c.statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *httpClient) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set(internalTokenHeader, c.token)
	}
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

func (c *httpClient) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	c.logger.Warn("collaborator request failed",
		zap.String("url", resp.Request.URL.String()),
		zap.Int("status", resp.StatusCode))
	return fmt.Errorf("%s %s: status %d: %s",
		resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
}
