package deviceclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the biometric terminal's export endpoint so the
// worker can pull a day's punch log without a manual file upload.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, Export returns a tiny canned
// log so the rest of the pipeline can be exercised without a terminal.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Health checks the terminal is reachable.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("device unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("device health returned %d", resp.StatusCode)
	}
	return nil
}

// Export fetches the pipe-delimited punch log for one date. The bytes
// go straight to the swipe normalizer; no decoding happens here.
func (c *Client) Export(ctx context.Context, date string) ([]byte, error) {
	if c.Skip {
		return []byte("Roll No|Name|Swipe Time\n"), nil
	}
	if date == "" {
		return nil, fmt.Errorf("date required")
	}
	u := c.BaseURL + "/export?date=" + url.QueryEscape(date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device export request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("device export returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read device export: %w", err)
	}
	return data, nil
}
