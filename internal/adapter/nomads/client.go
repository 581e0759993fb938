// Package nomads talks to the NOAA NOMADS HTTP tree that publishes GFS
// grid files.
package nomads

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sellinios/aethra/internal/domain"
)

// ErrNotFound means the file is not published (yet). It is not retried.
var ErrNotFound = domain.ErrNotPublished

// TmpSuffix marks partially written downloads.
const TmpSuffix = ".tmp"

// Client fetches cycle listings and grid files.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// CycleURL is the directory holding a cycle's files.
func (c *Client) CycleURL(cycle domain.Cycle) string {
	return fmt.Sprintf("%s/gfs.%s/%s/atmos/", c.baseURL, cycle.DateString(), cycle.HourString())
}

// FileURL is the remote location of one forecast hour.
func (c *Client) FileURL(cycle domain.Cycle, forecastHour int) string {
	return c.CycleURL(cycle) + domain.RemoteFileName(cycle, forecastHour)
}

var hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*"([^"]+)"`)

// ListCycle returns the names of the grid files linked from the cycle's
// directory listing.
func (c *Client) ListCycle(ctx context.Context, cycle domain.Cycle) ([]string, error) {
	u := c.CycleURL(cycle)
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read listing %s: %w", domain.ErrNetworkTransient, u, err)
	}

	var names []string
	for _, m := range hrefPattern.FindAllStringSubmatch(string(body), -1) {
		href := m[1]
		if !strings.Contains(href, "grb2") {
			continue
		}
		names = append(names, path.Base(href))
	}
	return names, nil
}

// Download streams url into dest through dest+".tmp". dest only appears
// once the whole body has been written. It returns the bytes written.
func (c *Client) Download(ctx context.Context, url, dest string) (int64, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	tmp := dest + TmpSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp) //nolint:errcheck // best-effort cleanup of a partial file
		return 0, fmt.Errorf("%w: download %s: %w", domain.ErrNetworkTransient, url, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp) //nolint:errcheck // best-effort cleanup of a partial file
		return 0, fmt.Errorf("rename %s: %w", tmp, err)
	}
	c.logger.Debug("downloaded", "url", url, "file", dest, "bytes", n)
	return n, nil
}

// get issues a GET and returns the response for 2xx statuses only.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", domain.ErrNetworkTransient, url, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse
	resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	return nil, fmt.Errorf("%w: GET %s: status %d", domain.ErrNetworkTransient, url, resp.StatusCode)
}
