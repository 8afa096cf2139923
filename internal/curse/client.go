package curse

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bnema/craftctl/internal/download"
)

// DefaultBaseURL is the public mod repository API
const DefaultBaseURL = "https://addons-ecs.forgesvc.net/api/v2"

// Client resolves mod file references through the mod repository API
type Client struct {
	base   string
	client *resty.Client
}

// New creates a client for base. A nil httpClient uses a default one.
func New(base string, httpClient *http.Client) *Client {
	if base == "" {
		base = DefaultBaseURL
	}

	var client *resty.Client
	if httpClient != nil {
		client = resty.NewWithClient(httpClient)
	} else {
		client = resty.New().SetTimeout(30 * time.Second)
	}
	client.SetHeader("User-Agent", download.UserAgent).SetRetryCount(1)

	return &Client{base: strings.TrimSuffix(base, "/"), client: client}
}

// DownloadURL returns the download location of one file of a project
func (c *Client) DownloadURL(ctx context.Context, projectID, fileID int) (string, error) {
	url := fmt.Sprintf("%s/addon/%d/file/%d/download-url", c.base, projectID, fileID)

	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", &download.NetworkError{URL: url, Err: err}
	}
	if resp.IsError() {
		return "", &download.StatusError{URL: url, Code: resp.StatusCode()}
	}

	location := strings.TrimSpace(resp.String())
	if location == "" {
		return "", fmt.Errorf("empty download url for project %d file %d", projectID, fileID)
	}
	return location, nil
}
