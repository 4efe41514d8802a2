// Package github publishes coverage comments on GitHub pull requests.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/covstatus/internal/application"
)

const (
	// DefaultAPIURL is the default GitHub API endpoint
	DefaultAPIURL = "https://api.github.com"
	// CommentMarker identifies covstatus comments so reruns edit them in place
	CommentMarker = "<!-- covstatus-coverage-status -->"

	defaultTimeout = 30 * time.Second
	perPage        = 100
)

// Client implements application.PRClient over the issues comments API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
}

// NewClient creates a client for api.github.com. An empty token falls back
// to GITHUB_TOKEN.
func NewClient(token string) *Client {
	return NewClientWithHTTP(token, &http.Client{Timeout: defaultTimeout}, "")
}

// NewClientWithHTTP creates a client with a custom HTTP client and API root,
// e.g. a GitHub Enterprise URL.
func NewClientWithHTTP(token string, httpClient *http.Client, apiURL string) *Client {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient: httpClient,
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		token:      token,
	}
}

func (c *Client) Provider() application.PRProvider {
	return application.ProviderGitHub
}

type issueComment struct {
	ID      int64  `json:"id"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

// FindCoverageComment returns the id of the marked comment on the pull
// request, or 0 when there is none. Pages are walked until a short page.
func (c *Client) FindCoverageComment(ctx context.Context, owner, repo string, prNumber int) (int64, error) {
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments?per_page=%d&page=%d",
			c.apiURL, owner, repo, prNumber, perPage, page)

		var comments []issueComment
		if err := c.do(ctx, http.MethodGet, url, nil, http.StatusOK, &comments); err != nil {
			return 0, err
		}
		for _, comment := range comments {
			if strings.Contains(comment.Body, CommentMarker) {
				return comment.ID, nil
			}
		}
		if len(comments) < perPage {
			return 0, nil
		}
	}
}

// CreateComment posts body, prefixed with the marker, and returns the new
// comment id and URL.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, prNumber int, body string) (int64, string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.apiURL, owner, repo, prNumber)

	var comment issueComment
	payload := map[string]string{"body": withMarker(body)}
	if err := c.do(ctx, http.MethodPost, url, payload, http.StatusCreated, &comment); err != nil {
		return 0, "", err
	}
	return comment.ID, comment.HTMLURL, nil
}

func (c *Client) UpdateComment(ctx context.Context, owner, repo string, _ int, commentID int64, body string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.apiURL, owner, repo, commentID)
	payload := map[string]string{"body": withMarker(body)}
	return c.do(ctx, http.MethodPatch, url, payload, http.StatusOK, nil)
}

func withMarker(body string) string {
	if strings.Contains(body, CommentMarker) {
		return body
	}
	return CommentMarker + "\n" + body
}

func (c *Client) do(ctx context.Context, method, url string, payload any, want int, out any) error {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
