// Package gitlab publishes coverage comments as merge request notes.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/covstatus/internal/application"
)

const (
	// DefaultAPIURL is the default GitLab API endpoint
	DefaultAPIURL = "https://gitlab.com/api/v4"
	// CommentMarker identifies covstatus notes so reruns edit them in place
	CommentMarker = "<!-- covstatus-coverage-status -->"

	defaultTimeout = 30 * time.Second
	perPage        = 100
)

// Client implements application.PRClient over the merge request notes API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
}

// NewClient creates a client for gitlab.com. An empty token falls back to
// GITLAB_TOKEN, then CI_JOB_TOKEN.
func NewClient(token string) *Client {
	return NewClientWithHTTP(token, &http.Client{Timeout: defaultTimeout}, "")
}

// NewClientWithHTTP creates a client with a custom HTTP client and API root,
// e.g. https://gitlab.example.com/api/v4 for a self-managed instance.
func NewClientWithHTTP(token string, httpClient *http.Client, apiURL string) *Client {
	if token == "" {
		token = os.Getenv("GITLAB_TOKEN")
		if token == "" {
			token = os.Getenv("CI_JOB_TOKEN")
		}
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
	return application.ProviderGitLab
}

type note struct {
	ID     int64  `json:"id"`
	Body   string `json:"body"`
	System bool   `json:"system"`
}

// projectPath is the URL-encoded "namespace/project" id.
func projectPath(owner, repo string) string {
	return url.PathEscape(owner + "/" + repo)
}

func (c *Client) notesURL(owner, repo string, mrNumber int) string {
	return fmt.Sprintf("%s/projects/%s/merge_requests/%d/notes", c.apiURL, projectPath(owner, repo), mrNumber)
}

// FindCoverageComment returns the id of the marked note on the merge
// request, or 0 when there is none.
func (c *Client) FindCoverageComment(ctx context.Context, owner, repo string, mrNumber int) (int64, error) {
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s?per_page=%d&page=%d", c.notesURL(owner, repo, mrNumber), perPage, page)

		var notes []note
		if err := c.do(ctx, http.MethodGet, u, nil, http.StatusOK, &notes); err != nil {
			return 0, err
		}
		for _, n := range notes {
			if !n.System && strings.Contains(n.Body, CommentMarker) {
				return n.ID, nil
			}
		}
		if len(notes) < perPage {
			return 0, nil
		}
	}
}

// CreateComment posts body as a new note and returns its id and web URL.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, mrNumber int, body string) (int64, string, error) {
	var n note
	payload := map[string]string{"body": withMarker(body)}
	if err := c.do(ctx, http.MethodPost, c.notesURL(owner, repo, mrNumber), payload, http.StatusCreated, &n); err != nil {
		return 0, "", err
	}
	web := strings.TrimSuffix(c.apiURL, "/api/v4")
	return n.ID, fmt.Sprintf("%s/%s/%s/-/merge_requests/%d#note_%d", web, owner, repo, mrNumber, n.ID), nil
}

func (c *Client) UpdateComment(ctx context.Context, owner, repo string, mrNumber int, noteID int64, body string) error {
	u := fmt.Sprintf("%s/%d", c.notesURL(owner, repo, mrNumber), noteID)
	payload := map[string]string{"body": withMarker(body)}
	return c.do(ctx, http.MethodPut, u, payload, http.StatusOK, nil)
}

func withMarker(body string) string {
	if strings.Contains(body, CommentMarker) {
		return body
	}
	return CommentMarker + "\n" + body
}

func (c *Client) do(ctx context.Context, method, u string, payload any, want int, out any) error {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("PRIVATE-TOKEN", c.token)
	}
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
		return fmt.Errorf("GitLab API error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
