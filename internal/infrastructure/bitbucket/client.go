// Package bitbucket publishes coverage comments on Bitbucket Server (Stash)
// pull requests through the REST 1.0 API.
package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/covstatus/internal/application"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 60 * time.Second
	// CommentMarker identifies covstatus comments so reruns edit them in place
	CommentMarker = "<!-- covstatus-coverage-status -->"
)

// ErrNoServer is returned when neither the constructor nor BITBUCKET_URL
// names a server.
var ErrNoServer = errors.New("bitbucket server URL is not set")

// Client implements application.PRClient. Owner is the project key and repo
// the repository slug.
type Client struct {
	httpClient *http.Client
	serverURL  string
	username   string
	password   string
	token      string
}

// Credentials authenticate against the server. A token (HTTP access token)
// wins over username/password.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// CredentialsFromEnv reads BITBUCKET_USERNAME, BITBUCKET_PASSWORD and
// BITBUCKET_TOKEN.
func CredentialsFromEnv() Credentials {
	return Credentials{
		Username: os.Getenv("BITBUCKET_USERNAME"),
		Password: os.Getenv("BITBUCKET_PASSWORD"),
		Token:    os.Getenv("BITBUCKET_TOKEN"),
	}
}

// NewClient creates a client for serverURL, falling back to BITBUCKET_URL.
func NewClient(serverURL string, creds Credentials) (*Client, error) {
	return NewClientWithHTTP(serverURL, creds, &http.Client{Timeout: DefaultHTTPTimeout})
}

// NewClientWithHTTP creates a client with a custom HTTP client (for testing).
func NewClientWithHTTP(serverURL string, creds Credentials, httpClient *http.Client) (*Client, error) {
	if serverURL == "" {
		serverURL = os.Getenv("BITBUCKET_URL")
	}
	if serverURL == "" {
		return nil, ErrNoServer
	}
	return &Client{
		httpClient: httpClient,
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		username:   creds.Username,
		password:   creds.Password,
		token:      creds.Token,
	}, nil
}

func (c *Client) Provider() application.PRProvider {
	return application.ProviderBitbucket
}

type comment struct {
	ID      int64  `json:"id"`
	Text    string `json:"text"`
	Version int    `json:"version"`
}

type activity struct {
	Action  string   `json:"action"`
	Comment *comment `json:"comment,omitempty"`
}

type activityPage struct {
	Values        []activity `json:"values"`
	IsLastPage    bool       `json:"isLastPage"`
	NextPageStart int        `json:"nextPageStart"`
}

func (c *Client) pullRequestPath(project, repo string, prNumber int) string {
	return fmt.Sprintf("%s/rest/api/1.0/projects/%s/repos/%s/pull-requests/%d", c.serverURL, project, repo, prNumber)
}

// FindCoverageComment walks the pull request activities and returns the id
// of the marked comment, or 0 when there is none.
func (c *Client) FindCoverageComment(ctx context.Context, project, repo string, prNumber int) (int64, error) {
	start := 0
	for {
		url := fmt.Sprintf("%s/activities?start=%d", c.pullRequestPath(project, repo, prNumber), start)

		var page activityPage
		if err := c.do(ctx, http.MethodGet, url, nil, http.StatusOK, &page); err != nil {
			return 0, err
		}
		for _, a := range page.Values {
			if a.Action == "COMMENTED" && a.Comment != nil && strings.Contains(a.Comment.Text, CommentMarker) {
				return a.Comment.ID, nil
			}
		}
		if page.IsLastPage || page.NextPageStart <= start {
			return 0, nil
		}
		start = page.NextPageStart
	}
}

// CreateComment posts body and returns the comment id and a link to it in the
// pull request overview.
func (c *Client) CreateComment(ctx context.Context, project, repo string, prNumber int, body string) (int64, string, error) {
	url := c.pullRequestPath(project, repo, prNumber) + "/comments"

	var created comment
	payload := map[string]any{"text": withMarker(body)}
	if err := c.do(ctx, http.MethodPost, url, payload, http.StatusCreated, &created); err != nil {
		return 0, "", err
	}

	link := fmt.Sprintf("%s/projects/%s/repos/%s/pull-requests/%d/overview?commentId=%d",
		c.serverURL, project, repo, prNumber, created.ID)
	return created.ID, link, nil
}

// UpdateComment replaces the comment text. The server rejects edits that do
// not carry the current version, so it is fetched first.
func (c *Client) UpdateComment(ctx context.Context, project, repo string, prNumber int, commentID int64, body string) error {
	url := fmt.Sprintf("%s/comments/%d", c.pullRequestPath(project, repo, prNumber), commentID)

	var current comment
	if err := c.do(ctx, http.MethodGet, url, nil, http.StatusOK, &current); err != nil {
		return err
	}

	payload := map[string]any{"text": withMarker(body), "version": current.Version}
	return c.do(ctx, http.MethodPut, url, payload, http.StatusOK, nil)
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
	c.setHeaders(req)
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
		return fmt.Errorf("bitbucket API error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "" && c.password != "":
		req.SetBasicAuth(c.username, c.password)
	}
}
