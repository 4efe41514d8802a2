// Package sonar reads the overall coverage measure of a project from a
// SonarQube server.
package sonar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

const (
	searchProjectsPath  = "/api/projects/index"
	componentMeasure    = "/api/measures/component"
	coverageMetric      = "coverage"
	projectKeyPath      = "$[0].k"
	coverageMeasurePath = "$.component.measures[0].value"

	defaultTimeout = 30 * time.Second
)

// ErrProjectNotFound is returned when the search matches no project.
var ErrProjectNotFound = errors.New("no sonar project found")

// Client implements application.ReferenceLookup.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	login      string
	password   string
}

// Option customizes a Client.
type Option func(*Client)

// WithToken authenticates with a user token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithBasicAuth authenticates with login and password.
func WithBasicAuth(login, password string) Option {
	return func(c *Client) {
		c.login = login
		c.password = password
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Coverage searches the project by repository name and returns its coverage
// measure as a ratio. When several projects match, the first one wins.
func (c *Client) Coverage(ctx context.Context, repoName string) (domain.CoverageRatio, error) {
	key, err := c.projectKey(ctx, repoName)
	if err != nil {
		return 0, fmt.Errorf("search sonar project %s: %w", repoName, err)
	}
	ratio, err := c.coverageMeasure(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("coverage measure of sonar project %s: %w", key, err)
	}
	return ratio, nil
}

func (c *Client) projectKey(ctx context.Context, repoName string) (string, error) {
	doc, err := c.get(ctx, searchProjectsPath+"?search="+url.QueryEscape(repoName))
	if err != nil {
		return "", err
	}
	if projects, ok := doc.([]interface{}); ok && len(projects) == 0 {
		return "", ErrProjectNotFound
	}
	v, err := jsonpath.Get(projectKeyPath, doc)
	if err != nil {
		return "", ErrProjectNotFound
	}
	key, ok := v.(string)
	if !ok || key == "" {
		return "", ErrProjectNotFound
	}
	return key, nil
}

func (c *Client) coverageMeasure(ctx context.Context, key string) (domain.CoverageRatio, error) {
	path := fmt.Sprintf("%s?componentKey=%s&metricKeys=%s", componentMeasure, url.QueryEscape(key), coverageMetric)
	doc, err := c.get(ctx, path)
	if err != nil {
		return 0, err
	}
	v, err := jsonpath.Get(coverageMeasurePath, doc)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", coverageMeasurePath, err)
	}

	var percent float64
	switch value := v.(type) {
	case string:
		percent, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", coverageMeasurePath, err)
		}
	case float64:
		percent = value
	default:
		return 0, fmt.Errorf("%s: unexpected value %v", coverageMeasurePath, v)
	}
	return percent / 100, nil
}

func (c *Client) get(ctx context.Context, path string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	switch {
	case c.token != "":
		req.SetBasicAuth(c.token, "")
	case c.login != "":
		req.SetBasicAuth(c.login, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("request to %s failed with %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var doc interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return doc, nil
}
