// Package ciinfo reads build and pull request facts from CI environment
// variables (Jenkins first, then GitHub Actions and GitLab CI) and parses git
// repository URLs.
package ciinfo

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/covstatus/internal/application"
)

// DefaultBranch is the target branch when no variable names one.
const DefaultBranch = "master"

// Env is the subset of the CI environment covstatus uses.
type Env struct {
	BuildURL     string
	GitURL       string
	TargetBranch string
	Commit       string
	PRNumber     int
}

// Read collects Env through getenv, usually os.Getenv.
func Read(getenv func(string) string) Env {
	return Env{
		BuildURL:     buildURL(getenv),
		GitURL:       gitURL(getenv),
		TargetBranch: TargetBranch(getenv),
		Commit:       first(getenv, "GIT_COMMIT", "GITHUB_SHA", "CI_COMMIT_SHA"),
		PRNumber:     prNumber(getenv),
	}
}

func first(getenv func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func buildURL(getenv func(string) string) string {
	if v := first(getenv, "BUILD_URL", "CI_JOB_URL"); v != "" {
		return v
	}
	server, repo, run := getenv("GITHUB_SERVER_URL"), getenv("GITHUB_REPOSITORY"), getenv("GITHUB_RUN_ID")
	if server != "" && repo != "" && run != "" {
		return fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, run)
	}
	return ""
}

func gitURL(getenv func(string) string) string {
	if v := first(getenv, "GIT_URL", "CHANGE_URL", "CI_PROJECT_URL"); v != "" {
		return v
	}
	if server, repo := getenv("GITHUB_SERVER_URL"), getenv("GITHUB_REPOSITORY"); server != "" && repo != "" {
		return server + "/" + repo
	}
	return ""
}

var pullRef = regexp.MustCompile(`^refs/pull/(\d+)/`)

func prNumber(getenv func(string) string) int {
	if v := first(getenv, "ghprbPullId", "pullRequestId", "CHANGE_ID", "CI_MERGE_REQUEST_IID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if m := pullRef.FindStringSubmatch(getenv("GITHUB_REF")); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// TargetBranch returns the branch a pull request merges into, without an
// "origin/" prefix. It falls back to DefaultBranch.
func TargetBranch(getenv func(string) string) string {
	branch := first(getenv, "targetBranch", "ghprbTargetBranch", "CHANGE_TARGET", "GITHUB_BASE_REF", "CI_MERGE_REQUEST_TARGET_BRANCH_NAME", "GIT_BRANCH")
	if branch == "" {
		return DefaultBranch
	}
	return strings.TrimPrefix(branch, "origin/")
}

// ErrBadRepoURL is returned for URLs that name no owner/repository pair.
var ErrBadRepoURL = errors.New("invalid git repository URL")

var (
	httpRepoURL  = regexp.MustCompile(`^(https?://[^/]*/[^/]*/[^/]*).*`)
	httpUserRepo = regexp.MustCompile(`^https?://[^/]*/(.*)$`)
	scpUserRepo  = regexp.MustCompile(`^[^/]+:(.+)$`)
)

// RepoURL trims pull request, tree and ".git" suffixes from a git URL,
// e.g. https://github.com/terma/test/pull/1 becomes https://github.com/terma/test.
// scp-style URLs (git@host:owner/repo) keep their form.
func RepoURL(gitURL string) (string, error) {
	var repo string
	switch {
	case strings.HasPrefix(gitURL, "git@"), strings.HasPrefix(gitURL, "ssh://"):
		repo = gitURL
	case strings.Contains(gitURL, "/scm/"):
		owner, name, err := OwnerRepo(gitURL)
		if err != nil {
			return "", err
		}
		i := strings.Index(gitURL, "/scm/")
		repo = gitURL[:i] + "/scm/" + owner + "/" + name
	default:
		m := httpRepoURL.FindStringSubmatch(gitURL)
		if m == nil {
			return "", fmt.Errorf("%w: %s", ErrBadRepoURL, gitURL)
		}
		repo = m[1]
	}
	return strings.TrimSuffix(repo, ".git"), nil
}

// OwnerRepo splits a git URL into owner (GitHub user or organization,
// Bitbucket Server project key) and repository name.
func OwnerRepo(gitURL string) (string, string, error) {
	path := ""
	switch {
	case strings.HasPrefix(gitURL, "ssh://"):
		u, err := url.Parse(gitURL)
		if err != nil {
			return "", "", fmt.Errorf("%w: %s", ErrBadRepoURL, gitURL)
		}
		path = strings.TrimPrefix(u.Path, "/")
	case httpUserRepo.MatchString(gitURL):
		path = httpUserRepo.FindStringSubmatch(gitURL)[1]
		path = strings.TrimPrefix(path, "scm/")
	case scpUserRepo.MatchString(gitURL):
		path = scpUserRepo.FindStringSubmatch(gitURL)[1]
	}

	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrBadRepoURL, gitURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// RepoName returns the repository part of a git URL.
func RepoName(gitURL string) (string, error) {
	_, name, err := OwnerRepo(gitURL)
	return name, err
}

// DetectProvider guesses the hosting provider of a git URL. Bitbucket Server
// clone URLs carry an "/scm/" segment or a 7999 ssh port.
func DetectProvider(gitURL string) application.PRProvider {
	lower := strings.ToLower(gitURL)
	switch {
	case strings.Contains(lower, "github"):
		return application.ProviderGitHub
	case strings.Contains(lower, "gitlab"):
		return application.ProviderGitLab
	case strings.Contains(lower, "/scm/"), strings.Contains(lower, ":7999/"),
		strings.Contains(lower, "bitbucket"), strings.Contains(lower, "stash"):
		return application.ProviderBitbucket
	default:
		return application.ProviderGitHub
	}
}
