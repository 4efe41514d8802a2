// Package gitinfo reads repository facts from a local git checkout. It backs
// the CI environment when covstatus runs outside a build server.
package gitinfo

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Git runs git in Dir. Exec is swapped in tests.
type Git struct {
	Dir  string
	Exec func(ctx context.Context, dir string, args []string) ([]byte, error)
}

// RemoteURL returns the fetch URL of the origin remote.
func (g Git) RemoteURL(ctx context.Context) (string, error) {
	return g.output(ctx, "config", "--get", "remote.origin.url")
}

// Head returns the commit SHA checked out.
func (g Git) Head(ctx context.Context) (string, error) {
	return g.output(ctx, "rev-parse", "HEAD")
}

// Branch returns the current branch name, or "HEAD" when detached.
func (g Git) Branch(ctx context.Context) (string, error) {
	return g.output(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

func (g Git) output(ctx context.Context, args ...string) (string, error) {
	execFn := g.Exec
	if execFn == nil {
		execFn = runGitOutput
	}
	out, err := execFn(ctx, g.Dir, args)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	value := strings.TrimSpace(string(out))
	if value == "" {
		return "", fmt.Errorf("git %s: empty output", strings.Join(args, " "))
	}
	return value, nil
}

func runGitOutput(ctx context.Context, dir string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Output()
}
