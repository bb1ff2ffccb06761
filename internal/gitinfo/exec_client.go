package gitinfo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// NewClient returns a Client that runs the git binary against dir. An empty
// dir means the current working directory.
func NewClient(dir string) Client {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	return &execClient{dir: dir}
}

type execClient struct {
	dir string
}

// run executes git -C dir with args and returns trimmed stdout. Stderr is
// folded into the error.
func (c *execClient) run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", c.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(strings.ToLower(msg), "not a git repository") {
			return "", fmt.Errorf("%w: %s", ErrNotRepository, c.dir)
		}
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)", strings.Join(args, " "), c.dir, err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (c *execClient) SHA(ctx context.Context) (string, error) {
	return c.run(ctx, "rev-parse", "HEAD")
}

func (c *execClient) Describe(ctx context.Context) (string, error) {
	return c.run(ctx, "describe", "--always", "--dirty")
}

func (c *execClient) Branch(ctx context.Context) (string, error) {
	return c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

func (c *execClient) CommitTime(ctx context.Context) (time.Time, error) {
	out, err := c.run(ctx, "log", "-1", "--format=%aI")
	if err != nil {
		return time.Time{}, err
	}
	parsed, err := time.Parse(time.RFC3339, out)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing commit time %q: %w", out, err)
	}
	return parsed.UTC(), nil
}

func (c *execClient) CommitSubject(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "log", "-1", "--format=%s")
	if err != nil {
		return "", err
	}
	return TruncateSubject(out), nil
}

// TruncateSubject cuts s to at most MaxSubjectBytes without splitting a rune.
func TruncateSubject(s string) string {
	if len(s) <= MaxSubjectBytes {
		return s
	}
	cut := MaxSubjectBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
