package gitinfo

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

// initRepo creates a repository with one commit authored at a fixed time.
func initRepo(t *testing.T, subject string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	env := append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_AUTHOR_DATE=2024-06-15T12:30:00+02:00",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.local",
		"GIT_COMMITTER_DATE=2024-06-15T12:30:00+02:00",
	)
	gitRun := func(args ...string) {
		command := exec.Command("git", append([]string{"-C", dir}, args...)...)
		command.Env = env
		if output, err := command.CombinedOutput(); err != nil {
			t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
		}
	}

	gitRun("init", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("test\n"), 0o644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	gitRun("add", "README")
	gitRun("commit", "-m", subject)
	gitRun("tag", "-a", "v1.4.0", "-m", "release")
	return dir
}

func TestExecClientReadsRepository(t *testing.T) {
	t.Parallel()

	dir := initRepo(t, "initial import")
	client := NewClient(dir)
	ctx := context.Background()

	sha, err := client.SHA(ctx)
	if err != nil {
		t.Fatalf("sha: %v", err)
	}
	if len(sha) < 40 {
		t.Fatalf("unexpected sha %q", sha)
	}

	describe, err := client.Describe(ctx)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if describe != "v1.4.0" {
		t.Fatalf("describe: want v1.4.0 got %q", describe)
	}

	branch, err := client.Branch(ctx)
	if err != nil {
		t.Fatalf("branch: %v", err)
	}
	if branch != "main" {
		t.Fatalf("branch: want main got %q", branch)
	}

	when, err := client.CommitTime(ctx)
	if err != nil {
		t.Fatalf("commit time: %v", err)
	}
	if want := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC); !when.Equal(want) || when.Location() != time.UTC {
		t.Fatalf("commit time: want %v got %v", want, when)
	}

	subject, err := client.CommitSubject(ctx)
	if err != nil {
		t.Fatalf("subject: %v", err)
	}
	if subject != "initial import" {
		t.Fatalf("subject: got %q", subject)
	}
}

func TestExecClientOutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CEILING_DIRECTORIES", os.TempDir())

	client := NewClient(t.TempDir())
	if _, err := client.SHA(context.Background()); !errors.Is(err, ErrNotRepository) {
		t.Fatalf("expected ErrNotRepository got %v", err)
	}
}

func TestTruncateSubject(t *testing.T) {
	t.Parallel()

	short := "fix: short subject"
	if TruncateSubject(short) != short {
		t.Fatalf("short subjects must be unchanged")
	}

	ascii := strings.Repeat("a", 150)
	if got := TruncateSubject(ascii); len(got) != MaxSubjectBytes {
		t.Fatalf("want %d bytes got %d", MaxSubjectBytes, len(got))
	}

	// 99 ASCII bytes then a 3-byte rune straddling the limit.
	straddle := strings.Repeat("a", 99) + "€tail"
	got := TruncateSubject(straddle)
	if len(got) != 99 || !utf8.ValidString(got) {
		t.Fatalf("expected cut before the rune, got %d bytes", len(got))
	}
}
