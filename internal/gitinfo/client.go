package gitinfo

import (
	"context"
	"errors"
	"time"
)

// ErrNotRepository indicates the directory is not inside a git work tree.
var ErrNotRepository = errors.New("gitinfo: not a git repository")

// MaxSubjectBytes bounds the commit subject carried into the section.
const MaxSubjectBytes = 100

// Client describes the source-control queries needed to stamp a build.
type Client interface {
	// SHA returns the full hash of HEAD.
	SHA(ctx context.Context) (string, error)

	// Describe returns `git describe --always --dirty` output.
	Describe(ctx context.Context) (string, error)

	// Branch returns the checked-out branch, or "HEAD" when detached.
	Branch(ctx context.Context) (string, error)

	// CommitTime returns the author time of HEAD.
	CommitTime(ctx context.Context) (time.Time, error)

	// CommitSubject returns the first line of the HEAD commit message,
	// truncated to MaxSubjectBytes.
	CommitSubject(ctx context.Context) (string, error)
}
