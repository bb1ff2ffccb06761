package buildtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/field"
)

const (
	// TimestampLayout formats BuildTimestamp and SourceCommitTimestamp values.
	TimestampLayout = time.RFC3339
	// DateLayout formats BuildDate and SourceCommitDate values.
	DateLayout = "2006-01-02"
)

// ErrInvalidOverride indicates the override matched neither accepted form.
var ErrInvalidOverride = errors.New("buildtime: override is not a unix timestamp or RFC 3339 datetime")

// OverrideError carries the rejected override value.
type OverrideError struct {
	Value string
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("buildtime: override %q is not a valid unix timestamp or RFC 3339 datetime", e.Value)
}

func (e *OverrideError) Is(target error) bool {
	return target == ErrInvalidOverride
}

// Source describes where the resolved time came from.
type Source string

const (
	SourceIdempotent Source = "idempotent"
	SourceUnix       Source = "override-unix"
	SourceRFC3339    Source = "override-rfc3339"
	SourceClock      Source = "clock"
)

// Inputs are the caller-supplied switches, usually VER_STUB_IDEMPOTENT and
// VER_STUB_BUILD_TIME.
type Inputs struct {
	Idempotent  bool
	Override    string
	OverrideSet bool
}

// Result is the effective build time. When Present is false the build-time
// fields must stay unset.
type Result struct {
	Time    time.Time
	Present bool
	Source  Source
}

// Resolve applies idempotent > override > clock precedence. now may be nil.
func Resolve(in Inputs, now func() time.Time) (Result, error) {
	if in.Idempotent {
		return Result{Source: SourceIdempotent}, nil
	}

	if in.OverrideSet {
		return parseOverride(in.Override)
	}

	if now == nil {
		now = time.Now
	}
	return Result{Time: now().UTC(), Present: true, Source: SourceClock}, nil
}

func parseOverride(value string) (Result, error) {
	trimmed := strings.TrimSpace(value)

	if ts, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return Result{Time: time.Unix(ts, 0).UTC(), Present: true, Source: SourceUnix}, nil
	}

	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return Result{Time: parsed.UTC(), Present: true, Source: SourceRFC3339}, nil
	}

	return Result{}, &OverrideError{Value: value}
}

// Timestamp renders t as an RFC 3339 UTC string.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Date renders t as a UTC calendar date.
func Date(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Apply writes the requested build-time fields into s, or removes them when
// the result is not present.
func (r Result) Apply(s field.Set, timestamp, date bool) {
	if !r.Present {
		s.Delete(field.BuildTimestamp)
		s.Delete(field.BuildDate)
		return
	}
	if timestamp {
		s.Put(field.BuildTimestamp, Timestamp(r.Time))
	}
	if date {
		s.Put(field.BuildDate, Date(r.Time))
	}
}
