package field

import (
	"fmt"
	"sort"
	"strings"
)

// Field identifies one optional metadata value. The numeric value is the
// tag written to the section and must never be renumbered.
type Field uint8

const (
	SourceSha             Field = 1
	SourceDescribe        Field = 2
	SourceBranch          Field = 3
	SourceCommitTimestamp Field = 4
	SourceCommitDate      Field = 5
	SourceCommitMessage   Field = 6
	BuildTimestamp        Field = 7
	BuildDate             Field = 8
	Custom                Field = 9
)

var names = map[Field]string{
	SourceSha:             "git-sha",
	SourceDescribe:        "git-describe",
	SourceBranch:          "git-branch",
	SourceCommitTimestamp: "git-commit-timestamp",
	SourceCommitDate:      "git-commit-date",
	SourceCommitMessage:   "git-commit-msg",
	BuildTimestamp:        "build-timestamp",
	BuildDate:             "build-date",
	Custom:                "custom",
}

// All returns every known field in tag order.
func All() []Field {
	return []Field{
		SourceSha,
		SourceDescribe,
		SourceBranch,
		SourceCommitTimestamp,
		SourceCommitDate,
		SourceCommitMessage,
		BuildTimestamp,
		BuildDate,
		Custom,
	}
}

// Git returns the fields collected from source control.
func Git() []Field {
	return []Field{
		SourceSha,
		SourceDescribe,
		SourceBranch,
		SourceCommitTimestamp,
		SourceCommitDate,
		SourceCommitMessage,
	}
}

// BuildTime returns the fields derived from the build clock.
func BuildTime() []Field {
	return []Field{BuildTimestamp, BuildDate}
}

// Known reports whether the tag belongs to a field this version understands.
func (f Field) Known() bool {
	_, ok := names[f]
	return ok
}

// String returns the kebab-case name used by flags and config files.
func (f Field) String() string {
	if name, ok := names[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Parse converts a field name into a Field value.
func Parse(value string) (Field, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	for f, name := range names {
		if name == normalized {
			return f, nil
		}
	}
	return 0, fmt.Errorf("invalid field %q", value)
}

// Set maps fields to their values. A field missing from the map is unset;
// a field mapped to the empty string is set to "".
type Set map[Field]string

// Get returns the value of f and whether it is set.
func (s Set) Get(f Field) (string, bool) {
	v, ok := s[f]
	return v, ok
}

// Put sets f to value.
func (s Set) Put(f Field, value string) {
	s[f] = value
}

// Delete unsets f.
func (s Set) Delete(f Field) {
	delete(s, f)
}

// Has reports whether f is set.
func (s Set) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// Fields returns the set fields ordered by tag.
func (s Set) Fields() []Field {
	out := make([]Field, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for f, v := range s {
		out[f] = v
	}
	return out
}
