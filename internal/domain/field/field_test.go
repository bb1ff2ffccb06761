package field

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseAcceptsNamesAndUnderscores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  Field
	}{
		{input: "git-sha", want: SourceSha},
		{input: "GIT_DESCRIBE", want: SourceDescribe},
		{input: " build-date ", want: BuildDate},
		{input: "custom", want: Custom},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("parse %q: want %v got %v", tt.input, tt.want, got)
		}
	}

	if _, err := Parse("git-author"); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestTagsAreStable(t *testing.T) {
	t.Parallel()

	want := []uint8{1, 2, 3, 4, 5, 6, 7, 8, 9}
	var got []uint8
	for _, f := range All() {
		got = append(got, uint8(f))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tags changed (-want +got):\n%s", diff)
	}
}

func TestSetFieldsOrderedByTag(t *testing.T) {
	t.Parallel()

	s := Set{}
	s.Put(Custom, "x")
	s.Put(SourceSha, "abc")
	s.Put(BuildDate, "")

	if diff := cmp.Diff([]Field{SourceSha, BuildDate, Custom}, s.Fields()); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}

	if v, ok := s.Get(BuildDate); !ok || v != "" {
		t.Fatalf("empty value should still be set")
	}

	clone := s.Clone()
	clone.Delete(Custom)
	if !s.Has(Custom) {
		t.Fatalf("clone must not alias the original")
	}
}

func TestUnknownFieldString(t *testing.T) {
	t.Parallel()

	if Field(42).Known() {
		t.Fatalf("tag 42 should be unknown")
	}
	if Field(42).String() != "field(42)" {
		t.Fatalf("unexpected name %s", Field(42).String())
	}
}
