package wire

import (
	"bytes"
	"errors"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/field"
)

func sampleSet() field.Set {
	return field.Set{
		field.SourceSha:             "9fceb02d0ae598e95dc970b74767f19372d61af8",
		field.SourceDescribe:        "v1.4.0-3-g9fceb02-dirty",
		field.SourceBranch:          "main",
		field.SourceCommitTimestamp: "2024-06-15T12:30:00Z",
		field.SourceCommitDate:      "2024-06-15",
		field.SourceCommitMessage:   "fix: señor ünïcode",
		field.BuildTimestamp:        "2024-06-16T08:00:00Z",
		field.BuildDate:             "2024-06-16",
		field.Custom:                "",
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	sets := []field.Set{
		{},
		{field.SourceSha: "asdf"},
		{field.SourceSha: "asdf", field.SourceBranch: "jkl;", field.SourceCommitMessage: "nana"},
		{field.Custom: ""},
		sampleSet(),
	}

	for _, s := range sets {
		need := EncodedSize(s)
		for _, capacity := range []int{MinCapacity + 1, need, need + 1, DefaultCapacity, MaxCapacity} {
			if capacity < need || capacity <= MinCapacity {
				continue
			}
			buf, err := Encode(s, capacity)
			if err != nil {
				t.Fatalf("encode with capacity %d: %v", capacity, err)
			}
			if len(buf) != capacity {
				t.Fatalf("buffer length: want %d got %d", capacity, len(buf))
			}
			if diff := cmp.Diff(s, Decode(buf)); diff != "" {
				t.Fatalf("round trip at capacity %d (-want +got):\n%s", capacity, diff)
			}
		}
	}
}

func TestEncodeLayout(t *testing.T) {
	t.Parallel()

	buf, err := Encode(field.Set{field.SourceBranch: "main", field.SourceSha: "ab"}, 40)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	want := make([]byte, 40)
	copy(want, []byte{1, 2, 0, 'a', 'b', 3, 4, 0, 'm', 'a', 'i', 'n'})
	if !bytes.Equal(want, buf) {
		t.Fatalf("unexpected layout:\nwant %v\ngot  %v", want, buf)
	}
}

func TestZeroBufferDecodesEmpty(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{0, 1, 33, DefaultCapacity, MaxCapacity} {
		got := Decode(make([]byte, capacity))
		if len(got) != 0 {
			t.Fatalf("capacity %d: expected no fields, got %v", capacity, got)
		}
	}
}

func TestEncodeRejectsOversize(t *testing.T) {
	t.Parallel()

	s := field.Set{field.Custom: strings.Repeat("x", 62)}

	_, err := Encode(s, 64)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded got %v", err)
	}
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected *CapacityError got %T", err)
	}
	if capErr.Need != 65 || capErr.Overflow() != 1 {
		t.Fatalf("unexpected detail %+v", capErr)
	}

	if _, err := Encode(s, 65); err != nil {
		t.Fatalf("exact fit should encode: %v", err)
	}
}

func TestEncodeValidatesCapacity(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{-1, 0, 32, 65536} {
		if _, err := Encode(field.Set{}, capacity); !errors.Is(err, ErrInvalidCapacity) {
			t.Fatalf("capacity %d: expected ErrInvalidCapacity got %v", capacity, err)
		}
	}
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	s := field.Set{field.SourceSha: "abc123", field.Custom: "ok\xff"}
	_, err := Encode(s, DefaultCapacity)
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("expected ErrInvalidUTF8 got %v", err)
	}
	var valueErr *ValueError
	if !errors.As(err, &valueErr) || valueErr.Field != field.Custom {
		t.Fatalf("expected custom field in error, got %v", err)
	}

	// whatever encodes must decode unchanged
	s[field.Custom] = "ok"
	buf, err := Encode(s, DefaultCapacity)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if diff := cmp.Diff(s, Decode(buf)); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestDecodeSkipsUnknownTags(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 48)
	copy(buf, []byte{
		200, 3, 0, 'n', 'e', 'w',
		1, 4, 0, 'a', 's', 'd', 'f',
		9, 2, 0, 'h', 'i',
	})

	want := field.Set{field.SourceSha: "asdf", field.Custom: "hi"}
	if diff := cmp.Diff(want, Decode(buf)); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
}

func TestDecodeStopsAtTruncatedRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  []byte
		want field.Set
	}{
		{
			name: "length past end",
			buf:  []byte{1, 4, 0, 'a', 's', 'd', 'f', 3, 200, 0, 'm'},
			want: field.Set{field.SourceSha: "asdf"},
		},
		{
			name: "partial header",
			buf:  []byte{1, 1, 0, 'a', 3, 1},
			want: field.Set{field.SourceSha: "a"},
		},
		{
			name: "all ones",
			buf:  bytes.Repeat([]byte{0xff}, 64),
			want: field.Set{},
		},
		{
			name: "all 127",
			buf:  bytes.Repeat([]byte{0x7f}, 64),
			want: field.Set{},
		},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Decode(tt.buf)); diff != "" {
			t.Fatalf("%s (-want +got):\n%s", tt.name, diff)
		}
	}
}

func TestDecodeDropsInvalidUTF8AndRepeats(t *testing.T) {
	t.Parallel()

	buf := []byte{
		1, 2, 0, 0xff, 0xfe,
		3, 1, 0, 'a',
		3, 1, 0, 'b',
		0, 0, 0,
	}

	want := field.Set{field.SourceBranch: "a"}
	if diff := cmp.Diff(want, Decode(buf)); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
}

func TestPackageDocPrecedesClause(t *testing.T) {
	t.Parallel()

	f, err := parser.ParseFile(token.NewFileSet(), "wire.go", nil, parser.PackageClauseOnly|parser.ParseComments)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Doc == nil || !strings.HasPrefix(f.Doc.Text(), "Package wire ") {
		t.Fatalf("wire.go has no package comment")
	}
}
