// Package wire packs a field.Set into the fixed-size buffer stored in the
// ver_stub section. Each present field is written as
//
//	[u8 tag][u16 little-endian length][length bytes of UTF-8]
//
// starting at offset 0, and the rest of the buffer is zero. Tags are never 0,
// so a zero byte where a tag is expected marks the start of the padding.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/field"
)

const (
	// MinCapacity is the exclusive lower bound for a section size.
	MinCapacity = 32
	// MaxCapacity is the largest size addressable by a u16 length prefix.
	MaxCapacity = 65535
	// DefaultCapacity is used when neither the target nor the caller declare one.
	DefaultCapacity = 512

	recordHeaderSize = 3
)

var (
	ErrCapacityExceeded = errors.New("wire: encoded fields exceed buffer capacity")
	ErrInvalidCapacity  = errors.New("wire: capacity must be greater than 32 and at most 65535")
	ErrInvalidUTF8      = errors.New("wire: field value is not valid UTF-8")
)

// ValueError reports a field whose value cannot be stored.
type ValueError struct {
	Field field.Field
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("wire: %s value is not valid UTF-8", e.Field)
}

func (e *ValueError) Is(target error) bool {
	return target == ErrInvalidUTF8
}

// CapacityError reports an encode that would not fit in the buffer.
type CapacityError struct {
	Need     int
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("wire: encoded fields need %d bytes, capacity is %d (%d over); raise VER_STUB_BUFFER_SIZE when building the target",
		e.Need, e.Capacity, e.Overflow())
}

// Overflow returns how many bytes the encoding is over capacity.
func (e *CapacityError) Overflow() int {
	return e.Need - e.Capacity
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// ValidateCapacity checks that capacity is in (MinCapacity, MaxCapacity].
func ValidateCapacity(capacity int) error {
	if capacity <= MinCapacity || capacity > MaxCapacity {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return nil
}

// EncodedSize returns the number of bytes the records of s occupy.
func EncodedSize(s field.Set) int {
	size := 0
	for _, v := range s {
		size += recordHeaderSize + len(v)
	}
	return size
}

// Encode packs s into a zero-padded buffer of exactly capacity bytes.
// It fails rather than truncate when the records do not fit, and rejects
// values Decode would drop.
func Encode(s field.Set, capacity int) ([]byte, error) {
	if err := ValidateCapacity(capacity); err != nil {
		return nil, err
	}
	for _, f := range s.Fields() {
		if !utf8.ValidString(s[f]) {
			return nil, &ValueError{Field: f}
		}
	}

	need := EncodedSize(s)
	if need > capacity {
		return nil, &CapacityError{Need: need, Capacity: capacity}
	}

	buf := make([]byte, capacity)
	pos := 0
	for _, f := range s.Fields() {
		if f == 0 {
			return nil, fmt.Errorf("wire: field tag 0 is reserved")
		}
		v := s[f]
		buf[pos] = byte(f)
		binary.LittleEndian.PutUint16(buf[pos+1:], uint16(len(v)))
		copy(buf[pos+recordHeaderSize:], v)
		pos += recordHeaderSize + len(v)
	}
	return buf, nil
}

// Decode reads the records in buf. It never fails: padding, a record that
// runs past the end of buf, or an empty buf end decoding, unknown tags are
// skipped by length, and values that are not valid UTF-8 are dropped. The
// first occurrence of a repeated tag wins.
func Decode(buf []byte) field.Set {
	out := field.Set{}
	pos := 0
	for pos+recordHeaderSize <= len(buf) {
		tag := field.Field(buf[pos])
		if tag == 0 {
			break
		}
		n := int(binary.LittleEndian.Uint16(buf[pos+1:]))
		start := pos + recordHeaderSize
		end := start + n
		if end > len(buf) {
			break
		}
		pos = end

		if !tag.Known() || out.Has(tag) {
			continue
		}
		value := buf[start:end]
		if !utf8.Valid(value) {
			continue
		}
		out.Put(tag, string(value))
	}
	return out
}
