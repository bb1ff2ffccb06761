// Package objfile finds the ver_stub section inside ELF, Mach-O and PE/COFF
// executables and reports where its bytes live in the file.
package objfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/wire"
)

// SectionName is the section name on ELF and PE/COFF, and the section part
// of the Mach-O (segment, section) pair.
const SectionName = "ver_stub"

// MachOSegment is the segment holding the section on Mach-O.
const MachOSegment = "__TEXT"

var (
	ErrUnknownFormat    = errors.New("objfile: unrecognized object format")
	ErrSectionNotFound  = errors.New("objfile: section not found")
	ErrDuplicateSection = errors.New("objfile: section appears more than once")
	ErrNoFileData       = errors.New("objfile: section occupies no bytes in the file")
	ErrArchRequired     = errors.New("objfile: universal binary requires an architecture")
	ErrArchNotFound     = errors.New("objfile: architecture not present in universal binary")
	ErrSectionBounds    = errors.New("objfile: section lies outside the file")
)

// Format is the container layout of an executable.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatELF
	FormatMachO
	// FormatMachOUniversal is only reported by Detect; located sections
	// always carry FormatMachO plus the slice architecture.
	FormatMachOUniversal
	FormatPE
)

func (f Format) String() string {
	switch f {
	case FormatELF:
		return "elf"
	case FormatMachO:
		return "macho"
	case FormatMachOUniversal:
		return "macho-universal"
	case FormatPE:
		return "pe"
	default:
		return "unknown"
	}
}

// ParseFormat converts a format name (elf, macho, pe, coff) into a Format.
func ParseFormat(value string) (Format, error) {
	switch value {
	case "elf":
		return FormatELF, nil
	case "macho", "mach-o":
		return FormatMachO, nil
	case "pe", "coff", "pecoff":
		return FormatPE, nil
	default:
		return FormatUnknown, fmt.Errorf("invalid object format %q", value)
	}
}

// CanonicalName returns the name the section is known by in format f.
func CanonicalName(f Format) string {
	if f == FormatMachO || f == FormatMachOUniversal {
		return MachOSegment + "," + SectionName
	}
	return SectionName
}

// FormatError wraps a parse failure with the format being parsed.
type FormatError struct {
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("objfile: parsing %s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Section describes where the section's bytes are in the file.
type Section struct {
	Format   Format
	Name     string
	Offset   int64
	Size     int64
	Writable bool
	// Arch is the selected slice of a universal Mach-O binary, empty otherwise.
	Arch string
	// Matches counts every entry in the table with the section's name. Only
	// the first is described; more than one is reported by Duplicate.
	Matches int
}

// Duplicate returns an ErrDuplicateSection-wrapping error when more than
// one table entry matched, nil otherwise. It is advisory.
func (s Section) Duplicate() error {
	if s.Matches <= 1 {
		return nil
	}
	return fmt.Errorf("%w: %s has %d entries, using the first at offset %d", ErrDuplicateSection, s.Name, s.Matches, s.Offset)
}

// End returns the offset one past the last byte of the section.
func (s Section) End() int64 {
	return s.Offset + s.Size
}

// Options tunes Locate.
type Options struct {
	// Arch selects the slice of a universal Mach-O binary (e.g. "arm64", "x86_64").
	Arch string
}

// Detect classifies r by its header magic.
func Detect(r io.ReaderAt) (Format, error) {
	var magic [4]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return FormatUnknown, ErrUnknownFormat
		}
		return FormatUnknown, fmt.Errorf("reading header: %w", err)
	}

	switch {
	case bytes.Equal(magic[:], []byte{0x7f, 'E', 'L', 'F'}):
		return FormatELF, nil
	case isMachOMagic(magic):
		return FormatMachO, nil
	case binary.BigEndian.Uint32(magic[:]) == 0xcafebabe:
		return FormatMachOUniversal, nil
	case magic[0] == 'M' && magic[1] == 'Z':
		if hasPESignature(r) {
			return FormatPE, nil
		}
	}
	return FormatUnknown, ErrUnknownFormat
}

func isMachOMagic(magic [4]byte) bool {
	switch binary.BigEndian.Uint32(magic[:]) {
	case 0xfeedface, 0xfeedfacf, 0xcefaedfe, 0xcffaedfe:
		return true
	default:
		return false
	}
}

func hasPESignature(r io.ReaderAt) bool {
	var lfanew [4]byte
	if _, err := r.ReadAt(lfanew[:], 0x3c); err != nil {
		return false
	}
	var sig [4]byte
	if _, err := r.ReadAt(sig[:], int64(binary.LittleEndian.Uint32(lfanew[:]))); err != nil {
		return false
	}
	return bytes.Equal(sig[:], []byte{'P', 'E', 0, 0})
}

// Locate detects the format of r and returns the first ver_stub section.
// A binary without the section yields ErrSectionNotFound, which callers
// that tolerate a garbage-collected section treat as nothing to patch.
func Locate(r io.ReaderAt, opts Options) (Section, error) {
	format, err := Detect(r)
	if err != nil {
		return Section{}, err
	}

	var sec Section
	switch format {
	case FormatELF:
		sec, err = locateELF(r)
	case FormatMachO:
		sec, err = locateMachO(r, 0, "")
	case FormatMachOUniversal:
		sec, err = locateUniversal(r, opts.Arch)
	case FormatPE:
		sec, err = locatePE(r)
	default:
		return Section{}, ErrUnknownFormat
	}
	if err != nil {
		return Section{}, err
	}
	if err := checkBounds(r, sec); err != nil {
		return Section{}, &FormatError{Format: format, Err: err}
	}
	return sec, nil
}

// checkBounds rejects a section whose header places it outside r or makes
// it larger than any ver_stub buffer can be.
func checkBounds(r io.ReaderAt, sec Section) error {
	if sec.Offset < 0 || sec.Size < 0 || sec.Size > wire.MaxCapacity {
		return fmt.Errorf("%w: %s has offset %d size %d", ErrSectionBounds, sec.Name, sec.Offset, sec.Size)
	}
	if sized, ok := r.(interface{ Size() int64 }); ok {
		if sec.Offset > sized.Size()-sec.Size {
			return fmt.Errorf("%w: %s ends at %d, file is %d bytes", ErrSectionBounds, sec.Name, sec.End(), sized.Size())
		}
		return nil
	}
	if sec.Size == 0 {
		return nil
	}
	var last [1]byte
	if _, err := r.ReadAt(last[:], sec.End()-1); err != nil {
		return fmt.Errorf("%w: %s ends at %d: %v", ErrSectionBounds, sec.Name, sec.End(), err)
	}
	return nil
}

// LocateFile reads the file at path into memory and locates the section.
func LocateFile(path string, opts Options) (Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Section{}, err
	}
	return Locate(bytes.NewReader(data), opts)
}

// ReadSection returns the bytes of sec from r. Sections from Locate are
// already bounded; a hand-built sec is checked again before allocating.
func ReadSection(r io.ReaderAt, sec Section) ([]byte, error) {
	if err := checkBounds(r, sec); err != nil {
		return nil, err
	}
	buf := make([]byte, sec.Size)
	if _, err := r.ReadAt(buf, sec.Offset); err != nil {
		return nil, fmt.Errorf("reading %s at offset %d: %w", sec.Name, sec.Offset, err)
	}
	return buf, nil
}
