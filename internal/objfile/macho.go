package objfile

import (
	"debug/macho"
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	vmProtWrite     = 0x2
	sectionTypeMask = 0xff
	sZeroFill       = 0x1
	sGBZeroFill     = 0xc
)

var archNames = map[macho.Cpu][]string{
	macho.Cpu386:   {"i386", "386", "x86"},
	macho.CpuAmd64: {"x86_64", "amd64"},
	macho.CpuArm:   {"arm"},
	macho.CpuArm64: {"arm64", "aarch64"},
	macho.CpuPpc:   {"ppc"},
	macho.CpuPpc64: {"ppc64"},
}

func archName(cpu macho.Cpu) string {
	if names, ok := archNames[cpu]; ok {
		return names[0]
	}
	return strings.ToLower(strings.TrimPrefix(cpu.String(), "Cpu"))
}

func matchesArch(cpu macho.Cpu, want string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	for _, name := range archNames[cpu] {
		if name == want {
			return true
		}
	}
	return archName(cpu) == want
}

func locateMachO(r io.ReaderAt, base int64, arch string) (Section, error) {
	f, err := macho.NewFile(r)
	if err != nil {
		return Section{}, &FormatError{Format: FormatMachO, Err: err}
	}
	return machoSection(f, base, arch)
}

// locateUniversal picks the slice named by arch. Picking one silently would
// patch a slice the caller may not run, so an empty arch is an error.
func locateUniversal(r io.ReaderAt, arch string) (Section, error) {
	ff, err := macho.NewFatFile(r)
	if err != nil {
		return Section{}, &FormatError{Format: FormatMachOUniversal, Err: err}
	}

	available := make([]string, 0, len(ff.Arches))
	for _, fa := range ff.Arches {
		available = append(available, archName(fa.Cpu))
	}
	sort.Strings(available)

	if strings.TrimSpace(arch) == "" {
		return Section{}, fmt.Errorf("%w (available: %s)", ErrArchRequired, strings.Join(available, ", "))
	}

	for _, fa := range ff.Arches {
		if !matchesArch(fa.Cpu, arch) {
			continue
		}
		return machoSection(fa.File, int64(fa.Offset), archName(fa.Cpu))
	}
	return Section{}, fmt.Errorf("%w: %q (available: %s)", ErrArchNotFound, arch, strings.Join(available, ", "))
}

func machoSection(f *macho.File, base int64, arch string) (Section, error) {
	var found *macho.Section
	matches := 0
	for _, s := range f.Sections {
		if s.Seg != MachOSegment || s.Name != SectionName {
			continue
		}
		matches++
		if found == nil {
			found = s
		}
	}
	if found == nil {
		return Section{}, ErrSectionNotFound
	}
	switch found.Flags & sectionTypeMask {
	case sZeroFill, sGBZeroFill:
		return Section{}, &FormatError{Format: FormatMachO, Err: ErrNoFileData}
	}

	writable := false
	if seg := f.Segment(found.Seg); seg != nil {
		writable = seg.Prot&vmProtWrite != 0
	}

	return Section{
		Format:   FormatMachO,
		Name:     CanonicalName(FormatMachO),
		Offset:   base + int64(found.Offset),
		Size:     int64(found.Size),
		Writable: writable,
		Arch:     arch,
		Matches:  matches,
	}, nil
}
