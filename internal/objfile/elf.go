package objfile

import (
	"debug/elf"
	"io"
)

func locateELF(r io.ReaderAt) (Section, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return Section{}, &FormatError{Format: FormatELF, Err: err}
	}

	var found *elf.Section
	matches := 0
	for _, s := range f.Sections {
		if s.Name != SectionName {
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
	if found.Type == elf.SHT_NOBITS {
		return Section{}, &FormatError{Format: FormatELF, Err: ErrNoFileData}
	}

	return Section{
		Format:   FormatELF,
		Name:     SectionName,
		Offset:   int64(found.Offset),
		Size:     int64(found.Size),
		Writable: found.Flags&elf.SHF_WRITE != 0,
		Matches:  matches,
	}, nil
}
