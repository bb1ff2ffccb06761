package objfile

import (
	"debug/pe"
	"io"
)

func locatePE(r io.ReaderAt) (Section, error) {
	// debug/pe already resolves "/<offset>" names through the COFF string
	// table, so Section.Name is the real name here.
	f, err := pe.NewFile(r)
	if err != nil {
		return Section{}, &FormatError{Format: FormatPE, Err: err}
	}

	var found *pe.Section
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
	if found.Size == 0 || found.Offset == 0 {
		return Section{}, &FormatError{Format: FormatPE, Err: ErrNoFileData}
	}

	// SizeOfRawData is rounded up to the file alignment; VirtualSize is
	// the size the linker was asked for.
	size := int64(found.Size)
	if found.VirtualSize != 0 && int64(found.VirtualSize) < size {
		size = int64(found.VirtualSize)
	}

	return Section{
		Format:   FormatPE,
		Name:     SectionName,
		Offset:   int64(found.Offset),
		Size:     size,
		Writable: found.Characteristics&pe.IMAGE_SCN_MEM_WRITE != 0,
		Matches:  matches,
	}, nil
}
