// Package objfiletest builds minimal ELF, Mach-O and PE images with a planted
// section, for tests that need a real section table without a linker.
package objfiletest

import (
	"debug/macho"
	"encoding/binary"
)

const defaultName = "ver_stub"

// Options describes the planted section.
type Options struct {
	// Name defaults to "ver_stub".
	Name string
	// Segment is the Mach-O segment name, "__TEXT" by default.
	Segment string
	// Size defaults to 64.
	Size int
	// Fill seeds the section contents; the rest is zero.
	Fill     []byte
	Writable bool
	// Duplicate plants a second section with the same name after the first.
	Duplicate bool
	// LongName stores a PE section name through the COFF string table.
	LongName bool
	// NoBits marks an ELF section SHT_NOBITS.
	NoBits bool
	// Cpu selects the Mach-O architecture, amd64 by default.
	Cpu macho.Cpu
	// BigEndian and Bits32 pick the Mach-O header variant.
	BigEndian bool
	Bits32    bool
}

// Image is a built file and where its first planted section lives.
type Image struct {
	Data   []byte
	Offset int64
	Size   int64
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = defaultName
	}
	if o.Segment == "" {
		o.Segment = "__TEXT"
	}
	if o.Size == 0 {
		o.Size = 64
	}
	if o.Cpu == 0 {
		o.Cpu = macho.CpuAmd64
	}
	return o
}

func (o Options) contents() []byte {
	buf := make([]byte, o.Size)
	copy(buf, o.Fill)
	return buf
}

func align(n, to int) int {
	return (n + to - 1) / to * to
}

// ELF builds a little-endian ELF64 executable.
func ELF(opts Options) Image {
	opts = opts.withDefaults()
	le := binary.LittleEndian

	const (
		ehsize    = 64
		shentsize = 64
	)

	strtab := []byte{0}
	nameOff := len(strtab)
	strtab = append(strtab, opts.Name...)
	strtab = append(strtab, 0)
	shstrOff := len(strtab)
	strtab = append(strtab, ".shstrtab"...)
	strtab = append(strtab, 0)

	copies := 1
	if opts.Duplicate {
		copies = 2
	}

	dataOff := ehsize
	strOff := dataOff + copies*opts.Size
	if opts.NoBits {
		strOff = dataOff
	}
	shoff := align(strOff+len(strtab), 8)
	shnum := copies + 2
	total := shoff + shnum*shentsize

	out := make([]byte, total)
	copy(out, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	le.PutUint16(out[16:], 2)
	le.PutUint16(out[18:], 62)
	le.PutUint32(out[20:], 1)
	le.PutUint64(out[40:], uint64(shoff))
	le.PutUint16(out[52:], ehsize)
	le.PutUint16(out[54:], 56)
	le.PutUint16(out[58:], shentsize)
	le.PutUint16(out[60:], uint16(shnum))
	le.PutUint16(out[62:], uint16(shnum-1))

	if !opts.NoBits {
		for i := 0; i < copies; i++ {
			copy(out[dataOff+i*opts.Size:], opts.contents())
		}
	}
	copy(out[strOff:], strtab)

	writeSH := func(idx int, name, typ uint32, flags uint64, off, size int) {
		sh := out[shoff+idx*shentsize:]
		le.PutUint32(sh[0:], name)
		le.PutUint32(sh[4:], typ)
		le.PutUint64(sh[8:], flags)
		le.PutUint64(sh[24:], uint64(off))
		le.PutUint64(sh[32:], uint64(size))
		le.PutUint64(sh[48:], 1)
	}

	typ := uint32(1) // SHT_PROGBITS
	if opts.NoBits {
		typ = 8 // SHT_NOBITS
	}
	flags := uint64(0x2) // SHF_ALLOC
	if opts.Writable {
		flags |= 0x1 // SHF_WRITE
	}
	for i := 0; i < copies; i++ {
		writeSH(1+i, uint32(nameOff), typ, flags, dataOff+i*opts.Size, opts.Size)
	}
	writeSH(shnum-1, uint32(shstrOff), 3, 0, strOff, len(strtab))

	return Image{Data: out, Offset: int64(dataOff), Size: int64(opts.Size)}
}

// MachO builds a Mach-O executable with one segment. It is little-endian
// and 64-bit unless BigEndian or Bits32 is set.
func MachO(opts Options) Image {
	opts = opts.withDefaults()

	var bo binary.ByteOrder = binary.LittleEndian
	if opts.BigEndian {
		bo = binary.BigEndian
	}

	const dataOff = 512
	magic, segCmd := uint32(0xfeedfacf), uint32(0x19)
	headerSize, segCmdSize, sectionSize := 32, 72, 80
	if opts.Bits32 {
		magic, segCmd = 0xfeedface, 0x1
		headerSize, segCmdSize, sectionSize = 28, 56, 68
	}

	copies := 1
	if opts.Duplicate {
		copies = 2
	}
	cmdsize := segCmdSize + copies*sectionSize
	total := dataOff + copies*opts.Size

	out := make([]byte, total)
	bo.PutUint32(out[0:], magic)
	bo.PutUint32(out[4:], uint32(opts.Cpu))
	bo.PutUint32(out[8:], 3)
	bo.PutUint32(out[12:], 2)
	bo.PutUint32(out[16:], 1)
	bo.PutUint32(out[20:], uint32(cmdsize))

	prot := uint32(0x5)
	if opts.Writable {
		prot = 0x3
	}

	seg := out[headerSize:]
	bo.PutUint32(seg[0:], segCmd)
	bo.PutUint32(seg[4:], uint32(cmdsize))
	copy(seg[8:24], opts.Segment)
	if opts.Bits32 {
		bo.PutUint32(seg[28:], uint32(total))
		bo.PutUint32(seg[36:], uint32(total))
		bo.PutUint32(seg[40:], 0x7)
		bo.PutUint32(seg[44:], prot)
		bo.PutUint32(seg[48:], uint32(copies))
	} else {
		bo.PutUint64(seg[32:], uint64(total))
		bo.PutUint64(seg[48:], uint64(total))
		bo.PutUint32(seg[56:], 0x7)
		bo.PutUint32(seg[60:], prot)
		bo.PutUint32(seg[64:], uint32(copies))
	}

	for i := 0; i < copies; i++ {
		sec := seg[segCmdSize+i*sectionSize:]
		copy(sec[0:16], opts.Name)
		copy(sec[16:32], opts.Segment)
		if opts.Bits32 {
			bo.PutUint32(sec[36:], uint32(opts.Size))
			bo.PutUint32(sec[40:], uint32(dataOff+i*opts.Size))
		} else {
			bo.PutUint64(sec[40:], uint64(opts.Size))
			bo.PutUint32(sec[48:], uint32(dataOff+i*opts.Size))
		}
		copy(out[dataOff+i*opts.Size:], opts.contents())
	}

	return Image{Data: out, Offset: dataOff, Size: int64(opts.Size)}
}

// Universal wraps one Mach-O slice per option set in a fat container. The
// returned images carry offsets relative to the whole file.
func Universal(slices ...Options) ([]byte, []Image) {
	be := binary.BigEndian

	const sliceAlign = 4096

	images := make([]Image, len(slices))
	thin := make([]Image, len(slices))
	offset := sliceAlign
	offsets := make([]int, len(slices))
	for i, o := range slices {
		thin[i] = MachO(o)
		offsets[i] = offset
		offset = align(offset+len(thin[i].Data), sliceAlign)
	}

	out := make([]byte, offset)
	be.PutUint32(out[0:], 0xcafebabe)
	be.PutUint32(out[4:], uint32(len(slices)))
	for i, o := range slices {
		o = o.withDefaults()
		arch := out[8+i*20:]
		be.PutUint32(arch[0:], uint32(o.Cpu))
		be.PutUint32(arch[4:], 3)
		be.PutUint32(arch[8:], uint32(offsets[i]))
		be.PutUint32(arch[12:], uint32(len(thin[i].Data)))
		be.PutUint32(arch[16:], 12)
		copy(out[offsets[i]:], thin[i].Data)

		images[i] = Image{
			Data:   out,
			Offset: int64(offsets[i]) + thin[i].Offset,
			Size:   thin[i].Size,
		}
	}
	return out, images
}

// PE builds an AMD64 PE image without an optional header. The raw data is
// padded to 512 bytes while VirtualSize keeps the requested size.
func PE(opts Options) Image {
	opts = opts.withDefaults()
	le := binary.LittleEndian

	const (
		peOff       = 0x40
		coffOff     = peOff + 4
		sectionsOff = coffOff + 20
		sectionSize = 40
		fileAlign   = 512
	)

	copies := 1
	if opts.Duplicate {
		copies = 2
	}
	raw := align(opts.Size, fileAlign)
	dataOff := align(sectionsOff+copies*sectionSize, fileAlign)
	strOff := dataOff + copies*raw

	var strtab []byte
	if opts.LongName {
		strtab = make([]byte, 4)
		strtab = append(strtab, opts.Name...)
		strtab = append(strtab, 0)
		le.PutUint32(strtab, uint32(len(strtab)))
	}
	total := strOff + len(strtab)

	out := make([]byte, total)
	out[0], out[1] = 'M', 'Z'
	le.PutUint32(out[0x3c:], peOff)
	copy(out[peOff:], []byte{'P', 'E', 0, 0})

	coff := out[coffOff:]
	le.PutUint16(coff[0:], 0x8664)
	le.PutUint16(coff[2:], uint16(copies))
	if opts.LongName {
		le.PutUint32(coff[8:], uint32(strOff))
	}
	le.PutUint16(coff[18:], 0x22)

	characteristics := uint32(0x40000040) // INITIALIZED_DATA | MEM_READ
	if opts.Writable {
		characteristics |= 0x80000000
	}

	for i := 0; i < copies; i++ {
		sh := out[sectionsOff+i*sectionSize:]
		if opts.LongName {
			copy(sh[0:8], "/4")
		} else {
			copy(sh[0:8], opts.Name)
		}
		le.PutUint32(sh[8:], uint32(opts.Size))
		le.PutUint32(sh[12:], uint32(0x1000*(i+1)))
		le.PutUint32(sh[16:], uint32(raw))
		le.PutUint32(sh[20:], uint32(dataOff+i*raw))
		le.PutUint32(sh[36:], characteristics)
		copy(out[dataOff+i*raw:], opts.contents())
	}
	copy(out[strOff:], strtab)

	return Image{Data: out, Offset: int64(dataOff), Size: int64(opts.Size)}
}
