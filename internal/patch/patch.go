package patch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/launchbynttdata/launch-ver-stamp/internal/objfile"
)

// DataFileName is written inside a directory passed to WriteBuffer.
const DataFileName = "ver_stub_data"

var (
	ErrSizeMismatch     = errors.New("patch: buffer size does not match section size")
	ErrWindowOutOfRange = errors.New("patch: section window extends past end of file")
	ErrSameFile         = errors.New("patch: output path is the input path")
)

// SizeMismatchError reports a buffer that is not exactly the section size.
type SizeMismatchError struct {
	Want int64
	Got  int64
}

// Direction is "oversize" when the buffer is larger than the section and
// "undersize" when it is smaller.
func (e *SizeMismatchError) Direction() string {
	if e.Got > e.Want {
		return "oversize"
	}
	return "undersize"
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("patch: buffer is %s: section is %d bytes, buffer is %d bytes", e.Direction(), e.Want, e.Got)
}

func (e *SizeMismatchError) Is(target error) bool {
	return target == ErrSizeMismatch
}

// DefaultOutputName returns "{name}.bin", keeping a trailing executable
// suffix last: "tool" becomes "tool.bin", "tool.exe" becomes "tool.bin.exe".
func DefaultOutputName(input string) string {
	base := filepath.Base(input)
	ext := exeSuffix(base)
	return strings.TrimSuffix(base, ext) + ".bin" + ext
}

func exeSuffix(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".exe") {
		return filepath.Ext(name)
	}
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// OutputPath resolves where the artifact for input goes. An empty output
// means next to the input; an existing directory receives the default name.
func OutputPath(input, output string) string {
	if output == "" {
		return filepath.Join(filepath.Dir(input), DefaultOutputName(input))
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, DefaultOutputName(input))
	}
	return output
}

// Apply copies src to dst and overwrites [sec.Offset, sec.End()) in the
// copy with buf. The copy keeps the file mode of src and the file length.
// src is only ever opened for reading, and dst is replaced atomically, so a
// failure leaves both the input and any previous dst intact.
func Apply(src string, sec objfile.Section, buf []byte, dst string) error {
	if int64(len(buf)) != sec.Size {
		return &SizeMismatchError{Want: sec.Size, Got: int64(len(buf))}
	}
	return copyFile(src, dst, func(f *os.File, size int64) error {
		if sec.Offset < 0 || sec.End() > size {
			return fmt.Errorf("%w: [%d, %d) in %d byte file", ErrWindowOutOfRange, sec.Offset, sec.End(), size)
		}
		if _, err := f.WriteAt(buf, sec.Offset); err != nil {
			return fmt.Errorf("writing section: %w", err)
		}
		return nil
	})
}

// Copy copies src to dst unchanged, for binaries without the section.
func Copy(src, dst string) error {
	return copyFile(src, dst, nil)
}

func copyFile(src, dst string, edit func(f *os.File, size int64) error) (err error) {
	if err := refuseSameFile(src, dst); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if edit != nil {
		if err = edit(tmp, info.Size()); err != nil {
			return err
		}
	}
	if err = tmp.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func refuseSameFile(src, dst string) error {
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	if srcAbs == dstAbs {
		return fmt.Errorf("%w: %s", ErrSameFile, src)
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(srcInfo, dstInfo) {
		return fmt.Errorf("%w: %s and %s", ErrSameFile, src, dst)
	}
	return nil
}

// WriteBuffer writes buf to path, or to path/ver_stub_data when path is a
// directory, and returns the file written. The file is meant for external
// tools such as objcopy --update-section.
func WriteBuffer(path string, buf []byte) (string, error) {
	out := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		out = filepath.Join(path, DataFileName)
	}
	if err := os.WriteFile(out, buf, 0o644); err != nil {
		return "", err
	}
	return out, nil
}
