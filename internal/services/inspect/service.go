package inspect

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/field"
	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/wire"
	"github.com/launchbynttdata/launch-ver-stamp/internal/objfile"
)

// Options controls how a file is read.
type Options struct {
	// Raw treats the file as a standalone section data file.
	Raw bool
	// Arch selects the slice of a universal Mach-O binary.
	Arch string
}

// Report is what a file carries in its ver_stub section.
type Report struct {
	Path    string
	Format  objfile.Format
	Section objfile.Section
	// Found is false when a binary has no section; Fields is then empty.
	Found  bool
	Fields field.Set
}

// Service decodes the section from binaries and data files.
type Service struct {
	logger *zap.Logger
}

// NewService constructs a Service. A nil logger discards output.
func NewService(logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Service{logger: logger}
}

// Inspect reads path and decodes its section. A binary without the section
// is reported with Found=false rather than an error.
func (s Service) Inspect(path string, opts Options) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}

	if opts.Raw {
		return Report{Path: path, Found: true, Fields: wire.Decode(data)}, nil
	}

	r := bytes.NewReader(data)
	format, err := objfile.Detect(r)
	if err != nil {
		return Report{}, fmt.Errorf("%s: %w", path, err)
	}

	report := Report{Path: path, Format: format, Fields: field.Set{}}
	sec, err := objfile.Locate(r, objfile.Options{Arch: opts.Arch})
	switch {
	case errors.Is(err, objfile.ErrSectionNotFound):
		s.logger.Debug("section not found", zap.String("path", path), zap.String("format", format.String()))
		return report, nil
	case err != nil:
		return Report{}, fmt.Errorf("locating section in %s: %w", path, err)
	}

	raw, err := objfile.ReadSection(r, sec)
	if err != nil {
		return Report{}, fmt.Errorf("reading section in %s: %w", path, err)
	}
	if sec.Duplicate() != nil {
		s.logger.Warn("reading first of duplicate sections", zap.String("path", path), zap.Int("matches", sec.Matches))
	}

	report.Section = sec
	report.Found = true
	report.Fields = wire.Decode(raw)
	return report, nil
}
