package inspect

import (
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/launchbynttdata/launch-ver-stamp/internal/objfile"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownOutput indicates an unsupported --format value.
var ErrUnknownOutput = errors.New("inspect: output format must be text, json or yaml")

// Document is the serialized form of a Report. Fields are keyed by name.
type Document struct {
	Path    string            `json:"path" yaml:"path"`
	Format  string            `json:"format,omitempty" yaml:"format,omitempty"`
	Found   bool              `json:"found" yaml:"found"`
	Section *SectionDocument  `json:"section,omitempty" yaml:"section,omitempty"`
	Fields  map[string]string `json:"fields" yaml:"fields"`
}

// SectionDocument describes where the section lives.
type SectionDocument struct {
	Name     string `json:"name" yaml:"name"`
	Offset   int64  `json:"offset" yaml:"offset"`
	Size     int64  `json:"size" yaml:"size"`
	Writable bool   `json:"writable" yaml:"writable"`
	Arch     string `json:"arch,omitempty" yaml:"arch,omitempty"`
}

// Document converts r for serialization.
func (r Report) Document() Document {
	doc := Document{Path: r.Path, Found: r.Found, Fields: map[string]string{}}
	if r.Format != objfile.FormatUnknown {
		doc.Format = r.Format.String()
	}
	if r.Found && r.Section.Name != "" {
		doc.Section = &SectionDocument{
			Name:     r.Section.Name,
			Offset:   r.Section.Offset,
			Size:     r.Section.Size,
			Writable: r.Section.Writable,
			Arch:     r.Section.Arch,
		}
	}
	for f, v := range r.Fields {
		doc.Fields[f.String()] = v
	}
	return doc
}

// Render writes r to w as text, json or yaml.
func Render(w io.Writer, r Report, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText, "":
		return renderText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r.Document())
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r.Document()); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutput, format)
	}
}

func renderText(w io.Writer, r Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Path)
	if r.Format != objfile.FormatUnknown {
		fmt.Fprintf(&b, "  format: %s\n", r.Format)
	}
	if !r.Found {
		b.WriteString("  section: not found\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	if r.Section.Name != "" {
		fmt.Fprintf(&b, "  section: %s offset=%d size=%d", r.Section.Name, r.Section.Offset, r.Section.Size)
		if r.Section.Arch != "" {
			fmt.Fprintf(&b, " arch=%s", r.Section.Arch)
		}
		if r.Section.Writable {
			b.WriteString(" writable")
		}
		b.WriteString("\n")
	}
	fields := r.Fields.Fields()
	if len(fields) == 0 {
		b.WriteString("  (no fields)\n")
	}
	for _, f := range fields {
		v, _ := r.Fields.Get(f)
		fmt.Fprintf(&b, "  %s: %s\n", f, v)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
