package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = ".verstamp.yaml"

// File is the YAML config file. Pointer fields distinguish "not set" from
// zero values; unknown keys are rejected.
type File struct {
	BufferSize     *int     `yaml:"buffer_size"`
	Idempotent     *bool    `yaml:"idempotent"`
	BuildTime      *string  `yaml:"build_time"`
	LogLevel       string   `yaml:"log_level"`
	RepoDir        string   `yaml:"repo_dir"`
	Custom         *string  `yaml:"custom"`
	Fields         []string `yaml:"fields"`
	FailOnError    *bool    `yaml:"fail_on_error"`
	Arch           string   `yaml:"arch"`
	RequireSection *bool    `yaml:"require_section"`
}

// LoadFile reads path. A missing file yields an empty File unless required
// is set, which is the case when the path was given explicitly.
func LoadFile(path string, required bool) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return File{}, nil
		}
		return File{}, fmt.Errorf("reading config file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes YAML config data.
func ParseFile(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parsing config file: %w", err)
	}
	return f, nil
}

// IntOr returns *p, or fallback when p is nil.
func IntOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

// BoolOr returns *p, or fallback when p is nil.
func BoolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// StringOr returns s, or fallback when s is empty.
func StringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
