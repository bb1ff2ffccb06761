// Package verstub reads the build metadata that verstamp writes into the
// ver_stub section of a binary. Every function here is total: a missing,
// unpatched or malformed section yields an empty Info, never an error.
//
// A program reports its own metadata with Self:
//
//	info := verstub.Self()
//	if sha, ok := info.GitSHA(); ok {
//		fmt.Println("commit", sha)
//	}
package verstub

import (
	"bytes"
	"os"
	"runtime"
	"sync"

	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/field"
	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/wire"
	"github.com/launchbynttdata/launch-ver-stamp/internal/objfile"
)

// Info is the decoded contents of a ver_stub section.
type Info struct {
	fields field.Set
}

// Parse decodes a raw section buffer.
func Parse(buf []byte) Info {
	return Info{fields: wire.Decode(buf)}
}

// Read locates and decodes the section of the binary at path. For a
// universal Mach-O binary the slice matching the running architecture is
// read.
func Read(path string) Info {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}
	}
	r := bytes.NewReader(data)
	sec, err := objfile.Locate(r, objfile.Options{Arch: runtime.GOARCH})
	if err != nil {
		return Info{}
	}
	raw, err := objfile.ReadSection(r, sec)
	if err != nil {
		return Info{}
	}
	return Parse(raw)
}

var (
	selfOnce sync.Once
	selfInfo Info
)

// Self reads the running executable once and caches the result.
func Self() Info {
	selfOnce.Do(func() {
		path, err := os.Executable()
		if err != nil {
			return
		}
		selfInfo = Read(path)
	})
	return selfInfo
}

// SectionName returns the section name verstamp patches for binaries built
// for goos: "__TEXT,ver_stub" on Apple platforms and "ver_stub" elsewhere.
func SectionName(goos string) string {
	switch goos {
	case "darwin", "ios":
		return objfile.CanonicalName(objfile.FormatMachO)
	case "windows":
		return objfile.CanonicalName(objfile.FormatPE)
	default:
		return objfile.CanonicalName(objfile.FormatELF)
	}
}

// IsZero reports whether no field is present.
func (i Info) IsZero() bool {
	return len(i.fields) == 0
}

// Map returns the present fields keyed by name, e.g. "git-sha".
func (i Info) Map() map[string]string {
	out := make(map[string]string, len(i.fields))
	for f, v := range i.fields {
		out[f.String()] = v
	}
	return out
}

// Names returns the names of the present fields in tag order.
func (i Info) Names() []string {
	fields := i.fields.Fields()
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.String())
	}
	return names
}

func (i Info) get(f field.Field) (string, bool) {
	if i.fields == nil {
		return "", false
	}
	return i.fields.Get(f)
}

// GitSHA returns the full commit hash of HEAD at build time.
func (i Info) GitSHA() (string, bool) { return i.get(field.SourceSha) }

// GitDescribe returns the output of git describe, e.g. "v1.2.0-3-gabc1234".
func (i Info) GitDescribe() (string, bool) { return i.get(field.SourceDescribe) }

// GitBranch returns the checked-out branch, or "HEAD" when detached.
func (i Info) GitBranch() (string, bool) { return i.get(field.SourceBranch) }

// GitCommitTimestamp returns the HEAD commit time as an RFC 3339 UTC timestamp.
func (i Info) GitCommitTimestamp() (string, bool) { return i.get(field.SourceCommitTimestamp) }

// GitCommitDate returns the HEAD commit date as YYYY-MM-DD in UTC.
func (i Info) GitCommitDate() (string, bool) { return i.get(field.SourceCommitDate) }

// GitCommitMsg returns the subject line of the HEAD commit.
func (i Info) GitCommitMsg() (string, bool) { return i.get(field.SourceCommitMessage) }

// BuildTimestamp returns the build time as an RFC 3339 UTC timestamp.
func (i Info) BuildTimestamp() (string, bool) { return i.get(field.BuildTimestamp) }

// BuildDate returns the build date as YYYY-MM-DD in UTC.
func (i Info) BuildDate() (string, bool) { return i.get(field.BuildDate) }

// Custom returns the user-supplied string. An empty value that was written
// explicitly reports ok.
func (i Info) Custom() (string, bool) { return i.get(field.Custom) }
