package verstub

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	semver "github.com/blang/semver/v4"
)

var (
	ErrNoDescribe = errors.New("verstub: git-describe field is absent")
	ErrNotSemver  = errors.New("verstub: git-describe does not start from a semver tag")
)

// describeSuffix matches the "-<commits>-g<hash>" part git describe appends
// when HEAD is past the tag.
var describeSuffix = regexp.MustCompile(`-(\d+)-g([0-9a-f]+)$`)

// Semver parses the git-describe field. A tag such as "v1.4.0" yields 1.4.0;
// commits past the tag and a dirty tree become build metadata, so
// "v1.4.0-3-gabc1234-dirty" yields 1.4.0+3.gabc1234.dirty.
func (i Info) Semver() (semver.Version, error) {
	describe, ok := i.GitDescribe()
	if !ok || strings.TrimSpace(describe) == "" {
		return semver.Version{}, ErrNoDescribe
	}
	return parseDescribe(describe)
}

func parseDescribe(describe string) (semver.Version, error) {
	rest := strings.TrimSpace(describe)

	var build []string
	dirty := strings.HasSuffix(rest, "-dirty")
	rest = strings.TrimSuffix(rest, "-dirty")

	if m := describeSuffix.FindStringSubmatch(rest); m != nil {
		build = append(build, m[1], "g"+m[2])
		rest = strings.TrimSuffix(rest, m[0])
	}
	if dirty {
		build = append(build, "dirty")
	}

	version, ok := parseSemverTag(rest)
	if !ok {
		return semver.Version{}, fmt.Errorf("%w: %q", ErrNotSemver, describe)
	}
	if len(build) > 0 {
		version.Build = append(version.Build, build...)
	}
	return version, nil
}

func parseSemverTag(name string) (semver.Version, bool) {
	normalized := strings.TrimSpace(name)
	normalized = strings.TrimPrefix(normalized, "refs/tags/")
	if normalized == "" {
		return semver.Version{}, false
	}

	if version, err := semver.Parse(normalized); err == nil {
		return version, true
	}

	if len(normalized) > 1 && (normalized[0] == 'v' || normalized[0] == 'V') {
		if version, err := semver.Parse(normalized[1:]); err == nil {
			return version, true
		}
	}

	return semver.Version{}, false
}
