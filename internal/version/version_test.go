package version

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/field"
	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/wire"
	"github.com/launchbynttdata/launch-ver-stamp/verstub"
)

func TestSummaryUsesCurrentValues(t *testing.T) {
	oldVersion := Version
	oldDate := BuildDate
	t.Cleanup(func() {
		Version = oldVersion
		BuildDate = oldDate
	})

	Version = "v1.2.3"
	BuildDate = "2025-01-02T03:04:05Z"

	summary := Summary()

	if summary != "v1.2.3 (built 2025-01-02T03:04:05Z)" {
		t.Fatalf("unexpected summary: %s", summary)
	}

	if Details(verstub.Info{}) != summary {
		t.Fatalf("empty info must not add lines")
	}

	buf, err := wire.Encode(field.Set{field.SourceSha: "abc", field.BuildDate: "2025-01-02"}, 64)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := summary + "\n  git-sha: abc\n  build-date: 2025-01-02"
	if got := Details(verstub.Parse(buf)); got != want {
		t.Fatalf("unexpected details:\n%s", got)
	}
}

func TestPackageDocPrecedesClause(t *testing.T) {
	t.Parallel()

	f, err := parser.ParseFile(token.NewFileSet(), "version.go", nil, parser.PackageClauseOnly|parser.ParseComments)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Doc == nil {
		t.Fatalf("version.go has no package comment")
	}
}
