package cli

import (
	"bytes"
	"context"
	"debug/macho"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/buildtime"
	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/field"
	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/wire"
	"github.com/launchbynttdata/launch-ver-stamp/internal/objfile/objfiletest"
	"github.com/launchbynttdata/launch-ver-stamp/internal/patch"
	"github.com/launchbynttdata/launch-ver-stamp/internal/services/inspect"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--log-level", "quiet"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeELF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app")
	if err := os.WriteFile(path, objfiletest.ELF(objfiletest.Options{Size: 128}).Data, 0o755); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestPatchAndInspect(t *testing.T) {
	input := writeELF(t)

	out, err := runCLI(t, "patch", input, "--custom", "ci-42", "--build-date", "--build-time", "1700000000")
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	patched := strings.TrimSpace(out)
	if patched != patch.OutputPath(input, "") {
		t.Fatalf("unexpected output path %q", patched)
	}

	out, err = runCLI(t, "inspect", patched, "--format", "json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var doc inspect.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	want := map[string]string{"custom": "ci-42", "build-date": "2023-11-14"}
	if diff := cmp.Diff(want, doc.Fields); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
}

func writeUniversal(t *testing.T) string {
	t.Helper()
	slice := func(cpu macho.Cpu, custom string) objfiletest.Options {
		buf, err := wire.Encode(field.Set{field.Custom: custom}, 64)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		return objfiletest.Options{Cpu: cpu, Size: 64, Fill: buf}
	}
	data, _ := objfiletest.Universal(slice(macho.CpuAmd64, "intel"), slice(macho.CpuArm64, "apple"))
	path := filepath.Join(t.TempDir(), "fat")
	if err := os.WriteFile(path, data, 0o755); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func inspectJSON(t *testing.T, args ...string) inspect.Document {
	t.Helper()
	out, err := runCLI(t, append([]string{"inspect", "--format", "json"}, args...)...)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var doc inspect.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	return doc
}

func TestInspectResolvesArchLikePatch(t *testing.T) {
	input := writeUniversal(t)

	cfgPath := filepath.Join(t.TempDir(), "verstamp.yaml")
	if err := os.WriteFile(cfgPath, []byte("arch: x86_64\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	doc := inspectJSON(t, "--config", cfgPath, input)
	if doc.Section == nil || doc.Section.Arch != "x86_64" || doc.Fields["custom"] != "intel" {
		t.Fatalf("config file arch not applied: %+v", doc)
	}

	t.Setenv(envArch, "arm64")
	doc = inspectJSON(t, "--config", cfgPath, input)
	if doc.Section == nil || doc.Section.Arch != "arm64" || doc.Fields["custom"] != "apple" {
		t.Fatalf("%s must override the config file: %+v", envArch, doc)
	}

	doc = inspectJSON(t, "--arch", "amd64", input)
	if doc.Section == nil || doc.Section.Arch != "x86_64" {
		t.Fatalf("--arch must override %s: %+v", envArch, doc)
	}
}

func TestPatchRejectsBadBuildTime(t *testing.T) {
	input := writeELF(t)

	_, err := runCLI(t, "patch", input, "--build-timestamp", "--build-time", "not-a-timestamp")
	if !errors.Is(err, buildtime.ErrInvalidOverride) {
		t.Fatalf("expected ErrInvalidOverride got %v", err)
	}
	if _, err := os.Stat(patch.OutputPath(input, "")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no artifact should be written")
	}
}

func TestIdempotentEnvDropsBuildTime(t *testing.T) {
	t.Setenv(envIdempotent, "")
	dir := t.TempDir()

	out, err := runCLI(t, "-o", dir, "--all-build-time", "--custom", "x")
	if err != nil {
		t.Fatalf("write data: %v", err)
	}
	data, err := os.ReadFile(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if len(data) != wire.DefaultCapacity {
		t.Fatalf("want %d bytes got %d", wire.DefaultCapacity, len(data))
	}
	got := wire.Decode(data)
	if len(got) != 1 {
		t.Fatalf("only the custom field should be present, got %v", got)
	}
}

func TestBufferSizeFromEnv(t *testing.T) {
	t.Setenv(envBufferSize, "64")
	path := filepath.Join(t.TempDir(), "data.bin")

	if _, err := runCLI(t, "-o", path, "--custom", "x"); err != nil {
		t.Fatalf("write data: %v", err)
	}
	data, _ := os.ReadFile(path)
	if len(data) != 64 {
		t.Fatalf("want 64 bytes got %d", len(data))
	}

	t.Setenv(envBufferSize, "16")
	if _, err := runCLI(t, "-o", path, "--custom", "x"); !errors.Is(err, wire.ErrInvalidCapacity) {
		t.Fatalf("expected ErrInvalidCapacity got %v", err)
	}
}

func TestConfigFileSuppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "verstamp.yaml")
	if err := os.WriteFile(cfgPath, []byte("custom: from-file\nbuffer_size: 100\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCLI(t, "--config", cfgPath, "-o", dir)
	if err != nil {
		t.Fatalf("write data: %v", err)
	}
	data, _ := os.ReadFile(strings.TrimSpace(out))
	if len(data) != 100 {
		t.Fatalf("want 100 bytes got %d", len(data))
	}
	if v, _ := wire.Decode(data).Get(field.Custom); v != "from-file" {
		t.Fatalf("unexpected custom value %q", v)
	}

	if _, err := runCLI(t, "--config", filepath.Join(dir, "absent.yaml"), "-o", dir); err == nil {
		t.Fatalf("an explicit missing config file must fail")
	}
}

func TestPrintSectionName(t *testing.T) {
	out, err := runCLI(t, "print-section-name", "--target", "macho")
	if err != nil {
		t.Fatalf("print-section-name: %v", err)
	}
	if strings.TrimSpace(out) != "__TEXT,ver_stub" {
		t.Fatalf("unexpected name %q", out)
	}

	if _, err := runCLI(t, "print-section-name", "--target", "wasm"); err == nil {
		t.Fatalf("expected error for unknown target")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "verstamp ") {
		t.Fatalf("unexpected version output %q", out)
	}
}
