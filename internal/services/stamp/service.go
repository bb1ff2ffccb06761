package stamp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/buildtime"
	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/field"
	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/wire"
	"github.com/launchbynttdata/launch-ver-stamp/internal/gitinfo"
	"github.com/launchbynttdata/launch-ver-stamp/internal/objfile"
	"github.com/launchbynttdata/launch-ver-stamp/internal/patch"
)

var (
	ErrNothingSelected = errors.New("stamp service: no fields selected and no custom string given")
	ErrNilClient       = errors.New("stamp service: nil git client")
	ErrDuplicateTarget = errors.New("stamp service: the same path appears in more than one target")
	ErrNoTargets       = errors.New("stamp service: no targets given")
)

// Config captures what to collect and how to patch.
type Config struct {
	// Fields lists the requested git and build-time fields. field.Custom is
	// controlled by Custom instead.
	Fields []field.Field
	// Custom is written verbatim when non-nil, including the empty string.
	Custom    *string
	BuildTime buildtime.Inputs
	// Capacity is the buffer size for standalone data files. Zero means
	// wire.DefaultCapacity. Patching always uses the section's own size.
	Capacity int
	// FailOnError turns git collection failures into errors instead of
	// skipped fields.
	FailOnError bool
	// RequireSection fails a patch whose input has no ver_stub section
	// instead of copying it unchanged.
	RequireSection bool
	// Arch selects the slice of a universal Mach-O binary.
	Arch string
}

// Target names one binary to patch. An empty Output writes next to Input;
// a directory Output receives the default name.
type Target struct {
	Input  string
	Output string
}

// Result describes one patch outcome.
type Result struct {
	Input   string
	Output  string
	Section objfile.Section
	// Patched is false when the input had no section and was copied as is.
	Patched bool
	Fields  field.Set
}

// Service collects build metadata and writes it into binaries.
type Service struct {
	git    gitinfo.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewService constructs a Service. A nil logger discards output.
func NewService(git gitinfo.Client, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Service{git: git, logger: logger, now: time.Now}
}

// WithClock returns a copy of s that reads wall-clock time from now.
func (s Service) WithClock(now func() time.Time) Service {
	s.now = now
	return s
}

// Collect builds the field set for cfg. When a build-time field is
// selected the build time is resolved before anything else, so an invalid
// override fails without side effects. Otherwise overrides are ignored.
func (s Service) Collect(ctx context.Context, cfg Config) (field.Set, error) {
	want := selection(cfg.Fields)
	if len(want) == 0 && cfg.Custom == nil {
		return nil, ErrNothingSelected
	}

	wantTime := want[field.BuildTimestamp] || want[field.BuildDate]
	var when buildtime.Result
	if wantTime {
		var err error
		when, err = buildtime.Resolve(cfg.BuildTime, s.now)
		if err != nil {
			return nil, fmt.Errorf("resolving build time: %w", err)
		}
	}

	set := field.Set{}
	if err := s.collectGit(ctx, want, cfg.FailOnError, set); err != nil {
		return nil, err
	}

	if wantTime {
		when.Apply(set, want[field.BuildTimestamp], want[field.BuildDate])
		if !when.Present {
			s.logger.Debug("build time omitted", zap.String("source", string(when.Source)))
		}
	}

	if cfg.Custom != nil {
		if !utf8.ValidString(*cfg.Custom) {
			return nil, &wire.ValueError{Field: field.Custom}
		}
		set.Put(field.Custom, *cfg.Custom)
	}

	return set, nil
}

func selection(fields []field.Field) map[field.Field]bool {
	want := make(map[field.Field]bool, len(fields))
	for _, f := range fields {
		if f == field.Custom || !f.Known() {
			continue
		}
		want[f] = true
	}
	return want
}

func (s Service) collectGit(ctx context.Context, want map[field.Field]bool, failOnError bool, set field.Set) error {
	for _, f := range field.Git() {
		if !want[f] {
			continue
		}
		if s.git == nil {
			return ErrNilClient
		}

		value, err := s.gitValue(ctx, f)
		if err == nil && !utf8.ValidString(value) {
			err = &wire.ValueError{Field: f}
		}
		if err != nil {
			if failOnError {
				return fmt.Errorf("collecting %s: %w", f, err)
			}
			s.logger.Warn("skipping field", zap.String("field", f.String()), zap.Error(err))
			if errors.Is(err, gitinfo.ErrNotRepository) {
				return nil
			}
			continue
		}
		s.logger.Debug("field collected", zap.String("field", f.String()), zap.String("value", value))
		set.Put(f, value)
	}
	return nil
}

func (s Service) gitValue(ctx context.Context, f field.Field) (string, error) {
	switch f {
	case field.SourceSha:
		return s.git.SHA(ctx)
	case field.SourceDescribe:
		return s.git.Describe(ctx)
	case field.SourceBranch:
		return s.git.Branch(ctx)
	case field.SourceCommitTimestamp, field.SourceCommitDate:
		when, err := s.git.CommitTime(ctx)
		if err != nil {
			return "", err
		}
		if f == field.SourceCommitDate {
			return buildtime.Date(when), nil
		}
		return buildtime.Timestamp(when), nil
	case field.SourceCommitMessage:
		return s.git.CommitSubject(ctx)
	default:
		return "", fmt.Errorf("%s is not a git field", f)
	}
}

// WriteData encodes the collected fields at the configured capacity and
// writes them to path, or to path/ver_stub_data when path is a directory.
func (s Service) WriteData(ctx context.Context, cfg Config, path string) (string, error) {
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = wire.DefaultCapacity
	}
	if err := wire.ValidateCapacity(capacity); err != nil {
		return "", err
	}

	set, err := s.Collect(ctx, cfg)
	if err != nil {
		return "", err
	}

	buf, err := wire.Encode(set, capacity)
	if err != nil {
		return "", fmt.Errorf("encoding fields: %w", err)
	}

	written, err := patch.WriteBuffer(path, buf)
	if err != nil {
		return "", fmt.Errorf("writing section data: %w", err)
	}

	s.logger.Info("section data written",
		zap.String("path", written),
		zap.Int("capacity", capacity),
		zap.Int("used", wire.EncodedSize(set)),
		zap.Strings("fields", fieldNames(set)),
	)
	return written, nil
}

// Patch collects the fields for cfg and writes them into one target.
func (s Service) Patch(ctx context.Context, cfg Config, target Target) (Result, error) {
	set, err := s.Collect(ctx, cfg)
	if err != nil {
		return Result{}, err
	}
	return s.patchOne(ctx, cfg, set, target)
}

// PatchMany writes one field set into several distinct targets
// concurrently. Two targets may not share an input or output path.
func (s Service) PatchMany(ctx context.Context, cfg Config, targets []Target) ([]Result, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if err := checkDistinct(targets); err != nil {
		return nil, err
	}

	set, err := s.Collect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			result, err := s.patchOne(gctx, cfg, set, target)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkDistinct(targets []Target) error {
	owner := make(map[string]int, 2*len(targets))
	claim := func(path string, idx int) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if prev, ok := owner[abs]; ok && prev != idx {
			return fmt.Errorf("%w: %s", ErrDuplicateTarget, path)
		}
		owner[abs] = idx
		return nil
	}
	for i, target := range targets {
		if err := claim(target.Input, i); err != nil {
			return err
		}
		if err := claim(patch.OutputPath(target.Input, target.Output), i); err != nil {
			return err
		}
	}
	return nil
}

func (s Service) patchOne(ctx context.Context, cfg Config, set field.Set, target Target) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	out := patch.OutputPath(target.Input, target.Output)
	log := s.logger.With(zap.String("input", target.Input), zap.String("output", out))

	sec, err := objfile.LocateFile(target.Input, objfile.Options{Arch: cfg.Arch})
	switch {
	case errors.Is(err, objfile.ErrSectionNotFound):
		if cfg.RequireSection {
			return Result{}, fmt.Errorf("%s: %w", target.Input, err)
		}
		log.Warn("section not found, copying binary unchanged", zap.String("section", objfile.SectionName))
		if err := patch.Copy(target.Input, out); err != nil {
			return Result{}, fmt.Errorf("copying %s: %w", target.Input, err)
		}
		return Result{Input: target.Input, Output: out, Fields: set}, nil
	case err != nil:
		return Result{}, fmt.Errorf("locating section in %s: %w", target.Input, err)
	}

	log = log.With(
		zap.String("format", sec.Format.String()),
		zap.String("section", sec.Name),
		zap.Int64("offset", sec.Offset),
		zap.Int64("size", sec.Size),
	)
	if sec.Arch != "" {
		log = log.With(zap.String("arch", sec.Arch))
	}
	if sec.Writable {
		log.Warn("section is writable, expected a read-only segment")
	}
	if dup := sec.Duplicate(); dup != nil {
		log.Warn("using first of duplicate sections", zap.Int("matches", sec.Matches), zap.Error(dup))
	}
	if cfg.Capacity != 0 && int64(cfg.Capacity) != sec.Size {
		log.Warn("configured capacity differs from section size, using section size", zap.Int("capacity", cfg.Capacity))
	}

	buf, err := wire.Encode(set, int(sec.Size))
	if err != nil {
		return Result{}, fmt.Errorf("encoding fields for %s: %w", target.Input, err)
	}
	if err := patch.Apply(target.Input, sec, buf, out); err != nil {
		return Result{}, fmt.Errorf("patching %s: %w", target.Input, err)
	}

	log.Info("binary patched", zap.Strings("fields", fieldNames(set)))
	return Result{Input: target.Input, Output: out, Section: sec, Patched: true, Fields: set}, nil
}

func fieldNames(set field.Set) []string {
	fields := set.Fields()
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.String())
	}
	return names
}
