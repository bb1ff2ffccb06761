package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/launchbynttdata/launch-ver-stamp/internal/config"
	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/buildtime"
	"github.com/launchbynttdata/launch-ver-stamp/internal/domain/field"
	"github.com/launchbynttdata/launch-ver-stamp/internal/gitinfo"
	"github.com/launchbynttdata/launch-ver-stamp/internal/logging"
	"github.com/launchbynttdata/launch-ver-stamp/internal/services/stamp"
	"github.com/launchbynttdata/launch-ver-stamp/internal/version"
)

const (
	envBufferSize     = "VER_STUB_BUFFER_SIZE"
	envIdempotent     = "VER_STUB_IDEMPOTENT"
	envBuildTime      = "VER_STUB_BUILD_TIME"
	envLogLevel       = "VERSTAMP_LOG_LEVEL"
	envConfig         = "VERSTAMP_CONFIG"
	envRepoDir        = "VERSTAMP_REPO_DIR"
	envCustom         = "VERSTAMP_CUSTOM"
	envFailOnError    = "VERSTAMP_FAIL_ON_ERROR"
	envArch           = "VERSTAMP_ARCH"
	envRequireSection = "VERSTAMP_REQUIRE_SECTION"
)

const (
	flagOutput       = "output"
	flagAllGit       = "all-git"
	flagAllBuildTime = "all-build-time"
)

// Execute runs the CLI root command with the provided context.
func Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return newRootCommand().ExecuteContext(ctx)
}

type rootFlagSet struct {
	logLevel    *stringFlag
	configPath  *stringFlag
	repoDir     *stringFlag
	bufferSize  *intFlag
	idempotent  *boolFlag
	buildTime   *optionalStringFlag
	custom      *optionalStringFlag
	failOnError *boolFlag
	fields      *fieldFlagSet
}

// fieldFlagSet holds one switch per field plus the group switches.
type fieldFlagSet struct {
	single       map[field.Field]*boolFlag
	allGit       *boolFlag
	allBuildTime *boolFlag
}

type runtimeConfig struct {
	resolver config.Resolver
	logger   *zap.Logger
	file     config.File
	git      gitinfo.Client
}

func newRootCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "verstamp",
		Short: "Embed build metadata into a binary's ver_stub section",
		Long: "verstamp collects git and build-time metadata and writes it into the ver_stub\n" +
			"section of ELF, Mach-O and PE binaries, or into a standalone section data file.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.Version = version.Version
	cmd.SetVersionTemplate("verstamp {{.Version}}\n")

	flags := bindRootFlags(cmd)
	cmd.Flags().StringVarP(&output, flagOutput, "o", "", "Write section data to this file (or PATH/ver_stub_data if PATH is a directory)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if strings.TrimSpace(output) == "" {
			return cmd.Help()
		}

		ctx := cmd.Context()
		runtime, cleanup, err := buildRuntime(flags)
		if err != nil {
			return err
		}
		defer cleanup()

		cfg, err := flags.stampConfig(runtime)
		if err != nil {
			return err
		}

		service := stamp.NewService(runtime.git, runtime.logger)
		written, err := service.WriteData(ctx, cfg, output)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), written); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
		return nil
	}

	cmd.AddCommand(
		newPatchCommand(flags),
		newInspectCommand(flags),
		newPrintSectionNameCommand(),
		newVersionCommand(),
	)

	return cmd
}

func bindRootFlags(cmd *cobra.Command) *rootFlagSet {
	fs := cmd.PersistentFlags()
	return &rootFlagSet{
		logLevel:    bindStringFlag(fs, "log-level", "log-level", "", envLogLevel, logging.LevelTerse, "Log verbosity (terse, verbose or quiet)"),
		configPath:  bindStringFlag(fs, "config", "config", "", envConfig, config.DefaultFile, "YAML config file; a missing default file is ignored"),
		repoDir:     bindStringFlag(fs, "repo-dir", "repo-dir", "C", envRepoDir, ".", "Git repository to collect metadata from"),
		bufferSize:  bindIntFlag(fs, "buffer-size", "buffer-size", "", envBufferSize, 0, "Section data capacity in bytes (default 512); patching uses the section's own size"),
		idempotent:  bindBoolFlag(fs, "idempotent", "idempotent", "", envIdempotent, false, "Omit build time for reproducible builds; the env variable counts when set to any value"),
		buildTime:   bindOptionalStringFlag(fs, "build-time", "build-time", envBuildTime, "Build time override as unix seconds or RFC 3339"),
		custom:      bindOptionalStringFlag(fs, "custom", "custom", envCustom, "Custom string to embed"),
		failOnError: bindBoolFlag(fs, "fail-on-error", "fail-on-error", "", envFailOnError, false, "Fail instead of skipping fields git cannot provide"),
		fields:      bindFieldFlags(fs),
	}
}

func bindFieldFlags(fs *pflag.FlagSet) *fieldFlagSet {
	set := &fieldFlagSet{single: make(map[field.Field]*boolFlag)}
	for _, f := range field.All() {
		if f == field.Custom {
			continue
		}
		set.single[f] = bindBoolFlag(fs, f.String(), f.String(), "", "", false, "Embed "+f.String())
	}
	set.allGit = bindBoolFlag(fs, flagAllGit, flagAllGit, "", "", false, "Embed every git field")
	set.allBuildTime = bindBoolFlag(fs, flagAllBuildTime, flagAllBuildTime, "", "", false, "Embed build-timestamp and build-date")
	return set
}

// selected returns the fields chosen on the command line, or the config
// file's list when no field flag was given.
func (s *fieldFlagSet) selected(file config.File) ([]field.Field, error) {
	var chosen []field.Field
	anyFlag := false
	add := func(fields ...field.Field) {
		chosen = append(chosen, fields...)
	}

	if s.allGit.changed() {
		anyFlag = true
		if s.allGit.value {
			add(field.Git()...)
		}
	}
	if s.allBuildTime.changed() {
		anyFlag = true
		if s.allBuildTime.value {
			add(field.BuildTime()...)
		}
	}
	for _, f := range field.All() {
		flag, ok := s.single[f]
		if !ok || !flag.changed() {
			continue
		}
		anyFlag = true
		if flag.value {
			add(f)
		}
	}
	if anyFlag {
		return chosen, nil
	}

	for _, name := range file.Fields {
		f, err := field.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("config file fields: %w", err)
		}
		add(f)
	}
	return chosen, nil
}

func (f *rootFlagSet) stampConfig(runtime runtimeConfig) (stamp.Config, error) {
	file := runtime.file
	resolver := runtime.resolver

	fields, err := f.fields.selected(file)
	if err != nil {
		return stamp.Config{}, err
	}

	capacity, err := f.bufferSize.Value(resolver, file.BufferSize)
	if err != nil {
		return stamp.Config{}, err
	}

	failOnError, err := f.failOnError.Value(resolver, file.FailOnError)
	if err != nil {
		return stamp.Config{}, err
	}

	cfg := stamp.Config{
		Fields:      fields,
		Capacity:    capacity,
		FailOnError: failOnError,
		BuildTime: buildtime.Inputs{
			Idempotent: f.idempotent.Present(resolver, file.Idempotent),
		},
	}
	cfg.BuildTime.Override, cfg.BuildTime.OverrideSet = f.buildTime.Value(resolver, file.BuildTime)
	if custom, ok := f.custom.Value(resolver, file.Custom); ok {
		cfg.Custom = &custom
	}
	return cfg, nil
}

func buildRuntime(flags *rootFlagSet) (runtimeConfig, func(), error) {
	nopResolver := config.NewResolver(zap.NewNop())

	path := flags.configPath.Value(nopResolver, "")
	_, envSet := os.LookupEnv(envConfig)
	file, err := config.LoadFile(path, envSet || flags.configPath.base.changed())
	if err != nil {
		return runtimeConfig{}, nil, err
	}

	logLevel := flags.logLevel.Value(nopResolver, file.LogLevel)
	logger, err := logging.New(logLevel)
	if err != nil {
		return runtimeConfig{}, nil, fmt.Errorf("configuring logger: %w", err)
	}

	resolver := config.NewResolver(logger)
	_ = flags.logLevel.Value(resolver, file.LogLevel)

	repoDir := flags.repoDir.Value(resolver, file.RepoDir)

	cleanup := func() {
		_ = logger.Sync()
	}

	return runtimeConfig{
		resolver: resolver,
		logger:   logger,
		file:     file,
		git:      gitinfo.NewClient(repoDir),
	}, cleanup, nil
}
