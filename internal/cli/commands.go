package cli

import (
	"fmt"
	"os"
	goruntime "runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/launchbynttdata/launch-ver-stamp/internal/objfile"
	"github.com/launchbynttdata/launch-ver-stamp/internal/services/inspect"
	"github.com/launchbynttdata/launch-ver-stamp/internal/services/stamp"
	"github.com/launchbynttdata/launch-ver-stamp/internal/version"
	"github.com/launchbynttdata/launch-ver-stamp/verstub"
)

func newPatchCommand(rootFlags *rootFlagSet) *cobra.Command {
	var output string
	var archFlag *stringFlag
	var requireFlag *boolFlag

	cmd := &cobra.Command{
		Use:   "patch BINARY...",
		Short: "Write the collected metadata into each binary's ver_stub section",
		Long: "patch copies each BINARY and overwrites the ver_stub section of the copy.\n" +
			"The input is never modified. Binaries without the section are copied unchanged\n" +
			"unless --require-section is set.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runtime, cleanup, err := buildRuntime(rootFlags)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg, err := rootFlags.stampConfig(runtime)
			if err != nil {
				return err
			}
			cfg.Arch = archFlag.Value(runtime.resolver, runtime.file.Arch)
			cfg.RequireSection, err = requireFlag.Value(runtime.resolver, runtime.file.RequireSection)
			if err != nil {
				return err
			}

			if len(args) > 1 && output != "" {
				if info, err := os.Stat(output); err != nil || !info.IsDir() {
					return fmt.Errorf("--%s must be an existing directory when patching more than one binary", flagOutput)
				}
			}

			targets := make([]stamp.Target, 0, len(args))
			for _, arg := range args {
				targets = append(targets, stamp.Target{Input: arg, Output: output})
			}

			service := stamp.NewService(runtime.git, runtime.logger)
			var results []stamp.Result
			if len(targets) == 1 {
				result, err := service.Patch(ctx, cfg, targets[0])
				if err != nil {
					return err
				}
				results = append(results, result)
			} else {
				results, err = service.PatchMany(ctx, cfg, targets)
				if err != nil {
					return err
				}
			}

			for _, result := range results {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), result.Output); err != nil {
					return fmt.Errorf("writing result: %w", err)
				}
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&output, flagOutput, "o", "", "Output file, or directory receiving NAME.bin (default: next to the input)")
	archFlag = bindStringFlag(fs, "arch", "arch", "", envArch, "", "Slice of a universal Mach-O binary to patch (e.g. arm64, x86_64)")
	requireFlag = bindBoolFlag(fs, "require-section", "require-section", "", envRequireSection, false, "Fail when a binary has no ver_stub section")

	return cmd
}

func newInspectCommand(rootFlags *rootFlagSet) *cobra.Command {
	var raw bool
	var format string
	var archFlag *stringFlag

	cmd := &cobra.Command{
		Use:   "inspect BINARY",
		Short: "Decode and print the ver_stub section of a binary or data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, cleanup, err := buildRuntime(rootFlags)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := inspect.Options{
				Raw:  raw,
				Arch: archFlag.Value(runtime.resolver, runtime.file.Arch),
			}
			report, err := inspect.NewService(runtime.logger).Inspect(args[0], opts)
			if err != nil {
				return err
			}
			return inspect.Render(cmd.OutOrStdout(), report, format)
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&raw, "raw", false, "Treat the file as standalone section data")
	fs.StringVar(&format, "format", inspect.FormatText, "Output format (text, json or yaml)")
	archFlag = bindStringFlag(fs, "arch", "arch", "", envArch, "", "Slice of a universal Mach-O binary to read")

	return cmd
}

func newPrintSectionNameCommand() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "print-section-name",
		Short: "Print the section name for the host or a target object format",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name := verstub.SectionName(goruntime.GOOS)
			if strings.TrimSpace(target) != "" {
				format, err := objfile.ParseFormat(strings.ToLower(strings.TrimSpace(target)))
				if err != nil {
					return err
				}
				name = objfile.CanonicalName(format)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
				return fmt.Errorf("writing section name: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Object format (elf, macho or pe); defaults to the host platform")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "verstamp %s\n", version.Details(verstub.Self())); err != nil {
				return fmt.Errorf("writing version info: %w", err)
			}
			return nil
		},
	}
}
