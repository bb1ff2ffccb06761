package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/launchbynttdata/launch-ver-stamp/internal/config"
)

type flagBase struct {
	fs      *pflag.FlagSet
	setting string
	name    string
	envKey  string
}

func newFlagBase(fs *pflag.FlagSet, setting, name, envKey string) flagBase {
	return flagBase{fs: fs, setting: setting, name: name, envKey: envKey}
}

func (b flagBase) changed() bool {
	if b.fs == nil || b.name == "" {
		return false
	}
	return b.fs.Changed(b.name)
}

func describeUsage(usage, envKey string) string {
	trimmed := strings.TrimSpace(usage)
	if envKey == "" {
		return trimmed
	}
	if trimmed == "" {
		return fmt.Sprintf("env: %s", envKey)
	}
	return fmt.Sprintf("%s (env: %s)", trimmed, envKey)
}

// stringFlag resolves env > flag > config file > default.
type stringFlag struct {
	base       flagBase
	defaultVal string
	value      string
}

func bindStringFlag(fs *pflag.FlagSet, setting, name, short, envKey, defaultVal, usage string) *stringFlag {
	f := &stringFlag{
		base:       newFlagBase(fs, setting, name, envKey),
		defaultVal: defaultVal,
		value:      defaultVal,
	}
	if fs == nil {
		return f
	}
	if short != "" {
		fs.StringVarP(&f.value, name, short, defaultVal, describeUsage(usage, envKey))
	} else {
		fs.StringVar(&f.value, name, defaultVal, describeUsage(usage, envKey))
	}
	return f
}

// Value resolves the flag; fileVal, when non-empty, replaces the default.
func (f *stringFlag) Value(resolver config.Resolver, fileVal string) string {
	cliVal := strings.TrimSpace(f.value)
	return resolver.String(f.base.setting, f.base.envKey, cliVal, f.base.changed(), config.StringOr(fileVal, f.defaultVal))
}

// optionalStringFlag distinguishes an explicit empty value from no value.
type optionalStringFlag struct {
	base  flagBase
	value string
}

func bindOptionalStringFlag(fs *pflag.FlagSet, setting, name, envKey, usage string) *optionalStringFlag {
	f := &optionalStringFlag{base: newFlagBase(fs, setting, name, envKey)}
	if fs != nil {
		fs.StringVar(&f.value, name, "", describeUsage(usage, envKey))
	}
	return f
}

func (f *optionalStringFlag) Value(resolver config.Resolver, fileVal *string) (string, bool) {
	return resolver.OptionalString(f.base.setting, f.base.envKey, f.value, f.base.changed(), fileVal)
}

type boolFlag struct {
	base       flagBase
	defaultVal bool
	value      bool
}

func bindBoolFlag(fs *pflag.FlagSet, setting, name, short, envKey string, defaultVal bool, usage string) *boolFlag {
	f := &boolFlag{
		base:       newFlagBase(fs, setting, name, envKey),
		defaultVal: defaultVal,
		value:      defaultVal,
	}
	if fs == nil {
		return f
	}
	if short != "" {
		fs.BoolVarP(&f.value, name, short, defaultVal, describeUsage(usage, envKey))
	} else {
		fs.BoolVar(&f.value, name, defaultVal, describeUsage(usage, envKey))
	}
	return f
}

func (f *boolFlag) Value(resolver config.Resolver, fileVal *bool) (bool, error) {
	return resolver.Bool(f.base.setting, f.base.envKey, f.value, f.base.changed(), config.BoolOr(fileVal, f.defaultVal))
}

// Present treats any value of the env variable as "on".
func (f *boolFlag) Present(resolver config.Resolver, fileVal *bool) bool {
	return resolver.Present(f.base.setting, f.base.envKey, f.value, f.base.changed(), config.BoolOr(fileVal, f.defaultVal))
}

func (f *boolFlag) changed() bool {
	return f.base.changed()
}

type intFlag struct {
	base       flagBase
	defaultVal int
	value      int
}

func bindIntFlag(fs *pflag.FlagSet, setting, name, short, envKey string, defaultVal int, usage string) *intFlag {
	f := &intFlag{
		base:       newFlagBase(fs, setting, name, envKey),
		defaultVal: defaultVal,
		value:      defaultVal,
	}
	if fs == nil {
		return f
	}
	if short != "" {
		fs.IntVarP(&f.value, name, short, defaultVal, describeUsage(usage, envKey))
	} else {
		fs.IntVar(&f.value, name, defaultVal, describeUsage(usage, envKey))
	}
	return f
}

func (f *intFlag) Value(resolver config.Resolver, fileVal *int) (int, error) {
	return resolver.Int(f.base.setting, f.base.envKey, f.value, f.base.changed(), config.IntOr(fileVal, f.defaultVal))
}
