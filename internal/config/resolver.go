package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Resolver applies env > CLI > file > default precedence. File values are
// supplied by the caller as the fallback in place of the built-in default.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a Resolver with the provided logger.
func NewResolver(logger *zap.Logger) Resolver {
	return Resolver{logger: logger}
}

func (r Resolver) logConflict(setting, envVal, cliVal string) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(
		"config: conflict for "+setting,
		zap.String("env", envVal),
		zap.String("cli", cliVal),
		zap.String("decision", "using env value"),
	)
}

func (r Resolver) pick(setting string, envVal string, envSet bool, cliVal string, cliSet bool, defaultVal string) string {
	if envSet && cliSet && envVal != cliVal {
		r.logConflict(setting, envVal, cliVal)
	}
	if envSet {
		return envVal
	}
	if cliSet {
		return cliVal
	}
	return defaultVal
}

// String resolves a string setting using the precedence rules.
func (r Resolver) String(setting, envKey, cliVal string, cliSet bool, defaultVal string) string {
	envVal, envSet := os.LookupEnv(envKey)
	return r.pick(setting, strings.TrimSpace(envVal), envSet, cliVal, cliSet, defaultVal)
}

// OptionalString is String for settings where an explicit empty value
// differs from no value. The bool reports whether any source supplied one.
func (r Resolver) OptionalString(setting, envKey, cliVal string, cliSet bool, defaultVal *string) (string, bool) {
	envVal, envSet := os.LookupEnv(envKey)
	if envSet || cliSet {
		return r.pick(setting, envVal, envSet, cliVal, cliSet, ""), true
	}
	if defaultVal != nil {
		return *defaultVal, true
	}
	return "", false
}

// Present resolves a presence-only switch: the env variable being set with
// any value, including empty or "false", turns it on.
func (r Resolver) Present(setting, envKey string, cliVal bool, cliSet bool, defaultVal bool) bool {
	if _, envSet := os.LookupEnv(envKey); envSet {
		if cliSet && !cliVal {
			r.logConflict(setting, "present", strconv.FormatBool(cliVal))
		}
		return true
	}
	if cliSet {
		return cliVal
	}
	return defaultVal
}

// Bool resolves a boolean setting.
func (r Resolver) Bool(setting, envKey string, cliVal bool, cliSet bool, defaultVal bool) (bool, error) {
	envVal, envSet := os.LookupEnv(envKey)
	if !envSet {
		if cliSet {
			return cliVal, nil
		}
		return defaultVal, nil
	}

	parsed, err := strconv.ParseBool(strings.TrimSpace(envVal))
	if err != nil {
		return false, fmt.Errorf("config %s: invalid boolean %q: %w", setting, envVal, err)
	}

	if cliSet && parsed != cliVal {
		r.logConflict(setting, envVal, strconv.FormatBool(cliVal))
	}

	return parsed, nil
}

// Int resolves an integer setting.
func (r Resolver) Int(setting, envKey string, cliVal int, cliSet bool, defaultVal int) (int, error) {
	envVal, envSet := os.LookupEnv(envKey)
	if !envSet {
		if cliSet {
			return cliVal, nil
		}
		return defaultVal, nil
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(envVal))
	if err != nil {
		return 0, fmt.Errorf("config %s: invalid integer %q: %w", setting, envVal, err)
	}

	if cliSet && parsed != cliVal {
		r.logConflict(setting, envVal, strconv.Itoa(cliVal))
	}

	return parsed, nil
}
