// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultCacheDirName is the cache directory used when cache_dir is unset.
	// Defined locally to avoid coupling config to internal/cache.
	DefaultCacheDirName CacheDirPath = ".depcache"

	// DefaultRequirementsPattern matches the requirements files discovery scans for.
	// Defined locally to avoid coupling config to internal/discovery.
	DefaultRequirementsPattern RequirementsPattern = "requirements*.txt"

	// DefaultJobs bounds concurrent module resolutions when jobs is unset.
	DefaultJobs Jobs = 4

	// MaxJobs is the upper bound accepted for the jobs setting.
	MaxJobs Jobs = 64
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidCacheDirPath is returned when a CacheDirPath value is whitespace-only.
	ErrInvalidCacheDirPath = errors.New("invalid cache dir path")
	// ErrInvalidSearchDirPath is returned when a SearchDirPath value is empty or whitespace-only.
	ErrInvalidSearchDirPath = errors.New("invalid search dir path")
	// ErrInvalidInterpreterPath is returned when an InterpreterPath value is whitespace-only.
	ErrInvalidInterpreterPath = errors.New("invalid interpreter path")
	// ErrInvalidRequirementsPattern is returned when a RequirementsPattern value is empty or whitespace-only.
	ErrInvalidRequirementsPattern = errors.New("invalid requirements pattern")
	// ErrInvalidResolverCommand is returned when a ResolverCommand contains blank elements.
	ErrInvalidResolverCommand = errors.New("invalid resolver command")
	// ErrInvalidJobs is returned when a Jobs value is outside the accepted range.
	ErrInvalidJobs = errors.New("invalid jobs value")
	// ErrInvalidHookScript is returned when a HookScript value is whitespace-only.
	ErrInvalidHookScript = errors.New("invalid hook script")
	// ErrInvalidHooksConfig is the sentinel error wrapped by InvalidHooksConfigError.
	ErrInvalidHooksConfig = errors.New("invalid hooks config")
	// ErrInvalidUIConfig is the sentinel error wrapped by InvalidUIConfigError.
	ErrInvalidUIConfig = errors.New("invalid UI config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// CacheDirPath represents a filesystem path to the cache directory.
	// The zero value ("") is valid and means "use the default cache directory".
	// Non-zero values must not be whitespace-only.
	CacheDirPath string

	// InvalidCacheDirPathError is returned when a CacheDirPath value is
	// non-empty but whitespace-only. It wraps ErrInvalidCacheDirPath for errors.Is().
	InvalidCacheDirPathError struct {
		Value CacheDirPath
	}

	// SearchDirPath represents a filesystem path that discovery scans for
	// requirements files. A valid path must be non-empty and not whitespace-only.
	SearchDirPath string

	// InvalidSearchDirPathError is returned when a SearchDirPath value is
	// empty or whitespace-only. It wraps ErrInvalidSearchDirPath for errors.Is().
	InvalidSearchDirPathError struct {
		Value SearchDirPath
	}

	// InterpreterPath represents the Python interpreter to run pip under.
	// The zero value ("") is valid and means "use python3 from PATH".
	// Non-zero values must not be whitespace-only.
	InterpreterPath string

	// InvalidInterpreterPathError is returned when an InterpreterPath value is
	// non-empty but whitespace-only. It wraps ErrInvalidInterpreterPath for errors.Is().
	InvalidInterpreterPathError struct {
		Value InterpreterPath
	}

	// RequirementsPattern is the glob that discovery matches requirements files
	// against. A valid pattern must be non-empty and not whitespace-only; glob
	// syntax itself is checked by the loader, which is where doublestar lives.
	RequirementsPattern string

	// InvalidRequirementsPatternError is returned when a RequirementsPattern value
	// is empty or whitespace-only. It wraps ErrInvalidRequirementsPattern for errors.Is().
	InvalidRequirementsPatternError struct {
		Value RequirementsPattern
	}

	// ResolverCommand is the argv of the external resolver. The zero value (nil)
	// is valid and means "derive pip-compile from the interpreter"; explicit
	// values must not contain blank elements.
	ResolverCommand []string

	// InvalidResolverCommandError is returned when a ResolverCommand contains
	// blank elements. It wraps ErrInvalidResolverCommand for errors.Is().
	InvalidResolverCommandError struct {
		Index int
	}

	// Jobs bounds how many modules resolve concurrently.
	// Valid values are 1 through MaxJobs.
	Jobs int

	// InvalidJobsError is returned when a Jobs value is outside the accepted range.
	// It wraps ErrInvalidJobs for errors.Is() compatibility.
	InvalidJobsError struct {
		Value Jobs
	}

	// HookScript is a shell snippet run around cache operations.
	// The zero value ("") is valid and means "no hook".
	// Non-zero values must not be whitespace-only.
	HookScript string

	// InvalidHookScriptError is returned when a HookScript value is
	// non-empty but whitespace-only. It wraps ErrInvalidHookScript for errors.Is().
	InvalidHookScriptError struct {
		Name string
	}

	// InvalidHooksConfigError is returned when a HooksConfig has invalid fields.
	// It wraps ErrInvalidHooksConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidHooksConfigError struct {
		FieldErrors []error
	}

	// InvalidUIConfigError is returned when a UIConfig has invalid fields.
	// It wraps ErrInvalidUIConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidUIConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// CacheDir is where per-module cache entries are written.
		CacheDir CacheDirPath `json:"cache_dir" mapstructure:"cache_dir"`
		// RequirementsPattern matches requirements files during discovery.
		RequirementsPattern RequirementsPattern `json:"requirements_pattern" mapstructure:"requirements_pattern"`
		// SearchDirs lists the directories discovery scans. Empty means the working directory.
		SearchDirs []SearchDirPath `json:"search_dirs" mapstructure:"search_dirs"`
		// Interpreter is the Python interpreter to run pip under.
		Interpreter InterpreterPath `json:"interpreter" mapstructure:"interpreter"`
		// ResolverCommand overrides the external resolver argv.
		ResolverCommand ResolverCommand `json:"resolver_command" mapstructure:"resolver_command"`
		// Jobs bounds concurrent module resolutions.
		Jobs Jobs `json:"jobs" mapstructure:"jobs"`
		// Hooks configures shell snippets run around cache operations.
		Hooks HooksConfig `json:"hooks" mapstructure:"hooks"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// HooksConfig configures shell snippets run around cache operations.
	HooksConfig struct {
		// PreResolve runs before any module is resolved.
		PreResolve HookScript `json:"pre_resolve" mapstructure:"pre_resolve"`
		// PostResolve runs after all modules resolved successfully.
		PostResolve HookScript `json:"post_resolve" mapstructure:"post_resolve"`
		// PostInstall runs after an install completed successfully.
		PostInstall HookScript `json:"post_install" mapstructure:"post_install"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the CacheDirPath.
func (p CacheDirPath) String() string { return string(p) }

// IsValid returns whether the CacheDirPath is valid.
// The zero value ("") is valid (means "use default cache directory").
// Non-zero values must not be whitespace-only.
func (p CacheDirPath) IsValid() (bool, []error) {
	if p == "" {
		return true, nil
	}
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidCacheDirPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidCacheDirPathError.
func (e *InvalidCacheDirPathError) Error() string {
	return fmt.Sprintf("invalid cache dir path %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidCacheDirPath for errors.Is() compatibility.
func (e *InvalidCacheDirPathError) Unwrap() error { return ErrInvalidCacheDirPath }

// String returns the string representation of the SearchDirPath.
func (p SearchDirPath) String() string { return string(p) }

// IsValid returns whether the SearchDirPath is valid.
// A valid path must be non-empty and not whitespace-only.
func (p SearchDirPath) IsValid() (bool, []error) {
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidSearchDirPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidSearchDirPathError.
func (e *InvalidSearchDirPathError) Error() string {
	return fmt.Sprintf("invalid search dir path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidSearchDirPath for errors.Is() compatibility.
func (e *InvalidSearchDirPathError) Unwrap() error { return ErrInvalidSearchDirPath }

// String returns the string representation of the InterpreterPath.
func (p InterpreterPath) String() string { return string(p) }

// IsValid returns whether the InterpreterPath is valid.
// The zero value ("") is valid (means "use python3 from PATH").
// Non-zero values must not be whitespace-only.
func (p InterpreterPath) IsValid() (bool, []error) {
	if p == "" {
		return true, nil
	}
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidInterpreterPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidInterpreterPathError.
func (e *InvalidInterpreterPathError) Error() string {
	return fmt.Sprintf("invalid interpreter path %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidInterpreterPath for errors.Is() compatibility.
func (e *InvalidInterpreterPathError) Unwrap() error { return ErrInvalidInterpreterPath }

// String returns the string representation of the RequirementsPattern.
func (p RequirementsPattern) String() string { return string(p) }

// IsValid returns whether the RequirementsPattern is valid.
// A valid pattern must be non-empty and not whitespace-only.
func (p RequirementsPattern) IsValid() (bool, []error) {
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidRequirementsPatternError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidRequirementsPatternError.
func (e *InvalidRequirementsPatternError) Error() string {
	return fmt.Sprintf("invalid requirements pattern %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidRequirementsPattern for errors.Is() compatibility.
func (e *InvalidRequirementsPatternError) Unwrap() error { return ErrInvalidRequirementsPattern }

// IsValid returns whether the ResolverCommand is valid.
// The zero value (nil or empty) is valid (means "derive from the interpreter").
// Explicit values must not contain blank elements.
func (c ResolverCommand) IsValid() (bool, []error) {
	var errs []error
	for i, arg := range c {
		if strings.TrimSpace(arg) == "" {
			errs = append(errs, &InvalidResolverCommandError{Index: i})
		}
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

// Error implements the error interface for InvalidResolverCommandError.
func (e *InvalidResolverCommandError) Error() string {
	return fmt.Sprintf("invalid resolver command: element %d is blank", e.Index)
}

// Unwrap returns ErrInvalidResolverCommand for errors.Is() compatibility.
func (e *InvalidResolverCommandError) Unwrap() error { return ErrInvalidResolverCommand }

// IsValid returns whether the Jobs value is within the accepted range (1..MaxJobs).
func (j Jobs) IsValid() (bool, []error) {
	if j < 1 || j > MaxJobs {
		return false, []error{&InvalidJobsError{Value: j}}
	}
	return true, nil
}

// Error implements the error interface for InvalidJobsError.
func (e *InvalidJobsError) Error() string {
	return fmt.Sprintf("invalid jobs value %d (valid: 1 through %d)", e.Value, MaxJobs)
}

// Unwrap returns ErrInvalidJobs for errors.Is() compatibility.
func (e *InvalidJobsError) Unwrap() error { return ErrInvalidJobs }

// String returns the string representation of the HookScript.
func (h HookScript) String() string { return string(h) }

// IsSet reports whether the hook has a script configured.
func (h HookScript) IsSet() bool { return h != "" }

// IsValid returns whether the HookScript is valid.
// The zero value ("") is valid (means "no hook").
// Non-zero values must not be whitespace-only.
func (h HookScript) IsValid() (bool, []error) {
	if h == "" {
		return true, nil
	}
	if strings.TrimSpace(string(h)) == "" {
		return false, []error{&InvalidHookScriptError{}}
	}
	return true, nil
}

// Error implements the error interface for InvalidHookScriptError.
func (e *InvalidHookScriptError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid hook script %s: non-empty value must not be whitespace-only", e.Name)
	}
	return "invalid hook script: non-empty value must not be whitespace-only"
}

// Unwrap returns ErrInvalidHookScript for errors.Is() compatibility.
func (e *InvalidHookScriptError) Unwrap() error { return ErrInvalidHookScript }

// IsValid returns whether the HooksConfig has valid fields.
// It delegates to each script's IsValid(), tagging errors with the hook name.
func (h HooksConfig) IsValid() (bool, []error) {
	var errs []error
	for _, hook := range []struct {
		name   string
		script HookScript
	}{
		{"pre_resolve", h.PreResolve},
		{"post_resolve", h.PostResolve},
		{"post_install", h.PostInstall},
	} {
		if valid, _ := hook.script.IsValid(); !valid {
			errs = append(errs, &InvalidHookScriptError{Name: hook.name})
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidHooksConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidHooksConfigError.
func (e *InvalidHooksConfigError) Error() string {
	return fmt.Sprintf("invalid hooks config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidHooksConfig for errors.Is() compatibility.
func (e *InvalidHooksConfigError) Unwrap() error { return ErrInvalidHooksConfig }

// IsValid returns whether the UIConfig has valid fields.
// It delegates to ColorScheme.IsValid(); bool fields need no validation.
func (c UIConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidUIConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUIConfigError.
func (e *InvalidUIConfigError) Error() string {
	return fmt.Sprintf("invalid UI config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidUIConfig for errors.Is() compatibility.
func (e *InvalidUIConfigError) Unwrap() error { return ErrInvalidUIConfig }

// IsValid returns whether the Config has valid fields.
// It delegates to CacheDir, RequirementsPattern, each SearchDirs entry,
// Interpreter, ResolverCommand, Jobs, Hooks, and UI.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.CacheDir.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.RequirementsPattern.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for _, dir := range c.SearchDirs {
		if valid, fieldErrs := dir.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if valid, fieldErrs := c.Interpreter.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.ResolverCommand.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Jobs.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Hooks.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		CacheDir:            DefaultCacheDirName,
		RequirementsPattern: DefaultRequirementsPattern,
		SearchDirs:          []SearchDirPath{},
		Interpreter:         "", // python3 from PATH
		ResolverCommand:     ResolverCommand{},
		Jobs:                DefaultJobs,
		Hooks:               HooksConfig{},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}
