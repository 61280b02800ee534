package matrix

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a malformed factor or matrix definition. Configuration
	// errors are fatal: they abort the whole run rather than a single
	// combination, because the definition itself is wrong.
	ErrConfig = errors.New("invalid matrix configuration")

	// ErrUndefinedVariable marks a template reference that does not resolve
	// against the accumulated metadata. Resolution is strict: an undefined
	// reference never substitutes an empty string.
	ErrUndefinedVariable = errors.New("undefined template variable")
)

// ConfigError wraps fatal configuration failures with context.
type ConfigError struct {
	Kind error
	Msg  string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Kind }

func configf(format string, args ...any) error {
	return &ConfigError{Kind: ErrConfig, Msg: fmt.Sprintf(format, args...)}
}

func undefinedf(format string, args ...any) error {
	return &ConfigError{Kind: ErrUndefinedVariable, Msg: fmt.Sprintf(format, args...)}
}
