package app

import "fmt"

// ConfigError is returned for an invalid configuration value
type ConfigError struct {
	field string
	msg   string
}

func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{field: field, msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.msg)
}

// Field returns the path of the offending configuration field
func (e *ConfigError) Field() string {
	return e.field
}
