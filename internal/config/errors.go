package config

import "fmt"

// ConfigurationError reports a configuration that cannot be used. Err is the
// underlying cause (a parse failure or a range violation).
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s failed: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
