package config

import (
	"os"
)

// EnvironmentExpander replaces environment placeholders in raw configuration bytes.
type EnvironmentExpander interface {
	// Expand returns input with ${VAR} and $VAR placeholders substituted.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander expands placeholders from the process environment.
// Unset variables expand to the empty string.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates and returns a new instance of OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand uses os.ExpandEnv. A literal dollar sign can be written as $$.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	expanded := os.Expand(string(input), func(name string) string {
		if name == "$" {
			return "$"
		}
		return os.Getenv(name)
	})
	return []byte(expanded), nil
}
