// Package value implements the typed configuration values. A value is bound
// to a field of the config data and reads and writes it through a pointer.
package value

// Value is a configuration value that can be set from its string representation,
// e.g. from an environment variable.
type Value interface {
	String() string

	// Set parses val and writes it to the bound field.
	Set(val string) error

	// Validate checks the current content of the bound field.
	Validate() error

	// IsEmpty reports whether a required value is missing.
	IsEmpty() bool
}
