// Package vars binds the configuration values to their names and environment
// variables and collects the messages of merging and validating them.
package vars

import (
	"fmt"
	"os"

	"github.com/datarhei/ffstats/config/value"
)

type variable struct {
	value       value.Value
	defVal      string
	name        string
	envName     string
	envAltNames []string // deprecated names, a warning is logged if one is used
	description string
	required    bool
	disguise    bool // never show the value, e.g. passwords
	merged      bool // the value came from the environment
}

func (v *variable) export() Variable {
	variable := Variable{
		Value:       v.value.String(),
		Name:        v.name,
		EnvName:     v.envName,
		Description: v.description,
		Merged:      v.merged,
	}

	if v.disguise {
		variable.Value = "***"
	}

	return variable
}

// lookupEnv returns the value of the environment variable of v and the
// name it has been found under.
func (v *variable) lookupEnv() (string, string, bool) {
	if len(v.envName) == 0 {
		return "", "", false
	}

	if val, ok := os.LookupEnv(v.envName); ok {
		return val, v.envName, true
	}

	for _, name := range v.envAltNames {
		if val, ok := os.LookupEnv(name); ok {
			return val, name, true
		}
	}

	return "", "", false
}

// Variable is the exported state of a registered value.
type Variable struct {
	Value       string
	Name        string
	EnvName     string
	Description string
	Merged      bool
}

type message struct {
	message  string
	variable Variable
	level    string // error, warn, or info
}

// Variables is the set of registered values. The zero value is ready to use.
type Variables struct {
	vars  []*variable
	index map[string]*variable
	logs  []message
}

func (vs *Variables) Register(val value.Value, name, envName string, envAltNames []string, description string, required, disguise bool) {
	v := &variable{
		value:       val,
		defVal:      val.String(),
		name:        name,
		envName:     envName,
		envAltNames: envAltNames,
		description: description,
		required:    required,
		disguise:    disguise,
	}

	if vs.index == nil {
		vs.index = map[string]*variable{}
	}

	vs.vars = append(vs.vars, v)
	vs.index[name] = v
}

// Transfer marks the variables as merged that have been merged in vss.
func (vs *Variables) Transfer(vss *Variables) {
	for _, v := range vs.vars {
		if w, ok := vss.index[v.name]; ok && w.merged {
			v.merged = true
		}
	}
}

// List returns all registered variables in the order of their registration.
// Values of disguised variables are replaced by "***".
func (vs *Variables) List() []Variable {
	list := make([]Variable, 0, len(vs.vars))

	for _, v := range vs.vars {
		list = append(list, v.export())
	}

	return list
}

func (vs *Variables) Get(name string) (string, error) {
	v, ok := vs.index[name]
	if !ok {
		return "", fmt.Errorf("unknown variable: %s", name)
	}

	return v.value.String(), nil
}

func (vs *Variables) Set(name, val string) error {
	v, ok := vs.index[name]
	if !ok {
		return fmt.Errorf("unknown variable: %s", name)
	}

	return v.value.Set(val)
}

// Log adds a message for the variable with the given name. Messages for
// unknown variables are dropped.
func (vs *Variables) Log(level, name string, format string, args ...interface{}) {
	v, ok := vs.index[name]
	if !ok {
		return
	}

	vs.logs = append(vs.logs, message{
		message:  fmt.Sprintf(format, args...),
		variable: v.export(),
		level:    level,
	})
}

// Merge overrides the values with their environment variables.
func (vs *Variables) Merge() {
	for _, v := range vs.vars {
		val, name, ok := v.lookupEnv()
		if !ok {
			continue
		}

		if name != v.envName {
			vs.Log("warn", v.name, "deprecated name, please use %s", v.envName)
		}

		if err := v.value.Set(val); err != nil {
			vs.Log("error", v.name, "%s", err.Error())
		}

		v.merged = true
	}
}

// Validate adds an info message for every variable and an error message for
// every invalid or missing value.
func (vs *Variables) Validate() {
	for _, v := range vs.vars {
		vs.Log("info", v.name, "%s", "")

		if err := v.value.Validate(); err != nil {
			vs.Log("error", v.name, "%s", err.Error())
			continue
		}

		if v.required && v.value.IsEmpty() {
			vs.Log("error", v.name, "a value is required")
		}
	}
}

func (vs *Variables) ResetLogs() {
	vs.logs = nil
}

func (vs *Variables) Messages(logger func(level string, v Variable, message string)) {
	for _, l := range vs.logs {
		logger(l.level, l.variable, l.message)
	}
}

func (vs *Variables) HasErrors() bool {
	for _, l := range vs.logs {
		if l.level == "error" {
			return true
		}
	}

	return false
}

// Overrides returns the names of the variables that have been set from the environment.
func (vs *Variables) Overrides() []string {
	overrides := []string{}

	for _, v := range vs.vars {
		if v.merged {
			overrides = append(overrides, v.name)
		}
	}

	return overrides
}
