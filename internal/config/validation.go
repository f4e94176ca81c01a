package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the whole configuration. knownType reports whether a server type id
// is registered; it may be nil to skip that check.
func Validate(cfg Config, knownType func(string) bool) error {
	var errs ValidationErrors

	switch cfg.Logging.Format {
	case "", "text", "json":
	default:
		errs.Add("logging.format", "must be text or json", cfg.Logging.Format)
	}

	names := make(map[string]bool)
	for i, s := range cfg.Servers {
		prefix := fmt.Sprintf("servers[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			errs.Add(prefix+".name", "is required")
		} else if names[s.Name] {
			errs.Add(prefix+".name", "is duplicated", s.Name)
		}
		names[s.Name] = true

		if knownType != nil && !knownType(s.Type) {
			errs.Add(prefix+".type", "unknown server type", s.Type)
		}

		validateServer(prefix, s, &errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateServer runs the per-server checks. Server types use it as the configuration
// validation predicate guarding Start.
func ValidateServer(s ServerConfig) error {
	var errs ValidationErrors
	validateServer("server", s, &errs)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateServer(prefix string, s ServerConfig, errs *ValidationErrors) {
	attrs := NewAttributes(s.Attributes)

	if attrs.Has(AttrServerPort) {
		port := attrs.Int(AttrServerPort, -1)
		if port <= 0 || port > 65535 {
			errs.Add(prefix+".attributes."+AttrServerPort, "must be between 1 and 65535", s.Attributes[AttrServerPort])
		}
	}

	for _, key := range []string{AttrStartupTimeout, AttrShutdownTimeout, AttrPollInterval} {
		if attrs.Has(key) && attrs.Duration(key, 0) <= 0 {
			errs.Add(prefix+".attributes."+key, "must be a positive duration", s.Attributes[key])
		}
	}

	if s.Mode != "" {
		modes := attrs.StringSlice(AttrModes, DefaultModes)
		found := false
		for _, m := range modes {
			if m == s.Mode {
				found = true
				break
			}
		}
		if !found {
			errs.Add(prefix+".mode", fmt.Sprintf("must be one of %s", strings.Join(modes, ", ")), s.Mode)
		}
	}

	for i, c := range s.Start {
		if strings.TrimSpace(c.Command) == "" {
			errs.Add(fmt.Sprintf("%s.start[%d].command", prefix, i), "is required")
		}
	}
	for i, c := range s.Stop {
		if strings.TrimSpace(c.Command) == "" {
			errs.Add(fmt.Sprintf("%s.stop[%d].command", prefix, i), "is required")
		}
	}

	labels := make(map[string]bool)
	for i, d := range s.Deployables {
		field := fmt.Sprintf("%s.deployables[%d]", prefix, i)
		if strings.TrimSpace(d.Label) == "" {
			errs.Add(field+".label", "is required")
		} else if labels[d.Label] {
			errs.Add(field+".label", "is duplicated", d.Label)
		}
		labels[d.Label] = true
		if strings.TrimSpace(d.Path) == "" {
			errs.Add(field+".path", "is required")
		}
	}
}
