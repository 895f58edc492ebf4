// Package schema validates configuration data against a JSON schema.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a validation error from JSON schema validation.
// Location is a JSON pointer to the most specific failing instance.
type ValidationError struct {
	Err      error
	Location string
	Detail   string
}

func (e ValidationError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("error at %s: %s", e.Location, e.Detail)
	}

	return "validation error: " + e.Detail
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// Validator validates data against a JSON schema.
// Uses [github.com/santhosh-tekuri/jsonschema/v6].
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a new [Validator] with the provided JSON schema data.
// The url is used as the resource name during compilation.
func NewValidator(url string, schemaData []byte) (*Validator, error) {
	var schema any
	if err := json.Unmarshal(schemaData, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, schema); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	jss, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: jss}, nil
}

// MustNewValidator creates a new [Validator] and panics on error.
func MustNewValidator(url string, schemaData []byte) *Validator {
	v, err := NewValidator(url, schemaData)
	if err != nil {
		panic(err)
	}

	return v
}

// Validate validates the given data against the schema.
func (s *Validator) Validate(data any) error {
	err := s.schema.Validate(data)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	return &ValidationError{
		Err:      errors.New("schema validation"),
		Location: pointer(findMostSpecificLocation(validationErr)),
		Detail:   validationErr.Error(),
	}
}

// findMostSpecificLocation recursively searches through all causes to find
// the one with the longest InstanceLocation.
func findMostSpecificLocation(err *jsonschema.ValidationError) []string {
	longest := err.InstanceLocation

	for _, cause := range err.Causes {
		candidate := findMostSpecificLocation(cause)
		if len(candidate) > len(longest) {
			longest = candidate
		}
	}

	return longest
}

func pointer(location []string) string {
	if len(location) == 0 {
		return "/"
	}

	return "/" + strings.Join(location, "/")
}
