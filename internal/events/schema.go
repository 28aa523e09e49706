package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bashhack/gitjournal/internal/errors"
)

const (
	// MsgMissingFields is reported when type or timestamp is absent or empty.
	MsgMissingFields = "Missing required fields: type and timestamp"

	// MsgInvalidJSON is reported when the body cannot be parsed.
	MsgInvalidJSON = "Invalid JSON payload"

	schemaURL = "event.json"
)

// GenerateSchema reflects the JSON Schema for Event.
func GenerateSchema() ([]byte, error) {
	r := &invopop.Reflector{
		// Unknown top-level fields are tolerated and dropped on decode.
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		Anonymous:                 true,
	}

	schema := r.Reflect(&Event{})
	schema.Title = "gitjournal event"
	schema.Description = "Event accepted by POST /log_event."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(schema, "", "  ")
}

// Validator parses and validates event submissions.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the reflected Event schema.
func NewValidator() (*Validator, error) {
	data, err := GenerateSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add event schema resource: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile event schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// Decode reads one event from r. Malformed JSON (including a bare null)
// yields a ValidationError with MsgInvalidJSON. A document that is not an
// object, or lacks a non-empty string type or timestamp, yields
// MsgMissingFields. Any other schema violation, such as a non-string source
// or a data value that is not an object, yields MsgInvalidJSON.
func (v *Validator) Decode(r io.Reader) (Event, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return Event{}, errors.NewValidationError(MsgInvalidJSON, err)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Event{}, errors.NewValidationError(MsgInvalidJSON, err)
	}
	if dec.More() {
		return Event{}, errors.NewValidationError(MsgInvalidJSON, errors.New("trailing data after JSON value"))
	}
	if doc == nil {
		return Event{}, errors.NewValidationError(MsgInvalidJSON, errors.New("payload is null"))
	}

	if err := v.schema.Validate(doc); err != nil {
		message := MsgInvalidJSON
		if requiredFieldFailure(err) {
			message = MsgMissingFields
		}
		return Event{}, errors.NewValidationError(message, describe(err))
	}

	var event Event
	dec = json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&event); err != nil {
		return Event{}, errors.NewValidationError(MsgInvalidJSON, err)
	}
	return event, nil
}

// requiredFieldLocations are the instance locations whose failures mean
// the required fields are missing or unusable. "" is the document itself.
var requiredFieldLocations = map[string]bool{
	"":           true,
	"/type":      true,
	"/timestamp": true,
}

// requiredFieldFailure reports whether any leaf cause of err concerns the
// document itself or one of the required fields.
func requiredFieldFailure(err error) bool {
	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return false
	}

	for _, leaf := range leaves(validationErr) {
		if requiredFieldLocations[leaf.InstanceLocation] {
			return true
		}
	}
	return false
}

// describe flattens a schema validation error into one line per cause.
func describe(err error) error {
	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}

	var messages []string
	for _, leaf := range leaves(validationErr) {
		location := leaf.InstanceLocation
		if location == "" {
			location = "/"
		}
		messages = append(messages, fmt.Sprintf("%s: %s", location, leaf.Message))
	}
	if len(messages) == 0 {
		return err
	}
	return errors.New(strings.Join(messages, "; "))
}

// leaves returns the innermost causes of err, or err itself when it has none.
func leaves(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return []*jsonschema.ValidationError{err}
	}
	var out []*jsonschema.ValidationError
	for _, cause := range err.Causes {
		out = append(out, leaves(cause)...)
	}
	return out
}
