package events

// Event is a structured record submitted by an external client. Type and
// Timestamp are required and non-empty; everything else is optional and
// passed through to the commit note untouched.
type Event struct {
	Type      string         `json:"type" jsonschema:"minLength=1,description=Kind of event (e.g. 'tool_call')"`
	Timestamp string         `json:"timestamp" jsonschema:"minLength=1,description=Client-supplied time of the event"`
	Source    string         `json:"source,omitempty" jsonschema:"description=Component that emitted the event"`
	Path      string         `json:"path,omitempty" jsonschema:"description=Repository path the event relates to"`
	Data      map[string]any `json:"data,omitempty" jsonschema:"description=Free-form payload"`
}
