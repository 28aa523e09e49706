package journal

import (
	"bytes"
	"encoding/json"

	"github.com/bashhack/gitjournal/internal/events"
)

// Note is the metadata attached to a journal commit. Empty fields are
// omitted from the encoding; absence means "none of that kind".
type Note struct {
	Nodes  []string       `json:"nodes,omitempty"`
	Events []events.Event `json:"events,omitempty"`
}

// BuildNote maps committed paths to node identifiers, keeping the first
// occurrence of each and dropping paths without one, and attaches events
// in queue order.
func BuildNote(paths []string, evs []events.Event, nodeFor func(string) (string, bool)) Note {
	var note Note

	seen := make(map[string]struct{})
	for _, p := range paths {
		node, ok := nodeFor(p)
		if !ok {
			continue
		}
		if _, dup := seen[node]; dup {
			continue
		}
		seen[node] = struct{}{}
		note.Nodes = append(note.Nodes, node)
	}

	if len(evs) > 0 {
		note.Events = evs
	}
	return note
}

// Empty reports whether the note carries nothing worth writing.
func (n Note) Empty() bool {
	return len(n.Nodes) == 0 && len(n.Events) == 0
}

// Encode renders the note as compact JSON without HTML escaping.
func (n Note) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(n); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DecodeNote parses a note payload.
func DecodeNote(data []byte) (Note, error) {
	var note Note
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&note); err != nil {
		return Note{}, err
	}
	return note, nil
}
