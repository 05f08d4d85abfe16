package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

// NotSerializableMessage replaces results that cannot be encoded as JSON.
const NotSerializableMessage = "Result not serializable"

// Outcome is what one engine produced for one file.
type Outcome struct {
	Engine string
	Result *sdk.Result
	Err    error
}

// Entry is a normalized outcome: either a result or an error message.
// Its encoded form is always valid JSON.
type Entry struct {
	Engine string
	Result *sdk.Result
	Error  string

	raw json.RawMessage
}

// Failed reports whether the entry is an error record.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// MarshalJSON returns the pre-encoded entry.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.raw == nil {
		return []byte("null"), nil
	}
	return e.raw, nil
}

// Normalize converts an outcome into an entry. Errors become
// {"error": message}; results that fail to encode become
// {"error": "Result not serializable"}.
func Normalize(o Outcome) Entry {
	if o.Err != nil {
		msg := o.Err.Error()
		if msg == "" {
			msg = "unknown error"
		}
		return errorEntry(o.Engine, msg)
	}
	if o.Result == nil {
		return errorEntry(o.Engine, fmt.Sprintf("%s returned no result", o.Engine))
	}
	raw, err := json.Marshal(o.Result)
	if err != nil {
		return errorEntry(o.Engine, NotSerializableMessage)
	}
	return Entry{Engine: o.Engine, Result: o.Result, raw: raw}
}

func errorEntry(engine, message string) Entry {
	raw, _ := json.Marshal(map[string]string{"error": message})
	return Entry{Engine: engine, Error: message, raw: raw}
}

// Aggregate maps engine names to normalized entries, in registration order.
// Setting an existing name replaces its entry and keeps its position.
type Aggregate struct {
	entries []Entry
	index   map[string]int
}

// NewAggregate creates an empty aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{index: make(map[string]int)}
}

// Set stores the entry under its engine name.
func (a *Aggregate) Set(e Entry) {
	if i, ok := a.index[e.Engine]; ok {
		a.entries[i] = e
		return
	}
	a.index[e.Engine] = len(a.entries)
	a.entries = append(a.entries, e)
}

// Get returns the entry for an engine.
func (a *Aggregate) Get(engine string) (Entry, bool) {
	i, ok := a.index[engine]
	if !ok {
		return Entry{}, false
	}
	return a.entries[i], true
}

// Keys returns engine names in order.
func (a *Aggregate) Keys() []string {
	keys := make([]string, len(a.entries))
	for i, e := range a.entries {
		keys[i] = e.Engine
	}
	return keys
}

// Entries returns the entries in order.
func (a *Aggregate) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of distinct engine names.
func (a *Aggregate) Len() int {
	return len(a.entries)
}

// Failures returns the names of engines whose entry is an error.
func (a *Aggregate) Failures() []string {
	var names []string
	for _, e := range a.entries {
		if e.Failed() {
			names = append(names, e.Engine)
		}
	}
	return names
}

// Successes returns the names of engines whose entry is a result.
func (a *Aggregate) Successes() []string {
	var names []string
	for _, e := range a.entries {
		if !e.Failed() {
			names = append(names, e.Engine)
		}
	}
	return names
}

// MarshalJSON encodes the aggregate as an object with keys in order.
func (a *Aggregate) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range a.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Engine)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, _ := e.MarshalJSON()
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
