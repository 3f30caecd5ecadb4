package recordstore

import (
	"encoding/json"
	"sort"
)

// Matches applies f to a JSON document. Shared by in-process implementations
// so they agree with the SQL `doc->>'field' = value` semantics.
func Matches(doc []byte, f Filter) bool {
	if len(f) == 0 {
		return true
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return false
	}
	for field, want := range f {
		raw, ok := top[field]
		if !ok || string(raw) == "null" {
			return false
		}
		if Text(raw) != want {
			return false
		}
	}
	return true
}

// Text renders a JSON value the way Postgres `->>` does.
func Text(raw json.RawMessage) string {
	var s string
	if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// Fields returns the filter's field names in a stable order.
func (f Filter) Fields() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
