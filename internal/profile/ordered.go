package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Pair is one key/value member of an ordered JSON object.
type Pair struct {
	Key   string
	Value string
}

// Ordered is a JSON object whose member order is significant. The trial,
// metric, thread and metadata endpoints return mappings in SQL row order,
// and clients resolve cached selections by scanning that order, so the
// order must survive encoding and decoding. Go maps cannot carry it.
type Ordered []Pair

// MarshalJSON encodes the pairs as a JSON object in slice order.
func (o Ordered) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving member order. Non-string
// values (numbers, booleans) are kept in their literal JSON text; null
// becomes the empty string.
func (o *Ordered) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		// PHP encodes an empty array for an empty result set.
		if d, ok := tok.(json.Delim); ok && d == '[' {
			if end, err := dec.Token(); err == nil {
				if d, ok := end.(json.Delim); ok && d == ']' {
					*o = Ordered{}
					return nil
				}
			}
		}
		return fmt.Errorf("ordered object: expected '{', got %v", tok)
	}

	out := Ordered{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("ordered object: expected string key, got %v", kt)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("ordered object: value for %q: %w", key, err)
		}
		out = append(out, Pair{Key: key, Value: rawString(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// Get returns the value for key and whether it was present.
func (o Ordered) Get(key string) (string, bool) {
	for _, p := range o {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// idNames converts ordered id->name pairs to (id, name) tuples, failing on
// a key that is not an integer.
func (o Ordered) idNames() ([]int64, []string, error) {
	ids := make([]int64, len(o))
	names := make([]string, len(o))
	for i, p := range o {
		id, err := strconv.ParseInt(p.Key, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("id %q: %w", p.Key, err)
		}
		ids[i] = id
		names[i] = p.Value
	}
	return ids, names, nil
}

// Trials decodes an id->name object into trials.
func (o Ordered) Trials() ([]Trial, error) {
	ids, names, err := o.idNames()
	if err != nil {
		return nil, err
	}
	out := make([]Trial, len(ids))
	for i := range ids {
		out[i] = Trial{ID: ids[i], Name: names[i]}
	}
	return out, nil
}

// Metrics decodes an id->name object into metrics.
func (o Ordered) Metrics() ([]Metric, error) {
	ids, names, err := o.idNames()
	if err != nil {
		return nil, err
	}
	out := make([]Metric, len(ids))
	for i := range ids {
		out[i] = Metric{ID: ids[i], Name: names[i]}
	}
	return out, nil
}

// Threads decodes an id->name object into threads.
func (o Ordered) Threads() ([]Thread, error) {
	ids, names, err := o.idNames()
	if err != nil {
		return nil, err
	}
	out := make([]Thread, len(ids))
	for i := range ids {
		out[i] = Thread{ID: ids[i], Name: names[i]}
	}
	return out, nil
}

// Metadata decodes a name->value object into metadata entries.
func (o Ordered) Metadata() []MetadataEntry {
	out := make([]MetadataEntry, len(o))
	for i, p := range o {
		out[i] = MetadataEntry{Name: p.Key, Value: p.Value}
	}
	return out
}

// OrderedTrials encodes trials as an id->name object.
func OrderedTrials(ts []Trial) Ordered {
	out := make(Ordered, len(ts))
	for i, t := range ts {
		out[i] = Pair{Key: strconv.FormatInt(t.ID, 10), Value: t.Name}
	}
	return out
}

// OrderedMetrics encodes metrics as an id->name object.
func OrderedMetrics(ms []Metric) Ordered {
	out := make(Ordered, len(ms))
	for i, m := range ms {
		out[i] = Pair{Key: strconv.FormatInt(m.ID, 10), Value: m.Name}
	}
	return out
}

// OrderedThreads encodes threads as an id->name object.
func OrderedThreads(ts []Thread) Ordered {
	out := make(Ordered, len(ts))
	for i, t := range ts {
		out[i] = Pair{Key: strconv.FormatInt(t.ID, 10), Value: t.Name}
	}
	return out
}

// OrderedMetadata encodes metadata as a name->value object. Duplicate names
// are kept; a JSON decoder that builds a map keeps the last one.
func OrderedMetadata(es []MetadataEntry) Ordered {
	out := make(Ordered, len(es))
	for i, e := range es {
		out[i] = Pair{Key: e.Name, Value: e.Value}
	}
	return out
}
