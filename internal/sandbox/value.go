package sandbox

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/datasense-ai/server/internal/chart"
	"github.com/datasense-ai/server/internal/dataset"
)

// Entry is one key/value pair of a Mapping. Repr is the interpreter's own
// string form of the value, used when the value is shown as text.
type Entry struct {
	Key   string
	Value any
	Repr  string
}

// Mapping is an ordered result object; entry order is the order the code
// inserted keys.
type Mapping []Entry

// Get returns the value stored under key.
func (m Mapping) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Figures returns the chart values in entry order.
func (m Mapping) Figures() []*chart.Figure {
	var out []*chart.Figure
	for _, e := range m {
		if f, ok := e.Value.(*chart.Figure); ok {
			out = append(out, f)
		}
	}
	return out
}

// MarshalJSON writes the entries as a JSON object, preserving order.
func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", e.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Sequence is an ordered list result.
type Sequence []any

// AllFigures reports whether the sequence is non-empty and holds only charts.
func (s Sequence) AllFigures() ([]*chart.Figure, bool) {
	if len(s) == 0 {
		return nil, false
	}
	out := make([]*chart.Figure, 0, len(s))
	for _, v := range s {
		f, ok := v.(*chart.Figure)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// tagged is the wire form written by the harness.
type tagged struct {
	Type    string          `json:"type"`
	Figure  json.RawMessage `json:"figure,omitempty"`
	Items   json.RawMessage `json:"items,omitempty"`
	Columns []string        `json:"columns,omitempty"`
	Rows    [][]string      `json:"rows,omitempty"`
	Value   any             `json:"value,omitempty"`
	Repr    string          `json:"repr,omitempty"`
}

type taggedEntry struct {
	Key   string `json:"key"`
	Value tagged `json:"value"`
}

// document is the complete harness output.
type document struct {
	OK     bool    `json:"ok"`
	Result *tagged `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Decode parses a harness result document. An execution failure reported by
// the harness is returned as *ExecError.
func Decode(raw []byte) (any, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode sandbox result: %w", err)
	}
	if !doc.OK {
		return nil, &ExecError{Message: doc.Error}
	}
	if doc.Result == nil {
		return nil, nil
	}
	return decodeTagged(*doc.Result)
}

func decodeTagged(t tagged) (any, error) {
	switch t.Type {
	case "none", "":
		return nil, nil
	case "figure":
		f, ok := chart.Parse(t.Figure)
		if !ok {
			return nil, fmt.Errorf("decode sandbox result: figure without data")
		}
		return f, nil
	case "mapping":
		var items []taggedEntry
		if err := json.Unmarshal(t.Items, &items); err != nil {
			return nil, fmt.Errorf("decode mapping: %w", err)
		}
		m := make(Mapping, 0, len(items))
		for _, it := range items {
			v, err := decodeTagged(it.Value)
			if err != nil {
				return nil, err
			}
			m = append(m, Entry{Key: it.Key, Value: v, Repr: it.Value.Repr})
		}
		return m, nil
	case "sequence":
		var items []tagged
		if err := json.Unmarshal(t.Items, &items); err != nil {
			return nil, fmt.Errorf("decode sequence: %w", err)
		}
		s := make(Sequence, 0, len(items))
		for _, it := range items {
			v, err := decodeTagged(it)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	case "dataframe":
		if len(t.Columns) == 0 {
			return dataset.Empty("result"), nil
		}
		return dataset.New("result", t.Columns, t.Rows)
	case "scalar":
		return t.Value, nil
	case "text":
		s, _ := t.Value.(string)
		return s, nil
	default:
		return nil, fmt.Errorf("decode sandbox result: unknown type %q", t.Type)
	}
}
