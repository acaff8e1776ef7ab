package core

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// DocIDColumn is the pseudo-column that resolves to a row's storage identifier.
// It is never stored in a document body and never listed as a result column.
const DocIDColumn = "_docId"

// Row is an ordered column→value mapping decorated with storage bookkeeping.
// Rows produced by a join keep a reference to each contributing source row so
// that qualified column references resolve against the right table.
type Row struct {
	// ID is the storage identifier of the document the row was read from.
	// Rows built by projection or aggregation carry the ID of their first source.
	ID string

	// TableID is the identifier of the owning table.
	TableID string

	keys      []string
	values    map[string]interface{}
	qualifier string
	sources   map[string]*Row
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]interface{})}
}

// NewRowFromDocument builds a row from a stored document. Keys listed in order
// come first, in that order, followed by the remaining document keys sorted by name.
func NewRowFromDocument(tableID string, doc Document, order []string) *Row {
	row := NewRow()
	row.ID = doc.ID
	row.TableID = tableID

	seen := make(map[string]bool, len(doc.Fields))
	for _, name := range order {
		if v, ok := doc.Fields[name]; ok {
			row.Set(name, v)
			seen[name] = true
		}
	}

	rest := make([]string, 0, len(doc.Fields))
	for name := range doc.Fields {
		if !seen[name] && name != DocIDColumn {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		row.Set(name, doc.Fields[name])
	}
	return row
}

// Get returns the value stored under name.
func (r *Row) Get(name string) (interface{}, bool) {
	if v, ok := r.values[name]; ok {
		return v, true
	}
	if name == DocIDColumn && r.ID != "" {
		return r.ID, true
	}
	return nil, false
}

// Set stores a value, appending the key if it is new.
func (r *Row) Set(name string, value interface{}) {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	if _, exists := r.values[name]; !exists {
		r.keys = append(r.keys, name)
	}
	r.values[name] = value
}

// Has reports whether the row holds a key.
func (r *Row) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Keys returns the column names in order.
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.keys)
}

// Map returns a copy of the row values as a plain map.
func (r *Row) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of the row. Source references are shared.
func (r *Row) Clone() *Row {
	out := &Row{
		ID:        r.ID,
		TableID:   r.TableID,
		keys:      make([]string, len(r.keys)),
		values:    make(map[string]interface{}, len(r.values)),
		qualifier: r.qualifier,
	}
	copy(out.keys, r.keys)
	for k, v := range r.values {
		out.values[k] = v
	}
	if len(r.sources) > 0 {
		out.sources = make(map[string]*Row, len(r.sources))
		for k, v := range r.sources {
			out.sources[k] = v
		}
	}
	return out
}

// SetQualifier names the table (or alias) the row was read from.
func (r *Row) SetQualifier(qualifier string) {
	r.qualifier = strings.ToLower(qualifier)
}

// Source returns the row contributed by the table or alias named qualifier.
// It returns nil when the qualifier is unknown to this row.
func (r *Row) Source(qualifier string) *Row {
	q := strings.ToLower(qualifier)
	if q == "" {
		return nil
	}
	if r.qualifier == q {
		return r
	}
	return r.sources[q]
}

// JoinRows widens left with the columns of right. Keys already present on the
// left keep the left value; both inputs stay reachable through Source.
func JoinRows(left, right *Row, rightQualifier string) *Row {
	out := left.Clone()
	if out.sources == nil {
		out.sources = make(map[string]*Row)
	}
	if left.qualifier != "" {
		out.sources[left.qualifier] = left
		out.qualifier = ""
	}
	for _, k := range right.keys {
		if !out.Has(k) {
			out.Set(k, right.values[k])
		}
	}
	out.sources[strings.ToLower(rightQualifier)] = right
	return out
}

// NullRow returns a row holding nil for every given column.
func NullRow(columns []string) *Row {
	row := NewRow()
	for _, c := range columns {
		row.Set(c, nil)
	}
	return row
}

// MarshalJSON encodes the row as a JSON object preserving column order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
