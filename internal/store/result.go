package store

import (
	"bytes"
	"encoding/json"
)

// Row is an ordered mapping from column name to value. When a statement
// yields the same column name twice the later value wins, as with any mapping.
type Row struct {
	columns []string
	values  []Value
}

func NewRow(columns []string, values []Value) Row {
	return Row{columns: columns, values: values}
}

func (r Row) Columns() []string { return r.columns }
func (r Row) Values() []Value   { return r.values }

func (r Row) Get(column string) (Value, bool) {
	for i := len(r.columns) - 1; i >= 0; i-- {
		if r.columns[i] == column && i < len(r.values) {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Map returns the row as a plain map of Go-native cell values.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.columns))
	for i, column := range r.columns {
		if i < len(r.values) {
			out[column] = r.values[i].Any()
		}
	}
	return out
}

// MarshalJSON encodes the row as a JSON object whose keys keep the column
// order of the statement.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := 0
	for i, column := range r.columns {
		if !r.isLastOccurrence(i) {
			continue
		}
		if written > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		var cell Value
		if i < len(r.values) {
			cell = r.values[i]
		}
		encoded, err := cell.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
		written++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r Row) isLastOccurrence(index int) bool {
	for j := index + 1; j < len(r.columns); j++ {
		if r.columns[j] == r.columns[index] {
			return false
		}
	}
	return true
}

// ResultSet is the ordered output of one read statement.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// MarshalJSON encodes the result as a JSON array of row objects.
func (rs ResultSet) MarshalJSON() ([]byte, error) {
	rows := rs.Rows
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(rows)
}
