// Package export serializes query results as Parquet files.
package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/querycraft/querycraft/internal/store"
)

const ContentType = "application/vnd.apache.parquet"

type Stats struct {
	Rows    int
	Columns int
}

// WriteParquet encodes rs as a single Parquet file. Each column is optional
// and typed from its first non-null cell; columns holding several kinds are
// written as strings. When a name repeats, the last column wins, matching
// the JSON form of a row.
func WriteParquet(w io.Writer, rs store.ResultSet) (Stats, error) {
	if len(rs.Columns) == 0 {
		return Stats{}, fmt.Errorf("result has no columns")
	}

	kinds := columnKinds(rs)
	group := parquet.Group{}
	for name, kind := range kinds {
		group[name] = parquet.Optional(nodeFor(kind))
	}
	schema := parquet.NewSchema("result", group)

	index := map[string]int{}
	for i, path := range schema.Columns() {
		index[path[0]] = i
	}

	rows := make([]parquet.Row, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		out := make(parquet.Row, len(index))
		for name, columnIndex := range index {
			cell, _ := row.Get(name)
			out[columnIndex] = cellValue(cell, kinds[name]).Level(0, definitionLevel(cell), columnIndex)
		}
		rows = append(rows, out)
	}

	writer := parquet.NewWriter(w, schema)
	if _, err := writer.WriteRows(rows); err != nil {
		return Stats{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Stats{}, fmt.Errorf("close parquet writer: %w", err)
	}
	return Stats{Rows: len(rows), Columns: len(index)}, nil
}

// columnKinds picks the storage kind of every distinct column name.
func columnKinds(rs store.ResultSet) map[string]store.ValueKind {
	kinds := make(map[string]store.ValueKind, len(rs.Columns))
	for _, name := range rs.Columns {
		kinds[name] = store.KindNull
	}
	for _, row := range rs.Rows {
		for name, current := range kinds {
			cell, ok := row.Get(name)
			if !ok || cell.IsNull() {
				continue
			}
			switch {
			case current == store.KindNull:
				kinds[name] = cell.Kind()
			case current != cell.Kind():
				kinds[name] = store.KindText
			}
		}
	}
	return kinds
}

func nodeFor(kind store.ValueKind) parquet.Node {
	switch kind {
	case store.KindInteger:
		return parquet.Int(64)
	case store.KindReal:
		return parquet.Leaf(parquet.DoubleType)
	case store.KindBytes:
		return parquet.Leaf(parquet.ByteArrayType)
	default:
		return parquet.String()
	}
}

func cellValue(cell store.Value, kind store.ValueKind) parquet.Value {
	if cell.IsNull() {
		return parquet.NullValue()
	}
	switch kind {
	case store.KindInteger:
		v, _ := cell.Int64()
		return parquet.Int64Value(v)
	case store.KindReal:
		v, _ := cell.Float64()
		return parquet.DoubleValue(v)
	case store.KindBytes:
		v, _ := cell.Bytes()
		return parquet.ByteArrayValue(v)
	default:
		return parquet.ByteArrayValue([]byte(cell.String()))
	}
}

func definitionLevel(cell store.Value) int {
	if cell.IsNull() {
		return 0
	}
	return 1
}
