package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInteger
	KindReal
	KindText
	KindBytes
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Value is a single result cell. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	kind  ValueKind
	i     int64
	f     float64
	s     string
	bytes []byte
}

func Null() Value          { return Value{} }
func Int(v int64) Value    { return Value{kind: KindInteger, i: v} }
func Real(v float64) Value { return Value{kind: KindReal, f: v} }
func Text(v string) Value  { return Value{kind: KindText, s: v} }
func Bytes(v []byte) Value { return Value{kind: KindBytes, bytes: append([]byte(nil), v...)} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

func (v Value) Int64() (int64, bool) {
	return v.i, v.kind == KindInteger
}

func (v Value) Float64() (float64, bool) {
	return v.f, v.kind == KindReal
}

func (v Value) Text() (string, bool) {
	return v.s, v.kind == KindText
}

func (v Value) Bytes() ([]byte, bool) {
	return v.bytes, v.kind == KindBytes
}

// Any returns the Go-native form of the cell: nil, int64, float64, string or
// []byte.
func (v Value) Any() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindReal:
		return v.f
	case KindText:
		return v.s
	case KindBytes:
		return v.bytes
	default:
		return nil
	}
}

// String renders the cell for display.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindReal:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	case KindBytes:
		return fmt.Sprintf("\\x%x", v.bytes)
	default:
		return "NULL"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindReal && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return json.Marshal(strconv.FormatFloat(v.f, 'g', -1, 64))
	}
	return json.Marshal(v.Any())
}

// FromDriver converts a value scanned into *any by database/sql. The database
// type name is the one reported by sql.ColumnType and only matters for drivers
// that hand back every column as []byte.
func FromDriver(raw any, databaseType string) Value {
	switch typed := raw.(type) {
	case nil:
		return Null()
	case int64:
		return Int(typed)
	case int32:
		return Int(int64(typed))
	case int16:
		return Int(int64(typed))
	case int8:
		return Int(int64(typed))
	case int:
		return Int(int64(typed))
	case uint8:
		return Int(int64(typed))
	case uint16:
		return Int(int64(typed))
	case uint32:
		return Int(int64(typed))
	case uint64:
		if typed > math.MaxInt64 {
			return Text(strconv.FormatUint(typed, 10))
		}
		return Int(int64(typed))
	case float64:
		return Real(typed)
	case float32:
		return Real(float64(typed))
	case bool:
		if typed {
			return Int(1)
		}
		return Int(0)
	case string:
		return Text(typed)
	case []byte:
		return fromRawBytes(typed, databaseType)
	case [16]byte:
		return Text(formatUUID(typed))
	case time.Time:
		return Text(typed.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return Text(typed.String())
	default:
		return Text(fmt.Sprint(typed))
	}
}

func fromRawBytes(raw []byte, databaseType string) Value {
	dbType := strings.ToUpper(strings.TrimSpace(databaseType))
	switch {
	case dbType == "", strings.Contains(dbType, "BLOB"), strings.Contains(dbType, "BINARY"), dbType == "BYTEA":
		return Bytes(raw)
	case isIntegerType(dbType):
		if parsed, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return Int(parsed)
		}
	case dbType == "FLOAT", dbType == "DOUBLE", dbType == "REAL":
		if parsed, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return Real(parsed)
		}
	}
	return Text(string(raw))
}

func isIntegerType(dbType string) bool {
	switch strings.TrimPrefix(dbType, "UNSIGNED ") {
	case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT", "YEAR":
		return true
	default:
		return false
	}
}

func formatUUID(v [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16])
}
