package value

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Classify maps a declared or driver reported SQL type name onto the variant
// used to hold its values. Unrecognized names classify as KindUnknown.
func Classify(typeName string) Kind {
	switch normalizeType(typeName) {
	case "BOOL", "BOOLEAN", "BIT":
		return KindBool
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "SMALLINT", "BIGINT", "TINYINT", "MEDIUMINT",
		"SERIAL", "SMALLSERIAL", "BIGSERIAL", "SERIAL4", "SERIAL8":
		return KindInteger
	case "NUMERIC", "DECIMAL", "NUMBER", "DEC", "REAL", "FLOAT", "FLOAT4", "FLOAT8",
		"DOUBLE", "DOUBLE PRECISION", "BINARY_FLOAT", "BINARY_DOUBLE":
		return KindDecimal
	case "UUID", "UNIQUEIDENTIFIER":
		return KindUUID
	case "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITHOUT TIME ZONE",
		"TIMESTAMP WITH LOCAL TIME ZONE", "DATETIME", "DATETIME2", "DATETIMEOFFSET", "SMALLDATETIME":
		return KindTimestamp
	case "DATE":
		return KindDate
	case "TEXT", "VARCHAR", "CHAR", "BPCHAR", "CHARACTER", "CHARACTER VARYING", "NVARCHAR", "NCHAR",
		"NTEXT", "VARCHAR2", "NVARCHAR2", "CLOB", "NCLOB", "CITEXT", "NAME", "JSON", "JSONB", "XML",
		"ENUM", "SET", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "INET", "CIDR", "MACADDR", "INTERVAL",
		"TIME", "TIMETZ", "TIME WITH TIME ZONE", "TIME WITHOUT TIME ZONE":
		return KindText
	}
	return KindUnknown
}

// normalizeType upper-cases a type name and drops length/precision modifiers
// and the MySQL UNSIGNED attribute: "numeric(10,2)" → "NUMERIC",
// "timestamp(6) with time zone" → "TIMESTAMP WITH TIME ZONE".
func normalizeType(typeName string) string {
	t := strings.ToUpper(strings.TrimSpace(typeName))
	if open := strings.IndexByte(t, '('); open >= 0 {
		rest := ""
		if end := strings.IndexByte(t[open:], ')'); end >= 0 {
			rest = t[open+end+1:]
		}
		t = strings.TrimSpace(t[:open]) + rest
	}
	t = strings.TrimPrefix(t, "UNSIGNED ")
	t = strings.TrimSuffix(t, " UNSIGNED")
	return strings.Join(strings.Fields(t), " ")
}

func hasZone(typeName string) bool {
	switch normalizeType(typeName) {
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITH LOCAL TIME ZONE", "DATETIMEOFFSET":
		return true
	}
	return false
}

// Decode converts a value produced by a database/sql driver into a Value
// according to the column's type name. It never fails: a value that cannot be
// represented by the declared type, or a type that is not recognized, becomes
// Unknown. An empty type name (computed columns) is inferred from the Go type
// of raw.
func Decode(raw any, typeName string) Value {
	if raw == nil {
		return Null{}
	}
	if typeName == "" {
		return infer(raw)
	}

	switch Classify(typeName) {
	case KindBool:
		if b, ok := asBool(raw); ok {
			return Bool(b)
		}
	case KindInteger:
		if i, ok := asInt(raw); ok {
			return Integer(i)
		}
	case KindDecimal:
		if d, ok := asDecimal(raw); ok {
			return d
		}
	case KindUUID:
		if u, ok := asUUID(raw, typeName); ok {
			return u
		}
	case KindTimestamp:
		if t, ok := asTime(raw); ok {
			return Timestamp{Time: t, HasZone: hasZone(typeName)}
		}
	case KindDate:
		if t, ok := asTime(raw); ok {
			h, m, s := t.Clock()
			if h != 0 || m != 0 || s != 0 || t.Nanosecond() != 0 {
				return Timestamp{Time: t}
			}
			return DateOf(t)
		}
	case KindText:
		if s, ok := asString(raw); ok {
			return Text(s)
		}
	}
	return Unknown{Raw: rawBytes(raw), TypeName: typeName}
}

// Parse converts a value typed by a user (a command line filter) into the
// variant of the column it is compared against.
func Parse(text, typeName string) Value {
	return Decode(text, typeName)
}

func infer(raw any) Value {
	switch v := raw.(type) {
	case bool:
		return Bool(v)
	case time.Time:
		return Timestamp{Time: v}
	case float32, float64:
		if d, ok := asDecimal(v); ok {
			return d
		}
	case []byte:
		if utf8.Valid(v) {
			return Text(string(v))
		}
	}
	if i, ok := asInt(raw); ok {
		if _, isString := raw.(string); !isString {
			return Integer(i)
		}
	}
	if s, ok := asString(raw); ok {
		return Text(s)
	}
	return Unknown{Raw: rawBytes(raw)}
}

func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		if utf8.Valid(v) {
			return string(v), true
		}
		return "", false
	case fmt.Stringer:
		return v.String(), true
	}
	if rv := reflect.ValueOf(raw); rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func asBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case []byte:
		// MySQL BIT(1) arrives as a single raw byte.
		if len(v) == 1 && v[0] <= 1 {
			return v[0] == 1, true
		}
	}
	if i, ok := asInt(raw); ok && (i == 0 || i == 1) {
		return i == 1, true
	}
	if s, ok := asString(raw); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		return b, err == nil
	}
	return false, false
}

func asInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v <= math.MaxInt64 {
			return int64(v), true
		}
		return 0, false
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func asDecimal(raw any) (Decimal, bool) {
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Decimal{}, false
		}
		d, err := ParseDecimal(strconv.FormatFloat(v, 'f', -1, 64))
		return d, err == nil
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Decimal{}, false
		}
		d, err := ParseDecimal(strconv.FormatFloat(f, 'f', -1, 32))
		return d, err == nil
	case *big.Int:
		return NewDecimal(v, 0), true
	}
	if i, ok := asInt(raw); ok {
		if _, isText := raw.(string); !isText {
			return NewDecimal(big.NewInt(i), 0), true
		}
	}
	if s, ok := asString(raw); ok {
		d, err := ParseDecimal(s)
		return d, err == nil
	}
	return Decimal{}, false
}

func asUUID(raw any, typeName string) (UUID, bool) {
	switch v := raw.(type) {
	case [16]byte:
		return UUID(v), true
	case uuid.UUID:
		return UUID(v), true
	case []byte:
		if len(v) == 16 {
			var u uuid.UUID
			copy(u[:], v)
			if normalizeType(typeName) == "UNIQUEIDENTIFIER" {
				u = swapMSSQLOrder(u)
			}
			return UUID(u), true
		}
		u, err := uuid.ParseBytes(v)
		return UUID(u), err == nil
	}
	if s, ok := asString(raw); ok {
		u, err := uuid.Parse(strings.TrimSpace(s))
		return UUID(u), err == nil
	}
	return UUID{}, false
}

// swapMSSQLOrder converts SQL Server's uniqueidentifier byte order, where the
// first three groups are little endian, into RFC 4122 order.
func swapMSSQLOrder(u uuid.UUID) uuid.UUID {
	u[0], u[1], u[2], u[3] = u[3], u[2], u[1], u[0]
	u[4], u[5] = u[5], u[4]
	u[6], u[7] = u[7], u[6]
	return u
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func asTime(raw any) (time.Time, bool) {
	if t, ok := raw.(time.Time); ok {
		return t, true
	}
	s, ok := asString(raw)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func rawBytes(raw any) []byte {
	switch v := raw.(type) {
	case []byte:
		return append([]byte(nil), v...)
	case string:
		return []byte(v)
	}
	return []byte(fmt.Sprint(raw))
}
