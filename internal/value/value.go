// Package value models a column value read from the database as one of a
// closed set of typed, nullable scalars.
//
// Every variant renders itself as an SQL literal (for INSERT statements), as
// a short display label (for graph descriptions) and as a driver argument (for
// WHERE clauses). Column types the package does not understand decode to
// Unknown instead of failing.
package value

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindDecimal
	KindText
	KindUUID
	KindTimestamp
	KindDate
	KindUnknown
)

var kindNames = [...]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindInteger:   "integer",
	KindDecimal:   "decimal",
	KindText:      "text",
	KindUUID:      "uuid",
	KindTimestamp: "timestamp",
	KindDate:      "date",
	KindUnknown:   "unknown",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a decoded column value. It is implemented only by the types of
// this package.
type Value interface {
	Kind() Kind
	// SQLLiteral renders the value so that it can be pasted into a statement.
	SQLLiteral() string
	// Label is a short human oriented rendering.
	Label() string
	// Arg converts the value into a database/sql query argument.
	Arg() any

	sealed()
}

// Key returns a canonical comparable form of v. Two values with the same key
// are the same value.
func Key(v Value) string {
	return v.Kind().String() + ":" + v.SQLLiteral()
}

const maxLabelRunes = 32

// Null is the SQL NULL.
type Null struct{}

func (Null) Kind() Kind         { return KindNull }
func (Null) SQLLiteral() string { return "NULL" }
func (Null) Label() string      { return "NULL" }
func (Null) Arg() any           { return nil }
func (Null) sealed()            {}

// Bool is a boolean column value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }

func (b Bool) SQLLiteral() string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (b Bool) Label() string { return strconv.FormatBool(bool(b)) }
func (b Bool) Arg() any      { return bool(b) }
func (Bool) sealed()         {}

// Integer is any integral column value that fits in 64 bits.
type Integer int64

func (Integer) Kind() Kind           { return KindInteger }
func (i Integer) SQLLiteral() string { return strconv.FormatInt(int64(i), 10) }
func (i Integer) Label() string      { return strconv.FormatInt(int64(i), 10) }
func (i Integer) Arg() any           { return int64(i) }
func (Integer) sealed()              {}

// Text is a character column value.
type Text string

func (Text) Kind() Kind           { return KindText }
func (t Text) SQLLiteral() string { return quote(string(t)) }

func (t Text) Label() string {
	s := string(t)
	if utf8.RuneCountInString(s) <= maxLabelRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLabelRunes-1]) + "…"
}

func (t Text) Arg() any { return string(t) }
func (Text) sealed()    {}

// UUID is a 16 byte universally unique identifier.
type UUID uuid.UUID

func (UUID) Kind() Kind           { return KindUUID }
func (u UUID) String() string     { return uuid.UUID(u).String() }
func (u UUID) SQLLiteral() string { return quote(u.String()) }
func (u UUID) Label() string      { return u.String() }
func (u UUID) Arg() any           { return u.String() }
func (UUID) sealed()              {}

// Timestamp is a civil date and time. HasZone reports whether the column
// carries a time zone, in which case the offset of Time is rendered too.
type Timestamp struct {
	Time    time.Time
	HasZone bool
}

const (
	timestampLayout     = "2006-01-02T15:04:05.999999999"
	timestampZoneLayout = "2006-01-02T15:04:05.999999999Z07:00"
)

func (Timestamp) Kind() Kind { return KindTimestamp }

func (t Timestamp) String() string {
	if t.HasZone {
		return t.Time.Format(timestampZoneLayout)
	}
	return t.Time.Format(timestampLayout)
}

func (t Timestamp) SQLLiteral() string { return quote(t.String()) }

func (t Timestamp) Label() string {
	if t.HasZone {
		return t.Time.Format("2006-01-02 15:04:05Z07:00")
	}
	return t.Time.Format("2006-01-02 15:04:05")
}

func (t Timestamp) Arg() any { return t.Time }
func (Timestamp) sealed()    {}

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (Date) Kind() Kind { return KindDate }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) SQLLiteral() string { return quote(d.String()) }
func (d Date) Label() string      { return d.String() }
func (d Date) Arg() any           { return d.String() }
func (Date) sealed()              {}

// Unknown holds the raw driver representation of a column whose type is not
// modelled by this package.
type Unknown struct {
	Raw      []byte
	TypeName string
}

func (Unknown) Kind() Kind { return KindUnknown }

func (u Unknown) rawText() string {
	if utf8.Valid(u.Raw) {
		return string(u.Raw)
	}
	return `\x` + hex.EncodeToString(u.Raw)
}

func (u Unknown) SQLLiteral() string {
	typeName := strings.ReplaceAll(u.TypeName, "*/", "* /")
	if typeName == "" {
		typeName = "?"
	}
	return quote(u.rawText()) + " /* unknown type: " + typeName + " */"
}

func (u Unknown) Label() string {
	if u.TypeName == "" {
		return "<unknown>"
	}
	return "<" + strings.ToLower(u.TypeName) + ">"
}

func (u Unknown) Arg() any { return u.rawText() }
func (Unknown) sealed()    {}

// quote wraps s in single quotes, doubling embedded quotes.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
