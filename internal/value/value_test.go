package value

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLLiteral(t *testing.T) {
	id := uuid.MustParse("83166f85-d37a-4fe7-a0f6-ad5103d03f8a")
	ts := time.Date(2024, 3, 9, 14, 5, 7, 120000000, time.FixedZone("", 7*3600))

	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"null", Null{}, "NULL"},
		{"true", Bool(true), "TRUE"},
		{"false", Bool(false), "FALSE"},
		{"integer", Integer(-42), "-42"},
		{"decimal keeps scale", NewDecimal(big.NewInt(12340), 3), "12.340"},
		{"decimal below one", NewDecimal(big.NewInt(-5), 2), "-0.05"},
		{"text", Text("O'Reilly"), "'O''Reilly'"},
		{"uuid", UUID(id), "'83166f85-d37a-4fe7-a0f6-ad5103d03f8a'"},
		{"timestamp with zone", Timestamp{Time: ts, HasZone: true}, "'2024-03-09T14:05:07.12+07:00'"},
		{"timestamp without zone", Timestamp{Time: ts}, "'2024-03-09T14:05:07.12'"},
		{"date", Date{Year: 2024, Month: time.February, Day: 29}, "'2024-02-29'"},
		{"unknown", Unknown{Raw: []byte("(1,2)"), TypeName: "point"}, "'(1,2)' /* unknown type: point */"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.SQLLiteral())
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "42", Integer(42).Label())
	assert.Equal(t, "short", Text("short").Label())
	assert.Equal(t, "<point>", Unknown{TypeName: "POINT"}.Label())

	long := Text(strings.Repeat("x", 100)).Label()
	assert.Equal(t, maxLabelRunes, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "…"))
}

func TestUnknownBinaryIsHexEncoded(t *testing.T) {
	u := Unknown{Raw: []byte{0xff, 0x00, 0x10}, TypeName: "bytea"}
	assert.Equal(t, `'\xff0010' /* unknown type: bytea */`, u.SQLLiteral())
}

func TestUnknownTypeNameCannotCloseComment(t *testing.T) {
	u := Unknown{Raw: []byte("x"), TypeName: "evil*/ DROP"}
	assert.NotContains(t, strings.TrimSuffix(u.SQLLiteral(), " */"), "*/")
}

func TestParseDecimalRoundTrip(t *testing.T) {
	inputs := []string{"0", "12.340", "-0.05", "123456789012345678901234567890.000000001", "7", "-100.0"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			d, err := ParseDecimal(in)
			require.NoError(t, err)
			assert.Equal(t, in, d.SQLLiteral())

			again, err := ParseDecimal(d.SQLLiteral())
			require.NoError(t, err)
			assert.Equal(t, 0, d.Unscaled().Cmp(again.Unscaled()))
			assert.Equal(t, d.Scale(), again.Scale())
		})
	}
}

func TestParseDecimalExponent(t *testing.T) {
	d, err := ParseDecimal("1.5e3")
	require.NoError(t, err)
	assert.Equal(t, "1500", d.String())

	d, err = ParseDecimal("25e-3")
	require.NoError(t, err)
	assert.Equal(t, "0.025", d.String())
}

func TestParseDecimalExponentOutOfRange(t *testing.T) {
	for _, in := range []string{"1e9999999", "1e-3000000000", "1e1001", "0.5e-1000", "1e99999999999999999999"} {
		_, err := ParseDecimal(in)
		assert.ErrorIs(t, err, errInvalidDecimal, in)
	}

	d, err := ParseDecimal("1e1000")
	require.NoError(t, err)
	assert.Len(t, d.String(), 1001)

	d, err = ParseDecimal("1e-1000")
	require.NoError(t, err)
	assert.Equal(t, int32(1000), d.Scale())

	v := Parse("1e9999999", "numeric")
	assert.Equal(t, KindUnknown, v.Kind())
}

func TestParseDecimalRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "-", "abc", "1.2.3", "NaN", "1e"} {
		_, err := ParseDecimal(in)
		assert.Error(t, err, in)
	}
}

func TestDecode(t *testing.T) {
	id := uuid.MustParse("83166f85-d37a-4fe7-a0f6-ad5103d03f8a")
	ts := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		raw      any
		typeName string
		want     string
		kind     Kind
	}{
		{"nil is null", nil, "INT4", "NULL", KindNull},
		{"int4", int64(123), "INT4", "123", KindInteger},
		{"mysql integer bytes", []byte("77"), "INT", "77", KindInteger},
		{"unsigned", []byte("5"), "UNSIGNED BIGINT", "5", KindInteger},
		{"numeric bytes", []byte("10.50"), "NUMERIC", "10.50", KindDecimal},
		{"numeric with modifier", "3.000", "numeric(10,3)", "3.000", KindDecimal},
		{"float", float64(0.1), "FLOAT8", "0.1", KindDecimal},
		{"bool", true, "BOOL", "TRUE", KindBool},
		{"bit byte", []byte{1}, "BIT", "TRUE", KindBool},
		{"bool text", "f", "boolean", "FALSE", KindBool},
		{"uuid text bytes", []byte(id.String()), "UUID", "'" + id.String() + "'", KindUUID},
		{"uuid array", [16]byte(id), "UUID", "'" + id.String() + "'", KindUUID},
		{"timestamp", ts, "TIMESTAMP", "'2023-01-02T03:04:05'", KindTimestamp},
		{"timestamptz", ts, "TIMESTAMPTZ", "'2023-01-02T03:04:05Z'", KindTimestamp},
		{"date", time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), "DATE", "'2023-01-02'", KindDate},
		{"date with clock", ts, "DATE", "'2023-01-02T03:04:05'", KindTimestamp},
		{"date text", "2023-01-02", "date", "'2023-01-02'", KindDate},
		{"varchar", []byte("hi"), "VARCHAR", "'hi'", KindText},
		{"jsonb", []byte(`{"a":1}`), "JSONB", `'{"a":1}'`, KindText},
		{"unsupported type", []byte("(1,2)"), "POINT", "'(1,2)' /* unknown type: POINT */", KindUnknown},
		{"mismatched value", "abc", "INT4", "'abc' /* unknown type: INT4 */", KindUnknown},
		{"inferred integer", int64(9), "", "9", KindInteger},
		{"inferred text", "x", "", "'x'", KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Decode(tt.raw, tt.typeName)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.want, v.SQLLiteral())
		})
	}
}

func TestDecodeMSSQLUniqueIdentifier(t *testing.T) {
	// 6F9619FF-8B86-D011-B42D-00C04FC964FF as stored by SQL Server.
	raw := []byte{0xFF, 0x19, 0x96, 0x6F, 0x86, 0x8B, 0x11, 0xD0, 0xB4, 0x2D, 0x00, 0xC0, 0x4F, 0xC9, 0x64, 0xFF}
	v := Decode(raw, "UNIQUEIDENTIFIER")
	require.Equal(t, KindUUID, v.Kind())
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00c04fc964ff", v.Label())
}

func TestParse(t *testing.T) {
	assert.Equal(t, Integer(123), Parse("123", "integer"))
	assert.Equal(t, Text("abc"), Parse("abc", "character varying"))
	assert.Equal(t, Text("abc"), Parse("abc", ""))
	assert.Equal(t, KindUUID, Parse("83166f85-d37a-4fe7-a0f6-ad5103d03f8a", "uuid").Kind())
}

func TestKeyDistinguishesKinds(t *testing.T) {
	assert.NotEqual(t, Key(Integer(1)), Key(Text("1")))
	assert.Equal(t, Key(Integer(1)), Key(Decode(int64(1), "INT8")))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindTimestamp, Classify("timestamp(6) with time zone"))
	assert.Equal(t, KindInteger, Classify("int(10) unsigned"))
	assert.Equal(t, KindText, Classify("character varying"))
	assert.Equal(t, KindUnknown, Classify("geometry"))
}
