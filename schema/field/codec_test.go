package field_test

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema/field"
)

func roundTrip(t *testing.T, v any, info *field.TypeInfo) any {
	t.Helper()
	raw, err := field.Serialize(v, info)
	require.NoError(t, err)
	got, err := field.Deserialize(raw, info, time.UTC)
	require.NoError(t, err)
	return got
}

func TestSerializeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC)
	id := uuid.MustParse("5f1b3c9e-8f0a-4cde-9b1e-0d9a8c7b6a51")
	tests := []struct {
		name string
		in   any
		info *field.TypeInfo
		want any
	}{
		{"string", "héllo 'quoted'", field.String("s").Descriptor().Info, "héllo 'quoted'"},
		{"int", 42, field.Int("i").Descriptor().Info, int64(42)},
		{"int64", int64(-7), field.Int64("i").Descriptor().Info, int64(-7)},
		{"float", 1.25, field.Float64("f").Descriptor().Info, 1.25},
		{"float32", float32(0.1), field.Float32("f").Descriptor().Info, 0.1},
		{"bool", true, field.Bool("b").Descriptor().Info, true},
		{"enum", "active", field.Enum("e").Values("active").Descriptor().Info, "active"},
		{"enum outside values", "bogus", field.Enum("e").Values("active").Descriptor().Info, "bogus"},
		{"json object", map[string]any{"a": 1.0, "b": []any{"x", true}}, field.JSON("j").Descriptor().Info, map[string]any{"a": 1.0, "b": []any{"x", true}}},
		{"json array", []any{1.0, "two"}, field.JSON("j").Descriptor().Info, []any{1.0, "two"}},
		{"uuid", id, field.UUID("u").Descriptor().Info, id},
		{"bytes", []byte{0, 1, 2}, field.Bytes("b").Descriptor().Info, []byte{0, 1, 2}},
		{"decimal", "12.50", field.Decimal("d", 10, 2).Descriptor().Info, "12.50"},
		{"array of int", []int{1, 2, 3}, field.Array("a", field.TypeInt).Descriptor().Info, []any{int64(1), int64(2), int64(3)}},
		{"range exclusive", field.NewRange(1, 5), field.RangeOf("r", field.TypeInt).Descriptor().Info,
			field.Range{Lower: int64(1), Upper: int64(5), LowerInclusive: true}},
		{"range inclusive", field.Range{Lower: 1, Upper: 5, LowerInclusive: true, UpperInclusive: true}, field.RangeOf("r", field.TypeInt).Descriptor().Info,
			field.Range{Lower: int64(1), Upper: int64(5), LowerInclusive: true, UpperInclusive: true}},
		{"geometry", field.Point(1, 2), field.Geometry("g").Descriptor().Info, field.GeoJSON{Type: "Point", Coordinates: []any{1.0, 2.0}}},
		{"nil", nil, field.String("s").Descriptor().Info, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTrip(t, tt.in, tt.info)
			if f, ok := tt.want.(float64); ok {
				assert.InDelta(t, f, got, 1e-9)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("time", func(t *testing.T) {
		got := roundTrip(t, ts, field.Time("t").Descriptor().Info)
		require.IsType(t, time.Time{}, got)
		assert.True(t, ts.Equal(got.(time.Time)))
		assert.Equal(t, 123_000_000, got.(time.Time).Nanosecond())
	})

	t.Run("time in zone", func(t *testing.T) {
		loc := time.FixedZone("UTC+2", 2*60*60)
		raw, err := field.Serialize(ts.In(loc), field.Time("t").Descriptor().Info)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, raw.(time.Time).Location())
		got, err := field.Deserialize(raw, field.Time("t").Descriptor().Info, loc)
		require.NoError(t, err)
		assert.True(t, ts.Equal(got.(time.Time)))
		assert.Equal(t, loc, got.(time.Time).Location())
	})

	t.Run("float specials", func(t *testing.T) {
		info := field.Float64("f").Descriptor().Info
		assert.True(t, math.IsNaN(roundTrip(t, math.NaN(), info).(float64)))
		assert.True(t, math.IsInf(roundTrip(t, math.Inf(1), info).(float64), 1))
		assert.True(t, math.IsInf(roundTrip(t, math.Inf(-1), info).(float64), -1))
	})
}

func TestDeserializeDriverValues(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name string
		raw  any
		info *field.TypeInfo
		want any
	}{
		{"bool from int", int64(1), field.Bool("b").Descriptor().Info, true},
		{"bool from bytes", []byte("0"), field.Bool("b").Descriptor().Info, false},
		{"bool from text", "true", field.Bool("b").Descriptor().Info, true},
		{"int from bytes", []byte("12"), field.Int("i").Descriptor().Info, int64(12)},
		{"float from text", "NaN", field.Float64("f").Descriptor().Info, nil},
		{"string from bytes", []byte("abc"), field.String("s").Descriptor().Info, "abc"},
		{"json text", `{"a":[1,2]}`, field.JSON("j").Descriptor().Info, map[string]any{"a": []any{1.0, 2.0}}},
		{"uuid bytes", []byte("5f1b3c9e-8f0a-4cde-9b1e-0d9a8c7b6a51"), field.UUID("u").Descriptor().Info, uuid.MustParse("5f1b3c9e-8f0a-4cde-9b1e-0d9a8c7b6a51")},
		{"array text", []byte("{1,2,3}"), field.Array("a", field.TypeInt).Descriptor().Info, []any{int64(1), int64(2), int64(3)}},
		{"string array text", "{a,\"b c\"}", field.Array("a", field.TypeString).Descriptor().Info, []any{"a", "b c"}},
		{"empty array text", "{}", field.Array("a", field.TypeInt).Descriptor().Info, []any{}},
		{"range text", "[1,5)", field.RangeOf("r", field.TypeInt).Descriptor().Info, field.NewRange(int64(1), int64(5))},
		{"unbounded range", "(,5]", field.RangeOf("r", field.TypeInt).Descriptor().Info, field.Range{Upper: int64(5), UpperInclusive: true}},
		{"empty range", "empty", field.RangeOf("r", field.TypeInt).Descriptor().Info, field.Range{Empty: true}},
		{"date", "2024-02-03", field.Date("d").Descriptor().Info, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := field.Deserialize(tt.raw, tt.info, loc)
			require.NoError(t, err)
			if tt.want == nil {
				assert.True(t, math.IsNaN(got.(float64)))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("timestamp layouts", func(t *testing.T) {
		want := time.Date(2013, 1, 1, 1, 1, 1, 0, time.UTC)
		for _, s := range []string{
			"2013-01-01 01:01:01.000 +00:00",
			"2013-01-01 01:01:01+00",
			"2013-01-01T01:01:01Z",
			"2013-01-01 01:01:01",
		} {
			got, err := field.Deserialize(s, field.Time("t").Descriptor().Info, loc)
			require.NoError(t, err, s)
			assert.True(t, want.Equal(got.(time.Time)), s)
		}
	})

	t.Run("naive timestamp honors location", func(t *testing.T) {
		loc := time.FixedZone("UTC-5", -5*60*60)
		got, err := field.Deserialize("2013-01-01 01:01:01", field.Time("t").Descriptor().Info, loc)
		require.NoError(t, err)
		assert.True(t, time.Date(2013, 1, 1, 6, 1, 1, 0, time.UTC).Equal(got.(time.Time)))
	})
}

func TestSerializeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   any
		info *field.TypeInfo
	}{
		{"bad int", "x", field.Int("i").Descriptor().Info},
		{"fractional int", 1.5, field.Int("i").Descriptor().Info},
		{"bad uuid", "nope", field.UUID("u").Descriptor().Info},
		{"bad bool", "maybe", field.Bool("b").Descriptor().Info},
		{"bad time", "yesterday", field.Time("t").Descriptor().Info},
		{"array from scalar", 1, field.Array("a", field.TypeInt).Descriptor().Info},
		{"json channel", make(chan int), field.JSON("j").Descriptor().Info},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := field.Serialize(tt.in, tt.info)
			require.Error(t, err)
			assert.True(t, strata.IsSerializationError(err))
		})
	}
}

func TestRangeString(t *testing.T) {
	assert.Equal(t, "[1,5)", field.NewRange(1, 5).String())
	assert.Equal(t, "(,5]", field.Range{Upper: 5, UpperInclusive: true}.String())
	assert.Equal(t, "empty", field.Range{Empty: true}.String())
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, `["2024-01-01 00:00:00.000+00:00",)`, field.NewRange(ts, nil).String())

	v, err := field.NewRange(1, 5).Value()
	require.NoError(t, err)
	assert.Equal(t, "[1,5)", v)

	_, err = field.ParseRange("1,5", nil, time.UTC)
	assert.Error(t, err)
}
