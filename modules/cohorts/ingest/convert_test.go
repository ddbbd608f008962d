package ingest

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInteger(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      any
		want    int64
		present bool
		wantErr bool
	}{
		{in: nil},
		{in: "   "},
		{in: "12345", want: 12345, present: true},
		{in: " 42 ", want: 42, present: true},
		{in: "12.0", want: 12, present: true},
		{in: "1,234", want: 1234, present: true},
		{in: "1.234.567", want: 1234567, present: true},
		{in: "2 500", want: 2500, present: true},
		{in: 7.0, want: 7, present: true},
		{in: int64(9), want: 9, present: true},
		{in: decimal.NewFromInt(31), want: 31, present: true},
		{in: "12.5", present: true, wantErr: true},
		{in: 3.2, present: true, wantErr: true},
		{in: "abc", present: true, wantErr: true},
		{in: "1,234,567", want: 1234567, present: true},
		{in: "1,234.0", want: 1234, present: true},
		{in: "-9,000", want: -9000, present: true},
		{in: "2,5", present: true, wantErr: true},
		{in: "2,0", present: true, wantErr: true},
		{in: "12,34", present: true, wantErr: true},
		{in: "1,2345", present: true, wantErr: true},
		{in: "1.234,5", present: true, wantErr: true},
		{in: "9223372036854775807", want: math.MaxInt64, present: true},
		{in: "-9223372036854775808", want: math.MinInt64, present: true},
		{in: "9223372036854775808", present: true, wantErr: true},
		{in: "18446744073709551617", present: true, wantErr: true},
		{in: "99999999999999999999", present: true, wantErr: true},
		{in: "-9223372036854775809", present: true, wantErr: true},
		{in: "1E30", present: true, wantErr: true},
		{in: 1e19, present: true, wantErr: true},
		{in: math.Pow(2, 63), present: true, wantErr: true},
		{in: -1e19, present: true, wantErr: true},
		{in: decimal.RequireFromString("18446744073709551617"), present: true, wantErr: true},
	}
	for _, tc := range cases {
		got, present, err := parseInteger(tc.in)
		assert.Equal(t, tc.present, present, "%#v", tc.in)
		if tc.wantErr {
			assert.Error(t, err, "%#v", tc.in)
			continue
		}
		require.NoError(t, err, "%#v", tc.in)
		assert.Equal(t, tc.want, got, "%#v", tc.in)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []any{
		"2024-01-15",
		"2024-01-15 08:30:00",
		"2024-01-15T08:30:00Z",
		"15/01/2024",
		"15-01-2024",
		"15.01.2024",
		"2024/01/15",
		"15 de enero de 2024",
		"15-ene-2024",
		"Jan 15, 2024",
		"45306",
		45306.0,
		45306.75,
		time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC),
	} {
		got, present, err := parseDate(in)
		require.NoError(t, err, "%#v", in)
		assert.True(t, present)
		assert.Equal(t, want, got, "%#v", in)
	}
}

func TestParseDate_Rejects(t *testing.T) {
	t.Parallel()

	for _, in := range []any{"not-a-date", "2024", "31/02/2024", "15 de brumario de 2024", -3.0} {
		_, present, err := parseDate(in)
		assert.True(t, present, "%#v", in)
		assert.ErrorIs(t, err, errNotDate, "%#v", in)
	}

	_, present, err := parseDate("")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestExcelSerialDate(t *testing.T) {
	t.Parallel()

	d, ok := excelSerialDate(1)
	require.True(t, ok)
	assert.Equal(t, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), d)

	d, ok = excelSerialDate(61)
	require.True(t, ok)
	assert.Equal(t, time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC), d)

	_, ok = excelSerialDate(0)
	assert.False(t, ok)
}

func TestParseText(t *testing.T) {
	t.Parallel()

	s, ok := parseText("  Centro de Comercio  ", 0)
	assert.True(t, ok)
	assert.Equal(t, "Centro de Comercio", s)

	s, ok = parseText("Tecnología en Análisis", 10)
	assert.True(t, ok)
	assert.Equal(t, "Tecnología", s)

	_, ok = parseText(" ", 10)
	assert.False(t, ok)

	s, _ = parseText(12.0, 0)
	assert.Equal(t, "12", s)
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	for _, in := range []any{"Sí", "SI", "true", "Activo", "1", true, 1.0} {
		assert.True(t, ParseBool(in, false), "%#v", in)
	}
	for _, in := range []any{"No", "FALSE", "inactivo", "0", false, 0} {
		assert.False(t, ParseBool(in, true), "%#v", in)
	}
	assert.True(t, ParseBool("quizás", true))
	assert.False(t, ParseBool(nil, false))
}
