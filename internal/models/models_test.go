package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricJSON(t *testing.T) {
	b, err := json.Marshal(KPISet{CTR: Defined(5), CPC: Undefined()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ctr":5,"cpc":null,"cpa":null,"roas":null,"conversion_rate":null}`, string(b))

	var k KPISet
	require.NoError(t, json.Unmarshal(b, &k))
	assert.True(t, k.CTR.IsDefined())
	assert.False(t, k.CPC.IsDefined())
}

func TestMetricNeverHoldsNonFinite(t *testing.T) {
	assert.False(t, Defined(math.NaN()).IsDefined())
	assert.False(t, Defined(math.Inf(1)).IsDefined())
	assert.False(t, Ratio(1, 0).IsDefined())
	assert.Equal(t, 2.5, Ratio(5, 2).Or(-1))
	assert.Equal(t, -1.0, Undefined().Or(-1))
	assert.Equal(t, "undefined", Undefined().Scale(3).String())
	assert.Equal(t, "1.23", Defined(1.23456).Round(2).String())
}

func TestIsMissing(t *testing.T) {
	for _, s := range []string{"", "  ", "NaN", "null", "NA", "n/a", "None", "<NA>", "NaT"} {
		assert.True(t, IsMissing(s), "%q", s)
	}
	for _, s := range []string{"0", "Unknown", "x"} {
		assert.False(t, IsMissing(s), "%q", s)
	}
}

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12", 12, true},
		{"-3", -3, true},
		{"12.0", 12, true},
		{"12.5", 0, false},
		{"abc", 0, false},
		{"inf", 0, false},
	}
	for _, c := range cases {
		n, err := ParseCount(c.in)
		if !c.ok {
			assert.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, n, c.in)
	}
}

func TestParseAmountRejectsNonFinite(t *testing.T) {
	_, err := ParseAmount("NaN")
	assert.Error(t, err)
	f, err := ParseAmount("1.5")
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-01-05", "2024-01-05T13:04:05Z", "2024-01-05 23:59:59"} {
		d, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(d), s)
	}
	_, err := ParseDate("05/01/2024")
	assert.Error(t, err)
}

func TestCheckColumns(t *testing.T) {
	require.NoError(t, CheckColumns(Columns))

	cols := append([]string{FieldDate, FieldDate}, Columns[2:]...)
	err := CheckColumns(cols)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{FieldCampaignID}, se.Missing)
	assert.Equal(t, []string{FieldDate}, se.Duplicated)
	assert.Contains(t, err.Error(), "missing columns: campaign_id")
}

func TestRecordCellsRoundTrip(t *testing.T) {
	r := Record{
		Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), CampaignID: "c1", CampaignName: "Spring",
		CampaignBudget: 1000, CampaignType: CampaignSearch, Device: DeviceMobile, Location: "Lima",
		Impressions: 1000, Clicks: 50, Conversions: 5, Cost: 0.1 + 0.2, Revenue: 120.5,
	}
	cells := r.Cells()
	assert.Equal(t, "2024-03-01", cells[FieldDate])
	f, err := ParseAmount(cells[FieldCost])
	require.NoError(t, err)
	assert.Equal(t, r.Cost, f)

	raw := Batch{r}.Raw()
	assert.Equal(t, Columns, raw.Columns)
	assert.Equal(t, 1, raw.Len())
}

func TestDuplicateKeyIgnoresMissingTokenSpelling(t *testing.T) {
	a := RawRecord{FieldDate: "2024-01-01", FieldLocation: "NaN"}
	b := RawRecord{FieldDate: "2024-01-01"}
	assert.Equal(t, a.Key(), b.Key())
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityNone, SeverityFor(0, 100))
	assert.Equal(t, SeverityNone, SeverityFor(0, 0))
	assert.Equal(t, SeverityLow, SeverityFor(1, 1000))
	assert.Equal(t, SeverityMedium, SeverityFor(1, 50))
	assert.Equal(t, SeverityHigh, SeverityFor(5, 100))
}

func TestTotalsAreOrderIndependent(t *testing.T) {
	rs := []Record{{Cost: 0.1}, {Cost: 0.2}, {Cost: 0.3}}
	var a, b Totals
	for _, r := range rs {
		a.Add(r)
	}
	for i := len(rs) - 1; i >= 0; i-- {
		b.Add(rs[i])
	}
	assert.True(t, a.Cost.Equal(b.Cost))
	assert.True(t, a.Cost.Equal(decimal.RequireFromString("0.6")))
}
