package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adperf/internal/models"
	"github.com/AngelCh415/adperf/internal/timeseries"
)

func days(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func vals(v ...float64) []models.Metric {
	out := make([]models.Metric, len(v))
	for i, x := range v {
		out[i] = models.Defined(x)
	}
	return out
}

func TestBaseline(t *testing.T) {
	st := Baseline(vals(10, 10, 10, 10, 100))
	assert.Equal(t, 5, st.N)
	assert.Equal(t, 28.0, st.Mean)
	assert.Equal(t, 36.0, st.Std)

	z, ok := st.ZScore(100)
	require.True(t, ok)
	assert.Equal(t, 2.0, z)
}

func TestDetectThreshold(t *testing.T) {
	series := vals(10, 10, 10, 10, 100)

	flags := Detect(days(5), series, "revenue", 2.0)
	require.Len(t, flags, 1)
	f := flags[0]
	assert.Equal(t, 100.0, f.Value)
	assert.Equal(t, "revenue", f.Metric)
	assert.True(t, f.Date.Equal(days(5)[4]))
	assert.Equal(t, 2.0, f.ZScore)
	assert.Equal(t, 28.0-72.0, f.Lower)
	assert.Equal(t, 28.0+72.0, f.Upper)

	assert.Empty(t, Detect(days(5), series, "revenue", 2.5))
}

func TestDetectConstantSeries(t *testing.T) {
	assert.Empty(t, Detect(days(4), vals(7, 7, 7, 7), "clicks", 0.1))
}

func TestDetectSkipsUndefined(t *testing.T) {
	series := append(vals(10, 10, 10, 10, 100), models.Undefined())
	flags := Detect(days(6), series, "ctr", 2.0)
	require.Len(t, flags, 1)
	assert.Equal(t, 100.0, flags[0].Value)
	assert.Equal(t, 5, Baseline(series).N)
}

func TestDetectDaily(t *testing.T) {
	var b models.Batch
	for i, rev := range []float64{10, 10, 10, 10, 100} {
		b = append(b, models.Record{Date: days(5)[i], Impressions: 100, Clicks: 5, Cost: rev / 2, Revenue: rev})
	}
	pts, err := timeseries.Daily(b)
	require.NoError(t, err)

	flags, err := DetectDaily(pts, DefaultMetrics, DefaultThreshold)
	require.NoError(t, err)
	metrics := map[string]int{}
	for _, f := range flags {
		metrics[f.Metric]++
	}
	assert.Equal(t, map[string]int{"revenue": 1}, metrics)

	_, err = DetectDaily(pts, []string{"nope"}, 2)
	assert.Error(t, err)
	_, err = DetectDaily(nil, DefaultMetrics, 2)
	assert.ErrorIs(t, err, models.ErrEmptyBatch)
}

func TestStrongest(t *testing.T) {
	in := []models.AnomalyFlag{{Metric: "a", ZScore: 2}, {Metric: "b", ZScore: 3}, {Metric: "c", ZScore: 2}}
	out := Strongest(in)
	assert.Equal(t, []string{"b", "a", "c"}, []string{out[0].Metric, out[1].Metric, out[2].Metric})
	assert.Equal(t, "a", in[0].Metric)
}
