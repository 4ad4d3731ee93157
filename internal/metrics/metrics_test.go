package metrics

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adperf/internal/models"
)

func batch() models.Batch {
	return models.Batch{
		{CampaignID: "c1", CampaignName: "Brand", Device: models.DeviceMobile, Location: "Lima",
			Impressions: 1000, Clicks: 40, Conversions: 4, Cost: 10.1, Revenue: 30.3},
		{CampaignID: "c2", CampaignName: "Promo", Device: models.DeviceDesktop, Location: "Quito",
			Impressions: 500, Clicks: 25, Conversions: 0, Cost: 20.2, Revenue: 10.1},
		{CampaignID: "c1", CampaignName: "Brand", Device: models.DeviceDesktop, Location: "Lima",
			Impressions: 500, Clicks: 35, Conversions: 6, Cost: 0.3, Revenue: 0.7},
	}
}

func TestOverall(t *testing.T) {
	s, err := Overall(batch())
	require.NoError(t, err)
	assert.Equal(t, int64(2000), s.Totals.Impressions)
	assert.Equal(t, int64(100), s.Totals.Clicks)
	assert.Equal(t, int64(10), s.Totals.Conversions)
	assert.True(t, s.Totals.Cost.Equal(decimal.RequireFromString("30.6")))
	assert.Equal(t, models.Defined(5), s.KPIs.CTR)
	assert.Equal(t, models.Defined(10), s.KPIs.ConversionRate)
	assert.InDelta(t, 0.306, s.KPIs.CPC.Or(0), 1e-12)
	assert.InDelta(t, 3.06, s.KPIs.CPA.Or(0), 1e-12)
}

func TestOverallEmpty(t *testing.T) {
	_, err := Overall(nil)
	assert.ErrorIs(t, err, models.ErrEmptyBatch)
}

func TestComputeZeroDenominators(t *testing.T) {
	k := Compute(models.Totals{})
	for _, name := range models.KPINames {
		m, ok := k.Get(name)
		require.True(t, ok)
		assert.False(t, m.IsDefined(), name)
	}
	k = Compute(models.Totals{Impressions: 10, Cost: decimal.NewFromInt(5)})
	assert.Equal(t, models.Defined(0), k.CTR)
	assert.False(t, k.CPC.IsDefined())
	assert.Equal(t, models.Defined(0), k.ROAS)
}

func TestSegmentConservation(t *testing.T) {
	b := batch()
	overall := Sum(b)
	segs, err := SegmentAll(context.Background(), b)
	require.NoError(t, err)

	for _, d := range models.Dimensions {
		var t2 models.Totals
		for _, row := range segs.Get(d) {
			t2 = t2.Merge(row.Totals)
		}
		assert.Equal(t, overall.Rows, t2.Rows, d)
		assert.Equal(t, overall.Impressions, t2.Impressions, d)
		assert.Equal(t, overall.Clicks, t2.Clicks, d)
		assert.Equal(t, overall.Conversions, t2.Conversions, d)
		assert.True(t, overall.Cost.Equal(t2.Cost), d)
		assert.True(t, overall.Revenue.Equal(t2.Revenue), d)
	}
}

func TestSegmentOrderAndLabels(t *testing.T) {
	rows, err := Segment(batch(), models.DimensionCampaign)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c1", rows[0].Key)
	assert.Equal(t, "Brand", rows[0].Label)
	assert.Equal(t, 2, rows[0].Totals.Rows)
	assert.Equal(t, "c2", rows[1].Key)

	// Promo has clicks but no conversions.
	assert.False(t, rows[1].KPIs.CPA.IsDefined())
	assert.Equal(t, models.Defined(0), rows[1].KPIs.ConversionRate)

	devs, err := Segment(batch(), models.DimensionDevice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mobile", "Desktop"}, []string{devs[0].Key, devs[1].Key})
}

func TestSegmentErrors(t *testing.T) {
	_, err := Segment(nil, models.DimensionDevice)
	assert.ErrorIs(t, err, models.ErrEmptyBatch)
	_, err = Segment(batch(), models.Dimension("weekday"))
	assert.Error(t, err)
}

func TestByRevenue(t *testing.T) {
	rows, err := Segment(batch(), models.DimensionLocation)
	require.NoError(t, err)
	ranked := ByRevenue(rows)
	assert.Equal(t, "Lima", ranked[0].Key)
	assert.Equal(t, "Quito", ranked[1].Key)
	assert.Equal(t, "Lima", rows[0].Key, "input untouched")
}

func TestPaginate(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Paginate(rows, 0, 0))
	assert.Equal(t, []int{3, 4}, Paginate(rows, 2, 2))
	assert.Equal(t, []int{5}, Paginate(rows, 10, 4))
	assert.Equal(t, []int{}, Paginate(rows, 2, 9))
	assert.Equal(t, []int{1}, Paginate(rows, 1, -3))
}
