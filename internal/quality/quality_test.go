package quality

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adperf/internal/models"
)

func base() models.RawRecord {
	return models.RawRecord{
		"date": "2024-01-01", "campaign_id": "c1", "campaign_name": "Brand", "campaign_budget": "1000",
		"campaign_type": "Search", "device": "Mobile", "location": "Lima",
		"impressions": "1000", "clicks": "50", "conversions": "5", "cost": "100", "revenue": "200",
	}
}

func with(kv ...string) models.RawRecord {
	r := base()
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i]] = kv[i+1]
	}
	return r
}

func TestAssessCountsEveryProblem(t *testing.T) {
	raw := models.NewRawBatch(
		base(),
		base(),
		with("date", "2024-01-02", "clicks", "abc"),
		with("date", "2024-01-03", "impressions", "-5"),
		with("date", "2024-01-04", "device", "Phone", "cost", ""),
		with("date", "2024-01-05", "clicks", "2000"),
		with("date", "2024-01-06", "conversions", "60"),
	)

	q, err := Assess(raw)
	require.NoError(t, err)

	assert.Equal(t, 7, q.TotalRecords)
	assert.Equal(t, len(models.Columns), q.TotalColumns)
	assert.Equal(t, 1, q.DuplicateRecords)
	assert.Equal(t, 1, q.TypeMismatches["clicks"])
	assert.Equal(t, 1, q.TypeMismatches["device"])
	assert.Equal(t, 0, q.TypeMismatches["cost"], "missing is not a mismatch")
	assert.Equal(t, 1, q.MissingValues["cost"])
	assert.Equal(t, 1, q.NegativeValues["impressions"])
	assert.Equal(t, 2, q.ClicksExceedImpressions)
	assert.Equal(t, 1, q.ConversionsExceedClicks)
	assert.Equal(t, "2024-01-01", q.DateFrom)
	assert.Equal(t, "2024-01-06", q.DateTo)
	assert.Equal(t, 1, q.UniqueCampaigns)
	assert.Equal(t, 2, q.UniqueDevices)
	assert.Equal(t, 1, q.UniqueLocations)
}

func TestAssessReportsEveryColumn(t *testing.T) {
	q, err := Assess(models.NewRawBatch(base()))
	require.NoError(t, err)
	for _, c := range models.Columns {
		n, ok := q.MissingValues[c]
		assert.True(t, ok, c)
		assert.Zero(t, n, c)
		_, ok = q.TypeMismatches[c]
		assert.True(t, ok, c)
	}
	assert.Zero(t, q.Issues())
}

func TestAssessEmptyBatch(t *testing.T) {
	q, err := Assess(models.NewRawBatch())
	require.NoError(t, err)
	assert.Zero(t, q.TotalRecords)
	assert.Empty(t, q.DateFrom)
	assert.Zero(t, q.Issues())
}

func TestAssessMissingColumn(t *testing.T) {
	raw := models.RawBatch{Columns: models.Columns[1:], Records: []models.RawRecord{base()}}
	_, err := Assess(raw)
	var se *models.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"date"}, se.Missing)
}

func TestAssessDoesNotModifyInput(t *testing.T) {
	r := with("cost", "nan", "device", "x")
	raw := models.NewRawBatch(r)
	_, err := Assess(raw)
	require.NoError(t, err)
	assert.Equal(t, "nan", raw.Records[0]["cost"])
	assert.Equal(t, "x", raw.Records[0]["device"])
}

func TestUnknownLabelIsAMismatch(t *testing.T) {
	q, err := Assess(models.NewRawBatch(with("campaign_type", "Unknown")))
	require.NoError(t, err)
	assert.Equal(t, 1, q.TypeMismatches["campaign_type"])
}
