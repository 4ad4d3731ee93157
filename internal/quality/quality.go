// Package quality inspects raw batches and reports what is wrong with them.
// It never modifies the batch and never fails on bad values; only a broken
// schema is an error.
package quality

import (
	"time"

	"github.com/AngelCh415/adperf/internal/models"
)

// Assess builds the quality report of a raw batch. An empty batch with a
// valid schema yields an all-zero report.
func Assess(raw models.RawBatch) (models.QualityReport, error) {
	if err := models.CheckColumns(raw.Columns); err != nil {
		return models.QualityReport{}, err
	}
	q := models.NewQualityReport()
	q.TotalRecords = len(raw.Records)
	q.TotalColumns = len(raw.Columns)

	seen := make(map[string]struct{}, len(raw.Records))
	campaigns := map[string]struct{}{}
	devices := map[string]struct{}{}
	locations := map[string]struct{}{}
	var from, to time.Time

	for _, r := range raw.Records {
		k := r.Key()
		if _, dup := seen[k]; dup {
			q.DuplicateRecords++
		} else {
			seen[k] = struct{}{}
		}

		for _, c := range models.Columns {
			v, ok := r.Get(c)
			if !ok {
				q.MissingValues[c]++
				continue
			}
			if !coercible(c, v) {
				q.TypeMismatches[c]++
			}
		}

		for _, c := range models.CountFields {
			if n, ok := count(r, c); ok && n < 0 {
				q.NegativeValues[c]++
			}
		}
		for _, c := range models.AmountFields {
			if f, ok := amount(r, c); ok && f < 0 {
				q.NegativeValues[c]++
			}
		}

		imps, iok := count(r, models.FieldImpressions)
		clicks, cok := count(r, models.FieldClicks)
		convs, vok := count(r, models.FieldConversions)
		if iok && cok && clicks > imps {
			q.ClicksExceedImpressions++
		}
		if cok && vok && convs > clicks {
			q.ConversionsExceedClicks++
		}

		if v, ok := r.Get(models.FieldCampaignID); ok {
			campaigns[v] = struct{}{}
		}
		if v, ok := r.Get(models.FieldDevice); ok {
			devices[v] = struct{}{}
		}
		if v, ok := r.Get(models.FieldLocation); ok {
			locations[v] = struct{}{}
		}
		if v, ok := r.Get(models.FieldDate); ok {
			if d, err := models.ParseDate(v); err == nil {
				if from.IsZero() || d.Before(from) {
					from = d
				}
				if to.IsZero() || d.After(to) {
					to = d
				}
			}
		}
	}

	q.UniqueCampaigns = len(campaigns)
	q.UniqueDevices = len(devices)
	q.UniqueLocations = len(locations)
	if !from.IsZero() {
		q.DateFrom = from.Format(models.DateLayout)
		q.DateTo = to.Format(models.DateLayout)
	}
	return q, nil
}

func coercible(field, v string) bool {
	var err error
	switch field {
	case models.FieldDate:
		_, err = models.ParseDate(v)
	case models.FieldImpressions, models.FieldClicks, models.FieldConversions:
		_, err = models.ParseCount(v)
	case models.FieldCampaignBudget, models.FieldCost, models.FieldRevenue:
		_, err = models.ParseAmount(v)
	case models.FieldCampaignType:
		_, ok := models.ParseCampaignType(v)
		return ok
	case models.FieldDevice:
		_, ok := models.ParseDevice(v)
		return ok
	}
	return err == nil
}

func count(r models.RawRecord, field string) (int64, bool) {
	v, ok := r.Get(field)
	if !ok {
		return 0, false
	}
	n, err := models.ParseCount(v)
	return n, err == nil
}

func amount(r models.RawRecord, field string) (float64, bool) {
	v, ok := r.Get(field)
	if !ok {
		return 0, false
	}
	f, err := models.ParseAmount(v)
	return f, err == nil
}
