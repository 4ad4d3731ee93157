package metrics

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/AngelCh415/adperf/internal/models"
)

// Segments holds one table per dimension.
type Segments struct {
	Campaign []models.SegmentAggregate `json:"campaign"`
	Device   []models.SegmentAggregate `json:"device"`
	Location []models.SegmentAggregate `json:"location"`
}

func (s Segments) Get(d models.Dimension) []models.SegmentAggregate {
	switch d {
	case models.DimensionCampaign:
		return s.Campaign
	case models.DimensionDevice:
		return s.Device
	case models.DimensionLocation:
		return s.Location
	}
	return nil
}

func keyOf(r models.Record, d models.Dimension) (key, label string) {
	switch d {
	case models.DimensionCampaign:
		return r.CampaignID, r.CampaignName
	case models.DimensionDevice:
		return string(r.Device), string(r.Device)
	default:
		return r.Location, r.Location
	}
}

// Segment groups b by one dimension. Rows come out in the order their key
// was first seen in b.
func Segment(b models.Batch, d models.Dimension) ([]models.SegmentAggregate, error) {
	if len(b) == 0 {
		return nil, models.ErrEmptyBatch
	}
	switch d {
	case models.DimensionCampaign, models.DimensionDevice, models.DimensionLocation:
	default:
		return nil, fmt.Errorf("segment: unknown dimension %q", d)
	}

	idx := map[string]int{}
	var rows []models.SegmentAggregate
	for _, r := range b {
		k, label := keyOf(r, d)
		i, ok := idx[k]
		if !ok {
			i = len(rows)
			idx[k] = i
			rows = append(rows, models.SegmentAggregate{Dimension: d, Key: k, Label: label})
		}
		rows[i].Totals.Add(r)
	}
	for i := range rows {
		rows[i].KPIs = Compute(rows[i].Totals)
	}
	return rows, nil
}

// SegmentAll builds the three segment tables concurrently; they share
// nothing but the read-only batch.
func SegmentAll(ctx context.Context, b models.Batch) (Segments, error) {
	if len(b) == 0 {
		return Segments{}, models.ErrEmptyBatch
	}
	var s Segments
	g, ctx := errgroup.WithContext(ctx)
	for _, d := range models.Dimensions {
		d := d
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := Segment(b, d)
			if err != nil {
				return err
			}
			switch d {
			case models.DimensionCampaign:
				s.Campaign = rows
			case models.DimensionDevice:
				s.Device = rows
			case models.DimensionLocation:
				s.Location = rows
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Segments{}, err
	}
	return s, nil
}

// ByRevenue returns a copy of rows ordered by revenue, highest first. Equal
// revenue keeps the input order.
func ByRevenue(rows []models.SegmentAggregate) []models.SegmentAggregate {
	out := append([]models.SegmentAggregate(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Totals.Revenue.GreaterThan(out[j].Totals.Revenue)
	})
	return out
}

// Paginate slices rows for the API.
func Paginate[T any](rows []T, limit, offset int) []T {
	limit, offset = clampLimitOffset(limit, offset, len(rows))
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 { // hard page cap
		limit = 1000
	}
	if offset > n {
		offset = n
	}
	return limit, offset
}
