// Package cleaning repairs raw batches with deterministic policies:
// defaulting, median imputation, dropping corrupt rows, IQR clipping and
// logical clamping. Every repair is recorded as a models.Change.
package cleaning

import (
	"math"
	"strconv"
	"strings"

	"github.com/AngelCh415/adperf/internal/models"
)

// Repair policies, in the order they run.
const (
	PolicyDefault      = "default"
	PolicyMedian       = "median"
	PolicyDropNegative = "drop_negative"
	PolicyDropDate     = "drop_invalid_date"
	PolicyClip         = "clip_iqr"
	PolicyClamp        = "clamp_logical"
)

// Clipped amounts land on a cent grid and counts on integers, so every
// change after the first moves a value by at least one step and the
// clip/clamp loop ends. A sparse column spiralling down from the top of the
// float64 range needs about 1500 passes; maxPasses is a backstop above that.
const (
	amountGrid = 100
	maxPasses  = 4096
)

// Stats counts what the cleaner did.
type Stats struct {
	InputRows       int  `json:"input_rows"`
	OutputRows      int  `json:"output_rows"`
	Defaulted       int  `json:"defaulted"`
	Imputed         int  `json:"imputed"`
	DroppedNegative int  `json:"dropped_negative"`
	DroppedDate     int  `json:"dropped_invalid_date"`
	Clipped         int  `json:"clipped"`
	Clamped         int  `json:"clamped"`
	Passes          int  `json:"passes"`
	Converged       bool `json:"converged"`
}

// Result is the cleaned batch with its change log and the fences and
// medians used to produce it.
type Result struct {
	Batch   models.Batch    `json:"-"`
	Changes []models.Change `json:"changes"`
	Stats   Stats           `json:"stats"`
	// Bounds holds the IQR fences of the first clipping pass, i.e. of the
	// batch as it stood after imputation and row removal.
	Bounds  map[string]Bounds  `json:"bounds"`
	Medians map[string]float64 `json:"medians"`
}

type row struct {
	src int
	rec models.Record
	// drop policy plus the field and cell that triggered it
	drop, dropField, dropCell string
}

type cellKey struct {
	row   int
	field string
}

type cleaner struct {
	res  Result
	seen map[cellKey]int
}

// Clean applies every policy to raw and returns a new batch. The input is
// not modified. Cleaning the output again returns it unchanged.
func Clean(raw models.RawBatch) (Result, error) {
	if err := models.CheckColumns(raw.Columns); err != nil {
		return Result{}, err
	}
	c := &cleaner{
		res: Result{
			Bounds:  map[string]Bounds{},
			Medians: map[string]float64{},
			Stats:   Stats{InputRows: len(raw.Records)},
		},
		seen: map[cellKey]int{},
	}

	rows := c.parse(raw)
	rows = c.dropCorrupt(rows)
	c.clipAndClamp(rows)

	out := make(models.Batch, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.rec)
	}
	c.res.Batch = out
	c.res.Stats.OutputRows = len(out)
	return c.res, nil
}

// parse runs steps 1 and 2: categorical/count defaults, then median
// imputation of continuous fields.
func (c *cleaner) parse(raw models.RawBatch) []row {
	rows := make([]row, len(raw.Records))
	var missing []map[string]string

	for i, r := range raw.Records {
		rows[i].src = i
		rec := &rows[i].rec

		if v, ok := r.Get(models.FieldDate); ok {
			if d, err := models.ParseDate(v); err == nil {
				rec.Date = d
			} else {
				rows[i].drop, rows[i].dropField, rows[i].dropCell = PolicyDropDate, models.FieldDate, r[models.FieldDate]
			}
		} else {
			rows[i].drop, rows[i].dropField, rows[i].dropCell = PolicyDropDate, models.FieldDate, r[models.FieldDate]
		}

		rec.CampaignID = c.text(i, r, models.FieldCampaignID)
		rec.CampaignName = c.text(i, r, models.FieldCampaignName)
		rec.Location = c.text(i, r, models.FieldLocation)

		v, _ := r.Get(models.FieldCampaignType)
		ct, ok := models.ParseCampaignType(v)
		if !ok && v != string(models.CampaignUnknown) {
			c.record(i, models.FieldCampaignType, r[models.FieldCampaignType], string(ct), PolicyDefault)
			c.res.Stats.Defaulted++
		}
		rec.CampaignType = ct

		v, _ = r.Get(models.FieldDevice)
		dev, ok := models.ParseDevice(v)
		if !ok && v != string(models.DeviceUnknown) {
			c.record(i, models.FieldDevice, r[models.FieldDevice], string(dev), PolicyDefault)
			c.res.Stats.Defaulted++
		}
		rec.Device = dev

		for _, f := range models.CountFields {
			n, ok := parseCount(r, f)
			if !ok {
				c.record(i, f, r[f], "0", PolicyDefault)
				c.res.Stats.Defaulted++
			}
			rec.SetCount(f, n)
		}

		var gaps map[string]string
		for _, f := range models.AmountFields {
			if a, ok := parseAmount(r, f); ok {
				rec.SetAmount(f, a)
				continue
			}
			if gaps == nil {
				gaps = map[string]string{}
			}
			gaps[f] = r[f]
		}
		missing = append(missing, gaps)
	}

	for _, f := range models.AmountFields {
		var vals []float64
		for i := range rows {
			if _, gap := missing[i][f]; !gap {
				vals = append(vals, rows[i].rec.Amount(f))
			}
		}
		med := 0.0
		if len(vals) > 0 {
			med = Median(vals)
		}
		imputed := false
		for i := range rows {
			cell, gap := missing[i][f]
			if !gap {
				continue
			}
			rows[i].rec.SetAmount(f, med)
			c.record(i, f, cell, models.FormatAmount(med), PolicyMedian)
			c.res.Stats.Imputed++
			imputed = true
		}
		if imputed {
			c.res.Medians[f] = med
		}
	}
	return rows
}

func (c *cleaner) text(i int, r models.RawRecord, field string) string {
	if v, ok := r.Get(field); ok {
		return v
	}
	c.record(i, field, r[field], models.Unknown, PolicyDefault)
	c.res.Stats.Defaulted++
	return models.Unknown
}

// dropCorrupt runs step 3.
func (c *cleaner) dropCorrupt(rows []row) []row {
	kept := make([]row, 0, len(rows))
	for _, r := range rows {
		if r.drop == "" {
			for _, f := range models.CountFields {
				if n := r.rec.Count(f); n < 0 {
					r.drop, r.dropField, r.dropCell = PolicyDropNegative, f, strconv.FormatInt(n, 10)
					break
				}
			}
		}
		if r.drop == "" {
			for _, f := range models.AmountFields {
				if a := r.rec.Amount(f); a < 0 {
					r.drop, r.dropField, r.dropCell = PolicyDropNegative, f, models.FormatAmount(a)
					break
				}
			}
		}
		switch r.drop {
		case "":
			kept = append(kept, r)
			continue
		case PolicyDropNegative:
			c.res.Stats.DroppedNegative++
		case PolicyDropDate:
			c.res.Stats.DroppedDate++
		}
		c.record(r.src, r.dropField, r.dropCell, "", r.drop)
	}
	return kept
}

// clipAndClamp runs steps 4 and 5 until a pass leaves the batch unchanged.
// A single clip pass is not idempotent under interpolated quartiles, so the
// loop is what makes re-cleaning a no-op. Every pass only pulls values
// inwards, so the first pass's fences still hold for the output.
func (c *cleaner) clipAndClamp(rows []row) {
	for pass := 1; pass <= maxPasses; pass++ {
		c.res.Stats.Passes = pass
		changed := false
		for _, f := range models.PerformanceFields {
			vals := make([]float64, len(rows))
			for i := range rows {
				vals[i] = value(rows[i].rec, f)
			}
			b, ok := IQRBounds(vals)
			if !ok {
				continue
			}
			if pass == 1 {
				c.res.Bounds[f] = b
			}
			for i := range rows {
				if c.clip(&rows[i], f, b) {
					changed = true
				}
			}
		}
		for i := range rows {
			if c.clamp(&rows[i]) {
				changed = true
			}
		}
		if !changed {
			c.res.Stats.Converged = true
			return
		}
	}
}

func (c *cleaner) clip(r *row, field string, b Bounds) bool {
	rec := &r.rec
	if isCount(field) {
		v := rec.Count(field)
		nv := v
		switch {
		case float64(v) > b.Upper:
			nv = int64(math.Floor(b.Upper))
		case float64(v) < b.Lower:
			nv = int64(math.Ceil(b.Lower))
			// never push a dependent count above what it depends on
			if ceil, ok := ceiling(*rec, field); ok && nv > ceil {
				nv = ceil
			}
			if nv < v {
				nv = v
			}
		}
		if nv == v {
			return false
		}
		rec.SetCount(field, nv)
		c.record(r.src, field, strconv.FormatInt(v, 10), strconv.FormatInt(nv, 10), PolicyClip)
		c.res.Stats.Clipped++
		return true
	}
	v := rec.Amount(field)
	nv := clipAmount(v, b)
	if nv == v {
		return false
	}
	rec.SetAmount(field, nv)
	c.record(r.src, field, models.FormatAmount(v), models.FormatAmount(nv), PolicyClip)
	c.res.Stats.Clipped++
	return true
}

// clipAmount pulls v inside b, snapping to the cent grid. When no grid
// point fits between the fences (or the fence overflows) the fence itself
// is used.
func clipAmount(v float64, b Bounds) float64 {
	switch {
	case v > b.Upper:
		nv := math.Floor(b.Upper*amountGrid) / amountGrid
		if nv < b.Lower || nv > b.Upper {
			return b.Upper
		}
		return nv
	case v < b.Lower:
		nv := math.Ceil(b.Lower*amountGrid) / amountGrid
		if nv > b.Upper || nv < b.Lower {
			return b.Lower
		}
		return nv
	}
	return v
}

func (c *cleaner) clamp(r *row) bool {
	changed := false
	for _, f := range []string{models.FieldClicks, models.FieldConversions} {
		ceil, _ := ceiling(r.rec, f)
		if v := r.rec.Count(f); v > ceil {
			r.rec.SetCount(f, ceil)
			c.record(r.src, f, strconv.FormatInt(v, 10), strconv.FormatInt(ceil, 10), PolicyClamp)
			c.res.Stats.Clamped++
			changed = true
		}
	}
	return changed
}

// record keeps one change per cell: the first From, the latest To and every
// policy that touched it.
func (c *cleaner) record(rowIdx int, field, from, to, policy string) {
	k := cellKey{rowIdx, field}
	if i, ok := c.seen[k]; ok {
		ch := &c.res.Changes[i]
		ch.To = to
		if !hasPolicy(ch.Policy, policy) {
			ch.Policy += "," + policy
		}
		return
	}
	c.seen[k] = len(c.res.Changes)
	c.res.Changes = append(c.res.Changes, models.Change{Row: rowIdx, Field: field, From: from, To: to, Policy: policy})
}

func hasPolicy(list, p string) bool {
	for _, s := range strings.Split(list, ",") {
		if s == p {
			return true
		}
	}
	return false
}

func ceiling(r models.Record, field string) (int64, bool) {
	switch field {
	case models.FieldClicks:
		return r.Impressions, true
	case models.FieldConversions:
		return r.Clicks, true
	}
	return 0, false
}

func isCount(field string) bool {
	for _, f := range models.CountFields {
		if f == field {
			return true
		}
	}
	return false
}

func value(r models.Record, field string) float64 {
	if isCount(field) {
		return float64(r.Count(field))
	}
	return r.Amount(field)
}

func parseCount(r models.RawRecord, field string) (int64, bool) {
	v, ok := r.Get(field)
	if !ok {
		return 0, false
	}
	n, err := models.ParseCount(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseAmount(r models.RawRecord, field string) (float64, bool) {
	v, ok := r.Get(field)
	if !ok {
		return 0, false
	}
	f, err := models.ParseAmount(v)
	if err != nil {
		return 0, false
	}
	return f, true
}
