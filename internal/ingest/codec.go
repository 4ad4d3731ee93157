package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/AngelCh415/adperf/internal/models"
)

// Decode picks the reader from the content type: anything mentioning json
// is JSON-lines, everything else is CSV.
func Decode(contentType string, r io.Reader) (models.RawBatch, error) {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return ReadNDJSON(r)
	}
	return ReadCSV(r)
}

// ReadCSV reads a header row plus data rows. Short rows leave their
// trailing cells missing.
func ReadCSV(r io.Reader) (models.RawBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return models.RawBatch{}, &models.SchemaError{Missing: append([]string(nil), models.Columns...)}
	}
	if err != nil {
		return models.RawBatch{}, fmt.Errorf("read csv header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	out := models.RawBatch{Columns: header}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.RawBatch{}, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rec := make(models.RawRecord, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

// ReadNDJSON reads one JSON object per line. Declared columns are the keys
// seen across all rows, in first-seen order with each row's keys sorted; an
// empty stream declares the full schema.
func ReadNDJSON(r io.Reader) (models.RawBatch, error) {
	var out models.RawBatch
	seen := map[string]bool{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return models.RawBatch{}, fmt.Errorf("read ndjson line %d: %w", line, err)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rec := make(models.RawRecord, len(obj))
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				out.Columns = append(out.Columns, k)
			}
			rec[k] = cell(obj[k])
		}
		out.Records = append(out.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return models.RawBatch{}, fmt.Errorf("read ndjson: %w", err)
	}
	if len(out.Records) == 0 {
		out.Columns = append([]string(nil), models.Columns...)
	}
	return out, nil
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// DerivedColumns follow the schema columns in WriteCSV output.
var DerivedColumns = []string{
	"day_of_week", "month", "week", "is_weekend", "ctr", "ctr_category",
	"roas", "roas_category", "cost_per_impression", "revenue_per_click",
}

// WriteCSV writes enriched records in the exchange format. Undefined
// metrics are written as empty cells.
func WriteCSV(w io.Writer, recs []models.Enriched) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), models.Columns...), DerivedColumns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range recs {
		cells := e.Cells()
		row := make([]string, 0, len(header))
		for _, c := range models.Columns {
			row = append(row, cells[c])
		}
		row = append(row,
			e.DayOfWeek,
			strconv.Itoa(e.Month),
			strconv.Itoa(e.Week),
			strconv.FormatBool(e.IsWeekend),
			metricCell(e.CTR),
			e.CTRCategory,
			metricCell(e.ROAS),
			e.ROASCategory,
			metricCell(e.CostPerImpression),
			metricCell(e.RevenuePerClick),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func metricCell(m models.Metric) string {
	if v, ok := m.Value(); ok {
		return models.FormatAmount(v)
	}
	return ""
}
