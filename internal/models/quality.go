package models

type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor grades count against the batch size: under 1% is low, under
// 5% medium, anything above high.
func SeverityFor(count, total int) Severity {
	if count == 0 || total == 0 {
		return SeverityNone
	}
	pct := float64(count) / float64(total) * 100
	switch {
	case pct < 1:
		return SeverityLow
	case pct < 5:
		return SeverityMedium
	}
	return SeverityHigh
}

// QualityReport describes a raw batch. Per-field maps always carry every
// schema column so an absent key never means "not checked".
type QualityReport struct {
	TotalRecords            int            `json:"total_records"`
	TotalColumns            int            `json:"total_columns"`
	DateFrom                string         `json:"date_from,omitempty"`
	DateTo                  string         `json:"date_to,omitempty"`
	MissingValues           map[string]int `json:"missing_values"`
	TypeMismatches          map[string]int `json:"type_mismatches"`
	NegativeValues          map[string]int `json:"negative_values"`
	DuplicateRecords        int            `json:"duplicate_records"`
	ClicksExceedImpressions int            `json:"clicks_exceed_impressions"`
	ConversionsExceedClicks int            `json:"conversions_exceed_clicks"`
	UniqueCampaigns         int            `json:"unique_campaigns"`
	UniqueDevices           int            `json:"unique_devices"`
	UniqueLocations         int            `json:"unique_locations"`
}

func NewQualityReport() QualityReport {
	q := QualityReport{
		MissingValues:  make(map[string]int, len(Columns)),
		TypeMismatches: make(map[string]int, len(Columns)),
		NegativeValues: make(map[string]int, len(CountFields)+len(AmountFields)),
	}
	for _, c := range Columns {
		q.MissingValues[c] = 0
		q.TypeMismatches[c] = 0
	}
	for _, c := range CountFields {
		q.NegativeValues[c] = 0
	}
	for _, c := range AmountFields {
		q.NegativeValues[c] = 0
	}
	return q
}

// Check is one named quality count with its severity.
type Check struct {
	Name     string   `json:"name"`
	Count    int      `json:"count"`
	Severity Severity `json:"severity"`
}

// Checks flattens the report into named checks in schema order.
func (q QualityReport) Checks() []Check {
	var out []Check
	add := func(name string, n int) {
		out = append(out, Check{Name: name, Count: n, Severity: SeverityFor(n, q.TotalRecords)})
	}
	for _, c := range Columns {
		add("missing."+c, q.MissingValues[c])
	}
	for _, c := range Columns {
		add("type_mismatch."+c, q.TypeMismatches[c])
	}
	for _, c := range Columns {
		if n, ok := q.NegativeValues[c]; ok {
			add("negative."+c, n)
		}
	}
	add("duplicate_records", q.DuplicateRecords)
	add("clicks_exceed_impressions", q.ClicksExceedImpressions)
	add("conversions_exceed_clicks", q.ConversionsExceedClicks)
	return out
}

// Issues sums every failing check.
func (q QualityReport) Issues() int {
	n := 0
	for _, c := range q.Checks() {
		n += c.Count
	}
	return n
}
