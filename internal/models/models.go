package models

import (
	"strconv"
	"time"
)

const DateLayout = "2006-01-02"

// Column names of the exchange format.
const (
	FieldDate           = "date"
	FieldCampaignID     = "campaign_id"
	FieldCampaignName   = "campaign_name"
	FieldCampaignBudget = "campaign_budget"
	FieldCampaignType   = "campaign_type"
	FieldDevice         = "device"
	FieldLocation       = "location"
	FieldImpressions    = "impressions"
	FieldClicks         = "clicks"
	FieldConversions    = "conversions"
	FieldCost           = "cost"
	FieldRevenue        = "revenue"
)

// Columns is the required schema in canonical order.
var Columns = []string{
	FieldDate, FieldCampaignID, FieldCampaignName, FieldCampaignBudget, FieldCampaignType,
	FieldDevice, FieldLocation, FieldImpressions, FieldClicks, FieldConversions, FieldCost, FieldRevenue,
}

// CountFields hold non-negative integers.
var CountFields = []string{FieldImpressions, FieldClicks, FieldConversions}

// AmountFields hold non-negative reals.
var AmountFields = []string{FieldCampaignBudget, FieldCost, FieldRevenue}

// PerformanceFields are the fields subject to outlier clipping.
var PerformanceFields = []string{FieldImpressions, FieldClicks, FieldConversions, FieldCost, FieldRevenue}

const Unknown = "Unknown"

type CampaignType string

const (
	CampaignSearch  CampaignType = "Search"
	CampaignDisplay CampaignType = "Display"
	CampaignUnknown CampaignType = Unknown
)

// ParseCampaignType reports whether s is a known campaign type. Anything
// else maps to CampaignUnknown.
func ParseCampaignType(s string) (CampaignType, bool) {
	switch CampaignType(s) {
	case CampaignSearch, CampaignDisplay:
		return CampaignType(s), true
	}
	return CampaignUnknown, false
}

type Device string

const (
	DeviceMobile  Device = "Mobile"
	DeviceDesktop Device = "Desktop"
	DeviceTablet  Device = "Tablet"
	DeviceUnknown Device = Unknown
)

func ParseDevice(s string) (Device, bool) {
	switch Device(s) {
	case DeviceMobile, DeviceDesktop, DeviceTablet:
		return Device(s), true
	}
	return DeviceUnknown, false
}

// Record is one validated observation.
type Record struct {
	Date           time.Time    `json:"date"`
	CampaignID     string       `json:"campaign_id"`
	CampaignName   string       `json:"campaign_name"`
	CampaignBudget float64      `json:"campaign_budget"`
	CampaignType   CampaignType `json:"campaign_type"`
	Device         Device       `json:"device"`
	Location       string       `json:"location"`
	Impressions    int64        `json:"impressions"`
	Clicks         int64        `json:"clicks"`
	Conversions    int64        `json:"conversions"`
	Cost           float64      `json:"cost"`
	Revenue        float64      `json:"revenue"`
}

// Count returns the value of a count field.
func (r Record) Count(field string) int64 {
	switch field {
	case FieldImpressions:
		return r.Impressions
	case FieldClicks:
		return r.Clicks
	case FieldConversions:
		return r.Conversions
	}
	return 0
}

// SetCount sets a count field; unknown names are ignored.
func (r *Record) SetCount(field string, v int64) {
	switch field {
	case FieldImpressions:
		r.Impressions = v
	case FieldClicks:
		r.Clicks = v
	case FieldConversions:
		r.Conversions = v
	}
}

// Amount returns the value of a currency field.
func (r Record) Amount(field string) float64 {
	switch field {
	case FieldCampaignBudget:
		return r.CampaignBudget
	case FieldCost:
		return r.Cost
	case FieldRevenue:
		return r.Revenue
	}
	return 0
}

func (r *Record) SetAmount(field string, v float64) {
	switch field {
	case FieldCampaignBudget:
		r.CampaignBudget = v
	case FieldCost:
		r.Cost = v
	case FieldRevenue:
		r.Revenue = v
	}
}

// Cells renders the record in exchange form.
func (r Record) Cells() RawRecord {
	return RawRecord{
		FieldDate:           r.Date.Format(DateLayout),
		FieldCampaignID:     r.CampaignID,
		FieldCampaignName:   r.CampaignName,
		FieldCampaignBudget: FormatAmount(r.CampaignBudget),
		FieldCampaignType:   string(r.CampaignType),
		FieldDevice:         string(r.Device),
		FieldLocation:       r.Location,
		FieldImpressions:    strconv.FormatInt(r.Impressions, 10),
		FieldClicks:         strconv.FormatInt(r.Clicks, 10),
		FieldConversions:    strconv.FormatInt(r.Conversions, 10),
		FieldCost:           FormatAmount(r.Cost),
		FieldRevenue:        FormatAmount(r.Revenue),
	}
}

// Batch is an ordered collection of records.
type Batch []Record

// Raw converts the batch back to exchange form without loss.
func (b Batch) Raw() RawBatch {
	out := RawBatch{Columns: append([]string(nil), Columns...), Records: make([]RawRecord, 0, len(b))}
	for _, r := range b {
		out.Records = append(out.Records, r.Cells())
	}
	return out
}

// FormatAmount uses the shortest representation that parses back to v.
func FormatAmount(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
