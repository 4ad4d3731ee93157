package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adperf/internal/models"
)

const sampleCSV = "\ufeffdate,campaign_id,campaign_name,campaign_budget,campaign_type,device,location,impressions,clicks,conversions,cost,revenue\n" +
	"2024-01-01,c1,Brand,1000,Search,Mobile,Lima,1000,50,5,100,200\n" +
	"2024-01-02,c1,Brand,1000,Search,Mobile,Lima,,NaN,5,100\n"

func TestReadCSV(t *testing.T) {
	raw, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, models.Columns, raw.Columns)
	require.Equal(t, 2, raw.Len())
	assert.Equal(t, "1000", raw.Records[0]["impressions"])

	r := raw.Records[1]
	_, ok := r.Get("impressions")
	assert.False(t, ok)
	_, ok = r.Get("clicks")
	assert.False(t, ok)
	_, present := r["revenue"]
	assert.False(t, present, "short row leaves trailing cells absent")
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	var se *models.SchemaError
	assert.ErrorAs(t, err, &se)
}

func TestReadNDJSON(t *testing.T) {
	body := `{"date":"2024-01-01","campaign_id":"c1","impressions":1000,"cost":12.5,"device":null}` + "\n\n" +
		`{"date":"2024-01-02","campaign_id":"c2","clicks":3}` + "\n"
	raw, err := ReadNDJSON(strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, 2, raw.Len())
	assert.Equal(t, "1000", raw.Records[0]["impressions"])
	assert.Equal(t, "12.5", raw.Records[0]["cost"])
	assert.True(t, models.IsMissing(raw.Records[0]["device"]))
	assert.Contains(t, raw.Columns, "clicks")
	assert.Len(t, raw.Columns, 6)

	_, err = ReadNDJSON(strings.NewReader("{nope"))
	assert.Error(t, err)

	empty, err := ReadNDJSON(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, models.Columns, empty.Columns)
}

func TestDecodePicksFormat(t *testing.T) {
	raw, err := Decode("application/x-ndjson; charset=utf-8", strings.NewReader(`{"date":"2024-01-01"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"date"}, raw.Columns)

	raw, err = Decode("", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, raw.Len())
}

func TestWriteCSV(t *testing.T) {
	e := models.Enriched{
		Record: models.Record{
			Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), CampaignID: "c1", CampaignName: "Brand",
			CampaignType: models.CampaignSearch, Device: models.DeviceMobile, Location: "Lima", Cost: 1.5,
		},
		DayOfWeek: "Monday", Month: 1, Week: 1, CTR: models.Undefined(), CTRCategory: "Low", ROAS: models.Defined(2),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []models.Enriched{e}))

	out := buf.String()
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	header, row := rows[0], rows[1]
	cell := func(name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("no column %s", name)
		return ""
	}
	assert.Equal(t, "2024-01-01", cell("date"))
	assert.Equal(t, "1.5", cell("cost"))
	assert.Equal(t, "", cell("ctr"))
	assert.Equal(t, "2", cell("roas"))
	assert.Equal(t, "Monday", cell("day_of_week"))

	// the schema part reads back as a batch
	raw, err := ReadCSV(strings.NewReader(out))
	require.NoError(t, err)
	require.NoError(t, models.CheckColumns(raw.Columns))
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	raw, err := Fetch(context.Background(), NewHTTPClient(2*time.Second), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, raw.Len())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchDoesNotRetry404(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), NewHTTPClient(2*time.Second), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), NewHTTPClient(2*time.Second), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(MaxRetries+1), atomic.LoadInt32(&calls))
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := Fetch(ctx, NewHTTPClient(2*time.Second), srv.URL)
	assert.Error(t, err)
}
