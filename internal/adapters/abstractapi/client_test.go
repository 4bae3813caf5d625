package abstractapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `[
	{
		"name": "New Year's Day",
		"name_local": "",
		"language": "",
		"description": "National holiday",
		"country": "AU",
		"location": "Australia",
		"type": "National",
		"date": "1/1/2023",
		"date_year": "2023",
		"date_month": "1",
		"date_day": "1",
		"week_day": "Sunday"
	},
	{
		"name": "Bank Holiday",
		"name_local": "",
		"language": "",
		"description": "Bank holiday",
		"country": "AU",
		"location": "Australia - New South Wales",
		"type": "Local holiday",
		"date": "1/1/2023",
		"date_year": "2023",
		"date_month": "1",
		"date_day": "1",
		"week_day": "Sunday"
	}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New("test-key", "AU", time.UTC, nil)
	client.baseURL = server.URL + "/"
	return client, server
}

func TestHolidaysParsesResponse(t *testing.T) {
	var gotQuery atomic.Value
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, samplePayload)
	})

	date := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	list, err := client.Holidays(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "New Year's Day", list[0].Name)
	assert.Equal(t, "National", list[0].Type)
	assert.Equal(t, time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), list[0].UtcStart)
	assert.Equal(t, []string{"Australia - New South Wales"}, list[1].Locations)

	query := gotQuery.Load().(url.Values)
	assert.Equal(t, "test-key", query.Get("api_key"))
	assert.Equal(t, "AU", query.Get("country"))
	assert.Equal(t, "2023", query.Get("year"))
	assert.Equal(t, "1", query.Get("month"))
	assert.Equal(t, "1", query.Get("day"))
}

func TestHolidaysEmptyResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	})

	list, err := client.Holidays(context.Background(), time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHolidaysRetriesServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "[]")
	})

	_, err := client.Holidays(context.Background(), time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHolidaysReportsPersistentFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Holidays(context.Background(), time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestHolidaysSkipsUnparseableDates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name": "Broken", "date": "not-a-date"}]`)
	})

	list, err := client.Holidays(context.Background(), time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, list)
}
