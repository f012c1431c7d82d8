package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBitable serves the token endpoint plus the record routes used by the
// client, recording what it saw.
type fakeBitable struct {
	t *testing.T

	searchItems []Record

	// record IDs that make batch_update fail with an API error
	failBatchFor map[string]bool
	// record IDs that make individual updates fail, with the code to return
	failUpdateFor map[string]int

	batchUpdateCalls  int
	singleUpdateCalls []string
}

func (f *fakeBitable) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if strings.HasPrefix(r.URL.Path, "/auth/") {
			fmt.Fprint(w, `{"code":0,"msg":"ok","tenant_access_token":"test-token"}`)
			return
		}

		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			f.t.Errorf("Authorization = %q, want %q", got, "Bearer test-token")
		}

		switch {
		case strings.HasSuffix(r.URL.Path, "/records/search"):
			items, _ := json.Marshal(f.searchItems)
			fmt.Fprintf(w, `{"code":0,"msg":"ok","data":{"items":%s}}`, items)

		case strings.HasSuffix(r.URL.Path, "/records/batch_create"):
			var body struct {
				Records []struct {
					Fields map[string]any `json:"fields"`
				} `json:"records"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			records := make([]Record, 0, len(body.Records))
			for i, rec := range body.Records {
				records = append(records, Record{RecordID: fmt.Sprintf("rec_new_%d", i), Fields: rec.Fields})
			}
			out, _ := json.Marshal(records)
			fmt.Fprintf(w, `{"code":0,"msg":"ok","data":{"records":%s}}`, out)

		case strings.HasSuffix(r.URL.Path, "/records/batch_update"):
			f.batchUpdateCalls++
			var body struct {
				Records []RecordUpdate `json:"records"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			for _, rec := range body.Records {
				if f.failBatchFor[rec.RecordID] {
					fmt.Fprint(w, `{"code":1254607,"msg":"batch update failed"}`)
					return
				}
			}
			out, _ := json.Marshal(body.Records)
			fmt.Fprintf(w, `{"code":0,"msg":"ok","data":{"records":%s}}`, out)

		case r.Method == http.MethodPut:
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			f.singleUpdateCalls = append(f.singleUpdateCalls, id)
			if code, ok := f.failUpdateFor[id]; ok {
				fmt.Fprintf(w, `{"code":%d,"msg":"update rejected"}`, code)
				return
			}
			fmt.Fprintf(w, `{"code":0,"msg":"ok","data":{"record":{"record_id":%q,"fields":{}}}}`, id)

		case r.Method == http.MethodDelete:
			fmt.Fprint(w, `{"code":0,"msg":"ok"}`)

		case r.Method == http.MethodPost:
			// single record create
			var body struct {
				Fields map[string]any `json:"fields"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			fields, _ := json.Marshal(body.Fields)
			fmt.Fprintf(w, `{"code":0,"msg":"ok","data":{"record":{"record_id":"rec_new","fields":%s}}}`, fields)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newFakeBitable(t *testing.T) (*fakeBitable, *Client, func()) {
	fake := &fakeBitable{
		t:             t,
		failBatchFor:  map[string]bool{},
		failUpdateFor: map[string]int{},
	}
	server := httptest.NewServer(fake.handler())
	return fake, newTestClient(server.URL), server.Close
}

func TestSearchRecords(t *testing.T) {
	fake, client, done := newFakeBitable(t)
	defer done()

	fake.searchItems = []Record{
		{RecordID: "rec1", Fields: map[string]any{"代号": []any{map[string]any{"text": "AAPL"}}}},
		{RecordID: "rec2", Fields: map[string]any{"代号": []any{map[string]any{"text": "161725"}}}},
	}

	records, err := client.SearchRecords(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0].RecordID)
	assert.Equal(t, "rec2", records[1].RecordID)
}

func TestSearchRecords_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/auth/") {
			fmt.Fprint(w, `{"code":0,"msg":"ok","tenant_access_token":"test-token"}`)
			return
		}
		// items absent entirely
		fmt.Fprint(w, `{"code":0,"msg":"ok","data":{}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	records, err := client.SearchRecords(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearchRecords_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/auth/") {
			fmt.Fprint(w, `{"code":0,"msg":"ok","tenant_access_token":"test-token"}`)
			return
		}
		fmt.Fprint(w, `{"code":1254005,"msg":"table not exist"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.SearchRecords(context.Background(), nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1254005, apiErr.Code)
}

func TestSearchRecords_FilterAndFields(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/auth/") {
			fmt.Fprint(w, `{"code":0,"msg":"ok","tenant_access_token":"test-token"}`)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"code":0,"msg":"ok","data":{"items":[]}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	filter := map[string]any{"conjunction": "and"}
	_, err := client.SearchRecords(context.Background(), filter, []string{"代号", "last_price"})
	require.NoError(t, err)

	assert.Contains(t, gotBody, "filter")
	assert.Equal(t, []any{"代号", "last_price"}, gotBody["field_names"])
}

func TestAddRecord(t *testing.T) {
	_, client, done := newFakeBitable(t)
	defer done()

	record, err := client.AddRecord(context.Background(), map[string]any{"标题": "test"})
	require.NoError(t, err)
	assert.Equal(t, "rec_new", record.RecordID)
	assert.Equal(t, "test", record.Fields["标题"])
}

func TestBatchAddRecords(t *testing.T) {
	_, client, done := newFakeBitable(t)
	defer done()

	records, err := client.BatchAddRecords(context.Background(), []map[string]any{
		{"标题": "one"},
		{"标题": "two"},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec_new_0", records[0].RecordID)
}

func TestDeleteRecord(t *testing.T) {
	_, client, done := newFakeBitable(t)
	defer done()

	ok, err := client.DeleteRecord(context.Background(), "rec1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateRecord_Hints(t *testing.T) {
	tests := []struct {
		code int
		hint string
	}{
		{91403, "permission denied"},
		{19021, "access token expired"},
		{404, "record or table not found"},
		{99999, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%d", tt.code), func(t *testing.T) {
			fake, client, done := newFakeBitable(t)
			defer done()
			fake.failUpdateFor["rec1"] = tt.code

			_, err := client.UpdateRecord(context.Background(), "rec1", map[string]any{"last_price": 1.0})

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.code, apiErr.Code)
			if tt.hint == "" {
				assert.Empty(t, apiErr.Hint)
			} else {
				assert.Contains(t, apiErr.Hint, tt.hint)
			}
		})
	}
}

func TestUpdateRecord_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"code":0,"msg":"ok","tenant_access_token":"test-token"}`)
	}))
	client := newTestClient(server.URL)

	// acquire a token first, then kill the server so the update itself fails
	_, err := client.tokens.Token(context.Background())
	require.NoError(t, err)
	server.Close()

	_, err = client.UpdateRecord(context.Background(), "rec1", map[string]any{"last_price": 1.0})

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures must not surface as API errors")
}

func TestBatchUpdateRecords_FailsAsUnit(t *testing.T) {
	fake, client, done := newFakeBitable(t)
	defer done()
	fake.failBatchFor["rec2"] = true

	_, err := client.BatchUpdateRecords(context.Background(), []RecordUpdate{
		{RecordID: "rec1", Fields: map[string]any{"last_price": 1.0}},
		{RecordID: "rec2", Fields: map[string]any{"last_price": 1.0}},
	})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1254607, apiErr.Code)
}

func TestBatchUpdateByCode(t *testing.T) {
	fake, client, done := newFakeBitable(t)
	defer done()

	codeRecords := map[string][]string{
		"AAPL":   {"rec1", "rec2"},
		"161725": {"rec3"},
	}
	codePrices := map[string]float64{
		"AAPL":   178.23,
		"161725": 1.431,
	}

	updated, failed := client.BatchUpdateByCode(context.Background(), codeRecords, codePrices)

	assert.Equal(t, 3, updated)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 2, fake.batchUpdateCalls, "one batch call per code")
	assert.Empty(t, fake.singleUpdateCalls, "no per-row fallback on success")
}

func TestBatchUpdateByCode_DegradesToRowUpdates(t *testing.T) {
	fake, client, done := newFakeBitable(t)
	defer done()

	// the batch containing rec_b2 fails; rec_b3 then also fails individually
	fake.failBatchFor["rec_b2"] = true
	fake.failUpdateFor["rec_b3"] = 91403

	codeRecords := map[string][]string{
		"AAPL": {"rec_a1"},
		"BIDU": {"rec_b1", "rec_b2", "rec_b3"},
	}
	codePrices := map[string]float64{
		"AAPL": 178.23,
		"BIDU": 121.69,
	}

	updated, failed := client.BatchUpdateByCode(context.Background(), codeRecords, codePrices)

	// AAPL batch succeeds (1 row); BIDU degrades: rec_b1, rec_b2 succeed
	// individually, rec_b3 fails
	assert.Equal(t, 3, updated)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"rec_b1", "rec_b2", "rec_b3"}, fake.singleUpdateCalls,
		"every row of the failed batch is retried individually")
}

func TestBatchUpdateByCode_SkipsCodesWithoutPrices(t *testing.T) {
	fake, client, done := newFakeBitable(t)
	defer done()

	codeRecords := map[string][]string{
		"AAPL": {"rec1"},
		"PSTV": {"rec2"}, // no price resolved this run
	}
	codePrices := map[string]float64{"AAPL": 178.23}

	updated, failed := client.BatchUpdateByCode(context.Background(), codeRecords, codePrices)

	assert.Equal(t, 1, updated)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, fake.batchUpdateCalls, "unpriced codes must not reach the API")
}
