package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calixo/internal/domain"
	"calixo/internal/ports"
)

func TestFetchDecodesAndNormalizes(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/data", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"diet":{"2026-01-01":[],"2026-01-02":[{"id":"1","name":"egg","calories":70}]},"goals":null,"goalStory":""}`))
	}))
	defer ts.Close()

	c := &Client{BaseURL: ts.URL, HTTPClient: ts.Client()}
	record, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, record.Diet, 1)
	assert.NotNil(t, record.Activity)
	assert.Nil(t, record.Goals)
}

func TestFetchNullBodyIsEmptyRecord(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer ts.Close()

	record, err := (&Client{BaseURL: ts.URL, HTTPClient: ts.Client()}).Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, record.HasData())
}

func TestStoreSendsFullRecord(t *testing.T) {
	t.Parallel()

	var got domain.TrackingRecord
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	record := domain.NewTrackingRecord()
	record.GoalStory = "run 10k"
	require.NoError(t, (&Client{BaseURL: ts.URL, HTTPClient: ts.Client()}).Store(context.Background(), record))
	assert.Equal(t, "run 10k", got.GoalStory)
}

func TestStatusErrorsCarryCodeAndMessage(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"record store not configured"}`))
	}))
	defer ts.Close()

	err := (&Client{BaseURL: ts.URL, HTTPClient: ts.Client()}).Store(context.Background(), domain.NewTrackingRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrRemoteUnavailable))

	var status *ports.StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, 503, status.Code)
	assert.Equal(t, "record store not configured", status.Message)
}

func TestNonUnavailableStatusIsNotLatched(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := (&Client{BaseURL: ts.URL, HTTPClient: ts.Client()}).Fetch(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ports.ErrRemoteUnavailable))
}

func TestHealthReadsRecordStoreFlagAndAlias(t *testing.T) {
	t.Parallel()

	cases := []struct {
		body string
		want *bool
	}{
		{`{"ok":true,"recordStore":true}`, boolPtr(true)},
		{`{"ok":true,"mongodb":false}`, boolPtr(false)},
		{`{"ok":true}`, nil},
	}
	for _, tc := range cases {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/health", r.URL.Path)
			_, _ = w.Write([]byte(tc.body))
		}))
		health, err := (&Client{BaseURL: ts.URL, HTTPClient: ts.Client()}).Health(context.Background())
		ts.Close()

		require.NoError(t, err)
		assert.True(t, health.OK)
		assert.Equal(t, tc.want, health.RecordStore, tc.body)
	}
}

func boolPtr(v bool) *bool { return &v }
