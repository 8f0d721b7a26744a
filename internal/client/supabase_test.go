package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupabaseUpsert(t *testing.T) {
	var (
		gotPath, gotQuery string
		gotHeader         http.Header
		gotBody           []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewSupabaseClient(srv.URL+"/", "secret")
	require.NoError(t, err)

	rows := []map[string]any{{"application_id": "app", "sequence": 1}}
	require.NoError(t, c.Upsert(context.Background(), "events", "application_id,sequence", rows))

	assert.Equal(t, "/rest/v1/events", gotPath)
	assert.Equal(t, "on_conflict=application_id,sequence", gotQuery)
	assert.Equal(t, "secret", gotHeader.Get("apikey"))
	assert.Equal(t, "Bearer secret", gotHeader.Get("Authorization"))
	assert.Contains(t, gotHeader.Get("Prefer"), "resolution=merge-duplicates")
	require.Len(t, gotBody, 1)
	assert.Equal(t, "app", gotBody[0]["application_id"])
}

func TestSupabaseUpsertError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, `{"message":"relation does not exist"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewSupabaseClient(srv.URL, "secret")
	require.NoError(t, err)

	err = c.Upsert(context.Background(), "missing", "", []int{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestNewSupabaseClientRequiresConfig(t *testing.T) {
	_, err := NewSupabaseClient("", "key")
	require.Error(t, err)
	_, err = NewSupabaseClient("http://db", "")
	require.Error(t, err)
}
