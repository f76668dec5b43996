package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDirectoryRegisterAndRelease(t *testing.T) {
	var records []map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var record map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		records = append(records, record)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.directoryURL = srv.URL

	dir := newDirectoryClient(cfg, zap.NewNop().Sugar())
	dir.register(context.Background())
	dir.release()

	require.Len(t, records, 2)
	assert.Equal(t, "start", records[0]["action"])
	assert.NotEmpty(t, records[0]["ip"])
	assert.Equal(t, "stop", records[1]["action"])
	assert.NotContains(t, records[1], "ip")
}

func TestDirectoryDisabledWhenUnconfigured(t *testing.T) {
	dir := newDirectoryClient(testConfig(), zap.NewNop().Sugar())

	// No URL configured: both calls are no-ops and must not panic.
	dir.register(context.Background())
	dir.release()
}

func TestDirectoryOutageIsNotFatal(t *testing.T) {
	cfg := testConfig()
	cfg.directoryURL = "http://127.0.0.1:1/unreachable"

	dir := newDirectoryClient(cfg, zap.NewNop().Sugar())
	dir.register(context.Background())
	dir.release()
}
