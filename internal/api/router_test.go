package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlexZinkM/linera-client/internal/gateway/gatewaytest"
	"github.com/AlexZinkM/linera-client/internal/handler"
	"github.com/AlexZinkM/linera-client/linera"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRouter(t *testing.T) {
	c, err := linera.New(linera.Options{Gateway: gatewaytest.New()})
	require.NoError(t, err)
	srv := httptest.NewServer(SetupRouter(handler.NewLineraHandler(c, "", nil)))
	defer srv.Close()

	get := func(path string) (*http.Response, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, body := get("/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "linera_client_process_cpu_percent")

	resp, _ = get("/wallet/chains")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get("/resources")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = get("/swagger/doc.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "/deploy")

	resp, _ = get("/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
