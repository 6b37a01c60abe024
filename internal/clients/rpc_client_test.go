package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainIDServer answers eth_chainId with the given id
func chainIDServer(t *testing.T, chainID int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x%x"}`, req.ID, chainID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const unreachableRPC = "http://127.0.0.1:1"

func TestDialRPCPicksMatchingEndpoint(t *testing.T) {
	wrong := chainIDServer(t, 1)
	right := chainIDServer(t, 9745)

	conn, err := DialRPC(context.Background(), []string{unreachableRPC, wrong.URL, right.URL}, 9745)
	require.NoError(t, err)
	defer conn.Client.Close()

	assert.True(t, conn.Verified)
	assert.Equal(t, right.URL, conn.Endpoint)
}

func TestDialRPCUnreachableStartsOffline(t *testing.T) {
	conn, err := DialRPC(context.Background(), []string{unreachableRPC, "http://127.0.0.1:2"}, 9745)
	require.NoError(t, err)
	require.NotNil(t, conn.Client)
	defer conn.Client.Close()

	assert.False(t, conn.Verified)
	assert.Equal(t, unreachableRPC, conn.Endpoint)

	_, err = conn.Client.ChainID(context.Background())
	assert.Error(t, err)
}

func TestDialRPCFailures(t *testing.T) {
	_, err := DialRPC(context.Background(), nil, 9745)
	assert.Error(t, err)

	wrong := chainIDServer(t, 1)
	_, err = DialRPC(context.Background(), []string{wrong.URL}, 9745)
	assert.ErrorContains(t, err, "reports chain id 1")

	_, err = DialRPC(context.Background(), []string{"ftp://nowhere"}, 9745)
	assert.Error(t, err)
}
