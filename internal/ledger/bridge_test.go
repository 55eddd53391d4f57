package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The worker speaks a fixed line schema; these pin it so the Go side and
// worker.js cannot drift apart silently.

func TestRequest_WireFormat(t *testing.T) {
	data, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  "importTransactions",
		Params: map[string]any{
			"accountID":    "a1",
			"transactions": []Record{{Date: "2025-01-14", Amount: -4250, Payee: "NTUC", ImportedPayee: "NTUC", Notes: "NTUC", Cleared: true}},
		},
		ID: 3,
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, "importTransactions", decoded["method"])
	assert.Equal(t, float64(3), decoded["id"])

	params := decoded["params"].(map[string]any)
	txns := params["transactions"].([]any)
	require.Len(t, txns, 1)
	first := txns[0].(map[string]any)
	assert.Equal(t, float64(-4250), first["amount"])
	assert.Equal(t, "NTUC", first["payee_name"])
	assert.Equal(t, "NTUC", first["imported_payee"])
	assert.Equal(t, true, first["cleared"])
}

func TestResponse_ResultDecoding(t *testing.T) {
	line := `{"jsonrpc":"2.0","result":[{"id":"a1","name":"DBS Savings"}],"id":2}`

	var resp response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	assert.Equal(t, 2, resp.ID)
	require.Nil(t, resp.Error)

	var accounts []Account
	require.NoError(t, json.Unmarshal(resp.Result, &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "DBS Savings", accounts[0].Name)
}

func TestResponse_ErrorDecoding(t *testing.T) {
	line := `{"jsonrpc":"2.0","error":{"code":-32000,"message":"could not get remote files"},"id":5}`

	var resp response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32000, resp.Error.Code)
	assert.Equal(t, "could not get remote files", resp.Error.Message)
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }

// A request abandoned because the worker went away must not linger in
// the pending map.
func TestCall_ExitedWorkerLeavesNoPendingRequest(t *testing.T) {
	b := &Bridge{
		stdin:   nopWriteCloser{},
		pending: make(map[int]chan *response),
		done:    make(chan struct{}),
	}
	close(b.done)

	err := b.call("accounts", nil, nil)
	require.Error(t, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Empty(t, b.pending)
}

func TestResponse_ImportResultDecoding(t *testing.T) {
	line := `{"jsonrpc":"2.0","result":{"added":3,"updated":1},"id":7}`

	var resp response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))

	var result ImportResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 1, result.Updated)
}
