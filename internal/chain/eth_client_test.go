package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func writeRPCNull(w http.ResponseWriter, id json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  nil,
	})
}

func newTestEthClient(t *testing.T, url string) *EthClient {
	t.Helper()
	cli, err := NewEthClient(context.Background(), EthClientConfig{
		RPCURL:      url,
		NFTContract: "0x1000000000000000000000000000000000000001",
	})
	require.NoError(t, err)
	return cli
}

func signTestTx(t *testing.T) *types.Transaction {
	t.Helper()
	account, err := NewEphemeralAccount(big.NewInt(1))
	require.NoError(t, err)
	tx, err := account.Sign(TxIntent{
		To:       common.HexToAddress("0x2000000000000000000000000000000000000002"),
		Gas:      21_000,
		GasPrice: big.NewInt(1),
	})
	require.NoError(t, err)
	return tx
}

// A node that accepts the broadcast but never reports the transaction
// mined must not hold Submit forever.
func TestSubmitBoundedWhenNeverMined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		_ = json.NewDecoder(r.Body).Decode(&call)
		writeRPCNull(w, call.ID)
	}))
	defer srv.Close()

	cli := newTestEthClient(t, srv.URL)
	cli.pollEvery = 10 * time.Millisecond
	cli.inclusionWait = 100 * time.Millisecond

	start := time.Now()
	_, err := cli.Submit(context.Background(), signTestTx(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not mined")
	require.Less(t, time.Since(start), 5*time.Second)
}

// A receipt lookup that hangs mid-poll must be cut off by the RPC
// timeout instead of blocking until the connection recovers.
func TestSubmitBoundedWhenReceiptLookupHangs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		_ = json.NewDecoder(r.Body).Decode(&call)
		if call.Method == "eth_getTransactionReceipt" {
			<-r.Context().Done()
			return
		}
		writeRPCNull(w, call.ID)
	}))
	defer srv.Close()

	cli := newTestEthClient(t, srv.URL)
	cli.rpcTimeout = 50 * time.Millisecond
	cli.pollEvery = 10 * time.Millisecond

	start := time.Now()
	_, err := cli.Submit(context.Background(), signTestTx(t))
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}
