package bitcoinrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler func(method string) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		result := handler(req.Method)
		resultBytes, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("marshal result: %v", err)
		}
		resp := response{Result: resultBytes, ID: req.ID}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestTipHeight(t *testing.T) {
	srv := newTestServer(t, func(method string) interface{} {
		if method != "getblockchaininfo" {
			t.Fatalf("unexpected method %s", method)
		}
		return blockchainInfo{Blocks: 840123}
	})
	defer srv.Close()

	c := New(srv.URL, "u", "p", 0)
	height, err := c.TipHeight(context.Background())
	if err != nil {
		t.Fatalf("TipHeight: %v", err)
	}
	if height != 840123 {
		t.Fatalf("expected 840123, got %d", height)
	}
}

func TestBlockByHeight(t *testing.T) {
	srv := newTestServer(t, func(method string) interface{} {
		switch method {
		case "getblockhash":
			return "00000000000000000001abc"
		case "getblock":
			return rawBlock{
				Hash:   "00000000000000000001abc",
				Height: 840000,
				Time:   1700000000,
				Tx: []rawTx{
					{
						TxID: "tx1",
						Vin:  []rawVin{{TxID: "", Vout: 0}}, // coinbase
						Vout: []rawVout{
							{Value: 0.5, N: 0, ScriptPubKey: rawScriptPubKey{Hex: "6a", Type: "nulldata"}},
							{Value: 0.25, N: 1, ScriptPubKey: rawScriptPubKey{Hex: "76a9", Type: "pubkeyhash"}},
						},
					},
				},
			}
		}
		t.Fatalf("unexpected method %s", method)
		return nil
	})
	defer srv.Close()

	c := New(srv.URL, "u", "p", 0)
	block, err := c.BlockByHeight(context.Background(), 840000)
	if err != nil {
		t.Fatalf("BlockByHeight: %v", err)
	}
	if block.Height != 840000 || len(block.Transactions) != 1 {
		t.Fatalf("unexpected block: %+v", block)
	}
	tx := block.Transactions[0]
	if len(tx.Inputs) != 0 {
		t.Fatalf("expected coinbase input dropped, got %+v", tx.Inputs)
	}
	if len(tx.Outputs) != 2 || !tx.Outputs[0].IsOpReturn || tx.Outputs[1].IsOpReturn {
		t.Fatalf("unexpected outputs: %+v", tx.Outputs)
	}
}
