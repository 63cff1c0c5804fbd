package chain

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestClientSubmitFunding(t *testing.T) {
	var capturedBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		capturedBody = append([]byte(nil), body...)
		resp := rpcResponse{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"txHash":"0xdeadbeef"}`)}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL})
	hash, err := client.SubmitFunding(context.Background(), "escrow-1", "0x8ba1f109551bD432803012645Ac136ddd64DBA72", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("submit funding: %v", err)
	}
	if hash != "0xdeadbeef" {
		t.Fatalf("unexpected hash %q", hash)
	}

	var req rpcRequest
	if err := json.Unmarshal(capturedBody, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if req.Method != "escrow_submitFunding" {
		t.Fatalf("unexpected method %q", req.Method)
	}
	if len(req.Params) != 1 {
		t.Fatalf("expected one param, got %d", len(req.Params))
	}
	payload, ok := req.Params[0].(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected param shape %T", req.Params[0])
	}
	if payload["escrowId"] != "escrow-1" || payload["amount"] != "100" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestClientSurfacesRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := rpcResponse{JSONRPC: "2.0", ID: 1, Error: &rpcError{Code: -32000, Message: "insufficient balance"}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL})
	if _, err := client.SubmitFunding(context.Background(), "escrow-1", "0x01", decimal.NewFromInt(1)); err == nil {
		t.Fatalf("expected error from rpc failure")
	}
}

func TestClientRejectsEmptyReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := rpcResponse{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"txHash":""}`)}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL})
	if _, err := client.SubmitFunding(context.Background(), "escrow-1", "0x01", decimal.NewFromInt(1)); err == nil {
		t.Fatalf("expected error for empty settlement reference")
	}
}

func TestNormalizeSigner(t *testing.T) {
	normalized, err := NormalizeSigner("  0x8ba1f109551bd432803012645ac136ddd64dba72 ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if normalized != "0x8ba1f109551bD432803012645Ac136ddd64DBA72" {
		t.Fatalf("unexpected checksum form %q", normalized)
	}
	if _, err := NormalizeSigner("not-an-address"); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}
