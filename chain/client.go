package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a thin JSON-RPC wrapper around the settlement node used to
// submit escrow funding transfers.
type Client struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Int64
}

// Config represents the client configuration.
type Config struct {
	URL     string
	Timeout time.Duration
}

// NewClient constructs a JSON-RPC client targeting the supplied URL.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:        strings.TrimSpace(cfg.URL),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SubmitFunding posts an escrow funding request and returns the settlement
// transaction hash reported by the node.
func (c *Client) SubmitFunding(ctx context.Context, escrowID, signer string, amount decimal.Decimal) (string, error) {
	payload := map[string]interface{}{
		"escrowId": escrowID,
		"signer":   signer,
		"amount":   amount.String(),
	}
	var result struct {
		TxHash string `json:"txHash"`
	}
	if err := c.call(ctx, "escrow_submitFunding", []interface{}{payload}, &result); err != nil {
		return "", err
	}
	hash := strings.TrimSpace(result.TxHash)
	if hash == "" {
		return "", fmt.Errorf("chain: empty settlement reference")
	}
	return hash, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("chain: client not configured")
	}
	id := c.nextID.Add(1)
	buf, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("chain: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("chain: error %d %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chain: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 {
		return fmt.Errorf("chain: empty result")
	}
	return json.Unmarshal(rpcResp.Result, out)
}

var _ Adapter = (*Client)(nil)
