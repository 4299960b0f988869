// Copyright 2025 Strata Contributors
//
// Package btcrpc is a minimal bitcoind JSON-RPC client implementing
// l1reader.L1Client: one small struct wrapping a configured HTTP client,
// one method per remote call, every error wrapped with its operation
// name - a hand-rolled POST client sending JSON-RPC version "1.0"
// requests, since bitcoind speaks
// plain JSON-RPC rather than exposing an Ethereum-style client library.
package btcrpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/wire"
)

// Client is a bitcoind JSON-RPC client scoped to exactly the calls
// l1reader.L1Client needs: resolving a height to a block hash, then
// fetching that block's raw bytes.
type Client struct {
	url        string
	user, pass string
	http       *http.Client
}

// New constructs a Client against a bitcoind RPC endpoint.
func New(url, user, pass string) *Client {
	return &Client{url: url, user: user, pass: pass, http: &http.Client{Timeout: 30 * time.Second}}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: "strata-asm", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("btcrpc: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("btcrpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("btcrpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("btcrpc: %s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("btcrpc: %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("btcrpc: %s: unmarshal result: %w", method, err)
		}
	}
	return nil
}

// BlockAtHeight satisfies l1reader.L1Client: it resolves height to a block
// hash via getblockhash, then fetches the raw block via getblock verbosity
// 0. A "height out of range" RPC error (bitcoind code -8) is treated as "not
// yet at that height" rather than a hard failure, matching the contract
// l1reader expects.
func (c *Client) BlockAtHeight(ctx context.Context, height uint64) (*wire.MsgBlock, error) {
	var hash string
	if err := c.call(ctx, "getblockhash", []interface{}{height}, &hash); err != nil {
		if isHeightOutOfRange(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("btcrpc: getblockhash(%d): %w", height, err)
	}

	var rawHex string
	if err := c.call(ctx, "getblock", []interface{}{hash, 0}, &rawHex); err != nil {
		return nil, fmt.Errorf("btcrpc: getblock(%s): %w", hash, err)
	}

	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("btcrpc: decode block hex: %w", err)
	}

	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("btcrpc: deserialize block: %w", err)
	}
	return block, nil
}

// isHeightOutOfRange reports whether err came from bitcoind's "Block height
// out of range" response (error code -8), the standard way it signals the
// chain tip hasn't reached the requested height yet.
func isHeightOutOfRange(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return bytes.Contains([]byte(msg), []byte("code -8")) || bytes.Contains([]byte(msg), []byte("out of range"))
}
