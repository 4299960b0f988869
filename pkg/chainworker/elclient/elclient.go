// Copyright 2025 Strata Contributors
//
// Package elclient is the go-ethereum-backed chainworker.ExecEngineController:
// a thin wrapper over an Engine API JSON-RPC endpoint - a *rpc.Client
// holder with one method per remote call, every error wrapped with its
// operation name. It wraps the execution engine's Engine
// API, since forkchoiceUpdated is this rollup's analogue of "submit a
// transaction".
package elclient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/strata-rollup/strata-asm/pkg/chainworker"
)

// forkchoiceStateV1 mirrors the Engine API's ForkchoiceStateV1 JSON shape
// (engine_forkchoiceUpdatedV1), keeping only the three head pointers this
// package needs - no payload attributes, since chainworker never builds
// blocks through this controller, only advances safe/finalized pointers.
type forkchoiceStateV1 struct {
	HeadBlockHash      common.Hash `json:"headBlockHash"`
	SafeBlockHash      common.Hash `json:"safeBlockHash"`
	FinalizedBlockHash common.Hash `json:"finalizedBlockHash"`
}

type forkchoiceUpdatedResponse struct {
	PayloadStatus struct {
		Status          string       `json:"status"`
		LatestValidHash *common.Hash `json:"latestValidHash"`
		ValidationError *string      `json:"validationError"`
	} `json:"payloadStatus"`
}

// Client drives an execution engine's Engine API over JSON-RPC,
// tracking the three forkchoice pointers locally since forkchoiceUpdated
// always requires all three even when only one is changing.
type Client struct {
	rpc *rpc.Client
	url string

	head, safe, finalized common.Hash
}

// Dial connects to the Engine API endpoint at url with rpc.DialContext.
// The resulting connection carries no JWT authentication; this package
// does not manage a JWT secret.
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("elclient: dial: %w", err)
	}
	return &Client{rpc: c, url: url}, nil
}

// SeedHead initializes the locally tracked forkchoice state; callers should
// call this once at startup with the engine's genesis or last-known head
// before the first UpdateSafeBlock/UpdateFinalizedBlock call.
func (c *Client) SeedHead(head, safe, finalized common.Hash) {
	c.head, c.safe, c.finalized = head, safe, finalized
}

// UpdateSafeBlock advances the locally tracked head and safe pointers to
// blkid and issues engine_forkchoiceUpdatedV1, satisfying
// chainworker.ExecEngineController.
func (c *Client) UpdateSafeBlock(ctx context.Context, blkid [32]byte) error {
	h := common.Hash(blkid)
	c.head = h
	c.safe = h
	if err := c.forkchoiceUpdated(ctx); err != nil {
		return fmt.Errorf("elclient: update safe block: %w", err)
	}
	return nil
}

// UpdateFinalizedBlock advances the locally tracked finalized pointer to
// blkid and issues engine_forkchoiceUpdatedV1, satisfying
// chainworker.ExecEngineController.
func (c *Client) UpdateFinalizedBlock(ctx context.Context, blkid [32]byte) error {
	c.finalized = common.Hash(blkid)
	if err := c.forkchoiceUpdated(ctx); err != nil {
		return fmt.Errorf("elclient: update finalized block: %w", err)
	}
	return nil
}

func (c *Client) forkchoiceUpdated(ctx context.Context) error {
	state := forkchoiceStateV1{
		HeadBlockHash:      c.head,
		SafeBlockHash:      c.safe,
		FinalizedBlockHash: c.finalized,
	}

	var resp forkchoiceUpdatedResponse
	if err := c.rpc.CallContext(ctx, &resp, "engine_forkchoiceUpdatedV1", state, nil); err != nil {
		return fmt.Errorf("engine_forkchoiceUpdatedV1: %w", err)
	}
	if resp.PayloadStatus.Status == "INVALID" {
		msg := "rejected"
		if resp.PayloadStatus.ValidationError != nil {
			msg = *resp.PayloadStatus.ValidationError
		}
		return fmt.Errorf("execution engine rejected forkchoice update: %s", msg)
	}
	return nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.rpc.Close() }

var _ chainworker.ExecEngineController = (*Client)(nil)
