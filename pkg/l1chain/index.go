// Package l1chain: block-level indexing.
package l1chain

import "github.com/btcsuite/btcd/wire"

// TxVisitor extracts zero or more ProtocolOperations from a single tx
// already routed to a given subprotocol id. Each subprotocol supplies its
// own visitor; the indexer never interprets tx_type or Aux itself beyond
// routing by subprotocol_id.
type TxVisitor func(tx *wire.MsgTx, txType uint8, aux []byte, cfg *FilterConfig) ([]ProtocolOperation, error)

// TxEntry is one (tx_index, ops) pair routed to a subprotocol, in block
// order.
type TxEntry struct {
	TxIndex int
	Ops     []ProtocolOperation
}

// L1BlockExtract is the result of indexing one Bitcoin block.
type L1BlockExtract struct {
	// BySubprotocol groups tx entries by subprotocol id, preserving
	// block order within each bucket.
	BySubprotocol map[uint8][]TxEntry

	DepositRequests []ProtocolOperation
	DaEntries       []ProtocolOperation
}

// IndexBlock scans block in tx order, identifies SPS-50 tagged txs, and
// routes each to the visitor registered for its subprotocol id. Any parse
// failure at any stage filters that tx out silently; it never aborts the
// block.
func IndexBlock(block *wire.MsgBlock, cfg *FilterConfig, visitors map[uint8]TxVisitor) *L1BlockExtract {
	extract := &L1BlockExtract{BySubprotocol: make(map[uint8][]TxEntry)}

	for txIdx, tx := range block.Transactions {
		push, err := extractOpReturnPush(tx)
		if err != nil {
			continue
		}
		header, err := parseSPS50Header(push)
		if err != nil {
			continue
		}

		visitor, known := visitors[header.SubprotocolID]
		if !known {
			continue
		}

		ops, err := visitor(tx, header.TxType, header.Aux, cfg)
		if err != nil || len(ops) == 0 {
			continue
		}

		extract.BySubprotocol[header.SubprotocolID] = append(
			extract.BySubprotocol[header.SubprotocolID],
			TxEntry{TxIndex: txIdx, Ops: ops},
		)

		for _, op := range ops {
			switch op.Kind {
			case OpDepositRequest:
				extract.DepositRequests = append(extract.DepositRequests, op)
			case OpDaCommitment:
				extract.DaEntries = append(extract.DaEntries, op)
			}
		}
	}

	return extract
}
