// Copyright 2025 Strata Contributors
//
// Package bridge implements the Bridge subprotocol: it owns the bridge
// Taproot deposit address, tracks pending and spent deposit UTXOs, and
// records withdrawal fulfillments reported by bridge operators.
package bridge

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/strata-rollup/strata-asm/pkg/l1chain"
	"github.com/strata-rollup/strata-asm/pkg/rollupcfg"
	"github.com/strata-rollup/strata-asm/pkg/slotrng"
	"github.com/strata-rollup/strata-asm/pkg/subprotocol"
)

// ID is the conventional default Bridge subprotocol id; the live value
// used at runtime comes from RollupParams.BridgeSubprotocolID.
const ID uint8 = 2

// msgTag identifies the relayed-message variants Bridge accepts from Core
// during finalize_state.
type msgTag byte

const (
	msgRotateTaprootAddress msgTag = 1
)

// EncodeRotateTaprootAddressMsg builds the relayed message Core sends to
// rotate Bridge's Taproot pkScript: a one-byte tag followed by the new
// pkScript. Bridge owns this wire format; callers that relay a rotation
// never construct the bytes by hand.
func EncodeRotateTaprootAddressMsg(newPkScript []byte) []byte {
	return append([]byte{byte(msgRotateTaprootAddress)}, newPkScript...)
}

// DepositRecord tracks one deposit UTXO from the moment its Deposit
// operation is seen until it is spent by a withdrawal or other bridge
// movement.
type DepositRecord struct {
	OutpointTxHash  string `json:"outpoint_tx_hash"`
	OutpointIndex   uint32 `json:"outpoint_index"`
	AmountSats      uint64 `json:"amount_sats"`
	EEAddress       []byte `json:"ee_address"`
	Spent           bool   `json:"spent"`
}

// State is the Bridge subprotocol's persisted, serialized section state.
type State struct {
	TaprootPkScript []byte                `json:"taproot_pk_script"`
	OperatorKeys    []rollupcfg.OperatorKey `json:"operator_keys"`
	Deposits        []DepositRecord       `json:"deposits"`
	Withdrawals     uint64                `json:"withdrawals_fulfilled"`
}

// Subprotocol is the Bridge subprotocol instance wired into the registry.
type Subprotocol struct {
	id                 uint8
	genesisPkScript    []byte
	genesisOperators   []rollupcfg.OperatorKey
	maxDepositsInBlock uint32
}

// New constructs the Bridge subprotocol from genesis rollup parameters and
// the bridge's genesis Taproot scriptPubKey (derived off-chain from
// params.BridgeTaprootAddress; address decoding is outside this package's
// scope). id is normally params.BridgeSubprotocolID.
func New(id uint8, params *rollupcfg.RollupParams, genesisPkScript []byte) *Subprotocol {
	return &Subprotocol{
		id:                 id,
		genesisPkScript:    append([]byte(nil), genesisPkScript...),
		genesisOperators:   append([]rollupcfg.OperatorKey(nil), params.OperatorConfig...),
		maxDepositsInBlock: params.MaxDepositsInBlock,
	}
}

func (s *Subprotocol) ID() uint8 { return s.id }

func (s *Subprotocol) Init() []byte {
	st := State{
		TaprootPkScript: s.genesisPkScript,
		OperatorKeys:    s.genesisOperators,
	}
	b, err := json.Marshal(st)
	if err != nil {
		panic(fmt.Sprintf("bridge: genesis state does not marshal: %v", err))
	}
	return b
}

// ProcessTxs admits Deposit, DepositRequest, DepositSpent, and
// WithdrawalFulfillment operations routed to this subprotocol. A block
// that carries more deposits than MaxDepositsInBlock has its excess
// deposits rejected, not the whole block.
func (s *Subprotocol) ProcessTxs(stateBytes []byte, _ slotrng.L1BlockCommitment, txs []l1chain.TxEntry, relayer subprotocol.Relayer) ([]byte, error) {
	var st State
	if err := json.Unmarshal(stateBytes, &st); err != nil {
		return nil, fmt.Errorf("bridge: corrupt state: %w", err)
	}

	depositsThisBlock := uint32(0)
	for _, entry := range txs {
		for _, op := range entry.Ops {
			switch op.Kind {
			case l1chain.OpDeposit:
				if s.maxDepositsInBlock > 0 && depositsThisBlock >= s.maxDepositsInBlock {
					relayer.EmitLog(subprotocol.LogEntry{Kind: "deposit_rejected_over_cap", Data: nil})
					continue
				}
				st.Deposits = append(st.Deposits, DepositRecord{
					OutpointTxHash: op.Outpoint.Hash.String(),
					OutpointIndex:  op.Outpoint.Index,
					AmountSats:     op.AmountSats,
					EEAddress:      append([]byte(nil), op.EEAddress...),
				})
				depositsThisBlock++
				relayer.EmitLog(subprotocol.LogEntry{Kind: "deposit_accepted", Data: op.EEAddress})

			case l1chain.OpDepositRequest:
				relayer.EmitLog(subprotocol.LogEntry{Kind: "deposit_requested", Data: op.EEAddress})

			case l1chain.OpDepositSpent:
				idx := findDeposit(st.Deposits, op.SpentOutpoint.Hash.String(), op.SpentOutpoint.Index)
				if idx < 0 {
					relayer.EmitLog(subprotocol.LogEntry{Kind: "deposit_spent_unknown", Data: nil})
					continue
				}
				st.Deposits[idx].Spent = true
				relayer.EmitLog(subprotocol.LogEntry{Kind: "deposit_spent", Data: nil})

			case l1chain.OpWithdrawalFulfillment:
				st.Withdrawals++
				relayer.EmitLog(subprotocol.LogEntry{Kind: "withdrawal_fulfilled", Data: nil})
			}
		}
	}

	out, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("bridge: state does not marshal: %w", err)
	}
	return out, nil
}

// FinalizeState applies relayed messages from other subprotocols, today
// only Core's administrator-triggered Taproot address rotation, and
// computes the block's event commitment.
func (s *Subprotocol) FinalizeState(stateBytes []byte, inbound []subprotocol.RelayedMsg) ([]byte, [32]byte, error) {
	var st State
	if err := json.Unmarshal(stateBytes, &st); err != nil {
		return nil, [32]byte{}, fmt.Errorf("bridge: corrupt state: %w", err)
	}

	for _, msg := range inbound {
		if len(msg.Msg) == 0 {
			return nil, [32]byte{}, fmt.Errorf("bridge: empty relayed message")
		}
		switch msgTag(msg.Msg[0]) {
		case msgRotateTaprootAddress:
			st.TaprootPkScript = append([]byte(nil), msg.Msg[1:]...)
		default:
			return nil, [32]byte{}, fmt.Errorf("bridge: unrecognized relayed message tag %d", msg.Msg[0])
		}
	}

	out, err := json.Marshal(st)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("bridge: state does not marshal: %w", err)
	}
	return out, eventHash(st), nil
}

func findDeposit(deposits []DepositRecord, txHash string, index uint32) int {
	for i, d := range deposits {
		if !d.Spent && d.OutpointTxHash == txHash && d.OutpointIndex == index {
			return i
		}
	}
	return -1
}

func eventHash(st State) [32]byte {
	buf := new(bytes.Buffer)
	buf.Write(st.TaprootPkScript)
	for _, d := range st.Deposits {
		buf.WriteString(d.OutpointTxHash)
	}
	return sha256.Sum256(buf.Bytes())
}
