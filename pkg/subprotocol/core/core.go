// Copyright 2025 Strata Contributors
//
// Package core implements the Core subprotocol: the
// checkpoint verifier. It owns the authorized batch producer / administrator
// / consensus manager keys, the configured verifying key, and the last
// verified checkpoint, and admits new SignedCheckpoints extracted from L1
// witness envelopes.
package core

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/strata-rollup/strata-asm/pkg/checkpoint"
	"github.com/strata-rollup/strata-asm/pkg/l1chain"
	"github.com/strata-rollup/strata-asm/pkg/rollupcfg"
	"github.com/strata-rollup/strata-asm/pkg/slotrng"
	"github.com/strata-rollup/strata-asm/pkg/subprotocol"
	"github.com/strata-rollup/strata-asm/pkg/subprotocol/bridge"
)

// ID is this repository's fixed Core subprotocol id. The live value used
// at runtime comes from RollupParams.CoreSubprotocolID; this constant is
// only the conventional default used when constructing params from
// scratch (e.g. in tests).
const ID uint8 = 1

// State is the Core subprotocol's persisted, serialized section state.
// A nil VerifiedCheckpoint means no checkpoint has verified yet.
type State struct {
	BatchProducerPubkey [32]byte                      `json:"batch_producer_pubkey"`
	Administrator       [32]byte                      `json:"administrator"`
	ConsensusManager    [32]byte                       `json:"consensus_manager"`
	RollupVK            rollupcfg.RollupVerifyingKey   `json:"checkpoint_vk"`
	ProofPublishMode    rollupcfg.ProofPublishMode     `json:"proof_publish_mode"`
	VerifiedCheckpoint  *checkpoint.Checkpoint         `json:"verified_checkpoint,omitempty"`
	LastCheckpointRef   slotrng.L1BlockCommitment      `json:"last_checkpoint_ref"`
}

// Subprotocol is the Core subprotocol instance wired into the registry.
type Subprotocol struct {
	id              uint8
	genesis         State
	backends        checkpoint.BackendSet
	genesisL1Height uint64
	bridgeID        uint8
}

// New constructs the Core subprotocol from genesis rollup parameters. id
// is normally params.CoreSubprotocolID.
func New(id uint8, params *rollupcfg.RollupParams, backends checkpoint.BackendSet) *Subprotocol {
	return &Subprotocol{
		id: id,
		genesis: State{
			BatchProducerPubkey: params.BatchProducerPubkey,
			Administrator:       params.Administrator,
			ConsensusManager:    params.ConsensusManager,
			RollupVK:            params.RollupVK,
			ProofPublishMode:    params.ProofPublishMode,
		},
		backends:        backends,
		genesisL1Height: params.GenesisL1Height,
		bridgeID:        params.BridgeSubprotocolID,
	}
}

func (s *Subprotocol) ID() uint8 { return s.id }

func (s *Subprotocol) Init() []byte {
	b, err := json.Marshal(s.genesis)
	if err != nil {
		// genesis is built entirely from fixed-size arrays and enums; a
		// marshal failure here means the type itself is broken.
		panic(fmt.Sprintf("core: genesis state does not marshal: %v", err))
	}
	return b
}

// ProcessTxs admits OpCheckpoint operations and administrator-authorized
// OpAdminRotateBridgeAddress operations routed to this subprotocol. Each
// operation's verification failure rejects only that operation; it never
// aborts the block. blk identifies the L1 block carrying txs, recorded
// against any checkpoint admitted from it.
func (s *Subprotocol) ProcessTxs(stateBytes []byte, blk slotrng.L1BlockCommitment, txs []l1chain.TxEntry, relayer subprotocol.Relayer) ([]byte, error) {
	var st State
	if err := json.Unmarshal(stateBytes, &st); err != nil {
		return nil, fmt.Errorf("core: corrupt state: %w", err)
	}

	for _, entry := range txs {
		for _, op := range entry.Ops {
			switch op.Kind {
			case l1chain.OpCheckpoint:
				sc, err := checkpoint.DecodeSignedCheckpoint(op.SignedCheckpointBytes)
				if err != nil {
					relayer.EmitLog(subprotocol.LogEntry{Kind: "checkpoint_rejected", Data: []byte(err.Error())})
					continue
				}
				if err := checkpoint.Verify(st.VerifiedCheckpoint, sc, s.genesisL1Height, st.BatchProducerPubkey, st.RollupVK, st.ProofPublishMode, s.backends); err != nil {
					relayer.EmitLog(subprotocol.LogEntry{Kind: "checkpoint_rejected", Data: []byte(err.Error())})
					continue
				}

				verified := sc.Checkpoint
				st.VerifiedCheckpoint = &verified
				st.LastCheckpointRef = blk
				relayer.EmitLog(subprotocol.LogEntry{Kind: "checkpoint_verified", Data: checkpoint.CanonicalEncode(verified)})

			case l1chain.OpAdminRotateBridgeAddress:
				newPkScript, sig, err := decodeRotationRequest(op.AdminRotationBytes)
				if err != nil {
					relayer.EmitLog(subprotocol.LogEntry{Kind: "admin_rotation_rejected", Data: []byte(err.Error())})
					continue
				}
				if err := verifyAdminRotation(st.Administrator, newPkScript, sig); err != nil {
					relayer.EmitLog(subprotocol.LogEntry{Kind: "admin_rotation_rejected", Data: []byte(err.Error())})
					continue
				}
				relayer.Relay(s.bridgeID, bridge.EncodeRotateTaprootAddressMsg(newPkScript))
				relayer.EmitLog(subprotocol.LogEntry{Kind: "admin_rotation_relayed", Data: newPkScript})
			}
		}
	}

	out, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("core: state does not marshal: %w", err)
	}
	return out, nil
}

// decodeRotationRequest splits an admin rotation envelope into the new
// Taproot pkScript and the trailing 64-byte Schnorr signature over it.
func decodeRotationRequest(b []byte) ([]byte, [64]byte, error) {
	var sig [64]byte
	if len(b) <= len(sig) {
		return nil, sig, fmt.Errorf("core: admin rotation envelope too short: %d bytes", len(b))
	}
	split := len(b) - len(sig)
	copy(sig[:], b[split:])
	newPkScript := append([]byte(nil), b[:split]...)
	return newPkScript, sig, nil
}

// verifyAdminRotation checks sig is administrator's BIP-340 Schnorr
// signature over newPkScript, the authorization Administrative operations
// require before Core will relay a bridge address rotation.
func verifyAdminRotation(administrator [32]byte, newPkScript []byte, sig [64]byte) error {
	pubKey, err := schnorr.ParsePubKey(administrator[:])
	if err != nil {
		return fmt.Errorf("core: invalid administrator key: %w", err)
	}
	signature, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return fmt.Errorf("core: invalid rotation signature encoding: %w", err)
	}
	digest := rotationDigest(newPkScript)
	if !signature.Verify(digest[:], pubKey) {
		return fmt.Errorf("core: administrator signature verification failed")
	}
	return nil
}

// rotationDigest is the message an administrator signs to authorize
// rotating the bridge's Taproot pkScript to newPkScript. The domain tag
// keeps this signature from being replayable as a signature over anything
// else the administrator key might ever sign.
func rotationDigest(newPkScript []byte) [32]byte {
	msg := append([]byte("strata-core-rotate-bridge-address:"), newPkScript...)
	return chainhash.DoubleHashH(msg)
}

// FinalizeState computes the block's event commitment. The Core
// subprotocol relays administrator-authorized rotations out to Bridge but
// accepts no inbound messages itself: no other subprotocol ever needs to
// rotate Core's own authority keys.
func (s *Subprotocol) FinalizeState(stateBytes []byte, inbound []subprotocol.RelayedMsg) ([]byte, [32]byte, error) {
	if len(inbound) != 0 {
		return nil, [32]byte{}, fmt.Errorf("core: unexpected inbound relay messages: %d", len(inbound))
	}
	var st State
	if err := json.Unmarshal(stateBytes, &st); err != nil {
		return nil, [32]byte{}, fmt.Errorf("core: corrupt state: %w", err)
	}
	out, err := json.Marshal(st)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("core: state does not marshal: %w", err)
	}
	return out, eventHash(st), nil
}

// eventHash commits to the Core subprotocol's externally visible state
// after a block: which checkpoint (if any) is currently the verified tip.
// Other subprotocols and external watchers observe chain progress through
// this hash rather than by decoding State directly.
func eventHash(st State) [32]byte {
	if st.VerifiedCheckpoint == nil {
		return sha256.Sum256(nil)
	}
	return sha256.Sum256(checkpoint.CanonicalEncode(*st.VerifiedCheckpoint))
}
