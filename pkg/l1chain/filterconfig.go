package l1chain

import "github.com/strata-rollup/strata-asm/pkg/rollupcfg"

// FilterConfig is the subset of live chain configuration the indexer needs
// to classify transactions. It is built once from RollupParams and the
// bridge pkScript by NewFilterConfigFromParams; nothing in this repository
// refreshes it from later chainstate, and it carries no operator keys.
type FilterConfig struct {
	Magic                [4]byte
	BridgeTaprootPkScript []byte
	DepositAmountSats    uint64
	AddressLength        uint8
	CoreSubprotocolID    uint8
	BridgeSubprotocolID  uint8
}

// NewFilterConfigFromParams derives the genesis FilterConfig from
// RollupParams. BridgeTaprootPkScript keeps the value passed here; it is
// not updated after a Bridge address rotation.
func NewFilterConfigFromParams(p *rollupcfg.RollupParams, bridgePkScript []byte) *FilterConfig {
	return &FilterConfig{
		Magic:                 sps50Magic,
		BridgeTaprootPkScript: bridgePkScript,
		DepositAmountSats:     p.DepositAmountSats,
		AddressLength:         p.AddressLength,
		CoreSubprotocolID:     p.CoreSubprotocolID,
		BridgeSubprotocolID:   p.BridgeSubprotocolID,
	}
}
