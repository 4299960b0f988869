package rollupcfg

import "testing"

func validParams() *RollupParams {
	return &RollupParams{
		RollupName:          "strata-test",
		HorizonL1Height:     100,
		GenesisL1Height:     200,
		DepositAmountSats:   1_000_000_000,
		AddressLength:       20,
		RollupVK:            RollupVerifyingKey{Tag: VKTagNative, NativeID: 1},
		CoreSubprotocolID:   1,
		BridgeSubprotocolID: 2,
		BatchProducerPubkey: [32]byte{1},
		Administrator:       [32]byte{2},
		OperatorConfig: []OperatorKey{
			{ID: 0, SchnorrPK: [32]byte{3}},
			{ID: 1, SchnorrPK: [32]byte{4}},
		},
	}
}

func TestCheckWellFormedAccepts(t *testing.T) {
	if err := validParams().CheckWellFormed(); err != nil {
		t.Fatalf("expected valid params to pass, got %v", err)
	}
}

func TestCheckWellFormedRejectsDuplicateOperatorIDs(t *testing.T) {
	p := validParams()
	p.OperatorConfig = append(p.OperatorConfig, OperatorKey{ID: 0, SchnorrPK: [32]byte{5}})
	if err := p.CheckWellFormed(); err == nil {
		t.Fatalf("expected duplicate operator id to be rejected")
	}
}

func TestCheckWellFormedRejectsHorizonAfterGenesis(t *testing.T) {
	p := validParams()
	p.HorizonL1Height = p.GenesisL1Height + 1
	if err := p.CheckWellFormed(); err == nil {
		t.Fatalf("expected horizon_l1_height > genesis_l1_height to be rejected")
	}
}

func TestCheckWellFormedRejectsZeroDepositAmount(t *testing.T) {
	p := validParams()
	p.DepositAmountSats = 0
	if err := p.CheckWellFormed(); err == nil {
		t.Fatalf("expected zero deposit_amount to be rejected")
	}
}

func TestCheckWellFormedRejectsOversizedAddress(t *testing.T) {
	p := validParams()
	p.AddressLength = 77
	if err := p.CheckWellFormed(); err == nil {
		t.Fatalf("expected oversized address_length to be rejected")
	}
}

func TestCheckWellFormedRejectsUnknownVKTag(t *testing.T) {
	p := validParams()
	p.RollupVK.Tag = "bogus"
	if err := p.CheckWellFormed(); err == nil {
		t.Fatalf("expected unrecognized rollup_vk tag to be rejected")
	}
}

func TestCheckWellFormedRejectsZeroedOperatorKeys(t *testing.T) {
	p := validParams()
	p.BatchProducerPubkey = [32]byte{}
	if err := p.CheckWellFormed(); err == nil {
		t.Fatalf("expected zeroed batch producer pubkey (deprecated fallback params) to be rejected")
	}
}
