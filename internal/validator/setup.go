package validator

import (
	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
)

// applySetup creates the genesis ChannelState for a new two-party
// channel (spec.md §4.1.2). The channel address is derived on-chain from
// (alice, bob, channelFactory) rather than accepted from the caller, so
// two independently-proposed setups for the same pair always agree on
// the resulting address.
func applySetup(reader chain.Reader, fromID chantypes.Identifier, p SetupParams) (*applied, error) {
	if p.Alice == "" || p.Bob == "" {
		return nil, errs.ValidationErr(nil, "setup requires both participants")
	}
	if p.Alice == p.Bob {
		return nil, errs.ValidationErr(nil, "alice and bob must be distinct")
	}
	if fromID != p.Alice && fromID != p.Bob {
		return nil, errs.ValidationErr(nil, "proposer is not one of the named participants")
	}
	if p.Timeout == 0 {
		return nil, errs.ValidationErr(nil, "timeout must be nonzero")
	}

	aliceAddr, err := identifierAddress(p.Alice)
	if err != nil {
		return nil, errs.ValidationErr(nil, "invalid alice identifier: %v", err)
	}
	bobAddr, err := identifierAddress(p.Bob)
	if err != nil {
		return nil, errs.ValidationErr(nil, "invalid bob identifier: %v", err)
	}

	channelAddr, err := reader.GetChannelAddress(aliceAddr, bobAddr, p.Network.ChannelFactoryAddress)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, map[string]interface{}{"op": "GetChannelAddress"}, err)
	}

	next := &chantypes.ChannelState{
		ChannelAddress: channelAddr,
		Alice:          aliceAddr,
		Bob:            bobAddr,
		AliceID:        p.Alice,
		BobID:          p.Bob,
		Network:        p.Network,
		Nonce:          1,
		Timeout:        p.Timeout,
	}
	if err := next.CheckInvariants(); err != nil {
		return nil, errs.FatalErr(nil, "invariant violation: %v", err)
	}

	return &applied{
		nextState:       next,
		activeTransfers: nil,
		balance:         chantypes.ZeroBalance(p.Alice, p.Bob),
		setupDetails: &chantypes.SetupDetails{
			Network: p.Network,
			Timeout: p.Timeout,
			Meta:    p.Meta,
		},
	}, nil
}
