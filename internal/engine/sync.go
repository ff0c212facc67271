package engine

import (
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/internal/validator"
)

// sync implements the shared syncer from spec.md §4.4: it re-validates a
// double-signed update the caller is behind on (reusing the inbound
// validation pipeline, since a synced update is trusted exactly the way
// any other bilaterally-signed inbound update is) and persists it as the
// new canonical local state. Both the outbound path (after a
// StaleUpdate reply) and the inbound path (on diff==2) call this; it
// never retries — callers decide what to do with the synced result.
func (e *Engine) sync(prev *chantypes.ChannelState, active []*chantypes.Transfer, update *chantypes.ChannelUpdate) (*chantypes.ChannelState, []*chantypes.Transfer, error) {
	if update.Type == chantypes.Setup {
		return nil, nil, errs.ProtocolErr(nil, "cannot sync a setup update")
	}
	if !update.DoubleSigned() {
		return nil, nil, errs.ProtocolErr(nil, "cannot sync a single-signed update")
	}

	result, err := validator.ValidateInbound(e.deps, prev, active, update)
	if err != nil {
		return nil, nil, err
	}

	state := result.NextState.Clone()
	state.LatestUpdate = result.Update

	if err := e.store.SaveChannelStateAndTransfers(state, result.ActiveTransfers); err != nil {
		return nil, nil, errs.StoreErr(map[string]interface{}{"channel": state.ChannelAddress.Hex()}, "SaveChannelStateAndTransfers", err)
	}
	e.publishUpdate(state)

	return state, result.ActiveTransfers, nil
}
