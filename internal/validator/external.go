package validator

import (
	"github.com/kyokan/statechannel/internal/chantypes"
)

// ExternalValidator is the pluggable hook from spec.md §4/§6: a host
// application can reject a proposed or inbound update for reasons this
// package has no way to know about (counterparty risk limits, per-asset
// allowlists, rate limiting) without forking the core validation logic.
// It runs after the structural checks in this package but before the
// update is applied, so it sees prev/active exactly as the core
// validator would.
type ExternalValidator interface {
	ValidateOutbound(params Params, prev *chantypes.ChannelState, active []*chantypes.Transfer) error
	ValidateInbound(update *chantypes.ChannelUpdate, prev *chantypes.ChannelState, active []*chantypes.Transfer) error
}

// AllowAll is the default ExternalValidator: it imposes no additional
// policy.
type AllowAll struct{}

func (AllowAll) ValidateOutbound(Params, *chantypes.ChannelState, []*chantypes.Transfer) error {
	return nil
}

func (AllowAll) ValidateInbound(*chantypes.ChannelUpdate, *chantypes.ChannelState, []*chantypes.Transfer) error {
	return nil
}
