package store

import (
	"encoding/json"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// The teacher stores each on-chain fact as its own typed column
// (internal/db/domain.go's ETHOutput/ETHChannel). ChannelState and
// Transfer carry nested per-asset arrays and update-type-specific detail
// structs that don't map cleanly onto that shape, so this module stores
// them as a single JSONB column per row and keeps only the columns used
// for lookup (channel address, participant ids, transfer id, active
// flag) as real columns.

func encodeChannelState(s *chantypes.ChannelState) ([]byte, error) {
	return json.Marshal(s)
}

func decodeChannelState(raw []byte) (*chantypes.ChannelState, error) {
	var s chantypes.ChannelState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func encodeTransfer(t *chantypes.Transfer) ([]byte, error) {
	return json.Marshal(t)
}

func decodeTransfer(raw []byte) (*chantypes.Transfer, error) {
	var t chantypes.Transfer
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeWithdrawCommitment(w *chantypes.WithdrawCommitment) ([]byte, error) {
	return json.Marshal(w)
}

func decodeWithdrawCommitment(raw []byte) (*chantypes.WithdrawCommitment, error) {
	var w chantypes.WithdrawCommitment
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
