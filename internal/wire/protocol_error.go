package wire

import (
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// ErrorReason enumerates the protocol-level rejection reasons a
// counterparty can report back, beyond a generic validation failure
// (spec.md §4.3's nonce-diff dispatch and §7's error taxonomy).
type ErrorReason string

const (
	ReasonStaleUpdate            ErrorReason = "stale_update"
	ReasonRestoreNeeded          ErrorReason = "restore_needed"
	ReasonValidationFailed       ErrorReason = "validation_failed"
	ReasonUnknownChannel         ErrorReason = "unknown_channel"
	ReasonCannotSyncSetup        ErrorReason = "cannot_sync_setup"
	ReasonCannotSyncSingleSigned ErrorReason = "cannot_sync_single_signed"
	ReasonBadSignatures          ErrorReason = "bad_signatures"
)

// ProtocolError is sent instead of a ProtocolUpdateAck when an inbound
// update is rejected. Reason lets the proposer's engine decide whether
// to retry after a sync (ReasonStaleUpdate) or surface the failure to
// its caller (everything else, including ReasonRestoreNeeded).
type ProtocolError struct {
	ChannelAddress common.Address
	Nonce          uint64
	Reason         ErrorReason
	Message        string

	// LatestUpdate and ActiveTransfers are populated only for
	// ReasonStaleUpdate: the reporting side's own
	// double-signed canonical state, so the rejected proposer can
	// resynchronize (spec.md §4.4) without a second round trip.
	LatestUpdate    *chantypes.ChannelUpdate    `json:",omitempty"`
	ActiveTransfers []*chantypes.Transfer       `json:",omitempty"`
}

func (m *ProtocolError) MsgType() lnwire.MessageType {
	return MsgProtocolError
}

func (m *ProtocolError) MaxPayloadLength(uint32) uint32 {
	return 65535
}

func (m *ProtocolError) Decode(r io.Reader, pver uint32) error {
	return readJSONPayload(r, m)
}

func (m *ProtocolError) Encode(w io.Writer, pver uint32) error {
	return writeJSONPayload(w, m)
}
