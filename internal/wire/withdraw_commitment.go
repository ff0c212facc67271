package wire

import (
	"io"

	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/kyokan/statechannel/internal/chantypes"
)

const (
	MsgWithdrawCommitment    lnwire.MessageType = 40010
	MsgWithdrawCommitmentAck lnwire.MessageType = 40011
)

// WithdrawCommitment carries a proposer-signed WithdrawCommitment to the
// counterparty for countersignature. Unlike ProtocolUpdate it never
// touches the channel nonce (spec.md §4.1.5's WithdrawCommitment draws
// down Balances directly), so it has no nonce-diff sync story: either
// the counterparty's locally-computed commitment matches exactly, or the
// proposal is rejected outright.
type WithdrawCommitment struct {
	Commitment *chantypes.WithdrawCommitment
}

func (m *WithdrawCommitment) MsgType() lnwire.MessageType { return MsgWithdrawCommitment }
func (m *WithdrawCommitment) MaxPayloadLength(uint32) uint32 { return 65535 }
func (m *WithdrawCommitment) Decode(r io.Reader, pver uint32) error { return readJSONPayload(r, m) }
func (m *WithdrawCommitment) Encode(w io.Writer, pver uint32) error { return writeJSONPayload(w, m) }

// WithdrawCommitmentAck returns the recipient's countersignature over the
// same commitment.
type WithdrawCommitmentAck struct {
	Signature []byte
}

func (m *WithdrawCommitmentAck) MsgType() lnwire.MessageType { return MsgWithdrawCommitmentAck }
func (m *WithdrawCommitmentAck) MaxPayloadLength(uint32) uint32 { return 65535 }
func (m *WithdrawCommitmentAck) Decode(r io.Reader, pver uint32) error { return readJSONPayload(r, m) }
func (m *WithdrawCommitmentAck) Encode(w io.Writer, pver uint32) error { return writeJSONPayload(w, m) }
