package wire

import (
	"io"

	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// ProtocolUpdate carries a single proposed or countersigned ChannelUpdate
// between the two participants (spec.md §4.2/§4.3). The sender's
// signature is always present; the recipient adds its own and either
// returns the double-signed update as an ack or rejects it with a
// ProtocolError.
//
// PreviousUpdate carries the sender's own latest double-signed update
// (absent for Setup, which has none), so a recipient that is one nonce
// behind (spec.md §4.3 diff==2) can catch up before validating Update
// itself.
type ProtocolUpdate struct {
	Update         *chantypes.ChannelUpdate
	PreviousUpdate *chantypes.ChannelUpdate `json:",omitempty"`
}

func (m *ProtocolUpdate) MsgType() lnwire.MessageType {
	return MsgProtocolUpdate
}

func (m *ProtocolUpdate) MaxPayloadLength(uint32) uint32 {
	return 65535
}

func (m *ProtocolUpdate) Decode(r io.Reader, pver uint32) error {
	return readJSONPayload(r, m)
}

func (m *ProtocolUpdate) Encode(w io.Writer, pver uint32) error {
	return writeJSONPayload(w, m)
}
