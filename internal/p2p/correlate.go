package p2p

import (
	"fmt"

	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/kyokan/statechannel/internal/wire"
)

// correlationKey identifies which in-flight Request a ProtocolUpdateAck or
// ProtocolError answers. The engine's per-channel lock table (see
// internal/engine) guarantees at most one outbound request per channel is
// in flight at a time, so (channel address, proposed nonce) is sufficient
// to pair a reply with its request without a dedicated request-id field.
func correlationKey(msg lnwire.Message) (string, bool) {
	switch m := msg.(type) {
	case *wire.ProtocolUpdate:
		if m.Update == nil {
			return "", false
		}
		return fmt.Sprintf("%s:%d", m.Update.ChannelAddress.Hex(), m.Update.Nonce), true
	case *wire.ProtocolUpdateAck:
		return fmt.Sprintf("%s:%d", m.ChannelAddress.Hex(), m.Nonce), true
	case *wire.ProtocolError:
		return fmt.Sprintf("%s:%d", m.ChannelAddress.Hex(), m.Nonce), true
	default:
		return "", false
	}
}
